// handlers — ручки локального инспектора. Каждая ручка вызывает одну
// операцию стора и отдаёт его снимок; своей логики здесь нет.
package handlers

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/pribylovaa/campus-sync/internal/errors"
	"github.com/pribylovaa/campus-sync/internal/service"
)

// Handlers агрегирует сторы клиентского слоя.
type Handlers struct {
	Session  *service.Session
	Discover *service.Events
	Mine     *service.Events
	Chats    *service.Chats
	Profile  *service.Profile
}

// writeJSON — единый ответ JSON с нужным Content-Type.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: неизвестные поля запрещены.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil {
		return apperrors.Validation("body", "invalid request body")
	}

	return nil
}

func errString(err error) string {
	return apperrors.Message(err)
}
