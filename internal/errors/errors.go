// errors описывает таксономию ошибок клиентского слоя доступа к API.
//
// Executor и Refresh-протокол не паникуют на ожидаемых сбоях: они возвращают
// одну из ошибок ниже, а сторы складывают её в поле Err своего снимка.
//
// Таксономия:
//   - HTTPError — не-2xx ответ сервера (кроме 401 на авторизованном запросе);
//   - ErrAuthExpired — сессия недействительна, вызывающий уводит на логин;
//   - MalformedResponseError — тело успешного ответа не парсится как JSON;
//   - NetworkError — сбой транспорта (DNS, TCP, таймаут);
//   - ValidationError — операция невозможна из-за локального состояния/входа.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrAuthExpired — терминальная ошибка сессии: refresh не удался или повтор
// запроса с новым токеном снова получил 401. Повторять запрос бессмысленно.
var ErrAuthExpired = stderrors.New("auth expired")

// HTTPError — не-2xx ответ сервера, отдаётся вызывающему как есть.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http error %d", e.Status)
	}

	return fmt.Sprintf("http error %d: %s", e.Status, e.Body)
}

// MalformedResponseError — успешный ответ не удалось разобрать.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return "malformed response: " + e.Err.Error()
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// NetworkError — транспортный сбой до получения статуса.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return "network error: " + e.Err.Error()
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError — операция отклонена локально, до похода в сеть.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation error: " + e.Reason
	}

	return fmt.Sprintf("validation error: %s: %s", e.Field, e.Reason)
}

// Validation — короткий конструктор ValidationError.
func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsAuthExpired сообщает, что сессия недействительна.
func IsAuthExpired(err error) bool {
	return stderrors.Is(err, ErrAuthExpired)
}

// Status возвращает HTTP-статус из цепочки ошибок (0, если HTTPError нет).
func Status(err error) int {
	var he *HTTPError
	if stderrors.As(err, &he) {
		return he.Status
	}

	return 0
}

// Message превращает ошибку в короткое безопасное сообщение для UI.
//
// Поведение:
//   - nil -> "";
//   - HTTPError с непустым телом -> тело (сервер уже отдаёт человекочитаемый текст),
//     иначе "HTTP error <status>";
//   - прочие типы таксономии -> фиксированные фразы без деталей транспорта;
//   - неизвестная ошибка -> err.Error().
func Message(err error) string {
	if err == nil {
		return ""
	}

	var (
		he *HTTPError
		me *MalformedResponseError
		ne *NetworkError
		ve *ValidationError
	)

	switch {
	case stderrors.Is(err, ErrAuthExpired):
		return "session expired, please sign in again"
	case stderrors.As(err, &he):
		if body := strings.TrimSpace(he.Body); body != "" {
			return body
		}

		if text := http.StatusText(he.Status); text != "" {
			return fmt.Sprintf("HTTP error %d (%s)", he.Status, strings.ToLower(text))
		}

		return fmt.Sprintf("HTTP error %d", he.Status)
	case stderrors.As(err, &me):
		return "unexpected response from server"
	case stderrors.As(err, &ne):
		return "network unavailable"
	case stderrors.As(err, &ve):
		return ve.Reason
	default:
		return err.Error()
	}
}
