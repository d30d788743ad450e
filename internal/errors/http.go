package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
)

// Нестандартный код часто используемый для "клиент закрыл соединение".
const StatusClientClosedRequest = 499

// APIError — единый формат ошибки локального инспектора.
// Code — короткий стабильный код, Message — текст из Message(err).
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект в ответе.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP конвертирует ошибку таксономии в HTTP-статус и тело ответа.
//
// Поведение:
//   - nil — программная ошибка вызова, 500/internal;
//   - ValidationError -> 400, ErrAuthExpired -> 401;
//   - HTTPError -> статус сервера как есть;
//   - MalformedResponseError -> 502, NetworkError -> 503;
//   - отмена ctx -> 499, дедлайн -> 504;
//   - прочее -> 500/internal без деталей.
func ToHTTP(err error) (int, ErrorResponse) {
	if err == nil {
		return http.StatusInternalServerError, ErrorResponse{
			Error: APIError{Code: "internal", Message: "internal error"},
		}
	}

	var (
		he *HTTPError
		me *MalformedResponseError
		ne *NetworkError
		ve *ValidationError
	)

	status, code := http.StatusInternalServerError, "internal"
	switch {
	case stderrors.As(err, &ve):
		status, code = http.StatusBadRequest, "invalid_argument"
	case stderrors.Is(err, ErrAuthExpired):
		status, code = http.StatusUnauthorized, "unauthenticated"
	case stderrors.As(err, &he):
		status, code = he.Status, "upstream_rejected"
	case stderrors.As(err, &me):
		status, code = http.StatusBadGateway, "malformed_response"
	case stderrors.Is(err, context.Canceled):
		status, code = StatusClientClosedRequest, "canceled"
	case stderrors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "deadline_exceeded"
	case stderrors.As(err, &ne):
		status, code = http.StatusServiceUnavailable, "unavailable"
	default:
		return status, ErrorResponse{Error: APIError{Code: code, Message: "internal error"}}
	}

	return status, ErrorResponse{Error: APIError{Code: code, Message: Message(err)}}
}

// WriteError пишет статус и тело ошибки, добавляя request_id из заголовка.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
