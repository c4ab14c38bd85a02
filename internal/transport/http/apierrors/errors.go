// apierrors приводит ошибки сервисного слоя к единому JSON-ответу
// {"error":{"code","message","request_id"}} и HTTP-статусу.
//
// Наружу уходят только короткий код и безопасное сообщение. Причина отказа
// аутентификации (повторное использование, отзыв, истечение) клиенту
// не раскрывается.
package apierrors

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/gateway"
	"github.com/pribylovaa/flexibill/internal/service"
)

// StatusClientClosedRequest — клиент закрыл соединение до ответа.
const StatusClientClosedRequest = 499

// APIError — тело ошибки.
type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

// ErrorResponse — корневой объект ответа.
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// ToHTTP отображает err на HTTP-статус и тело.
//
//   - service.ErrAuthentication (в т.ч. ErrSecurityIncident) -> 401 unauthenticated;
//   - service.ErrInvalidArgument -> 400; service.ErrNotFound -> 404;
//   - service.ErrItemRevoked -> 409;
//   - breaker.ErrOpen -> 503 "service temporarily unavailable";
//   - *gateway.DependencyError: временная -> 503, постоянная -> 502;
//   - context.DeadlineExceeded -> 504, context.Canceled -> 499;
//   - прочее и nil -> 500 internal.
func ToHTTP(err error) (int, ErrorResponse) {
	status, code, msg := classify(err)
	return status, ErrorResponse{Error: APIError{Code: code, Message: msg}}
}

func classify(err error) (int, string, string) {
	var depErr *gateway.DependencyError

	switch {
	case err == nil:
		return http.StatusInternalServerError, "internal", "internal error"
	case errors.Is(err, service.ErrAuthentication):
		return http.StatusUnauthorized, "unauthenticated", "unauthenticated"
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument", "invalid argument"
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, "not_found", "not found"
	case errors.Is(err, service.ErrItemRevoked):
		return http.StatusConflict, "item_revoked", "bank access revoked, link the account again"
	case errors.Is(err, breaker.ErrOpen):
		return http.StatusServiceUnavailable, "unavailable", "service temporarily unavailable"
	case errors.As(err, &depErr) && depErr.Transient:
		return http.StatusServiceUnavailable, "dependency_unavailable", "service temporarily unavailable"
	case errors.As(err, &depErr):
		return http.StatusBadGateway, "dependency_error", "upstream provider rejected the request"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "deadline_exceeded", "deadline exceeded"
	case errors.Is(err, context.Canceled):
		return StatusClientClosedRequest, "canceled", "canceled"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

// WriteError пишет ответ об ошибке. request_id берётся из X-Request-Id.
// Для открытого автомата выставляется Retry-After.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := ToHTTP(err)

	if rid := r.Header.Get("X-Request-Id"); rid != "" {
		resp.Error.RequestID = rid
	}

	var open *breaker.OpenError
	if errors.As(err, &open) {
		secs := int(math.Ceil(time.Until(open.RetryAt).Seconds()))
		if secs < 1 {
			secs = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(secs))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
