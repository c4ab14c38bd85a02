// handlers — REST-обработчики flexibill поверх сервисного слоя.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/service"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// Handlers агрегирует зависимости обработчиков.
type Handlers struct {
	Tokens   *service.TokenService
	Cleanup  *service.CleanupService
	Items    *service.ItemService
	Webhooks *service.WebhookService
	Breakers *breaker.Registry
	// Gatherer отдаёт метрики на /metrics; nil — prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	// Ready — флаг готовности для /healthz; nil — всегда готов.
	Ready *atomic.Bool
	// Pingers — хранилища, проверяемые /healthz, по имени.
	Pingers map[string]Pinger
}

// writeJSON — единый ответ JSON с нужным Content-Type.
// Ошибки выводим через apierrors.WriteError.
func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict — строгий JSON-декодер: неизвестные поля и хвост после
// объекта считаются ошибкой клиента.
func decodeStrict(w http.ResponseWriter, r *http.Request, value any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(value); err != nil {
		return fmt.Errorf("decode body: %w", service.ErrInvalidArgument)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return fmt.Errorf("decode body: trailing data: %w", service.ErrInvalidArgument)
	}

	return nil
}
