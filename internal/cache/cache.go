// cache хранит последние успешные ответы внешних зависимостей.
// ExternalGateway читает их только как fallback при открытом circuit breaker.
package cache

import (
	"context"
	"time"
)

// ResponseCache — минимальный контракт кэша ответов.
type ResponseCache interface {
	// Get возвращает значение и признак его наличия.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set сохраняет значение с TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Close освобождает ресурсы.
	Close() error
}
