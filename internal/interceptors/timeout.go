package interceptors

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// errServiceTimeout — причина отмены по серверному дедлайну.
var errServiceTimeout = errors.New("service timeout exceeded")

// WithTimeout ограничивает вызов дедлайном d. Более ранний дедлайн клиента
// сохраняется; d <= 0 отключает интерсептор.
//
// Если вызов прерван именно серверным дедлайном, а обработчик вернул
// «сырую» ошибку контекста, она заменяется на codes.DeadlineExceeded.
func WithTimeout(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}

		ctx, cancel := context.WithTimeoutCause(ctx, d, errServiceTimeout)
		defer cancel()

		resp, err := handler(ctx, req)
		if err != nil && errors.Is(context.Cause(ctx), errServiceTimeout) {
			if _, ok := status.FromError(err); !ok {
				return resp, status.Error(codes.DeadlineExceeded, errServiceTimeout.Error())
			}
		}

		return resp, err
	}
}
