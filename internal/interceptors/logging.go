// interceptors — серверные unary-интерсепторы gRPC: логирование с request id,
// перехват паник и таймаут по умолчанию.
package interceptors

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/flexibill/internal/pkg/log"
)

// RequestIDKey — ключ metadata с идентификатором запроса.
const RequestIDKey = "x-request-id"

// UnaryLoggingInterceptor кладёт в контекст логгер с request_id, method и peer
// и пишет одну запись "grpc" по завершении вызова. Уровень зависит от кода:
// Internal/Unknown/Unavailable — Error, прочие ошибки — Warn, OK — Info.
// Health-проверки пишутся на уровне Debug.
func UnaryLoggingInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		rid := requestIDFromMD(ctx)
		if rid == "" {
			rid = uuid.NewString()
		}

		peerAddr := "-"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			peerAddr = p.Addr.String()
		}

		l := base.With(
			slog.String("request_id", rid),
			slog.String("method", info.FullMethod),
			slog.String("peer", peerAddr),
		)

		resp, err := handler(log.Into(ctx, l), req)

		code := status.Code(err)
		l.Log(ctx, levelFor(info.FullMethod, code), "grpc",
			slog.String("code", code.String()),
			slog.Duration("dur", time.Since(start)),
		)

		return resp, err
	}
}

func levelFor(method string, code codes.Code) slog.Level {
	switch code {
	case codes.OK:
		if method == "/grpc.health.v1.Health/Check" {
			return slog.LevelDebug
		}
		return slog.LevelInfo
	case codes.Internal, codes.Unknown, codes.Unavailable, codes.DataLoss:
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// requestIDFromMD — x-request-id из входящих metadata, если клиент его передал.
func requestIDFromMD(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if v := md.Get(RequestIDKey); len(v) > 0 {
		return v[0]
	}
	return ""
}
