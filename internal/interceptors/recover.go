package interceptors

import (
	"context"
	"log/slog"
	"runtime/debug"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/pribylovaa/flexibill/internal/pkg/log"
)

// PanicObserver получает полное имя метода, обработчик которого запаниковал.
type PanicObserver func(method string)

var errInternal = status.Error(codes.Internal, "internal server error")

// Recover переводит панику unary-обработчика в codes.Internal без деталей.
// Стек пишется в лог panic_recovered, observe (может быть nil) получает метод.
func Recover(base *slog.Logger, observe PanicObserver) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(ctx, base, observe, info.FullMethod, r)
				resp, err = nil, errInternal
			}
		}()

		return handler(ctx, req)
	}
}

// StreamRecover — то же для потоковых вызовов (health Watch).
func StreamRecover(base *slog.Logger, observe PanicObserver) grpc.StreamServerInterceptor {
	return func(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) (err error) {
		defer func() {
			if r := recover(); r != nil {
				handlePanic(ss.Context(), base, observe, info.FullMethod, r)
				err = errInternal
			}
		}()

		return handler(srv, ss)
	}
}

func handlePanic(ctx context.Context, base *slog.Logger, observe PanicObserver, method string, rec any) {
	// Логгер запроса есть, если панику поймали внутри UnaryLoggingInterceptor.
	l := log.From(ctx)
	if l == slog.Default() && base != nil {
		l = base
	}

	attrs := []slog.Attr{
		slog.String("method", method),
		slog.Any("panic", rec),
		slog.String("stack", string(debug.Stack())),
	}
	if rid := requestIDFromMD(ctx); rid != "" {
		attrs = append(attrs, slog.String("request_id", rid))
	}
	l.LogAttrs(ctx, slog.LevelError, "panic_recovered", attrs...)

	if observe != nil {
		observe(method)
	}
}
