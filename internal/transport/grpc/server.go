// grpc поднимает gRPC-сервер со стандартным health-сервисом.
//
// Статус "" отражает готовность процесса. Для каждой внешней зависимости
// заводится отдельный сервис health с её именем: автомат в Open даёт
// NOT_SERVING, Closed и HalfOpen дают SERVING. Так оркестратор и соседние
// сервисы видят деградацию провайдера, не дёргая его.
package grpc

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	grpc_prometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/pribylovaa/flexibill/internal/breaker"
	"github.com/pribylovaa/flexibill/internal/interceptors"
)

// Options — параметры сервера.
type Options struct {
	// Timeout — дедлайн вызова по умолчанию.
	Timeout time.Duration
	// Reflection включает reflection API (local/dev).
	Reflection bool
	// Metrics включает go-grpc-prometheus.
	Metrics bool
	// OnPanic получает метод, обработчик которого запаниковал; может быть nil.
	OnPanic interceptors.PanicObserver
}

// Server — gRPC-сервер с health-сервисом.
type Server struct {
	srv    *grpc.Server
	health *health.Server
	log    *slog.Logger
}

// New создаёт сервер и регистрирует health.
func New(logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	unary := []grpc.UnaryServerInterceptor{
		interceptors.Recover(logger, opts.OnPanic),
		interceptors.UnaryLoggingInterceptor(logger),
		interceptors.WithTimeout(opts.Timeout),
	}
	stream := []grpc.StreamServerInterceptor{
		interceptors.StreamRecover(logger, opts.OnPanic),
	}
	if opts.Metrics {
		grpc_prometheus.EnableHandlingTimeHistogram()
		unary = append(unary, grpc_prometheus.UnaryServerInterceptor)
		stream = append(stream, grpc_prometheus.StreamServerInterceptor)
	}

	srv := grpc.NewServer(
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)

	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	if opts.Reflection {
		reflection.Register(srv)
	}
	if opts.Metrics {
		grpc_prometheus.Register(srv)
	}

	return &Server{srv: srv, health: hs, log: logger}
}

// SetReady переключает общий статус процесса.
func (s *Server) SetReady(ready bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
}

// TrackBreakers выставляет статусы зависимостей по снимкам реестра.
func (s *Server) TrackBreakers(snapshots []breaker.Snapshot) {
	for _, snap := range snapshots {
		s.health.SetServingStatus(snap.Name, servingFor(snap.State))
	}
}

// BreakerStateChanged — хук реестра автоматов.
func (s *Server) BreakerStateChanged(name string, _, to breaker.State) {
	s.health.SetServingStatus(name, servingFor(to))
}

func servingFor(st breaker.State) healthpb.HealthCheckResponse_ServingStatus {
	if st == breaker.Open {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Serve обслуживает lis до остановки.
func (s *Server) Serve(lis net.Listener) error {
	s.log.Info("grpc_listen_start", slog.String("addr", lis.Addr().String()))

	if err := s.srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}

// Shutdown переводит health в NOT_SERVING и останавливает сервер.
// Если активные вызовы не завершились до ctx, сервер останавливается принудительно.
func (s *Server) Shutdown(ctx context.Context) {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.srv.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("grpc_stopped")
	case <-ctx.Done():
		s.log.Warn("grpc_force_stop")
		s.srv.Stop()
	}
}
