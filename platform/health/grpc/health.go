// Package healthgrpc отдаёт состояние health.Registry через стандартный gRPC health service
package healthgrpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	platformhealth "github.com/IggyCloud/eShop/platform/health"
)

// DefaultRefreshInterval период пересчёта статуса в Watch
const DefaultRefreshInterval = 10 * time.Second

// Health обёртка над gRPC health server, статус которого берётся из Registry.
// До первого Refresh сервис NOT_SERVING.
type Health struct {
	srv       *health.Server
	registry  *platformhealth.Registry
	predicate platformhealth.Predicate
}

// New создаёт Health; predicate выбирает проверки, определяющие готовность
func New(registry *platformhealth.Registry, predicate platformhealth.Predicate) *Health {
	if predicate == nil {
		predicate = platformhealth.All
	}
	srv := health.NewServer()
	srv.SetServingStatus("", grpc_health_v1.HealthCheckResponse_NOT_SERVING)
	return &Health{srv: srv, registry: registry, predicate: predicate}
}

// Register регистрирует health service на gRPC сервере.
// Должно вызываться до grpcSrv.Serve.
func (h *Health) Register(grpcSrv *grpc.Server) {
	grpc_health_v1.RegisterHealthServer(grpcSrv, h.srv)
}

// Refresh прогоняет проверки и выставляет общий статус сервера.
// Degraded считается SERVING, как и в HTTP endpoint'е.
func (h *Health) Refresh(ctx context.Context) platformhealth.Status {
	report := h.registry.Run(ctx, h.predicate)
	status := grpc_health_v1.HealthCheckResponse_SERVING
	if report.Status == platformhealth.StatusUnhealthy {
		status = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	return report.Status
}

// Watch пересчитывает статус каждые interval до отмены ctx
func (h *Health) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}
	h.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.Refresh(ctx)
		}
	}
}

// SetNotServing переводит serviceName в NOT_SERVING; пустая строка - весь сервер.
// После Shutdown статус больше не меняется.
func (h *Health) SetNotServing(serviceName string) {
	if serviceName == "" {
		h.srv.Shutdown()
		return
	}
	h.srv.SetServingStatus(serviceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
}
