package tester

import (
	"context"

	"github.com/uptime-induestries/uiotest/pkg/eventbus"
	"github.com/uptime-induestries/uiotest/pkg/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServiceName is the service name the tester reports its status under
const HealthServiceName = "uiotest.Tester"

// healthService maps loop phases onto the standard gRPC health protocol
type healthService struct {
	server *health.Server
	sub    eventbus.Subscriber

	armed bool
}

// NewHealthServiceFor creates a health service following the phases published on bus
func NewHealthServiceFor(bus eventbus.EventBus) *healthService {
	server := health.NewServer()
	server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	server.SetServingStatus(HealthServiceName, healthpb.HealthCheckResponse_NOT_SERVING)

	return &healthService{
		server: server,
		// subscribe right away so no transition published before Run is lost
		sub: bus.Subscribe(TopicPhase, 32, eventbus.MatchType[PhaseEvent]),
	}
}

// Register adds the health service to a gRPC server
func (h *healthService) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Run follows phase events until the context is canceled
func (h *healthService) Run(ctx context.Context) error {
	defer h.sub.Unsubscribe()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return ctx.Err()
		case msg, ok := <-h.sub.C():
			if !ok {
				return nil
			}
			event, ok := msg.(PhaseEvent)
			if !ok {
				continue
			}
			h.apply(ctx, event.Phase)
		}
	}
}

func (h *healthService) apply(ctx context.Context, phase Phase) {
	prev := h.armed
	switch phase {
	case PhaseWaiting:
		h.armed = true
	case PhaseIdle, PhaseStopped:
		h.armed = false
	}
	if prev == h.armed {
		return
	}

	status := healthpb.HealthCheckResponse_NOT_SERVING
	if h.armed {
		status = healthpb.HealthCheckResponse_SERVING
	}
	log.FromContext(ctx).Debug("Health status changed", zap.String("status", status.String()))
	h.server.SetServingStatus("", status)
	h.server.SetServingStatus(HealthServiceName, status)
}
