package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/mayanksahu17/binary-system-sub003/internal/application"
)

type BonusInternalServer struct {
	grpc_health_v1.UnimplementedHealthServer
	service *application.Service
}

func NewBonusInternalServer(service *application.Service) *BonusInternalServer {
	return &BonusInternalServer{service: service}
}

func Register(server grpc.ServiceRegistrar, svc *BonusInternalServer) {
	grpc_health_v1.RegisterHealthServer(server, svc)
}

func (s *BonusInternalServer) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	_ = ctx
	_ = req
	return &grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING}, nil
}

func (s *BonusInternalServer) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	_ = req
	return stream.Send(&grpc_health_v1.HealthCheckResponse{Status: grpc_health_v1.HealthCheckResponse_SERVING})
}
