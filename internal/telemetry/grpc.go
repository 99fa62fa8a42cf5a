package telemetry

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
)

// NewGRPCServer returns a gRPC server that records a span per call. Without
// options spans go to the global TracerProvider installed by SetupTracer.
func NewGRPCServer(opts ...otelgrpc.Option) *grpc.Server {
	return grpc.NewServer(grpc.StatsHandler(otelgrpc.NewServerHandler(opts...)))
}
