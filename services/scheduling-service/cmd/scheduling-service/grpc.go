package main

import (
	"context"
	"log/slog"
	"net"

	"github.com/md-rashed-zaman/apptscheduler/libs/config"
	"github.com/md-rashed-zaman/apptscheduler/libs/grpcx"
	"google.golang.org/grpc/health"
)

// startGrpcServer exposes the standard gRPC health service for orchestrators.
func startGrpcServer(ctx context.Context, logger *slog.Logger, service string) (*health.Server, error) {
	port, err := config.Port("GRPC_PORT", "9093")
	if err != nil {
		return nil, err
	}
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return nil, err
	}

	srv, hs := grpcx.NewServer(logger, service)

	go func() {
		logger.Info("grpc server starting", "addr", lis.Addr().String())
		if err := srv.Serve(lis); err != nil {
			logger.Error("grpc server error", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		srv.GracefulStop()
	}()

	return hs, nil
}
