package main

import (
	"context"
	"fmt"
	"net"

	"vigila/src/alerts"
	"vigila/src/config"
	pb "vigila/src/grpc_control"
	"vigila/src/interfaces"
	"vigila/src/logger"
	"vigila/src/utils"

	"google.golang.org/grpc"
)

// -----------------------------------------------------------------------------

// startServers orchestrates the startup of all server components. A server
// that fails to start cancels ctx through fail, which stops the process. The
// returned gRPC server is nil when it could not listen.
func startServers(
	ctx context.Context,
	fail context.CancelCauseFunc,
	srv interfaces.IDataExchanger,
	job *alerts.Job,
	store interfaces.IWatchlistStore,
	cfg *config.Config,
	appLogger *logger.Logger,
) *grpc.Server {

	// 1. API server
	go func() {
		if err := srv.Start(); err != nil {
			appLogger.Error("Server failed: %v", err)
			fail(fmt.Errorf("api server: %w", err))
		}
	}()

	// 2. Alert schedule
	if job != nil {
		sched, err := utils.NewMarketScheduler(job.Exchange, cfg.Alerts.RunAt, appLogger.Named("Scheduler"))
		if err != nil {
			appLogger.Error("Alert schedule disabled: %v", err)
		} else {
			go sched.Run(ctx, func(ctx context.Context) {
				if _, err := job.Run(ctx, false); err != nil {
					appLogger.Error("Scheduled alert run failed: %v", err)
				}
			})
		}
	}

	// 3. gRPC Control Server
	port := cfg.GrpcPort
	if port == 0 {
		port = 50051 // Default fallback
	}
	lis, err := net.Listen("tcp", fmt.Sprintf("%s:%d", cfg.GrpcHost, port))
	if err != nil {
		appLogger.Error("failed to listen for gRPC: %v", err)
		fail(fmt.Errorf("grpc listen: %w", err))
		return nil
	}
	grpcServer := grpc.NewServer()
	pb.RegisterControlServer(grpcServer, pb.NewControlService(job, store, appLogger.Named("ControlService")))

	go func() {
		appLogger.Info("Starting gRPC Control Server on %s", lis.Addr())
		if err := grpcServer.Serve(lis); err != nil {
			appLogger.Error("failed to serve gRPC: %v", err)
			fail(fmt.Errorf("grpc serve: %w", err))
		}
	}()
	return grpcServer
}
