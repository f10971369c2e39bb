package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"gamevault/internal/auth"
	"gamevault/internal/events"
	"gamevault/internal/grpcserver"
	"gamevault/internal/library"
	"gamevault/pkg/database"
	"gamevault/pkg/logging"
	"gamevault/pkg/utils"
)

func main() {
	configDir := flag.String("config", "", "directory holding gamevault.yaml")
	flag.Parse()

	cfg, err := utils.LoadConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	db, err := database.OpenAndMigrate(database.DefaultConfig(cfg.Server.DBPath), database.SchemaServer)
	if err != nil {
		logger.Fatal("open database", zap.Error(err))
	}
	defer db.Close()

	var pub events.Publisher = events.NoopPublisher{}
	if cfg.Server.NATSURL != "" {
		np, err := events.NewNATSPublisher(cfg.Server.NATSURL)
		if err != nil {
			logger.Fatal("connect nats", zap.Error(err))
		}
		pub = np
	}
	defer pub.Close()

	listener, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Fatal("grpc listen failed", zap.Error(err))
	}

	svc := grpcserver.NewServer(library.NewRepo(db), library.NewNotifier(nil, pub, logger))
	srv := grpcserver.NewGRPCServer(svc, auth.NewTokenService(cfg.Auth), auth.NewRepo(db), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		logger.Info("shutting down gRPC server")
		srv.GracefulStop()
	}()

	logger.Info("gRPC server listening", zap.String("addr", cfg.Server.GRPCAddr))
	if err := srv.Serve(listener); err != nil {
		logger.Fatal("grpc server stopped", zap.Error(err))
	}
}
