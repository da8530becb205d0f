package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/iurnickita/orderexport/internal/auth"
	"github.com/iurnickita/orderexport/internal/config"
	"github.com/iurnickita/orderexport/internal/handler"
	"github.com/iurnickita/orderexport/internal/logger"
	"github.com/iurnickita/orderexport/internal/service"
	"github.com/iurnickita/orderexport/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	service, err := service.NewService(cfg.Service, store, zaplog)
	if err != nil {
		return err
	}
	defer service.Shutdown()

	auth := auth.NewAuth(cfg.Auth, service, zaplog)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zaplog.Info("orderexport starting",
		zap.String("addr", cfg.Handler.ServerAddr),
		zap.String("platform", cfg.Service.Platform.Addr),
		zap.Bool("postgres", cfg.Store.DBDsn != ""))
	return handler.Serve(ctx, cfg.Handler, auth, service, zaplog)
}
