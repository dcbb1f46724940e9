package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/shaun/pagesdeploy/internal/api"
	"github.com/shaun/pagesdeploy/internal/auth"
	"github.com/shaun/pagesdeploy/internal/deploy"
	"github.com/shaun/pagesdeploy/internal/history"
)

func serve(ctx context.Context, svc *deploy.Service) error {
	authMiddleware := auth.ExtractUser("anonymous")
	if *serveUser != "" || *servePassword != "" {
		authMiddleware = auth.BasicAuth(*serveUser, *servePassword)
	} else {
		zap.L().Warn("no --user/--password given, relying on the reverse proxy for authentication")
	}
	handler := api.NewHandler(svc, history.NewStore(*serveHistory), zap.L())
	router := api.NewRouter(handler, authMiddleware)

	addr := *serveAddr
	if p := os.Getenv("PORT"); p != "" {
		addr = ":" + p
	}
	srv := &http.Server{Addr: addr, Handler: router, ReadHeaderTimeout: 10 * time.Second}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errc := make(chan error, 1)
	go func() {
		zap.L().Info("deploy server listening", zap.String("addr", addr), zap.Stringer("target", svc.Target()))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	zap.L().Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
