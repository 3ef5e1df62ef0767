package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"wikicache/internal/server"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Serve runs the web server and, when configured, the archive GC loop until
// ctx is cancelled. An empty addr uses server.addr from the config.
func (a *App) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = a.Config.Server.Addr
	}
	srv, err := server.New(a.Service, server.Options{
		Addr:         addr,
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		PageSize:     a.Config.Server.PageSize,
	}, a.Logger)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gcDone := make(chan struct{})
	go func() {
		defer close(gcDone)
		a.RunArchiveGC(ctx)
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		cancel()
		<-gcDone
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := srv.Stop(shutdownCtx); err != nil {
		a.Logger.Error("Server shutdown failed", zap.Error(err))
		return err
	}
	<-gcDone
	a.Logger.Info("Goodbye!")
	return nil
}
