package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"orderengine/internal/config"
	"orderengine/internal/metrics"
	"orderengine/internal/middleware"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func New(cfg config.Config, log *zap.Logger, m *metrics.Metrics, h Handlers) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	//本番以外はechoのエラーに内部メッセージを含める
	e.Debug = !cfg.IsProd()

	e.Use(middleware.RequestLogger(log, m))
	e.Use(echomw.Recover())

	RegisterRoutes(e, cfg, m, h)
	return e
}

// ctxが終わるまでServeして、終わったらgracefulに止める
func Run(ctx context.Context, e *echo.Echo, addr string, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("http server started", zap.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	log.Info("http server shutting down")
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
