package server

import (
	"orderengine/internal/config"
	"orderengine/internal/handler"
	"orderengine/internal/metrics"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Health         *handler.HealthHandler
	Order          *handler.OrderHandler
	AdminOrder     *handler.AdminOrderHandler
	ExchangeReturn *handler.ExchangeReturnHandler
}

func RegisterRoutes(e *echo.Echo, cfg config.Config, m *metrics.Metrics, h Handlers) {
	if h.Health != nil {
		h.Health.RegisterRoutes(e)
	}
	e.GET("/metrics", echo.WrapHandler(m.Handler()))

	h.Order.RegisterRoutes(e, cfg)
	h.AdminOrder.RegisterRoutes(e, cfg)
	h.ExchangeReturn.RegisterRoutes(e, cfg)
}
