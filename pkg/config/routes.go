package config

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes registers config routes. The local API only listens on
// loopback, so there's no auth layer in front of these.
func RegisterRoutes(e *echo.Echo, cfg *Config) {
	configService := NewService(cfg)
	h := &handler{configService: configService}

	configGroup := e.Group("/config")
	configGroup.GET("", h.retrieve)
	configGroup.PATCH("", h.update)
}
