package reconciler

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, syncService *Service) {
	h := &handler{
		syncService: syncService,
	}

	e.POST("/sync", h.sync)
	e.POST("/sync/reset", h.reset)
	e.GET("/sync/status", h.status)
}
