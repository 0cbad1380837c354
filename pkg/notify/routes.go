package notify

import (
	"github.com/labstack/echo/v4"
)

func RegisterRoutes(e *echo.Echo, hub *Hub) {
	h := &handler{hub: hub}

	e.GET("/events", h.poll)
}
