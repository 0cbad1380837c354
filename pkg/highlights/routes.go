package highlights

import (
	"github.com/labstack/echo/v4"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, queue MutationEnqueuer, hub *notify.Hub) {
	highlightService := NewService(db)

	h := &handler{
		highlightService: highlightService,
		queue:            queue,
		hub:              hub,
	}

	e.GET("/items/:id/highlights", h.listForItem)
	e.PUT("/highlights/:id/labels", h.setLabels)
}
