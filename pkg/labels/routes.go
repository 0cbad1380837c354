package labels

import (
	"github.com/labstack/echo/v4"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, client remote.Client, queue MutationEnqueuer, hub *notify.Hub) {
	labelService := NewService(db)

	h := &handler{
		labelService: labelService,
		client:       client,
		queue:        queue,
		hub:          hub,
	}

	e.GET("/labels", h.list)
	e.POST("/labels", h.create)
	e.PUT("/items/:id/labels", h.setItemLabels)
}
