package items

import (
	"github.com/labstack/echo/v4"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/uptrace/bun"
)

func RegisterRoutes(e *echo.Echo, db *bun.DB, queue MutationEnqueuer, hub *notify.Hub) {
	itemService := NewService(db)

	h := &handler{
		itemService: itemService,
		queue:       queue,
		hub:         hub,
	}

	e.POST("/items", h.create)
	e.GET("/items", h.list)
	e.GET("/items/:id", h.retrieve)
	e.GET("/items/:id/content", h.retrieveContent)
	e.POST("/items/:id", h.update)
	e.POST("/items/:id/archive", h.archive)
	e.POST("/items/:id/unarchive", h.unarchive)
	e.DELETE("/items/:id", h.delete)
	e.POST("/items/:id/progress", h.updateProgress)
}
