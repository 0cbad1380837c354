package backfill

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scheduler *Scheduler
}

func RegisterRoutes(e *echo.Echo, scheduler *Scheduler) {
	h := &handler{
		scheduler: scheduler,
	}

	e.POST("/items/:id/backfill", h.backfillItem)
	e.POST("/backfill/rebuild", h.rebuild)
}

func (h *handler) backfillItem(c echo.Context) error {
	h.scheduler.EnqueueItem(c.Param("id"))

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"queued": true,
	}))
}

func (h *handler) rebuild(c echo.Context) error {
	queued, err := h.scheduler.Rebuild(c.Request().Context())
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"queued": queued,
	}))
}
