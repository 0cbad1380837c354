package reconciler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	syncService *Service
}

func (h *handler) sync(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.syncService.Sync(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, result))
}

// reset clears the checkpoint so the next sync refetches the full library.
// Useful when the local store is suspected to have drifted.
func (h *handler) reset(c echo.Context) error {
	ctx := c.Request().Context()

	if err := h.syncService.checkpointService.Reset(ctx); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}

func (h *handler) status(c echo.Context) error {
	ctx := c.Request().Context()

	status, err := h.syncService.Status(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, status))
}
