package highlights

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
)

type MutationEnqueuer interface {
	Enqueue(ctx context.Context, mutation *models.Mutation) error
}

type handler struct {
	highlightService *Service
	queue            MutationEnqueuer
	hub              *notify.Hub
}

func (h *handler) listForItem(c echo.Context) error {
	ctx := c.Request().Context()
	itemID := c.Param("id")

	highlights, err := h.highlightService.ListItemHighlights(ctx, itemID)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"highlights": highlights,
	}))
}

func (h *handler) setLabels(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := SetHighlightLabelsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if _, err := h.highlightService.RetrieveHighlight(ctx, RetrieveHighlightOptions{ID: &id}); err != nil {
		return errors.WithStack(err)
	}

	if err := h.highlightService.SetHighlightLabels(ctx, id, params.LabelIDs); err != nil {
		return errors.WithStack(err)
	}

	mutation := &models.Mutation{
		EntityType: models.MutationEntityHighlight,
		EntityID:   id,
		Kind:       models.MutationKindSetHighlightLabels,
		DataParsed: &models.MutationLabelsData{LabelIDs: params.LabelIDs},
	}
	if err := h.queue.Enqueue(ctx, mutation); err != nil {
		return errors.WithStack(err)
	}

	h.hub.Publish(notify.TopicHighlights)

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"updated": true}))
}
