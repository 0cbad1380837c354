package labels

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
)

type MutationEnqueuer interface {
	Enqueue(ctx context.Context, mutation *models.Mutation) error
}

type handler struct {
	labelService *Service
	client       remote.Client
	queue        MutationEnqueuer
	hub          *notify.Hub
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateLabelPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Labels are created on the server first so the id is authoritative
	// from the start. Offline creation would need a second identity
	// resolution pass for a rarely hit path, so this call requires network.
	remoteLabel, err := h.client.CreateLabel(ctx, params.Name, params.Color)
	if err != nil {
		return errors.WithStack(err)
	}

	label := &models.Label{
		ID:          remoteLabel.ID,
		Name:        remoteLabel.Name,
		Color:       remoteLabel.Color,
		Description: remoteLabel.Description,
	}
	if err := h.labelService.CreateLabel(ctx, label); err != nil {
		// The server accepted it; a local name conflict means we already
		// have the row from a previous sync.
		if !errcodes.IsConflict(err) {
			return errors.WithStack(err)
		}
	}

	h.hub.Publish(notify.TopicLabels)

	return errors.WithStack(c.JSON(http.StatusOK, label))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListLabelsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	labels, err := h.labelService.ListLabels(ctx, ListLabelsOptions{
		Limit:  pointerutil.Int(params.Limit),
		Offset: pointerutil.Int(params.Offset),
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"labels": labels,
	}))
}

func (h *handler) setItemLabels(c echo.Context) error {
	ctx := c.Request().Context()
	itemID := c.Param("id")

	params := SetItemLabelsPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if err := h.labelService.SetItemLabels(ctx, itemID, params.LabelIDs); err != nil {
		return errors.WithStack(err)
	}

	mutation := &models.Mutation{
		EntityType: models.MutationEntityItem,
		EntityID:   itemID,
		Kind:       models.MutationKindSetLabels,
		DataParsed: &models.MutationLabelsData{LabelIDs: params.LabelIDs},
	}
	if err := h.queue.Enqueue(ctx, mutation); err != nil {
		return errors.WithStack(err)
	}

	h.hub.Publish(notify.TopicItems)
	h.hub.Publish(notify.TopicLabels)

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"updated": true}))
}
