package items

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
)

// MutationEnqueuer records a local change for the push queue. Implemented by
// the mutations service; an interface here keeps the packages from importing
// each other.
type MutationEnqueuer interface {
	Enqueue(ctx context.Context, mutation *models.Mutation) error
}

type handler struct {
	itemService *Service
	queue       MutationEnqueuer
	hub         *notify.Hub
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	params := CreateItemPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	item, err := h.itemService.SaveLocalPage(ctx, params.URL, params.Title, params.OriginalHTML)
	if err != nil {
		return errors.WithStack(err)
	}

	if item.SyncStatus == models.SyncStatusNeedsCreate {
		mutation := &models.Mutation{
			EntityType: models.MutationEntityItem,
			EntityID:   item.ID,
			Kind:       models.MutationKindCreate,
			DataParsed: &models.MutationCreateData{
				URL:          item.URL,
				Title:        item.Title,
				OriginalHTML: params.OriginalHTML,
			},
		}
		if err := h.queue.Enqueue(ctx, mutation); err != nil {
			return errors.WithStack(err)
		}
	}

	h.hub.Publish(notify.TopicItems)

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	params := ListItemsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	items, total, err := h.itemService.ListItemsWithTotal(ctx, ListItemsOptions{
		Limit:        pointerutil.Int(params.Limit),
		Offset:       pointerutil.Int(params.Offset),
		Archived:     params.Archived,
		ContentState: params.ContentState,
		SyncStatus:   params.SyncStatus,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{
		"items": items,
		"total": total,
	}))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateItemPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	columns := []string{}
	if params.Title != nil && *params.Title != item.Title {
		item.Title = *params.Title
		columns = append(columns, "title")

		mutation := &models.Mutation{
			EntityType: models.MutationEntityItem,
			EntityID:   item.ID,
			Kind:       models.MutationKindUpdateTitle,
			DataParsed: &models.MutationTitleData{Title: *params.Title},
		}
		if err := h.queue.Enqueue(ctx, mutation); err != nil {
			return errors.WithStack(err)
		}
	}
	if params.IsArchived != nil && *params.IsArchived != item.IsArchived {
		item.IsArchived = *params.IsArchived
		columns = append(columns, "is_archived")

		kind := models.MutationKindArchive
		if !*params.IsArchived {
			kind = models.MutationKindUnarchive
		}
		mutation := &models.Mutation{
			EntityType: models.MutationEntityItem,
			EntityID:   item.ID,
			Kind:       kind,
		}
		if err := h.queue.Enqueue(ctx, mutation); err != nil {
			return errors.WithStack(err)
		}
	}

	if len(columns) > 0 {
		if item.SyncStatus == models.SyncStatusSynced {
			item.SyncStatus = models.SyncStatusNeedsUpdate
			columns = append(columns, "sync_status")
		}
		err = h.itemService.UpdateItem(ctx, item, UpdateItemOptions{Columns: columns})
		if err != nil {
			return errors.WithStack(err)
		}
		h.hub.Publish(notify.TopicItems)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) archive(c echo.Context) error {
	return h.setArchived(c, true)
}

func (h *handler) unarchive(c echo.Context) error {
	return h.setArchived(c, false)
}

func (h *handler) setArchived(c echo.Context, archived bool) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	if item.IsArchived == archived {
		return errors.WithStack(c.JSON(http.StatusOK, item))
	}

	item.IsArchived = archived
	columns := []string{"is_archived"}
	if item.SyncStatus == models.SyncStatusSynced {
		item.SyncStatus = models.SyncStatusNeedsUpdate
		columns = append(columns, "sync_status")
	}
	if err := h.itemService.UpdateItem(ctx, item, UpdateItemOptions{Columns: columns}); err != nil {
		return errors.WithStack(err)
	}

	kind := models.MutationKindArchive
	if !archived {
		kind = models.MutationKindUnarchive
	}
	mutation := &models.Mutation{
		EntityType: models.MutationEntityItem,
		EntityID:   item.ID,
		Kind:       kind,
	}
	if err := h.queue.Enqueue(ctx, mutation); err != nil {
		return errors.WithStack(err)
	}

	h.hub.Publish(notify.TopicItems)

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}

	// The row goes away immediately; the server learns about it from the
	// queue. A placeholder that was never created upstream still enqueues
	// the delete so a pending create gets coalesced away.
	if err := h.itemService.DeleteItem(ctx, item.ID); err != nil {
		return errors.WithStack(err)
	}

	mutation := &models.Mutation{
		EntityType: models.MutationEntityItem,
		EntityID:   item.ID,
		Kind:       models.MutationKindDelete,
	}
	if err := h.queue.Enqueue(ctx, mutation); err != nil {
		return errors.WithStack(err)
	}

	h.hub.Publish(notify.TopicItems)

	return errors.WithStack(c.JSON(http.StatusOK, map[string]interface{}{"deleted": true}))
}

func (h *handler) updateProgress(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	params := UpdateProgressPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	item, applied, err := h.itemService.ApplyReadingProgress(ctx, id, params.Progress, params.Anchor)
	if err != nil {
		return errors.WithStack(err)
	}

	if applied {
		mutation := &models.Mutation{
			EntityType: models.MutationEntityItem,
			EntityID:   item.ID,
			Kind:       models.MutationKindUpdateProgress,
			DataParsed: &models.MutationProgressData{
				Progress: params.Progress,
				Anchor:   params.Anchor,
			},
		}
		if err := h.queue.Enqueue(ctx, mutation); err != nil {
			return errors.WithStack(err)
		}
		h.hub.Publish(notify.TopicItems)
	}

	return errors.WithStack(c.JSON(http.StatusOK, item))
}

func (h *handler) retrieveContent(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	item, err := h.itemService.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return errors.WithStack(err)
	}
	if !item.HasContent() {
		return errcodes.NotFound("Content")
	}

	return errors.WithStack(c.HTML(http.StatusOK, *item.Content))
}
