// Package reconciler pulls the server's incremental change feed into the
// local store. Each page is merged and checkpointed in one transaction, so a
// crash mid-sync loses at most the page in flight and never produces a
// checkpoint ahead of the data it describes.
package reconciler

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tsundokuapp/tsundoku/pkg/checkpoints"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/highlights"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/labels"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/mutations"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

// ContentEnqueuer schedules background content fetches for items that
// arrived without a body. Implemented by the backfill scheduler.
type ContentEnqueuer interface {
	EnqueueItem(itemID string)
}

type SyncResult struct {
	StartedAt       time.Time `json:"started_at"`
	Duration        string    `json:"duration"`
	Pages           int       `json:"pages"`
	ItemsUpserted   int       `json:"items_upserted"`
	ItemsDeleted    int       `json:"items_deleted"`
	MutationsPushed int       `json:"mutations_pushed"`
}

type SyncStatus struct {
	Syncing          bool       `json:"syncing"`
	LastSyncedAt     *time.Time `json:"last_synced_at"`
	LastError        *string    `json:"last_error"`
	PendingMutations int        `json:"pending_mutations"`
}

type inflightSync struct {
	done   chan struct{}
	result *SyncResult
	err    error
}

type Service struct {
	config *config.Config
	log    logger.Logger

	db                *bun.DB
	client            remote.Client
	itemService       *items.Service
	labelService      *labels.Service
	highlightService  *highlights.Service
	checkpointService *checkpoints.Service
	mutationService   *mutations.Service
	backfill          ContentEnqueuer
	hub               *notify.Hub

	mu        sync.Mutex
	inflight  *inflightSync
	lastError error
}

func NewService(cfg *config.Config, db *bun.DB, client remote.Client, mutationService *mutations.Service, backfill ContentEnqueuer, hub *notify.Hub) *Service {
	return &Service{
		config:            cfg,
		log:               logger.New(),
		db:                db,
		client:            client,
		itemService:       items.NewService(db),
		labelService:      labels.NewService(db),
		highlightService:  highlights.NewService(db),
		checkpointService: checkpoints.NewService(db),
		mutationService:   mutationService,
		backfill:          backfill,
		hub:               hub,
	}
}

// Sync runs one full reconciliation: push the mutation queue, then pull
// pages until the server has no more. Concurrent callers coalesce onto the
// sync already in flight and share its result.
func (svc *Service) Sync(ctx context.Context) (*SyncResult, error) {
	svc.mu.Lock()
	if svc.inflight != nil {
		waiting := svc.inflight
		svc.mu.Unlock()

		select {
		case <-waiting.done:
			return waiting.result, waiting.err
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		}
	}

	current := &inflightSync{done: make(chan struct{})}
	svc.inflight = current
	svc.mu.Unlock()

	result, err := svc.sync(ctx)
	current.result = result
	current.err = err

	svc.mu.Lock()
	svc.inflight = nil
	svc.lastError = err
	svc.mu.Unlock()
	close(current.done)

	return result, err
}

func (svc *Service) sync(ctx context.Context) (*SyncResult, error) {
	result := &SyncResult{StartedAt: time.Now()}

	// Local changes go first so the pull can't overwrite a buffered write
	// with the server's stale view of it.
	pushed, err := svc.mutationService.Drain(ctx)
	result.MutationsPushed = pushed
	if err != nil {
		return nil, err
	}

	checkpoint, err := svc.checkpointService.Load(ctx)
	if err != nil {
		return nil, err
	}

	// Changes that land on the server while this sync runs belong to the
	// next one; the watermark only ever advances to the moment this sync
	// started.
	syncStartTime := time.Now()
	since := checkpoint.LastSyncedAt
	cursor := checkpoint.Cursor

	for {
		page, err := svc.client.ListChanges(ctx, since, cursor, svc.config.SyncPageSize)
		if err != nil {
			// A stored cursor can expire server-side. Fall back to the
			// watermark and repage instead of wedging the sync.
			if cursor != nil && errcodes.IsDecode(err) {
				svc.log.Err(err).Warn("stored cursor rejected, repaging from watermark")
				if resetErr := svc.checkpointService.Commit(ctx, svc.db, &models.SyncCheckpoint{LastSyncedAt: since}); resetErr != nil {
					return nil, resetErr
				}
				cursor = nil
				continue
			}
			return nil, err
		}

		backfillIDs, err := svc.mergePage(ctx, page, since, syncStartTime)
		if err != nil {
			return nil, err
		}

		result.Pages++
		result.ItemsUpserted += len(page.Items)
		result.ItemsDeleted += len(page.DeletedItemIDs)

		for _, id := range backfillIDs {
			svc.backfill.EnqueueItem(id)
		}

		if !page.HasMore {
			break
		}
		cursor = page.Cursor
	}

	if err := svc.syncLabelCatalog(ctx); err != nil {
		return nil, err
	}

	result.Duration = time.Since(result.StartedAt).String()

	svc.hub.Publish(notify.TopicItems)
	svc.hub.Publish(notify.TopicLabels)
	svc.hub.Publish(notify.TopicHighlights)
	svc.hub.Publish(notify.TopicSync)

	svc.log.Info("sync finished", logger.Data{
		"pages":    result.Pages,
		"upserted": result.ItemsUpserted,
		"deleted":  result.ItemsDeleted,
		"pushed":   result.MutationsPushed,
	})

	return result, nil
}

// mergePage applies one page and moves the checkpoint in a single
// transaction. Returns the ids of merged items that still need content.
func (svc *Service) mergePage(ctx context.Context, page *remote.ChangePage, since, syncStartTime time.Time) ([]string, error) {
	backfillIDs := []string{}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, ri := range page.Items {
			for _, rl := range ri.Labels {
				if _, err := svc.labelService.UpsertFromRemote(ctx, tx, rl); err != nil {
					return err
				}
			}
			for _, rh := range ri.Highlights {
				for _, rl := range rh.Labels {
					if _, err := svc.labelService.UpsertFromRemote(ctx, tx, rl); err != nil {
						return err
					}
				}
			}

			item, err := svc.itemService.UpsertFromRemote(ctx, tx, ri)
			if err != nil {
				return err
			}

			if err := svc.labelService.ReplaceItemLabels(ctx, tx, item.ID, labelIDs(ri.Labels)); err != nil {
				return err
			}
			if err := svc.highlightService.ReplaceItemHighlights(ctx, tx, item.ID, ri.Highlights); err != nil {
				return err
			}

			if needsContent(item) {
				backfillIDs = append(backfillIDs, item.ID)
			}
		}

		if err := svc.itemService.DeleteFromRemote(ctx, tx, page.DeletedItemIDs); err != nil {
			return err
		}

		checkpoint := &models.SyncCheckpoint{}
		if page.HasMore {
			checkpoint.LastSyncedAt = since
			checkpoint.Cursor = page.Cursor
		} else {
			checkpoint.LastSyncedAt = syncStartTime
			checkpoint.Cursor = nil
		}

		return svc.checkpointService.Commit(ctx, tx, checkpoint)
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return backfillIDs, nil
}

// syncLabelCatalog pulls the full label list. The change feed only carries
// labels attached to items, so a label created elsewhere with nothing tagged
// yet would otherwise never show up in the local picker.
func (svc *Service) syncLabelCatalog(ctx context.Context) error {
	remoteLabels, err := svc.client.ListLabels(ctx)
	if err != nil {
		return err
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		for _, rl := range remoteLabels {
			if _, err := svc.labelService.UpsertFromRemote(ctx, tx, rl); err != nil {
				return err
			}
		}
		return nil
	})
	return errors.WithStack(err)
}

func needsContent(item *models.Item) bool {
	if item.IsArchived {
		return false
	}
	if item.ContentReader == models.ContentReaderPDF {
		return item.LocalPDF == nil
	}
	if item.ContentState == models.ContentStateFailed || item.ContentState == models.ContentStateAbandoned {
		return false
	}
	return !item.HasContent()
}

func (svc *Service) Status(ctx context.Context) (*SyncStatus, error) {
	checkpoint, err := svc.checkpointService.Load(ctx)
	if err != nil {
		return nil, err
	}

	pending, err := svc.mutationService.PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	svc.mu.Lock()
	defer svc.mu.Unlock()

	status := &SyncStatus{
		Syncing:          svc.inflight != nil,
		PendingMutations: pending,
	}
	if !checkpoint.LastSyncedAt.IsZero() {
		t := checkpoint.LastSyncedAt
		status.LastSyncedAt = &t
	}
	if svc.lastError != nil {
		msg := svc.lastError.Error()
		status.LastError = &msg
	}

	return status, nil
}

func labelIDs(rls []remote.RemoteLabel) []string {
	ids := make([]string, 0, len(rls))
	for _, rl := range rls {
		ids = append(ids, rl.ID)
	}
	return ids
}
