// Package checkpoints tracks how far the incremental sync has progressed.
// The checkpoint only ever moves inside the same transaction that merged the
// page it describes, so a crash between pages resumes from the last fully
// merged one.
package checkpoints

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/uptrace/bun"
)

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

// Load returns the current checkpoint. A store that has never synced gets a
// zero checkpoint, which makes the first sync a full fetch.
func (svc *Service) Load(ctx context.Context) (*models.SyncCheckpoint, error) {
	checkpoint := &models.SyncCheckpoint{}

	err := svc.db.
		NewSelect().
		Model(checkpoint).
		Where("id = ?", models.CheckpointRowID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.SyncCheckpoint{ID: models.CheckpointRowID}, nil
		}
		return nil, errors.WithStack(err)
	}

	return checkpoint, nil
}

// Commit writes the checkpoint inside the caller's transaction. LastSyncedAt
// never moves backwards; a mid-pagination commit carries the cursor forward
// while keeping the previous watermark.
func (svc *Service) Commit(ctx context.Context, idb bun.IDB, checkpoint *models.SyncCheckpoint) error {
	existing := &models.SyncCheckpoint{}
	err := idb.
		NewSelect().
		Model(existing).
		Where("id = ?", models.CheckpointRowID).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return errors.WithStack(err)
	}

	if checkpoint.LastSyncedAt.Before(existing.LastSyncedAt) {
		checkpoint.LastSyncedAt = existing.LastSyncedAt
	}

	checkpoint.ID = models.CheckpointRowID
	checkpoint.UpdatedAt = time.Now()

	_, err = idb.
		NewInsert().
		Model(checkpoint).
		On("CONFLICT (id) DO UPDATE").
		Set("last_synced_at = EXCLUDED.last_synced_at").
		Set("cursor = EXCLUDED.cursor").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// Reset clears the checkpoint so the next sync refetches everything.
func (svc *Service) Reset(ctx context.Context) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.SyncCheckpoint)(nil)).
		Where("id = ?", models.CheckpointRowID).
		Exec(ctx)
	return errors.WithStack(err)
}
