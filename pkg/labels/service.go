package labels

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type RetrieveLabelOptions struct {
	ID   *string
	Name *string
}

type ListLabelsOptions struct {
	Limit  *int
	Offset *int
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateLabel(ctx context.Context, label *models.Label) error {
	existing, err := svc.RetrieveLabel(ctx, RetrieveLabelOptions{Name: &label.Name})
	if err != nil && !errcodes.IsNotFound(err) {
		return err
	}
	if existing != nil {
		return errcodes.Conflict("A label with that name already exists.")
	}

	now := time.Now()
	if label.CreatedAt.IsZero() {
		label.CreatedAt = now
	}
	label.UpdatedAt = label.CreatedAt

	if label.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		label.ID = id.String()
	}

	_, err = svc.db.
		NewInsert().
		Model(label).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) RetrieveLabel(ctx context.Context, opts RetrieveLabelOptions) (*models.Label, error) {
	label := &models.Label{}

	q := svc.db.
		NewSelect().
		Model(label)

	if opts.ID != nil {
		q = q.Where("l.id = ?", *opts.ID)
	}
	if opts.Name != nil {
		// Names collide case-insensitively; "Tech" and "tech" are one label.
		q = q.Where("l.name = ? COLLATE NOCASE", *opts.Name)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Label")
		}
		return nil, errors.WithStack(err)
	}

	return label, nil
}

func (svc *Service) ListLabels(ctx context.Context, opts ListLabelsOptions) ([]*models.Label, error) {
	labels := []*models.Label{}

	q := svc.db.
		NewSelect().
		Model(&labels).
		ColumnExpr("l.*").
		ColumnExpr("(SELECT COUNT(*) FROM item_labels il WHERE il.label_id = l.id) AS item_count").
		Order("l.name ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return labels, nil
}

// UpsertFromRemote writes a server label inside the caller's transaction.
// The server id wins over any locally created label with the same name.
func (svc *Service) UpsertFromRemote(ctx context.Context, idb bun.IDB, rl remote.RemoteLabel) (*models.Label, error) {
	now := time.Now()
	label := &models.Label{
		ID:          rl.ID,
		Name:        rl.Name,
		Color:       rl.Color,
		Description: rl.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// A locally created label with the same name but a different id gets
	// re-keyed to the server id so cross-references stay intact.
	local := &models.Label{}
	err := idb.
		NewSelect().
		Model(local).
		Where("l.name = ? COLLATE NOCASE", rl.Name).
		Where("l.id != ?", rl.ID).
		Scan(ctx)
	if err == nil {
		if err := rekeyLabel(ctx, idb, local.ID, rl.ID); err != nil {
			return nil, err
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	_, err = idb.
		NewInsert().
		Model(label).
		On("CONFLICT (id) DO UPDATE").
		Set("name = EXCLUDED.name").
		Set("color = EXCLUDED.color").
		Set("description = EXCLUDED.description").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return label, nil
}

func rekeyLabel(ctx context.Context, idb bun.IDB, oldID, newID string) error {
	_, err := idb.
		NewUpdate().
		Model((*models.Label)(nil)).
		Set("id = ?", newID).
		Where("id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewUpdate().
		Model((*models.ItemLabel)(nil)).
		Set("label_id = ?", newID).
		Where("label_id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewUpdate().
		Model((*models.HighlightLabel)(nil)).
		Set("label_id = ?", newID).
		Where("label_id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ReplaceItemLabels swaps an item's label set wholesale inside the caller's
// transaction. The incoming set is authoritative; replaying the same set is
// a no-op in effect.
func (svc *Service) ReplaceItemLabels(ctx context.Context, idb bun.IDB, itemID string, labelIDs []string) error {
	_, err := idb.
		NewDelete().
		Model((*models.ItemLabel)(nil)).
		Where("item_id = ?", itemID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(labelIDs) == 0 {
		return nil
	}

	crossRefs := make([]*models.ItemLabel, 0, len(labelIDs))
	for _, labelID := range labelIDs {
		crossRefs = append(crossRefs, &models.ItemLabel{
			ItemID:  itemID,
			LabelID: labelID,
		})
	}

	_, err = idb.
		NewInsert().
		Model(&crossRefs).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// SetItemLabels is the local-API entry point: it replaces the set in its own
// transaction and flags the item for push.
func (svc *Service) SetItemLabels(ctx context.Context, itemID string, labelIDs []string) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := svc.ReplaceItemLabels(ctx, tx, itemID, labelIDs); err != nil {
			return err
		}

		_, err := tx.
			NewUpdate().
			Model((*models.Item)(nil)).
			Set("sync_status = ?", models.SyncStatusNeedsUpdate).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", itemID).
			Where("sync_status = ?", models.SyncStatusSynced).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}
