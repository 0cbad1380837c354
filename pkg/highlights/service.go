package highlights

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type RetrieveHighlightOptions struct {
	ID *string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) RetrieveHighlight(ctx context.Context, opts RetrieveHighlightOptions) (*models.Highlight, error) {
	highlight := &models.Highlight{}

	q := svc.db.
		NewSelect().
		Model(highlight).
		Relation("HighlightLabels.Label")

	if opts.ID != nil {
		q = q.Where("h.id = ?", *opts.ID)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Highlight")
		}
		return nil, errors.WithStack(err)
	}

	return highlight, nil
}

func (svc *Service) ListItemHighlights(ctx context.Context, itemID string) ([]*models.Highlight, error) {
	highlights := []*models.Highlight{}

	err := svc.db.
		NewSelect().
		Model(&highlights).
		Join("JOIN item_highlights ih ON ih.highlight_id = h.id").
		Where("ih.item_id = ?", itemID).
		Relation("HighlightLabels.Label").
		Order("h.created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return highlights, nil
}

// UpsertFromRemote writes one server highlight inside the caller's
// transaction, including its label cross-references.
func (svc *Service) UpsertFromRemote(ctx context.Context, idb bun.IDB, rh remote.RemoteHighlight) (*models.Highlight, error) {
	now := time.Now()
	highlightType := rh.Type
	if highlightType == "" {
		highlightType = models.HighlightTypeHighlight
	}

	highlight := &models.Highlight{
		ID:          rh.ID,
		ShortID:     rh.ShortID,
		Type:        highlightType,
		Quote:       rh.Quote,
		Prefix:      rh.Prefix,
		Suffix:      rh.Suffix,
		Patch:       rh.Patch,
		Annotation:  rh.Annotation,
		CreatedByMe: rh.CreatedByMe,
		SyncStatus:  models.SyncStatusSynced,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := idb.
		NewInsert().
		Model(highlight).
		On("CONFLICT (id) DO UPDATE").
		Set("short_id = EXCLUDED.short_id").
		Set("type = EXCLUDED.type").
		Set("quote = EXCLUDED.quote").
		Set("prefix = EXCLUDED.prefix").
		Set("suffix = EXCLUDED.suffix").
		Set("patch = EXCLUDED.patch").
		Set("annotation = EXCLUDED.annotation").
		Set("created_by_me = EXCLUDED.created_by_me").
		Set("sync_status = EXCLUDED.sync_status").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	if err := replaceHighlightLabels(ctx, idb, rh.ID, labelIDs(rh.Labels)); err != nil {
		return nil, err
	}

	return highlight, nil
}

// ReplaceItemHighlights makes the incoming set the item's full highlight set
// inside the caller's transaction. Highlights the server no longer reports
// for this item lose their cross-reference; the rows themselves are cleaned
// up once nothing references them.
func (svc *Service) ReplaceItemHighlights(ctx context.Context, idb bun.IDB, itemID string, rhs []remote.RemoteHighlight) error {
	_, err := idb.
		NewDelete().
		Model((*models.ItemHighlight)(nil)).
		Where("item_id = ?", itemID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(rhs) == 0 {
		return svc.pruneOrphans(ctx, idb)
	}

	crossRefs := make([]*models.ItemHighlight, 0, len(rhs))
	for _, rh := range rhs {
		if _, err := svc.UpsertFromRemote(ctx, idb, rh); err != nil {
			return err
		}
		crossRefs = append(crossRefs, &models.ItemHighlight{
			ItemID:      itemID,
			HighlightID: rh.ID,
		})
	}

	_, err = idb.
		NewInsert().
		Model(&crossRefs).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return svc.pruneOrphans(ctx, idb)
}

func (svc *Service) pruneOrphans(ctx context.Context, idb bun.IDB) error {
	_, err := idb.
		NewDelete().
		Model((*models.HighlightLabel)(nil)).
		Where("highlight_id NOT IN (SELECT highlight_id FROM item_highlights)").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewDelete().
		Model((*models.Highlight)(nil)).
		Where("id NOT IN (SELECT highlight_id FROM item_highlights)").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// SetHighlightLabels replaces a highlight's labels locally and flags it for
// push.
func (svc *Service) SetHighlightLabels(ctx context.Context, highlightID string, ids []string) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := replaceHighlightLabels(ctx, tx, highlightID, ids); err != nil {
			return err
		}

		_, err := tx.
			NewUpdate().
			Model((*models.Highlight)(nil)).
			Set("sync_status = ?", models.SyncStatusNeedsUpdate).
			Set("updated_at = ?", time.Now()).
			Where("id = ?", highlightID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}

// DeleteFromRemote removes a highlight the server no longer knows about,
// along with its cross-references, inside the caller's transaction.
func (svc *Service) DeleteFromRemote(ctx context.Context, idb bun.IDB, id string) error {
	_, err := idb.
		NewDelete().
		Model((*models.HighlightLabel)(nil)).
		Where("highlight_id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewDelete().
		Model((*models.ItemHighlight)(nil)).
		Where("highlight_id = ?", id).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewDelete().
		Model((*models.Highlight)(nil)).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

// MarkSynced clears the pending flag after the mutation queue pushed the
// change upstream.
func (svc *Service) MarkSynced(ctx context.Context, id string) error {
	_, err := svc.db.
		NewUpdate().
		Model((*models.Highlight)(nil)).
		Set("sync_status = ?", models.SyncStatusSynced).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

func replaceHighlightLabels(ctx context.Context, idb bun.IDB, highlightID string, ids []string) error {
	_, err := idb.
		NewDelete().
		Model((*models.HighlightLabel)(nil)).
		Where("highlight_id = ?", highlightID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	if len(ids) == 0 {
		return nil
	}

	crossRefs := make([]*models.HighlightLabel, 0, len(ids))
	for _, labelID := range ids {
		crossRefs = append(crossRefs, &models.HighlightLabel{
			HighlightID: highlightID,
			LabelID:     labelID,
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

func labelIDs(labels []remote.RemoteLabel) []string {
	ids := make([]string, 0, len(labels))
	for _, l := range labels {
		ids = append(ids, l.ID)
	}
	return ids
}
