package mutations

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/highlights"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type ListMutationsOptions struct {
	Limit      *int
	EntityType *string
	EntityID   *string
}

type Service struct {
	db               *bun.DB
	client           remote.Client
	itemService      *items.Service
	highlightService *highlights.Service
}

func NewService(db *bun.DB, client remote.Client) *Service {
	return &Service{
		db:               db,
		client:           client,
		itemService:      items.NewService(db),
		highlightService: highlights.NewService(db),
	}
}

// Enqueue buffers a local change for replay against the server. Changes of
// the same kind to the same entity coalesce last-write-wins: three progress
// updates to one item become one queued mutation carrying the latest values,
// in the slot of the first. A delete swallows everything queued for the
// entity, and if that included a create the server never needs to hear about
// the entity at all.
func (svc *Service) Enqueue(ctx context.Context, mutation *models.Mutation) error {
	if err := mutation.MarshalData(); err != nil {
		return err
	}
	if mutation.CreatedAt.IsZero() {
		mutation.CreatedAt = time.Now()
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if mutation.Kind == models.MutationKindDelete {
			hadCreate, err := tx.
				NewSelect().
				Model((*models.Mutation)(nil)).
				Where("entity_type = ?", mutation.EntityType).
				Where("entity_id = ?", mutation.EntityID).
				Where("kind = ?", models.MutationKindCreate).
				Exists(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			_, err = tx.
				NewDelete().
				Model((*models.Mutation)(nil)).
				Where("entity_type = ?", mutation.EntityType).
				Where("entity_id = ?", mutation.EntityID).
				Exec(ctx)
			if err != nil {
				return errors.WithStack(err)
			}

			if hadCreate {
				return nil
			}
		} else {
			existing := &models.Mutation{}
			err := tx.
				NewSelect().
				Model(existing).
				Where("entity_type = ?", mutation.EntityType).
				Where("entity_id = ?", mutation.EntityID).
				Where("kind = ?", mutation.Kind).
				Scan(ctx)
			if err == nil {
				mutation.Seq = existing.Seq
				_, err = tx.
					NewUpdate().
					Model(mutation).
					Column("data", "created_at").
					WherePK().
					Exec(ctx)
				return errors.WithStack(err)
			}
			if !errors.Is(err, sql.ErrNoRows) {
				return errors.WithStack(err)
			}
		}

		_, err := tx.
			NewInsert().
			Model(mutation).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}

func (svc *Service) ListMutations(ctx context.Context, opts ListMutationsOptions) ([]*models.Mutation, error) {
	mutations := []*models.Mutation{}

	q := svc.db.
		NewSelect().
		Model(&mutations).
		Order("m.seq ASC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.EntityType != nil {
		q = q.Where("m.entity_type = ?", *opts.EntityType)
	}
	if opts.EntityID != nil {
		q = q.Where("m.entity_id = ?", *opts.EntityID)
	}

	err := q.Scan(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	for _, m := range mutations {
		if err := m.UnmarshalData(); err != nil {
			return nil, err
		}
	}

	return mutations, nil
}

func (svc *Service) PendingCount(ctx context.Context) (int, error) {
	count, err := svc.db.
		NewSelect().
		Model((*models.Mutation)(nil)).
		Count(ctx)
	return count, errors.WithStack(err)
}

// Drain replays queued mutations in order. It stops at the first retryable
// failure so ordering per entity is preserved; a later drain picks up where
// it left off. A mutation the server rejects as unknown discards the queue
// for the entity and removes the local row in the same step; the change feed
// only reports deletions inside its horizon, so a later sync cannot be
// counted on to deliver one. Returns the number of mutations pushed.
func (svc *Service) Drain(ctx context.Context) (int, error) {
	pushed := 0

	for {
		mutation, err := svc.nextMutation(ctx)
		if err != nil {
			return pushed, err
		}
		if mutation == nil {
			return pushed, nil
		}

		err = svc.push(ctx, mutation)
		if err != nil {
			if errcodes.IsNotFound(err) {
				if err := svc.discardGone(ctx, mutation); err != nil {
					return pushed, err
				}
				continue
			}
			return pushed, err
		}

		if err := svc.deleteMutation(ctx, mutation.Seq); err != nil {
			return pushed, err
		}
		if err := svc.settleEntity(ctx, mutation); err != nil {
			return pushed, err
		}
		pushed++
	}
}

func (svc *Service) nextMutation(ctx context.Context) (*models.Mutation, error) {
	mutation := &models.Mutation{}

	err := svc.db.
		NewSelect().
		Model(mutation).
		Order("m.seq ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.WithStack(err)
	}

	if err := mutation.UnmarshalData(); err != nil {
		return nil, err
	}

	return mutation, nil
}

func (svc *Service) push(ctx context.Context, mutation *models.Mutation) error {
	switch mutation.Kind {
	case models.MutationKindCreate:
		data := mutation.DataParsed.(*models.MutationCreateData)
		result, err := svc.client.CreateItem(ctx, remote.CreateItemRequest{
			URL:             data.URL,
			ClientRequestID: mutation.EntityID,
			Title:           data.Title,
			OriginalHTML:    data.OriginalHTML,
		})
		if err != nil {
			return err
		}
		return svc.itemService.ResolveIdentity(ctx, mutation.EntityID, result.ServerID)

	case models.MutationKindArchive:
		archived := true
		return svc.client.UpdateItem(ctx, mutation.EntityID, remote.ItemPatch{IsArchived: &archived})

	case models.MutationKindUnarchive:
		archived := false
		return svc.client.UpdateItem(ctx, mutation.EntityID, remote.ItemPatch{IsArchived: &archived})

	case models.MutationKindDelete:
		return svc.client.DeleteItem(ctx, mutation.EntityID)

	case models.MutationKindUpdateProgress:
		data := mutation.DataParsed.(*models.MutationProgressData)
		return svc.client.UpdateReadingProgress(ctx, mutation.EntityID, data.Progress, data.Anchor)

	case models.MutationKindUpdateTitle:
		data := mutation.DataParsed.(*models.MutationTitleData)
		return svc.client.UpdateItem(ctx, mutation.EntityID, remote.ItemPatch{Title: &data.Title})

	case models.MutationKindSetLabels:
		data := mutation.DataParsed.(*models.MutationLabelsData)
		return svc.client.SetLabels(ctx, mutation.EntityID, data.LabelIDs)

	case models.MutationKindSetHighlightLabels:
		data := mutation.DataParsed.(*models.MutationLabelsData)
		return svc.client.SetHighlightLabels(ctx, mutation.EntityID, data.LabelIDs)
	}

	return errors.Errorf("unknown mutation kind: %s", mutation.Kind)
}

// discardGone reconciles an entity the server rejected as unknown: every
// queued mutation for it is dropped and the local row goes with them, so
// nothing is left sitting pending for an entity that no longer exists.
func (svc *Service) discardGone(ctx context.Context, mutation *models.Mutation) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.
			NewDelete().
			Model((*models.Mutation)(nil)).
			Where("entity_type = ?", mutation.EntityType).
			Where("entity_id = ?", mutation.EntityID).
			Exec(ctx)
		if err != nil {
			return errors.WithStack(err)
		}

		switch mutation.EntityType {
		case models.MutationEntityItem:
			return svc.itemService.DeleteFromRemote(ctx, tx, []string{mutation.EntityID})
		case models.MutationEntityHighlight:
			return svc.highlightService.DeleteFromRemote(ctx, tx, mutation.EntityID)
		}

		return nil
	})
	return errors.WithStack(err)
}

func (svc *Service) deleteMutation(ctx context.Context, seq int64) error {
	_, err := svc.db.
		NewDelete().
		Model((*models.Mutation)(nil)).
		Where("seq = ?", seq).
		Exec(ctx)
	return errors.WithStack(err)
}

// settleEntity clears the pending flag once nothing else is queued for the
// entity. A create was already settled by identity resolution; for deletes
// the row is gone locally.
func (svc *Service) settleEntity(ctx context.Context, mutation *models.Mutation) error {
	if mutation.Kind == models.MutationKindCreate || mutation.Kind == models.MutationKindDelete {
		return nil
	}

	remaining, err := svc.db.
		NewSelect().
		Model((*models.Mutation)(nil)).
		Where("entity_type = ?", mutation.EntityType).
		Where("entity_id = ?", mutation.EntityID).
		Exists(ctx)
	if err != nil {
		return errors.WithStack(err)
	}
	if remaining {
		return nil
	}

	switch mutation.EntityType {
	case models.MutationEntityItem:
		return svc.itemService.MarkSynced(ctx, mutation.EntityID)
	case models.MutationEntityHighlight:
		return svc.highlightService.MarkSynced(ctx, mutation.EntityID)
	}

	return nil
}
