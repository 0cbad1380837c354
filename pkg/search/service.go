// Package search proxies library search to the server and folds the results
// into the local store, so anything the user finds is immediately available
// offline.
package search

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/tsundokuapp/tsundoku/pkg/highlights"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/labels"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type SearchOptions struct {
	Query  string
	Cursor *string
	Limit  int
}

type SearchResult struct {
	Items   []*models.Item `json:"items"`
	Cursor  *string        `json:"cursor"`
	HasMore bool           `json:"has_more"`
}

type Service struct {
	db               *bun.DB
	client           remote.Client
	itemService      *items.Service
	labelService     *labels.Service
	highlightService *highlights.Service
}

func NewService(db *bun.DB, client remote.Client) *Service {
	return &Service{
		db:               db,
		client:           client,
		itemService:      items.NewService(db),
		labelService:     labels.NewService(db),
		highlightService: highlights.NewService(db),
	}
}

// Search runs the query remotely and upserts every hit locally before
// returning it. Persistence reuses the sync merge, so reading progress and
// already-fetched content survive.
func (svc *Service) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	page, err := svc.client.Search(ctx, opts.Query, opts.Cursor, opts.Limit)
	if err != nil {
		return nil, err
	}

	result := &SearchResult{
		Cursor:  page.Cursor,
		HasMore: page.HasMore,
	}

	err = svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
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

			result.Items = append(result.Items, item)
		}
		return nil
	})
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return result, nil
}

func labelIDs(rls []remote.RemoteLabel) []string {
	ids := make([]string, 0, len(rls))
	for _, rl := range rls {
		ids = append(ids, rl.ID)
	}
	return ids
}
