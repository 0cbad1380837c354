package search

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsundokuapp/tsundoku/internal/remotetest"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/migrations"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

func setupTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	require.NoError(t, err)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	_, err = migrations.BringUpToDate(context.Background(), db)
	require.NoError(t, err)

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func TestSearchPersistsResults(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	cursor := "next-page"
	fake := &remotetest.Fake{
		SearchFn: func(ctx context.Context, query string, c *string, limit int) (*remote.SearchPage, error) {
			return &remote.SearchPage{
				Items: []remote.RemoteItem{{
					ID:            "item-hit",
					URL:           "https://example.com/hit",
					Title:         "The Hit",
					Slug:          "the-hit",
					ContentState:  models.ContentStateSucceeded,
					ContentReader: models.ContentReaderWeb,
					SavedAt:       time.Now(),
					UpdatedAt:     time.Now(),
					Labels:        []remote.RemoteLabel{{ID: "label-1", Name: "found", Color: "#123456"}},
				}},
				Cursor:  &cursor,
				HasMore: true,
			}, nil
		},
	}

	svc := NewService(db, fake)

	result, err := svc.Search(ctx, SearchOptions{Query: "hit", Limit: 20})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.True(t, result.HasMore)
	require.NotNil(t, result.Cursor)
	assert.Equal(t, "next-page", *result.Cursor)

	// The hit is now in the local store with its labels.
	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-hit")})
	require.NoError(t, err)
	assert.Equal(t, "The Hit", item.Title)
	require.Len(t, item.ItemLabels, 1)
	assert.Equal(t, "found", item.ItemLabels[0].Label.Name)
}

func TestSearchKeepsLocalState(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	itemSvc := items.NewService(db)
	_, err := itemSvc.UpsertFromRemote(ctx, db, remote.RemoteItem{
		ID:            "item-known",
		URL:           "https://example.com/known",
		Title:         "Known",
		ContentState:  models.ContentStateSucceeded,
		ContentReader: models.ContentReaderWeb,
		SavedAt:       time.Now(),
		UpdatedAt:     time.Now(),
	})
	require.NoError(t, err)
	_, applied, err := itemSvc.ApplyReadingProgress(ctx, "item-known", 45, 9)
	require.NoError(t, err)
	require.True(t, applied)

	fake := &remotetest.Fake{
		SearchFn: func(ctx context.Context, query string, c *string, limit int) (*remote.SearchPage, error) {
			return &remote.SearchPage{
				Items: []remote.RemoteItem{{
					ID:              "item-known",
					URL:             "https://example.com/known",
					Title:           "Known",
					ContentState:    models.ContentStateSucceeded,
					ContentReader:   models.ContentReaderWeb,
					ReadingProgress: 10,
					SavedAt:         time.Now(),
					UpdatedAt:       time.Now(),
				}},
			}, nil
		},
	}

	result, err := NewService(db, fake).Search(ctx, SearchOptions{Query: "known", Limit: 20})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)

	// The stale progress in the search result didn't clobber local state.
	item, err := itemSvc.RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-known")})
	require.NoError(t, err)
	assert.Equal(t, 45.0, item.ReadingProgress)
}

func TestSearchPropagatesRemoteErrors(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	fake := &remotetest.Fake{
		SearchFn: func(ctx context.Context, query string, c *string, limit int) (*remote.SearchPage, error) {
			return nil, errcodes.Network("connection refused")
		},
	}

	_, err := NewService(db, fake).Search(context.Background(), SearchOptions{Query: "x", Limit: 20})
	require.Error(t, err)
	assert.True(t, errcodes.IsRetryable(err))
}

func strptr(s string) *string {
	return &s
}
