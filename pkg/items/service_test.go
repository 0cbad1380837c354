package items

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
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

func remoteItem(id, url string) remote.RemoteItem {
	return remote.RemoteItem{
		ID:              id,
		URL:             url,
		Title:           "Title for " + id,
		Slug:            id + "-slug",
		ContentState:    models.ContentStateSucceeded,
		ContentReader:   models.ContentReaderWeb,
		ReadingProgress: 0,
		SavedAt:         time.Now().Add(-time.Hour),
		UpdatedAt:       time.Now(),
	}
}

func TestSaveLocalPage(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	t.Run("creates a placeholder flagged for creation", func(t *testing.T) {
		item, err := svc.SaveLocalPage(ctx, "https://Example.com/post/", "A Post", nil)
		require.NoError(t, err)

		assert.Equal(t, "https://example.com/post", item.URL)
		assert.Equal(t, models.SyncStatusNeedsCreate, item.SyncStatus)
		assert.Equal(t, models.ContentStateProcessing, item.ContentState)
		require.NotNil(t, item.LocalCreatedID)
		assert.Equal(t, item.ID, *item.LocalCreatedID)
	})

	t.Run("reuses the row on a duplicate save", func(t *testing.T) {
		first, err := svc.SaveLocalPage(ctx, "https://example.com/other", "Other", nil)
		require.NoError(t, err)

		second, err := svc.SaveLocalPage(ctx, "https://example.com/other/#section", "Other again", nil)
		require.NoError(t, err)

		assert.Equal(t, first.ID, second.ID)
	})

	t.Run("captured html marks content present", func(t *testing.T) {
		html := "<html><body>a locally captured page body</body></html>"
		item, err := svc.SaveLocalPage(ctx, "https://example.com/captured", "Captured", &html)
		require.NoError(t, err)

		assert.True(t, item.HasContent())
		assert.Equal(t, models.ContentStateSucceeded, item.ContentState)
	})
}

func TestUpsertFromRemote(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	t.Run("inserts a new item", func(t *testing.T) {
		_, err := svc.UpsertFromRemote(ctx, db, remoteItem("item-new", "https://example.com/new"))
		require.NoError(t, err)

		item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-new")})
		require.NoError(t, err)
		assert.Equal(t, "Title for item-new", item.Title)
		assert.Equal(t, models.SyncStatusSynced, item.SyncStatus)
	})

	t.Run("is idempotent", func(t *testing.T) {
		ri := remoteItem("item-twice", "https://example.com/twice")

		_, err := svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)
		_, err = svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)

		count, err := db.NewSelect().Model((*models.Item)(nil)).Where("id = ?", "item-twice").Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, count)
	})

	t.Run("preserves local content and forward progress", func(t *testing.T) {
		content := "<html><body>the locally fetched article body</body></html>"
		ri := remoteItem("item-merge", "https://example.com/merge")

		_, err := svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)

		require.NoError(t, svc.SaveContent(ctx, "item-merge", models.ContentStateSucceeded, &content, nil))
		_, applied, err := svc.ApplyReadingProgress(ctx, "item-merge", 60, 12)
		require.NoError(t, err)
		require.True(t, applied)

		// Server sends a stale snapshot.
		ri.ReadingProgress = 25
		ri.ContentState = models.ContentStateProcessing
		_, err = svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)

		item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-merge")})
		require.NoError(t, err)
		assert.Equal(t, 60.0, item.ReadingProgress)
		assert.Equal(t, 12, item.ReadingProgressAnchor)
		assert.True(t, item.HasContent())
		assert.Equal(t, models.ContentStateSucceeded, item.ContentState)
	})

	t.Run("takes higher server progress", func(t *testing.T) {
		ri := remoteItem("item-server-ahead", "https://example.com/server-ahead")
		_, err := svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)

		ri.ReadingProgress = 80
		ri.ReadingProgressAnchor = 40
		_, err = svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)

		item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-server-ahead")})
		require.NoError(t, err)
		assert.Equal(t, 80.0, item.ReadingProgress)
		assert.Equal(t, 40, item.ReadingProgressAnchor)
	})

	t.Run("re-keys a local placeholder by url", func(t *testing.T) {
		placeholder, err := svc.SaveLocalPage(ctx, "https://example.com/placeholder", "Saved offline", nil)
		require.NoError(t, err)

		mutation := &models.Mutation{
			EntityType: models.MutationEntityItem,
			EntityID:   placeholder.ID,
			Kind:       models.MutationKindUpdateProgress,
			Data:       "{}",
			CreatedAt:  time.Now(),
		}
		_, err = db.NewInsert().Model(mutation).Exec(ctx)
		require.NoError(t, err)

		ri := remoteItem("server-assigned-id", "https://example.com/placeholder")
		merged, err := svc.UpsertFromRemote(ctx, db, ri)
		require.NoError(t, err)
		assert.Equal(t, "server-assigned-id", merged.ID)

		// The placeholder row is gone; the server id row exists.
		_, err = svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &placeholder.ID})
		require.Error(t, err)
		assert.True(t, errcodes.IsNotFound(err))

		item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("server-assigned-id")})
		require.NoError(t, err)
		assert.Nil(t, item.LocalCreatedID)

		// Queued mutations moved with it.
		queued := &models.Mutation{}
		err = db.NewSelect().Model(queued).Where("seq = ?", mutation.Seq).Scan(ctx)
		require.NoError(t, err)
		assert.Equal(t, "server-assigned-id", queued.EntityID)
	})
}

func TestDeleteFromRemote(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.UpsertFromRemote(ctx, db, remoteItem("item-gone", "https://example.com/gone"))
	require.NoError(t, err)

	label := &models.Label{ID: "label-1", Name: "keep", Color: "#00ff00", CreatedAt: time.Now(), UpdatedAt: time.Now()}
	_, err = db.NewInsert().Model(label).Exec(ctx)
	require.NoError(t, err)
	_, err = db.NewInsert().Model(&models.ItemLabel{ItemID: "item-gone", LabelID: "label-1"}).Exec(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFromRemote(ctx, db, []string{"item-gone"}))

	_, err = svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-gone")})
	assert.True(t, errcodes.IsNotFound(err))

	crossRefs, err := db.NewSelect().Model((*models.ItemLabel)(nil)).Where("item_id = ?", "item-gone").Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, crossRefs)

	// Labels themselves survive item deletion.
	labels, err := db.NewSelect().Model((*models.Label)(nil)).Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, labels)
}

func TestApplyReadingProgress(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.UpsertFromRemote(ctx, db, remoteItem("item-progress", "https://example.com/progress"))
	require.NoError(t, err)

	item, applied, err := svc.ApplyReadingProgress(ctx, "item-progress", 30, 5)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 30.0, item.ReadingProgress)
	assert.Equal(t, models.SyncStatusNeedsUpdate, item.SyncStatus)

	// A stale write is a no-op.
	item, applied, err = svc.ApplyReadingProgress(ctx, "item-progress", 10, 2)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 30.0, item.ReadingProgress)

	// Finishing the article records read_at.
	item, applied, err = svc.ApplyReadingProgress(ctx, "item-progress", 100, 50)
	require.NoError(t, err)
	assert.True(t, applied)
	require.NotNil(t, item.ReadAt)
}

func TestSaveContent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	_, err := svc.UpsertFromRemote(ctx, db, remoteItem("item-content", "https://example.com/content"))
	require.NoError(t, err)

	content := "<html><body>a fetched article body with enough text</body></html>"
	require.NoError(t, svc.SaveContent(ctx, "item-content", models.ContentStateSucceeded, &content, nil))

	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-content")})
	require.NoError(t, err)
	assert.True(t, item.HasContent())
	require.NotNil(t, item.WordCount)
	assert.Equal(t, 7, *item.WordCount)

	// A later PROCESSING report cannot regress a row that has content.
	require.NoError(t, svc.SaveContent(ctx, "item-content", models.ContentStateProcessing, nil, nil))
	item, err = svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("item-content")})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStateSucceeded, item.ContentState)
	assert.True(t, item.HasContent())
}

func TestResolveIdentity(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()
	svc := NewService(db)

	placeholder, err := svc.SaveLocalPage(ctx, "https://example.com/ack", "Pending", nil)
	require.NoError(t, err)

	require.NoError(t, svc.ResolveIdentity(ctx, placeholder.ID, "ack-server-id"))

	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: strptr("ack-server-id")})
	require.NoError(t, err)
	assert.Nil(t, item.LocalCreatedID)
	assert.Equal(t, models.SyncStatusSynced, item.SyncStatus)
}

func strptr(s string) *string {
	return &s
}
