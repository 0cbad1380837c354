package backfill

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tsundokuapp/tsundoku/internal/remotetest"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/migrations"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
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

func insertItem(t *testing.T, db *bun.DB, item *models.Item) {
	t.Helper()

	now := time.Now()
	if item.URL == "" {
		item.URL = "https://example.com/" + item.ID
	}
	if item.Title == "" {
		item.Title = item.ID
	}
	if item.ContentState == "" {
		item.ContentState = models.ContentStateProcessing
	}
	if item.ContentReader == "" {
		item.ContentReader = models.ContentReaderWeb
	}
	item.SyncStatus = models.SyncStatusSynced
	item.SavedAt = now
	item.CreatedAt = now
	item.UpdatedAt = now

	_, err := db.NewInsert().Model(item).Exec(context.Background())
	require.NoError(t, err)
}

func newScheduler(t *testing.T, db *bun.DB, fake *remotetest.Fake) *Scheduler {
	t.Helper()

	cfg := config.NewForTest()
	cfg.CacheDir = t.TempDir()
	cfg.BackfillMaxRetries = 3

	s := New(cfg, db, fake, notify.NewHub())
	s.Start()
	t.Cleanup(s.Shutdown)

	return s
}

func waitForPending(t *testing.T, s *Scheduler) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if s.PendingCount() == 0 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("scheduler did not settle")
}

func TestSchedulerFetchesContent(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	html := "<html><body>the full parsed article body</body></html>"
	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			return &remote.ContentResult{State: models.ContentStateSucceeded, HTML: &html}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-1"})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-1")
	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-1")})
	require.NoError(t, err)
	assert.True(t, item.HasContent())
	assert.Equal(t, models.ContentStateSucceeded, item.ContentState)
}

func TestSchedulerRetriesUntilReady(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	html := "<html><body>ready on the third poll finally</body></html>"
	var mu sync.Mutex
	calls := 0
	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			mu.Lock()
			defer mu.Unlock()
			calls++
			if calls < 3 {
				return &remote.ContentResult{State: models.ContentStateProcessing}, nil
			}
			return &remote.ContentResult{State: models.ContentStateSucceeded, HTML: &html}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-1"})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-1")
	waitForPending(t, s)

	mu.Lock()
	assert.Equal(t, 3, calls)
	mu.Unlock()

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-1")})
	require.NoError(t, err)
	assert.True(t, item.HasContent())
}

func TestSchedulerBackoffDoubles(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	var mu sync.Mutex
	stamps := []time.Time{}
	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			mu.Lock()
			stamps = append(stamps, time.Now())
			mu.Unlock()
			return &remote.ContentResult{State: models.ContentStateProcessing}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-slow"})

	cfg := config.NewForTest()
	cfg.CacheDir = t.TempDir()
	cfg.BackfillBaseDelay = 50 * time.Millisecond
	cfg.BackfillMaxDelay = 100 * time.Millisecond
	cfg.BackfillMaxRetries = 4

	s := New(cfg, db, fake, notify.NewHub())
	s.Start()
	t.Cleanup(s.Shutdown)

	s.EnqueueItem("item-slow")
	waitForPending(t, s)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, stamps, 4)

	// Gaps double from the base delay until the cap holds them down.
	first := stamps[1].Sub(stamps[0])
	second := stamps[2].Sub(stamps[1])
	third := stamps[3].Sub(stamps[2])
	assert.GreaterOrEqual(t, first, 50*time.Millisecond)
	assert.GreaterOrEqual(t, second, 100*time.Millisecond)
	assert.GreaterOrEqual(t, third, 100*time.Millisecond)
	// The uncapped third gap would be 200ms.
	assert.Less(t, third, 200*time.Millisecond)
}

func TestSchedulerAbandonsAfterRetryBudget(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			return &remote.ContentResult{State: models.ContentStateProcessing}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-stuck"})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-stuck")
	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-stuck")})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStateAbandoned, item.ContentState)
	assert.False(t, item.HasContent())
}

func TestSchedulerRecordsServerFailure(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			return &remote.ContentResult{State: models.ContentStateFailed}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-bad"})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-bad")
	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-bad")})
	require.NoError(t, err)
	assert.Equal(t, models.ContentStateFailed, item.ContentState)

	// No retries for a terminal failure.
	assert.Len(t, fake.FetchContentCalls, 1)
}

func TestSchedulerSkipsArchivedAndDeleted(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			return nil, errcodes.NotFound("Item")
		},
	}

	insertItem(t, db, &models.Item{ID: "item-archived", IsArchived: true})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-archived")
	s.EnqueueItem("item-never-existed")
	waitForPending(t, s)

	assert.Empty(t, fake.FetchContentCalls)
}

func TestSchedulerDeduplicates(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	block := make(chan struct{})
	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			<-block
			html := "<html><body>the body arrives after the block lifts</body></html>"
			return &remote.ContentResult{State: models.ContentStateSucceeded, HTML: &html}, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-1"})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-1")
	s.EnqueueItem("item-1")
	s.EnqueueItem("item-1")
	close(block)
	waitForPending(t, s)

	assert.Len(t, fake.FetchContentCalls, 1)
}

func TestSchedulerDownloadsPDF(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	pdfBytes := []byte("%PDF-1.7\n1 0 obj\n<< /Type /Catalog >>\nendobj")
	fake := &remotetest.Fake{
		FetchPDFFn: func(ctx context.Context, url string) ([]byte, error) {
			return pdfBytes, nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-pdf", ContentReader: models.ContentReaderPDF})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-pdf")
	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-pdf")})
	require.NoError(t, err)
	require.NotNil(t, item.LocalPDF)
	assert.Equal(t, models.ContentStateSucceeded, item.ContentState)
	assert.FileExists(t, *item.LocalPDF)

	// No content polling for document items.
	assert.Empty(t, fake.FetchContentCalls)
}

func TestSchedulerRejectsNonPDFBytes(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	fake := &remotetest.Fake{
		FetchPDFFn: func(ctx context.Context, url string) ([]byte, error) {
			return []byte("<html><body>404 not found page</body></html>"), nil
		},
	}

	insertItem(t, db, &models.Item{ID: "item-pdf", ContentReader: models.ContentReaderPDF})
	s := newScheduler(t, db, fake)

	s.EnqueueItem("item-pdf")
	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-pdf")})
	require.NoError(t, err)
	assert.Nil(t, item.LocalPDF)
	assert.Equal(t, models.ContentStateAbandoned, item.ContentState)
}

func TestRebuild(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	html := "<html><body>rebuilt content body for the item</body></html>"
	fake := &remotetest.Fake{
		FetchContentFn: func(ctx context.Context, itemID string) (*remote.ContentResult, error) {
			return &remote.ContentResult{State: models.ContentStateSucceeded, HTML: &html}, nil
		},
	}

	existing := "<html><body>this item already has its content</body></html>"
	insertItem(t, db, &models.Item{ID: "item-missing"})
	insertItem(t, db, &models.Item{ID: "item-abandoned", ContentState: models.ContentStateAbandoned})
	insertItem(t, db, &models.Item{ID: "item-has-content", Content: &existing, ContentState: models.ContentStateSucceeded})
	insertItem(t, db, &models.Item{ID: "item-archived", IsArchived: true})

	s := newScheduler(t, db, fake)

	queued, err := s.Rebuild(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, queued)

	waitForPending(t, s)

	item, err := items.NewService(db).RetrieveItem(ctx, items.RetrieveItemOptions{ID: strptr("item-abandoned")})
	require.NoError(t, err)
	assert.True(t, item.HasContent())
}

func strptr(s string) *string {
	return &s
}
