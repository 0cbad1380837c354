package items

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/htmlutil"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type RetrieveItemOptions struct {
	ID   *string
	URL  *string
	Slug *string
}

type ListItemsOptions struct {
	Limit        *int
	Offset       *int
	Archived     *bool
	ContentState *string
	SyncStatus   *string

	includeTotal bool
}

type UpdateItemOptions struct {
	Columns []string
}

type Service struct {
	db *bun.DB
}

func NewService(db *bun.DB) *Service {
	return &Service{db}
}

func (svc *Service) CreateItem(ctx context.Context, item *models.Item) error {
	now := time.Now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = item.CreatedAt
	if item.SavedAt.IsZero() {
		item.SavedAt = item.CreatedAt
	}

	if item.ID == "" {
		id, err := uuid.NewRandom()
		if err != nil {
			return errors.WithStack(err)
		}
		item.ID = id.String()
	}
	if item.URL != "" {
		item.URL = NormalizeURL(item.URL)
	}
	if item.ContentState == "" {
		item.ContentState = models.ContentStateProcessing
	}
	if item.SyncStatus == "" {
		item.SyncStatus = models.SyncStatusSynced
	}

	_, err := svc.db.
		NewInsert().
		Model(item).
		Returning("*").
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// SaveLocalPage records a page the user saved while offline or before the
// server has acknowledged it. If an item with the same normalized url already
// exists the existing row is reused so a double-save never duplicates. A new
// row gets a placeholder id and is flagged for creation on the server.
func (svc *Service) SaveLocalPage(ctx context.Context, url, title string, originalHTML *string) (*models.Item, error) {
	normalized := NormalizeURL(url)

	existing, err := svc.RetrieveItem(ctx, RetrieveItemOptions{URL: &normalized})
	if err != nil && !errcodes.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return nil, errors.WithStack(err)
	}

	item := &models.Item{
		ID:             id.String(),
		LocalCreatedID: func() *string { s := id.String(); return &s }(),
		URL:            normalized,
		// The server assigns the real slug; the placeholder id stands in
		// until the first merge overwrites it.
		Slug:  id.String(),
		Title: title,
		ContentState:   models.ContentStateProcessing,
		ContentReader:  models.ContentReaderWeb,
		SyncStatus:     models.SyncStatusNeedsCreate,
	}
	if title == "" {
		item.Title = normalized
	}
	if originalHTML != nil && len(*originalHTML) > 10 {
		item.Content = originalHTML
		item.ContentState = models.ContentStateSucceeded
		item.WordCount = pointerutil.Int(htmlutil.WordCount(*originalHTML))
	}

	if err := svc.CreateItem(ctx, item); err != nil {
		return nil, err
	}

	return item, nil
}

func (svc *Service) RetrieveItem(ctx context.Context, opts RetrieveItemOptions) (*models.Item, error) {
	item := &models.Item{}

	q := svc.db.
		NewSelect().
		Model(item).
		Relation("ItemLabels.Label").
		Relation("ItemHighlights.Highlight")

	if opts.ID != nil {
		q = q.Where("i.id = ?", *opts.ID)
	}
	if opts.URL != nil {
		q = q.Where("i.url = ?", NormalizeURL(*opts.URL))
	}
	if opts.Slug != nil {
		q = q.Where("i.slug = ?", *opts.Slug)
	}

	err := q.Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errcodes.NotFound("Item")
		}
		return nil, errors.WithStack(err)
	}

	return item, nil
}

func (svc *Service) ListItems(ctx context.Context, opts ListItemsOptions) ([]*models.Item, error) {
	items, _, err := svc.listItemsWithTotal(ctx, opts)
	return items, errors.WithStack(err)
}

func (svc *Service) ListItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	opts.includeTotal = true
	return svc.listItemsWithTotal(ctx, opts)
}

func (svc *Service) listItemsWithTotal(ctx context.Context, opts ListItemsOptions) ([]*models.Item, int, error) {
	items := []*models.Item{}
	var total int
	var err error

	q := svc.db.
		NewSelect().
		Model(&items).
		ExcludeColumn("content").
		Relation("ItemLabels.Label").
		Order("i.saved_at DESC")

	if opts.Limit != nil {
		q = q.Limit(*opts.Limit)
	}
	if opts.Offset != nil {
		q = q.Offset(*opts.Offset)
	}
	if opts.Archived != nil {
		q = q.Where("i.is_archived = ?", *opts.Archived)
	}
	if opts.ContentState != nil {
		q = q.Where("i.content_state = ?", *opts.ContentState)
	}
	if opts.SyncStatus != nil {
		q = q.Where("i.sync_status = ?", *opts.SyncStatus)
	}

	if opts.includeTotal {
		total, err = q.ScanAndCount(ctx)
	} else {
		err = q.Scan(ctx)
	}
	if err != nil {
		return nil, 0, errors.WithStack(err)
	}

	return items, total, nil
}

func (svc *Service) UpdateItem(ctx context.Context, item *models.Item, opts UpdateItemOptions) error {
	if len(opts.Columns) == 0 {
		return nil
	}

	item.UpdatedAt = time.Now()
	columns := append(opts.Columns, "updated_at")

	_, err := svc.db.
		NewUpdate().
		Model(item).
		Column(columns...).
		WherePK().
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (svc *Service) DeleteItem(ctx context.Context, id string) error {
	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return errors.WithStack(deleteItemRows(ctx, tx, []string{id}))
	})
	return errors.WithStack(err)
}

// DeleteFromRemote removes items the server reports as deleted, inside the
// caller's sync transaction.
func (svc *Service) DeleteFromRemote(ctx context.Context, idb bun.IDB, serverIDs []string) error {
	if len(serverIDs) == 0 {
		return nil
	}
	return errors.WithStack(deleteItemRows(ctx, idb, serverIDs))
}

func deleteItemRows(ctx context.Context, idb bun.IDB, ids []string) error {
	_, err := idb.
		NewDelete().
		Model((*models.ItemLabel)(nil)).
		Where("item_id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewDelete().
		Model((*models.ItemHighlight)(nil)).
		Where("item_id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewDelete().
		Model((*models.Item)(nil)).
		Where("id IN (?)", bun.In(ids)).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// UpsertFromRemote merges one server item into the local store inside the
// caller's transaction. Running the same page twice yields the same rows.
// Local article content and reading progress survive the merge: content is
// fetched separately by the backfill scheduler, and progress never moves
// backwards regardless of which side is older.
func (svc *Service) UpsertFromRemote(ctx context.Context, idb bun.IDB, ri remote.RemoteItem) (*models.Item, error) {
	existing := &models.Item{}
	err := idb.
		NewSelect().
		Model(existing).
		Where("i.id = ?", ri.ID).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		existing, err = svc.resolveByURL(ctx, idb, ri)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(err)
	}

	now := time.Now()
	item := remoteToItem(ri)
	item.UpdatedAt = now

	if existing != nil && existing.ID != "" {
		item.CreatedAt = existing.CreatedAt

		// Keep what only exists locally.
		item.Content = existing.Content
		item.LocalPDF = existing.LocalPDF
		if existing.HasContent() {
			item.ContentState = models.ContentStateSucceeded
		}
		if existing.ReadingProgress > item.ReadingProgress {
			item.ReadingProgress = existing.ReadingProgress
			item.ReadingProgressAnchor = existing.ReadingProgressAnchor
		}

		// A row mid-mutation keeps its pending status; the queue drain will
		// reconcile with the server afterwards.
		if existing.SyncStatus != models.SyncStatusSynced && existing.SyncStatus != models.SyncStatusNeedsCreate {
			item.SyncStatus = existing.SyncStatus
		}

		_, err = idb.
			NewUpdate().
			Model(item).
			WherePK().
			Exec(ctx)
		if err != nil {
			return nil, errors.WithStack(err)
		}
		return item, nil
	}

	item.CreatedAt = now
	_, err = idb.
		NewInsert().
		Model(item).
		Exec(ctx)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	return item, nil
}

// resolveByURL matches an incoming server item to a locally created
// placeholder row by normalized url and re-keys the row to the server id.
// Cross-references and queued mutations move with it so nothing orphans.
func (svc *Service) resolveByURL(ctx context.Context, idb bun.IDB, ri remote.RemoteItem) (*models.Item, error) {
	placeholder := &models.Item{}
	err := idb.
		NewSelect().
		Model(placeholder).
		Where("i.url = ?", NormalizeURL(ri.URL)).
		Where("i.local_created_id IS NOT NULL").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	if err := rekeyItem(ctx, idb, placeholder.ID, ri.ID); err != nil {
		return nil, err
	}

	placeholder.ID = ri.ID
	placeholder.LocalCreatedID = nil
	placeholder.SyncStatus = models.SyncStatusSynced

	return placeholder, nil
}

// ResolveIdentity re-keys a locally created item to its server-assigned id
// after the server acknowledges the create.
func (svc *Service) ResolveIdentity(ctx context.Context, localID, serverID string) error {
	if localID == serverID {
		return nil
	}

	err := svc.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		if err := rekeyItem(ctx, tx, localID, serverID); err != nil {
			return err
		}

		_, err := tx.
			NewUpdate().
			Model((*models.Item)(nil)).
			Set("local_created_id = NULL").
			Set("sync_status = ?", models.SyncStatusSynced).
			Where("id = ?", serverID).
			Exec(ctx)
		return errors.WithStack(err)
	})
	return errors.WithStack(err)
}

func rekeyItem(ctx context.Context, idb bun.IDB, oldID, newID string) error {
	_, err := idb.
		NewUpdate().
		Model((*models.Item)(nil)).
		Set("id = ?", newID).
		Where("id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewUpdate().
		Model((*models.ItemLabel)(nil)).
		Set("item_id = ?", newID).
		Where("item_id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewUpdate().
		Model((*models.ItemHighlight)(nil)).
		Set("item_id = ?", newID).
		Where("item_id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	_, err = idb.
		NewUpdate().
		Model((*models.Mutation)(nil)).
		Set("entity_id = ?", newID).
		Where("entity_type = ?", models.MutationEntityItem).
		Where("entity_id = ?", oldID).
		Exec(ctx)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

// ApplyReadingProgress writes progress for an item. Progress only moves
// forward; a stale write from a reader that was offline loses to whatever is
// already recorded. The returned bool reports whether the row changed.
func (svc *Service) ApplyReadingProgress(ctx context.Context, id string, progress float64, anchor int) (*models.Item, bool, error) {
	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return nil, false, err
	}

	if progress <= item.ReadingProgress {
		return item, false, nil
	}

	item.ReadingProgress = progress
	item.ReadingProgressAnchor = anchor
	if progress >= 100 && item.ReadAt == nil {
		now := time.Now()
		item.ReadAt = &now
	}
	if item.SyncStatus == models.SyncStatusSynced {
		item.SyncStatus = models.SyncStatusNeedsUpdate
	}

	err = svc.UpdateItem(ctx, item, UpdateItemOptions{
		Columns: []string{"reading_progress", "reading_progress_anchor", "read_at", "sync_status"},
	})
	if err != nil {
		return nil, false, err
	}

	return item, true, nil
}

// SaveContent writes a fetched article body or a downloaded document path.
// A row that already has usable content never regresses to PROCESSING.
func (svc *Service) SaveContent(ctx context.Context, id, state string, content, localPDF *string) error {
	item, err := svc.RetrieveItem(ctx, RetrieveItemOptions{ID: &id})
	if err != nil {
		return err
	}

	if content != nil {
		item.Content = content
		if item.WordCount == nil {
			// The server doesn't always report one; derive it from the body.
			item.WordCount = pointerutil.Int(htmlutil.WordCount(*content))
		}
	}
	if localPDF != nil {
		item.LocalPDF = localPDF
	}
	if state == models.ContentStateProcessing && item.HasContent() {
		state = models.ContentStateSucceeded
	}
	item.ContentState = state

	return svc.UpdateItem(ctx, item, UpdateItemOptions{
		Columns: []string{"content", "local_pdf", "content_state", "word_count"},
	})
}

// ScanMissingContent collects the ids of every unarchived item that still
// has no usable body, including abandoned ones, for a full backfill rebuild.
func (svc *Service) ScanMissingContent(ctx context.Context, ids *[]string) error {
	err := svc.db.
		NewSelect().
		Model((*models.Item)(nil)).
		Column("id").
		Where("is_archived = ?", false).
		Where("content_state != ?", models.ContentStateFailed).
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				WhereOr("content_reader = ? AND local_pdf IS NULL", models.ContentReaderPDF).
				WhereOr("content_reader != ? AND (content IS NULL OR LENGTH(content) <= 10)", models.ContentReaderPDF)
		}).
		Scan(ctx, ids)
	return errors.WithStack(err)
}

// MarkSynced clears the pending flag after the mutation queue pushed the
// local change upstream.
func (svc *Service) MarkSynced(ctx context.Context, id string) error {
	_, err := svc.db.
		NewUpdate().
		Model((*models.Item)(nil)).
		Set("sync_status = ?", models.SyncStatusSynced).
		Where("id = ?", id).
		Exec(ctx)
	return errors.WithStack(err)
}

func remoteToItem(ri remote.RemoteItem) *models.Item {
	contentReader := ri.ContentReader
	if contentReader == "" {
		contentReader = models.ContentReaderWeb
	}
	contentState := ri.ContentState
	if contentState == "" {
		contentState = models.ContentStateProcessing
	}

	return &models.Item{
		ID:                    ri.ID,
		URL:                   NormalizeURL(ri.URL),
		Title:                 ri.Title,
		Slug:                  ri.Slug,
		Description:           ri.Description,
		Author:                ri.Author,
		SiteName:              ri.SiteName,
		ImageURL:              ri.ImageURL,
		ContentState:          contentState,
		ContentReader:         contentReader,
		WordCount:             ri.WordCount,
		IsArchived:            ri.IsArchived,
		ReadingProgress:       ri.ReadingProgress,
		ReadingProgressAnchor: ri.ReadingProgressAnchor,
		SavedAt:               ri.SavedAt,
		ReadAt:                ri.ReadAt,
		PublishedAt:           ri.PublishedAt,
		SyncStatus:            models.SyncStatusSynced,
	}
}
