// Package backfill fetches article bodies for items that synced without
// one. The server parses pages asynchronously, so a freshly saved item
// usually needs a few polls before its content is ready.
package backfill

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/models"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/uptrace/bun"
)

type task struct {
	itemID   string
	attempts int
}

type Scheduler struct {
	config *config.Config
	log    logger.Logger

	client      remote.Client
	itemService *items.Service
	hub         *notify.Hub

	mu      sync.Mutex
	pending map[string]struct{}

	queue    chan *task
	shutdown chan struct{}
	done     chan struct{}
}

func New(cfg *config.Config, db *bun.DB, client remote.Client, hub *notify.Hub) *Scheduler {
	return &Scheduler{
		config:      cfg,
		log:         logger.New(),
		client:      client,
		itemService: items.NewService(db),
		hub:         hub,
		pending:     map[string]struct{}{},
		queue:       make(chan *task, 1024),
		shutdown:    make(chan struct{}),
		done:        make(chan struct{}, cfg.BackfillWorkers),
	}
}

func (s *Scheduler) Start() {
	for i := 0; i < s.config.BackfillWorkers; i++ {
		go s.processTasks()
	}
}

func (s *Scheduler) Shutdown() {
	close(s.shutdown)
	for i := 0; i < s.config.BackfillWorkers; i++ {
		<-s.done
	}
}

// EnqueueItem schedules a content fetch. An item already queued or mid-retry
// is not queued twice.
func (s *Scheduler) EnqueueItem(itemID string) {
	s.mu.Lock()
	if _, ok := s.pending[itemID]; ok {
		s.mu.Unlock()
		return
	}
	s.pending[itemID] = struct{}{}
	s.mu.Unlock()

	s.submit(&task{itemID: itemID})
}

// PendingCount reports how many items are queued or waiting on a retry.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Rebuild scans the store for every item still missing content and queues
// them all, including ones previously abandoned.
func (s *Scheduler) Rebuild(ctx context.Context) (int, error) {
	ids := []string{}

	err := s.itemService.ScanMissingContent(ctx, &ids)
	if err != nil {
		return 0, err
	}

	for _, id := range ids {
		s.EnqueueItem(id)
	}

	return len(ids), nil
}

func (s *Scheduler) submit(t *task) {
	select {
	case s.queue <- t:
	case <-s.shutdown:
		s.drop(t.itemID)
	default:
		// Queue full. Drop the task; a rebuild or the next sync re-queues it.
		s.drop(t.itemID)
	}
}

func (s *Scheduler) drop(itemID string) {
	s.mu.Lock()
	delete(s.pending, itemID)
	s.mu.Unlock()
}

// retry schedules the task again after an exponential delay. Once the retry
// budget runs out the item is marked abandoned so syncs stop re-queueing it.
func (s *Scheduler) retry(ctx context.Context, t *task) {
	t.attempts++
	if t.attempts >= s.config.BackfillMaxRetries {
		if err := s.itemService.SaveContent(ctx, t.itemID, models.ContentStateAbandoned, nil, nil); err != nil {
			s.log.Err(err).Error("mark abandoned error")
		}
		s.drop(t.itemID)
		return
	}

	delay := s.config.BackfillBaseDelay << (t.attempts - 1)
	if delay > s.config.BackfillMaxDelay {
		delay = s.config.BackfillMaxDelay
	}

	time.AfterFunc(delay, func() {
		s.submit(t)
	})
}

func (s *Scheduler) processTasks() {
	for {
		select {
		case <-s.shutdown:
			s.done <- struct{}{}
			return
		case t := <-s.queue:
			s.process(context.Background(), t)
		}
	}
}

func (s *Scheduler) process(ctx context.Context, t *task) {
	item, err := s.itemService.RetrieveItem(ctx, items.RetrieveItemOptions{ID: &t.itemID})
	if err != nil {
		// Deleted since it was queued.
		if !errcodes.IsNotFound(err) {
			s.log.Err(err).Error("retrieve item error", logger.Data{"item_id": t.itemID})
		}
		s.drop(t.itemID)
		return
	}

	// Archiving while queued cancels the fetch.
	if item.IsArchived {
		s.drop(t.itemID)
		return
	}

	if item.ContentReader == models.ContentReaderPDF {
		s.fetchPDF(ctx, t, item)
		return
	}

	s.fetchContent(ctx, t, item)
}

func (s *Scheduler) fetchContent(ctx context.Context, t *task, item *models.Item) {
	result, err := s.client.FetchContent(ctx, item.ID)
	if err != nil {
		if errcodes.IsNotFound(err) {
			s.drop(t.itemID)
			return
		}
		s.retry(ctx, t)
		return
	}

	switch result.State {
	case models.ContentStateSucceeded:
		if result.HTML == nil || len(*result.HTML) <= 10 {
			// The server claims success but sent nothing usable; poll again.
			s.retry(ctx, t)
			return
		}
		if err := s.itemService.SaveContent(ctx, item.ID, models.ContentStateSucceeded, result.HTML, nil); err != nil {
			s.log.Err(err).Error("save content error", logger.Data{"item_id": item.ID})
			s.retry(ctx, t)
			return
		}
		s.drop(t.itemID)
		s.hub.Publish(notify.TopicItems)

	case models.ContentStateFailed:
		if err := s.itemService.SaveContent(ctx, item.ID, models.ContentStateFailed, nil, nil); err != nil {
			s.log.Err(err).Error("save content error", logger.Data{"item_id": item.ID})
		}
		s.drop(t.itemID)

	default:
		// Still processing server-side.
		s.retry(ctx, t)
	}
}

func (s *Scheduler) fetchPDF(ctx context.Context, t *task, item *models.Item) {
	if !s.config.UserConfig.DownloadPDFs {
		s.drop(t.itemID)
		return
	}

	data, err := s.client.FetchPDF(ctx, item.URL)
	if err != nil {
		if errcodes.IsNotFound(err) {
			s.drop(t.itemID)
			return
		}
		s.retry(ctx, t)
		return
	}

	if !mimetype.Detect(data).Is("application/pdf") {
		// The url served something else, likely an error page; retrying once
		// the server finishes processing usually fixes it.
		s.retry(ctx, t)
		return
	}

	path, err := s.writePDF(item.ID, data)
	if err != nil {
		s.log.Err(err).Error("write pdf error", logger.Data{"item_id": item.ID})
		s.retry(ctx, t)
		return
	}

	if err := s.itemService.SaveContent(ctx, item.ID, models.ContentStateSucceeded, nil, &path); err != nil {
		s.log.Err(err).Error("save content error", logger.Data{"item_id": item.ID})
		s.retry(ctx, t)
		return
	}

	s.drop(t.itemID)
	s.hub.Publish(notify.TopicItems)
}

func (s *Scheduler) writePDF(itemID string, data []byte) (string, error) {
	dir := filepath.Join(s.config.CacheDir, "documents")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.WithStack(err)
	}

	path := filepath.Join(dir, itemID+".pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.WithStack(err)
	}

	return path, nil
}
