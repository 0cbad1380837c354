// Package remotetest provides a configurable in-memory remote.Client for
// tests. Behavior defaults to empty successful responses; tests override the
// function fields they care about and inspect the recorded calls.
package remotetest

import (
	"context"
	"sync"
	"time"

	"github.com/tsundokuapp/tsundoku/pkg/remote"
)

type ProgressCall struct {
	ItemID   string
	Progress float64
	Anchor   int
}

type LabelsCall struct {
	TargetID string
	LabelIDs []string
}

// Fake implements remote.Client. The zero value is usable.
type Fake struct {
	mu sync.Mutex

	ListChangesFn           func(ctx context.Context, since time.Time, cursor *string, limit int) (*remote.ChangePage, error)
	FetchContentFn          func(ctx context.Context, itemID string) (*remote.ContentResult, error)
	CreateItemFn            func(ctx context.Context, req remote.CreateItemRequest) (*remote.CreateItemResult, error)
	UpdateItemFn            func(ctx context.Context, id string, patch remote.ItemPatch) error
	DeleteItemFn            func(ctx context.Context, id string) error
	UpdateReadingProgressFn func(ctx context.Context, id string, progress float64, anchor int) error
	SetLabelsFn             func(ctx context.Context, itemID string, labelIDs []string) error
	SetHighlightLabelsFn    func(ctx context.Context, highlightID string, labelIDs []string) error
	CreateLabelFn           func(ctx context.Context, name, color string) (*remote.RemoteLabel, error)
	ListLabelsFn            func(ctx context.Context) ([]remote.RemoteLabel, error)
	SearchFn                func(ctx context.Context, query string, cursor *string, limit int) (*remote.SearchPage, error)
	FetchPDFFn              func(ctx context.Context, url string) ([]byte, error)

	ListChangesCalls   []ListChangesCall
	FetchContentCalls  []string
	CreateItemCalls    []remote.CreateItemRequest
	UpdateItemCalls    []UpdateItemCall
	DeleteItemCalls    []string
	ProgressCalls      []ProgressCall
	SetLabelsCalls     []LabelsCall
	HighlightLabelsCalls []LabelsCall
	FetchPDFCalls      []string
}

type ListChangesCall struct {
	Since  time.Time
	Cursor *string
	Limit  int
}

type UpdateItemCall struct {
	ID    string
	Patch remote.ItemPatch
}

var _ remote.Client = (*Fake)(nil)

func (f *Fake) ListChanges(ctx context.Context, since time.Time, cursor *string, limit int) (*remote.ChangePage, error) {
	f.mu.Lock()
	f.ListChangesCalls = append(f.ListChangesCalls, ListChangesCall{Since: since, Cursor: cursor, Limit: limit})
	fn := f.ListChangesFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, since, cursor, limit)
	}
	return &remote.ChangePage{}, nil
}

func (f *Fake) FetchContent(ctx context.Context, itemID string) (*remote.ContentResult, error) {
	f.mu.Lock()
	f.FetchContentCalls = append(f.FetchContentCalls, itemID)
	fn := f.FetchContentFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, itemID)
	}
	html := "<html><body>placeholder body long enough</body></html>"
	return &remote.ContentResult{State: "SUCCEEDED", HTML: &html}, nil
}

func (f *Fake) CreateItem(ctx context.Context, req remote.CreateItemRequest) (*remote.CreateItemResult, error) {
	f.mu.Lock()
	f.CreateItemCalls = append(f.CreateItemCalls, req)
	fn := f.CreateItemFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	return &remote.CreateItemResult{ServerID: "server-" + req.ClientRequestID}, nil
}

func (f *Fake) UpdateItem(ctx context.Context, id string, patch remote.ItemPatch) error {
	f.mu.Lock()
	f.UpdateItemCalls = append(f.UpdateItemCalls, UpdateItemCall{ID: id, Patch: patch})
	fn := f.UpdateItemFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, id, patch)
	}
	return nil
}

func (f *Fake) DeleteItem(ctx context.Context, id string) error {
	f.mu.Lock()
	f.DeleteItemCalls = append(f.DeleteItemCalls, id)
	fn := f.DeleteItemFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, id)
	}
	return nil
}

func (f *Fake) UpdateReadingProgress(ctx context.Context, id string, progress float64, anchor int) error {
	f.mu.Lock()
	f.ProgressCalls = append(f.ProgressCalls, ProgressCall{ItemID: id, Progress: progress, Anchor: anchor})
	fn := f.UpdateReadingProgressFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, id, progress, anchor)
	}
	return nil
}

func (f *Fake) SetLabels(ctx context.Context, itemID string, labelIDs []string) error {
	f.mu.Lock()
	f.SetLabelsCalls = append(f.SetLabelsCalls, LabelsCall{TargetID: itemID, LabelIDs: labelIDs})
	fn := f.SetLabelsFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, itemID, labelIDs)
	}
	return nil
}

func (f *Fake) SetHighlightLabels(ctx context.Context, highlightID string, labelIDs []string) error {
	f.mu.Lock()
	f.HighlightLabelsCalls = append(f.HighlightLabelsCalls, LabelsCall{TargetID: highlightID, LabelIDs: labelIDs})
	fn := f.SetHighlightLabelsFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, highlightID, labelIDs)
	}
	return nil
}

func (f *Fake) CreateLabel(ctx context.Context, name, color string) (*remote.RemoteLabel, error) {
	f.mu.Lock()
	fn := f.CreateLabelFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, name, color)
	}
	return &remote.RemoteLabel{ID: "label-" + name, Name: name, Color: color}, nil
}

func (f *Fake) ListLabels(ctx context.Context) ([]remote.RemoteLabel, error) {
	f.mu.Lock()
	fn := f.ListLabelsFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx)
	}
	return nil, nil
}

func (f *Fake) Search(ctx context.Context, query string, cursor *string, limit int) (*remote.SearchPage, error) {
	f.mu.Lock()
	fn := f.SearchFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, query, cursor, limit)
	}
	return &remote.SearchPage{}, nil
}

func (f *Fake) FetchPDF(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.FetchPDFCalls = append(f.FetchPDFCalls, url)
	fn := f.FetchPDFFn
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, url)
	}
	return []byte("%PDF-1.7 stub"), nil
}
