// Package remote abstracts the library backend's GraphQL API. Everything the
// sync engine knows about the server goes through the Client interface so
// tests (and future transports) can swap the implementation.
package remote

import (
	"context"
	"time"
)

type Client interface {
	// ListChanges returns one page of library changes since the given
	// timestamp. The cursor is opaque; pass back exactly what the previous
	// page returned. Deletions arrive as ids, not full items.
	ListChanges(ctx context.Context, since time.Time, cursor *string, limit int) (*ChangePage, error)

	// FetchContent fetches the parsed article body for a single item. The
	// server parses asynchronously, so the result may still be PROCESSING.
	FetchContent(ctx context.Context, itemID string) (*ContentResult, error)

	// CreateItem saves a URL (optionally with locally captured HTML) to the
	// user's library. The clientRequestID lets the server dedupe retries.
	CreateItem(ctx context.Context, req CreateItemRequest) (*CreateItemResult, error)

	UpdateItem(ctx context.Context, id string, patch ItemPatch) error
	DeleteItem(ctx context.Context, id string) error
	UpdateReadingProgress(ctx context.Context, id string, progress float64, anchor int) error

	SetLabels(ctx context.Context, itemID string, labelIDs []string) error
	SetHighlightLabels(ctx context.Context, highlightID string, labelIDs []string) error
	CreateLabel(ctx context.Context, name, color string) (*RemoteLabel, error)
	ListLabels(ctx context.Context) ([]RemoteLabel, error)

	Search(ctx context.Context, query string, cursor *string, limit int) (*SearchPage, error)

	// FetchPDF downloads the original bytes for PDF items. The url is the
	// item's page url, which for PDFs points at the stored document.
	FetchPDF(ctx context.Context, url string) ([]byte, error)
}
