package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Content states reported by the library server. Parsing happens
// asynchronously server-side, so a freshly saved item is usually PROCESSING
// until the backfill scheduler sees it flip to SUCCEEDED or FAILED.
const (
	ContentStateProcessing = "PROCESSING"
	ContentStateSucceeded  = "SUCCEEDED"
	ContentStateFailed     = "FAILED"
	ContentStateUnknown    = "UNKNOWN"

	// ContentStateAbandoned is local-only: the fetch retry budget ran out.
	// A later full rebuild can still pick the item up again.
	ContentStateAbandoned = "ABANDONED"
)

// Sync statuses for locally mutated rows. SYNCED rows match the server's view
// of the entity; everything else has a pending mutation in the queue.
const (
	SyncStatusSynced      = "SYNCED"
	SyncStatusNeedsCreate = "NEEDS_CREATE"
	SyncStatusNeedsUpdate = "NEEDS_UPDATE"
	SyncStatusNeedsDelete = "NEEDS_DELETE"
)

const (
	ContentReaderWeb = "WEB"
	ContentReaderPDF = "PDF"
)

type Item struct {
	bun.BaseModel `bun:"table:items,alias:i"`

	// ID is the server-assigned id once known. For items created locally
	// before the server has acknowledged them, ID holds the client-generated
	// placeholder and LocalCreatedID records that it is a placeholder. Once
	// the server id arrives, the row and all of its relations are re-keyed
	// atomically and LocalCreatedID is cleared.
	ID             string  `bun:",pk,nullzero" json:"id"`
	LocalCreatedID *string `json:"local_created_id,omitempty"`

	URL         string  `bun:",nullzero" json:"url"`
	Title       string  `bun:",nullzero" json:"title"`
	Slug        string  `bun:",nullzero" json:"slug"`
	Description *string `json:"description"`
	Author      *string `json:"author"`
	SiteName    *string `json:"site_name"`
	ImageURL    *string `json:"image_url"`

	ContentState  string  `bun:",nullzero" json:"content_state"`
	Content       *string `json:"content,omitempty"`
	ContentReader string  `bun:",nullzero" json:"content_reader"`
	LocalPDF      *string `json:"local_pdf,omitempty"`
	WordCount     *int    `json:"word_count"`

	IsArchived            bool    `json:"is_archived"`
	ReadingProgress       float64 `json:"reading_progress"`
	ReadingProgressAnchor int     `json:"reading_progress_anchor"`

	SavedAt     time.Time  `json:"saved_at"`
	ReadAt      *time.Time `json:"read_at"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	SyncStatus string `bun:",nullzero" json:"sync_status"`

	// Relations
	ItemLabels     []*ItemLabel     `bun:"rel:has-many,join:id=item_id" json:"item_labels,omitempty"`
	ItemHighlights []*ItemHighlight `bun:"rel:has-many,join:id=item_id" json:"item_highlights,omitempty"`
}

// HasContent reports whether there is a usable article body locally. Very
// short bodies are treated as absent; the server returns placeholder strings
// for some items mid-parse.
func (i *Item) HasContent() bool {
	return i.Content != nil && len(*i.Content) > 10
}

type ItemLabel struct {
	bun.BaseModel `bun:"table:item_labels,alias:il"`

	ItemID  string `bun:",pk" json:"item_id"`
	LabelID string `bun:",pk" json:"label_id"`
	Label   *Label `bun:"rel:belongs-to,join:label_id=id" json:"label,omitempty"`
}

type ItemHighlight struct {
	bun.BaseModel `bun:"table:item_highlights,alias:ih"`

	ItemID      string     `bun:",pk" json:"item_id"`
	HighlightID string     `bun:",pk" json:"highlight_id"`
	Highlight   *Highlight `bun:"rel:belongs-to,join:highlight_id=id" json:"highlight,omitempty"`
}
