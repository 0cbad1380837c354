package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	HighlightTypeHighlight = "HIGHLIGHT"
	HighlightTypeNote      = "NOTE"
)

type Highlight struct {
	bun.BaseModel `bun:"table:highlights,alias:h"`

	ID      string `bun:",pk,nullzero" json:"id"`
	ShortID string `bun:",nullzero" json:"short_id"`
	Type    string `bun:",nullzero" json:"type"`

	Quote  string  `bun:",nullzero" json:"quote"`
	Prefix *string `json:"prefix"`
	Suffix *string `json:"suffix"`
	// Patch is a diff-match-patch positional anchor used to relocate the
	// highlight when the article content reflows.
	Patch      string  `bun:",nullzero" json:"patch"`
	Annotation *string `json:"annotation"`

	CreatedByMe bool      `json:"created_by_me"`
	SyncStatus  string    `bun:",nullzero" json:"sync_status"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Relations
	HighlightLabels []*HighlightLabel `bun:"rel:has-many,join:id=highlight_id" json:"highlight_labels,omitempty"`
}

type HighlightLabel struct {
	bun.BaseModel `bun:"table:highlight_labels,alias:hl"`

	HighlightID string `bun:",pk" json:"highlight_id"`
	LabelID     string `bun:",pk" json:"label_id"`
	Label       *Label `bun:"rel:belongs-to,join:label_id=id" json:"label,omitempty"`
}
