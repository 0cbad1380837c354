package models

import (
	"time"

	"github.com/pkg/errors"
	"github.com/segmentio/encoding/json"
	"github.com/uptrace/bun"
)

const (
	MutationEntityItem      = "item"
	MutationEntityHighlight = "highlight"
)

const (
	MutationKindCreate             = "create"
	MutationKindArchive            = "archive"
	MutationKindUnarchive          = "unarchive"
	MutationKindDelete             = "delete"
	MutationKindUpdateProgress     = "update_progress"
	MutationKindUpdateTitle        = "update_title"
	MutationKindSetLabels          = "set_labels"
	MutationKindSetHighlightLabels = "set_highlight_labels"
)

// Mutation is a buffered local write awaiting replay against the library
// server. Seq is assigned by the store and gives per-queue ordering; the
// queue coalesces mutations with the same entity and kind before draining.
type Mutation struct {
	bun.BaseModel `bun:"table:mutations,alias:m"`

	Seq        int64       `bun:",pk,autoincrement" json:"seq"`
	EntityType string      `bun:",nullzero" json:"entity_type"`
	EntityID   string      `bun:",nullzero" json:"entity_id"`
	Kind       string      `bun:",nullzero" json:"kind"`
	Data       string      `json:"-"`
	DataParsed interface{} `bun:"-" json:"data"`
	CreatedAt  time.Time   `json:"created_at"`
}

func (m *Mutation) UnmarshalData() error {
	switch m.Kind {
	case MutationKindCreate:
		m.DataParsed = &MutationCreateData{}
	case MutationKindUpdateProgress:
		m.DataParsed = &MutationProgressData{}
	case MutationKindUpdateTitle:
		m.DataParsed = &MutationTitleData{}
	case MutationKindSetLabels, MutationKindSetHighlightLabels:
		m.DataParsed = &MutationLabelsData{}
	default:
		// archive, unarchive, and delete carry no payload.
		m.DataParsed = nil
		return nil
	}

	err := json.Unmarshal([]byte(m.Data), m.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}

	return nil
}

func (m *Mutation) MarshalData() error {
	if m.DataParsed == nil {
		m.Data = "{}"
		return nil
	}

	data, err := json.Marshal(m.DataParsed)
	if err != nil {
		return errors.WithStack(err)
	}
	m.Data = string(data)

	return nil
}

type MutationCreateData struct {
	URL          string  `json:"url"`
	Title        string  `json:"title,omitempty"`
	OriginalHTML *string `json:"original_html,omitempty"`
}

type MutationProgressData struct {
	Progress float64 `json:"progress"`
	Anchor   int     `json:"anchor"`
}

type MutationTitleData struct {
	Title string `json:"title"`
}

type MutationLabelsData struct {
	LabelIDs []string `json:"label_ids"`
}
