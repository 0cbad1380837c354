package items

type CreateItemPayload struct {
	URL          string  `json:"url" validate:"required,url,max=2048"`
	Title        string  `json:"title" validate:"max=512"`
	OriginalHTML *string `json:"original_html,omitempty"`
}

type ListItemsQuery struct {
	Limit        int     `query:"limit" json:"limit,omitempty" default:"50" validate:"min=1,max=200"`
	Offset       int     `query:"offset" json:"offset,omitempty" validate:"min=0"`
	Archived     *bool   `query:"archived" json:"archived,omitempty"`
	ContentState *string `query:"content_state" json:"content_state,omitempty" validate:"omitempty,oneof=PROCESSING SUCCEEDED FAILED ABANDONED UNKNOWN"`
	SyncStatus   *string `query:"sync_status" json:"sync_status,omitempty" validate:"omitempty,oneof=SYNCED NEEDS_CREATE NEEDS_UPDATE NEEDS_DELETE"`
}

type UpdateItemPayload struct {
	Title      *string `json:"title,omitempty" validate:"omitempty,min=1,max=512"`
	IsArchived *bool   `json:"is_archived,omitempty"`
}

type UpdateProgressPayload struct {
	Progress float64 `json:"progress" validate:"min=0,max=100"`
	Anchor   int     `json:"anchor" validate:"min=0"`
}
