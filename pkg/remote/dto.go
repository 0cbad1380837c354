package remote

import "time"

// RemoteItem is the server's view of a saved item. The labels and highlights
// attached here are the authoritative full set for this item at this point
// in time; the reconciler replaces local cross-references wholesale.
type RemoteItem struct {
	ID          string  `json:"id"`
	Slug        string  `json:"slug"`
	URL         string  `json:"url"`
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Author      *string `json:"author"`
	SiteName    *string `json:"siteName"`
	ImageURL    *string `json:"image"`

	ContentState  string `json:"state"`
	ContentReader string `json:"contentReader"`
	WordCount     *int   `json:"wordsCount"`

	IsArchived            bool    `json:"isArchived"`
	ReadingProgress       float64 `json:"readingProgressPercent"`
	ReadingProgressAnchor int     `json:"readingProgressAnchorIndex"`

	SavedAt     time.Time  `json:"savedAt"`
	ReadAt      *time.Time `json:"readAt"`
	PublishedAt *time.Time `json:"publishedAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`

	Labels     []RemoteLabel     `json:"labels"`
	Highlights []RemoteHighlight `json:"highlights"`
}

type RemoteLabel struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Color       string  `json:"color"`
	Description *string `json:"description"`
}

type RemoteHighlight struct {
	ID          string            `json:"id"`
	ShortID     string            `json:"shortId"`
	Type        string            `json:"type"`
	Quote       string            `json:"quote"`
	Prefix      *string           `json:"prefix"`
	Suffix      *string           `json:"suffix"`
	Patch       string            `json:"patch"`
	Annotation  *string           `json:"annotation"`
	CreatedByMe bool              `json:"createdByMe"`
	UpdatedAt   *time.Time        `json:"updatedAt"`
	Labels      []RemoteLabel     `json:"labels"`
}

// ChangePage is one page of the incremental change feed.
type ChangePage struct {
	Items          []RemoteItem
	DeletedItemIDs []string
	Cursor         *string
	HasMore        bool
}

// Content states for ContentResult.State (same values the items table uses).
type ContentResult struct {
	State      string
	HTML       *string
	Item       *RemoteItem
	Highlights []RemoteHighlight
}

type CreateItemRequest struct {
	URL string
	// ClientRequestID is the locally generated placeholder id; the server
	// records it so a retried create doesn't produce a duplicate.
	ClientRequestID string
	Title           string
	OriginalHTML    *string
}

type CreateItemResult struct {
	ServerID string
	Slug     string
}

type ItemPatch struct {
	Title       *string
	Description *string
	IsArchived  *bool
	ReadAt      *time.Time
}

type SearchPage struct {
	Items   []RemoteItem
	Cursor  *string
	HasMore bool
}
