package search

type SearchQuery struct {
	Query  string  `query:"q" json:"q" validate:"required,min=1,max=512"`
	Cursor *string `query:"cursor" json:"cursor,omitempty"`
	Limit  int     `query:"limit" json:"limit,omitempty" default:"20" validate:"min=1,max=100"`
}
