package labels

type CreateLabelPayload struct {
	Name  string `json:"name" validate:"required,min=1,max=64"`
	Color string `json:"color" validate:"required,hexcolor"`
}

type ListLabelsQuery struct {
	Limit  int `query:"limit" json:"limit,omitempty" default:"100" validate:"min=1,max=500"`
	Offset int `query:"offset" json:"offset,omitempty" validate:"min=0"`
}

type SetItemLabelsPayload struct {
	LabelIDs []string `json:"label_ids" validate:"required,max=50,dive,required"`
}
