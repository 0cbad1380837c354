package highlights

type SetHighlightLabelsPayload struct {
	LabelIDs []string `json:"label_ids" validate:"required,max=50,dive,required"`
}
