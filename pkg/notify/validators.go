package notify

type PollQuery struct {
	Topic string `query:"topic" json:"topic,omitempty" default:"items" validate:"oneof=items labels highlights sync"`
}
