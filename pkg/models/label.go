package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Label struct {
	bun.BaseModel `bun:"table:labels,alias:l"`

	ID          string    `bun:",pk,nullzero" json:"id"`
	Name        string    `bun:",nullzero" json:"name"`
	Color       string    `bun:",nullzero" json:"color"`
	Description *string   `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	ItemCount int `bun:",scanonly" json:"item_count"`
}
