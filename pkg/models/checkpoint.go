package models

import (
	"time"

	"github.com/uptrace/bun"
)

// SyncCheckpoint is the single durable marker of sync progress. LastSyncedAt
// only ever moves forward, and only inside the same transaction that commits
// the page of remote changes it corresponds to. Cursor is the server's opaque
// pagination token; it's cleared once a full incremental pass completes.
type SyncCheckpoint struct {
	bun.BaseModel `bun:"table:sync_checkpoints,alias:sc"`

	ID           int       `bun:",pk" json:"id"`
	LastSyncedAt time.Time `json:"last_synced_at"`
	Cursor       *string   `json:"cursor"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// CheckpointRowID is the pk of the singleton checkpoint row.
const CheckpointRowID = 1
