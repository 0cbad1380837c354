package migrations

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"
)

func init() {
	up := func(_ context.Context, db *bun.DB) error {
		_, err := db.Exec(`
			CREATE TABLE items (
				id TEXT PRIMARY KEY,
				local_created_id TEXT,
				url TEXT NOT NULL,
				title TEXT NOT NULL,
				slug TEXT,
				description TEXT,
				author TEXT,
				site_name TEXT,
				image_url TEXT,
				content_state TEXT NOT NULL DEFAULT 'UNKNOWN',
				content TEXT,
				content_reader TEXT NOT NULL DEFAULT 'WEB',
				local_pdf TEXT,
				word_count INTEGER,
				is_archived BOOLEAN NOT NULL DEFAULT FALSE,
				reading_progress REAL NOT NULL DEFAULT 0,
				reading_progress_anchor INTEGER NOT NULL DEFAULT 0,
				saved_at TIMESTAMPTZ NOT NULL,
				read_at TIMESTAMPTZ,
				published_at TIMESTAMPTZ,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				sync_status TEXT NOT NULL DEFAULT 'SYNCED'
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Non-unique on purpose: the same URL can be saved by different
		// flows, so it's a resolution hint rather than a key.
		_, err = db.Exec(`CREATE INDEX ix_items_url ON items (url)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_items_saved_at ON items (saved_at DESC)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_items_content_state ON items (content_state)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_items_sync_status ON items (sync_status)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE labels (
				id TEXT PRIMARY KEY,
				name TEXT NOT NULL,
				color TEXT NOT NULL,
				description TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		// Case-insensitive unique constraint on label names.
		_, err = db.Exec(`CREATE UNIQUE INDEX ux_labels_name ON labels (name COLLATE NOCASE)`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE highlights (
				id TEXT PRIMARY KEY,
				short_id TEXT NOT NULL,
				type TEXT NOT NULL DEFAULT 'HIGHLIGHT',
				quote TEXT NOT NULL,
				prefix TEXT,
				suffix TEXT,
				patch TEXT NOT NULL,
				annotation TEXT,
				created_by_me BOOLEAN NOT NULL DEFAULT FALSE,
				sync_status TEXT NOT NULL DEFAULT 'SYNCED',
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE item_labels (
				item_id TEXT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
				label_id TEXT NOT NULL REFERENCES labels (id) ON DELETE CASCADE,
				PRIMARY KEY (item_id, label_id)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE item_highlights (
				item_id TEXT NOT NULL REFERENCES items (id) ON DELETE CASCADE,
				highlight_id TEXT NOT NULL REFERENCES highlights (id) ON DELETE CASCADE,
				PRIMARY KEY (item_id, highlight_id)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE highlight_labels (
				highlight_id TEXT NOT NULL REFERENCES highlights (id) ON DELETE CASCADE,
				label_id TEXT NOT NULL REFERENCES labels (id) ON DELETE CASCADE,
				PRIMARY KEY (highlight_id, label_id)
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE sync_checkpoints (
				id INTEGER PRIMARY KEY,
				last_synced_at TIMESTAMPTZ NOT NULL,
				cursor TEXT,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`
			CREATE TABLE mutations (
				seq INTEGER PRIMARY KEY AUTOINCREMENT,
				entity_type TEXT NOT NULL,
				entity_id TEXT NOT NULL,
				kind TEXT NOT NULL,
				data TEXT NOT NULL DEFAULT '{}',
				created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
			)
`)
		if err != nil {
			return errors.WithStack(err)
		}
		_, err = db.Exec(`CREATE INDEX ix_mutations_entity ON mutations (entity_type, entity_id, kind)`)
		if err != nil {
			return errors.WithStack(err)
		}
		return nil
	}

	down := func(_ context.Context, db *bun.DB) error {
		for _, table := range []string{
			"mutations",
			"sync_checkpoints",
			"highlight_labels",
			"item_highlights",
			"item_labels",
			"highlights",
			"labels",
			"items",
		} {
			_, err := db.Exec("DROP TABLE IF EXISTS " + table)
			if err != nil {
				return errors.WithStack(err)
			}
		}
		return nil
	}

	Migrations.MustRegister(up, down)
}
