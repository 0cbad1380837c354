package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/robinjoseph08/golib/logger"
	"github.com/robinjoseph08/golib/pointerutil"
	"github.com/tsundokuapp/tsundoku/pkg/checkpoints"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/database"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/mutations"
)

func main() {
	ctx := context.Background()
	log := logger.New()

	var opts struct {
		Limit      int    `short:"n" long:"limit" default:"50" description:"Maximum number of items to print"`
		SyncStatus string `short:"s" long:"sync-status" description:"Only print items with this sync status"`
		Queue      bool   `short:"q" long:"queue" description:"Also print the pending mutation queue"`
	}

	_, err := flags.Parse(&opts)
	if err != nil {
		os.Exit(1)
	}

	cfg, err := config.New()
	if err != nil {
		log.Err(err).Fatal("config error")
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Err(err).Fatal("database error")
	}

	checkpoint, err := checkpoints.NewService(db).Load(ctx)
	if err != nil {
		log.Err(err).Fatal("checkpoint load error")
	}
	cursor := "<none>"
	if checkpoint.Cursor != nil {
		cursor = *checkpoint.Cursor
	}
	fmt.Printf("Checkpoint: last_synced_at=%s cursor=%s\n\n", checkpoint.LastSyncedAt.Format("2006-01-02 15:04:05"), cursor)

	listOpts := items.ListItemsOptions{Limit: pointerutil.Int(opts.Limit)}
	if opts.SyncStatus != "" {
		listOpts.SyncStatus = pointerutil.String(opts.SyncStatus)
	}

	list, total, err := items.NewService(db).ListItemsWithTotal(ctx, listOpts)
	if err != nil {
		log.Err(err).Fatal("list items error")
	}

	fmt.Printf("Items (%d of %d):\n", len(list), total)
	for _, item := range list {
		fmt.Printf("  %-36s  %-12s %-10s %5.1f%%  %s\n", item.ID, item.SyncStatus, item.ContentState, item.ReadingProgress, item.Title)
	}

	if !opts.Queue {
		return
	}

	// The queue is read-only here, so the service never touches the remote.
	pending, err := mutations.NewService(db, nil).ListMutations(ctx, mutations.ListMutationsOptions{})
	if err != nil {
		log.Err(err).Fatal("list mutations error")
	}

	fmt.Printf("\nPending mutations (%d):\n", len(pending))
	for _, m := range pending {
		fmt.Printf("  %6d  %-22s %-10s %s\n", m.Seq, m.Kind, m.EntityType, m.EntityID)
	}
}
