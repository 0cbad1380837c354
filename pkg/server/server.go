package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/echo/v4/health"
	"github.com/robinjoseph08/golib/echo/v4/middleware/logger"
	"github.com/robinjoseph08/golib/echo/v4/middleware/recovery"
	"github.com/tsundokuapp/tsundoku/pkg/backfill"
	"github.com/tsundokuapp/tsundoku/pkg/binder"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
	"github.com/tsundokuapp/tsundoku/pkg/highlights"
	"github.com/tsundokuapp/tsundoku/pkg/items"
	"github.com/tsundokuapp/tsundoku/pkg/labels"
	"github.com/tsundokuapp/tsundoku/pkg/mutations"
	"github.com/tsundokuapp/tsundoku/pkg/notify"
	"github.com/tsundokuapp/tsundoku/pkg/reconciler"
	"github.com/tsundokuapp/tsundoku/pkg/remote"
	"github.com/tsundokuapp/tsundoku/pkg/search"
	"github.com/uptrace/bun"
)

// New wires up the local API. It only ever binds to loopback; the UI talks to
// it directly and the daemon owns all communication with the remote library.
func New(
	cfg *config.Config,
	db *bun.DB,
	client remote.Client,
	mutationService *mutations.Service,
	scheduler *backfill.Scheduler,
	syncService *reconciler.Service,
	hub *notify.Hub,
) (*http.Server, error) {
	e := echo.New()

	b, err := binder.New()
	if err != nil {
		return nil, errors.WithStack(err)
	}
	e.Binder = b

	e.Use(logger.Middleware())
	e.Use(recovery.Middleware())
	e.Use(middleware.CORS())

	health.RegisterRoutes(e)

	items.RegisterRoutes(e, db, mutationService, hub)
	labels.RegisterRoutes(e, db, client, mutationService, hub)
	highlights.RegisterRoutes(e, db, mutationService, hub)
	reconciler.RegisterRoutes(e, syncService)
	backfill.RegisterRoutes(e, scheduler)
	search.RegisterRoutes(e, db, client)
	config.RegisterRoutes(e, cfg)
	notify.RegisterRoutes(e, hub)

	echo.NotFoundHandler = notFoundHandler
	e.HTTPErrorHandler = errcodes.NewHandler().Handle

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort),
		Handler:           e,
		ReadHeaderTimeout: 3 * time.Second,
	}

	return srv, nil
}

func notFoundHandler(c echo.Context) error {
	c.SetPath("/:path")
	return errcodes.NotFound("Page")
}
