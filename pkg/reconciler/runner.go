package reconciler

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
)

// Runner syncs on the interval the user configured. Interval changes made
// through the config API take effect on the next tick.
type Runner struct {
	config  *config.Config
	log     logger.Logger
	service *Service

	shutdown chan struct{}
	done     chan struct{}
}

func NewRunner(cfg *config.Config, service *Service) *Runner {
	return &Runner{
		config:   cfg,
		log:      logger.New(),
		service:  service,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Runner) Start() {
	go r.run()
}

func (r *Runner) run() {
	if r.config.UserConfig.SyncOnStartup {
		r.syncOnce()
	}

	timer := time.NewTimer(r.interval())

	for {
		select {
		case <-r.shutdown:
			timer.Stop()
			r.done <- struct{}{}
			return
		case <-timer.C:
			r.syncOnce()
			timer.Reset(r.interval())
		}
	}
}

func (r *Runner) interval() time.Duration {
	minutes := r.config.UserConfig.SyncIntervalMinutes
	if minutes < 1 {
		minutes = 1
	}
	return time.Duration(minutes) * time.Minute
}

func (r *Runner) syncOnce() {
	_, err := r.service.Sync(context.Background())
	if err != nil && !errcodes.IsRetryable(err) {
		r.log.Err(err).Error("scheduled sync error")
	}
}

func (r *Runner) Shutdown() {
	close(r.shutdown)
	<-r.done
}
