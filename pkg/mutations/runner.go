package mutations

import (
	"context"
	"time"

	"github.com/robinjoseph08/golib/logger"
	"github.com/tsundokuapp/tsundoku/pkg/config"
	"github.com/tsundokuapp/tsundoku/pkg/errcodes"
)

// Runner drains the queue on an interval so buffered offline changes reach
// the server shortly after connectivity returns, without waiting for the
// next full sync.
type Runner struct {
	config  *config.Config
	log     logger.Logger
	service *Service

	kick     chan struct{}
	shutdown chan struct{}
	done     chan struct{}
}

func NewRunner(cfg *config.Config, service *Service) *Runner {
	return &Runner{
		config:   cfg,
		log:      logger.New(),
		service:  service,
		kick:     make(chan struct{}, 1),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (r *Runner) Start() {
	go r.run()
}

// Kick requests an immediate drain. Non-blocking; a drain that is already
// pending absorbs the request.
func (r *Runner) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

func (r *Runner) run() {
	timer := time.NewTimer(r.config.MutationDrainInterval)
	defer timer.Stop()

	for {
		select {
		case <-r.shutdown:
			r.done <- struct{}{}
			return
		case <-r.kick:
			r.drain()
			timer.Reset(r.config.MutationDrainInterval)
		case <-timer.C:
			r.drain()
			timer.Reset(r.config.MutationDrainInterval)
		}
	}
}

func (r *Runner) drain() {
	ctx := context.Background()

	pushed, err := r.service.Drain(ctx)
	if err != nil {
		// Offline is the normal case; anything else is worth a log line.
		if !errcodes.IsRetryable(err) {
			r.log.Err(err).Error("drain mutations error")
		}
		return
	}
	if pushed > 0 {
		r.log.Info("drained mutation queue", logger.Data{"pushed": pushed})
	}
}

func (r *Runner) Shutdown() {
	close(r.shutdown)
	<-r.done
}
