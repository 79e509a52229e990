package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// Ticker is the minute job of the dispatch scheduler
type Ticker interface {
	Tick(ctx context.Context) error
}

// Sweeper is the periodic rescan of active alerts
type Sweeper interface {
	Sweep(ctx context.Context) (ScanResult, error)
}

// CronJob is an extra housekeeping job run on its own spec
type CronJob struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Runner drives the tick and the sweep on cron specs
type Runner struct {
	cron      *cron.Cron
	ticker    Ticker
	sweeper   Sweeper
	tickSpec  string
	sweepSpec string
	extra     []CronJob
	logger    *log.Logger
}

// NewRunner builds a runner ticking on tickSpec and sweeping every
// sweepEvery. A non-positive sweepEvery disables the sweep. With a nil ticker
// and sweeper only the extra jobs run.
func NewRunner(ticker Ticker, sweeper Sweeper, tickSpec string, sweepEvery time.Duration, logger *log.Logger, extra ...CronJob) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if tickSpec == "" {
		tickSpec = "@every 1m"
	}
	r := &Runner{
		cron:     cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger), cron.Recover(cron.DefaultLogger))),
		ticker:   ticker,
		sweeper:  sweeper,
		tickSpec: tickSpec,
		extra:    extra,
		logger:   logger,
	}
	if sweepEvery > 0 {
		r.sweepSpec = fmt.Sprintf("@every %s", sweepEvery)
	}
	return r
}

// Start registers the jobs, starts the cron loop and returns a stop function
// that waits for running jobs to finish.
func (r *Runner) Start(parent context.Context) (func(), error) {
	ctx, cancel := context.WithCancel(parent)

	if r.ticker != nil {
		if _, err := r.cron.AddFunc(r.tickSpec, func() { r.tick(ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("register tick %q: %w", r.tickSpec, err)
		}
	}
	if r.sweeper != nil && r.sweepSpec != "" {
		if _, err := r.cron.AddFunc(r.sweepSpec, func() { r.sweep(ctx) }); err != nil {
			cancel()
			return nil, fmt.Errorf("register sweep %q: %w", r.sweepSpec, err)
		}
	}
	for _, job := range r.extra {
		job := job
		if _, err := r.cron.AddFunc(job.Spec, func() {
			if err := job.Run(ctx); err != nil {
				r.logger.Printf("scheduler: job %s failed: %v", job.Name, err)
			}
		}); err != nil {
			cancel()
			return nil, fmt.Errorf("register %s %q: %w", job.Name, job.Spec, err)
		}
	}

	r.cron.Start()
	if r.ticker != nil {
		r.logger.Printf("scheduler: started tick=%q sweep=%q jobs=%d", r.tickSpec, r.sweepSpec, len(r.extra))
	} else {
		r.logger.Printf("scheduler: started housekeeping jobs=%d", len(r.extra))
	}

	return func() {
		cancel()
		<-r.cron.Stop().Done()
		r.logger.Printf("scheduler: stopped")
	}, nil
}

func (r *Runner) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if err := r.ticker.Tick(ctx); err != nil {
		r.logger.Printf("scheduler: tick failed: %v", err)
	}
}

func (r *Runner) sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	res, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.logger.Printf("scheduler: sweep failed: %v", err)
		return
	}
	if res.Matched > 0 || res.Failed > 0 {
		r.logger.Printf("scheduler: sweep alerts=%d evaluated=%d matched=%d duplicates=%d failed=%d",
			res.Alerts, res.Evaluated, res.Matched, res.Duplicates, res.Failed)
	}
}
