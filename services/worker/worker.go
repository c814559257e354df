package worker

import (
	"context"
	stderrors "errors"
	"sync/atomic"
	"time"

	"sjsage522/hotelpricesync/internal/ledger"
	"sjsage522/hotelpricesync/internal/rangesync"
	"sjsage522/hotelpricesync/internal/resolver"
	"sjsage522/hotelpricesync/logger"
	"sjsage522/hotelpricesync/services/lock"
	"sjsage522/hotelpricesync/services/publisher"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"
)

// Syncer runs a range synchronization for one listing
type Syncer interface {
	Sync(ctx context.Context, req rangesync.Request) (rangesync.Run, error)
}

// Report summarizes one refresh pass
type Report struct {
	Listings int
	Synced   int
	Skipped  int
	Failed   int
	Added    int
	Updated  int
}

// Worker refreshes the upcoming nights of every active listing on a cron
// schedule and trims the event streams afterwards
type Worker struct {
	ctx         context.Context
	syncer      Syncer
	listings    ledger.Listings
	publisher   publisher.Publisher
	cron        *cron.Cron
	schedule    string
	days        int
	concurrency int
	log         *logger.Logger
	now         func() time.Time
}

// NewWorker creates a new worker. An empty schedule disables the cron job;
// RefreshAll can still be called directly.
func NewWorker(
	ctx context.Context,
	syncer Syncer,
	listings ledger.Listings,
	pub publisher.Publisher,
	schedule string,
	days int,
	concurrency int,
) *Worker {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	if concurrency < 1 {
		concurrency = 1
	}
	if days < 1 {
		days = 1
	}
	return &Worker{
		ctx:         ctx,
		syncer:      syncer,
		listings:    listings,
		publisher:   pub,
		cron:        cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		schedule:    schedule,
		days:        days,
		concurrency: concurrency,
		log:         logger.ForWorker(),
		now:         time.Now,
	}
}

// Start schedules the refresh job
func (w *Worker) Start() error {
	if w.schedule == "" {
		w.log.Info().Msg("Scheduled refresh disabled")
		return nil
	}
	if _, err := w.cron.AddFunc(w.schedule, w.refreshJob); err != nil {
		return err
	}
	w.cron.Start()
	w.log.Info().Str("schedule", w.schedule).Int("days", w.days).Msg("Scheduled refresh started")
	return nil
}

// Stop stops the scheduler and waits for a running refresh to finish
func (w *Worker) Stop() {
	<-w.cron.Stop().Done()
}

func (w *Worker) refreshJob() {
	start := time.Now()
	report, err := w.RefreshAll(w.ctx)
	if err != nil {
		logger.LogError("ScheduledRefresh", err, "refresh pass failed")
		return
	}
	w.log.Info().
		Int("listings", report.Listings).
		Int("synced", report.Synced).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Dur("elapsed", time.Since(start)).
		Msg("Scheduled refresh finished")
}

// RefreshAll synchronizes the next days nights of every active listing, at
// most concurrency listings at a time. A listing already being synchronized
// is skipped. A failing listing never stops the others.
func (w *Worker) RefreshAll(ctx context.Context) (Report, error) {
	active, err := w.listings.Active(ctx)
	if err != nil {
		return Report{}, err
	}

	today := w.now().UTC()
	req := rangesync.Request{
		StartDate: today.Format(resolver.DateLayout),
		EndDate:   today.AddDate(0, 0, w.days).Format(resolver.DateLayout),
	}

	var synced, skipped, failed, added, updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, l := range active {
		l := l // per-iteration copy (go.mod directive lowered to 1.21)
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			r := req
			r.ListingID = l.ID
			run, err := w.syncer.Sync(gctx, r)
			switch {
			case stderrors.Is(err, lock.ErrLocked):
				skipped.Add(1)
				w.log.Debug().Int64("listing_id", l.ID).Msg("Listing busy, skipped")
			case err != nil:
				failed.Add(1)
				w.log.Warn().Err(err).Int64("listing_id", l.ID).Msg("Listing refresh failed")
			default:
				synced.Add(1)
				added.Add(int64(run.Added))
				updated.Add(int64(run.Updated))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	if err := w.publisher.TrimStreams(ctx); err != nil {
		logger.LogError("StreamTrimming", err, "trim after refresh failed")
	}

	return Report{
		Listings: len(active),
		Synced:   int(synced.Load()),
		Skipped:  int(skipped.Load()),
		Failed:   int(failed.Load()),
		Added:    int(added.Load()),
		Updated:  int(updated.Load()),
	}, nil
}
