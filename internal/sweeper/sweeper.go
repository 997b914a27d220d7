package sweeper

import (
	"context"
	"expvar"
	"time"

	"trivia-rewards/internal/config"
	"trivia-rewards/internal/eligibility"
	"trivia-rewards/internal/store"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"
)

const (
	maxExpiryBatches = 20
	staleReportLimit = 100
)

var (
	eligibilitiesExpired = expvar.NewInt("sweeper_eligibilities_expired")
	stalePending         = expvar.NewInt("sweeper_stale_pending")
	sweepErrors          = expvar.NewInt("sweeper_errors")
)

// Sweeper runs periodic maintenance: expiring overdue eligibilities and surfacing pending
// operations that stopped making progress. It never repairs operations itself.
type Sweeper struct {
	eligibility *eligibility.Manager
	store       *store.Store
	cfg         config.EngineConfig
	now         func() time.Time
	sched       gocron.Scheduler
}

func New(elig *eligibility.Manager, st *store.Store, cfg config.EngineConfig) *Sweeper {
	return &Sweeper{eligibility: elig, store: st, cfg: cfg, now: time.Now}
}

func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// ExpireEligibilities expires overdue eligibilities batch by batch until a short batch.
func (s *Sweeper) ExpireEligibilities(ctx context.Context) (int64, error) {
	var total int64
	for i := 0; i < maxExpiryBatches; i++ {
		n, err := s.eligibility.ExpireDue(ctx)
		total += n
		if err != nil {
			return total, err
		}
		if n < int64(s.cfg.ExpirySweepBatch) {
			break
		}
	}
	eligibilitiesExpired.Add(total)
	if total > 0 {
		log.Info().Int64("expired", total).Msg("eligibilities_expired")
	}
	return total, nil
}

// ReportStalePending logs every pending operation untouched for longer than the staleness
// threshold and publishes the count. Reconciliation is left to operators.
func (s *Sweeper) ReportStalePending(ctx context.Context) ([]store.Operation, error) {
	ops, err := s.store.ListStalePending(ctx, s.now().Add(-s.cfg.PendingStaleAfter), staleReportLimit)
	if err != nil {
		return nil, err
	}
	stalePending.Set(int64(len(ops)))
	for _, op := range ops {
		log.Warn().
			Str("operation_id", op.ID).
			Str("kind", string(op.Kind)).
			Str("stage", string(op.Stage)).
			Str("catalog_item_id", op.CatalogItemID).
			Str("tx_ref", op.TxRef).
			Time("updated_at", op.UpdatedAt).
			Bool("reconcile", true).
			Msg("operation_stale_pending")
	}
	return ops, nil
}

// Start schedules both jobs every SweepInterval, first run immediately. Runs of the same job
// never overlap.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return err
	}
	jobs := []struct {
		name string
		run  func(ctx context.Context) error
	}{
		{name: "expire_eligibilities", run: func(ctx context.Context) error {
			_, err := s.ExpireEligibilities(ctx)
			return err
		}},
		{name: "report_stale_pending", run: func(ctx context.Context) error {
			_, err := s.ReportStalePending(ctx)
			return err
		}},
	}
	for _, job := range jobs {
		_, err := sched.NewJob(
			gocron.DurationJob(s.cfg.SweepInterval),
			gocron.NewTask(func() {
				if err := job.run(ctx); err != nil {
					sweepErrors.Add(1)
					log.Error().Err(err).Str("job", job.name).Msg("sweep failed")
				}
			}),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
			gocron.WithStartAt(gocron.WithStartImmediately()),
		)
		if err != nil {
			_ = sched.Shutdown()
			return err
		}
	}
	sched.Start()
	s.sched = sched
	log.Info().Dur("interval", s.cfg.SweepInterval).Msg("sweeper started")
	return nil
}

// Stop waits for running jobs to finish.
func (s *Sweeper) Stop() error {
	if s.sched == nil {
		return nil
	}
	return s.sched.Shutdown()
}
