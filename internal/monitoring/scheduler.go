package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/isdelr/blog/internal/metrics"
	"github.com/isdelr/blog/internal/session"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// sweepTimeout bounds a single cleanup run.
const sweepTimeout = 30 * time.Second

// Sweeper periodically deletes expired sessions from a session store.
type Sweeper struct {
	store    session.Store
	schedule cron.Schedule
	cron     *cron.Cron
}

// NewSweeper creates a sweeper running on the given cron expression. Both
// five-field expressions and descriptors such as "@every 1h" are accepted.
func NewSweeper(store session.Store, expr string) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", expr, err)
	}
	return &Sweeper{
		store:    store,
		schedule: schedule,
		cron:     cron.New(),
	}, nil
}

// Start schedules the cleanup job and returns immediately.
func (s *Sweeper) Start() {
	log.Info().Msg("Starting expired session sweeper...")
	s.cron.Schedule(s.schedule, cron.FuncJob(func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		_, _ = s.Sweep(ctx)
	}))
	s.cron.Start()
}

// Stop halts the sweeper and waits for a running cleanup to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("Stopped expired session sweeper.")
}

// Sweep runs one cleanup pass and returns the number of sessions removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete expired sessions")
		return 0, err
	}
	if n > 0 {
		metrics.SessionsSwept.Add(float64(n))
		log.Info().Int64("count", n).Msg("Deleted expired sessions")
	}
	return n, nil
}
