package worker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OverdueLister enumerates in-progress sessions whose paper time limit has
// elapsed.
type OverdueLister interface {
	ListOverdue(ctx context.Context, now time.Time) ([]uuid.UUID, error)
}

// AutoSubmitter force-terminates a single overdue session. The operation is
// idempotent, so the worker never needs to dedupe or coordinate triggers.
type AutoSubmitter interface {
	AutoSubmit(ctx context.Context, sessionID uuid.UUID) error
}

// TimeoutWorker is the sweep that enforces paper time limits. Each tick it
// lists overdue sessions and fires AutoSubmit per ID; failures are logged and
// retried naturally on the next tick because the session stays IN_PROGRESS.
type TimeoutWorker struct {
	sessions OverdueLister
	submit   AutoSubmitter
	interval time.Duration
	log      zerolog.Logger
}

func NewTimeoutWorker(sessions OverdueLister, submit AutoSubmitter, interval time.Duration, log zerolog.Logger) *TimeoutWorker {
	return &TimeoutWorker{
		sessions: sessions,
		submit:   submit,
		interval: interval,
		log:      log.With().Str("component", "timeout_worker").Logger(),
	}
}

func (w *TimeoutWorker) Start(ctx context.Context) {
	w.log.Info().Dur("interval", w.interval).Msg("TimeoutWorker started")

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("TimeoutWorker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. Exported so deployments with an external scheduler can
// invoke it directly instead of running the ticker loop.
func (w *TimeoutWorker) Sweep(ctx context.Context) {
	ids, err := w.sessions.ListOverdue(ctx, time.Now())
	if err != nil {
		w.log.Error().Err(err).Msg("List overdue sessions failed")
		return
	}

	for _, id := range ids {
		if err := w.submit.AutoSubmit(ctx, id); err != nil {
			w.log.Error().Err(err).Str("session_id", id.String()).Msg("Auto-submit failed")
		}
	}

	if len(ids) > 0 {
		w.log.Info().Int("sessions", len(ids)).Msg("Timed out overdue sessions")
	}
}
