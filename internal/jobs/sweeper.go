package jobs

import (
	"context"
	"time"

	"github.com/safetrack/ehs-training-backend/internal/logger"
	"github.com/safetrack/ehs-training-backend/internal/services"
)

const sweepBatchSize = 100

// ExpirySweeper walks IN_PROGRESS attempts whose deadline has passed and
// auto-submits them. The clock check in the attempt service is what makes
// deadlines authoritative; the sweeper only bounds how long an abandoned
// attempt can sit before its result lands in the learner's progress.
type ExpirySweeper struct {
	log      *logger.Logger
	attempts services.AttemptService
	interval time.Duration
}

func NewExpirySweeper(baseLog *logger.Logger, attempts services.AttemptService, interval time.Duration) *ExpirySweeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &ExpirySweeper{
		log:      baseLog.With("component", "ExpirySweeper"),
		attempts: attempts,
		interval: interval,
	}
}

func (w *ExpirySweeper) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := w.attempts.SweepExpired(ctx, sweepBatchSize)
				if err != nil {
					w.log.Warn("expiry sweep failed", "error", err)
					continue
				}
				if n > 0 {
					w.log.Info("expired attempts finalized", "count", n)
				}
			}
		}
	}()
}
