package printing

import (
	"context"
	"time"

	"github.com/carlosbmello/echef-caixa-web/internal/obs"
)

// Poll periodically requeues failed print jobs until ctx is cancelled. Run
// it in its own goroutine; errors are logged, never fatal, since printing
// must not take the register down.
func (s *Service) Poll(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			retried, err := s.RetryFailed(ctx)
			if err != nil {
				s.Logger.Warn().Err(err).Msg("failed print job sweep errored")
				continue
			}
			if retried > 0 {
				s.Logger.Info().Int("retried", retried).Msg("requeued failed print jobs")
			}
		}
	}
}

func (s *Service) observeRetry(ok bool) {
	if obs.PrintRetryTotal == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	obs.PrintRetryTotal.WithLabelValues(result).Inc()
}
