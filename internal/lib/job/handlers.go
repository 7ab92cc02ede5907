package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

func (j *JobService) handleExpireStaleTask(ctx context.Context, t *asynq.Task) error {
	var p ExpireStalePayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal expire stale payload: %w: %w", err, asynq.SkipRetry)
	}
	if p.StaleAfterSeconds <= 0 {
		return fmt.Errorf("stale_after_seconds must be positive: %w", asynq.SkipRetry)
	}
	if j.expirer == nil {
		return fmt.Errorf("no stale expirer registered")
	}

	start := time.Now()
	j.logger.Debug().
		Str("type", TaskExpireStale).
		Dur("stale_after", p.StaleAfter()).
		Msg("processing expire stale task")

	n, err := j.expirer.ExpireStale(ctx, p.StaleAfter())
	if err != nil {
		j.logger.Error().
			Str("type", TaskExpireStale).
			Err(err).
			Msg("failed to expire stale one-pager records")
		return err
	}

	ev := j.logger.Debug()
	if n > 0 {
		ev = j.logger.Info()
	}
	ev.Str("type", TaskExpireStale).
		Int("expired", n).
		Dur("duration", time.Since(start)).
		Msg("expired stale one-pager records")
	return nil
}
