package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskExpireStale = "reports:expire_stale"

// ExpireStalePayload is the JSON body of a TaskExpireStale task.
type ExpireStalePayload struct {
	StaleAfterSeconds int64 `json:"stale_after_seconds"`
}

func (p ExpireStalePayload) StaleAfter() time.Duration {
	return time.Duration(p.StaleAfterSeconds) * time.Second
}

// NewExpireStaleTask builds a sweep task. Sweeps are idempotent, so a
// failed run is retried once and otherwise left to the next schedule.
func NewExpireStaleTask(staleAfter time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(ExpireStalePayload{
		StaleAfterSeconds: int64(staleAfter / time.Second),
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskExpireStale,
		payload,
		asynq.MaxRetry(1),
		asynq.Queue("default"),
		asynq.Timeout(2*time.Minute),
	), nil
}
