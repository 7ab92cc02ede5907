// Package job runs background work on asynq, a Redis-backed task queue.
//
// The only task today is the periodic sweep that expires in-progress
// reports whose pipeline stopped reporting.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/bynd/onepager/internal/config"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// StaleExpirer marks abandoned in-progress records as failed and reports
// how many it changed.
type StaleExpirer interface {
	ExpireStale(ctx context.Context, staleAfter time.Duration) (int, error)
}

// JobService owns the asynq client, worker server and scheduler.
type JobService struct {
	Client *asynq.Client

	server    *asynq.Server
	scheduler *asynq.Scheduler
	logger    *zerolog.Logger
	jobs      config.JobsConfig

	expirer StaleExpirer
}

func redisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// NewJobService builds the asynq components. Nothing connects to Redis
// until Start.
func NewJobService(logger *zerolog.Logger, cfg *config.Config) *JobService {
	opt := redisOpt(cfg.Redis)

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Jobs.Concurrency,
		Queues: map[string]int{
			"critical": 6,
			"default":  3,
			"low":      1,
		},
		Logger:   newAsynqLogger(logger),
		LogLevel: asynq.WarnLevel,
	})

	scheduler := asynq.NewScheduler(opt, &asynq.SchedulerOpts{
		Location: time.UTC,
		Logger:   newAsynqLogger(logger),
		LogLevel: asynq.WarnLevel,
	})

	return &JobService{
		Client:    asynq.NewClient(opt),
		server:    server,
		scheduler: scheduler,
		logger:    logger,
		jobs:      cfg.Jobs,
	}
}

// Start registers the task handlers, schedules the stale sweep and starts
// processing. It returns once the workers are running.
func (j *JobService) Start(expirer StaleExpirer) error {
	j.expirer = expirer

	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskExpireStale, j.handleExpireStaleTask)

	task, err := NewExpireStaleTask(j.jobs.StaleAfter)
	if err != nil {
		return err
	}
	schedule := fmt.Sprintf("@every %s", j.jobs.SweepInterval)
	if _, err := j.scheduler.Register(schedule, task, asynq.Unique(j.jobs.SweepInterval)); err != nil {
		return fmt.Errorf("registering %s schedule: %w", TaskExpireStale, err)
	}

	j.logger.Info().
		Str("schedule", schedule).
		Dur("stale_after", j.jobs.StaleAfter).
		Msg("starting background job server")

	if err := j.server.Start(mux); err != nil {
		return err
	}
	if err := j.scheduler.Start(); err != nil {
		j.server.Shutdown()
		return err
	}
	return nil
}

// EnqueueExpireStale queues a sweep to run now.
func (j *JobService) EnqueueExpireStale(ctx context.Context, staleAfter time.Duration) (*asynq.TaskInfo, error) {
	task, err := NewExpireStaleTask(staleAfter)
	if err != nil {
		return nil, err
	}
	return j.Client.EnqueueContext(ctx, task)
}

// Stop shuts the scheduler and workers down, waiting for running tasks.
func (j *JobService) Stop() {
	j.logger.Info().Msg("stopping background job server")
	j.scheduler.Shutdown()
	j.server.Shutdown()
	if err := j.Client.Close(); err != nil {
		j.logger.Warn().Err(err).Msg("failed to close asynq client")
	}
}
