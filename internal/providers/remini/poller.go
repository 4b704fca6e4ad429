package remini

import (
	"context"
	"errors"
	"time"

	"enhancebot/internal/domain"
	"enhancebot/internal/infra"
)

const (
	DefaultPollAttempts = 50
	DefaultPollInterval = 2 * time.Second
)

// StatusFetcher is the single call the poller needs from the client.
type StatusFetcher interface {
	Status(ctx context.Context, taskID string) (*TaskStatus, error)
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type PollerOptions struct {
	MaxAttempts int
	Interval    time.Duration
	Sleep       SleepFunc
	Logger      *infra.Logger
}

// Poller drives a task to a terminal state under a fixed attempt ceiling.
type Poller struct {
	fetcher     StatusFetcher
	maxAttempts int
	interval    time.Duration
	sleep       SleepFunc
	logger      *infra.Logger
}

// PollResult is the last status observed and how many queries it took.
type PollResult struct {
	Status   *TaskStatus
	Attempts int
}

func NewPoller(fetcher StatusFetcher, opts PollerOptions) *Poller {
	p := &Poller{
		fetcher:     fetcher,
		maxAttempts: opts.MaxAttempts,
		interval:    opts.Interval,
		sleep:       opts.Sleep,
		logger:      opts.Logger,
	}
	if p.maxAttempts <= 0 {
		p.maxAttempts = DefaultPollAttempts
	}
	if p.interval <= 0 {
		p.interval = DefaultPollInterval
	}
	if p.sleep == nil {
		p.sleep = sleepContext
	}
	if p.logger == nil {
		p.logger = infra.NopLogger()
	}
	return p
}

// Poll queries the task until it reports completed. A remote "failed" status
// and any transport error abort immediately. Running out of attempts returns
// the last observed status together with a *domain.PollTimeoutError.
func (p *Poller) Poll(ctx context.Context, taskID string) (*PollResult, error) {
	result := &PollResult{}
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		status, err := p.fetcher.Status(ctx, taskID)
		if err != nil {
			return result, err
		}
		result.Status = status
		result.Attempts = attempt

		if status.Completed() {
			p.logger.Debug().Str("task_id", taskID).Int("attempts", attempt).Msg("remini: task completed")
			return result, nil
		}
		if status.Status == StatusFailed {
			return result, &domain.RemoteServiceError{Op: "poll", Err: errors.New("task reported failed")}
		}
		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, p.interval); err != nil {
			return result, err
		}
	}

	last := ""
	if result.Status != nil {
		last = result.Status.Status
	}
	return result, &domain.PollTimeoutError{TaskID: taskID, Attempts: result.Attempts, LastStatus: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
