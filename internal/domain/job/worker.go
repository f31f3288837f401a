package job

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Handler executes one job's work. It should check ctx for cancellation
// between units of work and report incremental progress via progress.
type Handler func(ctx context.Context, j *Job, progress func(done, total int)) (json.RawMessage, error)

// queuer is the subset of Queue the worker pool needs, narrowed to an
// interface so the pool's cancellation and scheduling logic can be
// exercised in tests without a database.
type queuer interface {
	Claim(ctx context.Context) (*Job, error)
	IsCancelRequested(ctx context.Context, id uuid.UUID) (bool, error)
	UpdateProgress(ctx context.Context, id uuid.UUID, done, total int) error
	Finish(ctx context.Context, id uuid.UUID, status Status, result json.RawMessage, errMsg string) error
}

// Pool is a fixed-size goroutine worker pool that claims jobs from a
// Queue and cooperatively cancels them on request.
type Pool struct {
	queue        queuer
	handlers     map[Type]Handler
	concurrency  int
	pollInterval time.Duration
	cancelPoll   time.Duration
	logger       zerolog.Logger
}

// NewPool builds a worker pool with concurrency workers polling queue every
// pollInterval for new work.
func NewPool(queue queuer, concurrency int, pollInterval time.Duration, logger zerolog.Logger) *Pool {
	return &Pool{
		queue:        queue,
		handlers:     make(map[Type]Handler),
		concurrency:  concurrency,
		pollInterval: pollInterval,
		cancelPoll:   500 * time.Millisecond,
		logger:       logger,
	}
}

// Register associates a Handler with a job Type. Must be called before Run.
func (p *Pool) Register(t Type, h Handler) {
	p.handlers[t] = h
}

// SetCancelPollInterval overrides how often a running job's
// cancel_requested flag is polled. Exposed for tests; production callers
// use the default.
func (p *Pool) SetCancelPollInterval(d time.Duration) {
	p.cancelPoll = d
}

// Run blocks until ctx is cancelled, running concurrency worker goroutines.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.workerLoop(ctx)
		}()
	}
	wg.Wait()
}

func (p *Pool) workerLoop(ctx context.Context) {
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j, err := p.queue.Claim(ctx)
			if err != nil {
				p.logger.Error().Err(err).Msg("job: claim failed")
				continue
			}
			if j == nil {
				continue
			}
			p.execute(ctx, j)
		}
	}
}

// execute runs one job's handler under a cancellable context, polling
// cancel_requested until the handler returns or the poll observes a
// cancellation request — whichever happens first.
func (p *Pool) execute(ctx context.Context, j *Job) {
	jobCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	stopPoll := make(chan struct{})
	cancelledByRequest := make(chan struct{})
	go func() {
		ticker := time.NewTicker(p.cancelPoll)
		defer ticker.Stop()
		for {
			select {
			case <-stopPoll:
				return
			case <-ticker.C:
				requested, err := p.queue.IsCancelRequested(ctx, j.ID)
				if err == nil && requested {
					close(cancelledByRequest)
					cancel()
					return
				}
			}
		}
	}()

	handler, ok := p.handlers[j.JobType]
	if !ok {
		close(stopPoll)
		p.finish(ctx, j, StatusFailed, nil, fmt.Errorf("job: no handler registered for type %s", j.JobType))
		return
	}

	result, err := handler(jobCtx, j, func(done, total int) {
		_ = p.queue.UpdateProgress(ctx, j.ID, done, total)
	})
	close(stopPoll)

	select {
	case <-cancelledByRequest:
		p.finish(ctx, j, StatusCancelled, nil, nil)
		return
	default:
	}

	if err != nil {
		if errors.Is(err, context.Canceled) {
			p.finish(ctx, j, StatusCancelled, nil, nil)
			return
		}
		p.finish(ctx, j, StatusFailed, nil, err)
		return
	}
	p.finish(ctx, j, StatusSucceeded, result, nil)
}

func (p *Pool) finish(ctx context.Context, j *Job, status Status, result json.RawMessage, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	if ferr := p.queue.Finish(ctx, j.ID, status, result, msg); ferr != nil {
		p.logger.Error().Err(ferr).Str("job_id", j.ID.String()).Msg("job: failed to record terminal status")
	}
}
