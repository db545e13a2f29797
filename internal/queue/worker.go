package queue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// ProcessorFunc handles one claimed job. Returning nil acks the job;
// returning a domain.StageOutcome or a plain error nacks it (reschedule or
// DLQ, per the substrate's retry accounting).
type ProcessorFunc func(ctx domain.Context, job domain.Job) error

type registration struct {
	queueName   string
	fn          ProcessorFunc
	concurrency int
	jobTimeout  time.Duration
}

// Pool runs one or more registered processors against a domain.JobQueue,
// each with its own bounded concurrency semaphore. Expired locks are swept
// separately by RunReaper.
type Pool struct {
	q            domain.JobQueue
	workerID     string
	pollInterval time.Duration

	mu   sync.Mutex
	regs []registration
}

// NewPool constructs a worker Pool bound to the given queue substrate.
func NewPool(q domain.JobQueue, workerID string) *Pool {
	return &Pool{q: q, workerID: workerID, pollInterval: 500 * time.Millisecond}
}

// RegisterProcessor binds fn to queueName. Exactly one fn per queue per Pool.
func (p *Pool) RegisterProcessor(queueName string, fn ProcessorFunc, concurrency int, jobTimeout time.Duration) {
	if concurrency <= 0 {
		concurrency = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.regs = append(p.regs, registration{queueName: queueName, fn: fn, concurrency: concurrency, jobTimeout: jobTimeout})
}

// Run blocks, polling every registered queue until ctx is cancelled.
func (p *Pool) Run(ctx domain.Context) {
	p.mu.Lock()
	regs := append([]registration(nil), p.regs...)
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, reg := range regs {
		wg.Add(1)
		go func(reg registration) {
			defer wg.Done()
			p.runQueue(ctx, reg)
		}(reg)
	}
	wg.Wait()
}

func (p *Pool) runQueue(ctx domain.Context, reg registration) {
	sem := make(chan struct{}, reg.concurrency)
	ticker := time.NewTicker(p.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case sem <- struct{}{}:
			default:
				continue // all concurrency slots busy; wait for next tick
			}
			go func() {
				defer func() { <-sem }()
				p.claimAndRun(ctx, reg)
			}()
		}
	}
}

func (p *Pool) claimAndRun(ctx domain.Context, reg registration) {
	job, ok, err := p.q.ClaimNext(ctx, reg.queueName, p.workerID, time.Now().UTC(), reg.jobTimeout)
	if err != nil {
		slog.Error("claim_next failed", slog.String("queue", reg.queueName), slog.Any("error", err))
		return
	}
	if !ok {
		return
	}

	observability.StartProcessingJob(reg.queueName)
	runCtx := ctx
	if reg.jobTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, reg.jobTimeout)
		defer cancel()
	}

	start := time.Now()
	err = reg.fn(runCtx, job)
	dur := time.Since(start)

	if err == nil {
		if ackErr := p.q.Ack(ctx, job.ID); ackErr != nil {
			slog.Error("ack failed", slog.String("job_id", job.ID), slog.Any("error", ackErr))
			return
		}
		observability.CompleteJob(reg.queueName)
		observability.ObserveStage(reg.queueName, "ok", dur.Seconds())
		return
	}

	if nackErr := p.q.Nack(ctx, job.ID, err); nackErr != nil {
		slog.Error("nack failed", slog.String("job_id", job.ID), slog.Any("error", nackErr))
		return
	}
	if job.Attempt >= job.MaxAttempts {
		observability.DeadLetterJob(reg.queueName)
		observability.ObserveStage(reg.queueName, "dlq", dur.Seconds())
		slog.Warn("job moved to dead-letter queue", slog.String("job_id", job.ID), slog.String("queue", reg.queueName), slog.Any("error", err))
	} else {
		observability.RetryJob(reg.queueName)
		observability.ObserveStage(reg.queueName, "retry", dur.Seconds())
		slog.Warn("job nacked, will retry", slog.String("job_id", job.ID), slog.String("queue", reg.queueName), slog.Any("error", err))
	}
}

// RunReaper blocks, sweeping expired locks on interval until ctx is cancelled.
func RunReaper(ctx domain.Context, q domain.JobQueue, interval time.Duration, queueNames []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := q.Reap(ctx, time.Now().UTC())
			if err != nil {
				slog.Error("reaper sweep failed", slog.Any("error", err))
				continue
			}
			if n > 0 {
				slog.Info("reaper reclaimed expired jobs", slog.Int("count", n))
				for _, qn := range queueNames {
					observability.ReapJob(qn)
				}
			}
		}
	}
}
