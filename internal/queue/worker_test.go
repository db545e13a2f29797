package queue

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// fakeQueue is a minimal in-memory domain.JobQueue for exercising Pool.
type fakeQueue struct {
	jobs   []domain.Job
	acked  []string
	nacked []string
}

func (f *fakeQueue) Enqueue(ctx domain.Context, queueName string, payload []byte, opts domain.EnqueueOptions) (string, error) {
	id := "job-1"
	f.jobs = append(f.jobs, domain.Job{ID: id, QueueName: queueName, Payload: payload, State: domain.JobWaiting, Attempt: 1, MaxAttempts: 3})
	return id, nil
}

func (f *fakeQueue) ClaimNext(ctx domain.Context, queueName, workerID string, now time.Time, jobTimeout time.Duration) (domain.Job, bool, error) {
	for i, j := range f.jobs {
		if j.QueueName == queueName && j.State == domain.JobWaiting {
			f.jobs[i].State = domain.JobRunning
			return f.jobs[i], true, nil
		}
	}
	return domain.Job{}, false, nil
}

func (f *fakeQueue) Ack(ctx domain.Context, jobID string) error {
	f.acked = append(f.acked, jobID)
	for i, j := range f.jobs {
		if j.ID == jobID {
			f.jobs[i].State = domain.JobCompleted
		}
	}
	return nil
}

func (f *fakeQueue) Nack(ctx domain.Context, jobID string, cause error) error {
	f.nacked = append(f.nacked, jobID)
	for i, j := range f.jobs {
		if j.ID == jobID {
			f.jobs[i].State = domain.JobDLQ
		}
	}
	return nil
}

func (f *fakeQueue) Reap(ctx domain.Context, now time.Time) (int, error) { return 0, nil }
func (f *fakeQueue) RetryFromDLQ(ctx domain.Context, jobID string) error { return nil }

func TestPool_AcksSuccessfulJob(t *testing.T) {
	fq := &fakeQueue{}
	_, err := fq.Enqueue(context.Background(), "ingestion", []byte("x"), domain.EnqueueOptions{})
	require.NoError(t, err)

	pool := NewPool(fq, "worker-1")
	pool.pollInterval = 10 * time.Millisecond
	var calls int32
	pool.RegisterProcessor("ingestion", func(ctx domain.Context, job domain.Job) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, 2, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(1))
	assert.Contains(t, fq.acked, "job-1")
}

func TestPool_NacksFailedJob(t *testing.T) {
	fq := &fakeQueue{}
	_, err := fq.Enqueue(context.Background(), "ingestion", []byte("x"), domain.EnqueueOptions{})
	require.NoError(t, err)

	pool := NewPool(fq, "worker-1")
	pool.pollInterval = 10 * time.Millisecond
	pool.RegisterProcessor("ingestion", func(ctx domain.Context, job domain.Job) error {
		return errors.New("boom")
	}, 1, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	pool.Run(ctx)

	assert.Contains(t, fq.nacked, "job-1")
}
