package usecase_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
	"github.com/wholesalehub/orderbackbone/internal/usecase"
)

type fakeArtifactRepo struct {
	byID     map[string]domain.UploadedArtifact
	bySource map[string]string // source|externalID -> artifactID
}

func newFakeArtifactRepo() *fakeArtifactRepo {
	return &fakeArtifactRepo{byID: map[string]domain.UploadedArtifact{}, bySource: map[string]string{}}
}

func (f *fakeArtifactRepo) Create(ctx domain.Context, a domain.UploadedArtifact) (string, error) {
	f.byID[a.ID] = a
	return a.ID, nil
}

func (f *fakeArtifactRepo) Get(ctx domain.Context, id string) (domain.UploadedArtifact, error) {
	a, ok := f.byID[id]
	if !ok {
		return domain.UploadedArtifact{}, domain.ErrNotFound
	}
	return a, nil
}

func (f *fakeArtifactRepo) Update(ctx domain.Context, a domain.UploadedArtifact, expected time.Time) error {
	f.byID[a.ID] = a
	return nil
}

func (f *fakeArtifactRepo) FindBySourceMessageID(ctx domain.Context, source, externalID string) (domain.UploadedArtifact, bool, error) {
	id, ok := f.bySource[source+"|"+externalID]
	if !ok {
		return domain.UploadedArtifact{}, false, nil
	}
	return f.byID[id], true, nil
}

func (f *fakeArtifactRepo) RegisterWebhookDedupe(ctx domain.Context, entry domain.WebhookDedupeEntry) error {
	f.bySource[entry.Source+"|"+entry.ExternalID] = entry.ArtifactID
	return nil
}

type fakeJobQueue struct {
	enqueued []struct {
		queueName string
		key       string
	}
}

func (f *fakeJobQueue) Enqueue(ctx domain.Context, queueName string, payload []byte, opts domain.EnqueueOptions) (string, error) {
	f.enqueued = append(f.enqueued, struct {
		queueName string
		key       string
	}{queueName, opts.IdempotencyKey})
	return "job-1", nil
}
func (f *fakeJobQueue) ClaimNext(ctx domain.Context, queueName, workerID string, now time.Time, jobTimeout time.Duration) (domain.Job, bool, error) {
	return domain.Job{}, false, nil
}
func (f *fakeJobQueue) Ack(ctx domain.Context, jobID string) error               { return nil }
func (f *fakeJobQueue) Nack(ctx domain.Context, jobID string, cause error) error { return nil }
func (f *fakeJobQueue) Reap(ctx domain.Context, now time.Time) (int, error)      { return 0, nil }
func (f *fakeJobQueue) RetryFromDLQ(ctx domain.Context, jobID string) error      { return nil }

func TestIngest_CreatesArtifactAndEnqueuesOCR(t *testing.T) {
	t.Parallel()
	artifacts := newFakeArtifactRepo()
	queue := &fakeJobQueue{}
	svc := usecase.NewIngestService(artifacts, queue)

	id, err := svc.Ingest(context.Background(), "retailer-1", "blob://scan-1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	stored, err := artifacts.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReceived, stored.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "ingest:"+id, queue.enqueued[0].key)
}

func TestIngest_RejectsMissingFields(t *testing.T) {
	t.Parallel()
	svc := usecase.NewIngestService(newFakeArtifactRepo(), &fakeJobQueue{})
	_, err := svc.Ingest(context.Background(), "", "blob://x", "")
	require.Error(t, err)
}

func TestIngest_IdempotentOnSourceMessageID(t *testing.T) {
	t.Parallel()
	artifacts := newFakeArtifactRepo()
	queue := &fakeJobQueue{}
	svc := usecase.NewIngestService(artifacts, queue)

	id1, err := svc.Ingest(context.Background(), "retailer-1", "blob://scan-1", "msg-123")
	require.NoError(t, err)
	id2, err := svc.Ingest(context.Background(), "retailer-1", "blob://scan-1", "msg-123")
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, queue.enqueued, 1)
}
