package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wholesalehub/orderbackbone/internal/domain"
)

type fakeOutboxRepo struct {
	rows       []domain.OutboxRow
	dispatched []string
}

func (f *fakeOutboxRepo) Enqueue(ctx domain.Context, row domain.OutboxRow) error {
	f.rows = append(f.rows, row)
	return nil
}

func (f *fakeOutboxRepo) ClaimBatch(ctx domain.Context, limit int) ([]domain.OutboxRow, error) {
	var out []domain.OutboxRow
	for _, r := range f.rows {
		if !r.Dispatched && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeOutboxRepo) MarkDispatched(ctx domain.Context, id string) error {
	f.dispatched = append(f.dispatched, id)
	for i, r := range f.rows {
		if r.ID == id {
			f.rows[i].Dispatched = true
		}
	}
	return nil
}

type fakeNotifier struct {
	fail bool
	sent [][]byte
}

func (f *fakeNotifier) Send(ctx domain.Context, target string, payload []byte) error {
	if f.fail {
		return errors.New("boom")
	}
	f.sent = append(f.sent, payload)
	return nil
}

func TestRelayOnce_DispatchesAndMarks(t *testing.T) {
	repo := &fakeOutboxRepo{rows: []domain.OutboxRow{{ID: "o1", Target: "vendor-notify", Payload: []byte("x"), CreatedAt: time.Now()}}}
	notif := &fakeNotifier{}
	r := NewRelay(repo, map[string]domain.Notifier{"vendor-notify": notif}, 10, time.Second)

	require.NoError(t, r.RelayOnce(context.Background()))

	assert.Len(t, notif.sent, 1)
	assert.Contains(t, repo.dispatched, "o1")
}

func TestRelayOnce_LeavesRowPendingOnSendFailure(t *testing.T) {
	repo := &fakeOutboxRepo{rows: []domain.OutboxRow{{ID: "o1", Target: "vendor-notify", Payload: []byte("x"), CreatedAt: time.Now()}}}
	notif := &fakeNotifier{fail: true}
	r := NewRelay(repo, map[string]domain.Notifier{"vendor-notify": notif}, 10, time.Second)

	require.NoError(t, r.RelayOnce(context.Background()))

	assert.Empty(t, repo.dispatched)
}
