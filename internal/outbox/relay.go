// Package outbox implements the relay half of the transactional outbox
// pattern (component E): rows written inside the same transaction as a
// domain state change are picked up here and dispatched to an external
// collaborator at-least-once, with dispatch recorded back on success only.
package outbox

import (
	"log/slog"
	"time"

	"github.com/wholesalehub/orderbackbone/internal/adapter/observability"
	"github.com/wholesalehub/orderbackbone/internal/domain"
)

// Relay periodically claims undispatched outbox rows and hands them to a
// domain.Notifier keyed by row.Target.
type Relay struct {
	Repo      domain.OutboxRepository
	Notifiers map[string]domain.Notifier
	BatchSize int
	Interval  time.Duration
}

// NewRelay constructs a Relay. notifiers maps an OutboxRow.Target name (e.g.
// "vendor-notify", "retailer-notify") to the Notifier that handles it.
func NewRelay(repo domain.OutboxRepository, notifiers map[string]domain.Notifier, batchSize int, interval time.Duration) *Relay {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Relay{Repo: repo, Notifiers: notifiers, BatchSize: batchSize, Interval: interval}
}

// Run blocks, relaying on Interval until ctx is cancelled.
func (r *Relay) Run(ctx domain.Context) {
	ticker := time.NewTicker(r.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.RelayOnce(ctx); err != nil {
				slog.Error("outbox relay pass failed", slog.Any("error", err))
			}
		}
	}
}

// RelayOnce claims and dispatches a single batch, continuing on per-row
// dispatch failure (the row simply remains undispatched and is retried on
// the next pass; franz-go/notifier transport retries are its own concern).
func (r *Relay) RelayOnce(ctx domain.Context) error {
	rows, err := r.Repo.ClaimBatch(ctx, r.BatchSize)
	if err != nil {
		return err
	}
	observability.RecordOutboxPending(len(rows))
	for _, row := range rows {
		notifier, ok := r.Notifiers[row.Target]
		if !ok {
			slog.Error("no notifier registered for outbox target", slog.String("target", row.Target), slog.String("row_id", row.ID))
			continue
		}
		if err := notifier.Send(ctx, row.Target, row.Payload); err != nil {
			slog.Warn("outbox dispatch failed, will retry next pass", slog.String("row_id", row.ID), slog.String("target", row.Target), slog.Any("error", err))
			observability.RecordOutboxDispatch(row.Target, false)
			continue
		}
		if err := r.Repo.MarkDispatched(ctx, row.ID); err != nil {
			slog.Error("failed to mark outbox row dispatched", slog.String("row_id", row.ID), slog.Any("error", err))
			continue
		}
		observability.RecordOutboxDispatch(row.Target, true)
	}
	return nil
}
