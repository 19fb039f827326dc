package history

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/ports"
)

// DefaultTTL bounds how long correlation records are kept.
const DefaultTTL = 7 * 24 * time.Hour

// History implements ports.History over a Store.
type History struct {
	records *store.Collection[core.HistoryRecord]
	now     func() time.Time
}

var _ ports.History = (*History)(nil)

// NewHistory creates a ledger persisted in st.
func NewHistory(st ports.Store, ttl time.Duration) *History {
	return &History{
		records: store.NewCollection[core.HistoryRecord](st, "history", ttl),
		now:     time.Now,
	}
}

func key(id uint64) string {
	return strconv.FormatUint(id, 10)
}

// Set records req. The first record for an id wins, so a redelivered
// request never overwrites the direction or response of the original.
func (h *History) Set(ctx context.Context, topic string, req core.Request, dir core.Direction) error {
	exists, err := h.records.Has(ctx, key(req.ID))
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return h.records.Set(ctx, key(req.ID), core.HistoryRecord{
		ID:        req.ID,
		Topic:     topic,
		Direction: dir,
		Request:   req,
		CreatedAt: h.now(),
	})
}

func (h *History) Get(ctx context.Context, id uint64) (core.HistoryRecord, error) {
	rec, err := h.records.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return rec, fmt.Errorf("history record %d: %w", id, core.ErrNotFound)
		}
		return rec, err
	}
	return rec, nil
}

// Resolve attaches res to its request. An already answered record is
// returned unchanged.
func (h *History) Resolve(ctx context.Context, res core.Response) (core.HistoryRecord, error) {
	rec, err := h.Get(ctx, res.ID)
	if err != nil {
		return rec, err
	}
	if rec.Answered() {
		return rec, nil
	}
	rec.Response = &res
	if err := h.records.Set(ctx, key(res.ID), rec); err != nil {
		return rec, err
	}
	return rec, nil
}

// DeleteTopic drops every record that travelled on topic.
func (h *History) DeleteTopic(ctx context.Context, topic string) error {
	all, err := h.records.GetAll(ctx)
	if err != nil {
		return err
	}
	for k, rec := range all {
		if rec.Topic != topic {
			continue
		}
		if err := h.records.Delete(ctx, k); err != nil {
			return err
		}
	}
	return nil
}
