package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/layer-3/authrelay/adapters/store"
	"github.com/layer-3/authrelay/core"
	"github.com/layer-3/authrelay/ports"
)

// RequestStore partitions the requests collection into pending and
// completed records.
type RequestStore struct {
	records *store.Collection[core.RequestRecord]
}

func NewRequestStore(st ports.Store) *RequestStore {
	return &RequestStore{records: store.NewCollection[core.RequestRecord](st, "requests", 0)}
}

func requestKey(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func (s *RequestStore) SetPending(ctx context.Context, p core.PendingRequest) error {
	return s.records.Set(ctx, requestKey(p.ID), core.NewPendingRecord(p))
}

// SetCompleted overwrites the record for id with the completed Cacao.
func (s *RequestStore) SetCompleted(ctx context.Context, id uint64, c core.Cacao) error {
	return s.records.Set(ctx, requestKey(id), core.NewCompletedRecord(id, c))
}

func (s *RequestStore) Get(ctx context.Context, id uint64) (core.RequestRecord, error) {
	rec, err := s.records.Get(ctx, requestKey(id))
	if errors.Is(err, core.ErrNotFound) {
		return rec, fmt.Errorf("request %d: %w", id, core.ErrNotFound)
	}
	return rec, err
}

// GetPending returns core.ErrNotFound unless id holds a pending request.
func (s *RequestStore) GetPending(ctx context.Context, id uint64) (core.PendingRequest, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return core.PendingRequest{}, err
	}
	p, ok := rec.AsPending()
	if !ok {
		return core.PendingRequest{}, fmt.Errorf("request %d is not pending: %w", id, core.ErrNotFound)
	}
	return p, nil
}

// GetCompleted returns core.ErrNotFound unless id holds a Cacao.
func (s *RequestStore) GetCompleted(ctx context.Context, id uint64) (core.Cacao, error) {
	rec, err := s.Get(ctx, id)
	if err != nil {
		return core.Cacao{}, err
	}
	c, ok := rec.AsCompleted()
	if !ok {
		return core.Cacao{}, fmt.Errorf("request %d is not completed: %w", id, core.ErrNotFound)
	}
	return c, nil
}

// GetPendingRequests returns every pending record keyed by id.
func (s *RequestStore) GetPendingRequests(ctx context.Context) (map[uint64]core.PendingRequest, error) {
	all, err := s.records.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[uint64]core.PendingRequest)
	for _, rec := range all {
		if p, ok := rec.AsPending(); ok {
			out[p.ID] = p
		}
	}
	return out, nil
}

func (s *RequestStore) Delete(ctx context.Context, id uint64) error {
	return s.records.Delete(ctx, requestKey(id))
}

// DeletePendingByTopic drops pending requests received on topic.
func (s *RequestStore) DeletePendingByTopic(ctx context.Context, topic string) error {
	pending, err := s.GetPendingRequests(ctx)
	if err != nil {
		return err
	}
	for id, p := range pending {
		if p.PairingTopic != topic {
			continue
		}
		if err := s.Delete(ctx, id); err != nil {
			return err
		}
	}
	return nil
}
