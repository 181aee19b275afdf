// Package memstore is an in-memory dispatch store for local runs and tests.
// Transactions are serialized by a single mutex and staged until commit.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// Store keeps couriers, requests and tracking events in memory.
type Store struct {
	mu       sync.Mutex
	couriers map[int64]domain.Courier
	requests map[string]domain.DeliveryRequest
	events   map[string][]domain.TrackingEvent
	nextID   int64
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		couriers: make(map[int64]domain.Courier),
		requests: make(map[string]domain.DeliveryRequest),
		events:   make(map[string][]domain.TrackingEvent),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithTx runs fn against a staged view; nothing is visible to others until fn succeeds.
func (s *Store) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txRepo{
		s:        s,
		couriers: make(map[int64]domain.Courier),
		requests: make(map[string]domain.DeliveryRequest),
	}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	tx.commit()
	return nil
}

// GetRequest returns a copy of the request or nil.
func (s *Store) GetRequest(_ context.Context, id string) (*domain.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.requests[id]
	if !ok {
		return nil, nil
	}
	return cloneRequest(r), nil
}

// ListEvents returns the events of a request ordered by timestamp.
func (s *Store) ListEvents(_ context.Context, requestID string) ([]domain.TrackingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]domain.TrackingEvent(nil), s.events[requestID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

// AppendEvent stores an event outside of a transaction.
func (s *Store) AppendEvent(_ context.Context, e domain.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[e.RequestID]; !ok {
		return apperr.ErrNotFound
	}
	s.events[e.RequestID] = append(s.events[e.RequestID], e)
	return nil
}

// ListAvailableCouriers returns available couriers ordered by id.
func (s *Store) ListAvailableCouriers(_ context.Context) ([]domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Courier, 0, len(s.couriers))
	for _, c := range s.couriers {
		if c.Availability == domain.AvailabilityAvailable {
			out = append(out, cloneCourier(c))
		}
	}
	sortCouriers(out)
	return out, nil
}

// GetCouriers returns the couriers with the given ids; unknown ids are skipped.
func (s *Store) GetCouriers(_ context.Context, ids []int64) ([]domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Courier, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if c, ok := s.couriers[id]; ok {
			out = append(out, cloneCourier(c))
		}
	}
	sortCouriers(out)
	return out, nil
}

type txRepo struct {
	s        *Store
	couriers map[int64]domain.Courier
	requests map[string]domain.DeliveryRequest
	events   []domain.TrackingEvent
}

func (t *txRepo) request(id string) (domain.DeliveryRequest, bool) {
	if r, ok := t.requests[id]; ok {
		return r, true
	}
	r, ok := t.s.requests[id]
	return r, ok
}

func (t *txRepo) courier(id int64) (domain.Courier, bool) {
	if c, ok := t.couriers[id]; ok {
		return c, true
	}
	c, ok := t.s.couriers[id]
	return c, ok
}

func (t *txRepo) InsertRequest(_ context.Context, r *domain.DeliveryRequest) error {
	if _, exists := t.request(r.ID); exists {
		return apperr.ErrConflict
	}
	if r.Version == 0 {
		r.Version = 1
	}
	t.requests[r.ID] = *cloneRequest(*r)
	return nil
}

func (t *txRepo) GetRequestForUpdate(_ context.Context, id string) (*domain.DeliveryRequest, error) {
	r, ok := t.request(id)
	if !ok {
		return nil, nil
	}
	return cloneRequest(r), nil
}

func (t *txRepo) UpdateRequest(_ context.Context, r *domain.DeliveryRequest) error {
	cur, ok := t.request(r.ID)
	if !ok {
		return apperr.ErrNotFound
	}
	if cur.Version != r.Version {
		return fmt.Errorf("request %s version %d: %w", r.ID, r.Version, apperr.ErrConflict)
	}
	r.Version++
	t.requests[r.ID] = *cloneRequest(*r)
	return nil
}

func (t *txRepo) GetCourier(_ context.Context, id int64) (*domain.Courier, error) {
	c, ok := t.courier(id)
	if !ok {
		return nil, nil
	}
	out := cloneCourier(c)
	return &out, nil
}

// GetCourierForUpdate is GetCourier; the store mutex already serializes transactions.
func (t *txRepo) GetCourierForUpdate(ctx context.Context, id int64) (*domain.Courier, error) {
	return t.GetCourier(ctx, id)
}

func (t *txRepo) ClaimCourier(_ context.Context, courierID int64, requestID string) (*domain.Courier, error) {
	c, ok := t.courier(courierID)
	if !ok || c.Availability != domain.AvailabilityAvailable {
		return nil, apperr.ErrCourierUnavailableAtClaim
	}
	c.Availability = domain.AvailabilityBusy
	rid := requestID
	c.CurrentRequestID = &rid
	c.UpdatedAt = t.s.now()
	t.couriers[courierID] = c
	out := cloneCourier(c)
	return &out, nil
}

func (t *txRepo) ReleaseCourier(_ context.Context, courierID int64, requestID string, completed bool) (bool, error) {
	c, ok := t.courier(courierID)
	if !ok {
		return false, nil
	}
	if requestID != "" && (c.CurrentRequestID == nil || *c.CurrentRequestID != requestID) {
		return false, nil
	}
	c.Availability = domain.AvailabilityAvailable
	c.CurrentRequestID = nil
	if completed {
		c.TotalDeliveries++
	}
	c.UpdatedAt = t.s.now()
	t.couriers[courierID] = c
	return true, nil
}

func (t *txRepo) AppendEvent(_ context.Context, e domain.TrackingEvent) error {
	if _, ok := t.request(e.RequestID); !ok {
		return apperr.ErrNotFound
	}
	t.events = append(t.events, e)
	return nil
}

func (t *txRepo) commit() {
	for id, c := range t.couriers {
		t.s.couriers[id] = c
	}
	for id, r := range t.requests {
		t.s.requests[id] = r
	}
	for _, e := range t.events {
		t.s.events[e.RequestID] = append(t.s.events[e.RequestID], e)
	}
}

func cloneRequest(r domain.DeliveryRequest) *domain.DeliveryRequest {
	if r.CourierID != nil {
		id := *r.CourierID
		r.CourierID = &id
	}
	return &r
}

func cloneCourier(c domain.Courier) domain.Courier {
	if c.CurrentRequestID != nil {
		id := *c.CurrentRequestID
		c.CurrentRequestID = &id
	}
	if c.PositionUpdatedAt != nil {
		at := *c.PositionUpdatedAt
		c.PositionUpdatedAt = &at
	}
	return c
}

func sortCouriers(cs []domain.Courier) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].ID < cs[j].ID })
}
