package memstore

import (
	"context"
	"time"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

// Get returns a courier by id or nil.
func (s *Store) Get(_ context.Context, id int64) (*domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return nil, nil
	}
	out := cloneCourier(c)
	return &out, nil
}

// List returns couriers ordered by id. Nil limit/offset return the full list.
func (s *Store) List(_ context.Context, limit, offset *int) ([]domain.Courier, error) {
	s.mu.Lock()
	all := make([]domain.Courier, 0, len(s.couriers))
	for _, c := range s.couriers {
		all = append(all, cloneCourier(c))
	}
	s.mu.Unlock()
	sortCouriers(all)

	if offset != nil {
		if *offset >= len(all) {
			return []domain.Courier{}, nil
		}
		all = all[*offset:]
	}
	if limit != nil && *limit < len(all) {
		all = all[:*limit]
	}
	return all, nil
}

// Create stores a courier and assigns it the next id. Phones are unique.
func (s *Store) Create(_ context.Context, c *domain.Courier) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.couriers {
		if existing.Phone == c.Phone {
			return 0, apperr.ErrConflict
		}
	}
	s.nextID++
	now := s.now()
	stored := cloneCourier(*c)
	stored.ID = s.nextID
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.couriers[stored.ID] = stored
	return stored.ID, nil
}

// UpdatePartial applies non-nil fields. Availability is only changed for couriers
// without an active request.
func (s *Store) UpdatePartial(_ context.Context, u domain.PartialCourierUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[u.ID]
	if !ok {
		return false, nil
	}
	if u.Phone != nil {
		for id, existing := range s.couriers {
			if id != u.ID && existing.Phone == *u.Phone {
				return false, apperr.ErrConflict
			}
		}
	}
	if u.Availability != nil && c.CurrentRequestID != nil {
		return false, apperr.ErrConflict
	}
	if u.Name != nil {
		c.Name = *u.Name
	}
	if u.Phone != nil {
		c.Phone = *u.Phone
	}
	if u.Vehicle != nil {
		c.Vehicle = *u.Vehicle
	}
	if u.Availability != nil {
		c.Availability = *u.Availability
	}
	if u.Rating != nil {
		c.Rating = *u.Rating
	}
	c.UpdatedAt = s.now()
	s.couriers[u.ID] = c
	return true, nil
}

// UpdatePosition records the courier's latest reported position.
func (s *Store) UpdatePosition(_ context.Context, id int64, pos domain.GeoPoint, at time.Time) (*domain.Courier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.couriers[id]
	if !ok {
		return nil, nil
	}
	c.Position = pos
	reported := at
	c.PositionUpdatedAt = &reported
	c.UpdatedAt = s.now()
	s.couriers[id] = c
	out := cloneCourier(c)
	return &out, nil
}
