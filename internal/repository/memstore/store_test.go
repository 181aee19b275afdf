package memstore_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/repository/memstore"
)

func seedCourier(t *testing.T, s *memstore.Store, phone string) int64 {
	t.Helper()
	id, err := s.Create(context.Background(), &domain.Courier{
		Name:         "courier",
		Phone:        phone,
		Vehicle:      domain.VehicleBike,
		Availability: domain.AvailabilityAvailable,
		Rating:       4.5,
	})
	require.NoError(t, err)
	return id
}

func seedRequest(t *testing.T, s *memstore.Store, id string) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx dispatchtx.Repository) error {
		return tx.InsertRequest(context.Background(), &domain.DeliveryRequest{
			ID:     id,
			Status: domain.DeliveryPending,
		})
	})
	require.NoError(t, err)
}

func TestCreate_DuplicatePhoneConflicts(t *testing.T) {
	s := memstore.New()
	seedCourier(t, s, "+70000000001")

	_, err := s.Create(context.Background(), &domain.Courier{Name: "x", Phone: "+70000000001"})
	require.ErrorIs(t, err, apperr.ErrConflict)
}

func TestList_Pagination(t *testing.T) {
	s := memstore.New()
	for _, p := range []string{"+70000000001", "+70000000002", "+70000000003"} {
		seedCourier(t, s, p)
	}
	ctx := context.Background()

	all, err := s.List(ctx, nil, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	limit, offset := 1, 1
	page, err := s.List(ctx, &limit, &offset)
	require.NoError(t, err)
	require.Len(t, page, 1)
	require.Equal(t, int64(2), page[0].ID)

	far := 10
	empty, err := s.List(ctx, nil, &far)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestWithTx_RollbackDiscardsStagedWrites(t *testing.T) {
	s := memstore.New()
	id := seedCourier(t, s, "+70000000001")
	seedRequest(t, s, "r1")
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if _, err := tx.ClaimCourier(ctx, id, "r1"); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	c, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityAvailable, c.Availability)
	require.Nil(t, c.CurrentRequestID)
}

func TestClaimCourier_OnlyOnce(t *testing.T) {
	s := memstore.New()
	id := seedCourier(t, s, "+70000000001")
	ctx := context.Background()

	claim := func(rid string) error {
		return s.WithTx(ctx, func(tx dispatchtx.Repository) error {
			_, err := tx.ClaimCourier(ctx, id, rid)
			return err
		})
	}
	require.NoError(t, claim("r1"))
	require.ErrorIs(t, claim("r2"), apperr.ErrCourierUnavailableAtClaim)

	avail, err := s.ListAvailableCouriers(ctx)
	require.NoError(t, err)
	require.Empty(t, avail)
}

func TestReleaseCourier_ChecksBoundRequest(t *testing.T) {
	s := memstore.New()
	id := seedCourier(t, s, "+70000000001")
	ctx := context.Background()

	var released bool
	err := s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		if _, err := tx.ClaimCourier(ctx, id, "r1"); err != nil {
			return err
		}
		var err error
		released, err = tx.ReleaseCourier(ctx, id, "other", true)
		return err
	})
	require.NoError(t, err)
	require.False(t, released)

	err = s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		var err error
		released, err = tx.ReleaseCourier(ctx, id, "r1", true)
		return err
	})
	require.NoError(t, err)
	require.True(t, released)

	c, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, c.TotalDeliveries)
	require.Equal(t, domain.AvailabilityAvailable, c.Availability)
}

func TestUpdateRequest_StaleVersionConflicts(t *testing.T) {
	s := memstore.New()
	seedRequest(t, s, "r1")
	ctx := context.Background()

	var stale domain.DeliveryRequest
	err := s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		r, err := tx.GetRequestForUpdate(ctx, "r1")
		if err != nil {
			return err
		}
		stale = *r
		r.Status = domain.DeliveryCancelled
		return tx.UpdateRequest(ctx, r)
	})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.UpdateRequest(ctx, &stale)
	})
	require.ErrorIs(t, err, apperr.ErrConflict)

	got, err := s.GetRequest(ctx, "r1")
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryCancelled, got.Status)
	require.Equal(t, int64(2), got.Version)
}

func TestListEvents_OrderedByTimestamp(t *testing.T) {
	s := memstore.New()
	seedRequest(t, s, "r1")
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.AppendEvent(ctx, domain.TrackingEvent{ID: "b", RequestID: "r1", Timestamp: t0.Add(time.Minute)}))
	require.NoError(t, s.AppendEvent(ctx, domain.TrackingEvent{ID: "a", RequestID: "r1", Timestamp: t0}))
	require.ErrorIs(t, s.AppendEvent(ctx, domain.TrackingEvent{ID: "c", RequestID: "missing"}), apperr.ErrNotFound)

	events, err := s.ListEvents(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "a", events[0].ID)
	require.Equal(t, "b", events[1].ID)
}

func TestUpdatePartial_AvailabilityLockedWhileBound(t *testing.T) {
	s := memstore.New()
	id := seedCourier(t, s, "+70000000001")
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx dispatchtx.Repository) error {
		_, err := tx.ClaimCourier(ctx, id, "r1")
		return err
	}))

	offline := domain.AvailabilityOffline
	_, err := s.UpdatePartial(ctx, domain.PartialCourierUpdate{ID: id, Availability: &offline})
	require.ErrorIs(t, err, apperr.ErrConflict)

	name := "renamed"
	ok, err := s.UpdatePartial(ctx, domain.PartialCourierUpdate{ID: id, Name: &name})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.UpdatePartial(ctx, domain.PartialCourierUpdate{ID: 404, Name: &name})
	require.NoError(t, err)
	require.False(t, ok)
}

func TestUpdatePosition(t *testing.T) {
	s := memstore.New()
	id := seedCourier(t, s, "+70000000001")
	at := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	c, err := s.UpdatePosition(context.Background(), id, domain.GeoPoint{Latitude: 1, Longitude: 2}, at)
	require.NoError(t, err)
	require.Equal(t, domain.GeoPoint{Latitude: 1, Longitude: 2}, c.Position)
	require.Equal(t, at, *c.PositionUpdatedAt)

	c, err = s.UpdatePosition(context.Background(), 404, domain.GeoPoint{}, at)
	require.NoError(t, err)
	require.Nil(t, c)
}
