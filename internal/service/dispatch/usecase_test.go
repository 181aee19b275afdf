package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/notify"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/repository/memstore"
	"courier-dispatch/internal/service/dispatch"
	testlog "courier-dispatch/internal/testutil"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.TrackingEvent
}

func (p *recordingPublisher) Publish(ev domain.TrackingEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) statuses() []domain.DeliveryStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]domain.DeliveryStatus, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Status)
	}
	return out
}

type fixture struct {
	store     *memstore.Store
	publisher *recordingPublisher
	notifier  *MockNotifier
	metrics   *metrics.Dispatch
	logs      *testlog.Recorder
	svc       *dispatch.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		store:     memstore.New(),
		publisher: &recordingPublisher{},
		notifier:  NewMockNotifier(ctrl),
		metrics:   metrics.NewDispatch(),
		logs:      testlog.New(),
	}
	f.svc = dispatch.NewService(f.store, f.publisher, f.notifier, f.logs.Logger(), f.metrics, time.Second)
	return f
}

func (f *fixture) allowNotify() {
	f.notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
}

func (f *fixture) addCourier(t *testing.T, phone string, pos domain.GeoPoint, rating float64, deliveries int) int64 {
	t.Helper()
	id, err := f.store.Create(context.Background(), &domain.Courier{
		Name:            "courier " + phone,
		Phone:           phone,
		Position:        pos,
		Vehicle:         domain.VehicleBike,
		Availability:    domain.AvailabilityAvailable,
		Rating:          rating,
		TotalDeliveries: deliveries,
	})
	require.NoError(t, err)
	return id
}

func baseRequest() dispatch.CreateRequest {
	return dispatch.CreateRequest{
		Origin:      domain.GeoPoint{Latitude: 0, Longitude: 0.01},
		Destination: domain.GeoPoint{Latitude: 0, Longitude: 0.05},
		RequesterID: "requester-1",
		FeeCents:    500,
	}
}

func TestCreateAndAssign_SelectsNearbyCourier(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)

	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, req.Status)
	require.NotNil(t, req.CourierID)
	require.Equal(t, cid, *req.CourierID)
	require.True(t, req.Consistent())
	require.InDelta(t, 4.45, req.DistanceKm, 0.05)

	c, err := f.store.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityBusy, c.Availability)
	require.NotNil(t, c.CurrentRequestID)
	require.Equal(t, req.ID, *c.CurrentRequestID)

	require.Equal(t, []domain.DeliveryStatus{domain.DeliveryAssigned}, f.publisher.statuses())
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Outcomes.WithLabelValues(metrics.OutcomeAssigned)))
	require.True(t, f.logs.Has("courier assigned"))
}

func TestCreateAndAssign_NoCourierLeavesPending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, req.Status)
	require.Nil(t, req.CourierID)

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, stored.Status)
	require.Empty(t, f.publisher.statuses())
	require.True(t, f.logs.Has("searching for a courier"))
}

func TestCreateAndAssign_InvalidLocation(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := baseRequest()
	in.Destination = domain.GeoPoint{Latitude: 91, Longitude: 0}

	_, err := f.svc.CreateAndAssign(context.Background(), in)
	require.ErrorIs(t, err, apperr.ErrInvalidLocation)
}

func TestCreateAndAssign_MissingRequesterIsInvalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	in := baseRequest()
	in.RequesterID = "   "

	_, err := f.svc.CreateAndAssign(context.Background(), in)
	require.ErrorIs(t, err, apperr.ErrInvalid)
}

func TestCreateAndAssign_UsesExplicitCandidates(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	near := f.addCourier(t, "+70000000001", domain.GeoPoint{Latitude: 0, Longitude: 0.01}, 4, 0)
	far := f.addCourier(t, "+70000000002", domain.GeoPoint{Latitude: 0, Longitude: 0.5}, 4, 0)

	in := baseRequest()
	in.CandidateIDs = []int64{far}

	req, err := f.svc.CreateAndAssign(ctx, in)
	require.NoError(t, err)
	require.Equal(t, far, *req.CourierID)

	c, err := f.store.Get(ctx, near)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityAvailable, c.Availability)
}

func TestCreateAndAssign_ConcurrentRequestsShareOneCourier(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)

	const callers = 2
	results := make([]domain.DeliveryRequest, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			results[i], errs[i] = f.svc.CreateAndAssign(ctx, baseRequest())
		}(i)
	}
	close(start)
	wg.Wait()

	assigned := 0
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.True(t, results[i].Consistent())
		if results[i].Status == domain.DeliveryAssigned {
			assigned++
			require.Equal(t, cid, *results[i].CourierID)
		} else {
			require.Equal(t, domain.DeliveryPending, results[i].Status)
		}
	}
	require.Equal(t, 1, assigned)
}

func TestAdvance_SequentialPathEmitsOneEventPerStep(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)

	for _, to := range []domain.DeliveryStatus{
		domain.DeliveryPickedUp,
		domain.DeliveryOnTheWay,
		domain.DeliveryDelivered,
	} {
		req, err = f.svc.Advance(ctx, req.ID, to, nil)
		require.NoError(t, err)
		require.Equal(t, to, req.Status)
	}

	history, err := f.svc.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	want := []domain.DeliveryStatus{
		domain.DeliveryAssigned,
		domain.DeliveryPickedUp,
		domain.DeliveryOnTheWay,
		domain.DeliveryDelivered,
	}
	for i, ev := range history {
		require.Equal(t, want[i], ev.Status)
		require.Equal(t, cid, ev.CourierID)
		require.Equal(t, req.ID, ev.RequestID)
	}
	require.Equal(t, want, f.publisher.statuses())

	c, err := f.store.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityAvailable, c.Availability)
	require.Nil(t, c.CurrentRequestID)
	require.Equal(t, 101, c.TotalDeliveries)
}

func TestAdvance_SkippingStepsIsInvalid(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)

	_, err = f.svc.Advance(ctx, req.ID, domain.DeliveryDelivered, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, stored.Status)

	history, err := f.svc.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
}

func TestAdvance_ExplicitPositionIsRecorded(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)

	pos := domain.GeoPoint{Latitude: 0.001, Longitude: 0.0099}
	_, err = f.svc.Advance(ctx, req.ID, domain.DeliveryPickedUp, &pos)
	require.NoError(t, err)

	history, err := f.svc.History(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, pos, history[len(history)-1].Position)

	bad := domain.GeoPoint{Latitude: 0, Longitude: 200}
	_, err = f.svc.Advance(ctx, req.ID, domain.DeliveryOnTheWay, &bad)
	require.ErrorIs(t, err, apperr.ErrInvalidLocation)
}

func TestAdvance_UnknownRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	_, err := f.svc.Advance(context.Background(), "missing", domain.DeliveryPickedUp, nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestCancel_ReleasesCourierAndRejectsSecondCancel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryCancelled, cancelled.Status)

	c, err := f.store.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityAvailable, c.Availability)
	require.Equal(t, 100, c.TotalDeliveries)

	_, err = f.svc.Cancel(ctx, req.ID)
	require.ErrorIs(t, err, apperr.ErrAlreadyTerminal)
}

func TestCancel_PendingRequest(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, req.Status)

	cancelled, err := f.svc.Cancel(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryCancelled, cancelled.Status)
	require.Nil(t, cancelled.CourierID)
}

func TestAssignPending_AfterCourierJoins(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, req.Status)

	_, err = f.svc.AssignPending(ctx, req.ID, nil)
	require.ErrorIs(t, err, apperr.ErrNoCourierAvailable)

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	assigned, err := f.svc.AssignPending(ctx, req.ID, nil)
	require.NoError(t, err)
	require.Equal(t, cid, *assigned.CourierID)

	_, err = f.svc.AssignPending(ctx, req.ID, nil)
	require.ErrorIs(t, err, apperr.ErrInvalidTransition)
}

func TestNotifierFailureDoesNotRollBack(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	f.notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, n domain.TransitionNotice) error {
			require.Equal(t, domain.DeliveryPending, n.From)
			require.Equal(t, domain.DeliveryAssigned, n.To)
			require.Equal(t, "requester-1", n.RequesterID)
			return errors.New("sink down")
		})

	f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, req.Status)

	stored, err := f.svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, stored.Status)
	require.Equal(t, 1.0, testutil.ToFloat64(f.metrics.NotifyFailures))
	require.True(t, f.logs.Has("notification failed"))
}

// flakyClaims makes the first n claims fail as if another dispatcher won the race.
type flakyClaims struct {
	*memstore.Store
	mu       sync.Mutex
	failures int
}

func (s *flakyClaims) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	return s.Store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return fn(&flakyTx{Repository: tx, parent: s})
	})
}

type flakyTx struct {
	dispatchtx.Repository
	parent *flakyClaims
}

func (t *flakyTx) ClaimCourier(ctx context.Context, courierID int64, requestID string) (*domain.Courier, error) {
	t.parent.mu.Lock()
	fail := t.parent.failures > 0
	if fail {
		t.parent.failures--
	}
	t.parent.mu.Unlock()
	if fail {
		return nil, apperr.ErrCourierUnavailableAtClaim
	}
	return t.Repository.ClaimCourier(ctx, courierID, requestID)
}

func TestCreateAndAssign_RetriesLostClaimOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &flakyClaims{Store: memstore.New(), failures: 1}
	_, err := store.Create(ctx, &domain.Courier{
		Name: "A", Phone: "+70000000001", Vehicle: domain.VehicleCar,
		Availability: domain.AvailabilityAvailable, Rating: 5,
	})
	require.NoError(t, err)

	m := metrics.NewDispatch()
	svc := dispatch.NewService(store, nil, nil, nil, m, time.Second)

	req, err := svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, req.Status)
	require.Equal(t, 1.0, testutil.ToFloat64(m.ClaimRetries))
}

func TestCreateAndAssign_SecondLostClaimIsConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := &flakyClaims{Store: memstore.New(), failures: 2}
	_, err := store.Create(ctx, &domain.Courier{
		Name: "A", Phone: "+70000000001", Vehicle: domain.VehicleCar,
		Availability: domain.AvailabilityAvailable, Rating: 5,
	})
	require.NoError(t, err)

	m := metrics.NewDispatch()
	svc := dispatch.NewService(store, nil, nil, nil, m, time.Second)

	req, err := svc.CreateAndAssign(ctx, baseRequest())
	require.ErrorIs(t, err, apperr.ErrAssignmentConflict)
	require.Equal(t, domain.DeliveryPending, req.Status)

	stored, err := svc.Get(ctx, req.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, stored.Status)
	require.Equal(t, 1.0, testutil.ToFloat64(m.Outcomes.WithLabelValues(metrics.OutcomeConflict)))
}

func TestMarkCourierFreed(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	cid := f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)

	err = f.svc.MarkCourierFreed(ctx, cid)
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.Cancel(ctx, req.ID)
	require.NoError(t, err)
	require.NoError(t, f.svc.MarkCourierFreed(ctx, cid))

	require.ErrorIs(t, f.svc.MarkCourierFreed(ctx, 999), apperr.ErrNotFound)
	require.ErrorIs(t, f.svc.MarkCourierFreed(ctx, 0), apperr.ErrInvalid)
}

// staleCourierReads serves unlocked courier reads from before a concurrent claim committed.
type staleCourierReads struct {
	*memstore.Store
	before domain.Courier
}

func (s *staleCourierReads) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) error {
	return s.Store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return fn(&staleCourierTx{Repository: tx, before: s.before})
	})
}

type staleCourierTx struct {
	dispatchtx.Repository
	before domain.Courier
}

func (t *staleCourierTx) GetCourier(_ context.Context, id int64) (*domain.Courier, error) {
	if id != t.before.ID {
		return nil, nil
	}
	c := t.before
	return &c, nil
}

func TestMarkCourierFreed_ClaimBetweenReadAndLockIsConflict(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	base := memstore.New()
	cid, err := base.Create(ctx, &domain.Courier{
		Name: "A", Phone: "+70000000001", Vehicle: domain.VehicleCar,
		Availability: domain.AvailabilityAvailable, Rating: 5,
	})
	require.NoError(t, err)
	before, err := base.Get(ctx, cid)
	require.NoError(t, err)

	claimer := dispatch.NewService(base, nil, nil, nil, nil, time.Second)
	req, err := claimer.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, req.Status)

	svc := dispatch.NewService(&staleCourierReads{Store: base, before: *before}, nil, nil, nil, nil, time.Second)
	err = svc.MarkCourierFreed(ctx, cid)
	require.ErrorIs(t, err, apperr.ErrConflict)

	c, err := base.Get(ctx, cid)
	require.NoError(t, err)
	require.Equal(t, domain.AvailabilityBusy, c.Availability)
	require.NotNil(t, c.CurrentRequestID)
	require.Equal(t, req.ID, *c.CurrentRequestID)
}

func TestAdvance_ConcurrentDeliveredHasOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.allowNotify()
	ctx := context.Background()

	f.addCourier(t, "+70000000001", domain.GeoPoint{}, 4.8, 100)
	req, err := f.svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	for _, to := range []domain.DeliveryStatus{domain.DeliveryPickedUp, domain.DeliveryOnTheWay} {
		_, err = f.svc.Advance(ctx, req.ID, to, nil)
		require.NoError(t, err)
	}

	errs := make([]error, 2)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.svc.Advance(ctx, req.ID, domain.DeliveryDelivered, nil)
		}(i)
	}
	close(start)
	wg.Wait()

	wins, terminal := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, apperr.ErrAlreadyTerminal):
			terminal++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.Equal(t, 1, wins)
	require.Equal(t, 1, terminal)

	history, err := f.svc.History(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, history, 4)
	require.Equal(t, domain.DeliveryDelivered, history[3].Status)
}

type stuckSink struct {
	release chan struct{}
}

func (s stuckSink) Notify(ctx context.Context, _ domain.TransitionNotice) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func TestCreateAndAssign_SlowSinkDoesNotDelayCaller(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	sink := stuckSink{release: make(chan struct{})}
	async := notify.NewAsyncNotifier(sink, nil, nil, notify.AsyncConfig{QueueSize: 8, Timeout: time.Minute})
	store := memstore.New()
	_, err := store.Create(ctx, &domain.Courier{
		Name: "A", Phone: "+70000000001", Vehicle: domain.VehicleCar,
		Availability: domain.AvailabilityAvailable, Rating: 5,
	})
	require.NoError(t, err)
	svc := dispatch.NewService(store, nil, async, nil, nil, time.Second)

	begin := time.Now()
	req, err := svc.CreateAndAssign(ctx, baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryAssigned, req.Status)
	_, err = svc.Advance(ctx, req.ID, domain.DeliveryPickedUp, nil)
	require.NoError(t, err)
	require.Less(t, time.Since(begin), 500*time.Millisecond)

	close(sink.release)
	require.NoError(t, async.Close(ctx))
}

func TestNewService_NilCollaborators(t *testing.T) {
	t.Parallel()
	svc := dispatch.NewService(memstore.New(), nil, nil, nil, nil, 0)

	req, err := svc.CreateAndAssign(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, req.Status)
}
