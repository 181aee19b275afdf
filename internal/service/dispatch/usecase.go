package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/geo"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/metrics"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/service/lifecycle"
	"courier-dispatch/internal/service/scoring"
)

const notifyTimeout = 2 * time.Second

// claimAttempts is the first claim plus one retry against a refreshed candidate set.
const claimAttempts = 2

// CreateRequest is the input of CreateAndAssign.
type CreateRequest struct {
	Origin             domain.GeoPoint
	OriginAddress      string
	Destination        domain.GeoPoint
	DestinationAddress string
	RequesterID        string
	Priority           bool
	FeeCents           int64
	// Candidates is an explicit candidate snapshot. When empty, CandidateIDs are
	// loaded from the store; when both are empty every available courier is considered.
	Candidates   []domain.Courier
	CandidateIDs []int64
}

func (in CreateRequest) candidateIDs() []int64 {
	if len(in.Candidates) == 0 {
		return in.CandidateIDs
	}
	ids := make([]int64, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		ids = append(ids, c.ID)
	}
	return ids
}

// Service coordinates courier selection and the delivery lifecycle.
type Service struct {
	store            dispatchStore
	publisher        Publisher
	notifier         Notifier
	logger           logx.Logger
	metrics          *metrics.Dispatch
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates a new dispatch Service.
func NewService(
	store dispatchStore,
	publisher Publisher,
	notifier Notifier,
	logger logx.Logger,
	m *metrics.Dispatch,
	timeout time.Duration,
) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		store:            store,
		publisher:        publisher,
		notifier:         notifier,
		logger:           logger,
		metrics:          m,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validateCreate(in CreateRequest) error {
	if !in.Origin.Valid() || !in.Destination.Valid() {
		return apperr.ErrInvalidLocation
	}
	if strings.TrimSpace(in.RequesterID) == "" || in.FeeCents < 0 {
		return apperr.ErrInvalid
	}
	return nil
}

// CreateAndAssign persists a new request and tries to bind the best courier to it.
// When nobody is available the request is returned in pending status with a nil error.
// ErrAssignmentConflict is returned together with the pending request.
func (s *Service) CreateAndAssign(ctx context.Context, in CreateRequest) (domain.DeliveryRequest, error) {
	if err := validateCreate(in); err != nil {
		return domain.DeliveryRequest{}, err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	now := s.now()
	distance := geo.Distance(in.Origin, in.Destination)
	req := domain.DeliveryRequest{
		ID:                 uuid.NewString(),
		Origin:             in.Origin,
		OriginAddress:      strings.TrimSpace(in.OriginAddress),
		Destination:        in.Destination,
		DestinationAddress: strings.TrimSpace(in.DestinationAddress),
		RequesterID:        strings.TrimSpace(in.RequesterID),
		Priority:           in.Priority,
		Status:             domain.DeliveryPending,
		DistanceKm:         distance,
		// refined with the courier's vehicle once assigned
		EstimatedMinutes: geo.EstimateDuration(distance, domain.VehicleBike),
		FeeCents:         in.FeeCents,
		Version:          1,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	err := s.store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		return tx.InsertRequest(ctx, &req)
	})
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	s.logger.Info("delivery request created",
		logx.String("event", "request_created"),
		logx.String("request_id", req.ID),
		logx.String("requester_id", req.RequesterID),
		logx.Bool("priority", req.Priority),
		logx.Float64("distance_km", req.DistanceKm),
	)

	cands, err := s.initialCandidates(ctx, in)
	if err != nil {
		return req, err
	}
	assigned, err := s.assign(ctx, req, cands, in.candidateIDs())
	switch {
	case err == nil:
		return assigned, nil
	case errors.Is(err, apperr.ErrNoCourierAvailable):
		return req, nil
	default:
		return req, err
	}
}

// AssignPending retries assignment of a pending request.
func (s *Service) AssignPending(ctx context.Context, requestID string, candidateIDs []int64) (domain.DeliveryRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	if req == nil {
		return domain.DeliveryRequest{}, apperr.ErrNotFound
	}
	if err := lifecycle.Check(req.Status, domain.DeliveryAssigned); err != nil {
		return *req, err
	}
	cands, err := s.initialCandidates(ctx, CreateRequest{CandidateIDs: candidateIDs})
	if err != nil {
		return *req, err
	}
	return s.assign(ctx, *req, cands, candidateIDs)
}

func (s *Service) initialCandidates(ctx context.Context, in CreateRequest) ([]domain.Courier, error) {
	if len(in.Candidates) > 0 {
		return in.Candidates, nil
	}
	return s.loadCandidates(ctx, in.CandidateIDs)
}

func (s *Service) loadCandidates(ctx context.Context, ids []int64) ([]domain.Courier, error) {
	if len(ids) > 0 {
		return s.store.GetCouriers(ctx, ids)
	}
	return s.store.ListAvailableCouriers(ctx)
}

func (s *Service) assign(
	ctx context.Context,
	req domain.DeliveryRequest,
	cands []domain.Courier,
	ids []int64,
) (domain.DeliveryRequest, error) {
	for attempt := 1; attempt <= claimAttempts; attempt++ {
		best, ok := scoring.SelectBest(cands, req.Origin, req.Destination, req.Priority)
		if !ok {
			s.metrics.Outcome(metrics.OutcomePending)
			s.logger.Info("searching for a courier",
				logx.String("event", "no_courier_available"),
				logx.String("request_id", req.ID),
				logx.Int("candidates", len(cands)),
			)
			return req, apperr.ErrNoCourierAvailable
		}

		assigned, ev, err := s.claim(ctx, req.ID, best.ID)
		if err == nil {
			s.metrics.Outcome(metrics.OutcomeAssigned)
			s.metrics.Transition(string(domain.DeliveryAssigned))
			s.logger.Info("courier assigned",
				logx.String("event", "courier_assigned"),
				logx.String("request_id", assigned.ID),
				logx.Int64("courier_id", best.ID),
				logx.String("vehicle", string(best.Vehicle)),
				logx.Int("eta_minutes", assigned.EstimatedMinutes),
				logx.Int("attempt", attempt),
			)
			s.afterCommit(ctx, assigned, domain.DeliveryPending, ev)
			return assigned, nil
		}
		if !errors.Is(err, apperr.ErrCourierUnavailableAtClaim) {
			return req, err
		}
		if attempt == claimAttempts {
			break
		}

		s.metrics.ClaimRetry()
		s.logger.Warn("courier claimed concurrently, retrying selection",
			logx.String("request_id", req.ID),
			logx.Int64("courier_id", best.ID),
		)
		cands, err = s.loadCandidates(ctx, ids)
		if err != nil {
			return req, err
		}
	}

	s.metrics.Outcome(metrics.OutcomeConflict)
	return req, fmt.Errorf("request %s: %w", req.ID, apperr.ErrAssignmentConflict)
}

// claim binds the courier to the request in one transaction.
func (s *Service) claim(ctx context.Context, requestID string, courierID int64) (domain.DeliveryRequest, domain.TrackingEvent, error) {
	var (
		out domain.DeliveryRequest
		ev  domain.TrackingEvent
	)
	err := s.store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.ErrNotFound
		}
		if err := lifecycle.Check(req.Status, domain.DeliveryAssigned); err != nil {
			return err
		}
		c, err := tx.ClaimCourier(ctx, courierID, req.ID)
		if err != nil {
			return err
		}
		id := c.ID
		ev, err = lifecycle.Assign(req, &id, c.Position, s.now())
		if err != nil {
			return err
		}
		req.EstimatedMinutes = geo.EstimateDuration(req.DistanceKm, c.Vehicle)
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		out = *req
		return nil
	})
	return out, ev, err
}

// Advance applies a courier-driven step (picked_up, on_the_way, delivered).
// pos overrides the courier's last reported position when provided.
func (s *Service) Advance(ctx context.Context, requestID string, to domain.DeliveryStatus, pos *domain.GeoPoint) (domain.DeliveryRequest, error) {
	if pos != nil && !pos.Valid() {
		return domain.DeliveryRequest{}, apperr.ErrInvalidLocation
	}
	return s.transition(ctx, requestID, pos, func(req *domain.DeliveryRequest, p domain.GeoPoint, at time.Time) (domain.TrackingEvent, error) {
		return lifecycle.Advance(req, to, p, at)
	})
}

// Cancel cancels a non-terminal request and frees its courier.
func (s *Service) Cancel(ctx context.Context, requestID string) (domain.DeliveryRequest, error) {
	return s.transition(ctx, requestID, nil, lifecycle.Cancel)
}

type stepFunc func(req *domain.DeliveryRequest, pos domain.GeoPoint, at time.Time) (domain.TrackingEvent, error)

func (s *Service) transition(ctx context.Context, requestID string, pos *domain.GeoPoint, step stepFunc) (domain.DeliveryRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var (
		out  domain.DeliveryRequest
		from domain.DeliveryStatus
		ev   domain.TrackingEvent
	)
	err := s.store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		req, err := tx.GetRequestForUpdate(ctx, requestID)
		if err != nil {
			return err
		}
		if req == nil {
			return apperr.ErrNotFound
		}
		from = req.Status

		p, err := s.emittedPosition(ctx, tx, req, pos)
		if err != nil {
			return err
		}
		ev, err = step(req, p, s.now())
		if err != nil {
			return err
		}
		if err := tx.UpdateRequest(ctx, req); err != nil {
			return err
		}
		if err := tx.AppendEvent(ctx, ev); err != nil {
			return err
		}
		if req.Status.IsTerminal() && req.CourierID != nil {
			completed := req.Status == domain.DeliveryDelivered
			if _, err := tx.ReleaseCourier(ctx, *req.CourierID, req.ID, completed); err != nil {
				return err
			}
		}
		out = *req
		return nil
	})
	if err != nil {
		return domain.DeliveryRequest{}, err
	}

	s.metrics.Transition(string(out.Status))
	s.logger.Info("delivery status changed",
		logx.String("event", "status_changed"),
		logx.String("request_id", out.ID),
		logx.String("from", string(from)),
		logx.String("to", string(out.Status)),
	)
	s.afterCommit(ctx, out, from, ev)
	return out, nil
}

// emittedPosition is the explicit position, else the courier's last report, else the zero point.
func (s *Service) emittedPosition(
	ctx context.Context,
	tx dispatchtx.Repository,
	req *domain.DeliveryRequest,
	pos *domain.GeoPoint,
) (domain.GeoPoint, error) {
	if pos != nil {
		return *pos, nil
	}
	if req.CourierID == nil {
		return domain.GeoPoint{}, nil
	}
	c, err := tx.GetCourier(ctx, *req.CourierID)
	if err != nil {
		return domain.GeoPoint{}, err
	}
	if c == nil {
		return domain.GeoPoint{}, nil
	}
	return c.Position, nil
}

func (s *Service) afterCommit(ctx context.Context, req domain.DeliveryRequest, from domain.DeliveryStatus, ev domain.TrackingEvent) {
	if s.publisher != nil {
		s.publisher.Publish(ev)
	}
	if s.notifier == nil {
		return
	}
	nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()
	notice := domain.TransitionNotice{
		RequestID:   req.ID,
		RequesterID: req.RequesterID,
		CourierID:   req.CourierID,
		From:        from,
		To:          req.Status,
		At:          ev.Timestamp,
	}
	if err := s.notifier.Notify(nctx, notice); err != nil {
		s.metrics.NotifyFailure()
		s.logger.Error("notification failed",
			logx.String("request_id", req.ID),
			logx.String("to", string(req.Status)),
			logx.Err(err),
		)
	}
}

// MarkCourierFreed makes a courier available again and clears its request pointer.
// A courier still bound to a non-terminal request is not released.
func (s *Service) MarkCourierFreed(ctx context.Context, courierID int64) error {
	if courierID <= 0 {
		return apperr.ErrInvalid
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := s.store.WithTx(ctx, func(tx dispatchtx.Repository) error {
		c, err := tx.GetCourier(ctx, courierID)
		if err != nil {
			return err
		}
		if c == nil {
			return apperr.ErrNotFound
		}
		bound := ""
		if c.CurrentRequestID != nil {
			bound = *c.CurrentRequestID
			// request before courier, the same order transitions lock in
			req, err := tx.GetRequestForUpdate(ctx, bound)
			if err != nil {
				return err
			}
			if req != nil && !req.Status.IsTerminal() {
				return fmt.Errorf("courier %d bound to %s request %s: %w",
					courierID, req.Status, req.ID, apperr.ErrConflict)
			}
		}
		locked, err := tx.GetCourierForUpdate(ctx, courierID)
		if err != nil {
			return err
		}
		if locked == nil {
			return apperr.ErrNotFound
		}
		if !sameRequest(locked.CurrentRequestID, c.CurrentRequestID) {
			return fmt.Errorf("courier %d was claimed concurrently: %w", courierID, apperr.ErrConflict)
		}
		_, err = tx.ReleaseCourier(ctx, courierID, bound, false)
		return err
	})
	if err != nil {
		return err
	}
	s.logger.Info("courier freed",
		logx.String("event", "courier_freed"),
		logx.Int64("courier_id", courierID),
	)
	return nil
}

func sameRequest(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// Get returns a request by id.
func (s *Service) Get(ctx context.Context, requestID string) (domain.DeliveryRequest, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return domain.DeliveryRequest{}, err
	}
	if req == nil {
		return domain.DeliveryRequest{}, apperr.ErrNotFound
	}
	return *req, nil
}

// History returns the tracking events of a request in timestamp order.
func (s *Service) History(ctx context.Context, requestID string) ([]domain.TrackingEvent, error) {
	if _, err := s.Get(ctx, requestID); err != nil {
		return nil, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.store.ListEvents(ctx, requestID)
}
