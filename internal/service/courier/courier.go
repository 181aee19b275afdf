package courier

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
)

const maxRating = 5

// Service coordinates courier business logic and orchestrates repository calls.
type Service struct {
	repo             courierRepository
	requests         requestLog
	publisher        Publisher
	logger           logx.Logger
	operationTimeout time.Duration
	now              func() time.Time
}

// NewService creates and configures a courier Service.
func NewService(r courierRepository, requests requestLog, p Publisher, logger logx.Logger, timeout time.Duration) *Service {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Service{
		repo:             r,
		requests:         requests,
		publisher:        p,
		logger:           logger,
		operationTimeout: timeout,
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// courier
func (s *Service) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.operationTimeout)
}

func validRating(r float64) bool {
	return r >= 0 && r <= maxRating
}

// callerAvailability reports whether a caller may set a. Busy is owned by the dispatcher.
func callerAvailability(a domain.CourierAvailability) bool {
	return a == domain.AvailabilityAvailable || a == domain.AvailabilityOffline
}

// validateCreate validates a courier for creation.
func validateCreate(c *domain.Courier) error {
	if c == nil {
		return apperr.ErrInvalid
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperr.ErrInvalid
	}
	if !domain.ValidatePhone(c.Phone) {
		return apperr.ErrInvalid
	}
	if c.Availability == "" {
		c.Availability = domain.AvailabilityAvailable
	}
	if !callerAvailability(c.Availability) {
		return apperr.ErrInvalid
	}
	if c.Vehicle == "" {
		c.Vehicle = domain.VehicleBike
	}
	if !c.Vehicle.Valid() {
		return apperr.ErrInvalid
	}
	if !validRating(c.Rating) || c.TotalDeliveries < 0 {
		return apperr.ErrInvalid
	}
	if !c.Position.Valid() {
		return apperr.ErrInvalidLocation
	}
	return nil
}

func validateUpdate(u *domain.PartialCourierUpdate) error {
	if u.ID <= 0 {
		return apperr.ErrInvalid
	}
	if u.Name == nil && u.Phone == nil && u.Vehicle == nil && u.Availability == nil && u.Rating == nil {
		return apperr.ErrInvalid
	}
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return apperr.ErrInvalid
	}
	if u.Phone != nil && !domain.ValidatePhone(*u.Phone) {
		return apperr.ErrInvalid
	}
	if u.Vehicle != nil && !u.Vehicle.Valid() {
		return apperr.ErrInvalid
	}
	if u.Availability != nil && !callerAvailability(*u.Availability) {
		return apperr.ErrInvalid
	}
	if u.Rating != nil && !validRating(*u.Rating) {
		return apperr.ErrInvalid
	}
	return nil
}

// Get retrieves a courier by its ID.
func (s *Service) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	c, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	return c, nil
}

// List returns couriers with optional pagination
func (s *Service) List(ctx context.Context, limit, offset *int) ([]domain.Courier, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.repo.List(ctx, limit, offset)
}

// Create persists a new courier and returns its generated ID.
func (s *Service) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	if err := validateCreate(c); err != nil {
		return 0, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	id, err := s.repo.Create(ctx, c)
	if err != nil {
		return 0, err
	}
	s.logger.Info("courier registered",
		logx.Int64("courier_id", id),
		logx.String("vehicle", string(c.Vehicle)),
	)
	return id, nil
}

// UpdatePartial applies a partial update to a courier. It returns true if a row was updated.
func (s *Service) UpdatePartial(ctx context.Context, u domain.PartialCourierUpdate) (bool, error) {
	if err := validateUpdate(&u); err != nil {
		return false, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	ok, err := s.repo.UpdatePartial(ctx, u)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, apperr.ErrNotFound
	}
	return true, nil
}

// UpdateLocation records a position report. While the courier works on a
// non-pending request the report is also appended to that request's tracking
// history and published to live observers.
func (s *Service) UpdateLocation(ctx context.Context, id int64, pos domain.GeoPoint) (*domain.Courier, error) {
	if !pos.Valid() {
		return nil, apperr.ErrInvalidLocation
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	at := s.now()
	c, err := s.repo.UpdatePosition(ctx, id, pos, at)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, apperr.ErrNotFound
	}
	if c.CurrentRequestID == nil || s.requests == nil {
		return c, nil
	}

	var ev *domain.TrackingEvent
	err = s.requests.WithTx(ctx, func(tx dispatchtx.Repository) error {
		req, err := tx.GetRequestForUpdate(ctx, *c.CurrentRequestID)
		if err != nil {
			return err
		}
		if req == nil || req.Status == domain.DeliveryPending || req.Status.IsTerminal() {
			return nil
		}
		// stamped under the request lock so it orders after any status change
		e := domain.TrackingEvent{
			ID:        uuid.NewString(),
			RequestID: req.ID,
			CourierID: c.ID,
			Position:  pos,
			Status:    req.Status,
			Timestamp: s.now(),
		}
		if err := tx.AppendEvent(ctx, e); err != nil {
			return err
		}
		ev = &e
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ev == nil {
		return c, nil
	}
	if s.publisher != nil {
		s.publisher.Publish(*ev)
	}
	s.logger.Debug("courier position tracked",
		logx.Int64("courier_id", c.ID),
		logx.String("request_id", ev.RequestID),
		logx.Float64("latitude", pos.Latitude),
		logx.Float64("longitude", pos.Longitude),
	)
	return c, nil
}
