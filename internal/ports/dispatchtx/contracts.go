package dispatchtx

import (
	"context"

	"courier-dispatch/internal/domain"
)

// Repository is the transactional view of the dispatch store.
// Every method runs inside the transaction opened by Runner.WithTx.
type Repository interface {
	InsertRequest(ctx context.Context, r *domain.DeliveryRequest) error
	// GetRequestForUpdate locks the request row; nil when it does not exist.
	GetRequestForUpdate(ctx context.Context, id string) (*domain.DeliveryRequest, error)
	// UpdateRequest writes r if its version is unchanged and bumps r.Version.
	// A stale version yields apperr.ErrConflict.
	UpdateRequest(ctx context.Context, r *domain.DeliveryRequest) error
	GetCourier(ctx context.Context, id int64) (*domain.Courier, error)
	// GetCourierForUpdate locks the courier row until the transaction ends; nil when it does not exist.
	GetCourierForUpdate(ctx context.Context, id int64) (*domain.Courier, error)
	// ClaimCourier flips an available courier to busy and points it at requestID.
	// A courier that is no longer available yields apperr.ErrCourierUnavailableAtClaim.
	ClaimCourier(ctx context.Context, courierID int64, requestID string) (*domain.Courier, error)
	// ReleaseCourier makes the courier available and clears its request pointer.
	// A non-empty requestID only releases a courier still bound to that request.
	// completed increments the courier's delivery count.
	ReleaseCourier(ctx context.Context, courierID int64, requestID string, completed bool) (bool, error)
	AppendEvent(ctx context.Context, e domain.TrackingEvent) error
}

// Runner is a transaction runner
type Runner interface {
	WithTx(ctx context.Context, fn func(tx Repository) error) error
}
