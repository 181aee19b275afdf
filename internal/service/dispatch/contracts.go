//go:generate mockgen -source=contracts.go -destination=dispatch_mocks_test.go -package=dispatch_test

package dispatch

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

type dispatchStore interface {
	dispatchtx.Runner
	GetRequest(ctx context.Context, id string) (*domain.DeliveryRequest, error)
	ListEvents(ctx context.Context, requestID string) ([]domain.TrackingEvent, error)
	ListAvailableCouriers(ctx context.Context) ([]domain.Courier, error)
	GetCouriers(ctx context.Context, ids []int64) ([]domain.Courier, error)
}

// Publisher pushes committed tracking events onto the real-time channel.
type Publisher interface {
	Publish(ev domain.TrackingEvent)
}

// Notifier is informed about every committed transition.
// Failures are logged and never undo the transition.
type Notifier interface {
	Notify(ctx context.Context, n domain.TransitionNotice) error
}
