//go:generate mockgen -source=contracts.go -destination=courierapp_mocks_test.go -package=courierapp_test

package courierapp

import (
	"context"

	"courier-dispatch/internal/domain"
)

// DispatchPort abstracts the coordinator operations a courier app may trigger.
type DispatchPort interface {
	Get(ctx context.Context, requestID string) (domain.DeliveryRequest, error)
	Advance(ctx context.Context, requestID string, to domain.DeliveryStatus, pos *domain.GeoPoint) (domain.DeliveryRequest, error)
	MarkCourierFreed(ctx context.Context, courierID int64) error
}

// LocationPort records courier position reports.
type LocationPort interface {
	UpdateLocation(ctx context.Context, courierID int64, pos domain.GeoPoint) (*domain.Courier, error)
}
