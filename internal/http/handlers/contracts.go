package handlers

import (
	"context"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/service/dispatch"
)

type courierUsecase interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdatePartial(ctx context.Context, u domain.PartialCourierUpdate) (bool, error)
	UpdateLocation(ctx context.Context, id int64, pos domain.GeoPoint) (*domain.Courier, error)
}

type dispatchUsecase interface {
	CreateAndAssign(ctx context.Context, in dispatch.CreateRequest) (domain.DeliveryRequest, error)
	AssignPending(ctx context.Context, requestID string, candidateIDs []int64) (domain.DeliveryRequest, error)
	Advance(ctx context.Context, requestID string, to domain.DeliveryStatus, pos *domain.GeoPoint) (domain.DeliveryRequest, error)
	Cancel(ctx context.Context, requestID string) (domain.DeliveryRequest, error)
	MarkCourierFreed(ctx context.Context, courierID int64) error
	Get(ctx context.Context, requestID string) (domain.DeliveryRequest, error)
	History(ctx context.Context, requestID string) ([]domain.TrackingEvent, error)
}

type historySource interface {
	History(ctx context.Context, requestID string) ([]domain.TrackingEvent, error)
}

type trackFeed interface {
	Subscribe(requestID string) (<-chan domain.TrackingEvent, func())
}
