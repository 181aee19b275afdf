package courier

import (
	"context"
	"time"

	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

// courierRepository defines storage operations required by the business layer.
type courierRepository interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdatePartial(ctx context.Context, u domain.PartialCourierUpdate) (bool, error)
	UpdatePosition(ctx context.Context, id int64, pos domain.GeoPoint, at time.Time) (*domain.Courier, error)
}

// requestLog is the part of the dispatch store a location ping writes to.
// The request status and the appended event share one transaction.
type requestLog interface {
	dispatchtx.Runner
}

// Publisher receives the tracking events produced by location pings.
type Publisher interface {
	Publish(ev domain.TrackingEvent)
}
