package app

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"

	"courier-dispatch/internal/config"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/logx"
	"courier-dispatch/internal/ports/dispatchtx"
	"courier-dispatch/internal/repository"
	"courier-dispatch/internal/repository/memstore"
)

const (
	dbConnectRetries = 10
	dbConnectDelay   = time.Second
)

// dispatchBackend is everything the coordinator and location pings need from storage.
type dispatchBackend interface {
	dispatchtx.Runner
	GetRequest(ctx context.Context, id string) (*domain.DeliveryRequest, error)
	ListEvents(ctx context.Context, requestID string) ([]domain.TrackingEvent, error)
	AppendEvent(ctx context.Context, e domain.TrackingEvent) error
	ListAvailableCouriers(ctx context.Context) ([]domain.Courier, error)
	GetCouriers(ctx context.Context, ids []int64) ([]domain.Courier, error)
}

type courierBackend interface {
	Get(ctx context.Context, id int64) (*domain.Courier, error)
	List(ctx context.Context, limit, offset *int) ([]domain.Courier, error)
	Create(ctx context.Context, c *domain.Courier) (int64, error)
	UpdatePartial(ctx context.Context, u domain.PartialCourierUpdate) (bool, error)
	UpdatePosition(ctx context.Context, id int64, pos domain.GeoPoint, at time.Time) (*domain.Courier, error)
}

type backends struct {
	driver   string
	dispatch dispatchBackend
	couriers courierBackend
}

func registerDb(container *dig.Container, dbConnect dbConnectFunc) error {
	return provideAll(container, func(ctx context.Context, cfg *config.Config, logger logx.Logger) *dbHandle {
		return &dbHandle{open: func() (*pgxpool.Pool, error) {
			return dbConnect(ctx, logger, cfg.DB.DSN(), dbConnectRetries, dbConnectDelay)
		}}
	})
}

func registerStore(container *dig.Container) error {
	return provideAll(container, provideBackends)
}

func provideBackends(ctx context.Context, cfg *config.Config, logger logx.Logger, db *dbHandle) (*backends, error) {
	if cfg.Store.Driver == config.StoreDriverMemory {
		s := memstore.New()
		logger.Info("using in-memory store")
		return &backends{driver: config.StoreDriverMemory, dispatch: s, couriers: s}, nil
	}

	pool, err := db.Pool()
	if err != nil {
		return nil, err
	}
	if cfg.Store.AutoMigrate {
		if err := repository.EnsureSchema(ctx, pool); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		logger.Info("database schema ensured")
	}
	return &backends{
		driver:   config.StoreDriverPostgres,
		dispatch: repository.NewDeliveryRepo(pool),
		couriers: repository.NewCourierRepo(pool),
	}, nil
}
