package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
	"courier-dispatch/internal/ports/dispatchtx"
)

const requestColumns = `id, origin_lat, origin_lon, origin_address, destination_lat, destination_lon,
	destination_address, requester_id, priority, status, courier_id, distance_km, estimated_minutes,
	fee_cents, version, created_at, updated_at`

func scanRequest(row pgx.Row) (*domain.DeliveryRequest, error) {
	var d domain.DeliveryRequest
	err := row.Scan(
		&d.ID, &d.Origin.Latitude, &d.Origin.Longitude, &d.OriginAddress,
		&d.Destination.Latitude, &d.Destination.Longitude, &d.DestinationAddress,
		&d.RequesterID, &d.Priority, &d.Status, &d.CourierID, &d.DistanceKm, &d.EstimatedMinutes,
		&d.FeeCents, &d.Version, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// DeliveryRepo represents delivery repository.
type DeliveryRepo struct {
	db *pgxpool.Pool
}

// NewDeliveryRepo creates a new DeliveryRepo.
func NewDeliveryRepo(db *pgxpool.Pool) *DeliveryRepo {
	return &DeliveryRepo{db: db}
}

// WithTx opens a transaction and executes fn within it.
func (r *DeliveryRepo) WithTx(ctx context.Context, fn func(tx dispatchtx.Repository) error) (err error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				panic(rbErr)
			}
			panic(p)
		}
	}()

	if err := fn(&TxRepo{tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback tx: %w (original error: %s)", rbErr, err.Error())
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetRequest returns a request by id or nil.
func (r *DeliveryRepo) GetRequest(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	d, err := scanRequest(r.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM delivery_requests WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get request %q: %w", id, err)
	}
	return d, nil
}

// ListEvents returns the tracking events of a request ordered by time.
func (r *DeliveryRepo) ListEvents(ctx context.Context, requestID string) ([]domain.TrackingEvent, error) {
	rows, err := r.db.Query(ctx, `
        SELECT id, request_id, courier_id, latitude, longitude, status, occurred_at
        FROM tracking_events
        WHERE request_id = $1
        ORDER BY occurred_at, id
    `, requestID)
	if err != nil {
		return nil, fmt.Errorf("list events %q: %w", requestID, err)
	}
	defer rows.Close()

	out := make([]domain.TrackingEvent, 0, 8)
	for rows.Next() {
		var e domain.TrackingEvent
		if err := rows.Scan(&e.ID, &e.RequestID, &e.CourierID, &e.Position.Latitude,
			&e.Position.Longitude, &e.Status, &e.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// AppendEvent stores an event outside of a transaction.
func (r *DeliveryRepo) AppendEvent(ctx context.Context, e domain.TrackingEvent) error {
	return appendEvent(ctx, r.db, e)
}

// ListAvailableCouriers returns every available courier ordered by id.
func (r *DeliveryRepo) ListAvailableCouriers(ctx context.Context) ([]domain.Courier, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE availability = $1 ORDER BY id`,
		string(domain.AvailabilityAvailable))
	if err != nil {
		return nil, fmt.Errorf("list available couriers: %w", err)
	}
	return collectCouriers(rows, 0)
}

// GetCouriers returns the couriers with the given ids ordered by id.
func (r *DeliveryRepo) GetCouriers(ctx context.Context, ids []int64) ([]domain.Courier, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE id = ANY($1) ORDER BY id`, ids)
	if err != nil {
		return nil, fmt.Errorf("get couriers: %w", err)
	}
	return collectCouriers(rows, len(ids))
}

// TxRepo represents transaction repository.
type TxRepo struct {
	tx pgx.Tx
}

// InsertRequest - insert a new delivery request.
func (r *TxRepo) InsertRequest(ctx context.Context, d *domain.DeliveryRequest) error {
	if d.Version == 0 {
		d.Version = 1
	}
	_, err := r.tx.Exec(ctx, `
        INSERT INTO delivery_requests (`+requestColumns+`)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
    `, d.ID, d.Origin.Latitude, d.Origin.Longitude, d.OriginAddress,
		d.Destination.Latitude, d.Destination.Longitude, d.DestinationAddress,
		d.RequesterID, d.Priority, d.Status, d.CourierID, d.DistanceKm, d.EstimatedMinutes,
		d.FeeCents, d.Version, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		if IsDuplicate(err) {
			return apperr.ErrConflict
		}
		return fmt.Errorf("insert request: %w", err)
	}
	return nil
}

// GetRequestForUpdate - locks the request row.
func (r *TxRepo) GetRequestForUpdate(ctx context.Context, id string) (*domain.DeliveryRequest, error) {
	d, err := scanRequest(r.tx.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM delivery_requests WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock request %q: %w", id, err)
	}
	return d, nil
}

// UpdateRequest - version-checked write of the mutable request fields.
func (r *TxRepo) UpdateRequest(ctx context.Context, d *domain.DeliveryRequest) error {
	ct, err := r.tx.Exec(ctx, `
        UPDATE delivery_requests
        SET status = $3, courier_id = $4, estimated_minutes = $5, updated_at = $6, version = version + 1
        WHERE id = $1 AND version = $2
    `, d.ID, d.Version, d.Status, d.CourierID, d.EstimatedMinutes, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update request %q: %w", d.ID, err)
	}
	if ct.RowsAffected() == 0 {
		return fmt.Errorf("request %s version %d: %w", d.ID, d.Version, apperr.ErrConflict)
	}
	d.Version++
	return nil
}

// GetCourier - get courier inside the transaction.
func (r *TxRepo) GetCourier(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.tx.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id = $1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// GetCourierForUpdate - locks the courier row so a concurrent claim waits for this transaction.
func (r *TxRepo) GetCourierForUpdate(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.tx.QueryRow(ctx,
		`SELECT `+courierColumns+` FROM couriers WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("lock courier %d: %w", id, err)
	}
	return c, nil
}

// ClaimCourier - conditional flip of an available courier to busy.
func (r *TxRepo) ClaimCourier(ctx context.Context, courierID int64, requestID string) (*domain.Courier, error) {
	c, err := scanCourier(r.tx.QueryRow(ctx, `
        UPDATE couriers
        SET availability = $3, current_request_id = $2, updated_at = now()
        WHERE id = $1 AND availability = $4
        RETURNING `+courierColumns,
		courierID, requestID, string(domain.AvailabilityBusy), string(domain.AvailabilityAvailable)))
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("courier %d: %w", courierID, apperr.ErrCourierUnavailableAtClaim)
		}
		return nil, fmt.Errorf("claim courier %d: %w", courierID, err)
	}
	return c, nil
}

// ReleaseCourier - make the courier available again.
func (r *TxRepo) ReleaseCourier(ctx context.Context, courierID int64, requestID string, completed bool) (bool, error) {
	ct, err := r.tx.Exec(ctx, `
        UPDATE couriers
        SET availability = $2,
            current_request_id = NULL,
            total_deliveries = total_deliveries + CASE WHEN $4::boolean THEN 1 ELSE 0 END,
            updated_at = now()
        WHERE id = $1
          AND ($3::text = '' OR current_request_id = $3)
    `, courierID, string(domain.AvailabilityAvailable), requestID, completed)
	if err != nil {
		return false, fmt.Errorf("release courier %d: %w", courierID, err)
	}
	return ct.RowsAffected() > 0, nil
}

// AppendEvent - append a tracking event.
func (r *TxRepo) AppendEvent(ctx context.Context, e domain.TrackingEvent) error {
	return appendEvent(ctx, r.tx, e)
}

func appendEvent(ctx context.Context, q querier, e domain.TrackingEvent) error {
	_, err := q.Exec(ctx, `
        INSERT INTO tracking_events (id, request_id, courier_id, latitude, longitude, status, occurred_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        ON CONFLICT (id) DO NOTHING
    `, e.ID, e.RequestID, e.CourierID, e.Position.Latitude, e.Position.Longitude, e.Status, e.Timestamp)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("request %q: %w", e.RequestID, apperr.ErrNotFound)
		}
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}
