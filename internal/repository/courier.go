package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"courier-dispatch/internal/apperr"
	"courier-dispatch/internal/domain"
)

const courierColumns = `id, name, phone, vehicle, availability, rating, total_deliveries,
	current_request_id, latitude, longitude, position_updated_at, created_at, updated_at`

func scanCourier(row pgx.Row) (*domain.Courier, error) {
	var c domain.Courier
	err := row.Scan(
		&c.ID, &c.Name, &c.Phone, &c.Vehicle, &c.Availability, &c.Rating, &c.TotalDeliveries,
		&c.CurrentRequestID, &c.Position.Latitude, &c.Position.Longitude, &c.PositionUpdatedAt,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func collectCouriers(rows pgx.Rows, capacity int) ([]domain.Courier, error) {
	defer rows.Close()
	out := make([]domain.Courier, 0, capacity)
	for rows.Next() {
		c, err := scanCourier(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CourierRepo represents courier repository.
type CourierRepo struct{ db *pgxpool.Pool }

// NewCourierRepo creates a new CourierRepo.
func NewCourierRepo(db *pgxpool.Pool) *CourierRepo { return &CourierRepo{db: db} }

// Get - returns courier by its ID.
func (r *CourierRepo) Get(ctx context.Context, id int64) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx, `SELECT `+courierColumns+` FROM couriers WHERE id=$1`, id))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get courier %d: %w", id, err)
	}
	return c, nil
}

// List returns couriers ordered by id. If limit/offset are nil, returns the full list.
func (r *CourierRepo) List(ctx context.Context, limit, offset *int) ([]domain.Courier, error) {
	q := `SELECT ` + courierColumns + ` FROM couriers ORDER BY id`
	args := make([]any, 0, 2)
	if limit != nil {
		q += fmt.Sprintf(" LIMIT $%d", len(args)+1)
		args = append(args, *limit)
	}
	if offset != nil {
		q += fmt.Sprintf(" OFFSET $%d", len(args)+1)
		args = append(args, *offset)
	}

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list couriers: %w", err)
	}
	capacity := 0
	if limit != nil && *limit > 0 {
		capacity = *limit
	}
	return collectCouriers(rows, capacity)
}

// Create - creates a new courier.
func (r *CourierRepo) Create(ctx context.Context, c *domain.Courier) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `
        INSERT INTO couriers(name, phone, vehicle, availability, rating, total_deliveries, latitude, longitude)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        RETURNING id
    `, c.Name, c.Phone, c.Vehicle, c.Availability, c.Rating, c.TotalDeliveries,
		c.Position.Latitude, c.Position.Longitude).Scan(&id)
	if err != nil {
		if IsDuplicate(err) {
			return 0, apperr.ErrConflict
		}
		return 0, fmt.Errorf("create courier: %w", err)
	}
	return id, nil
}

// UpdatePartial applies a partial update to a courier and returns true if a row was affected.
// Availability of a courier bound to a request is left to the dispatcher.
func (r *CourierRepo) UpdatePartial(ctx context.Context, u domain.PartialCourierUpdate) (bool, error) {
	ct, err := r.db.Exec(ctx, `
        UPDATE couriers
        SET
            name         = COALESCE($2, name),
            phone        = COALESCE($3, phone),
            vehicle      = COALESCE($4, vehicle),
            availability = COALESCE($5, availability),
            rating       = COALESCE($6, rating),
            updated_at   = now()
        WHERE id = $1
          AND ($5::text IS NULL OR current_request_id IS NULL)
    `, u.ID, u.Name, u.Phone, u.Vehicle, u.Availability, u.Rating)
	if err != nil {
		if IsDuplicate(err) {
			return false, apperr.ErrConflict
		}
		return false, fmt.Errorf("update courier %d: %w", u.ID, err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}
	if u.Availability == nil {
		return false, nil
	}
	c, err := r.Get(ctx, u.ID)
	if err != nil || c == nil {
		return false, err
	}
	return false, fmt.Errorf("courier %d has an active request: %w", u.ID, apperr.ErrConflict)
}

// UpdatePosition stores the latest reported position and returns the courier.
func (r *CourierRepo) UpdatePosition(ctx context.Context, id int64, pos domain.GeoPoint, at time.Time) (*domain.Courier, error) {
	c, err := scanCourier(r.db.QueryRow(ctx, `
        UPDATE couriers
        SET latitude = $2, longitude = $3, position_updated_at = $4, updated_at = now()
        WHERE id = $1
        RETURNING `+courierColumns, id, pos.Latitude, pos.Longitude, at))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("update courier %d position: %w", id, err)
	}
	return c, nil
}
