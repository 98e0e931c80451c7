package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"tractor-rental/internal/data/entity"
	"tractor-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type TractorRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Tractor, error)

	// AddBlockedRange appends the interval to the tractor's calendar.
	AddBlockedRange(ctx context.Context, tractorID uuid.UUID, r entity.DateRange) error

	// RemoveBlockedRange drops the interval owned by the given booking.
	RemoveBlockedRange(ctx context.Context, tractorID, bookingID uuid.UUID) error

	// IncrementStats bumps the aggregates on booking completion.
	IncrementStats(ctx context.Context, tractorID uuid.UUID, earnings int64, hectares float64) error
}

type tractorRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewTractorRepository(db database.PgxIface, log *zap.Logger) TractorRepository {
	return &tractorRepository{
		db:  db,
		log: log.With(zap.String("repository", "tractor")),
	}
}

const tractorColumns = `id, owner_id, name, price_per_hectare, approved, available,
	blocked_ranges, total_bookings, total_earnings, total_hectares, created_at, updated_at`

func scanTractor(row pgx.Row) (*entity.Tractor, error) {
	var tractor entity.Tractor
	var blocked []byte

	err := row.Scan(
		&tractor.ID,
		&tractor.OwnerID,
		&tractor.Name,
		&tractor.PricePerHectare,
		&tractor.Approved,
		&tractor.Available,
		&blocked,
		&tractor.TotalBookings,
		&tractor.TotalEarnings,
		&tractor.TotalHectares,
		&tractor.CreatedAt,
		&tractor.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(blocked) > 0 {
		if err := json.Unmarshal(blocked, &tractor.BlockedRanges); err != nil {
			return nil, fmt.Errorf("unmarshal blocked ranges: %w", err)
		}
	}

	return &tractor, nil
}

func (r *tractorRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tractor, error) {
	query := `SELECT ` + tractorColumns + ` FROM tractors WHERE id = $1`

	tractor, err := scanTractor(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find tractor by ID",
			zap.Error(err),
			zap.String("tractor_id", id.String()),
		)
		return nil, fmt.Errorf("find tractor by ID %s: %w", id.String(), err)
	}

	return tractor, nil
}

func (r *tractorRepository) AddBlockedRange(ctx context.Context, tractorID uuid.UUID, dr entity.DateRange) error {
	rangeJSON, err := json.Marshal([]entity.DateRange{dr})
	if err != nil {
		return fmt.Errorf("marshal blocked range: %w", err)
	}

	query := `
		UPDATE tractors
		SET blocked_ranges = COALESCE(blocked_ranges, '[]'::jsonb) || $2::jsonb,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, tractorID, rangeJSON)
	if err != nil {
		r.log.Error("Failed to add blocked range",
			zap.Error(err),
			zap.String("tractor_id", tractorID.String()),
			zap.String("booking_id", dr.BookingID.String()),
		)
		return fmt.Errorf("add blocked range for tractor %s: %w", tractorID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("tractor %s not found", tractorID.String())
	}

	return nil
}

func (r *tractorRepository) RemoveBlockedRange(ctx context.Context, tractorID, bookingID uuid.UUID) error {
	// jsonb path filter drops only the element owned by the booking
	query := `
		UPDATE tractors
		SET blocked_ranges = COALESCE((
		        SELECT jsonb_agg(elem)
		        FROM jsonb_array_elements(COALESCE(blocked_ranges, '[]'::jsonb)) elem
		        WHERE elem->>'booking_id' <> $2
		    ), '[]'::jsonb),
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, tractorID, bookingID.String())
	if err != nil {
		r.log.Error("Failed to remove blocked range",
			zap.Error(err),
			zap.String("tractor_id", tractorID.String()),
			zap.String("booking_id", bookingID.String()),
		)
		return fmt.Errorf("remove blocked range for tractor %s: %w", tractorID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("tractor %s not found", tractorID.String())
	}

	return nil
}

func (r *tractorRepository) IncrementStats(ctx context.Context, tractorID uuid.UUID, earnings int64, hectares float64) error {
	query := `
		UPDATE tractors
		SET total_bookings = total_bookings + 1,
		    total_earnings = total_earnings + $2,
		    total_hectares = total_hectares + $3,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, tractorID, earnings, hectares)
	if err != nil {
		r.log.Error("Failed to increment tractor stats",
			zap.Error(err),
			zap.String("tractor_id", tractorID.String()),
		)
		return fmt.Errorf("increment stats for tractor %s: %w", tractorID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("tractor %s not found", tractorID.String())
	}

	return nil
}
