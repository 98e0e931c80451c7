package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type BookingRepository interface {
	Create(ctx context.Context, booking *entity.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error)
	FindByReference(ctx context.Context, reference string) (*entity.Booking, error)
	FindByClientID(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByClientID(ctx context.Context, clientID uuid.UUID) (int64, error)
	FindByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entity.Booking, error)
	CountByOwnerID(ctx context.Context, ownerID uuid.UUID) (int64, error)

	// TransitionStatus performs the conditional status update: the new status
	// is written only if the row still carries expected. Returns false when
	// another request moved the booking first.
	TransitionStatus(ctx context.Context, bookingID uuid.UUID, expected, next entity.BookingStatus, change entity.StatusChange, cancellation *entity.Cancellation) (bool, error)

	// UpdatePaymentMirror syncs the embedded payment block from the Payment
	// entity.
	UpdatePaymentMirror(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod, status entity.PaymentStatus, paymentRef *string, paidAt *time.Time) error

	CountByStatus(ctx context.Context) (map[entity.BookingStatus]int64, error)
	SumCompletedAmounts(ctx context.Context) (total, commission, earnings int64, err error)
}

type bookingRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewBookingRepository(db database.PgxIface, log *zap.Logger) BookingRepository {
	return &bookingRepository{
		db:  db,
		log: log.With(zap.String("repository", "booking")),
	}
}

const bookingColumns = `id, reference, tractor_id, client_id, owner_id, client_phone, owner_phone,
	start_date, end_date, days_count, area_hectares, area_square_meters,
	price_per_hectare, total_price, commission, owner_earnings,
	payment_method, payment_status, payment_ref, paid_at,
	status, status_history, cancellation, created_at, updated_at`

func (r *bookingRepository) Create(ctx context.Context, booking *entity.Booking) error {
	query := `
		INSERT INTO bookings (` + bookingColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
		        $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)
	`

	history, err := json.Marshal(booking.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	var cancellation []byte
	if booking.Cancellation != nil {
		cancellation, err = json.Marshal(booking.Cancellation)
		if err != nil {
			return fmt.Errorf("marshal cancellation: %w", err)
		}
	}

	_, err = r.db.Exec(ctx, query,
		booking.ID,
		booking.Reference,
		booking.TractorID,
		booking.ClientID,
		booking.OwnerID,
		booking.ClientPhone,
		booking.OwnerPhone,
		booking.StartDate,
		booking.EndDate,
		booking.DaysCount,
		booking.AreaHectares,
		booking.AreaSquareMeters,
		booking.PricePerHectare,
		booking.TotalPrice,
		booking.Commission,
		booking.OwnerEarnings,
		booking.PaymentMethod,
		booking.PaymentStatus,
		booking.PaymentRef,
		booking.PaidAt,
		booking.Status,
		history,
		cancellation,
		booking.CreatedAt,
		booking.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create booking",
			zap.Error(err),
			zap.String("reference", booking.Reference),
			zap.String("client_id", booking.ClientID.String()),
		)
		return fmt.Errorf("create booking %s: %w", booking.Reference, err)
	}

	return nil
}

func scanBooking(row pgx.Row) (*entity.Booking, error) {
	var booking entity.Booking
	var history, cancellation []byte

	err := row.Scan(
		&booking.ID,
		&booking.Reference,
		&booking.TractorID,
		&booking.ClientID,
		&booking.OwnerID,
		&booking.ClientPhone,
		&booking.OwnerPhone,
		&booking.StartDate,
		&booking.EndDate,
		&booking.DaysCount,
		&booking.AreaHectares,
		&booking.AreaSquareMeters,
		&booking.PricePerHectare,
		&booking.TotalPrice,
		&booking.Commission,
		&booking.OwnerEarnings,
		&booking.PaymentMethod,
		&booking.PaymentStatus,
		&booking.PaymentRef,
		&booking.PaidAt,
		&booking.Status,
		&history,
		&cancellation,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(history) > 0 {
		if err := json.Unmarshal(history, &booking.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}
	if len(cancellation) > 0 {
		booking.Cancellation = &entity.Cancellation{}
		if err := json.Unmarshal(cancellation, booking.Cancellation); err != nil {
			return nil, fmt.Errorf("unmarshal cancellation: %w", err)
		}
	}

	return &booking, nil
}

func (r *bookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by ID",
			zap.Error(err),
			zap.String("booking_id", id.String()),
		)
		return nil, fmt.Errorf("find booking by ID %s: %w", id.String(), err)
	}

	return booking, nil
}

func (r *bookingRepository) FindByReference(ctx context.Context, reference string) (*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE reference = $1`

	booking, err := scanBooking(r.db.QueryRow(ctx, query, reference))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find booking by reference",
			zap.Error(err),
			zap.String("reference", reference),
		)
		return nil, fmt.Errorf("find booking by reference %s: %w", reference, err)
	}

	return booking, nil
}

func (r *bookingRepository) findPage(ctx context.Context, column string, id uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
		WHERE ` + column + ` = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, id, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []*entity.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking row: %w", err)
		}
		bookings = append(bookings, booking)
	}

	return bookings, rows.Err()
}

func (r *bookingRepository) FindByClientID(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	bookings, err := r.findPage(ctx, "client_id", clientID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by client ID",
			zap.Error(err),
			zap.String("client_id", clientID.String()),
		)
		return nil, fmt.Errorf("find bookings by client ID %s: %w", clientID.String(), err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountByClientID(ctx context.Context, clientID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE client_id = $1`, clientID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bookings by client ID %s: %w", clientID.String(), err)
	}
	return count, nil
}

func (r *bookingRepository) FindByOwnerID(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]*entity.Booking, error) {
	bookings, err := r.findPage(ctx, "owner_id", ownerID, limit, offset)
	if err != nil {
		r.log.Error("Failed to find bookings by owner ID",
			zap.Error(err),
			zap.String("owner_id", ownerID.String()),
		)
		return nil, fmt.Errorf("find bookings by owner ID %s: %w", ownerID.String(), err)
	}
	return bookings, nil
}

func (r *bookingRepository) CountByOwnerID(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE owner_id = $1`, ownerID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count bookings by owner ID %s: %w", ownerID.String(), err)
	}
	return count, nil
}

func (r *bookingRepository) TransitionStatus(ctx context.Context, bookingID uuid.UUID, expected, next entity.BookingStatus, change entity.StatusChange, cancellation *entity.Cancellation) (bool, error) {
	changeJSON, err := json.Marshal([]entity.StatusChange{change})
	if err != nil {
		return false, fmt.Errorf("marshal status change: %w", err)
	}

	var cancellationJSON []byte
	if cancellation != nil {
		cancellationJSON, err = json.Marshal(cancellation)
		if err != nil {
			return false, fmt.Errorf("marshal cancellation: %w", err)
		}
	}

	// Status precondition baked into the WHERE clause closes the race between
	// two concurrent transitions: only one write can match the old status.
	query := `
		UPDATE bookings
		SET status = $3,
		    status_history = COALESCE(status_history, '[]'::jsonb) || $4::jsonb,
		    cancellation = COALESCE($5::jsonb, cancellation),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
	`

	result, err := r.db.Exec(ctx, query, bookingID, expected, next, changeJSON, cancellationJSON)
	if err != nil {
		r.log.Error("Failed to transition booking status",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
			zap.String("from", string(expected)),
			zap.String("to", string(next)),
		)
		return false, fmt.Errorf("transition booking %s to %s: %w", bookingID.String(), string(next), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *bookingRepository) UpdatePaymentMirror(ctx context.Context, bookingID uuid.UUID, method entity.PaymentMethod, status entity.PaymentStatus, paymentRef *string, paidAt *time.Time) error {
	query := `
		UPDATE bookings
		SET payment_method = $2, payment_status = $3, payment_ref = $4, paid_at = $5, updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.Exec(ctx, query, bookingID, method, status, paymentRef, paidAt)
	if err != nil {
		r.log.Error("Failed to update booking payment mirror",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return fmt.Errorf("update payment mirror for booking %s: %w", bookingID.String(), err)
	}

	if result.RowsAffected() == 0 {
		return fmt.Errorf("booking %s not found", bookingID.String())
	}

	return nil
}

func (r *bookingRepository) CountByStatus(ctx context.Context) (map[entity.BookingStatus]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT status, COUNT(*) FROM bookings GROUP BY status`)
	if err != nil {
		r.log.Error("Failed to count bookings by status", zap.Error(err))
		return nil, fmt.Errorf("count bookings by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[entity.BookingStatus]int64)
	for rows.Next() {
		var status entity.BookingStatus
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan status count row: %w", err)
		}
		counts[status] = count
	}

	return counts, rows.Err()
}

func (r *bookingRepository) SumCompletedAmounts(ctx context.Context) (int64, int64, int64, error) {
	query := `
		SELECT COALESCE(SUM(total_price), 0), COALESCE(SUM(commission), 0), COALESCE(SUM(owner_earnings), 0)
		FROM bookings
		WHERE status = 'completed'
	`

	var total, commission, earnings int64
	err := r.db.QueryRow(ctx, query).Scan(&total, &commission, &earnings)
	if err != nil {
		r.log.Error("Failed to sum completed booking amounts", zap.Error(err))
		return 0, 0, 0, fmt.Errorf("sum completed booking amounts: %w", err)
	}

	return total, commission, earnings, nil
}
