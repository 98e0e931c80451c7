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

type PaymentRepository interface {
	// CreateExclusive inserts the payment only while the booking holds no
	// other active payment. Returns false when the slot is already taken.
	CreateExclusive(ctx context.Context, payment *entity.Payment) (bool, error)

	FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error)
	FindByReference(ctx context.Context, reference string) (*entity.Payment, error)

	// FindActiveByBookingID returns the payment holding the
	// one-active-payment-per-booking slot, or nil.
	FindActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error)

	// FindByProviderRef resolves a webhook correlation token captured at
	// initiate time.
	FindByProviderRef(ctx context.Context, providerRef string) (*entity.Payment, error)

	// MarkCompleted moves a pending/processing payment to completed. Returns
	// false when the payment already left the open states.
	MarkCompleted(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, data entity.ProviderData, change entity.StatusChange) (bool, error)

	// MarkFailed moves a pending/processing payment to failed.
	MarkFailed(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData, change entity.StatusChange) (bool, error)

	// MarkRefunded moves a completed payment to refunded, one way.
	MarkRefunded(ctx context.Context, paymentID uuid.UUID, refund entity.Refund, change entity.StatusChange) (bool, error)

	// FindStalePending returns pending payments created before the cutoff,
	// for the expiry sweep.
	FindStalePending(ctx context.Context, before time.Time) ([]*entity.Payment, error)
}

type paymentRepository struct {
	db  database.PgxIface
	log *zap.Logger
}

func NewPaymentRepository(db database.PgxIface, log *zap.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log.With(zap.String("repository", "payment")),
	}
}

const paymentColumns = `id, reference, booking_id, payer_id, recipient_id,
	amount, platform_fee, owner_amount, currency, method, status,
	provider_data, refund, status_history, paid_at, created_at, updated_at`

// CreateExclusive leans on the payments_one_active_per_booking partial unique
// index (booking_id where status in pending/processing/completed), so two
// concurrent initiations cannot both land a row.
func (r *paymentRepository) CreateExclusive(ctx context.Context, payment *entity.Payment) (bool, error) {
	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (booking_id) WHERE status IN ('pending', 'processing', 'completed') DO NOTHING
	`

	providerData, err := json.Marshal(payment.ProviderData)
	if err != nil {
		return false, fmt.Errorf("marshal provider data: %w", err)
	}
	history, err := json.Marshal(payment.StatusHistory)
	if err != nil {
		return false, fmt.Errorf("marshal status history: %w", err)
	}
	var refund []byte
	if payment.Refund != nil {
		refund, err = json.Marshal(payment.Refund)
		if err != nil {
			return false, fmt.Errorf("marshal refund: %w", err)
		}
	}

	result, err := r.db.Exec(ctx, query,
		payment.ID,
		payment.Reference,
		payment.BookingID,
		payment.PayerID,
		payment.RecipientID,
		payment.Amount,
		payment.PlatformFee,
		payment.OwnerAmount,
		payment.Currency,
		payment.Method,
		payment.Status,
		providerData,
		refund,
		history,
		payment.PaidAt,
		payment.CreatedAt,
		payment.UpdatedAt,
	)

	if err != nil {
		r.log.Error("Failed to create payment",
			zap.Error(err),
			zap.String("reference", payment.Reference),
			zap.String("booking_id", payment.BookingID.String()),
		)
		return false, fmt.Errorf("create payment %s: %w", payment.Reference, err)
	}

	return result.RowsAffected() > 0, nil
}

func scanPayment(row pgx.Row) (*entity.Payment, error) {
	var payment entity.Payment
	var providerData, refund, history []byte

	err := row.Scan(
		&payment.ID,
		&payment.Reference,
		&payment.BookingID,
		&payment.PayerID,
		&payment.RecipientID,
		&payment.Amount,
		&payment.PlatformFee,
		&payment.OwnerAmount,
		&payment.Currency,
		&payment.Method,
		&payment.Status,
		&providerData,
		&refund,
		&history,
		&payment.PaidAt,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(providerData) > 0 {
		if err := json.Unmarshal(providerData, &payment.ProviderData); err != nil {
			return nil, fmt.Errorf("unmarshal provider data: %w", err)
		}
	}
	if len(refund) > 0 {
		payment.Refund = &entity.Refund{}
		if err := json.Unmarshal(refund, payment.Refund); err != nil {
			return nil, fmt.Errorf("unmarshal refund: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &payment.StatusHistory); err != nil {
			return nil, fmt.Errorf("unmarshal status history: %w", err)
		}
	}

	return &payment, nil
}

func (r *paymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by ID",
			zap.Error(err),
			zap.String("payment_id", id.String()),
		)
		return nil, fmt.Errorf("find payment by ID %s: %w", id.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByReference(ctx context.Context, reference string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE reference = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, reference))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by reference",
			zap.Error(err),
			zap.String("reference", reference),
		)
		return nil, fmt.Errorf("find payment by reference %s: %w", reference, err)
	}

	return payment, nil
}

func (r *paymentRepository) FindActiveByBookingID(ctx context.Context, bookingID uuid.UUID) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE booking_id = $1 AND status IN ('pending', 'processing', 'completed')
		ORDER BY created_at DESC
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, bookingID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find active payment by booking ID",
			zap.Error(err),
			zap.String("booking_id", bookingID.String()),
		)
		return nil, fmt.Errorf("find active payment for booking %s: %w", bookingID.String(), err)
	}

	return payment, nil
}

func (r *paymentRepository) FindByProviderRef(ctx context.Context, providerRef string) (*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE provider_data->>'provider_ref' = $1 OR provider_data->>'transaction_id' = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, providerRef))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		r.log.Error("Failed to find payment by provider ref",
			zap.Error(err),
			zap.String("provider_ref", providerRef),
		)
		return nil, fmt.Errorf("find payment by provider ref %s: %w", providerRef, err)
	}

	return payment, nil
}

func (r *paymentRepository) MarkCompleted(ctx context.Context, paymentID uuid.UUID, paidAt time.Time, data entity.ProviderData, change entity.StatusChange) (bool, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("marshal provider data: %w", err)
	}
	changeJSON, err := json.Marshal([]entity.StatusChange{change})
	if err != nil {
		return false, fmt.Errorf("marshal status change: %w", err)
	}

	// Status precondition in the WHERE clause makes duplicate webhook
	// deliveries no-ops at the database level.
	query := `
		UPDATE payments
		SET status = 'completed', paid_at = $2, provider_data = $3::jsonb,
		    status_history = COALESCE(status_history, '[]'::jsonb) || $4::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Exec(ctx, query, paymentID, paidAt, dataJSON, changeJSON)
	if err != nil {
		r.log.Error("Failed to mark payment completed",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return false, fmt.Errorf("mark payment %s completed: %w", paymentID.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *paymentRepository) MarkFailed(ctx context.Context, paymentID uuid.UUID, data entity.ProviderData, change entity.StatusChange) (bool, error) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return false, fmt.Errorf("marshal provider data: %w", err)
	}
	changeJSON, err := json.Marshal([]entity.StatusChange{change})
	if err != nil {
		return false, fmt.Errorf("marshal status change: %w", err)
	}

	query := `
		UPDATE payments
		SET status = 'failed', provider_data = $2::jsonb,
		    status_history = COALESCE(status_history, '[]'::jsonb) || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'processing')
	`

	result, err := r.db.Exec(ctx, query, paymentID, dataJSON, changeJSON)
	if err != nil {
		r.log.Error("Failed to mark payment failed",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return false, fmt.Errorf("mark payment %s failed: %w", paymentID.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *paymentRepository) MarkRefunded(ctx context.Context, paymentID uuid.UUID, refund entity.Refund, change entity.StatusChange) (bool, error) {
	refundJSON, err := json.Marshal(refund)
	if err != nil {
		return false, fmt.Errorf("marshal refund: %w", err)
	}
	changeJSON, err := json.Marshal([]entity.StatusChange{change})
	if err != nil {
		return false, fmt.Errorf("marshal status change: %w", err)
	}

	query := `
		UPDATE payments
		SET status = 'refunded', refund = $2::jsonb,
		    status_history = COALESCE(status_history, '[]'::jsonb) || $3::jsonb,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'completed'
	`

	result, err := r.db.Exec(ctx, query, paymentID, refundJSON, changeJSON)
	if err != nil {
		r.log.Error("Failed to mark payment refunded",
			zap.Error(err),
			zap.String("payment_id", paymentID.String()),
		)
		return false, fmt.Errorf("mark payment %s refunded: %w", paymentID.String(), err)
	}

	return result.RowsAffected() > 0, nil
}

func (r *paymentRepository) FindStalePending(ctx context.Context, before time.Time) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + ` FROM payments
		WHERE status = 'pending' AND created_at < $1
		ORDER BY created_at
	`

	rows, err := r.db.Query(ctx, query, before)
	if err != nil {
		r.log.Error("Failed to find stale pending payments", zap.Error(err))
		return nil, fmt.Errorf("find stale pending payments: %w", err)
	}
	defer rows.Close()

	var payments []*entity.Payment
	for rows.Next() {
		payment, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment row: %w", err)
		}
		payments = append(payments, payment)
	}

	return payments, rows.Err()
}
