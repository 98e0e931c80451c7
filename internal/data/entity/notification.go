package entity

import (
	"github.com/google/uuid"
)

type NotificationType string

const (
	NotificationBookingRequested NotificationType = "booking_requested"
	NotificationBookingAccepted  NotificationType = "booking_accepted"
	NotificationBookingRejected  NotificationType = "booking_rejected"
	NotificationBookingCancelled NotificationType = "booking_cancelled"
	NotificationBookingStarted   NotificationType = "booking_started"
	NotificationBookingCompleted NotificationType = "booking_completed"
	NotificationPaymentReceived  NotificationType = "payment_received"
	NotificationPaymentFailed    NotificationType = "payment_failed"
	NotificationPaymentRefunded  NotificationType = "payment_refunded"
	NotificationReviewRequested  NotificationType = "review_requested"
)

// NotificationRefs links a notification back to the records it is about.
type NotificationRefs struct {
	BookingID *uuid.UUID `json:"booking_id,omitempty"`
	PaymentID *uuid.UUID `json:"payment_id,omitempty"`
}

type Notification struct {
	BaseSimple
	UserID  uuid.UUID        `db:"user_id"`
	Type    NotificationType `db:"type"`
	Title   string           `db:"title"`
	Message string           `db:"message"`
	Refs    NotificationRefs `db:"refs"`
	Read    bool             `db:"read"`
}
