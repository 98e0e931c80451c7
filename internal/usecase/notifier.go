package usecase

import (
	"context"
	"time"

	"tractor-rental/internal/data/entity"
	"tractor-rental/internal/data/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Notifier is the outbound notification sink. Delivery is fire-and-forget:
// a failure here must never roll back the booking or payment mutation that
// produced the event.
type Notifier interface {
	Notify(userID uuid.UUID, ntype entity.NotificationType, title, message string, refs entity.NotificationRefs)
}

type asyncNotifier struct {
	repo repository.NotificationRepository
	log  *zap.Logger
	ch   chan *entity.Notification
}

// NewAsyncNotifier starts a single worker draining a buffered queue into the
// notification store. When the buffer is full the event is dropped and logged;
// callers are never blocked.
func NewAsyncNotifier(repo repository.NotificationRepository, log *zap.Logger) Notifier {
	n := &asyncNotifier{
		repo: repo,
		log:  log.With(zap.String("service", "notifier")),
		ch:   make(chan *entity.Notification, 256),
	}
	go n.run()
	return n
}

func (n *asyncNotifier) Notify(userID uuid.UUID, ntype entity.NotificationType, title, message string, refs entity.NotificationRefs) {
	notification := &entity.Notification{
		BaseSimple: entity.BaseSimple{
			ID:        uuid.New(),
			CreatedAt: time.Now(),
		},
		UserID:  userID,
		Type:    ntype,
		Title:   title,
		Message: message,
		Refs:    refs,
	}

	select {
	case n.ch <- notification:
	default:
		n.log.Warn("Notification queue full, dropping event",
			zap.String("user_id", userID.String()),
			zap.String("type", string(ntype)),
		)
	}
}

func (n *asyncNotifier) run() {
	for notification := range n.ch {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := n.repo.Create(ctx, notification); err != nil {
			n.log.Error("Failed to persist notification",
				zap.Error(err),
				zap.String("user_id", notification.UserID.String()),
				zap.String("type", string(notification.Type)),
			)
		}
		cancel()
	}
}
