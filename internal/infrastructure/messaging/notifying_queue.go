package messaging

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// NotifyingQueue merges the job into the durable list and then publishes a
// wake-up. Only the merge can fail the hand-off.
type NotifyingQueue struct {
	store     bill.NotificationQueue
	publisher JobPublisher
}

// NewNotifyingQueue creates a new NotifyingQueue
func NewNotifyingQueue(store bill.NotificationQueue, publisher JobPublisher) *NotifyingQueue {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	return &NotifyingQueue{store: store, publisher: publisher}
}

// Enqueue implements bill.NotificationQueue
func (q *NotifyingQueue) Enqueue(ctx context.Context, tenantID uuid.UUID, job bill.PendingJob) error {
	if err := q.store.Enqueue(ctx, tenantID, job); err != nil {
		return err
	}
	if err := q.publisher.Publish(ctx, tenantID, job); err != nil {
		logger.L(ctx).Warn("Notification wake-up not published; worker will pick the job up on its next poll",
			zap.String("master_bill_id", job.MasterBillID.String()),
			zap.Error(err),
		)
	}
	return nil
}

var _ bill.NotificationQueue = (*NotifyingQueue)(nil)
