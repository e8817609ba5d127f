// Package notification is the delivery worker's side of the pending-job
// queue: it lists what is waiting and acknowledges what was sent.
package notification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/societyledger/backend/internal/domain/bill"
	"github.com/societyledger/backend/internal/infrastructure/logger"
)

// PendingJobResponse is one queued delivery
type PendingJobResponse struct {
	MasterBillID uuid.UUID `json:"master_bill_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingJobsResponse is a tenant's queue
type PendingJobsResponse struct {
	Jobs      []PendingJobResponse `json:"jobs"`
	UpdatedAt *time.Time           `json:"updated_at,omitempty"`
}

// Service reads and acknowledges pending notification jobs
type Service struct {
	jobs bill.PendingJobRepository
}

// NewService creates a new notification Service
func NewService(jobs bill.PendingJobRepository) *Service {
	return &Service{jobs: jobs}
}

// ListPendingJobs returns the tenant's queued jobs, oldest first
func (s *Service) ListPendingJobs(ctx context.Context, tenantID uuid.UUID) (*PendingJobsResponse, error) {
	list, err := s.jobs.List(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	resp := &PendingJobsResponse{Jobs: make([]PendingJobResponse, len(list.Jobs))}
	for i, j := range list.Jobs {
		resp.Jobs[i] = PendingJobResponse(j)
	}
	if !list.UpdatedAt.IsZero() {
		resp.UpdatedAt = &list.UpdatedAt
	}
	return resp, nil
}

// AckPendingJob removes a delivered job. Acknowledging a job that is no
// longer queued is not an error.
func (s *Service) AckPendingJob(ctx context.Context, tenantID, masterBillID uuid.UUID) error {
	if err := s.jobs.Ack(ctx, tenantID, masterBillID); err != nil {
		return err
	}
	logger.L(ctx).Info("pending job acknowledged", zap.String("master_bill_id", masterBillID.String()))
	return nil
}
