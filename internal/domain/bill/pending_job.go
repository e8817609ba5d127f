package bill

import (
	"time"

	"github.com/google/uuid"
)

// PendingJob asks the delivery worker to notify every recipient of a master bill
type PendingJob struct {
	MasterBillID uuid.UUID `json:"master_bill_id"`
	Name         string    `json:"name"`
	CreatedAt    time.Time `json:"created_at"`
}

// PendingJobList is the per-tenant queue document
type PendingJobList struct {
	TenantID  uuid.UUID
	Jobs      []PendingJob
	UpdatedAt time.Time
}

// Merge appends job unless one for the same master bill is already queued
func (l *PendingJobList) Merge(job PendingJob) bool {
	for _, j := range l.Jobs {
		if j.MasterBillID == job.MasterBillID {
			return false
		}
	}
	l.Jobs = append(l.Jobs, job)
	l.UpdatedAt = time.Now().UTC()
	return true
}

// Remove drops the job for masterBillID
func (l *PendingJobList) Remove(masterBillID uuid.UUID) bool {
	for i, j := range l.Jobs {
		if j.MasterBillID == masterBillID {
			l.Jobs = append(l.Jobs[:i], l.Jobs[i+1:]...)
			l.UpdatedAt = time.Now().UTC()
			return true
		}
	}
	return false
}
