package handler

import (
	"github.com/gin-gonic/gin"

	notificationapp "github.com/societyledger/backend/internal/application/notification"
)

// NotificationHandler exposes the pending communication jobs to the
// notification worker
type NotificationHandler struct {
	BaseHandler
	service *notificationapp.Service
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(service *notificationapp.Service) *NotificationHandler {
	return &NotificationHandler{service: service}
}

// ListPending handles GET /notifications/pending
func (h *NotificationHandler) ListPending(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	jobs, err := h.service.ListPendingJobs(c.Request.Context(), tenantID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, jobs)
}

// Ack handles DELETE /notifications/pending/:masterBillId once the worker
// has sent the bills of that job
func (h *NotificationHandler) Ack(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	masterBillID, ok := h.uuidParam(c, "masterBillId")
	if !ok {
		return
	}
	if err := h.service.AckPendingJob(c.Request.Context(), tenantID, masterBillID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
