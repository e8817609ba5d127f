package handler

import (
	"github.com/gin-gonic/gin"

	bulkbillapp "github.com/societyledger/backend/internal/application/bulkbill"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/interfaces/http/dto"
)

// IdempotencyKeyHeader may carry the idempotency key instead of the body
const IdempotencyKeyHeader = "Idempotency-Key"

// BulkBillHandler handles bulk bill generation and lookups
type BulkBillHandler struct {
	BaseHandler
	service *bulkbillapp.Service
}

// NewBulkBillHandler creates a new BulkBillHandler
func NewBulkBillHandler(service *bulkbillapp.Service) *BulkBillHandler {
	return &BulkBillHandler{service: service}
}

// Generate handles POST /bulk-bills.
// Per-recipient failures are reported inside the result with a 200; only a
// rejected request (validation, duplicate key, storage outage) is an error.
func (h *BulkBillHandler) Generate(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	var req bulkbillapp.GenerateBulkBillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader(IdempotencyKeyHeader)
	}

	result, err := h.service.GenerateBulkBill(c.Request.Context(), tenantID, req.ToSpec())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// Get handles GET /bulk-bills/:id
func (h *BulkBillHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}

	master, err := h.service.GetMasterBill(c.Request.Context(), tenantID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, master)
}

// ListRecipientBills handles GET /bulk-bills/:id/recipient-bills
func (h *BulkBillHandler) ListRecipientBills(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.service.ListRecipientBills(c.Request.Context(), tenantID, id, req.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

type itemsLedgerQuery struct {
	Classification string `form:"classification" binding:"required,oneof=owner renter closed"`
}

// ItemsLedger handles GET /bulk-bills/:id/items-ledger?classification=
func (h *BulkBillHandler) ItemsLedger(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	id, ok := h.uuidParam(c, "id")
	if !ok {
		return
	}
	var q itemsLedgerQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	postings, err := h.service.GetBillItemsLedger(c.Request.Context(), tenantID, id, member.Classification(q.Classification))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, postings)
}
