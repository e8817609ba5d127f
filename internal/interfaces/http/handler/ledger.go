package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	ledgerapp "github.com/societyledger/backend/internal/application/ledger"
	"github.com/societyledger/backend/internal/domain/ledger"
)

// LedgerHandler handles ledger postings and balance queries
type LedgerHandler struct {
	BaseHandler
	service *ledgerapp.Service
}

// NewLedgerHandler creates a new LedgerHandler
func NewLedgerHandler(service *ledgerapp.Service) *LedgerHandler {
	return &LedgerHandler{service: service}
}

// PostingRequest is the body of POST /ledgers/postings
type PostingRequest struct {
	LedgerGroup   string          `json:"ledger_group" binding:"required,max=120"`
	LedgerAccount string          `json:"ledger_account" binding:"required,max=120"`
	Amount        decimal.Decimal `json:"amount" binding:"gte=0"`
	Direction     string          `json:"direction" binding:"required,oneof=add subtract"`
	Date          string          `json:"date" binding:"required,datetime=2006-01-02"`
}

type accountQuery struct {
	Group   string `form:"group" binding:"required"`
	Account string `form:"account" binding:"required"`
}

type dailyQuery struct {
	accountQuery
	From string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To   string `form:"to" binding:"omitempty,datetime=2006-01-02"`
}

// Post handles POST /ledgers/postings
func (h *LedgerHandler) Post(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req PostingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	date, _ := time.Parse(ledger.DayLayout, req.Date)

	account, err := h.service.UpdateLedger(c.Request.Context(), ledgerapp.UpdateLedgerRequest{
		TenantID:      tenantID,
		LedgerGroup:   req.LedgerGroup,
		LedgerAccount: req.LedgerAccount,
		Amount:        req.Amount,
		Direction:     ledger.Direction(req.Direction),
		Date:          date,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// GetAccount handles GET /ledgers/account?group=&account=
func (h *LedgerHandler) GetAccount(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q accountQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	account, err := h.service.GetAccount(c.Request.Context(), tenantID, q.Group, q.Account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, account)
}

// ListAccounts handles GET /ledgers/accounts?group=
func (h *LedgerHandler) ListAccounts(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(c.Request.Context(), tenantID, c.Query("group"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, accounts)
}

// ListDailyDeltas handles GET /ledgers/daily?group=&account=&from=&to=
func (h *LedgerHandler) ListDailyDeltas(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q dailyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	var from, to time.Time
	if q.From != "" {
		from, _ = time.Parse(ledger.DayLayout, q.From)
	}
	if q.To != "" {
		to, _ = time.Parse(ledger.DayLayout, q.To)
	}

	deltas, err := h.service.ListDailyDeltas(c.Request.Context(), tenantID, q.Group, q.Account, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, deltas)
}

// Reconcile handles GET /ledgers/reconcile?group=&account=
func (h *LedgerHandler) Reconcile(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q accountQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	report, err := h.service.Reconcile(c.Request.Context(), tenantID, q.Group, q.Account)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, report)
}
