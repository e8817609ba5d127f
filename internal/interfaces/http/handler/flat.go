package handler

import (
	"github.com/gin-gonic/gin"

	memberapp "github.com/societyledger/backend/internal/application/member"
	"github.com/societyledger/backend/internal/domain/member"
	"github.com/societyledger/backend/internal/interfaces/http/dto"
)

// FlatHandler seeds and reads the recipient directory
type FlatHandler struct {
	BaseHandler
	service *memberapp.Service
}

// NewFlatHandler creates a new FlatHandler
func NewFlatHandler(service *memberapp.Service) *FlatHandler {
	return &FlatHandler{service: service}
}

// Register handles POST /flats. A new flat answers 201, an update 200.
func (h *FlatHandler) Register(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var req memberapp.RegisterFlatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	flat, created, err := h.service.RegisterFlat(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if created {
		h.Created(c, flat)
		return
	}
	h.Success(c, flat)
}

// Get handles GET /flats/:wing/:floor/:flat
func (h *FlatHandler) Get(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	key := member.NewFlatKey(c.Param("wing"), c.Param("floor"), c.Param("flat"))

	flat, err := h.service.GetFlat(c.Request.Context(), tenantID, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, flat)
}

type listFlatsQuery struct {
	dto.ListRequest
	Wing  string `form:"wing"`
	Floor string `form:"floor"`
}

// List handles GET /flats?wing=&floor=&page=&page_size=
func (h *FlatHandler) List(c *gin.Context) {
	tenantID, ok := h.tenantID(c)
	if !ok {
		return
	}
	var q listFlatsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}
	if q.Floor != "" && q.Wing == "" {
		h.ValidationError(c, []dto.ValidationDetail{{Field: "wing", Message: "Required when floor is given"}})
		return
	}

	page, err := h.service.ListFlats(c.Request.Context(), tenantID, q.Wing, q.Floor, q.ToFilter())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
