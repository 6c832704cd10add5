package handler

import (
	"strconv"

	apptax "github.com/erp/taxconnector/internal/application/tax"
	"github.com/erp/taxconnector/internal/domain/shared"
	"github.com/erp/taxconnector/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TaxDocumentHandler exposes the taxable document lifecycle over HTTP
type TaxDocumentHandler struct {
	BaseHandler
	service *apptax.DocumentService
}

// NewTaxDocumentHandler creates a new TaxDocumentHandler
func NewTaxDocumentHandler(service *apptax.DocumentService) *TaxDocumentHandler {
	return &TaxDocumentHandler{service: service}
}

// Create handles POST /api/v1/tax-documents
func (h *TaxDocumentHandler) Create(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	var req apptax.CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), companyID, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, doc)
}

// Get handles GET /api/v1/tax-documents/:id
func (h *TaxDocumentHandler) Get(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.service.GetDocument(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// List handles GET /api/v1/tax-documents
func (h *TaxDocumentHandler) List(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	req := dto.DefaultListRequest()
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	filter := shared.Filter{
		Page:     req.Page,
		PageSize: req.PageSize,
		OrderBy:  req.OrderBy,
		OrderDir: req.OrderDir,
		Filters: map[string]interface{}{
			"status": req.Status,
			"kind":   req.Kind,
		},
	}

	docs, total, err := h.service.ListDocuments(c.Request.Context(), companyID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, docs, total, req.Page, req.PageSize)
}

// AddLine handles POST /api/v1/tax-documents/:id/lines
func (h *TaxDocumentHandler) AddLine(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}

	var req apptax.AddLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.service.AddLine(c.Request.Context(), companyID, id, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// UpdateLine handles PATCH /api/v1/tax-documents/:id/lines/:line
func (h *TaxDocumentHandler) UpdateLine(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}

	lineNumber, err := strconv.Atoi(c.Param("line"))
	if err != nil {
		h.BadRequest(c, "invalid line number")
		return
	}

	var req apptax.UpdateLineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.service.UpdateLine(c.Request.Context(), companyID, id, lineNumber, &req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// ValidateAddress handles POST /api/v1/tax-documents/:id/validate-address
func (h *TaxDocumentHandler) ValidateAddress(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.service.ValidateShipTo(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Confirm handles POST /api/v1/tax-documents/:id/confirm
func (h *TaxDocumentHandler) Confirm(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.service.Confirm(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Post handles POST /api/v1/tax-documents/:id/post
func (h *TaxDocumentHandler) Post(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.service.Post(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Cancel handles POST /api/v1/tax-documents/:id/cancel
func (h *TaxDocumentHandler) Cancel(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}

	var req apptax.CancelDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	doc, err := h.service.Cancel(c.Request.Context(), companyID, id, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Refund handles POST /api/v1/tax-documents/:id/refund
func (h *TaxDocumentHandler) Refund(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	refund, err := h.service.CreateRefund(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// ComputeTax handles POST /api/v1/tax-documents/:id/compute-tax
func (h *TaxDocumentHandler) ComputeTax(c *gin.Context) {
	companyID, id, ok := h.scope(c)
	if !ok {
		return
	}
	doc, err := h.service.ComputeTax(c.Request.Context(), companyID, id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, doc)
}

// Ping handles POST /api/v1/tax-service/ping
func (h *TaxDocumentHandler) Ping(c *gin.Context) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return
	}
	result, err := h.service.Ping(c.Request.Context(), companyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

func (h *TaxDocumentHandler) scope(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	companyID, err := getCompanyID(c)
	if err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}

	var idReq dto.IDRequest
	if err := c.ShouldBindUri(&idReq); err != nil {
		h.BadRequest(c, err.Error())
		return uuid.Nil, uuid.Nil, false
	}
	id, err := uuid.Parse(idReq.ID)
	if err != nil {
		h.BadRequest(c, "invalid document ID")
		return uuid.Nil, uuid.Nil, false
	}
	return companyID, id, true
}
