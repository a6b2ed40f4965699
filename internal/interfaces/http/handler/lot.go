package handler

import (
	"context"
	"strconv"

	lotapp "github.com/dms/backend/internal/application/lot"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// LotHandler handles lot batch and allocation API endpoints
type LotHandler struct {
	BaseHandler
	lotService *lotapp.LotService
}

// NewLotHandler creates a new LotHandler
func NewLotHandler(lotService *lotapp.LotService) *LotHandler {
	return &LotHandler{
		lotService: lotService,
	}
}

// RegisterRoutes registers lot routes on the API group
func (h *LotHandler) RegisterRoutes(rg *gin.RouterGroup) {
	lots := rg.Group("/lot-batches")
	{
		lots.POST("", h.Create)
		lots.GET("", h.Search)
		lots.GET("/by-product", h.ListByProduct)
		lots.GET("/:id", h.Get)
		lots.PUT("/:id", h.Update)
		lots.DELETE("/:id", h.Delete)
		lots.POST("/:id/reserve", h.Reserve)
		lots.POST("/:id/release", h.Release)
		lots.POST("/:id/consume", h.Consume)
		lots.POST("/:id/adjust", h.Adjust)
		lots.POST("/:id/transition", h.Transition)
	}

	allocations := rg.Group("/order-items/:orderItemId/lot-allocations")
	{
		allocations.POST("", h.Allocate)
		allocations.GET("", h.GetAllocations)
		allocations.GET("/summary", h.GetAllocationSummary)
		allocations.DELETE("", h.ReleaseAllocations)
		allocations.POST("/consume", h.ConsumeAllocations)
	}

	rg.GET("/reports/expiring-lots", h.ExpiringLotsReport)
}

// identify resolves the tenant and acting user from the request
func (h *LotHandler) identify(c *gin.Context) (tenantID, actorID uuid.UUID, ok bool) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.BadRequest(c, "Invalid or missing tenant ID")
		return uuid.Nil, uuid.Nil, false
	}
	actorID, err = getActorID(c)
	if err != nil {
		h.Unauthorized(c, "Invalid or missing user ID")
		return uuid.Nil, uuid.Nil, false
	}
	return tenantID, actorID, true
}

func (h *LotHandler) lotID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid lot batch ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (h *LotHandler) orderItemID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("orderItemId"))
	if err != nil {
		h.BadRequest(c, "Invalid order item ID format")
		return uuid.Nil, false
	}
	return id, true
}

// Create registers a new lot batch
func (h *LotHandler) Create(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}

	var req lotapp.CreateLotBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.lotService.CreateLotBatch(c.Request.Context(), tenantID, actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// Get returns a single lot batch
func (h *LotHandler) Get(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	resp, err := h.lotService.GetLotBatch(c.Request.Context(), tenantID, actorID, lotID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Search lists lot batches with pagination and filtering
func (h *LotHandler) Search(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}

	var filter lotapp.LotListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	page, err := h.lotService.SearchLotBatches(c.Request.Context(), tenantID, actorID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}

// ListByProduct returns a product's lots in FIFO order
func (h *LotHandler) ListByProduct(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}

	productID, err := uuid.Parse(c.Query("product_id"))
	if err != nil {
		h.BadRequest(c, "Invalid product ID format")
		return
	}
	agencyID, err := uuid.Parse(c.Query("agency_id"))
	if err != nil {
		h.BadRequest(c, "Invalid agency ID format")
		return
	}

	lots, err := h.lotService.ListByProduct(c.Request.Context(), tenantID, actorID, productID, agencyID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, lots)
}

// Update edits a lot batch's descriptive fields
func (h *LotHandler) Update(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req lotapp.UpdateLotBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.lotService.UpdateLotBatch(c.Request.Context(), tenantID, actorID, lotID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Delete removes a lot batch. Pass force=true to discard remaining stock.
func (h *LotHandler) Delete(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	force := c.Query("force") == "true"

	if err := h.lotService.DeleteLotBatch(c.Request.Context(), tenantID, actorID, lotID, force); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// Reserve places a hold on lot quantity
func (h *LotHandler) Reserve(c *gin.Context) {
	h.quantityOperation(c, h.lotService.ReserveQuantity)
}

// Release returns previously reserved quantity to the available pool
func (h *LotHandler) Release(c *gin.Context) {
	h.quantityOperation(c, h.lotService.ReleaseQuantity)
}

// Consume permanently deducts quantity from a lot
func (h *LotHandler) Consume(c *gin.Context) {
	h.quantityOperation(c, h.lotService.ConsumeQuantity)
}

func (h *LotHandler) quantityOperation(
	c *gin.Context,
	op func(ctx context.Context, tenantID, actorID, lotID uuid.UUID, req lotapp.QuantityRequest) (*lotapp.LotBatchResponse, error),
) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req lotapp.QuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := op(c.Request.Context(), tenantID, actorID, lotID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Adjust corrects a lot's remaining quantity with an audit reason
func (h *LotHandler) Adjust(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req lotapp.AdjustQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.lotService.AdjustQuantity(c.Request.Context(), tenantID, actorID, lotID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Transition moves a lot to a new lifecycle status
func (h *LotHandler) Transition(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	lotID, ok := h.lotID(c)
	if !ok {
		return
	}

	var req lotapp.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	resp, err := h.lotService.TransitionStatus(c.Request.Context(), tenantID, actorID, lotID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, resp)
}

// Allocate reserves lot quantity for an order item using FIFO selection
func (h *LotHandler) Allocate(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	orderItemID, ok := h.orderItemID(c)
	if !ok {
		return
	}

	var req lotapp.AllocateOrderItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.OrderItemID = orderItemID

	resp, err := h.lotService.AllocateOrderItem(c.Request.Context(), tenantID, actorID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, resp)
}

// GetAllocations returns an order item's lot allocations
func (h *LotHandler) GetAllocations(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	orderItemID, ok := h.orderItemID(c)
	if !ok {
		return
	}

	allocations, err := h.lotService.GetOrderItemAllocations(c.Request.Context(), tenantID, actorID, orderItemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, allocations)
}

// GetAllocationSummary returns aggregate totals for an order item's allocations
func (h *LotHandler) GetAllocationSummary(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	orderItemID, ok := h.orderItemID(c)
	if !ok {
		return
	}

	summary, err := h.lotService.GetAllocationSummary(c.Request.Context(), tenantID, actorID, orderItemID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, summary)
}

// ReleaseAllocations cancels an order item's allocations and frees the reservations
func (h *LotHandler) ReleaseAllocations(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	orderItemID, ok := h.orderItemID(c)
	if !ok {
		return
	}

	if err := h.lotService.ReleaseOrderItemAllocations(c.Request.Context(), tenantID, actorID, orderItemID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ConsumeAllocations fulfils an order item's allocations, deducting the lots
func (h *LotHandler) ConsumeAllocations(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}
	orderItemID, ok := h.orderItemID(c)
	if !ok {
		return
	}

	if err := h.lotService.ConsumeOrderItemAllocations(c.Request.Context(), tenantID, actorID, orderItemID); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// ExpiringLotsReport lists lots expiring within the window, soonest first
func (h *LotHandler) ExpiringLotsReport(c *gin.Context) {
	tenantID, actorID, ok := h.identify(c)
	if !ok {
		return
	}

	agencyID, err := uuid.Parse(c.Query("agency_id"))
	if err != nil {
		h.BadRequest(c, "Invalid agency ID format")
		return
	}

	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		windowDays, err = strconv.Atoi(raw)
		if err != nil || windowDays < 0 {
			h.BadRequest(c, "Invalid window_days value")
			return
		}
	}

	report, err := h.lotService.ExpiringLotsReport(c.Request.Context(), tenantID, actorID, agencyID, windowDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, report)
}
