package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"venue-backend/models"
	"venue-backend/services"
	"venue-backend/utils"
)

// ---------------------------
// Payload / DTOs
// ---------------------------

type CreateOrderRequest struct {
	RoomID      uint   `json:"roomId" binding:"required"`
	EmployeeID  uint   `json:"employeeId" binding:"required"`
	ClientName  string `json:"clientName" binding:"required"`
	ClientPhone string `json:"clientPhone" binding:"required"`
	GuestCount  int    `json:"guestCount" binding:"required"`
	Date        string `json:"date" binding:"required"`
	Slot        string `json:"slot" binding:"required"`
	Notes       string `json:"notes"`
}

type AddItemRequest struct {
	ProductID  uint            `json:"productId" binding:"required"`
	Quantity   decimal.Decimal `json:"quantity"`
	EmployeeID uint            `json:"employeeId" binding:"required"`
}

type ChangeStatusRequest struct {
	Status  string `json:"status" binding:"required"`
	ActorID uint   `json:"actorId"`
}

type CancelRequest struct {
	ActorID uint `json:"actorId"`
}

type PaymentRequest struct {
	Method     string `json:"method" binding:"required"`
	EmployeeID uint   `json:"employeeId" binding:"required"`
	Notes      string `json:"notes"`
}

// ---------------------------
// Controller
// ---------------------------

type OrderController struct {
	Orders   *services.OrderService
	Payments *services.PaymentService
	Logger   *zap.Logger
}

func NewOrderController(orders *services.OrderService, payments *services.PaymentService, logger *zap.Logger) *OrderController {
	return &OrderController{Orders: orders, Payments: payments, Logger: logger}
}

// orderView adds the statuses an actor may move the order to next.
func orderView(o *models.Order) gin.H {
	return gin.H{
		"order":        o,
		"nextStatuses": services.NextStatuses(o.Status),
		"cancellable":  services.IsCancellable(o.Status),
	}
}

// GET /api/orders?date=&slot=&status=&roomId=&employeeId=&open=true
// GET /api/orders?number=ORD-20261018-001 returns that single order.
func (ctrl *OrderController) ListOrders(c *gin.Context) {
	if number := c.Query("number"); number != "" {
		ctrl.getOrderByNumber(c, number)
		return
	}

	var f services.OrderFilter
	if raw := c.Query("date"); raw != "" {
		d, err := utils.ParseDate(raw, ctrl.Orders.Ledger.Location)
		if err != nil {
			utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
			return
		}
		f.Date = &d
	}
	if raw := c.Query("slot"); raw != "" {
		slot, err := models.ParseTimeSlot(raw)
		if err != nil {
			utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
			return
		}
		f.Slot = slot
	}
	if raw := c.Query("status"); raw != "" {
		st, err := models.ParseOrderStatus(raw)
		if err != nil {
			utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
			return
		}
		f.Status = st
	}
	var err error
	if f.RoomID, err = uintQuery(c, "roomId"); err != nil {
		respondBadRequest(c, err)
		return
	}
	if f.EmployeeID, err = uintQuery(c, "employeeId"); err != nil {
		respondBadRequest(c, err)
		return
	}
	f.OpenOnly = c.Query("open") == "true"

	list, err := ctrl.Orders.ListOrders(c.Request.Context(), f)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, list)
}

// POST /api/orders
func (ctrl *OrderController) CreateOrder(c *gin.Context) {
	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	date, err := utils.ParseDate(req.Date, ctrl.Orders.Ledger.Location)
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}
	slot, err := models.ParseTimeSlot(req.Slot)
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}

	order, err := ctrl.Orders.CreateOrder(c.Request.Context(), services.CreateOrderInput{
		RoomID:      req.RoomID,
		EmployeeID:  req.EmployeeID,
		ClientName:  req.ClientName,
		ClientPhone: req.ClientPhone,
		GuestCount:  req.GuestCount,
		Date:        date,
		Slot:        slot,
		Notes:       req.Notes,
	})
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, orderView(order))
}

// GET /api/orders/:id
func (ctrl *OrderController) GetOrder(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	order, err := ctrl.Orders.GetOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, orderView(order))
}

func (ctrl *OrderController) getOrderByNumber(c *gin.Context, number string) {
	order, err := ctrl.Orders.GetOrderByNumber(c.Request.Context(), number)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, orderView(order))
}

// GET /api/orders/:id/history
func (ctrl *OrderController) GetOrderHistory(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	events, err := ctrl.Orders.OrderHistory(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, events)
}

// POST /api/orders/:id/items
func (ctrl *OrderController) AddItem(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	item, err := ctrl.Orders.AddItem(c.Request.Context(), services.AddItemInput{
		OrderID:    id,
		ProductID:  req.ProductID,
		Quantity:   req.Quantity,
		EmployeeID: req.EmployeeID,
	})
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, item)
}

// POST /api/orders/:id/status
func (ctrl *OrderController) ChangeStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req ChangeStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	to, err := models.ParseOrderStatus(req.Status)
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}
	order, err := ctrl.Orders.ChangeStatus(c.Request.Context(), id, to, req.ActorID)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, orderView(order))
}

// POST /api/orders/:id/cancel
func (ctrl *OrderController) CancelOrder(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req CancelRequest
	// body is optional
	_ = c.ShouldBindJSON(&req)
	order, err := ctrl.Orders.CancelOrder(c.Request.Context(), id, req.ActorID)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, orderView(order))
}

// POST /api/orders/:id/recalculate
func (ctrl *OrderController) RecalculateTotal(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	total, err := ctrl.Orders.RecalculateTotal(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"orderId": id, "total": total.StringFixed(2)})
}

// POST /api/orders/:id/payment
func (ctrl *OrderController) ProcessPayment(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	method, err := models.ParsePaymentMethod(req.Method)
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return
	}
	payment, err := ctrl.Payments.ProcessPayment(c.Request.Context(), services.PaymentInput{
		OrderID:    id,
		Method:     method,
		EmployeeID: req.EmployeeID,
		Notes:      req.Notes,
	})
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, payment)
}

// GET /api/orders/:id/payment
func (ctrl *OrderController) GetPayment(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	payment, err := ctrl.Payments.GetPaymentByOrder(c.Request.Context(), id)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, payment)
}
