package controllers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"venue-backend/models"
	"venue-backend/services"
	"venue-backend/utils"
)

type CreateRoomRequest struct {
	Name       string            `json:"name" binding:"required"`
	RoomNumber *string           `json:"roomNumber"`
	Capacity   int               `json:"capacity" binding:"required"`
	Status     models.RoomStatus `json:"status"`
}

type RoomStatusRequest struct {
	Status models.RoomStatus `json:"status" binding:"required"`
}

type RoomController struct {
	Catalog *services.CatalogService
	Ledger  *services.LedgerService
	Logger  *zap.Logger
}

func NewRoomController(catalog *services.CatalogService, ledger *services.LedgerService, logger *zap.Logger) *RoomController {
	return &RoomController{Catalog: catalog, Ledger: ledger, Logger: logger}
}

// ----------------------------------------------------
// GET /api/rooms
// ----------------------------------------------------

func (ctrl *RoomController) GetRooms(c *gin.Context) {
	rooms, err := ctrl.Catalog.ListRooms(c.Request.Context())
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, rooms)
}

// ----------------------------------------------------
// POST /api/rooms
// ----------------------------------------------------

func (ctrl *RoomController) CreateRoom(c *gin.Context) {
	var req CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	room := models.Room{
		Name:       req.Name,
		RoomNumber: req.RoomNumber,
		Capacity:   req.Capacity,
		Status:     req.Status,
	}
	if err := ctrl.Catalog.CreateRoom(c.Request.Context(), &room); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, room)
}

// ----------------------------------------------------
// PATCH /api/rooms/:id/status
// ----------------------------------------------------

func (ctrl *RoomController) UpdateRoomStatus(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	var req RoomStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	room, err := ctrl.Catalog.SetRoomStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, room)
}

// dateSlotQuery reads ?date=&slot=, answering 422 itself when either is bad.
func (ctrl *RoomController) dateSlotQuery(c *gin.Context) (dateSlot, bool) {
	date, err := utils.ParseDate(c.Query("date"), ctrl.Ledger.Location)
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return dateSlot{}, false
	}
	slot, err := models.ParseTimeSlot(c.Query("slot"))
	if err != nil {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", err.Error())
		return dateSlot{}, false
	}
	return dateSlot{date: date, slot: slot}, true
}

// ----------------------------------------------------
// GET /api/rooms/available?date=&slot=
// ----------------------------------------------------

func (ctrl *RoomController) GetAvailableRooms(c *gin.Context) {
	q, ok := ctrl.dateSlotQuery(c)
	if !ok {
		return
	}
	rooms, err := ctrl.Ledger.ListAvailableRooms(c.Request.Context(), q.date, q.slot)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"date":  utils.DateKey(q.date),
		"slot":  q.slot,
		"rooms": rooms,
	})
}

// ----------------------------------------------------
// GET /api/rooms/:id/availability?date=&slot=
// ----------------------------------------------------

func (ctrl *RoomController) CheckAvailability(c *gin.Context) {
	id, ok := uintParam(c, "id")
	if !ok {
		return
	}
	q, ok := ctrl.dateSlotQuery(c)
	if !ok {
		return
	}
	available, err := ctrl.Ledger.CheckAvailability(c.Request.Context(), id, q.date, q.slot)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"roomId":    id,
		"date":      utils.DateKey(q.date),
		"slot":      q.slot,
		"available": available,
	})
}

type dateSlot struct {
	date time.Time
	slot models.TimeSlot
}
