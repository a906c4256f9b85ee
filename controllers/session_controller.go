package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"venue-backend/models"
	"venue-backend/services"
	"venue-backend/utils"
)

// StepInput carries free text exactly as the actor typed it (date, slot,
// guest count). Parsing and re-prompting happen in the session service.
type StepInput struct {
	Value string `json:"value"`
}

type StartSessionRequest struct {
	EmployeeID uint `json:"employeeId" binding:"required"`
}

type RoomChoice struct {
	RoomID uint `json:"roomId" binding:"required"`
}

type ClientInput struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

type CategoryChoice struct {
	CategoryID uint `json:"categoryId" binding:"required"`
}

type ProductChoice struct {
	ProductID uint `json:"productId" binding:"required"`
}

type LineInput struct {
	ProductID uint   `json:"productId"`
	Quantity  string `json:"quantity"`
}

// SessionController exposes the booking conversation one step per route.
// :actor is the chat-side id of whoever is talking.
type SessionController struct {
	Sessions *services.SessionService
	Logger   *zap.Logger
}

func NewSessionController(sessions *services.SessionService, logger *zap.Logger) *SessionController {
	return &SessionController{Sessions: sessions, Logger: logger}
}

func draftView(d *models.SessionDraft) gin.H {
	return gin.H{
		"draft":     d,
		"cartTotal": d.CartTotal().StringFixed(2),
	}
}

// respondDraft answers with the draft, or with err when the step failed.
func (ctrl *SessionController) respondDraft(c *gin.Context, d *models.SessionDraft, err error) {
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, draftView(d))
}

// POST /api/sessions/:actor/start
func (ctrl *SessionController) Start(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.Start(c.Request.Context(), c.Param("actor"), req.EmployeeID)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, draftView(d))
}

// GET /api/sessions/:actor
func (ctrl *SessionController) Get(c *gin.Context) {
	d, err := ctrl.Sessions.Get(c.Request.Context(), c.Param("actor"))
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/date
func (ctrl *SessionController) StepDate(c *gin.Context) {
	var in StepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.StepDate(c.Request.Context(), c.Param("actor"), in.Value)
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/slot
func (ctrl *SessionController) StepSlot(c *gin.Context) {
	var in StepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	rooms, err := ctrl.Sessions.StepSlot(c.Request.Context(), c.Param("actor"), in.Value)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"rooms": rooms})
}

// POST /api/sessions/:actor/room
func (ctrl *SessionController) StepRoom(c *gin.Context) {
	var in RoomChoice
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.StepRoom(c.Request.Context(), c.Param("actor"), in.RoomID)
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/client
func (ctrl *SessionController) StepClient(c *gin.Context) {
	var in ClientInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.StepClient(c.Request.Context(), c.Param("actor"), in.Name, in.Phone)
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/guests
func (ctrl *SessionController) StepGuestCount(c *gin.Context) {
	var in StepInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.StepGuestCount(c.Request.Context(), c.Param("actor"), in.Value)
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/category
func (ctrl *SessionController) SelectCategory(c *gin.Context) {
	var in CategoryChoice
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	products, err := ctrl.Sessions.SelectCategory(c.Request.Context(), c.Param("actor"), in.CategoryID)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"products": products})
}

// POST /api/sessions/:actor/product
func (ctrl *SessionController) SelectProduct(c *gin.Context) {
	var in ProductChoice
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	p, err := ctrl.Sessions.SelectProduct(c.Request.Context(), c.Param("actor"), in.ProductID)
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	utils.JSONSuccess(c, http.StatusOK, gin.H{"product": p})
}

// POST /api/sessions/:actor/lines
func (ctrl *SessionController) AddLine(c *gin.Context) {
	var in LineInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respondBadRequest(c, err)
		return
	}
	d, err := ctrl.Sessions.StepAddLine(c.Request.Context(), c.Param("actor"), in.ProductID, in.Quantity)
	ctrl.respondDraft(c, d, err)
}

// DELETE /api/sessions/:actor/lines/last
func (ctrl *SessionController) RemoveLastLine(c *gin.Context) {
	d, err := ctrl.Sessions.RemoveLastLine(c.Request.Context(), c.Param("actor"))
	ctrl.respondDraft(c, d, err)
}

// POST /api/sessions/:actor/commit
//
// A commit where some lines were rejected still created the order; it answers
// 206 with the rejected lines so the operator can finish the order by hand.
func (ctrl *SessionController) Commit(c *gin.Context) {
	res, err := ctrl.Sessions.Commit(c.Request.Context(), c.Param("actor"))
	if err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	if res.Partial() {
		c.JSON(http.StatusPartialContent, gin.H{
			"success": true,
			"status":  "warning",
			"data":    res,
			"error": gin.H{
				"code":    "partial_commit",
				"message": "order created, some items were rejected",
			},
		})
		return
	}
	utils.JSONSuccess(c, http.StatusCreated, res)
}

// DELETE /api/sessions/:actor
func (ctrl *SessionController) Cancel(c *gin.Context) {
	if err := ctrl.Sessions.Cancel(c.Request.Context(), c.Param("actor")); err != nil {
		respondError(c, ctrl.Logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
