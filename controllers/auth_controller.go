package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"venue-backend/services"
	"venue-backend/utils"
)

type loginPayload struct {
	ExternalID string `json:"externalId"`
	Pin        string `json:"pin"`
}

// AuthController checks employee PINs. It issues no token; the chat layer
// keeps its own notion of who is talking.
type AuthController struct {
	Catalog *services.CatalogService
	Logger  *zap.Logger
}

func NewAuthController(catalog *services.CatalogService, logger *zap.Logger) *AuthController {
	return &AuthController{Catalog: catalog, Logger: logger}
}

// POST /api/auth/login
func (ctrl *AuthController) Login(c *gin.Context) {
	var payload loginPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		respondBadRequest(c, err)
		return
	}
	externalID := strings.TrimSpace(payload.ExternalID)
	if externalID == "" || payload.Pin == "" {
		utils.JSONError(c, http.StatusBadRequest, "invalid_payload", "externalId and pin required")
		return
	}

	emp, err := ctrl.Catalog.Authenticate(c.Request.Context(), externalID, payload.Pin)
	if err != nil {
		ctrl.Logger.Info("login rejected", zap.String("external_id", externalID))
		respondError(c, ctrl.Logger, err)
		return
	}

	utils.JSONSuccess(c, http.StatusOK, gin.H{
		"employee": gin.H{
			"id":       emp.ID,
			"fullName": emp.FullName,
			"role":     emp.Role,
		},
	})
}
