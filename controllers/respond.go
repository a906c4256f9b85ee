package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"venue-backend/middleware"
	"venue-backend/services"
	"venue-backend/utils"
)

// domainStatus maps DomainError codes to HTTP status. Unlisted codes are 409.
var domainStatus = map[string]int{
	services.ErrOrderNotFound.Code:      http.StatusNotFound,
	services.ErrNotFound.Code:           http.StatusNotFound,
	services.ErrSessionNotFound.Code:    http.StatusNotFound,
	services.ErrRoomInvalid.Code:        http.StatusUnprocessableEntity,
	services.ErrEmployeeInvalid.Code:    http.StatusUnprocessableEntity,
	services.ErrProductInvalid.Code:     http.StatusUnprocessableEntity,
	services.ErrCategoryInvalid.Code:    http.StatusUnprocessableEntity,
	services.ErrEmptyCart.Code:          http.StatusUnprocessableEntity,
	services.ErrInvalidCredentials.Code: http.StatusUnauthorized,
}

// respondError writes err as {"success":false,"error":{...}}. Domain errors
// keep their own message; anything else is logged and hidden behind a 500.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if errors.Is(err, services.ErrValidation) {
		utils.JSONError(c, http.StatusUnprocessableEntity, "validation", services.ValidationMessage(err))
		return
	}
	if de, ok := services.AsDomainError(err); ok {
		status, found := domainStatus[de.Code]
		if !found {
			status = http.StatusConflict
		}
		utils.JSONError(c, status, de.Code, err.Error())
		return
	}

	logger.Error("request failed",
		zap.Error(err),
		zap.String("path", c.Request.URL.Path),
		zap.String("request_id", middleware.GetRequestID(c)),
	)
	_ = c.Error(err)
	utils.JSONError(c, http.StatusInternalServerError, "internal", "internal server error")
}

func respondBadRequest(c *gin.Context, err error) {
	utils.JSONError(c, http.StatusBadRequest, "invalid_payload", err.Error())
}

// uintParam reads a positive numeric path parameter, writing a 400 when it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	raw := c.Param(name)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		utils.JSONError(c, http.StatusBadRequest, "invalid_"+name, "invalid "+name+": "+raw)
		return 0, false
	}
	return uint(n), true
}

func uintQuery(c *gin.Context, name string) (uint, error) {
	raw := c.Query(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, errors.New("invalid " + name + ": " + raw)
	}
	return uint(n), nil
}
