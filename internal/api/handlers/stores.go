package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/service"
)

// HandleGetStore handles GET /api/stores/:shop. Credentials are masked.
func HandleGetStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, service.View(middleware.GetStore(c)))
	}
}

// HandleUpdateStoreSettings handles PATCH /api/stores/:shop
func HandleUpdateStoreSettings(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.StoreSettingsRequest
		if !bindJSON(c, &req) {
			return
		}
		view, err := svc.Stores.UpdateSettings(c.Request.Context(), middleware.GetStore(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleSetCourierCredentials handles PUT /api/stores/:shop/integrations/courier
func HandleSetCourierCredentials(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CourierCredentialsRequest
		if !bindJSON(c, &req) {
			return
		}
		view, err := svc.Stores.SetCourierCredentials(c.Request.Context(), middleware.GetStore(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}

// HandleSetInteraktKey handles PUT /api/stores/:shop/integrations/interakt
func HandleSetInteraktKey(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.InteraktRequest
		if !bindJSON(c, &req) {
			return
		}
		view, err := svc.Stores.SetInteraktKey(c.Request.Context(), middleware.GetStore(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, view)
	}
}
