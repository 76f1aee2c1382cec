package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/service"
)

// Storefront endpoints behind the Shopify App Proxy. The store comes from the
// verified shop parameter, never from the body.

// HandleCreateSession handles POST /api/proxy/checkout/sessions
func HandleCreateSession(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateSessionRequest
		if !bindJSON(c, &req) {
			return
		}
		session, err := svc.Storefront.CreateSession(c.Request.Context(), middleware.GetProxyStore(c).Shop, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toSession(session))
	}
}

// HandleGetSession handles GET /api/proxy/checkout/sessions/:sessionId
func HandleGetSession(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "sessionId")
		if !ok {
			return
		}
		session, err := svc.Storefront.GetSession(c.Request.Context(), middleware.GetProxyStore(c).Shop, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toSession(session))
	}
}

// HandleIdentify handles POST /api/proxy/checkout/sessions/:sessionId/customer
func HandleIdentify(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "sessionId")
		if !ok {
			return
		}
		var req service.IdentifyRequest
		if !bindJSON(c, &req) {
			return
		}
		customer, err := svc.Storefront.Identify(c.Request.Context(), middleware.GetProxyStore(c).Shop, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toCustomer(customer))
	}
}

// HandleListAddresses handles GET /api/proxy/checkout/sessions/:sessionId/addresses
func HandleListAddresses(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "sessionId")
		if !ok {
			return
		}
		addresses, err := svc.Storefront.ListAddresses(c.Request.Context(), middleware.GetProxyStore(c).Shop, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"addresses": addresses})
	}
}

// HandleAddAddress handles POST /api/proxy/checkout/sessions/:sessionId/addresses
func HandleAddAddress(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "sessionId")
		if !ok {
			return
		}
		var req service.AddressRequest
		if !bindJSON(c, &req) {
			return
		}
		address, err := svc.Storefront.AddAddress(c.Request.Context(), middleware.GetProxyStore(c).Shop, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, address)
	}
}

// HandlePlaceOrder handles POST /api/proxy/checkout/sessions/:sessionId/order
func HandlePlaceOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "sessionId")
		if !ok {
			return
		}
		var req service.PlaceOrderRequest
		if !bindJSON(c, &req) {
			return
		}
		session, err := svc.Storefront.PlaceOrder(c.Request.Context(), middleware.GetProxyStore(c), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toSession(session))
	}
}

// HandleReturnLookup handles POST /api/proxy/returns/lookup
func HandleReturnLookup(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ReturnLookupRequest
		if !bindJSON(c, &req) {
			return
		}
		eligibility, err := svc.Storefront.LookupReturn(c.Request.Context(), middleware.GetProxyStore(c).Shop, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toEligibility(eligibility))
	}
}

// HandleCreateReturn handles POST /api/proxy/returns
func HandleCreateReturn(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateReturnRequest
		if !bindJSON(c, &req) {
			return
		}
		ret, err := svc.Storefront.CreateReturn(c.Request.Context(), middleware.GetProxyStore(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toReturn(ret))
	}
}
