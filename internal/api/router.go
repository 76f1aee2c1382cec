package api

import (
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/handlers"
	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/config"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, repos *repository.Repositories, svc *service.Services, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	useJSONFieldNames()

	router := gin.New()

	// Middleware
	router.Use(customRecovery(logger))
	router.Use(loggingMiddleware(logger))
	router.Use(corsMiddleware(cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")

	// Shopify webhooks authenticate with the HMAC header, not a user token
	api.POST("/webhooks/orders", handlers.HandleOrderWebhook(svc, logger))

	internal := api.Group("/internal")
	internal.Use(middleware.ServiceKeyAuth(svc.Tenancy, logger))
	{
		internal.POST("/tracking/sync", handlers.HandleTrackingSync(svc, logger))
	}

	proxy := api.Group("/proxy")
	proxy.Use(middleware.ProxySignature(cfg.Shopify.APISecret, repos.Store, logger))
	{
		proxy.POST("/checkout/sessions", handlers.HandleCreateSession(svc, logger))
		proxy.GET("/checkout/sessions/:sessionId", handlers.HandleGetSession(svc, logger))
		proxy.POST("/checkout/sessions/:sessionId/customer", handlers.HandleIdentify(svc, logger))
		proxy.GET("/checkout/sessions/:sessionId/addresses", handlers.HandleListAddresses(svc, logger))
		proxy.POST("/checkout/sessions/:sessionId/addresses", handlers.HandleAddAddress(svc, logger))
		proxy.POST("/checkout/sessions/:sessionId/order", handlers.HandlePlaceOrder(svc, logger))
		proxy.POST("/returns/lookup", handlers.HandleReturnLookup(svc, logger))
		proxy.POST("/returns", handlers.HandleCreateReturn(svc, logger))
	}

	user := api.Group("")
	user.Use(middleware.UserAuth(cfg.Auth, logger))
	user.POST("/businesses", handlers.HandleCreateBusiness(svc, logger))

	business := user.Group("/businesses/:businessId")
	business.Use(middleware.RequireBusiness(svc.Tenancy))
	business.Use(middleware.Idempotency(logger))
	{
		business.GET("", handlers.HandleGetBusiness())
		business.GET("/members", handlers.HandleListMembers(svc, logger))
		business.POST("/members", handlers.HandleAddMember(svc, logger))
		business.DELETE("/members/:uid", handlers.HandleRemoveMember(svc, logger))
		business.GET("/stores", handlers.HandleListBusinessStores(svc, logger))
		business.POST("/stores", handlers.HandleLinkStore(svc, logger))

		business.GET("/products", handlers.HandleListProducts(svc, logger))
		business.POST("/products", handlers.HandleCreateProduct(svc, logger))
		business.GET("/products/:productId", handlers.HandleGetProduct(svc, logger))
		business.PUT("/products/:productId", handlers.HandleUpdateProduct(svc, logger))
		business.DELETE("/products/:productId", handlers.HandleDeleteProduct(svc, logger))
		business.POST("/products/:productId/variants", handlers.HandleMapVariant(svc, logger))
		business.DELETE("/products/:productId/variants/:shop/:variantId", handlers.HandleUnmapVariant(svc, logger))
		business.GET("/product-uploads/template", handlers.HandleProductTemplate(svc, logger))
		business.POST("/product-uploads", handlers.HandleProductUpload(svc, logger))

		business.GET("/suppliers", handlers.HandleListSuppliers(svc, logger))
		business.POST("/suppliers", handlers.HandleCreateSupplier(svc, logger))
		business.GET("/suppliers/:supplierId", handlers.HandleGetSupplier(svc, logger))
		business.GET("/warehouses", handlers.HandleListWarehouses(svc, logger))
		business.POST("/warehouses", handlers.HandleCreateWarehouse(svc, logger))
		business.GET("/warehouses/:warehouseId", handlers.HandleGetWarehouse(svc, logger))

		business.GET("/purchase-orders", handlers.HandleListPurchaseOrders(svc, logger))
		business.POST("/purchase-orders", handlers.HandleCreatePurchaseOrder(svc, logger))
		business.GET("/purchase-orders/:poId", handlers.HandleGetPurchaseOrder(svc, logger))
		business.PUT("/purchase-orders/:poId", handlers.HandleUpdatePurchaseOrder(svc, logger))
		business.POST("/purchase-orders/:poId/status", handlers.HandleUpdatePOStatus(svc, logger))
		business.GET("/purchase-orders/:poId/pdf", handlers.HandlePurchaseOrderPDF(svc, logger))
		business.GET("/purchase-orders/:poId/grns", handlers.HandleListGRNs(svc, logger))
		business.POST("/grns", handlers.HandleCreateGRN(svc, logger))
		business.GET("/grns/:grnId", handlers.HandleGetGRN(svc, logger))

		business.GET("/upcs", handlers.HandleListUPCs(svc, logger))
		business.POST("/upcs/put-away", handlers.HandlePutAway(svc, logger))
		business.GET("/inventory/summary", handlers.HandleInventorySummary(svc, logger))
	}

	store := user.Group("/stores/:shop")
	store.Use(middleware.RequireStore(svc.Tenancy))
	{
		store.GET("", handlers.HandleGetStore())
		store.PATCH("", handlers.HandleUpdateStoreSettings(svc, logger))
		store.PUT("/integrations/courier", handlers.HandleSetCourierCredentials(svc, logger))
		store.PUT("/integrations/interakt", handlers.HandleSetInteraktKey(svc, logger))

		store.GET("/orders", handlers.HandleListOrders(svc, logger))
		store.GET("/orders/:orderId", handlers.HandleGetOrder(svc, logger))
		store.POST("/orders/:orderId/status", handlers.HandleUpdateOrderStatus(svc, logger))
		store.POST("/orders/:orderId/confirm", handlers.HandleConfirmOrder(svc, logger))
		store.POST("/orders/:orderId/cancel", handlers.HandleCancelOrder(svc, logger))
		store.POST("/orders/:orderId/pickup-ready", handlers.HandleSetPickupReady(svc, logger))
		store.GET("/orders/:orderId/tracking", handlers.HandleTrackOrder(svc, logger))
		store.DELETE("/orders/:orderId/shipment", handlers.HandleCancelShipment(svc, logger))
		store.POST("/bulk/orders/status", handlers.HandleBulkOrderStatus(svc, logger))
		store.POST("/bulk/shipping-slips", handlers.HandleShippingSlips(svc, logger))
		store.POST("/shipping/awb", handlers.HandleAssignAWBs(svc, logger))

		store.GET("/whatsapp/templates", handlers.HandleListTemplates(svc, logger))
		store.POST("/whatsapp/templates", handlers.HandleCreateTemplate(svc, logger))
		store.GET("/whatsapp/templates/:templateId", handlers.HandleGetTemplate(svc, logger))
		store.PUT("/whatsapp/templates/:templateId", handlers.HandleUpdateTemplate(svc, logger))
		store.DELETE("/whatsapp/templates/:templateId", handlers.HandleDeleteTemplate(svc, logger))
		store.POST("/whatsapp/send", handlers.HandleSendTemplate(svc, logger))
	}

	return router
}

// customRecovery is a custom recovery middleware that logs panics
func customRecovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Error("Panic recovered",
			zap.Any("error", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("method", c.Request.Method),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, handlers.ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		logger.Info("HTTP request", fields...)
	}
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsCfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.IdempotencyKeyHeader},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	return cors.New(corsCfg)
}

// useJSONFieldNames makes validation errors report JSON field names
func useJSONFieldNames() {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
}
