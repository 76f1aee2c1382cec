package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/service"
)

// HandleListOrders handles GET /api/stores/:shop/orders?status=&limit=&offset=
func HandleListOrders(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := middleware.GetStore(c)
		filter := repository.OrderFilter{
			Status: domain.CustomStatus(c.Query("status")),
			Limit:  queryInt(c, "limit", 50),
			Offset: queryInt(c, "offset", 0),
		}
		orders, err := svc.Orders.List(c.Request.Context(), store.Shop, filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"orders": toOrders(orders),
			"limit":  filter.Limit,
			"offset": filter.Offset,
		})
	}
}

// HandleGetOrder handles GET /api/stores/:shop/orders/:orderId
func HandleGetOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		detail, err := svc.Orders.Get(c.Request.Context(), middleware.GetStore(c).Shop, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrderDetail(detail))
	}
}

// HandleUpdateOrderStatus handles POST /api/stores/:shop/orders/:orderId/status
func HandleUpdateOrderStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		var req service.StatusRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := svc.Orders.UpdateStatus(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), id, req.Status, req.Remarks)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrder(order))
	}
}

// HandleBulkOrderStatus handles POST /api/stores/:shop/bulk/orders/status.
// Results are per order; a failed order does not fail the request.
func HandleBulkOrderStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.BulkStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		results, err := svc.Orders.BulkUpdateStatus(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "summary": summarize(results)})
	}
}

// HandleConfirmOrder handles POST /api/stores/:shop/orders/:orderId/confirm
func HandleConfirmOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		order, err := svc.Orders.Confirm(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrder(order))
	}
}

// HandleCancelOrder handles POST /api/stores/:shop/orders/:orderId/cancel
func HandleCancelOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		var req service.CancelOrderRequest
		if c.Request.ContentLength != 0 && !bindJSON(c, &req) {
			return
		}
		order, err := svc.Orders.Cancel(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrder(order))
	}
}

// HandleSetPickupReady handles POST /api/stores/:shop/orders/:orderId/pickup-ready
func HandleSetPickupReady(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		var req service.PickupReadyRequest
		if !bindJSON(c, &req) {
			return
		}
		order, err := svc.Orders.SetPickupReady(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), id, req.Ready)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrder(order))
	}
}

// HandleShippingSlips handles POST /api/stores/:shop/bulk/shipping-slips and returns a PDF
func HandleShippingSlips(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.OrderIDsRequest
		if !bindJSON(c, &req) {
			return
		}
		pdf, err := svc.Orders.ShippingSlips(c.Request.Context(), middleware.GetStore(c), req.OrderIDs)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="shipping-slips.pdf"`)
		c.Data(http.StatusOK, "application/pdf", pdf)
	}
}

// HandleAssignAWBs handles POST /api/stores/:shop/shipping/awb
func HandleAssignAWBs(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.AssignAWBRequest
		if !bindJSON(c, &req) {
			return
		}
		results, err := svc.Shipping.AssignAWBs(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "summary": summarize(results)})
	}
}

// HandleTrackOrder handles GET /api/stores/:shop/orders/:orderId/tracking
func HandleTrackOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		tracking, order, err := svc.Shipping.Track(c.Request.Context(), middleware.GetStore(c), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toTracking(tracking, order))
	}
}

// HandleCancelShipment handles DELETE /api/stores/:shop/orders/:orderId/shipment
func HandleCancelShipment(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "orderId")
		if !ok {
			return
		}
		order, err := svc.Shipping.CancelShipment(c.Request.Context(), middleware.GetStore(c), middleware.GetUID(c), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrder(order))
	}
}

func summarize(results []service.OrderResult) string {
	ok := 0
	for _, r := range results {
		if r.OK {
			ok++
		}
	}
	return fmt.Sprintf("%d of %d succeeded", ok, len(results))
}
