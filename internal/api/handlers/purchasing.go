package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/service"
)

// HandleListSuppliers handles GET /api/businesses/:businessId/suppliers
func HandleListSuppliers(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		suppliers, err := svc.Purchasing.ListSuppliers(c.Request.Context(), middleware.GetBusiness(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]SupplierResponse, 0, len(suppliers))
		for _, s := range suppliers {
			out = append(out, toSupplier(s))
		}
		c.JSON(http.StatusOK, gin.H{"suppliers": out})
	}
}

// HandleCreateSupplier handles POST /api/businesses/:businessId/suppliers
func HandleCreateSupplier(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SupplierRequest
		if !bindJSON(c, &req) {
			return
		}
		supplier, err := svc.Purchasing.CreateSupplier(c.Request.Context(), middleware.GetBusiness(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toSupplier(supplier))
	}
}

// HandleGetSupplier handles GET /api/businesses/:businessId/suppliers/:supplierId
func HandleGetSupplier(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "supplierId")
		if !ok {
			return
		}
		supplier, err := svc.Purchasing.GetSupplier(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toSupplier(supplier))
	}
}

// HandleListWarehouses handles GET /api/businesses/:businessId/warehouses
func HandleListWarehouses(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		warehouses, err := svc.Purchasing.ListWarehouses(c.Request.Context(), middleware.GetBusiness(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]WarehouseResponse, 0, len(warehouses))
		for _, w := range warehouses {
			out = append(out, toWarehouse(w))
		}
		c.JSON(http.StatusOK, gin.H{"warehouses": out})
	}
}

// HandleCreateWarehouse handles POST /api/businesses/:businessId/warehouses
func HandleCreateWarehouse(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.WarehouseRequest
		if !bindJSON(c, &req) {
			return
		}
		warehouse, err := svc.Purchasing.CreateWarehouse(c.Request.Context(), middleware.GetBusiness(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toWarehouse(warehouse))
	}
}

// HandleGetWarehouse handles GET /api/businesses/:businessId/warehouses/:warehouseId
func HandleGetWarehouse(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "warehouseId")
		if !ok {
			return
		}
		warehouse, err := svc.Purchasing.GetWarehouse(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toWarehouse(warehouse))
	}
}

// HandleListPurchaseOrders handles GET /api/businesses/:businessId/purchase-orders?status=&format=xlsx
func HandleListPurchaseOrders(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		businessID := middleware.GetBusiness(c).ID
		status := domain.POStatus(c.Query("status"))

		if c.Query("format") == "xlsx" {
			data, err := svc.Purchasing.ExportPurchaseOrders(c.Request.Context(), businessID, status)
			if err != nil {
				respondError(c, logger, err)
				return
			}
			c.Header("Content-Disposition", `attachment; filename="purchase-orders.xlsx"`)
			c.Data(http.StatusOK, xlsxContentType, data)
			return
		}

		pos, err := svc.Purchasing.ListPurchaseOrders(c.Request.Context(), businessID, status)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]PurchaseOrderResponse, 0, len(pos))
		for _, po := range pos {
			out = append(out, toPurchaseOrder(po))
		}
		c.JSON(http.StatusOK, gin.H{"purchaseOrders": out})
	}
}

// HandleCreatePurchaseOrder handles POST /api/businesses/:businessId/purchase-orders.
// A replayed Idempotency-Key answers 200 with the original purchase order.
func HandleCreatePurchaseOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreatePORequest
		if !bindJSON(c, &req) {
			return
		}
		po, replayed, err := svc.Purchasing.CreatePurchaseOrder(c.Request.Context(), middleware.GetBusiness(c).ID, middleware.GetUID(c), req, middleware.GetIdempotency(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
		}
		c.JSON(status, toPurchaseOrder(po))
	}
}

// HandleGetPurchaseOrder handles GET /api/businesses/:businessId/purchase-orders/:poId
func HandleGetPurchaseOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "poId")
		if !ok {
			return
		}
		po, err := svc.Purchasing.GetPurchaseOrder(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toPurchaseOrder(po))
	}
}

// HandleUpdatePurchaseOrder handles PUT /api/businesses/:businessId/purchase-orders/:poId (draft only)
func HandleUpdatePurchaseOrder(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "poId")
		if !ok {
			return
		}
		var req service.UpdatePORequest
		if !bindJSON(c, &req) {
			return
		}
		po, err := svc.Purchasing.UpdatePurchaseOrder(c.Request.Context(), middleware.GetBusiness(c).ID, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toPurchaseOrder(po))
	}
}

// HandleUpdatePOStatus handles POST /api/businesses/:businessId/purchase-orders/:poId/status
func HandleUpdatePOStatus(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "poId")
		if !ok {
			return
		}
		var req service.POStatusRequest
		if !bindJSON(c, &req) {
			return
		}
		po, err := svc.Purchasing.UpdatePOStatus(c.Request.Context(), middleware.GetBusiness(c).ID, id, middleware.GetUID(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toPurchaseOrder(po))
	}
}

// HandlePurchaseOrderPDF handles GET /api/businesses/:businessId/purchase-orders/:poId/pdf
func HandlePurchaseOrderPDF(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "poId")
		if !ok {
			return
		}
		po, data, err := svc.Purchasing.PurchaseOrderPDF(c.Request.Context(), middleware.GetBusiness(c), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="`+po.Number+`.pdf"`)
		c.Data(http.StatusOK, "application/pdf", data)
	}
}

// HandleListGRNs handles GET /api/businesses/:businessId/purchase-orders/:poId/grns
func HandleListGRNs(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "poId")
		if !ok {
			return
		}
		grns, err := svc.Purchasing.ListGRNs(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]GRNResponse, 0, len(grns))
		for _, g := range grns {
			out = append(out, toGRN(g))
		}
		c.JSON(http.StatusOK, gin.H{"grns": out})
	}
}

// HandleCreateGRN handles POST /api/businesses/:businessId/grns
func HandleCreateGRN(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateGRNRequest
		if !bindJSON(c, &req) {
			return
		}
		grn, replayed, err := svc.Purchasing.CreateGRN(c.Request.Context(), middleware.GetBusiness(c).ID, middleware.GetUID(c), req, middleware.GetIdempotency(c))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
		}
		c.JSON(status, toGRN(grn))
	}
}

// HandleGetGRN handles GET /api/businesses/:businessId/grns/:grnId
func HandleGetGRN(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "grnId")
		if !ok {
			return
		}
		grn, err := svc.Purchasing.GetGRN(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toGRN(grn))
	}
}

// HandleListUPCs handles GET /api/businesses/:businessId/upcs?sku=&putAway=&warehouseId=&limit=
func HandleListUPCs(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := repository.UPCFilter{
			SKU:     c.Query("sku"),
			PutAway: domain.PutAwayState(c.Query("putAway")),
			Limit:   queryInt(c, "limit", 0),
		}
		if raw := c.Query("warehouseId"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid warehouseId"})
				return
			}
			filter.WarehouseID = &id
		}
		upcs, err := svc.Inventory.ListUPCs(c.Request.Context(), middleware.GetBusiness(c).ID, filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"upcs": toUPCs(upcs)})
	}
}

// HandlePutAway handles POST /api/businesses/:businessId/upcs/put-away
func HandlePutAway(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.PutAwayRequest
		if !bindJSON(c, &req) {
			return
		}
		upcs, err := svc.Inventory.PutAway(c.Request.Context(), middleware.GetBusiness(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"upcs": toUPCs(upcs)})
	}
}

// HandleInventorySummary handles GET /api/businesses/:businessId/inventory/summary
func HandleInventorySummary(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		summary, err := svc.Inventory.Summary(c.Request.Context(), middleware.GetBusiness(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]gin.H, 0, len(summary))
		for _, s := range summary {
			out = append(out, gin.H{"sku": s.SKU, "counts": s.Counts})
		}
		c.JSON(http.StatusOK, gin.H{"summary": out})
	}
}
