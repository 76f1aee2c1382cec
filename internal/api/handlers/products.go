package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/service"
)

const (
	xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	maxUploadBytes  = 10 << 20
)

// HandleListProducts handles GET /api/businesses/:businessId/products?limit=&offset=
func HandleListProducts(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		products, err := svc.Products.List(c.Request.Context(), middleware.GetBusiness(c).ID, queryInt(c, "limit", 100), queryInt(c, "offset", 0))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]ProductResponse, 0, len(products))
		for _, p := range products {
			out = append(out, toProduct(p))
		}
		c.JSON(http.StatusOK, gin.H{"products": out})
	}
}

// HandleCreateProduct handles POST /api/businesses/:businessId/products
func HandleCreateProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ProductRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := svc.Products.Create(c.Request.Context(), middleware.GetBusiness(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toProduct(product))
	}
}

// HandleGetProduct handles GET /api/businesses/:businessId/products/:productId
func HandleGetProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		product, err := svc.Products.Get(c.Request.Context(), middleware.GetBusiness(c).ID, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toProduct(product))
	}
}

// HandleUpdateProduct handles PUT /api/businesses/:businessId/products/:productId
func HandleUpdateProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		var req service.ProductRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := svc.Products.Update(c.Request.Context(), middleware.GetBusiness(c).ID, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toProduct(product))
	}
}

// HandleDeleteProduct handles DELETE /api/businesses/:businessId/products/:productId
func HandleDeleteProduct(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		if err := svc.Products.Delete(c.Request.Context(), middleware.GetBusiness(c).ID, id); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleMapVariant handles POST /api/businesses/:businessId/products/:productId/variants
func HandleMapVariant(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		var req service.MapVariantRequest
		if !bindJSON(c, &req) {
			return
		}
		product, err := svc.Products.MapVariant(c.Request.Context(), middleware.GetBusiness(c).ID, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toProduct(product))
	}
}

// HandleUnmapVariant handles DELETE /api/businesses/:businessId/products/:productId/variants/:shop/:variantId
func HandleUnmapVariant(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "productId")
		if !ok {
			return
		}
		variantID, err := strconv.ParseInt(c.Param("variantId"), 10, 64)
		if err != nil || variantID <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid variantId"})
			return
		}
		product, err := svc.Products.UnmapVariant(c.Request.Context(), middleware.GetBusiness(c).ID, id, c.Param("shop"), variantID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toProduct(product))
	}
}

// HandleProductTemplate handles GET /api/businesses/:businessId/product-uploads/template
func HandleProductTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := svc.Products.BulkTemplate()
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="products-template.xlsx"`)
		c.Data(http.StatusOK, xlsxContentType, data)
	}
}

// HandleProductUpload handles POST /api/businesses/:businessId/product-uploads
// (multipart: file, mode=create|update|upsert). A file with any invalid row is
// rejected as a whole with 422 and the row errors.
func HandleProductUpload(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
		header, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "multipart field 'file' is required"})
			return
		}
		file, err := header.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "failed to read upload"})
			return
		}
		defer file.Close()

		mode := c.DefaultPostForm("mode", service.UploadCreate)
		result, err := svc.Products.BulkUpload(c.Request.Context(), middleware.GetBusiness(c).ID, mode, file)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if len(result.Errors) > 0 {
			c.JSON(http.StatusUnprocessableEntity, result)
			return
		}
		logger.Info("Products uploaded",
			zap.String("business_id", middleware.GetBusiness(c).ID.String()),
			zap.String("file", header.Filename),
			zap.Int("created", result.Created),
			zap.Int("updated", result.Updated),
		)
		c.JSON(http.StatusOK, result)
	}
}
