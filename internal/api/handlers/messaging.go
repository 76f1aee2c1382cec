package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/service"
)

// HandleListTemplates handles GET /api/stores/:shop/whatsapp/templates
func HandleListTemplates(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		templates, err := svc.Messaging.ListTemplates(c.Request.Context(), middleware.GetStore(c).Shop)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]TemplateResponse, 0, len(templates))
		for _, t := range templates {
			out = append(out, toTemplate(t))
		}
		c.JSON(http.StatusOK, gin.H{"templates": out})
	}
}

// HandleCreateTemplate handles POST /api/stores/:shop/whatsapp/templates
func HandleCreateTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.TemplateRequest
		if !bindJSON(c, &req) {
			return
		}
		tpl, err := svc.Messaging.CreateTemplate(c.Request.Context(), middleware.GetStore(c).Shop, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toTemplate(tpl))
	}
}

// HandleGetTemplate handles GET /api/stores/:shop/whatsapp/templates/:templateId
func HandleGetTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "templateId")
		if !ok {
			return
		}
		tpl, err := svc.Messaging.GetTemplate(c.Request.Context(), middleware.GetStore(c).Shop, id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toTemplate(tpl))
	}
}

// HandleUpdateTemplate handles PUT /api/stores/:shop/whatsapp/templates/:templateId
func HandleUpdateTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "templateId")
		if !ok {
			return
		}
		var req service.TemplateRequest
		if !bindJSON(c, &req) {
			return
		}
		tpl, err := svc.Messaging.UpdateTemplate(c.Request.Context(), middleware.GetStore(c).Shop, id, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toTemplate(tpl))
	}
}

// HandleDeleteTemplate handles DELETE /api/stores/:shop/whatsapp/templates/:templateId
func HandleDeleteTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "templateId")
		if !ok {
			return
		}
		if err := svc.Messaging.DeleteTemplate(c.Request.Context(), middleware.GetStore(c).Shop, id); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleSendTemplate handles POST /api/stores/:shop/whatsapp/send
func HandleSendTemplate(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SendTemplateRequest
		if !bindJSON(c, &req) {
			return
		}
		results, err := svc.Messaging.SendManual(c.Request.Context(), middleware.GetStore(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		sent := 0
		for _, r := range results {
			if r.OK {
				sent++
			}
		}
		c.JSON(http.StatusOK, gin.H{"results": results, "sent": sent, "failed": len(results) - sent})
	}
}
