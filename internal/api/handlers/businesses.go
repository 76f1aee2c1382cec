package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/api/middleware"
	"github.com/jafarshop/opsapi/internal/service"
)

// HandleCreateBusiness handles POST /api/businesses
func HandleCreateBusiness(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.CreateBusinessRequest
		if !bindJSON(c, &req) {
			return
		}
		business, err := svc.Tenancy.CreateBusiness(c.Request.Context(), middleware.GetUID(c), middleware.GetEmail(c), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toBusiness(business))
	}
}

// HandleGetBusiness handles GET /api/businesses/:businessId
func HandleGetBusiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"business": toBusiness(middleware.GetBusiness(c)),
			"role":     middleware.GetMember(c).Role,
		})
	}
}

// HandleListMembers handles GET /api/businesses/:businessId/members
func HandleListMembers(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		business := middleware.GetBusiness(c)
		members, err := svc.Tenancy.ListMembers(c.Request.Context(), middleware.GetUID(c), business.ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]MemberResponse, 0, len(members))
		for _, m := range members {
			out = append(out, toMember(m))
		}
		c.JSON(http.StatusOK, gin.H{"members": out})
	}
}

// HandleAddMember handles POST /api/businesses/:businessId/members
func HandleAddMember(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.AddMemberRequest
		if !bindJSON(c, &req) {
			return
		}
		member, err := svc.Tenancy.AddMember(c.Request.Context(), middleware.GetUID(c), middleware.GetBusiness(c).ID, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, toMember(member))
	}
}

// HandleRemoveMember handles DELETE /api/businesses/:businessId/members/:uid
func HandleRemoveMember(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		err := svc.Tenancy.RemoveMember(c.Request.Context(), middleware.GetUID(c), middleware.GetBusiness(c).ID, c.Param("uid"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleListBusinessStores handles GET /api/businesses/:businessId/stores
func HandleListBusinessStores(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stores, err := svc.Tenancy.ListStores(c.Request.Context(), middleware.GetUID(c), middleware.GetBusiness(c).ID)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		out := make([]service.StoreView, 0, len(stores))
		for _, s := range stores {
			out = append(out, service.View(s))
		}
		c.JSON(http.StatusOK, gin.H{"stores": out})
	}
}

// HandleLinkStore handles POST /api/businesses/:businessId/stores
func HandleLinkStore(svc *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.LinkStoreRequest
		if !bindJSON(c, &req) {
			return
		}
		store, err := svc.Tenancy.LinkStore(c.Request.Context(), middleware.GetUID(c), middleware.GetBusiness(c).ID, req.Shop)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, service.View(store))
	}
}
