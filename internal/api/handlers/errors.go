package handlers

import (
	stderrors "errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/pkg/errors"
)

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// respondError maps service errors to HTTP statuses; anything unrecognised is a 500
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		notFound     *errors.ErrNotFound
		unauthorized *errors.ErrUnauthorized
		forbidden    *errors.ErrForbidden
		conflict     *errors.ErrConflict
		validation   *errors.ErrValidation
		gone         *errors.ErrGone
		transition   *errors.ErrInvalidStateTransition
		upstream     *errors.ErrUpstream
	)
	switch {
	case stderrors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Message: validation.Error(), Fields: validation.Fields})
	case stderrors.As(err, &notFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not_found", Message: err.Error()})
	case stderrors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Message: err.Error()})
	case stderrors.As(err, &forbidden):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: "forbidden", Message: err.Error()})
	case stderrors.As(err, &conflict):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "conflict", Message: err.Error()})
	case stderrors.As(err, &transition):
		c.JSON(http.StatusConflict, ErrorResponse{Error: "invalid_state_transition", Message: err.Error()})
	case stderrors.As(err, &gone):
		c.JSON(http.StatusGone, ErrorResponse{Error: "gone", Message: err.Error()})
	case stderrors.As(err, &upstream):
		logger.Warn("Upstream call failed", zap.String("service", upstream.Service), zap.Error(upstream.Err))
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "upstream_error", Message: err.Error()})
	default:
		logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal_error", Message: "internal error"})
	}
}

// bindJSON decodes the body and reports binding failures as 422 with per-field messages
func bindJSON(c *gin.Context, obj interface{}) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		var verrs validator.ValidationErrors
		if stderrors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fieldPath(fe.Namespace())] = describe(fe)
			}
			c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Error: "validation_failed", Message: "request validation failed", Fields: fields})
			return false
		}
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

// fieldPath drops the root struct name: "CreatePORequest.items[0].sku" -> "items[0].sku"
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "required"
	case "email":
		return "must be a valid email"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "min", "gte":
		return "must be at least " + fe.Param()
	case "max", "lte":
		return "must be at most " + fe.Param()
	case "gt":
		return "must be greater than " + fe.Param()
	default:
		return "failed " + fe.Tag() + " validation"
	}
}

// uuidParam parses a path parameter, responding 400 when it is not a UUID
func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "bad_request", Message: "invalid " + name})
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter
func queryInt(c *gin.Context, name string, def int) int {
	raw := c.Query(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return def
	}
	return n
}
