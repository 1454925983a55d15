package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/internal/tenant"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	Remediation string `json:"remediation,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid_request")
)

// ErrorHandlingMiddleware converts errors collected on the gin context
// into a JSON error body after the handler chain runs.
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	var privErr *tenant.PrivilegeError
	if errors.As(err, &privErr) {
		return http.StatusInternalServerError, errorPayload{
			Type:        "insufficient_privileges",
			Message:     privErr.Error(),
			Remediation: privErr.Remediation(),
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, storedomain.ErrInvalidName),
		errors.Is(err, storedomain.ErrMainStoreProtected),
		errors.Is(err, tenant.ErrMainStoreDatabase),
		errors.Is(err, tenant.ErrNotProvisioned),
		errors.Is(err, tenant.ErrInvalidDatabaseName):
		return http.StatusBadRequest, errorPayload{
			Type:    "invalid_request",
			Message: err.Error(),
		}
	case errors.Is(err, storedomain.ErrDuplicateStore):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "store already exists",
		}
	case errors.Is(err, storedomain.ErrStoreNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}
