package gateway

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
)

const (
	CodeOK                  = "OK"
	ErrCodeBadRequest       = "ERR_BAD_REQUEST"
	ErrCodeUnauthorized     = "ERR_UNAUTHORIZED"
	ErrCodeNotFound         = "ERR_NOT_FOUND"
	ErrCodeBackend          = "ERR_BACKEND"
	ErrCodeConflictResolved = "ERR_CONFLICT_RESOLVED"
	ErrCodeRateLimited      = "ERR_RATE_LIMITED"
)

type OKResponse struct {
	Code string `json:"code"`
}

type ErrorResponse struct {
	Code  string `json:"code"`
	Error string `json:"error"`
}

func AbortWithError(c *gin.Context, status int, code string, err error) {
	c.Abort()
	_ = c.Error(err)
	c.PureJSON(status, ErrorResponse{
		Code:  code,
		Error: larkapi.ErrorMessage(err),
	})
}

// abortWithBackendError maps a console or backend error onto a gateway
// response. Backend 4xx pass through; anything else is a bad gateway.
func abortWithBackendError(c *gin.Context, err error) {
	var apiErr *larkapi.APIError

	switch {
	case errors.Is(err, console.ErrConflictResolved):
		AbortWithError(c, http.StatusConflict, ErrCodeConflictResolved, err)
	case errors.Is(err, larkapi.ErrMissingID),
		errors.Is(err, larkapi.ErrEmptyUpdate),
		errors.Is(err, larkapi.ErrInvalidAction):
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
	case larkapi.IsNotFound(err):
		AbortWithError(c, http.StatusNotFound, ErrCodeNotFound, err)
	case errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500:
		AbortWithError(c, apiErr.Status, ErrCodeBackend, err)
	default:
		AbortWithError(c, http.StatusBadGateway, ErrCodeBackend, err)
	}
}
