package gateway

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/resource"
	"github.com/larksync/larksync-console/internal/synclog"
	"github.com/larksync/larksync-console/internal/version"
)

type LogsRequest struct {
	Status   string `form:"status"`
	Search   string `form:"search"`
	Glob     string `form:"glob"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,oneof=20 50 100"`
}

type ResolveRequest struct {
	Action larkapi.ResolveAction `json:"action" binding:"required"`
}

type Handler struct {
	console *console.Console
}

func NewHandler(c *console.Console) *Handler {
	return &Handler{console: c}
}

func IndexHandler(c *gin.Context) {
	c.PureJSON(http.StatusOK, gin.H{
		"app":     version.AppName,
		"version": version.Detailed(),
	})
}

func HealthHandler(c *gin.Context) {
	c.PureJSON(http.StatusOK, OKResponse{Code: CodeOK})
}

// respondState writes a cached resource. A resource that never loaded and
// has an error is a bad gateway. Loaded data is returned with its error.
func respondState[T any](c *gin.Context, st resource.State[T]) {
	if !st.Loaded && st.Error != "" {
		AbortWithError(c, http.StatusBadGateway, ErrCodeBackend, errors.New(st.Error))
		return
	}
	c.PureJSON(http.StatusOK, st)
}

func (h *Handler) Dashboard(c *gin.Context) {
	c.PureJSON(http.StatusOK, h.console.Dashboard(c.Request.Context()))
}

func (h *Handler) Logs(c *gin.Context) {
	var req LogsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if req.Glob != "" && !synclog.ValidGlob(req.Glob) {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid glob %q", req.Glob))
		return
	}

	pager := synclog.NewPager(req.PageSize)
	pager.SetFilter(synclog.Filter{Status: req.Status, Search: req.Search, PathGlob: req.Glob})
	pager.SetPage(req.Page)

	c.PureJSON(http.StatusOK, h.console.LogCenter(c.Request.Context(), pager))
}

func (h *Handler) Tasks(c *gin.Context) {
	respondState(c, h.console.Tasks(c.Request.Context()))
}

func (h *Handler) RunTask(c *gin.Context) {
	if err := h.console.RunTask(c.Request.Context(), c.Param("id")); err != nil {
		abortWithBackendError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, OKResponse{Code: CodeOK})
}

func (h *Handler) UpdateTask(c *gin.Context) {
	var req larkapi.UpdateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}
	if req.SyncMode != nil && !req.SyncMode.Valid() {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid sync mode %q", *req.SyncMode))
		return
	}
	if req.UpdateMode != nil && !req.UpdateMode.Valid() {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, fmt.Errorf("invalid update mode %q", *req.UpdateMode))
		return
	}

	task, err := h.console.UpdateTask(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		abortWithBackendError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, task)
}

func (h *Handler) Conflicts(c *gin.Context) {
	respondState(c, h.console.Conflicts(c.Request.Context()))
}

func (h *Handler) ResolveConflict(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, http.StatusBadRequest, ErrCodeBadRequest, err)
		return
	}

	if err := h.console.ResolveConflict(c.Request.Context(), c.Param("id"), req.Action); err != nil {
		abortWithBackendError(c, err)
		return
	}
	c.PureJSON(http.StatusOK, OKResponse{Code: CodeOK})
}
