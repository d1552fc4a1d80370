package httpapi

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bskracic/langs-executor/apperr"
	"github.com/bskracic/langs-executor/execution"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type timeoutRequest struct {
	execution.Request
	TimeoutSeconds int `json:"timeoutSeconds"`
}

type healthResponse struct {
	Healthy  bool            `json:"healthy"`
	Message  string          `json:"message"`
	Runtimes map[string]bool `json:"runtimes"`
}

type runtimeHealthResponse struct {
	Language string `json:"language"`
	Runtime  string `json:"runtime"`
	Alive    bool   `json:"alive"`
}

type diskUsageResponse struct {
	Language string `json:"language"`
	Usage    string `json:"usage"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (h *handler) execute(c *gin.Context) {
	var req execution.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.logger.Info("received execution request", zap.String("language", req.Language))

	c.JSON(http.StatusOK, h.svc.Execute(c.Request.Context(), req))
}

// executeWithTimeout stops waiting after timeoutSeconds. The run itself is
// not cancelled; it finishes and cleans up in the background.
func (h *handler) executeWithTimeout(c *gin.Context) {
	var req timeoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}
	h.logger.Info("received execution request with timeout",
		zap.String("language", req.Language),
		zap.Int("timeout_seconds", req.TimeoutSeconds))

	if req.TimeoutSeconds <= 0 {
		c.JSON(http.StatusOK, h.svc.Execute(c.Request.Context(), req.Request))
		return
	}

	ctx := c.Request.Context()
	done := make(chan execution.Result, 1)
	go func() {
		done <- h.svc.Execute(ctx, req.Request)
	}()

	timer := time.NewTimer(time.Duration(req.TimeoutSeconds) * time.Second)
	defer timer.Stop()
	select {
	case res := <-done:
		c.JSON(http.StatusOK, res)
	case <-timer.C:
		h.logger.Warn("execution exceeded caller timeout",
			zap.String("language", req.Language),
			zap.Int("timeout_seconds", req.TimeoutSeconds))
		msg := fmt.Sprintf("Execution timed out after %d seconds", req.TimeoutSeconds)
		c.JSON(http.StatusGatewayTimeout, execution.NewResult(false, -1, msg, nil))
	}
}

func (h *handler) health(c *gin.Context) {
	resp := healthResponse{Healthy: true, Runtimes: make(map[string]bool)}
	for _, language := range h.svc.Languages() {
		_, alive, err := h.svc.RuntimeAlive(c.Request.Context(), language)
		resp.Runtimes[language] = alive && err == nil
		if !resp.Runtimes[language] {
			resp.Healthy = false
		}
	}
	if resp.Healthy {
		resp.Message = "all runtimes are available"
	} else {
		resp.Message = "some runtimes are unavailable"
	}
	c.JSON(http.StatusOK, resp)
}

func (h *handler) runtimeHealth(c *gin.Context) {
	language := c.Param("language")
	name, alive, err := h.svc.RuntimeAlive(c.Request.Context(), language)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, runtimeHealthResponse{Language: language, Runtime: name, Alive: alive})
}

func (h *handler) diskUsage(c *gin.Context) {
	language := c.Param("language")
	usage, err := h.svc.DiskUsage(c.Request.Context(), language)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, diskUsageResponse{Language: language, Usage: usage})
}

func (h *handler) badRequest(c *gin.Context, err error) {
	h.logger.Warn("invalid execution request", zap.Error(err))
	c.JSON(http.StatusBadRequest, execution.NewResult(false, -1, "Invalid request: "+err.Error(), nil))
}

func (h *handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch apperr.GetCode(err) {
	case apperr.UnsupportedLanguage:
		status = http.StatusNotFound
	case apperr.RuntimeUnavailable:
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
