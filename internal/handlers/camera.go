package handlers

import (
	"net/http"

	"github.com/rockit-astro/qhy-camd/internal/models"

	"github.com/gin-gonic/gin"
)

// Common response/error constants to avoid magic strings and typos.
const (
	errGetStatus       = "failed to load camera status"
	errInvalidBodyPref = "invalid body: "
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// statusHTTPCode maps a command result onto the HTTP status of the response.
func statusHTTPCode(status models.CommandStatus) int {
	switch status {
	case models.Succeeded:
		return http.StatusOK
	case models.CameraNotFound:
		return http.StatusNotFound
	case models.CameraNotIdle, models.CameraNotAcquiring:
		return http.StatusConflict
	case models.TemperatureOutsideLimits:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// respondCommand writes the command result and includes the current status
// snapshot if available (best-effort).
func (h *Handler) respondCommand(c *gin.Context, status models.CommandStatus) {
	resp := gin.H{"command_status": status}
	if st, err := h.services.Camera.Status(); err == nil {
		resp["camera"] = st
	}
	c.JSON(statusHTTPCode(status), resp)
}

// Request DTO for setting the cooler target.
type temperatureRequest struct {
	// Setpoint in Celsius. Null or omitted disables closed-loop cooling.
	Temperature *float64 `json:"temperature"`
	Quiet       bool     `json:"quiet,omitempty"`
}

type streamRequest struct {
	Stream *bool `json:"stream" binding:"required"`
	Quiet  bool  `json:"quiet,omitempty"`
}

type gainRequest struct {
	Gain  *int `json:"gain" binding:"required"`
	Quiet bool `json:"quiet,omitempty"`
}

type offsetRequest struct {
	Offset *int `json:"offset" binding:"required"`
	Quiet  bool `json:"quiet,omitempty"`
}

type exposureRequest struct {
	Seconds *float64 `json:"seconds" binding:"required"`
	Quiet   bool     `json:"quiet,omitempty"`
}

type startRequest struct {
	// Number of frames to acquire; 0 or omitted runs until stopped.
	Count int  `json:"count,omitempty"`
	Quiet bool `json:"quiet,omitempty"`
}

type stopRequest struct {
	Quiet bool `json:"quiet,omitempty"`
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
	})
}

func (h *Handler) getStatus(c *gin.Context) {
	st, err := h.services.Camera.Status()
	if err != nil {
		h.logAndJSONError(c, http.StatusInternalServerError, errGetStatus, "camera_status_failed", err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (h *Handler) setTemperature(c *gin.Context) {
	var req temperatureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.SetTemperature(req.Temperature, req.Quiet))
}

func (h *Handler) setStream(c *gin.Context) {
	var req streamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.SetStreaming(*req.Stream, req.Quiet))
}

func (h *Handler) setGain(c *gin.Context) {
	var req gainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.SetGain(*req.Gain, req.Quiet))
}

func (h *Handler) setOffset(c *gin.Context) {
	var req offsetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.SetOffset(*req.Offset, req.Quiet))
}

func (h *Handler) setExposure(c *gin.Context) {
	var req exposureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.SetExposure(*req.Seconds, req.Quiet))
}

func (h *Handler) startSequence(c *gin.Context) {
	var req startRequest
	// Empty body means run until stopped.
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	if req.Count < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "'count' must be >= 0"})
		return
	}
	h.respondCommand(c, h.services.Camera.StartSequence(req.Count, req.Quiet))
}

func (h *Handler) stopSequence(c *gin.Context) {
	var req stopRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	h.respondCommand(c, h.services.Camera.StopSequence(req.Quiet))
}

func (h *Handler) shutdownCamera(c *gin.Context) {
	status := h.services.Camera.Shutdown()
	// No status snapshot after shutdown; the control loop has exited.
	c.JSON(statusHTTPCode(status), gin.H{"command_status": status})
}
