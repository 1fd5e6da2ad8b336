package handlers

import (
	"github.com/rockit-astro/qhy-camd/internal/logger"
	"github.com/rockit-astro/qhy-camd/internal/service"

	"github.com/gin-gonic/gin"
)

// Handler wires the HTTP layer to the camera service and logging.
type Handler struct {
	services *service.Service
	log      *logger.Logger
}

// NewHandler constructs a new HTTP handler with dependencies.
func NewHandler(services *service.Service, log *logger.Logger) *Handler {
	return &Handler{services: services, log: log}
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Minimal WebSocket connection (HTTP upgrade) — same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerCameraRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerCameraRoutes(api *gin.RouterGroup) {
	camera := api.Group("/camera")
	{
		camera.GET("/status", h.getStatus)
		// Body example: {"temperature":-10.0}; null disables the cooler
		camera.POST("/temperature", h.setTemperature)
		camera.POST("/stream", h.setStream)
		camera.POST("/gain", h.setGain)
		camera.POST("/offset", h.setOffset)
		camera.POST("/exposure", h.setExposure)
		// Body example: {"count":10}; 0 runs until stopped
		camera.POST("/start", h.startSequence)
		camera.POST("/stop", h.stopSequence)
		camera.POST("/shutdown", h.shutdownCamera)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
