package handlers

import (
	"hoodwatch/internal/logger"
	"hoodwatch/internal/service"

	"github.com/gin-gonic/gin"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Handler wires HTTP layer to services and logging.
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

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health endpoint
	router.GET("/health", h.health)

	// Auth endpoints
	h.registerAuthRoutes(router)

	// Versioned API endpoints (protected)
	h.registerAPIRoutes(router)

	// WebSocket status stream, served on the same port via HTTP upgrade
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAuthRoutes(r *gin.Engine) {
	auth := r.Group("/auth")
	{
		auth.POST("/sign-up", h.signUp)
		auth.POST("/sign-in", h.signIn)
	}
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.userIdMiddleware)
	{
		h.registerStatusRoutes(api)
		h.registerSectionRoutes(api)
		h.registerLogRoutes(api)
	}
}

func (h *Handler) registerStatusRoutes(api *gin.RouterGroup) {
	st := api.Group("/status")
	{
		st.GET("/summary", h.getSummary)
		st.GET("/overview", h.getOverview)
	}
}

func (h *Handler) registerSectionRoutes(api *gin.RouterGroup) {
	sections := api.Group("/sections")
	{
		sections.GET("/", h.listSections)
		sections.POST("/resync", h.resyncSections)
		sections.GET("/:id/errors", h.getSectionErrors)
		sections.GET("/:id/hours", h.getSectionHours)
		// Body example: {"address":"10.0.8.21:502"}
		sections.POST("/:id/reconnect", h.reconnectSection)
		sections.POST("/:id/clean", h.markCleaned)
	}
}

func (h *Handler) registerLogRoutes(api *gin.RouterGroup) {
	logs := api.Group("/logs")
	{
		logs.GET("/", h.getLogs)
	}
}
