package routes

import (
	"github.com/gin-gonic/gin"

	handlers "sosalert/internal/handlers/shared"
	"sosalert/internal/middleware"
	"sosalert/pkg/logger"
	"sosalert/pkg/metrics"
	"sosalert/pkg/websocket"
)

type Dependencies struct {
	Logger  *logger.Logger
	Metrics *metrics.Metrics

	Auth          middleware.Authenticator
	AlertHandler  *handlers.AlertHandler
	AuthHandler   *handlers.AuthHandler
	HealthHandler *handlers.HealthHandler

	WebSocket     *websocket.Handler
	WebSocketPath string

	// RateLimiter may be nil.
	RateLimiter        *middleware.RateLimiter
	CORSAllowedOrigins []string
	TrustedProxies     []string

	// UploadsDir is served at /uploads when media is stored locally.
	UploadsDir    string
	MaxUploadSize int64
}

func NewRouter(deps Dependencies) (*gin.Engine, error) {
	router := gin.New()
	if err := router.SetTrustedProxies(deps.TrustedProxies); err != nil {
		return nil, err
	}
	if deps.MaxUploadSize > 0 {
		router.MaxMultipartMemory = deps.MaxUploadSize
	}

	// Global middleware
	router.Use(middleware.RecoveryMiddleware(deps.Logger))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(deps.Logger))
	router.Use(middleware.MetricsMiddleware(deps.Metrics))
	router.Use(middleware.CORSMiddleware(deps.CORSAllowedOrigins))
	if deps.RateLimiter != nil {
		router.Use(deps.RateLimiter.Middleware())
	}

	auth := middleware.AuthRequired(deps.Auth)

	api := router.Group("/api")
	{
		api.GET("/health", deps.HealthHandler.Health)
		SetupAuthRoutes(api, deps.AuthHandler, auth)
		SetupEmergencyRoutes(api, deps.AlertHandler, auth, deps.MaxUploadSize)
	}

	router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	if deps.WebSocket != nil {
		router.GET(deps.WebSocketPath, deps.WebSocket.HandleWebSocket)
	}
	if deps.UploadsDir != "" {
		router.Static("/uploads", deps.UploadsDir)
	}

	return router, nil
}
