package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is satisfied by the store.
type Pinger interface {
	Backend() string
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store       Pinger
	environment string
	version     string
}

func NewHealthHandler(store Pinger, environment, version string) *HealthHandler {
	return &HealthHandler{store: store, environment: environment, version: version}
}

// Health reports liveness and which storage backend is serving requests
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status, code, database := "OK", http.StatusOK, "connected"
	if err := h.store.Ping(ctx); err != nil {
		status, code, database = "DEGRADED", http.StatusServiceUnavailable, "unreachable"
	}

	c.JSON(code, gin.H{
		"success":     code == http.StatusOK,
		"message":     "SOS Alert API is running",
		"status":      status,
		"environment": h.environment,
		"version":     h.version,
		"backend":     h.store.Backend(),
		"database":    database,
		"timestamp":   time.Now().UTC().Format(time.RFC3339),
	})
}
