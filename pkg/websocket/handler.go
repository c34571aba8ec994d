package websocket

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID string
	Role   string
}

// Authenticator resolves a bearer token to an identity.
type Authenticator func(ctx context.Context, token string) (*Identity, error)

type HandlerConfig struct {
	ReadBufferSize  int
	WriteBufferSize int
	AllowedOrigins  []string
	Client          ClientConfig
}

type Handler struct {
	hub          *Hub
	upgrader     websocket.Upgrader
	authenticate Authenticator
	clientConfig ClientConfig
}

func NewHandler(hub *Hub, authenticate Authenticator, cfg HandlerConfig) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     originChecker(cfg.AllowedOrigins),
		},
		authenticate: authenticate,
		clientConfig: cfg.Client,
	}
}

// HandleWebSocket upgrades the request. A token is optional; when present
// it must be valid, and it decides whether the connection may join the
// volunteer group.
func (h *Handler) HandleWebSocket(c *gin.Context) {
	var identity Identity
	if token := bearerToken(c); token != "" {
		id, err := h.authenticate(c.Request.Context(), token)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid or expired token"})
			return
		}
		identity = *id
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.hub.log.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := NewClient(h.hub, conn, identity.UserID, identity.Role, h.clientConfig)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func bearerToken(c *gin.Context) string {
	if token := c.Query("token"); token != "" {
		return token
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func originChecker(allowed []string) func(r *http.Request) bool {
	allowAll := len(allowed) == 0
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		set[strings.TrimRight(o, "/")] = true
	}
	return func(r *http.Request) bool {
		if allowAll {
			return true
		}
		origin := r.Header.Get("Origin")
		return origin == "" || set[strings.TrimRight(origin, "/")]
	}
}
