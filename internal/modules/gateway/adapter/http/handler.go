// Package http exposes the WebSocket endpoint and the small REST surface.
package http

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/usecase"
	"github.com/frankieli/mahjong_scorekeeper/internal/modules/gateway/ws"
	"github.com/frankieli/mahjong_scorekeeper/pkg/logger"
)

// Handler handles HTTP and WebSocket requests.
type Handler struct {
	useCase *usecase.GatewayUseCase
	manager *ws.Manager
	userSvc usecase.UserService
	roomSvc usecase.RoomService
}

func NewHandler(useCase *usecase.GatewayUseCase, manager *ws.Manager, userSvc usecase.UserService, roomSvc usecase.RoomService) *Handler {
	return &Handler{
		useCase: useCase,
		manager: manager,
		userSvc: userSvc,
		roomSvc: roomSvc,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // clients connect from arbitrary origins
	},
}

// RegisterRoutes wires the gateway endpoints into the router.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.handleWebSocket)
	r.GET("/healthz", h.handleHealth)
	r.GET("/api/archives", h.handleListArchives)
}

// handleWebSocket upgrades the connection and starts the pumps. A valid
// ?token= query pre-authenticates the session; without it the socket stays
// anonymous until a LoginREQ or AuthREQ arrives.
func (h *Handler) handleWebSocket(c *gin.Context) {
	ctx := logger.WebSocketContext(c.Request)
	requestID := logger.GetRequestID(ctx)

	var preAuthUserID int64
	if token := c.Query("token"); token != "" {
		userID, _, err := h.userSvc.ValidateToken(c.Request.Context(), token)
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("ws pre-auth token rejected")
			c.String(http.StatusUnauthorized, "Unauthorized")
			return
		}
		preAuthUserID = userID
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("ws upgrade failed")
		return
	}

	client := h.manager.Register(conn)
	if preAuthUserID != 0 {
		h.manager.Bind(client.ConnID, preAuthUserID)
		h.manager.JoinLobby(client.ConnID)
	}

	logger.Info(ctx).
		Str("conn_id", client.ConnID).
		Int64("user_id", preAuthUserID).
		Str("remote_addr", c.Request.RemoteAddr).
		Msg("ws connection established")

	go client.WritePump()
	go client.ReadPump(func(connID string, userID int64, message []byte) {
		msgCtx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		msgCtx = logger.WithFields(msgCtx, map[string]interface{}{
			"conn_id":       connID,
			"user_id":       userID,
			"ws_request_id": requestID,
		})

		if response := h.useCase.HandleMessage(msgCtx, connID, userID, message); response != nil {
			h.manager.SendToConn(connID, response)
		}
	})
}

func (h *Handler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleListArchives is the REST view of a user's finished games.
func (h *Handler) handleListArchives(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Query("user_id"), 10, 64)
	if err != nil || userID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	archives, err := h.roomSvc.ListArchives(c.Request.Context(), userID)
	if err != nil {
		logger.Error(c.Request.Context()).Err(err).Int64("user_id", userID).Msg("failed to list archives")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"archives": archives})
}
