package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"roomchatgo/internal/services/chat"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 12 * time.Second
	pingPeriod   = 3 * time.Second // must be < pongWait
	maxFrameSize = 8192
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // dev-only
}

// ConnContext is what handlers get to know about the connection they serve.
type ConnContext struct {
	ConnID string
	Conn   *clientConn
	Server *WsServer
}

type WsServer struct {
	hub     *Hub
	router  *Router
	chatSvc chat.IChatService
}

func NewWsServer(h *Hub, chatSvc chat.IChatService) *WsServer {
	router := NewRouter()
	srv := &WsServer{
		hub:     h,
		router:  router,
		chatSvc: chatSvc,
	}
	srv.registerHandlers() // ← all WS endpoints configured here
	return srv
}

// ---------------------------------------------------------------------------
//  Public: Gin entry-point
// ---------------------------------------------------------------------------

func (s *WsServer) Handle(ginCtx *gin.Context) {
	rawConn, err := upgrader.Upgrade(ginCtx.Writer, ginCtx.Request, nil)
	if err != nil {
		zap.L().Warn("ws.accept", zap.Error(err))
		return
	}
	rawConn.SetReadLimit(maxFrameSize)

	// ─────────────────── Client connected ────────────────────────
	connID := uuid.NewString()
	wsConn := &clientConn{rawConn: rawConn}
	s.chatSvc.Connect(connID)
	s.hub.Add(connID, wsConn)

	// Initial snapshot so the client can render the sidebar before any
	// presence change happens.
	if err := s.pushInitialSnapshot(wsConn); err != nil {
		zap.L().Warn("ws.snapshot", zap.Error(err))
	}

	go s.reader(connID, wsConn)
	go s.pinger(wsConn)
}

// ---------------------------------------------------------------------------
//  Private helpers
// ---------------------------------------------------------------------------

func (s *WsServer) registerHandlers() {
	// 🔹 identify -------------------------------------------------------------
	Register(
		s.router,
		"identify",
		func(ctx context.Context, cc *ConnContext, req IdentifyRequest) (AckBody, error) {
			err := s.chatSvc.Identify(cc.ConnID, req.Username)
			return AckBody{}, err
		},
	)

	// 🔹 join_room ------------------------------------------------------------
	Register(
		s.router,
		"join_room",
		func(ctx context.Context, cc *ConnContext, req JoinRoomRequest) (JoinAck, error) {
			already, err := s.chatSvc.JoinRoom(cc.ConnID, req.Room)
			return JoinAck{AlreadyMember: already}, err
		},
	)

	// 🔹 leave_room -----------------------------------------------------------
	Register(
		s.router,
		"leave_room",
		func(ctx context.Context, cc *ConnContext, req LeaveRoomRequest) (AckBody, error) {
			err := s.chatSvc.LeaveRoom(cc.ConnID, req.Room)
			return AckBody{}, err
		},
	)

	// 🔹 message --------------------------------------------------------------
	Register(
		s.router,
		"message",
		func(ctx context.Context, cc *ConnContext, req SendMessageRequest) (chat.MessageBody, error) {
			return s.chatSvc.SendMessage(ctx, cc.ConnID, req.Room, req.Message)
		},
	)
}

func (s *WsServer) pushInitialSnapshot(conn *clientConn) error {
	return conn.writeJSON(gin.H{
		"event": chat.EventUsersUpdated,
		"body":  s.chatSvc.Snapshot(),
	})
}

func (s *WsServer) reader(connID string, conn *clientConn) {
	defer func() {
		s.hub.Remove(connID)
		s.chatSvc.Disconnect(connID) // implicit disconnect on any teardown
	}()

	_ = conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	conn.rawConn.SetPongHandler(func(string) error {
		return conn.rawConn.SetReadDeadline(time.Now().Add(pongWait))
	})

	cc := &ConnContext{ConnID: connID, Conn: conn, Server: s}

	for {
		_, data, err := conn.rawConn.ReadMessage()
		if err != nil {
			return // client closed or errored
		}
		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: "bad_envelope"},
			})
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 1900*time.Millisecond)
		res, err := s.router.dispatch(ctx, cc, env)
		cancel()

		// ---- error -> {"event":"error", "body":{...}} ---------------
		if err != nil {
			_ = conn.writeJSON(map[string]any{
				"event": "error",
				"body":  ErrorBody{Error: err.Error()},
			})
			continue
		}

		// ---- success -> {"event":"<evt>-ack", "body":{...}} --------
		reply := map[string]any{"event": env.Event + "-ack"}
		if res != nil {
			reply["body"] = res
		}
		_ = conn.writeJSON(reply)
	}
}

func (s *WsServer) pinger(conn *clientConn) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		if err := conn.ping(); err != nil {
			conn.close()
			return
		}
	}
}
