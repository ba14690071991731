package handler

import (
	log "log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"Parley/internal/api/middleware"
	"Parley/internal/pkg/consts"
	"Parley/internal/pkg/response"
	"Parley/internal/service"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type WsHandler struct {
	hub *service.Hub
}

func NewWsHandler(hub *service.Hub) *WsHandler {
	return &WsHandler{hub: hub}
}

// Connect 把会话的每一份视图快照推送给浏览器. 浏览器无法为 WebSocket 设置请求头, Token 走 query
func (s *WsHandler) Connect(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, service.UnauthorizedError)
		return
	}
	if !middleware.Authenticate(c, s.hub, token) {
		return
	}
	ctrl, _ := controllerOf(c)
	sessionID := c.GetString(consts.SessionIDKey)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error("WS 协议升级失败", "err", err)
		return
	}
	defer func() {
		_ = conn.Close()
	}()

	updates, cancel := ctrl.Watch()
	defer cancel()

	log.Info("WS 连接已建立", "session_id", sessionID)

	stopChan := make(chan struct{})

	// 读循环：只处理 pong 与客户端断开
	go func() {
		defer close(stopChan)
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(pongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	// 写循环：推送视图快照
	for {
		select {
		case view, ok := <-updates:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"))
				log.Info("WS 会话已关闭", "session_id", sessionID)
				return
			}
			payload, err := json.Marshal(view)
			if err != nil {
				log.Error("视图序列化失败", "session_id", sessionID, "err", err)
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Warn("WS 推送失败", "session_id", sessionID, "err", err)
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-stopChan:
			log.Info("WS 连接已断开", "session_id", sessionID)
			return
		}
	}
}
