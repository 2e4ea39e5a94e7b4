package ws

import (
	"log"
	"net/http"
	"strings"

	"collabEngine/backend/internal/collab"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// 全局的 WebSocket upgrader（允许本地开发环境的来源）
var upgrader = websocket.Upgrader{CheckOrigin: func(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || origin == "null" { // 一些环境可能不发送 Origin，或为 "null"
		return true
	}
	allowedPrefixes := []string{
		"http://localhost",
		"http://127.0.0.1",
		"https://localhost",
		"https://127.0.0.1",
	}
	for _, p := range allowedPrefixes {
		if strings.HasPrefix(origin, p) {
			return true
		}
	}
	return false
}}

type Manager struct {
	h      *Hub
	engine *collab.Engine
	sem    *collab.SemaphoreControl
}

func NewManager(h *Hub, engine *collab.Engine, sem *collab.SemaphoreControl) *Manager {
	m := &Manager{h: h, engine: engine, sem: sem}
	// 引擎事件 → 房间广播
	h.AttachBus(engine.Bus())
	return m
}

func (m *Manager) WebSocketConnect(c *gin.Context) {
	// userId/username 由鉴权中间件写入
	userID := c.GetString("userId")
	username := c.GetString("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v (origin=%s)", err, c.Request.Header.Get("Origin"))
		return
	}
	defer conn.Close()

	wsConn := NewConn(conn, m.h, userID, username, m.engine, m.sem)

	// 先启动写循环，确保后续写入 send 通道的消息可以被及时发送
	go wsConn.writeLoop()
	wsConn.SendMessage_Enqueue(ServerMessage{Type: "welcome", Content: "connected"})

	// 读循环阻塞到连接关闭
	wsConn.readLoop(c.Request.Context())
}
