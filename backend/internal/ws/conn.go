package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"collabEngine/backend/internal/collab"

	"github.com/gorilla/websocket"
)

const presenceTTL = 600 * time.Second

type Conn struct {
	ws        *websocket.Conn
	hub       *Hub
	sessionID string
	userID    string
	username  string
	send      chan OutboundMessage
	engine    *collab.Engine
	// 限制同时在途的 op_submit 数量
	sem *collab.SemaphoreControl

	// sendMu 保护 closed 和 send 的关闭：广播可能和断开并发
	sendMu sync.Mutex
	closed bool
}

func NewConn(ws *websocket.Conn, hub *Hub, userID, username string, engine *collab.Engine, sem *collab.SemaphoreControl) *Conn {
	return &Conn{
		ws:       ws,
		hub:      hub,
		userID:   userID,
		username: username,
		send:     make(chan OutboundMessage, 32),
		engine:   engine,
		sem:      sem,
	}
}

func (c *Conn) SendMessage_Enqueue(msg OutboundMessage) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- msg:
	default:
		// 队列满了，丢弃；慢客户端自己靠 snapshot 追平
	}
}

// closeSend 关闭出站队列；之后的入队一律丢弃，不会写已关闭的通道
func (c *Conn) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) handleOpSubmit(ctx context.Context, msg ClientMessage) {
	submitCtx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
	defer cancel()

	if err := c.sem.Acquire(submitCtx); err != nil {
		c.SendMessage_Enqueue(ServerMessage{Type: "error", Content: err.Error()})
		return
	}
	defer c.sem.Release()

	op, err := c.engine.ApplyOperation(collab.OperationRequest{
		SessionID: msg.SessionID,
		UserID:    c.userID,
		Type:      collab.OpType(msg.OpType),
		Position:  msg.Position,
		Content:   msg.Content,
		Length:    msg.Length,
		Revision:  msg.Revision,
	})
	if err != nil {
		c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
		return
	}
	c.SendMessage_Enqueue(OpAppliedMessage{
		Type:            "op_applied",
		SessionID:       msg.SessionID,
		OperationID:     op.ID,
		BaseRevision:    msg.Revision,
		CurrentRevision: op.Revision,
	})
	// 同会话其他连接由 hub 的事件订阅负责推送
}

func (c *Conn) readLoop(ctx context.Context) {
	defer func() {
		if c.sessionID != "" {
			c.hub.Leave(c.sessionID, c)
			_ = c.engine.LeaveSession(c.sessionID, c.userID)
			_ = c.hub.presence.RemoveMember(ctx, c.sessionID, c.userID)
		}
		c.closeSend()
	}()

	for {
		var msg ClientMessage
		if err := c.ws.ReadJSON(&msg); err != nil {
			log.Printf("read json error (user=%s, session=%s): %v", c.userID, c.sessionID, err)
			return
		}
		switch msg.Type {
		case "heartbeat":
			if c.sessionID != "" {
				if err := c.hub.presence.AddMember(ctx, c.sessionID, c.userID, c.username, presenceTTL); err != nil {
					log.Printf("add member error: %v", err)
				}
			}
			c.SendMessage_Enqueue(ServerMessage{Type: "feedback", Content: "Heartbeat received"})

		case "join_session":
			role := collab.Role(msg.Role)
			if role == "" {
				role = collab.RoleEditor
			}
			name := msg.Name
			if name == "" {
				name = c.username
			}
			if _, err := c.engine.JoinSession(msg.SessionID, collab.JoinRequest{ID: c.userID, Name: name, Role: role}); err != nil {
				c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
				continue
			}
			if c.sessionID != "" && c.sessionID != msg.SessionID {
				// 先离开旧房间
				c.hub.Leave(c.sessionID, c)
			}
			c.sessionID = msg.SessionID
			c.hub.Join(c.sessionID, c)
			if err := c.hub.presence.AddMember(ctx, c.sessionID, c.userID, name, presenceTTL); err != nil {
				log.Printf("add member error: %v", err)
			}
			// 入场直接带上快照，客户端拿到就能追平
			content, revision, err := c.engine.Snapshot(c.sessionID)
			if err != nil {
				log.Printf("snapshot error: %v", err)
				continue
			}
			c.SendMessage_Enqueue(ServerMessage{Type: "join_session", SessionID: c.sessionID, Revision: revision, Content: content})

		case "leave_session":
			if c.sessionID == "" {
				continue
			}
			c.hub.Leave(c.sessionID, c)
			if err := c.engine.LeaveSession(c.sessionID, c.userID); err != nil {
				log.Printf("leave session error: %v", err)
			}
			_ = c.hub.presence.RemoveMember(ctx, c.sessionID, c.userID)
			c.SendMessage_Enqueue(ServerMessage{Type: "leave_session", SessionID: c.sessionID})
			c.sessionID = ""

		case "op_submit":
			c.handleOpSubmit(ctx, msg)

		case "cursor":
			cur, err := c.engine.TrackCursor(msg.SessionID, c.userID, msg.Position, msg.SelectionStart, msg.SelectionEnd)
			if err != nil {
				c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
				continue
			}
			// 镜像到 redis，别的实例也能看到
			if b, err := json.Marshal(cur); err == nil {
				if err := c.hub.presence.SetCursor(ctx, msg.SessionID, c.userID, b, presenceTTL); err != nil {
					log.Printf("set cursor error: %v", err)
				}
			}

		case "add_comment":
			cmt, err := c.engine.AddComment(msg.SessionID, c.userID, msg.Position, msg.Length, msg.Content)
			if err != nil {
				c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
				continue
			}
			c.SendMessage_Enqueue(ServerMessage{Type: "add_comment", SessionID: msg.SessionID, Comment: cmt})

		case "resolve_comment":
			if err := c.engine.ResolveComment(msg.SessionID, msg.CommentID); err != nil {
				c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
			}

		case "snapshot":
			content, revision, err := c.engine.Snapshot(msg.SessionID)
			if err != nil {
				c.SendMessage_Enqueue(ServerMessage{Type: "error", SessionID: msg.SessionID, Content: err.Error()})
				continue
			}
			c.SendMessage_Enqueue(ServerMessage{Type: "snapshot", SessionID: msg.SessionID, Revision: revision, Content: content})

		case "show_alive_members":
			members, err := c.hub.presence.GetAliveMembers(ctx, c.sessionID)
			if err != nil {
				log.Printf("get alive members error: %v", err)
				continue
			}
			out := make([]PresenceMember, len(members))
			for i, m := range members {
				out[i] = PresenceMember{UserID: m.UserID, Name: m.Name}
			}
			c.SendMessage_Enqueue(ServerMessage{Type: "show_alive_members", SessionID: c.sessionID, Members: out})

		default:
			// 忽略未知类型，回一条提示
			c.SendMessage_Enqueue(ServerMessage{Type: "ignored", Content: "Unknown message type"})
		}
	}
}

func (c *Conn) writeLoop() {
	// 持续消费通道里的出站消息
	for msg := range c.send {
		_ = c.ws.WriteJSON(msg)
	}
}
