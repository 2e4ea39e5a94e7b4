package ws

import (
	"sync"

	"collabEngine/backend/internal/cache"
	"collabEngine/backend/internal/collab"
)

type Hub struct {
	presence cache.PresenceCache
	// 保护 rooms；加入/离开/广播都先拿锁
	mu sync.RWMutex
	// sessionID -> set of connections
	// 房间里存连接而不是 userID：一个用户可开多个标签页/设备，广播要逐连接发
	rooms map[string]map[*Conn]struct{}
}

func NewHub(p cache.PresenceCache) *Hub {
	return &Hub{presence: p, rooms: make(map[string]map[*Conn]struct{})}
}

func (h *Hub) Join(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[sessionID] == nil {
		h.rooms[sessionID] = make(map[*Conn]struct{})
	}
	h.rooms[sessionID][c] = struct{}{}
}

func (h *Hub) Leave(sessionID string, c *Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := h.rooms[sessionID]; ok {
		delete(conns, c)
		if len(conns) == 0 {
			delete(h.rooms, sessionID)
		}
	}
}

func (h *Hub) broadcast(sessionID string, msg OutboundMessage) {
	// 持锁期间把连接拷出来，断开连接的 Leave 才不会和遍历撞上
	h.mu.RLock()
	conns := make([]*Conn, 0, len(h.rooms[sessionID]))
	for c := range h.rooms[sessionID] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()
	for _, c := range conns {
		c.SendMessage_Enqueue(msg)
	}
}

// AttachBus 把引擎事件接到房间广播上
// 引擎只管发事件，真正推给远端客户端的是这里
func (h *Hub) AttachBus(bus *collab.Bus) {
	bus.On(collab.EventOperationApplied, func(evt collab.Event) {
		e := evt.(collab.OperationAppliedEvent)
		h.broadcast(e.SessionID, OpBroadcastMessage{
			Type:      "op_broadcast",
			SessionID: e.SessionID,
			Revision:  e.Revision,
			Op:        e.Op,
			AppliedAt: e.AppliedAt,
		})
	})
	bus.On(collab.EventCursorMoved, func(evt collab.Event) {
		e := evt.(collab.CursorMovedEvent)
		cur := e.Cursor
		h.broadcast(e.SessionID, ServerMessage{Type: "cursor", SessionID: e.SessionID, UserID: cur.UserID, Cursor: &cur})
	})
	bus.On(collab.EventCommentAdded, func(evt collab.Event) {
		e := evt.(collab.CommentAddedEvent)
		cmt := e.Comment
		h.broadcast(e.SessionID, ServerMessage{Type: "comment", SessionID: e.SessionID, Comment: &cmt})
	})
	bus.On(collab.EventUserJoined, func(evt collab.Event) {
		e := evt.(collab.UserJoinedEvent)
		h.broadcast(e.SessionID, ServerMessage{
			Type:      "presence",
			SessionID: e.SessionID,
			Members:   []PresenceMember{{UserID: e.User.ID, Name: e.User.Name}},
		})
	})
	bus.On(collab.EventUserLeft, func(evt collab.Event) {
		e := evt.(collab.UserLeftEvent)
		h.broadcast(e.SessionID, ServerMessage{Type: "user_left", SessionID: e.SessionID, UserID: e.UserID})
	})
	bus.On(collab.EventBroadcast, func(evt collab.Event) {
		e := evt.(collab.BroadcastEvent)
		h.broadcast(e.SessionID, ServerMessage{Type: e.EventType, SessionID: e.SessionID, Data: e.Data})
	})
}
