package collab

import (
	"sync"
	"time"
)

type EventKind string

const (
	EventOperationApplied EventKind = "operation:applied"
	EventUserJoined       EventKind = "user:joined"
	EventUserLeft         EventKind = "user:left"
	EventCommentAdded     EventKind = "comment:added"
	EventCursorMoved      EventKind = "cursor:moved"
	EventBroadcast        EventKind = "broadcast"
)

// Event 带类型标签的事件；每种 Kind 对应一个具体的载荷结构体，
// 处理器按 Kind 订阅后类型断言到对应结构体即可
type Event interface {
	Kind() EventKind
}

type OperationAppliedEvent struct {
	SessionID  string    `json:"sessionId"`
	DocumentID string    `json:"documentId"`
	Revision   uint64    `json:"revision"`
	Op         Operation `json:"op"`
	Content    string    `json:"content"`
	AppliedAt  time.Time `json:"appliedAt"`
}

type UserJoinedEvent struct {
	SessionID string     `json:"sessionId"`
	User      CollabUser `json:"user"`
}

type UserLeftEvent struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
}

type CommentAddedEvent struct {
	SessionID string  `json:"sessionId"`
	Comment   Comment `json:"comment"`
}

type CursorMovedEvent struct {
	SessionID string         `json:"sessionId"`
	Cursor    CursorPosition `json:"cursor"`
}

// BroadcastEvent 面向传输层的扇出通知，Recipients 列出会话里当前在线的用户
// 真正把数据推到远端客户端是外部协作者（ws/SSE）的事
type BroadcastEvent struct {
	SessionID  string   `json:"sessionId"`
	EventType  string   `json:"eventType"`
	Recipients []string `json:"recipients"`
	Data       any      `json:"data,omitempty"`
}

func (OperationAppliedEvent) Kind() EventKind { return EventOperationApplied }
func (UserJoinedEvent) Kind() EventKind       { return EventUserJoined }
func (UserLeftEvent) Kind() EventKind         { return EventUserLeft }
func (CommentAddedEvent) Kind() EventKind     { return EventCommentAdded }
func (CursorMovedEvent) Kind() EventKind      { return EventCursorMoved }
func (BroadcastEvent) Kind() EventKind        { return EventBroadcast }

type Handler func(Event)

type Subscription struct {
	kind EventKind
	id   uint64
}

type subscriber struct {
	ch chan Event
}

// Bus 按事件类型分发的发布订阅
// 每个订阅者有自己的有界队列 + 消费 goroutine，Emit 永远不等订阅者：
// 队列满了直接丢，保证提交临界区不被广播拖住
type Bus struct {
	mu     sync.RWMutex
	subs   map[EventKind]map[uint64]*subscriber
	nextID uint64
}

func NewBus() *Bus {
	return &Bus{subs: make(map[EventKind]map[uint64]*subscriber)}
}

func (b *Bus) On(kind EventKind, fn Handler) Subscription {
	s := &subscriber{ch: make(chan Event, 64)}
	go func() {
		for evt := range s.ch {
			fn(evt)
		}
	}()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	if b.subs[kind] == nil {
		b.subs[kind] = make(map[uint64]*subscriber)
	}
	b.subs[kind][id] = s
	return Subscription{kind: kind, id: id}
}

func (b *Bus) Off(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if m := b.subs[sub.kind]; m != nil {
		if s := m[sub.id]; s != nil {
			delete(m, sub.id)
			close(s.ch)
		}
	}
}

// Emit 非阻塞投递；Off 持写锁关通道、这里持读锁发送，二者不会撞上
func (b *Bus) Emit(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs[evt.Kind()] {
		select {
		case s.ch <- evt:
		default:
			// 订阅者跟不上，丢弃
		}
	}
}
