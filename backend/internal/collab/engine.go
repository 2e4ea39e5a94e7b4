package collab

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Engine 协作引擎：持有全部会话状态、修订历史、评论/批注，显式构造注入，
// 不依赖任何进程级单例
//
// 并发模型：
//   - sessions 表用 Engine.mu 保护（读多写少，双检查创建）
//   - 每个会话自带一把互斥锁，提交链路（读历史→变换→改内容→推版本→记历史）
//     整段持锁，同一会话的并发提交被串行化；不同会话互不影响
//   - 广播走 Bus 的非阻塞投递，不会拖住临界区
type Engine struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	histMu  sync.RWMutex
	history map[string][]Revision // documentID -> 版本递增的提交记录

	cmtMu       sync.RWMutex
	comments    map[string]map[string]*Comment
	annotations map[string]map[string]*Annotation

	bus *Bus
	// 可为 nil（单机/测试），跨实例扇出用
	dispatcher *KafkaDispatcher
}

type sessionState struct {
	mu sync.Mutex
	s  *Session
}

func NewEngine(bus *Bus, dispatcher *KafkaDispatcher) *Engine {
	if bus == nil {
		bus = NewBus()
	}
	return &Engine{
		sessions:    make(map[string]*sessionState),
		history:     make(map[string][]Revision),
		comments:    make(map[string]map[string]*Comment),
		annotations: make(map[string]map[string]*Annotation),
		bus:         bus,
		dispatcher:  dispatcher,
	}
}

func (e *Engine) Bus() *Bus { return e.bus }

// 参与者颜色按加入顺序轮转分配
var userColors = []string{
	"#e6194b", "#3cb44b", "#f58231", "#4363d8",
	"#911eb4", "#46f0f0", "#f032e6", "#bcf60c",
}

func (e *Engine) lookup(sessionID string) *sessionState {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sessions[sessionID]
}

func (e *Engine) CreateSession(documentID, title, createdBy, initialContent string) *Session {
	s := &Session{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Title:      title,
		CreatedBy:  createdBy,
		Users:      make(map[string]*CollabUser),
		Content:    initialContent,
	}
	e.mu.Lock()
	e.sessions[s.ID] = &sessionState{s: s}
	e.mu.Unlock()
	return cloneSession(s)
}

func (e *Engine) GetSession(sessionID string) (*Session, error) {
	st := e.lookup(sessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return cloneSession(st.s), nil
}

type JoinRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// JoinSession 把用户加入会话；重复加入视为重新上线（保留颜色，允许改名/改角色）
func (e *Engine) JoinSession(sessionID string, req JoinRequest) (*CollabUser, error) {
	st := e.lookup(sessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	u := st.s.Users[req.ID]
	if u == nil {
		u = &CollabUser{
			ID:    req.ID,
			Color: userColors[len(st.s.Users)%len(userColors)],
		}
		st.s.Users[req.ID] = u
	}
	u.Name = req.Name
	if req.Role != "" {
		u.Role = req.Role
	}
	u.IsOnline = true
	joined := *u
	st.mu.Unlock()

	e.bus.Emit(UserJoinedEvent{SessionID: sessionID, User: joined})
	return &joined, nil
}

// LeaveSession 标记下线并清掉光标；用户记录保留（角色、颜色可复用）
func (e *Engine) LeaveSession(sessionID, userID string) error {
	st := e.lookup(sessionID)
	if st == nil {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	u := st.s.Users[userID]
	if u == nil {
		st.mu.Unlock()
		return ErrUserNotInSession
	}
	u.IsOnline = false
	u.Cursor = nil
	st.mu.Unlock()

	e.bus.Emit(UserLeftEvent{SessionID: sessionID, UserID: userID})
	return nil
}

func (e *Engine) SetLocked(sessionID string, locked bool) error {
	st := e.lookup(sessionID)
	if st == nil {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	st.s.IsLocked = locked
	st.mu.Unlock()
	return nil
}

// OperationRequest 客户端提交的线格式；Revision 必填，是客户端最后看到的版本号
type OperationRequest struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Type      OpType `json:"type"`
	Position  int    `json:"position"`
	Content   string `json:"content,omitempty"`
	Length    int    `json:"length,omitempty"`
	Revision  uint64 `json:"revision"`
}

// ApplyOperation 提交链路：前置校验 → 对并发历史逐个变换 → 应用 → 提交 → 光标调整 → 广播
//
// 不管中间插了多少并发提交，格式合法的操作总能合并成功，不存在“冲突”错误；
// 所有失败（会话不存在/被锁/无权限）都发生在任何状态变更之前
func (e *Engine) ApplyOperation(req OperationRequest) (*Operation, error) {
	// 负的位置/长度或未知类型不许进历史：一条坏记录会歪掉后面所有变换
	switch req.Type {
	case OpInsert, OpDelete, OpRetain:
	default:
		return nil, ErrInvalidOperation
	}
	if req.Position < 0 || req.Length < 0 {
		return nil, ErrInvalidOperation
	}

	st := e.lookup(req.SessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	s := st.s

	if s.IsLocked {
		return nil, ErrSessionLocked
	}
	u := s.Users[req.UserID]
	if u == nil {
		return nil, ErrUserNotInSession
	}
	if !u.Role.CanEdit() {
		return nil, ErrPermissionDenied
	}

	now := time.Now()
	op := Operation{
		ID:        uuid.NewString(),
		SessionID: s.ID,
		UserID:    req.UserID,
		Type:      req.Type,
		Position:  req.Position,
		Content:   req.Content,
		Length:    req.Length,
		Revision:  req.Revision,
		Timestamp: now,
	}

	// 把提交的操作按提交顺序折叠过所有它没见过的已提交操作
	for _, rev := range e.revisionsAfter(s.DocumentID, req.Revision) {
		for _, committed := range rev.Operations {
			op = Transform(op, committed)
		}
	}

	s.Content = ApplyToContent(s.Content, op)
	s.CurrentRevision++
	op.Revision = s.CurrentRevision
	op.Applied = true

	e.appendRevision(Revision{
		Revision:        s.CurrentRevision,
		DocumentID:      s.DocumentID,
		SessionID:       s.ID,
		UserID:          req.UserID,
		Operations:      []Operation{op},
		ContentSnapshot: s.Content,
		Timestamp:       now,
	})

	adjustCursors(s, op)

	evt := OperationAppliedEvent{
		SessionID:  s.ID,
		DocumentID: s.DocumentID,
		Revision:   s.CurrentRevision,
		Op:         op,
		Content:    s.Content,
		AppliedAt:  now,
	}
	e.bus.Emit(evt)
	if e.dispatcher != nil {
		// 入队失败直接丢弃，绝不阻塞临界区
		e.dispatcher.Publish(evt)
	}

	return &op, nil
}

// 每次提交后重摆所有在线用户的光标：
//   - insert 在光标处或之前：光标右移插入长度
//   - delete 起点在光标之前：光标左移删除长度，但不越过删除起点
func adjustCursors(s *Session, op Operation) {
	limit := contentLen(s.Content)
	for _, u := range s.Users {
		if !u.IsOnline || u.Cursor == nil {
			continue
		}
		c := u.Cursor
		switch op.Type {
		case OpInsert:
			if op.Position <= c.Position {
				c.Position += op.InsertLen()
			}
		case OpDelete:
			if op.Position < c.Position {
				c.Position -= op.Length
				if c.Position < op.Position {
					c.Position = op.Position
				}
			}
		}
		// 提交后光标必须落在 [0, len(content)] 内
		if c.Position > limit {
			c.Position = limit
		}
		if c.SelectionEnd > limit {
			c.SelectionEnd = limit
		}
		if c.SelectionStart > c.SelectionEnd {
			c.SelectionStart = c.SelectionEnd
		}
	}
}

// TrackCursor 光标/选区上报，按用户 last-write-wins；位置钳到当前内容范围内
func (e *Engine) TrackCursor(sessionID, userID string, position, selectionStart, selectionEnd int) (*CursorPosition, error) {
	st := e.lookup(sessionID)
	if st == nil {
		return nil, ErrSessionNotFound
	}
	st.mu.Lock()
	u := st.s.Users[userID]
	if u == nil {
		st.mu.Unlock()
		return nil, ErrUserNotInSession
	}
	limit := contentLen(st.s.Content)
	cur := &CursorPosition{
		UserID:         userID,
		SessionID:      sessionID,
		Position:       clampPos(position, limit),
		SelectionStart: clampPos(selectionStart, limit),
		SelectionEnd:   clampPos(selectionEnd, limit),
	}
	u.Cursor = cur
	moved := *cur
	st.mu.Unlock()

	e.bus.Emit(CursorMovedEvent{SessionID: sessionID, Cursor: moved})
	return &moved, nil
}

// Snapshot 返回当前内容和版本号，供握手/追平用
func (e *Engine) Snapshot(sessionID string) (string, uint64, error) {
	st := e.lookup(sessionID)
	if st == nil {
		return "", 0, ErrSessionNotFound
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.s.Content, st.s.CurrentRevision, nil
}

// BroadcastChange 发一条 broadcast 事件，Recipients 是会话里当前在线的用户
func (e *Engine) BroadcastChange(sessionID, eventType string, data any) error {
	st := e.lookup(sessionID)
	if st == nil {
		return ErrSessionNotFound
	}
	st.mu.Lock()
	recipients := make([]string, 0, len(st.s.Users))
	for id, u := range st.s.Users {
		if u.IsOnline {
			recipients = append(recipients, id)
		}
	}
	st.mu.Unlock()

	e.bus.Emit(BroadcastEvent{
		SessionID:  sessionID,
		EventType:  eventType,
		Recipients: recipients,
		Data:       data,
	})
	return nil
}

func clampPos(p, limit int) int {
	if p < 0 {
		return 0
	}
	if p > limit {
		return limit
	}
	return p
}

// 返回的副本与内部状态脱钩，调用方随便读
func cloneSession(s *Session) *Session {
	out := *s
	out.Users = make(map[string]*CollabUser, len(s.Users))
	for id, u := range s.Users {
		cu := *u
		if u.Cursor != nil {
			c := *u.Cursor
			cu.Cursor = &c
		}
		out.Users[id] = &cu
	}
	return &out
}
