package collab

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// 评论与批注：按会话分桶的独立命名空间，普通 CRUD
// 位置锚定的是创建时的文本偏移，后续编辑不会移动它们（与光标不同，见 DESIGN.md）

func (e *Engine) AddComment(sessionID, userID string, position, length int, content string) (*Comment, error) {
	if e.lookup(sessionID) == nil {
		return nil, ErrSessionNotFound
	}
	c := &Comment{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Position:  position,
		Length:    length,
		Content:   content,
		Replies:   []CommentReply{},
		CreatedAt: time.Now(),
	}
	e.cmtMu.Lock()
	if e.comments[sessionID] == nil {
		e.comments[sessionID] = make(map[string]*Comment)
	}
	e.comments[sessionID][c.ID] = c
	added := cloneComment(c)
	e.cmtMu.Unlock()

	e.bus.Emit(CommentAddedEvent{SessionID: sessionID, Comment: *added})
	return added, nil
}

func (e *Engine) ReplyToComment(sessionID, commentID, userID, content string) (*Comment, error) {
	e.cmtMu.Lock()
	defer e.cmtMu.Unlock()
	c := e.comments[sessionID][commentID]
	if c == nil {
		return nil, ErrCommentNotFound
	}
	c.Replies = append(c.Replies, CommentReply{
		ID:        uuid.NewString(),
		UserID:    userID,
		Content:   content,
		CreatedAt: time.Now(),
	})
	return cloneComment(c), nil
}

// ResolveComment 永久标记为已解决，记录本身不删
func (e *Engine) ResolveComment(sessionID, commentID string) error {
	e.cmtMu.Lock()
	defer e.cmtMu.Unlock()
	c := e.comments[sessionID][commentID]
	if c == nil {
		return ErrCommentNotFound
	}
	c.Resolved = true
	return nil
}

func (e *Engine) Comments(sessionID string) []Comment {
	e.cmtMu.RLock()
	m := e.comments[sessionID]
	out := make([]Comment, 0, len(m))
	for _, c := range m {
		out = append(out, *cloneComment(c))
	}
	e.cmtMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (e *Engine) AddAnnotation(sessionID, userID, annotationType string, position, length int) (*Annotation, error) {
	if e.lookup(sessionID) == nil {
		return nil, ErrSessionNotFound
	}
	a := &Annotation{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		UserID:    userID,
		Type:      annotationType,
		Position:  position,
		Length:    length,
		CreatedAt: time.Now(),
	}
	e.cmtMu.Lock()
	if e.annotations[sessionID] == nil {
		e.annotations[sessionID] = make(map[string]*Annotation)
	}
	e.annotations[sessionID][a.ID] = a
	added := *a
	e.cmtMu.Unlock()
	return &added, nil
}

func (e *Engine) RemoveAnnotation(sessionID, annotationID string) error {
	e.cmtMu.Lock()
	defer e.cmtMu.Unlock()
	if e.annotations[sessionID][annotationID] == nil {
		return ErrAnnotationNotFound
	}
	delete(e.annotations[sessionID], annotationID)
	return nil
}

func (e *Engine) Annotations(sessionID string) []Annotation {
	e.cmtMu.RLock()
	m := e.annotations[sessionID]
	out := make([]Annotation, 0, len(m))
	for _, a := range m {
		out = append(out, *a)
	}
	e.cmtMu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func cloneComment(c *Comment) *Comment {
	out := *c
	out.Replies = make([]CommentReply, len(c.Replies))
	copy(out.Replies, c.Replies)
	return &out
}
