package collab

import (
	"errors"
	"time"
	"unicode/utf8"
)

type OpType string

const (
	OpInsert OpType = "insert"
	OpDelete OpType = "delete"
	OpRetain OpType = "retain"
)

// Operation 一次原子编辑（insert/delete/retain）
// Revision 是客户端提交时最后看到的版本号，服务端应用后会盖成新版本号
// Content 只对 insert 有意义，Length 只对 delete/retain 有意义
type Operation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Type      OpType    `json:"type"`
	Position  int       `json:"position"`
	Content   string    `json:"content,omitempty"`
	Length    int       `json:"length,omitempty"`
	Revision  uint64    `json:"revision"`
	Timestamp time.Time `json:"timestamp"`
	Applied   bool      `json:"applied"`
}

// InsertLen 返回插入文本的长度（按 rune 计，不是字节）
func (op Operation) InsertLen() int {
	return utf8.RuneCountInString(op.Content)
}

type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleOwner  Role = "owner"
)

// 只有 editor/owner 可以改内容
func (r Role) CanEdit() bool {
	return r == RoleEditor || r == RoleOwner
}

type CursorPosition struct {
	UserID         string `json:"userId"`
	SessionID      string `json:"sessionId"`
	Position       int    `json:"position"`
	SelectionStart int    `json:"selectionStart,omitempty"`
	SelectionEnd   int    `json:"selectionEnd,omitempty"`
}

type CollabUser struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Color    string          `json:"color"`
	Role     Role            `json:"role"`
	IsOnline bool            `json:"isOnline"`
	Cursor   *CursorPosition `json:"cursor,omitempty"`
}

// Session 一个文档的实时协作上下文
// 不变量：CurrentRevision == 该文档已提交操作数；Content == 历史里第 CurrentRevision 条的快照
type Session struct {
	ID              string                 `json:"id"`
	DocumentID      string                 `json:"documentId"`
	Title           string                 `json:"title"`
	CreatedBy       string                 `json:"createdBy"`
	Users           map[string]*CollabUser `json:"users"`
	CurrentRevision uint64                 `json:"currentRevision"`
	Content         string                 `json:"content"`
	IsLocked        bool                   `json:"isLocked"`
}

// Revision 一次提交点，追加后不可变；按 DocumentID 归档，版本号严格递增且无间隙
type Revision struct {
	Revision        uint64      `json:"revision"`
	DocumentID      string      `json:"documentId"`
	SessionID       string      `json:"sessionId"`
	UserID          string      `json:"userId"`
	Operations      []Operation `json:"operations"`
	ContentSnapshot string      `json:"contentSnapshot"`
	Timestamp       time.Time   `json:"timestamp"`
}

type CommentReply struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Comment 锚定文本位置的评论；位置不随后续 OT 变换调整（见 DESIGN.md）
type Comment struct {
	ID        string         `json:"id"`
	SessionID string         `json:"sessionId"`
	UserID    string         `json:"userId"`
	Position  int            `json:"position"`
	Length    int            `json:"length"`
	Content   string         `json:"content"`
	Resolved  bool           `json:"resolved"`
	Replies   []CommentReply `json:"replies"`
	CreatedAt time.Time      `json:"createdAt"`
}

type Annotation struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Type      string    `json:"type"`
	Position  int       `json:"position"`
	Length    int       `json:"length"`
	CreatedAt time.Time `json:"createdAt"`
}

// 所有错误都在任何状态变更之前同步返回，提交链路不存在半完成状态
var (
	ErrInvalidOperation   = errors.New("INVALID_OPERATION")
	ErrSessionNotFound    = errors.New("SESSION_NOT_FOUND")
	ErrSessionLocked      = errors.New("SESSION_LOCKED")
	ErrUserNotInSession   = errors.New("USER_NOT_IN_SESSION")
	ErrPermissionDenied   = errors.New("PERMISSION_DENIED")
	ErrRevisionNotFound   = errors.New("REVISION_NOT_FOUND")
	ErrCommentNotFound    = errors.New("COMMENT_NOT_FOUND")
	ErrAnnotationNotFound = errors.New("ANNOTATION_NOT_FOUND")
)
