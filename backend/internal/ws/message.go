package ws

import (
	"time"

	"collabEngine/backend/internal/collab"
)

type ClientMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Name      string `json:"name,omitempty"`
	Role      string `json:"role,omitempty"`
	// op_submit 的载荷：线格式固定，revision 必填（客户端最后看到的版本）
	OpType         string `json:"opType,omitempty"`
	Position       int    `json:"position"`
	Content        string `json:"content,omitempty"`
	Length         int    `json:"length,omitempty"`
	Revision       uint64 `json:"revision"`
	SelectionStart int    `json:"selectionStart,omitempty"`
	SelectionEnd   int    `json:"selectionEnd,omitempty"`
	CommentID      string `json:"commentId,omitempty"`
}

type PresenceMember struct {
	UserID string `json:"userId"`
	Name   string `json:"name,omitempty"`
}

type ServerMessage struct {
	Type      string                 `json:"type"`
	SessionID string                 `json:"sessionId,omitempty"`
	UserID    string                 `json:"userId,omitempty"`
	Revision  uint64                 `json:"revision,omitempty"`
	Members   []PresenceMember       `json:"members,omitempty"`
	Cursor    *collab.CursorPosition `json:"cursor,omitempty"`
	Comment   *collab.Comment        `json:"comment,omitempty"`
	Content   string                 `json:"content,omitempty"`
	Data      any                    `json:"data,omitempty"`
}

// op_applied：给提交者本人的 ack
type OpAppliedMessage struct {
	Type            string `json:"type"` // 固定 "op_applied"
	SessionID       string `json:"sessionId"`
	OperationID     string `json:"operationId"`
	BaseRevision    uint64 `json:"baseRevision"`
	CurrentRevision uint64 `json:"currentRevision"`
}

// op_broadcast：推给同会话其他协作者的已应用操作
// 前端收到后在本地应用 op，并把本地 revision 对齐到 revision
type OpBroadcastMessage struct {
	Type      string           `json:"type"` // 固定 "op_broadcast"
	SessionID string           `json:"sessionId"`
	Revision  uint64           `json:"revision"`
	Op        collab.Operation `json:"op"`
	AppliedAt time.Time        `json:"appliedAt,omitempty"`
}

// 出站消息接口
type OutboundMessage interface {
	MessageType() string
}

func (m ServerMessage) MessageType() string      { return m.Type }
func (m OpAppliedMessage) MessageType() string   { return m.Type }
func (m OpBroadcastMessage) MessageType() string { return m.Type }
