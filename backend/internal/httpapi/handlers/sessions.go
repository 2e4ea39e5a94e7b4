package handlers

import (
	"database/sql"
	"errors"
	"log"
	"strconv"

	"collabEngine/backend/internal/collab"
	"collabEngine/backend/internal/store"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type SessionHandler struct {
	engine *collab.Engine
	docs   *store.DocumentStore  // 可为 nil（无 mysql 的部署）
	snaps  *store.SnapshotStore  // 同上
}

func NewSessionHandler(engine *collab.Engine, docs *store.DocumentStore, snaps *store.SnapshotStore) *SessionHandler {
	return &SessionHandler{engine: engine, docs: docs, snaps: snaps}
}

// 引擎错误 → HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, collab.ErrInvalidOperation):
		return 400
	case errors.Is(err, collab.ErrSessionNotFound),
		errors.Is(err, collab.ErrRevisionNotFound),
		errors.Is(err, collab.ErrCommentNotFound),
		errors.Is(err, collab.ErrAnnotationNotFound):
		return 404
	case errors.Is(err, collab.ErrPermissionDenied),
		errors.Is(err, collab.ErrUserNotInSession):
		return 403
	case errors.Is(err, collab.ErrSessionLocked):
		return 409
	default:
		return 500
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusOf(err), gin.H{"error": err.Error()})
}

type createSessionRequest struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title" binding:"required"`
	Content    string `json:"content"`
}

func (h *SessionHandler) CreateSession(c *gin.Context) {
	userID := c.GetString("userId")
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	docID := req.DocumentID
	if docID == "" && h.docs != nil {
		// 先按标题找已有文档，找不到再建一条元数据
		id, err := h.docs.GetDocumentID(c.Request.Context(), req.Title)
		switch {
		case err == nil:
			docID = id
		case errors.Is(err, gorm.ErrRecordNotFound):
			id, err = h.docs.CreateDocument(c.Request.Context(), userID, req.Title)
			if err != nil {
				c.JSON(500, gin.H{"error": "create document failed"})
				return
			}
			docID = id
		default:
			c.JSON(500, gin.H{"error": "document lookup failed"})
			return
		}
	}

	content := req.Content
	if content == "" && docID != "" && h.snaps != nil {
		// 冷启动回源：没给初始内容就从归档里捞最新快照
		if snapshot, _, err := h.snaps.LoadLatestSnapshot(c.Request.Context(), docID); err == nil {
			content = snapshot
		} else if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("load snapshot failed doc=%s err=%v", docID, err)
		}
	}

	s := h.engine.CreateSession(docID, req.Title, userID, content)
	c.JSON(200, s)
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	s, err := h.engine.GetSession(c.Param("sessionID"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, s)
}

type joinRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

func (h *SessionHandler) JoinSession(c *gin.Context) {
	var req joinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	name := req.Name
	if name == "" {
		name = c.GetString("username")
	}
	u, err := h.engine.JoinSession(c.Param("sessionID"), collab.JoinRequest{
		ID:   c.GetString("userId"),
		Name: name,
		Role: collab.Role(req.Role),
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, u)
}

func (h *SessionHandler) LeaveSession(c *gin.Context) {
	if err := h.engine.LeaveSession(c.Param("sessionID"), c.GetString("userId")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, gin.H{"message": "ok"})
}

type lockRequest struct {
	Locked *bool `json:"locked" binding:"required"`
}

// SetLocked 锁定/解锁会话；锁定期间所有提交被拒绝（409）
func (h *SessionHandler) SetLocked(c *gin.Context) {
	var req lockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.SetLocked(c.Param("sessionID"), *req.Locked); err != nil {
		abortWith(c, err)
		return
	}
	if err := h.engine.BroadcastChange(c.Param("sessionID"), "session_locked", gin.H{"locked": *req.Locked}); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, gin.H{"locked": *req.Locked})
}

type operationRequest struct {
	Type     string `json:"type" binding:"required"`
	Position int    `json:"position"`
	Content  string `json:"content"`
	Length   int    `json:"length"`
	Revision uint64 `json:"revision"`
}

func (h *SessionHandler) ApplyOperation(c *gin.Context) {
	var req operationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	op, err := h.engine.ApplyOperation(collab.OperationRequest{
		SessionID: c.Param("sessionID"),
		UserID:    c.GetString("userId"),
		Type:      collab.OpType(req.Type),
		Position:  req.Position,
		Content:   req.Content,
		Length:    req.Length,
		Revision:  req.Revision,
	})
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, op)
}

type cursorRequest struct {
	Position       int `json:"position"`
	SelectionStart int `json:"selectionStart"`
	SelectionEnd   int `json:"selectionEnd"`
}

func (h *SessionHandler) TrackCursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	cur, err := h.engine.TrackCursor(c.Param("sessionID"), c.GetString("userId"), req.Position, req.SelectionStart, req.SelectionEnd)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, cur)
}

// ArchiveDocument 软删除：只打 archived 标记，快照和历史都留着
func (h *SessionHandler) ArchiveDocument(c *gin.Context) {
	if h.docs == nil {
		c.JSON(501, gin.H{"error": "document store not configured"})
		return
	}
	if err := h.docs.ArchiveDocument(c.Request.Context(), c.Param("documentID")); err != nil {
		c.JSON(500, gin.H{"error": "archive failed"})
		return
	}
	c.JSON(200, gin.H{"message": "ok"})
}

func (h *SessionHandler) GetRevisionHistory(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	revs := h.engine.GetRevisionHistory(c.Param("documentID"), limit)
	c.JSON(200, gin.H{"revisions": revs})
}

func (h *SessionHandler) GetRevision(c *gin.Context) {
	n, err := strconv.ParseUint(c.Param("revision"), 10, 64)
	if err != nil {
		c.JSON(400, gin.H{"error": "invalid revision"})
		return
	}
	rev, err := h.engine.GetRevision(c.Param("documentID"), n)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, rev)
}

type revertRequest struct {
	Revision uint64 `json:"revision" binding:"required"`
}

func (h *SessionHandler) RevertToRevision(c *gin.Context) {
	var req revertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if err := h.engine.RevertToRevision(c.Param("sessionID"), req.Revision, c.GetString("userId")); err != nil {
		abortWith(c, err)
		return
	}
	content, revision, err := h.engine.Snapshot(c.Param("sessionID"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, gin.H{"content": content, "revision": revision})
}
