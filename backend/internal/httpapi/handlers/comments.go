package handlers

import (
	"github.com/gin-gonic/gin"
)

type commentRequest struct {
	Position int    `json:"position"`
	Length   int    `json:"length"`
	Content  string `json:"content" binding:"required"`
}

func (h *SessionHandler) AddComment(c *gin.Context) {
	var req commentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	cmt, err := h.engine.AddComment(c.Param("sessionID"), c.GetString("userId"), req.Position, req.Length, req.Content)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, cmt)
}

func (h *SessionHandler) ListComments(c *gin.Context) {
	c.JSON(200, gin.H{"comments": h.engine.Comments(c.Param("sessionID"))})
}

type replyRequest struct {
	Content string `json:"content" binding:"required"`
}

func (h *SessionHandler) ReplyToComment(c *gin.Context) {
	var req replyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	cmt, err := h.engine.ReplyToComment(c.Param("sessionID"), c.Param("commentID"), c.GetString("userId"), req.Content)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, cmt)
}

func (h *SessionHandler) ResolveComment(c *gin.Context) {
	if err := h.engine.ResolveComment(c.Param("sessionID"), c.Param("commentID")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, gin.H{"message": "ok"})
}

type annotationRequest struct {
	Type     string `json:"type" binding:"required"`
	Position int    `json:"position"`
	Length   int    `json:"length"`
}

func (h *SessionHandler) AddAnnotation(c *gin.Context) {
	var req annotationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	a, err := h.engine.AddAnnotation(c.Param("sessionID"), c.GetString("userId"), req.Type, req.Position, req.Length)
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, a)
}

func (h *SessionHandler) ListAnnotations(c *gin.Context) {
	c.JSON(200, gin.H{"annotations": h.engine.Annotations(c.Param("sessionID"))})
}

func (h *SessionHandler) RemoveAnnotation(c *gin.Context) {
	if err := h.engine.RemoveAnnotation(c.Param("sessionID"), c.Param("annotationID")); err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(200, gin.H{"message": "ok"})
}
