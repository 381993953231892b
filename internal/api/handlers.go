package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/salmanmuddhoo/ExamV2-sub001/internal/models"
	"github.com/salmanmuddhoo/ExamV2-sub001/internal/session"
)

// Transcripts is the read side of the conversation store.
type Transcripts interface {
	Transcript(ctx context.Context, conversationID int64, now time.Time) ([]*models.Message, error)
}

// Handler wires HTTP routes to the viewer-session registry.
type Handler struct {
	registry    *session.Registry
	transcripts Transcripts
}

// NewHandler constructs a Handler instance.
func NewHandler(registry *session.Registry, transcripts Transcripts) *Handler {
	return &Handler{registry: registry, transcripts: transcripts}
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	api := router.Group("/api")
	api.POST("/viewer/sessions", h.openSession)
	api.DELETE("/viewer/sessions/:id", h.closeSession)
	api.POST("/viewer/sessions/:id/messages", h.sendMessage)
	api.GET("/viewer/sessions/:id/messages", h.getTranscript)
	api.GET("/viewer/sessions/:id/viewer", h.viewerState)
	api.POST("/viewer/sessions/:id/viewer/signal", h.viewerSignal)
	api.POST("/viewer/sessions/:id/viewer/retry", h.viewerRetry)
	api.GET("/papers/:id/document", h.paperDocument)
}

type openSessionRequest struct {
	ExamPaperID int64  `json:"exam_paper_id"`
	UserID      int64  `json:"user_id"`
	Client      string `json:"client"`
}

func (h *Handler) openSession(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.ExamPaperID <= 0 || req.UserID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "exam_paper_id and user_id are required"})
		return
	}
	client := session.ClientKind(req.Client)
	if client == "" {
		client = session.ClientDesktop
	}

	sess, err := h.registry.Open(c.Request.Context(), req.ExamPaperID, req.UserID, client)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam paper not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	state := sess.State()
	transcript, err := h.transcripts.Transcript(c.Request.Context(), state.ConversationID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if transcript == nil {
		transcript = make([]*models.Message, 0)
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id":      sess.ID,
		"conversation_id": state.ConversationID,
		"paper": gin.H{
			"id":    sess.Paper.ID,
			"title": sess.Paper.Title,
		},
		"viewer":     sess.Viewer.CurrentState(),
		"transcript": transcript,
	})
}

func (h *Handler) closeSession(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	h.registry.Close(sess.ID)
	c.Status(http.StatusNoContent)
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

func (h *Handler) sendMessage(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	var req sendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	result, err := h.registry.Send(c.Request.Context(), sess.ID, req.Content)
	if err != nil {
		if errors.Is(err, session.ErrTurnInFlight) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) getTranscript(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	state := sess.State()
	transcript, err := h.transcripts.Transcript(c.Request.Context(), state.ConversationID, time.Now())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if transcript == nil {
		transcript = make([]*models.Message, 0)
	}
	c.JSON(http.StatusOK, gin.H{"messages": transcript})
}

func (h *Handler) viewerState(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sess.Viewer.CurrentState())
}

type viewerSignalRequest struct {
	Event string `json:"event"`
}

func (h *Handler) viewerSignal(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	var req viewerSignalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	switch req.Event {
	case "rendered":
		sess.Viewer.Rendered()
	case "failed":
		sess.Viewer.Failed()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "event must be rendered or failed"})
		return
	}
	c.JSON(http.StatusOK, sess.Viewer.CurrentState())
}

func (h *Handler) viewerRetry(c *gin.Context) {
	sess, ok := h.lookupSession(c)
	if !ok {
		return
	}
	if !sess.Viewer.Retry() {
		c.JSON(http.StatusConflict, gin.H{"error": "viewer is not exhausted"})
		return
	}
	c.JSON(http.StatusOK, sess.Viewer.CurrentState())
}

func (h *Handler) paperDocument(c *gin.Context) {
	paperID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || paperID <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid paper id"})
		return
	}
	data, err := h.registry.DocumentBytes(c.Request.Context(), paperID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "exam paper not found"})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "application/pdf", data)
}

func (h *Handler) lookupSession(c *gin.Context) (*session.Session, bool) {
	sess, err := h.registry.Get(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return sess, true
}
