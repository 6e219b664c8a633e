package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"istechat/answerer/answerer"
	"istechat/answerer/internal/history"
)

type chatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"sessionId"`
}

type chatResponse struct {
	SessionID        string   `json:"sessionId"`
	Message          string   `json:"message"`
	Category         *string  `json:"category"`
	Subcategory      *string  `json:"subcategory"`
	Confidence       float32  `json:"confidence"`
	SimilarQuestions []string `json:"similarQuestions"`
	SuggestedLinks   []string `json:"suggestedLinks"`
}

type sessionDetail struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type historyResponse struct {
	Session  sessionDetail     `json:"session"`
	Messages []history.Message `json:"messages"`
}

func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Soru-cevap servisi çalışıyor"})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": s.opts.Version})
}

// handleChat handles POST /api/chat
func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message must not be empty"})
		return
	}
	ctx := c.Request.Context()

	if req.SessionID != "" {
		if _, err := s.history.GetSession(ctx, req.SessionID); err != nil {
			s.historyError(c, "Failed to open session", err)
			return
		}
	}

	answer, err := s.engine.Predict(ctx, message, s.opts.TopK)
	if err != nil {
		s.engineError(c, err)
		return
	}

	confidence := float64(answer.Confidence)
	session, err := s.history.RecordTurn(ctx, history.Turn{
		SessionID: req.SessionID,
		Question:  message,
		Answer: history.Message{
			Text:        answer.Text,
			Category:    answer.Category,
			Subcategory: answer.Subcategory,
			Confidence:  &confidence,
		},
	})
	if err != nil {
		s.historyError(c, "Failed to store conversation", err)
		return
	}

	c.JSON(http.StatusOK, chatResponse{
		SessionID:        session.ID,
		Message:          answer.Text,
		Category:         answer.Category,
		Subcategory:      answer.Subcategory,
		Confidence:       answer.Confidence,
		SimilarQuestions: answer.SimilarQuestions,
		SuggestedLinks:   answer.SuggestedLinks,
	})
}

// handleListSessions handles GET /api/chat/history
func (s *Server) handleListSessions(c *gin.Context) {
	sessions, err := s.history.ListSessions(c.Request.Context())
	if err != nil {
		s.historyError(c, "Failed to list sessions", err)
		return
	}
	if sessions == nil {
		sessions = []history.SessionSummary{}
	}
	c.JSON(http.StatusOK, sessions)
}

// handleGetSession handles GET /api/chat/history/:id
func (s *Server) handleGetSession(c *gin.Context) {
	ctx := c.Request.Context()
	id := c.Param("id")
	session, err := s.history.GetSession(ctx, id)
	if err != nil {
		s.historyError(c, "Failed to get session", err)
		return
	}
	messages, err := s.history.ListMessages(ctx, id, s.opts.MaxHistoryItems)
	if err != nil {
		s.historyError(c, "Failed to list messages", err)
		return
	}
	if messages == nil {
		messages = []history.Message{}
	}
	c.JSON(http.StatusOK, historyResponse{
		Session: sessionDetail{
			ID:        session.ID,
			Title:     session.Title,
			CreatedAt: session.CreatedAt,
			UpdatedAt: session.UpdatedAt,
		},
		Messages: messages,
	})
}

// handleDeleteSession handles DELETE /api/chat/history/:id
func (s *Server) handleDeleteSession(c *gin.Context) {
	if err := s.history.DeleteSession(c.Request.Context(), c.Param("id")); err != nil {
		s.historyError(c, "Failed to delete session", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) historyError(c *gin.Context, msg string, err error) {
	if errors.Is(err, history.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	s.logger.Error(msg, zap.Error(err))
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}

func (s *Server) engineError(c *gin.Context, err error) {
	_ = c.Error(err)
	switch {
	case errors.Is(err, answerer.ErrMissingArtifact), errors.Is(err, answerer.ErrInconsistentCatalog):
		s.logger.Error("answer engine unavailable", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Answer engine is not available"})
	default:
		s.logger.Error("prediction failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate answer"})
	}
}
