// Package server exposes the answer engine and chat history over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"istechat/answerer/answerer"
	"istechat/answerer/internal/history"
)

// Predictor answers a single question.
type Predictor interface {
	Predict(ctx context.Context, text string, topK int) (answerer.GeneratedAnswer, error)
}

// History is the chat history repository used by the handlers.
type History interface {
	GetSession(ctx context.Context, id string) (history.Session, error)
	RecordTurn(ctx context.Context, turn history.Turn) (history.Session, error)
	ListSessions(ctx context.Context) ([]history.SessionSummary, error)
	ListMessages(ctx context.Context, sessionID string, limit int) ([]history.Message, error)
	DeleteSession(ctx context.Context, id string) error
}

// Options tunes the HTTP surface.
type Options struct {
	Version         string
	MaxHistoryItems int
	TopK            int
}

type Server struct {
	router  *gin.Engine
	engine  Predictor
	history History
	opts    Options
	logger  *zap.Logger
}

const shutdownTimeout = 5 * time.Second

// New builds the router. logger may be nil.
func New(engine Predictor, store History, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxHistoryItems <= 0 {
		opts.MaxHistoryItems = 200
	}
	if opts.TopK <= 0 {
		opts.TopK = 3
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger), cors())

	s := &Server{router: router, engine: engine, history: store, opts: opts, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleRoot)

	api := s.router.Group("/api")
	{
		api.GET("/health", s.handleHealth)
		api.POST("/chat", s.handleChat)
		api.GET("/chat/history", s.handleListSessions)
		api.GET("/chat/history/:id", s.handleGetSession)
		api.DELETE("/chat/history/:id", s.handleDeleteSession)
	}
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("HTTP server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}
