// Package history persists chat sessions and their messages in SQLite.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver
)

//go:embed migrations/*.sql
var migrations embed.FS

// ErrSessionNotFound is returned for operations on an unknown session id.
var ErrSessionNotFound = errors.New("session not found")

// Store is the chat history repository.
type Store struct {
	db     *sqlx.DB
	logger *zap.Logger
	now    func() time.Time
}

// Open connects to the database at path, creating it and applying migrations
// as needed.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect history database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps pragmas and locks simple.
	db.SetMaxOpenConns(1)
	if err := migrateDB(db, logger); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("history database ready", zap.String("path", path))
	return &Store{db: db, logger: logger, now: time.Now}, nil
}

func migrateDB(db *sqlx.DB, logger *zap.Logger) error {
	src, err := iofs.New(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "chat_history", driver)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("run migrations: %w", err)
	}
	version, _, _ := m.Version()
	logger.Debug("history migrations applied", zap.Uint("version", version))
	return nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSession starts a new session with a random id.
func (s *Store) CreateSession(ctx context.Context, title string) (Session, error) {
	return createSession(ctx, s.db, title, toMillis(s.now()))
}

// GetSession loads one session.
func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	return getSession(ctx, s.db, id)
}

// UpdateSession sets the title when non-empty and touches updated_at.
func (s *Store) UpdateSession(ctx context.Context, id, title string) error {
	return updateSession(ctx, s.db, id, title, toMillis(s.now()))
}

// AddMessage appends a message to its session and returns it with id and
// timestamp set.
func (s *Store) AddMessage(ctx context.Context, msg Message) (Message, error) {
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = s.now()
	}
	return addMessage(ctx, s.db, msg)
}

// Turn is one exchange of a chat: the user's question and the bot's reply.
type Turn struct {
	// SessionID selects the session; empty starts a new one.
	SessionID string
	Question  string
	Answer    Message
}

// RecordTurn stores a question and its answer in a single transaction. A new
// or untitled session gets its title from the question. Nothing is written
// when any step fails.
func (s *Store) RecordTurn(ctx context.Context, turn Turn) (Session, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return Session{}, fmt.Errorf("begin turn: %w", err)
	}
	defer tx.Rollback()

	now := s.now()
	title := TitleFromMessage(turn.Question)
	var sess Session
	if turn.SessionID == "" {
		sess, err = createSession(ctx, tx, title, toMillis(now))
	} else {
		sess, err = getSession(ctx, tx, turn.SessionID)
	}
	if err != nil {
		return Session{}, err
	}
	if sess.Title != "" {
		title = ""
	}

	if _, err := addMessage(ctx, tx, Message{
		SessionID: sess.ID,
		Sender:    SenderUser,
		Text:      turn.Question,
		CreatedAt: now,
	}); err != nil {
		return Session{}, err
	}
	answer := turn.Answer
	answer.SessionID = sess.ID
	answer.Sender = SenderBot
	answer.CreatedAt = now
	if _, err := addMessage(ctx, tx, answer); err != nil {
		return Session{}, err
	}
	if err := updateSession(ctx, tx, sess.ID, title, toMillis(now)); err != nil {
		return Session{}, err
	}
	if err := tx.Commit(); err != nil {
		return Session{}, fmt.Errorf("commit turn: %w", err)
	}
	if title != "" {
		sess.Title = title
	}
	sess.UpdatedAt = fromMillis(toMillis(now))
	return sess, nil
}

func createSession(ctx context.Context, db sqlx.ExtContext, title string, now int64) (Session, error) {
	row := sessionRow{ID: uuid.NewString(), CreatedAt: now, UpdatedAt: now}
	if title != "" {
		row.Title = &title
	}
	_, err := sqlx.NamedExecContext(ctx, db,
		`INSERT INTO chat_sessions (id, title, created_at, updated_at) VALUES (:id, :title, :created_at, :updated_at)`, row)
	if err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return row.toSession(), nil
}

func getSession(ctx context.Context, db sqlx.QueryerContext, id string) (Session, error) {
	var row sessionRow
	err := sqlx.GetContext(ctx, db, &row, `SELECT id, title, created_at, updated_at FROM chat_sessions WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrSessionNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return row.toSession(), nil
}

func updateSession(ctx context.Context, db sqlx.ExecerContext, id, title string, now int64) error {
	var (
		res sql.Result
		err error
	)
	if title != "" {
		res, err = db.ExecContext(ctx, `UPDATE chat_sessions SET title = ?, updated_at = ? WHERE id = ?`, title, now, id)
	} else {
		res, err = db.ExecContext(ctx, `UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, now, id)
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return requireAffected(res)
}

func addMessage(ctx context.Context, db sqlx.ExtContext, msg Message) (Message, error) {
	if msg.Sender != SenderUser && msg.Sender != SenderBot {
		return Message{}, fmt.Errorf("invalid sender %q", msg.Sender)
	}
	if _, err := getSession(ctx, db, msg.SessionID); err != nil {
		return Message{}, err
	}
	row := messageRow{
		SessionID:   msg.SessionID,
		Sender:      msg.Sender,
		Text:        msg.Text,
		Category:    msg.Category,
		Subcategory: msg.Subcategory,
		Confidence:  msg.Confidence,
		CreatedAt:   toMillis(msg.CreatedAt),
	}
	res, err := sqlx.NamedExecContext(ctx, db,
		`INSERT INTO chat_messages (session_id, sender, text, category, subcategory, confidence, created_at)
		 VALUES (:session_id, :sender, :text, :category, :subcategory, :confidence, :created_at)`, row)
	if err != nil {
		return Message{}, fmt.Errorf("add message: %w", err)
	}
	if row.ID, err = res.LastInsertId(); err != nil {
		return Message{}, fmt.Errorf("add message: %w", err)
	}
	return row.toMessage(), nil
}

// ListSessions returns sessions that hold at least one message, most
// recently updated first.
func (s *Store) ListSessions(ctx context.Context) ([]SessionSummary, error) {
	var rows []summaryRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT s.id, s.title, s.updated_at, COUNT(m.id) AS message_count
		FROM chat_sessions s
		JOIN chat_messages m ON m.session_id = s.id
		GROUP BY s.id, s.title, s.updated_at
		ORDER BY s.updated_at DESC, s.rowid DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]SessionSummary, len(rows))
	for i, r := range rows {
		out[i] = SessionSummary{ID: r.ID, LastUpdated: fromMillis(r.UpdatedAt), MessageCount: r.MessageCount}
		if r.Title != nil {
			out[i].Title = *r.Title
		}
	}
	return out, nil
}

// ListMessages returns up to limit messages of a session, oldest first.
// limit <= 0 returns all of them.
func (s *Store) ListMessages(ctx context.Context, sessionID string, limit int) ([]Message, error) {
	if _, err := s.GetSession(ctx, sessionID); err != nil {
		return nil, err
	}
	query := `SELECT id, session_id, sender, text, category, subcategory, confidence, created_at
		FROM chat_messages WHERE session_id = ? ORDER BY id ASC`
	args := []any{sessionID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var rows []messageRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	out := make([]Message, len(rows))
	for i, r := range rows {
		out[i] = r.toMessage()
	}
	return out, nil
}

// DeleteSession removes a session and, by cascade, its messages.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM chat_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	s.logger.Debug("session deleted", zap.String("id", id))
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSessionNotFound
	}
	return nil
}
