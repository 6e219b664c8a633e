package history

import (
	"time"
	"unicode/utf8"
)

// Message senders.
const (
	SenderUser = "user"
	SenderBot  = "bot"
)

// titleRunes is how much of the first question becomes the session title.
const titleRunes = 60

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SessionSummary is a row of the history listing.
type SessionSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	LastUpdated  time.Time `json:"lastUpdated"`
	MessageCount int       `json:"messageCount"`
}

type Message struct {
	ID          int64     `json:"id"`
	SessionID   string    `json:"-"`
	Sender      string    `json:"sender"`
	Text        string    `json:"text"`
	Category    *string   `json:"category"`
	Subcategory *string   `json:"subcategory"`
	Confidence  *float64  `json:"confidence"`
	CreatedAt   time.Time `json:"createdAt"`
}

type sessionRow struct {
	ID        string  `db:"id"`
	Title     *string `db:"title"`
	CreatedAt int64   `db:"created_at"`
	UpdatedAt int64   `db:"updated_at"`
}

func (r sessionRow) toSession() Session {
	s := Session{ID: r.ID, CreatedAt: fromMillis(r.CreatedAt), UpdatedAt: fromMillis(r.UpdatedAt)}
	if r.Title != nil {
		s.Title = *r.Title
	}
	return s
}

type summaryRow struct {
	ID           string  `db:"id"`
	Title        *string `db:"title"`
	UpdatedAt    int64   `db:"updated_at"`
	MessageCount int     `db:"message_count"`
}

type messageRow struct {
	ID          int64    `db:"id"`
	SessionID   string   `db:"session_id"`
	Sender      string   `db:"sender"`
	Text        string   `db:"text"`
	Category    *string  `db:"category"`
	Subcategory *string  `db:"subcategory"`
	Confidence  *float64 `db:"confidence"`
	CreatedAt   int64    `db:"created_at"`
}

func (r messageRow) toMessage() Message {
	return Message{
		ID:          r.ID,
		SessionID:   r.SessionID,
		Sender:      r.Sender,
		Text:        r.Text,
		Category:    r.Category,
		Subcategory: r.Subcategory,
		Confidence:  r.Confidence,
		CreatedAt:   fromMillis(r.CreatedAt),
	}
}

// TitleFromMessage derives a session title from its first question.
func TitleFromMessage(text string) string {
	if utf8.RuneCountInString(text) <= titleRunes {
		return text
	}
	return string([]rune(text)[:titleRunes]) + "..."
}

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }
