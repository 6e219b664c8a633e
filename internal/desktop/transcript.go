package desktop

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"istechat/answerer/answerer"
)

// Entry is one line of the chat transcript.
type Entry struct {
	FromUser bool
	Text     string
	At       time.Time
}

// Transcript is the ordered chat log shown by the client.
type Transcript struct {
	mu      sync.Mutex
	entries []Entry
	limit   int
}

func NewTranscript(limit int) *Transcript {
	if limit <= 0 {
		limit = 200
	}
	return &Transcript{limit: limit}
}

func (t *Transcript) AddQuestion(text string) {
	t.add(Entry{FromUser: true, Text: text, At: time.Now()})
}

func (t *Transcript) AddAnswer(a answerer.GeneratedAnswer) {
	t.add(Entry{Text: FormatReply(a), At: time.Now()})
}

func (t *Transcript) AddError(err error) {
	t.add(Entry{Text: "Hata: " + err.Error(), At: time.Now()})
}

func (t *Transcript) add(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	if len(t.entries) > t.limit {
		t.entries = t.entries[len(t.entries)-t.limit:]
	}
}

func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// At returns entry i, or a zero Entry when out of range.
func (t *Transcript) At(i int) Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	if i < 0 || i >= len(t.entries) {
		return Entry{}
	}
	return t.entries[i]
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

// Label renders an entry for the transcript list.
func (e Entry) Label() string {
	who := "Asistan"
	if e.FromUser {
		who = "Siz"
	}
	return fmt.Sprintf("[%s] %s: %s", e.At.Format("15:04"), who, e.Text)
}

// FormatReply renders an answer with its confidence, similar questions and links.
func FormatReply(a answerer.GeneratedAnswer) string {
	var b strings.Builder
	b.WriteString(a.Text)
	fmt.Fprintf(&b, "\n(güven %.2f", a.Confidence)
	if a.Category != nil {
		fmt.Fprintf(&b, ", %s", *a.Category)
	}
	b.WriteString(")")
	if len(a.SimilarQuestions) > 0 {
		b.WriteString("\nBenzer sorular:")
		for _, q := range a.SimilarQuestions {
			fmt.Fprintf(&b, "\n  • %s", q)
		}
	}
	if len(a.SuggestedLinks) > 0 {
		b.WriteString("\nBağlantılar:")
		for _, l := range a.SuggestedLinks {
			fmt.Fprintf(&b, "\n  • %s", l)
		}
	}
	return b.String()
}
