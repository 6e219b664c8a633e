package desktop

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fyne.io/fyne/v2/data/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"istechat/answerer/answerer"
)

func TestLogCaptureKeepsLastLines(t *testing.T) {
	b := binding.NewString()
	lc := NewLogCapture(b, 3)
	for i := 1; i <= 5; i++ {
		_, err := fmt.Fprintf(lc, "line %d\r\n", i)
		require.NoError(t, err)
	}
	got, err := b.Get()
	require.NoError(t, err)
	assert.Equal(t, "line 3\nline 4\nline 5", got)
}

func TestNewLoggerWritesToCapture(t *testing.T) {
	b := binding.NewString()
	lc := NewLogCapture(b, 10)
	var other strings.Builder
	logger := NewLogger(lc, zapcore.AddSync(&other), zapcore.InfoLevel)
	logger.Debug("hidden")
	logger.Info("model loaded")

	got, err := b.Get()
	require.NoError(t, err)
	assert.Contains(t, got, "model loaded")
	assert.NotContains(t, got, "hidden")
	assert.Contains(t, other.String(), "model loaded")
}

func TestFormatReply(t *testing.T) {
	category := "akademik"
	got := FormatReply(answerer.GeneratedAnswer{
		Text:             "Öğrenci işlerine başvurun.",
		Category:         &category,
		Confidence:       0.92,
		SimilarQuestions: []string{"kayıt işlemleri nasıl"},
		SuggestedLinks:   []string{"https://example.edu/kayit"},
	})
	assert.Equal(t, "Öğrenci işlerine başvurun.\n(güven 0.92, akademik)\nBenzer sorular:\n  • kayıt işlemleri nasıl\nBağlantılar:\n  • https://example.edu/kayit", got)

	assert.Equal(t, "x\n(güven 0.10)", FormatReply(answerer.GeneratedAnswer{Text: "x", Confidence: 0.1}))
}

func TestTranscript(t *testing.T) {
	tr := NewTranscript(3)
	tr.AddQuestion("burs ne zaman")
	tr.AddAnswer(answerer.GeneratedAnswer{Text: "Eylülde."})
	tr.AddError(errors.New("model yok"))
	tr.AddQuestion("yurt")

	require.Equal(t, 3, tr.Len())
	assert.False(t, tr.At(0).FromUser)
	assert.True(t, strings.HasPrefix(tr.At(0).Text, "Eylülde."))
	assert.Equal(t, "Hata: model yok", tr.At(1).Text)
	assert.Contains(t, tr.At(2).Label(), "Siz: yurt")
	assert.Equal(t, Entry{}, tr.At(9))

	tr.Clear()
	assert.Zero(t, tr.Len())
}

func TestReadQuestionsUsesConfiguredColumns(t *testing.T) {
	t.Cleanup(func() { answerer.SetColumnCandidates(answerer.DefaultColumnCandidates()) })
	path := filepath.Join(t.TempDir(), "talepler.csv")
	require.NoError(t, os.WriteFile(path, []byte("not,talep\nx,Yurt başvurusu\ny,Harç iadesi\n"), 0o644))

	got, err := ReadQuestions(path, answerer.ColumnCandidates{Question: []string{"talep"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Yurt başvurusu", "Harç iadesi"}, got)
}

func TestReadQuestionsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bos.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n  \n"), 0o644))
	_, err := ReadQuestions(path, answerer.ColumnCandidates{})
	assert.ErrorContains(t, err, "soru bulunamadı")
}
