package quiz

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poddon/concierge/internal/csvtable"
)

func writeCatalog(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "quiz.csv")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadCatalogSchemas(t *testing.T) {
	path := writeCatalog(t, "\ufeffID,Question,A,B,C,D,Correct\n"+
		"7,Столица Франции?,Берлин,Париж,,,b\n"+
		"8,Сколько лап у кошки?,три,четыре,,,Четыре\n"+
		"9,Цвет неба?,синий,зелёный,,,фиолетовый\n")

	c, err := LoadCatalog(path, false, nil)
	require.NoError(t, err)
	require.Equal(t, 3, c.Len())

	q := c.questions[0]
	assert.Equal(t, int64(7), q.ID)
	assert.Equal(t, "Столица Франции?", q.Text)
	assert.Equal(t, []Choice{{"a", "Берлин"}, {"b", "Париж"}}, q.Options)
	assert.Equal(t, "b", q.Correct)
	assert.Equal(t, "B: Париж", q.Options[1].Label())

	assert.Equal(t, "b", c.questions[1].Correct, "literal answer matched case-insensitively")
	assert.Equal(t, "a", c.questions[2].Correct, "unmatched literal falls back to first option")
	require.Len(t, c.Issues(), 1)
	assert.Equal(t, 4, c.Issues()[0].Row)
}

func TestCatalogStrictDropsBadRows(t *testing.T) {
	header := []string{"id", "text", "option1", "option2", "correct"}
	rows := []csvtable.Row{
		{"id": "1", "text": "Q1", "option1": "x", "option2": "y", "correct": "b"},
		{"id": "1", "text": "Q1 again", "option1": "x", "option2": "y", "correct": "a"},
		{"id": "2", "text": "Q2", "option1": "x", "option2": "y", "correct": "nope"},
		{"id": "3", "text": "no options"},
	}

	lenient := NewCatalog(header, rows, false)
	assert.Equal(t, 3, lenient.Len())
	assert.Len(t, lenient.Issues(), 3)

	strict := NewCatalog(header, rows, true)
	require.Equal(t, 1, strict.Len())
	assert.Equal(t, "b", strict.questions[0].Correct)
	assert.Equal(t, "B: y", strict.questions[0].Options[1].Label())
}

func TestQuestionIDFromTextHashIsStable(t *testing.T) {
	header := []string{"question", "a", "b"}
	rows := []csvtable.Row{{"question": "Что такое настойка?", "a": "x", "b": "y"}}
	first := NewCatalog(header, rows, false).questions[0].ID
	second := NewCatalog(header, rows, false).questions[0].ID
	assert.Equal(t, first, second)
	assert.True(t, first >= 1 && first <= 999999)
}

func TestQuestionIDHashesTextColumnFirst(t *testing.T) {
	both := NewCatalog([]string{"question", "text", "a"},
		[]csvtable.Row{{"question": "Вопрос дня", "text": "Что такое настойка?", "a": "x"}}, false)
	textOnly := NewCatalog([]string{"text", "a"},
		[]csvtable.Row{{"text": "Что такое настойка?", "a": "x"}}, false)
	require.Len(t, both.questions, 1)
	require.Len(t, textOnly.questions, 1)
	assert.Equal(t, textOnly.questions[0].ID, both.questions[0].ID)
	assert.Equal(t, "Вопрос дня", both.questions[0].Text)
}

func TestQuestionTextFallbacks(t *testing.T) {
	header := []string{"", "unnamed: 1", "a"}
	row := csvtable.Row{"": "Часть один", "unnamed: 1": "часть два", "a": "x"}
	assert.Equal(t, "Часть один, часть два", questionText(header, row))
	assert.Equal(t, "Вопрос", questionText([]string{"a"}, csvtable.Row{"a": "x"}))
}

func TestCatalogActivePool(t *testing.T) {
	header := []string{"id", "question", "a", "b", "active"}
	rows := []csvtable.Row{
		{"id": "1", "question": "Q1", "a": "x", "b": "y", "active": "0"},
		{"id": "2", "question": "Q2", "a": "x", "b": "y", "active": "1"},
	}
	c := NewCatalog(header, rows, false)
	for i := 0; i < 5; i++ {
		q, err := c.Pick(nil)
		require.NoError(t, err)
		assert.Equal(t, int64(2), q.ID)
	}

	rows[1]["active"] = "0"
	c = NewCatalog(header, rows, false)
	assert.Len(t, c.pool, 2, "no active rows means the whole catalog plays")
}

func TestLoadCatalogMissingFile(t *testing.T) {
	c, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.csv"), false, nil)
	require.NoError(t, err)
	_, err = c.Pick(nil)
	assert.ErrorIs(t, err, ErrCatalogEmpty)
}
