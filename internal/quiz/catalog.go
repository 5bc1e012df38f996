// Package quiz runs the streak quiz: questions from a CSV bank, a per-user
// state machine with a timed lockout, and a one-time coupon prize.
package quiz

import (
	"crypto/md5"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strconv"
	"strings"

	"github.com/poddon/concierge/internal/csvtable"
	"github.com/poddon/concierge/pkg/logging"
)

// ErrCatalogEmpty is returned when there is nothing to ask.
var ErrCatalogEmpty = errors.New("quiz: catalog is empty")

var letters = []string{"a", "b", "c", "d"}

// Choice is one answer choice; Letter is lower case.
type Choice struct {
	Letter string
	Text   string
}

// Label renders the button text, "A: text".
func (o Choice) Label() string {
	return strings.ToUpper(o.Letter) + ": " + o.Text
}

// Question is one playable catalog row.
type Question struct {
	ID      int64
	Text    string
	Options []Choice
	Correct string
	Active  bool
}

// Issue describes a catalog row that needed a fallback or was dropped.
type Issue struct {
	Row     int
	Problem string
}

func (i Issue) String() string {
	return fmt.Sprintf("row %d: %s", i.Row, i.Problem)
}

// Catalog is the loaded question bank.
type Catalog struct {
	questions []Question
	pool      []Question
	issues    []Issue
}

// LoadCatalog reads the bank at path. A missing file yields an empty
// catalog and a warning. Strict mode drops rows whose correct answer could
// not be resolved and repeated ids.
func LoadCatalog(path string, strict bool, logger *logging.Logger) (*Catalog, error) {
	if logger == nil {
		logger = logging.Default()
	}
	header, rows, err := csvtable.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("quiz: catalog file not found", "path", path)
		return NewCatalog(nil, nil, strict), nil
	}
	if err != nil {
		return nil, fmt.Errorf("quiz: load catalog: %w", err)
	}
	c := NewCatalog(header, rows, strict)
	for _, issue := range c.issues {
		logger.Warn("quiz: catalog issue", "path", path, "issue", issue.String())
	}
	logger.Info("quiz: catalog loaded", "path", path, "questions", len(c.questions), "pool", len(c.pool))
	return c, nil
}

// NewCatalog builds a catalog from parsed rows. header gives column order
// for the unnamed-column text fallback.
func NewCatalog(header []string, rows []csvtable.Row, strict bool) *Catalog {
	c := &Catalog{}
	hasActive := false
	for _, h := range header {
		if h == "active" {
			hasActive = true
		}
	}

	seen := map[int64]int{}
	for i, row := range rows {
		rowNum := i + 2
		q := Question{Text: questionText(header, row)}
		q.ID = questionID(row, q.Text)
		q.Options = options(row)
		if len(q.Options) == 0 {
			c.issues = append(c.issues, Issue{Row: rowNum, Problem: "no answer options, skipped"})
			continue
		}
		correct, matched := correctLetter(row["correct"], q.Options)
		q.Correct = correct
		if !matched {
			c.issues = append(c.issues, Issue{Row: rowNum, Problem: fmt.Sprintf("correct answer %q not among options", row["correct"])})
			if strict {
				continue
			}
		}
		if first, dup := seen[q.ID]; dup {
			c.issues = append(c.issues, Issue{Row: rowNum, Problem: fmt.Sprintf("question id %d repeats row %d", q.ID, first)})
			if strict {
				continue
			}
		} else {
			seen[q.ID] = rowNum
		}
		q.Active = hasActive && truthy(row["active"])
		c.questions = append(c.questions, q)
	}

	for _, q := range c.questions {
		if q.Active {
			c.pool = append(c.pool, q)
		}
	}
	if len(c.pool) == 0 {
		c.pool = c.questions
	}
	return c
}

// Len is the number of playable questions.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Issues lists the validation findings from load time.
func (c *Catalog) Issues() []Issue {
	return c.issues
}

// Pick returns a uniformly random question from the active pool.
func (c *Catalog) Pick(intn func(n int) int) (Question, error) {
	if len(c.pool) == 0 {
		return Question{}, ErrCatalogEmpty
	}
	if intn == nil {
		intn = rand.IntN
	}
	return c.pool[intn(len(c.pool))], nil
}

func questionText(header []string, row map[string]string) string {
	for _, col := range []string{"question", "text"} {
		if v := row[col]; v != "" {
			return v
		}
	}
	var frags []string
	for _, h := range header {
		if (h == "" || strings.HasPrefix(h, "unnamed")) && row[h] != "" {
			frags = append(frags, row[h])
		}
	}
	if len(frags) > 0 {
		return strings.Join(frags, ", ")
	}
	return "Вопрос"
}

// questionID prefers the id column, else a stable hash of the text column,
// then the question column, then the rendered text.
func questionID(row map[string]string, text string) int64 {
	if v := row["id"]; v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil && f == float64(int64(f)) {
			return int64(f)
		}
	}
	for _, col := range []string{"text", "question"} {
		if v := row[col]; v != "" {
			text = v
			break
		}
	}
	sum := md5.Sum([]byte(text))
	return int64(binary.BigEndian.Uint32(sum[:4])%999999) + 1
}

func options(row map[string]string) []Choice {
	var out []Choice
	for _, l := range letters {
		if v := row[l]; v != "" {
			out = append(out, Choice{Letter: l, Text: v})
		}
	}
	if len(out) > 0 {
		return out
	}
	for i, l := range letters {
		if v := row["option"+strconv.Itoa(i+1)]; v != "" {
			out = append(out, Choice{Letter: l, Text: v})
		}
	}
	return out
}

// correctLetter resolves the correct column to an option letter. An empty
// column means the first option; matched is false when a non-empty value
// fell back to it.
func correctLetter(raw string, opts []Choice) (string, bool) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return opts[0].Letter, true
	}
	for _, o := range opts {
		if raw == o.Letter {
			return o.Letter, true
		}
	}
	for _, o := range opts {
		if strings.ToLower(o.Text) == raw {
			return o.Letter, true
		}
	}
	return opts[0].Letter, false
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "1.0", "true", "yes", "да":
		return true
	}
	return false
}
