// Package extract turns free-form Russian booking text into typed slot
// candidates. Every function is pure: no I/O and no hidden clock.
package extract

import (
	"regexp"
	"strings"
	"time"
)

// Word boundaries. RE2's \b only understands ASCII, so Cyrillic words need
// explicit classes. The trailing boundary consumes one character.
const (
	lb = `(?:^|[^\p{L}\p{N}_])`
	rb = `(?:$|[^\p{L}\p{N}_])`
)

// Fields holds the slot values found in a single message. Zero values mean
// "not mentioned".
type Fields struct {
	Date      time.Time
	Time      string
	GuestsMin int
	GuestsMax int
	Phone     string
	Name      string
}

// Empty reports whether no slot was extracted.
func (f Fields) Empty() bool {
	return f.Date.IsZero() && f.Time == "" && f.GuestsMin == 0 && f.GuestsMax == 0 && f.Phone == "" && f.Name == ""
}

// Parse runs every extractor over text. Name is only attempted when a phone
// was found in the same message.
func Parse(text string, now time.Time) Fields {
	f := Fields{
		Date:  Date(text, now),
		Time:  Time(text),
		Phone: Phone(text),
	}
	f.GuestsMin, f.GuestsMax = Guests(text)
	if f.Phone != "" {
		f.Name = Name(text, f.Phone)
	}
	return f
}

// Normalize lower-cases and trims text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

func word(expr string) *regexp.Regexp {
	return regexp.MustCompile(lb + expr + rb)
}

// findAll returns submatch indexes of successive matches. Scanning resumes
// right after the first group, so the trailing boundary of one match can be
// the leading boundary of the next.
func findAll(re *regexp.Regexp, s string) [][]int {
	var out [][]int
	for off := 0; off < len(s); {
		loc := re.FindStringSubmatchIndex(s[off:])
		if loc == nil {
			break
		}
		for i := range loc {
			if loc[i] >= 0 {
				loc[i] += off
			}
		}
		out = append(out, loc)
		next := loc[3]
		if next <= off {
			next = off + 1
		}
		off = next
	}
	return out
}

// precededByPreposition reports whether the token right before idx is "в" or "к".
func precededByPreposition(s string, idx int) bool {
	fields := strings.Fields(s[:idx])
	if len(fields) == 0 {
		return false
	}
	last := fields[len(fields)-1]
	return last == "в" || last == "к"
}

// mask blanks the given byte spans so later rules do not reread them.
func mask(s string, spans [][2]int) string {
	if len(spans) == 0 {
		return s
	}
	b := []byte(s)
	for _, sp := range spans {
		for i := sp[0]; i < sp[1] && i < len(b); i++ {
			b[i] = ' '
		}
	}
	return string(b)
}
