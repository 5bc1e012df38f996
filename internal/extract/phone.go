package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{6,}\d`)

// minPhoneDigits is the shortest digit run accepted as a phone number.
const minPhoneDigits = 8

// Phone returns the first phone-like run in text with separators stripped
// and a leading + kept, or "" when it has fewer than eight digits.
func Phone(text string) string {
	phone, _ := phoneSpan(text)
	return phone
}

func phoneSpan(text string) (string, []int) {
	loc := phonePattern.FindStringIndex(text)
	if loc == nil {
		return "", nil
	}
	raw := strings.TrimSpace(text[loc[0]:loc[1]])

	var b strings.Builder
	digits := 0
	for i, r := range raw {
		switch {
		case unicode.IsDigit(r):
			b.WriteRune(r)
			digits++
		case r == '+' && i == 0:
			b.WriteRune(r)
		}
	}
	if digits < minPhoneDigits {
		return "", nil
	}
	return b.String(), loc
}

var nameStopWords = map[string]bool{
	"тел": true, "телефон": true, "номер": true, "мой": true, "моя": true, "мое": true, "моё": true,
	"имя": true, "меня": true, "зовут": true, "это": true, "я": true, "и": true, "на": true,
	"нас": true, "для": true, "в": true, "к": true, "до": true, "от": true, "или": true, "по": true,
	"сегодня": true, "завтра": true, "послезавтра": true, "после": true, "числа": true,
	"бронь": true, "столик": true, "стол": true, "чел": true, "ч": true,
	"привет": true, "здравствуйте": true, "добрый": true, "хочу": true, "хотим": true,
	"можно": true, "пожалуйста": true, "спасибо": true, "звоните": true, "пишите": true,
}

var nameStopPrefixes = []string{
	"понедельн", "вторн", "сред", "четверг", "пятниц", "суббот", "воскресен",
	"вечер", "утр", "ноч", "дн", "час", "человек", "гост", "персон", "заброни", "брон", "резерв",
}

var clauseBreak = regexp.MustCompile(`[,.;!?\n]`)

// Name picks the caller's name from the clause adjoining the phone: the
// words right after it, else the words right before it. Casing is kept.
// Returns "" when phone is empty or nothing name-like remains.
func Name(text, phone string) string {
	if phone == "" {
		return ""
	}
	_, loc := phoneSpan(text)
	if loc == nil {
		return ""
	}

	after := strings.TrimLeft(text[loc[1]:], ",.;!? \t\n")
	if cut := clauseBreak.FindStringIndex(after); cut != nil {
		after = after[:cut[0]]
	}
	if name := nameTokens(after); name != "" {
		return name
	}

	// walk back at most two clauses: "Мария, тел. +7..." skips the "тел" clause
	clauses := clauseBreak.Split(text[:loc[0]], -1)
	for i, seen := len(clauses)-1, 0; i >= 0 && seen < 2; i-- {
		if strings.TrimSpace(clauses[i]) == "" {
			continue
		}
		seen++
		if name := nameTokens(clauses[i]); name != "" {
			return name
		}
	}
	return ""
}

func nameTokens(clause string) string {
	var tokens []string
	for _, field := range strings.Fields(clause) {
		field = strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) })
		if field == "" || !isAlpha(field) || isNameStopWord(field) {
			continue
		}
		tokens = append(tokens, field)
		if len(tokens) == 3 {
			break
		}
	}
	return strings.Join(tokens, " ")
}

func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func isNameStopWord(token string) bool {
	lower := strings.ToLower(token)
	if nameStopWords[lower] {
		return true
	}
	if _, ok := guestWords[lower]; ok {
		return true
	}
	for _, prefix := range nameStopPrefixes {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}
