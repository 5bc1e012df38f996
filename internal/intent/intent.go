// Package intent classifies an inbound message by keyword.
package intent

import "strings"

// Intent is the coarse purpose of a message.
type Intent string

const (
	None  Intent = ""
	Menu  Intent = "menu"
	Venue Intent = "venue"
	Quiz  Intent = "quiz"
	Book  Intent = "book"
)

type rule struct {
	intent   Intent
	keywords []string
}

// Order matters: the first matching intent wins.
var rules = []rule{
	{Menu, []string{"меню", "посмотреть меню", "карта", "барная карта", "лист"}},
	{Venue, []string{"адрес", "где вы", "как добраться", "работаете", "часы", "до скольки", "во сколько", "контакты", "телефон"}},
	{Quiz, []string{"викторин", "квиз", "приз", "розыгрыш"}},
	{Book, []string{"бронь", "заброни", "резерв", "столик", "стол", "посадка"}},
}

// Classifier maps text to an intent by substring match.
type Classifier struct {
	rules []rule
}

// NewClassifier returns a classifier with the built-in keyword sets.
func NewClassifier() *Classifier {
	return &Classifier{rules: rules}
}

// Detect classifies text. While a booking draft is open, any non-book
// keyword diverts the message and everything else continues the booking.
func (c *Classifier) Detect(text string, bookingOpen bool) Intent {
	t := strings.ToLower(strings.TrimSpace(text))
	for _, r := range c.rules {
		if bookingOpen && r.intent == Book {
			continue
		}
		if containsAny(t, r.keywords) {
			return r.intent
		}
	}
	if bookingOpen {
		return Book
	}
	return None
}

func containsAny(t string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(t, k) {
			return true
		}
	}
	return false
}
