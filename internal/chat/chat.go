// Package chat defines the transport-neutral message shapes exchanged with
// the chat platform: inbound messages and button callbacks, outbound replies.
package chat

import (
	"context"
	"strings"
)

// User identifies the person behind an inbound update.
type User struct {
	ID          int64  `json:"id"`
	Username    string `json:"username,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
}

// Mention renders "@username" when known, otherwise the display name.
func (u User) Mention() string {
	if u.Username != "" {
		return "@" + u.Username
	}
	if strings.TrimSpace(u.DisplayName) != "" {
		return u.DisplayName
	}
	return "Гость"
}

// Message is a free-text inbound message.
type Message struct {
	User   User   `json:"user"`
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

// Callback is a button press carrying an opaque payload.
type Callback struct {
	ID     string `json:"id,omitempty"`
	User   User   `json:"user"`
	ChatID int64  `json:"chat_id"`
	Data   string `json:"data"`
}

// Button is an inline action. Exactly one of Payload or URL is set.
type Button struct {
	Text    string `json:"text"`
	Payload string `json:"payload,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Reply is an outbound message to one chat.
type Reply struct {
	ChatID      int64      `json:"chat_id"`
	Text        string     `json:"text"`
	Buttons     [][]Button `json:"buttons,omitempty"`
	Attachments []string   `json:"attachments,omitempty"`
}

// Row is a convenience for a single button row.
func Row(buttons ...Button) []Button {
	return buttons
}

// Messenger delivers replies to the chat platform.
type Messenger interface {
	Send(ctx context.Context, reply Reply) error
}

// MessengerFunc adapts a function to Messenger.
type MessengerFunc func(ctx context.Context, reply Reply) error

// Send calls f.
func (f MessengerFunc) Send(ctx context.Context, reply Reply) error {
	return f(ctx, reply)
}
