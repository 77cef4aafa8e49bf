// Package transport defines the decoded event model exchanged with the chat
// platform. The engine never talks to the wire protocol directly; it consumes
// Events and answers through the Responder attached to each one.
package transport

import "context"

// Button is a single inline keyboard button. Data is the callback payload
// delivered back when the button is pressed.
type Button struct {
	Label string
	Data  string
}

// Responder answers the event that carried it. Reply posts a new message,
// Edit rewrites the message the pressed button was attached to, Answer shows
// a transient notice (callback acknowledgement), Send posts a plain message
// without reply semantics.
type Responder interface {
	Reply(ctx context.Context, text string, keyboard [][]Button) error
	Edit(ctx context.Context, text string, keyboard [][]Button) error
	Answer(ctx context.Context, text string) error
	Send(ctx context.Context, text string) error
}

// Event is one decoded inbound event: either a free-text message
// (Text set, Payload empty) or a button press (Payload set).
type Event struct {
	UserID    int64
	ChatID    int64
	Text      string
	Payload   string
	Username  string
	FirstName string
	LastName  string

	Responder Responder
}

// IsCallback reports whether the event is a button press.
func (e Event) IsCallback() bool { return e.Payload != "" }

// Sender delivers an unsolicited outbound message to a user. It is the only
// transport operation the reminder scheduler needs.
type Sender interface {
	SendMessage(ctx context.Context, userID int64, text string) error
}

// Source produces decoded events until its context is cancelled.
type Source interface {
	Events() <-chan Event
	Run(ctx context.Context) error
}
