package transport

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"
)

// Telegram adapts the Telegram Bot API to the Source and Sender interfaces.
// It is a thin pass-through: decode, enqueue, and forward replies.
type Telegram struct {
	bot    *tele.Bot
	logger *slog.Logger
	events chan Event
}

// NewTelegram connects a long-polling bot client.
func NewTelegram(token string, pollTimeout time.Duration, logger *slog.Logger) (*Telegram, error) {
	bot, err := tele.NewBot(tele.Settings{
		Token:  token,
		Poller: &tele.LongPoller{Timeout: pollTimeout},
	})
	if err != nil {
		return nil, fmt.Errorf("transport: connect bot: %w", err)
	}

	t := &Telegram{
		bot:    bot,
		logger: logger,
		events: make(chan Event, 256),
	}

	bot.Handle(tele.OnText, func(c tele.Context) error {
		t.enqueue(t.decode(c, c.Text(), ""))
		return nil
	})
	bot.Handle(tele.OnCallback, func(c tele.Context) error {
		// telebot prefixes raw callback data with "\f".
		data := strings.TrimPrefix(c.Callback().Data, "\f")
		t.enqueue(t.decode(c, "", data))
		return nil
	})

	return t, nil
}

func (t *Telegram) decode(c tele.Context, text, payload string) Event {
	ev := Event{
		Text:      text,
		Payload:   payload,
		Responder: &teleResponder{c: c},
	}
	if s := c.Sender(); s != nil {
		ev.UserID = s.ID
		ev.Username = s.Username
		ev.FirstName = s.FirstName
		ev.LastName = s.LastName
	}
	if ch := c.Chat(); ch != nil {
		ev.ChatID = ch.ID
	}
	return ev
}

func (t *Telegram) enqueue(ev Event) {
	select {
	case t.events <- ev:
	default:
		t.logger.Warn("transport: event queue full, dropping event",
			slog.Int64("user_id", ev.UserID))
	}
}

// Events returns the decoded event stream.
func (t *Telegram) Events() <-chan Event { return t.events }

// Run polls until ctx is cancelled, then stops the poller. The events
// channel is left open: an in-flight handler goroutine may still enqueue
// after Stop returns, and consumers exit on the same ctx anyway.
func (t *Telegram) Run(ctx context.Context) error {
	go t.bot.Start()
	<-ctx.Done()
	t.bot.Stop()
	return nil
}

// SendMessage implements Sender for scheduler-initiated notifications.
func (t *Telegram) SendMessage(_ context.Context, userID int64, text string) error {
	if _, err := t.bot.Send(&tele.User{ID: userID}, text); err != nil {
		return fmt.Errorf("transport: send to %d: %w", userID, err)
	}
	return nil
}

type teleResponder struct {
	c tele.Context
}

func markup(keyboard [][]Button) *tele.ReplyMarkup {
	if len(keyboard) == 0 {
		return nil
	}
	rows := make([][]tele.InlineButton, 0, len(keyboard))
	for _, row := range keyboard {
		r := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			r = append(r, tele.InlineButton{Text: b.Label, Data: b.Data})
		}
		rows = append(rows, r)
	}
	return &tele.ReplyMarkup{InlineKeyboard: rows}
}

func (r *teleResponder) Reply(_ context.Context, text string, keyboard [][]Button) error {
	if m := markup(keyboard); m != nil {
		return r.c.Send(text, m)
	}
	return r.c.Send(text)
}

func (r *teleResponder) Edit(_ context.Context, text string, keyboard [][]Button) error {
	if r.c.Callback() == nil {
		return r.Reply(context.Background(), text, keyboard)
	}
	if m := markup(keyboard); m != nil {
		return r.c.Edit(text, m)
	}
	return r.c.Edit(text)
}

func (r *teleResponder) Answer(_ context.Context, text string) error {
	if r.c.Callback() == nil {
		return r.c.Send(text)
	}
	return r.c.Respond(&tele.CallbackResponse{Text: text})
}

func (r *teleResponder) Send(_ context.Context, text string) error {
	return r.c.Send(text)
}
