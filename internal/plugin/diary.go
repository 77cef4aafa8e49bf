package plugin

import (
	"context"
	"strings"

	"github.com/starford/daylog/internal/bot"
	"github.com/starford/daylog/internal/form"
	"github.com/starford/daylog/internal/transport"
)

// Today starts the wizard for the current date, offering the edit choice
// first when a record already exists.
func (s *Set) Today(ctx context.Context, ev transport.Event) error {
	return s.startDiary(ctx, ev, 0, "today_")
}

// Yesterday is Today shifted one day back, for filling in a missed date.
func (s *Set) Yesterday(ctx context.Context, ev transport.Event) error {
	return s.startDiary(ctx, ev, -1, "yesterday_")
}

func (s *Set) startDiary(ctx context.Context, ev transport.Event, dayOffset int, prefix string) error {
	lang := s.lang(ev)
	date := s.userToday(ev.UserID).AddDate(0, 0, dayOffset)

	exists, err := s.form.CheckExisting(ctx, ev, date, lang, prefix)
	if err != nil || exists {
		return err
	}
	return s.form.StartNew(ctx, ev, date, lang, prefix)
}

// wizardCallback routes a "<prefix><step>_<choice>" button press into the
// wizard engine.
func (s *Set) wizardCallback(prefix string) bot.HandlerFunc {
	return func(ctx context.Context, ev transport.Event) error {
		lang := s.lang(ev)
		rest := strings.TrimPrefix(ev.Payload, prefix)
		i := strings.IndexByte(rest, '_')
		if i <= 0 {
			return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", lang, nil))
		}
		step, ok := form.ParseStep(rest[:i])
		if !ok {
			return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", lang, nil))
		}
		return s.form.HandleChoice(ctx, ev, step, rest[i+1:], lang)
	}
}

// editCallback handles the edit / edit-events-only / cancel choice offered
// when the date already has a record.
func (s *Set) editCallback(prefix string, dayOffset int) bot.HandlerFunc {
	return func(ctx context.Context, ev transport.Event) error {
		lang := s.lang(ev)
		date := s.userToday(ev.UserID).AddDate(0, 0, dayOffset)

		switch strings.TrimPrefix(ev.Payload, "edit_"+prefix) {
		case "all":
			return s.form.StartEdit(ctx, ev, date, lang, prefix, false)
		case "events":
			return s.form.StartEdit(ctx, ev, date, lang, prefix, true)
		case "cancel":
			return ev.Responder.Edit(ctx, s.loc.T("edit_canceled", lang, nil), nil)
		}
		return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", lang, nil))
	}
}
