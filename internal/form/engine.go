package form

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/daylog/internal/apperr"
	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

// StartNew seeds an empty session at the mood step and renders the first
// prompt. Any previous session of the user is replaced.
func (e *Engine) StartNew(ctx context.Context, ev transport.Event, date time.Time, lang, prefix string) error {
	sess := &Session{
		UserID: ev.UserID,
		Step:   StepMood,
		Date:   store.DateKey(date),
		Prefix: prefix,
		Lang:   lang,
	}
	e.sessions.put(sess)
	return ev.Responder.Reply(ctx,
		e.loc.T("today_mood_prompt", lang, nil),
		e.moodKeyboard(lang, prefix))
}

// StartEdit pre-loads a session from the existing record and either begins
// at the mood step (full edit) or jumps directly to the events step in
// submode selection (targeted edit).
func (e *Engine) StartEdit(ctx context.Context, ev transport.Event, date time.Time, lang, prefix string, eventsOnly bool) error {
	key := store.DateKey(date)
	entry, err := e.db.GetEntry(ev.UserID, key)
	if err != nil {
		return fmt.Errorf("form: load entry for edit: %w", err)
	}
	if entry == nil {
		return ev.Responder.Edit(ctx, e.loc.T("entry_not_found", lang, nil), nil)
	}

	sess := &Session{
		UserID:   ev.UserID,
		Date:     key,
		Prefix:   prefix,
		Lang:     lang,
		EditMode: true,
		Mood:     entry.Mood,
		Weather:  entry.Weather,
		Location: entry.Location,
		Events:   entry.Events,
	}

	if eventsOnly {
		sess.Step = StepEvents
		e.sessions.put(sess)
		return ev.Responder.Edit(ctx,
			e.loc.T("edit_events_prompt", lang, map[string]string{"events": e.valueOr(sess.Events, lang)}),
			e.eventsKeyboard(lang, prefix, true))
	}

	sess.Step = StepMood
	e.sessions.put(sess)
	return ev.Responder.Edit(ctx,
		e.loc.T("edit_mood_prompt", lang, map[string]string{"mood": e.valueOr(sess.Mood, lang)}),
		e.moodKeyboard(lang, prefix))
}

// CheckExisting looks for a record at the date and, when present, offers
// the edit / edit-events-only / cancel choice. Reports whether a record
// exists.
func (e *Engine) CheckExisting(ctx context.Context, ev transport.Event, date time.Time, lang, prefix string) (bool, error) {
	entry, err := e.db.GetEntry(ev.UserID, store.DateKey(date))
	if err != nil {
		return false, fmt.Errorf("form: check existing: %w", err)
	}
	if entry == nil {
		return false, nil
	}

	buttons := [][]transport.Button{{
		e.btn("btn_edit", lang, "edit_"+prefix+"all"),
		e.btn("btn_edit_events_only", lang, "edit_"+prefix+"events"),
		e.btn("btn_cancel", lang, "edit_"+prefix+"cancel"),
	}}
	existsKey := strings.TrimSuffix(prefix, "_") + "_entry_exists_edit"
	return true, ev.Responder.Reply(ctx, e.loc.T(existsKey, lang, nil), buttons)
}

// HandleChoice processes a step-tagged button press. A press whose step tag
// does not match the session's current step is stale input: it is answered
// with a transient notice and mutates nothing.
func (e *Engine) HandleChoice(ctx context.Context, ev transport.Event, step Step, choice, lang string) error {
	sess := e.sessions.get(ev.UserID)
	if sess == nil || sess.Step != step {
		return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
	}
	e.sessions.touch(sess)

	switch step {
	case StepMood:
		return e.moodChoice(ctx, ev, sess, choice, lang)
	case StepWeather:
		return e.weatherChoice(ctx, ev, sess, choice, lang)
	case StepLocation:
		return e.locationChoice(ctx, ev, sess, choice, lang)
	case StepEvents:
		return e.eventsChoice(ctx, ev, sess, choice, lang)
	}
	return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
}

func (e *Engine) moodChoice(ctx context.Context, ev transport.Event, sess *Session, choice, lang string) error {
	switch {
	case choice == "back":
		// Mood is the first step; there is nothing to go back to.
		return ev.Responder.Answer(ctx, e.loc.T("form_first_step", lang, nil))
	case choice == "skip":
	case inVocabulary(moodChoices, choice):
		v := e.loc.T("mood_"+choice, lang, nil)
		sess.Mood = &v
	default:
		return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
	}
	sess.setStep(StepWeather)
	return e.prompt(ctx, ev, sess, lang, false)
}

func (e *Engine) weatherChoice(ctx context.Context, ev transport.Event, sess *Session, choice, lang string) error {
	switch {
	case choice == "back":
		sess.setStep(StepMood)
		return e.prompt(ctx, ev, sess, lang, false)
	case choice == "manual":
		sess.PendingManual = StepWeather
		return ev.Responder.Edit(ctx, e.manualPrompt("today_weather_manual", lang), nil)
	case choice == "skip":
	case inVocabulary(weatherChoices, choice):
		v := e.loc.T("weather_"+choice, lang, nil)
		sess.Weather = &v
	default:
		return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
	}
	sess.setStep(StepLocation)
	return e.prompt(ctx, ev, sess, lang, false)
}

func (e *Engine) locationChoice(ctx context.Context, ev transport.Event, sess *Session, choice, lang string) error {
	switch {
	case choice == "back":
		sess.setStep(StepWeather)
		return e.prompt(ctx, ev, sess, lang, false)
	case choice == "manual":
		sess.PendingManual = StepLocation
		return ev.Responder.Edit(ctx, e.manualPrompt("today_location_manual", lang), nil)
	case choice == "skip":
	case inVocabulary(locationChoices, choice):
		v := e.loc.T("location_"+choice, lang, nil)
		sess.Location = &v
	default:
		return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
	}
	sess.setStep(StepEvents)
	return e.prompt(ctx, ev, sess, lang, false)
}

func (e *Engine) eventsChoice(ctx context.Context, ev transport.Event, sess *Session, choice, lang string) error {
	submodes := map[string]EventsMode{
		"replace": ModeReplace,
		"append":  ModeAppend,
		"rewrite": ModeRewrite,
	}

	switch {
	case choice == "back":
		sess.setStep(StepLocation)
		return e.prompt(ctx, ev, sess, lang, false)

	case choice == "skip":
		return e.save(ctx, ev, sess, lang, true)

	default:
		mode, ok := submodes[choice]
		if !ok || !sess.EditMode {
			return ev.Responder.Answer(ctx, e.loc.T("form_invalid_state", lang, nil))
		}
		sess.EventsMode = mode
		current := ""
		if sess.Events != nil {
			current = *sess.Events
		}
		promptKey := "events_" + choice + "_prompt"
		if err := ev.Responder.Edit(ctx,
			e.loc.T(promptKey, lang, map[string]string{"events": current})+
				"\n\n"+e.loc.T("type_cancel_to_abort", lang, nil), nil); err != nil {
			return err
		}
		if mode == ModeRewrite && current != "" {
			// Echo the raw text separately so the user can copy and edit it.
			return ev.Responder.Send(ctx, current)
		}
		return nil
	}
}

// HandleText consumes a free-text message when the session expects one.
// Returns false when the text is not for the wizard (no session, command
// prefix, or no pending capture), so other handlers may take it.
func (e *Engine) HandleText(ctx context.Context, ev transport.Event, text, lang string) (bool, error) {
	sess := e.sessions.get(ev.UserID)
	if sess == nil {
		return false, nil
	}
	if strings.HasPrefix(text, "/") {
		// Commands are never manual input; the session stays as it was.
		return false, nil
	}
	if isCancelWord(text) {
		e.sessions.delete(ev.UserID)
		return true, ev.Responder.Reply(ctx, e.loc.T("creation_canceled", lang, nil), nil)
	}
	e.sessions.touch(sess)

	switch {
	case sess.Step == StepWeather && sess.PendingManual == StepWeather:
		v := text
		sess.Weather = &v
		sess.setStep(StepLocation)
		return true, e.prompt(ctx, ev, sess, lang, true)

	case sess.Step == StepLocation && sess.PendingManual == StepLocation:
		v := text
		sess.Location = &v
		sess.setStep(StepEvents)
		return true, e.prompt(ctx, ev, sess, lang, true)

	case sess.Step == StepEvents:
		var v string
		if sess.EventsMode == ModeAppend && sess.Events != nil && *sess.Events != "" {
			v = *sess.Events + "\n" + text
		} else {
			v = text
		}
		sess.Events = &v
		sess.EventsMode = ModeNone
		return true, e.save(ctx, ev, sess, lang, false)
	}

	return false, nil
}

func isCancelWord(text string) bool {
	switch strings.ToLower(strings.TrimSpace(text)) {
	case "cancel", "отмена":
		return true
	}
	return false
}

// Cancel aborts the session from a button press.
func (e *Engine) Cancel(ctx context.Context, ev transport.Event, lang string) error {
	e.sessions.delete(ev.UserID)
	return ev.Responder.Edit(ctx, e.loc.T("creation_canceled", lang, nil), nil)
}

// save writes the accumulated fields. On success the session is cleared and
// the saved record rendered; on failure the session is kept so the user can
// retry by re-entering the events step with skip.
func (e *Engine) save(ctx context.Context, ev transport.Event, sess *Session, lang string, viaEdit bool) error {
	respond := ev.Responder.Reply
	if viaEdit {
		respond = ev.Responder.Edit
	}

	fields := store.EntryFields{
		Mood:     sess.Mood,
		Weather:  sess.Weather,
		Location: sess.Location,
		Events:   sess.Events,
	}

	if sess.EditMode {
		if fields != (store.EntryFields{}) {
			ok, err := e.db.UpdateEntry(sess.UserID, sess.Date, fields)
			if err != nil || !ok {
				if err != nil {
					e.logger.Error("form: update entry failed",
						slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
				}
				return respond(ctx, e.loc.T("today_entry_update_error", lang, nil), nil)
			}
		}
		if err := respond(ctx, e.loc.T("today_entry_updated", lang, nil), nil); err != nil {
			return err
		}
	} else {
		if err := e.db.CreateEntry(sess.UserID, sess.Date, fields); err != nil {
			e.logger.Error("form: create entry failed",
				slog.Int64("user_id", sess.UserID), slog.String("error", err.Error()))
			return respond(ctx, e.loc.T("today_entry_error", lang, nil), nil)
		}
		if err := respond(ctx, e.loc.T("today_entry_created", lang, nil), nil); err != nil {
			return err
		}
	}

	e.sessions.delete(sess.UserID)
	return e.RenderEntry(ctx, ev, sess.UserID, sess.Date, lang)
}

// prompt renders the current step. viaReply answers a text message with a
// new message; otherwise the button's message is edited in place. Edit mode
// prompts include the current field value.
func (e *Engine) prompt(ctx context.Context, ev transport.Event, sess *Session, lang string, viaReply bool) error {
	var text string
	var keyboard [][]transport.Button

	switch sess.Step {
	case StepMood:
		keyboard = e.moodKeyboard(lang, sess.Prefix)
		if sess.EditMode {
			text = e.loc.T("edit_mood_prompt", lang, map[string]string{"mood": e.valueOr(sess.Mood, lang)})
		} else {
			text = e.loc.T("today_mood_prompt", lang, nil)
		}
	case StepWeather:
		keyboard = e.weatherKeyboard(lang, sess.Prefix)
		if sess.EditMode {
			text = e.loc.T("edit_weather_prompt", lang, map[string]string{"weather": e.valueOr(sess.Weather, lang)})
		} else {
			text = e.loc.T("today_weather_prompt", lang, nil)
		}
	case StepLocation:
		keyboard = e.locationKeyboard(lang, sess.Prefix)
		if sess.EditMode {
			text = e.loc.T("edit_location_prompt", lang, map[string]string{"location": e.valueOr(sess.Location, lang)})
		} else {
			text = e.loc.T("today_location_prompt", lang, nil)
		}
	case StepEvents:
		keyboard = e.eventsKeyboard(lang, sess.Prefix, sess.EditMode)
		if sess.EditMode {
			text = e.loc.T("edit_events_prompt", lang, map[string]string{"events": e.valueOr(sess.Events, lang)})
		} else {
			text = e.loc.T("today_events_prompt", lang, nil)
		}
	}

	if viaReply {
		return ev.Responder.Reply(ctx, text, keyboard)
	}
	return ev.Responder.Edit(ctx, text, keyboard)
}

func (e *Engine) manualPrompt(key, lang string) string {
	return e.loc.T(key, lang, nil) + "\n\n" + e.loc.T("type_cancel_to_abort", lang, nil)
}

func (e *Engine) valueOr(v *string, lang string) string {
	if v == nil || *v == "" {
		return e.loc.T("not_specified", lang, nil)
	}
	return *v
}

// RenderEntry sends the full content of a stored record.
func (e *Engine) RenderEntry(ctx context.Context, ev transport.Event, userID int64, date, lang string) error {
	entry, err := e.db.GetEntry(userID, date)
	if err != nil {
		return fmt.Errorf("form: render entry: %w", err)
	}
	if entry == nil {
		return fmt.Errorf("form: render entry %s: %w", date, apperr.ErrNotFound)
	}

	var b strings.Builder
	b.WriteString(e.loc.T("entry_title", lang, map[string]string{"date": entry.Date}))
	b.WriteString("\n\n")
	b.WriteString(e.loc.T("entry_mood", lang, map[string]string{"mood": e.valueOr(entry.Mood, lang)}))
	b.WriteString("\n")
	b.WriteString(e.loc.T("entry_weather", lang, map[string]string{"weather": e.valueOr(entry.Weather, lang)}))
	b.WriteString("\n")
	b.WriteString(e.loc.T("entry_location", lang, map[string]string{"location": e.valueOr(entry.Location, lang)}))
	b.WriteString("\n")
	b.WriteString(e.loc.T("entry_events", lang, map[string]string{"events": e.valueOr(entry.Events, lang)}))
	return ev.Responder.Send(ctx, b.String())
}
