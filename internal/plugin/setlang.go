package plugin

import (
	"context"
	"fmt"
	"strings"

	"github.com/starford/daylog/internal/transport"
)

// SetLang offers one button per loaded locale. Each button's label is the
// language's self-name from its own locale file.
func (s *Set) SetLang(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)

	var row []transport.Button
	var rows [][]transport.Button
	for _, code := range s.loc.Languages() {
		row = append(row, transport.Button{
			Label: s.loc.T("lang_name", code, nil),
			Data:  "setlang_" + code,
		})
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	return respond(ctx, ev, s.loc.T("choose_lang", lang, nil), rows)
}

func (s *Set) setLangCallback(ctx context.Context, ev transport.Event) error {
	code := strings.TrimPrefix(ev.Payload, "setlang_")
	if !s.loc.Has(code) {
		return ev.Responder.Answer(ctx, s.loc.T("form_invalid_state", s.lang(ev), nil))
	}
	if err := s.db.SetLanguage(ev.UserID, code); err != nil {
		return fmt.Errorf("plugin: set language: %w", err)
	}
	// Labels may have been reloaded since this language was last built.
	s.menu.Invalidate(code)

	if err := ev.Responder.Edit(ctx, s.loc.T("lang_changed", code, nil), nil); err != nil {
		return err
	}
	return ev.Responder.Reply(ctx,
		s.loc.T("menu_title", code, nil),
		s.menu.Build(code, s.isAdmin(ev.UserID)))
}
