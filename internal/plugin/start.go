package plugin

import (
	"context"
	"fmt"

	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

// Start registers (or refreshes) the user and shows the welcome message
// with the main menu.
func (s *Set) Start(ctx context.Context, ev transport.Event) error {
	err := s.db.CreateUser(store.NewUser{
		ID:        ev.UserID,
		Username:  ev.Username,
		FirstName: ev.FirstName,
		LastName:  ev.LastName,
		Timezone:  s.defaultTZ,
	})
	if err != nil {
		return fmt.Errorf("plugin: register user: %w", err)
	}

	lang := s.lang(ev)
	name := ev.FirstName
	if name == "" {
		name = ev.Username
	}
	text := s.loc.T("start_welcome", lang, map[string]string{"name": name})
	return ev.Responder.Reply(ctx, text, s.menu.Build(lang, s.isAdmin(ev.UserID)))
}

// Menu re-shows the main menu on demand, reflecting the current enabled
// state of each entry.
func (s *Set) Menu(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)
	return ev.Responder.Reply(ctx,
		s.loc.T("menu_title", lang, nil),
		s.menu.Build(lang, s.isAdmin(ev.UserID)))
}
