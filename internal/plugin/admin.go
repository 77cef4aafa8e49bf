package plugin

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/daylog/internal/transport"
)

// ListUsers shows registered users with their reminder state. Admin only;
// the menu hides the entry from everyone else, but the command is also
// reachable directly, so the check is repeated here.
func (s *Set) ListUsers(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)
	if !s.isAdmin(ev.UserID) {
		return respond(ctx, ev, s.loc.T("admin_only", lang, nil), nil)
	}

	users, err := s.db.ListUsers(50)
	if err != nil {
		return fmt.Errorf("plugin: list users: %w", err)
	}
	if len(users) == 0 {
		return respond(ctx, ev, s.loc.T("admin_no_users", lang, nil), nil)
	}

	var b strings.Builder
	b.WriteString(s.loc.T("admin_users_header", lang, map[string]string{"count": strconv.Itoa(len(users))}))
	for _, u := range users {
		b.WriteString("\n")
		b.WriteString(strconv.FormatInt(u.ID, 10))
		if u.Username != "" {
			b.WriteString(" @" + u.Username)
		}
		if u.FirstName != "" {
			b.WriteString(" " + u.FirstName)
		}
		b.WriteString(" [" + u.LanguageCode + ", " + u.Timezone)
		if u.ReminderEnabled {
			b.WriteString(", ⏰ " + u.ReminderTime)
		}
		b.WriteString("]")
	}
	return respond(ctx, ev, b.String(), nil)
}
