package plugin

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/starford/daylog/internal/transport"
)

// viewDateRe accepts DD.MM, DD.MM.YYYY, and DD.MM.* argument forms.
var viewDateRe = regexp.MustCompile(`^(\d{1,2})\.(\d{1,2})(?:\.(\d{4}|\*))?$`)

// View shows the record for a requested date. Without an argument (or from
// the menu button) it explains the accepted formats. The DD.MM.* form lists
// matches for that day and month across every year.
func (s *Set) View(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)

	args := strings.Fields(ev.Text)
	if ev.IsCallback() || len(args) < 2 {
		text := s.loc.T("view_usage", lang, nil)
		if st, err := s.db.GetUserStats(ev.UserID); err == nil && st.Entries > 0 {
			df := s.dateFormat(ev.UserID)
			text += "\n\n" + s.loc.T("view_stats", lang, map[string]string{
				"count": strconv.Itoa(st.Entries),
				"first": formatDate(st.FirstDate, df),
				"last":  formatDate(st.LastDate, df),
			})
		}
		return respond(ctx, ev, text, nil)
	}

	m := viewDateRe.FindStringSubmatch(args[1])
	if m == nil {
		return ev.Responder.Reply(ctx, s.loc.T("view_usage", lang, nil), nil)
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return ev.Responder.Reply(ctx, s.loc.T("view_usage", lang, nil), nil)
	}

	if m[3] == "*" {
		return s.viewAcrossYears(ctx, ev, day, month, lang)
	}

	year := s.userToday(ev.UserID).Year()
	if m[3] != "" {
		year, _ = strconv.Atoi(m[3])
	}
	date := fmt.Sprintf("%04d-%02d-%02d", year, month, day)

	entry, err := s.db.GetEntry(ev.UserID, date)
	if err != nil {
		return fmt.Errorf("plugin: view entry: %w", err)
	}
	if entry == nil {
		return ev.Responder.Reply(ctx,
			s.loc.T("view_no_entry", lang, map[string]string{"date": date}), nil)
	}
	return s.form.RenderEntry(ctx, ev, ev.UserID, date, lang)
}

func (s *Set) viewAcrossYears(ctx context.Context, ev transport.Event, day, month int, lang string) error {
	entries, err := s.db.FindEntriesByDayMonth(ev.UserID, day, month)
	if err != nil {
		return fmt.Errorf("plugin: view by day/month: %w", err)
	}
	if len(entries) == 0 {
		return ev.Responder.Reply(ctx,
			s.loc.T("view_no_entry", lang, map[string]string{"date": fmt.Sprintf("%02d.%02d.*", day, month)}), nil)
	}

	df := s.dateFormat(ev.UserID)
	var b strings.Builder
	b.WriteString(s.loc.T("view_matches", lang, map[string]string{"count": strconv.Itoa(len(entries))}))
	for _, e := range entries {
		b.WriteString("\n• " + formatDate(e.Date, df))
		if e.Mood != nil && *e.Mood != "" {
			b.WriteString("  " + *e.Mood)
		}
	}
	return ev.Responder.Reply(ctx, b.String(), nil)
}

// dateFormat returns the user's preferred date layout token, falling back
// to DD.MM.YYYY for unknown users.
func (s *Set) dateFormat(userID int64) string {
	u, err := s.db.GetUser(userID)
	if err != nil || u == nil || u.DateFormat == "" {
		return "DD.MM.YYYY"
	}
	return u.DateFormat
}

// formatDate renders an ISO entry date in the user's configured layout.
// Unparseable input is returned as stored.
func formatDate(iso, layout string) string {
	t, err := time.Parse("2006-01-02", iso)
	if err != nil {
		return iso
	}
	switch layout {
	case "YYYY-MM-DD":
		return t.Format("2006-01-02")
	case "MM/DD/YYYY":
		return t.Format("01/02/2006")
	default:
		return t.Format("02.01.2006")
	}
}
