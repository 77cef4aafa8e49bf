package plugin

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/starford/daylog/internal/store"
	"github.com/starford/daylog/internal/transport"
)

// messageLimit keeps exported text under the transport's message cap.
const messageLimit = 3500

// Export dumps every record of the user in their configured format.
func (s *Set) Export(ctx context.Context, ev transport.Event) error {
	lang := s.lang(ev)

	entries, err := s.db.ListEntries(ev.UserID)
	if err != nil {
		return fmt.Errorf("plugin: export: %w", err)
	}
	if len(entries) == 0 {
		return respond(ctx, ev, s.loc.T("export_empty", lang, nil), nil)
	}

	format := "markdown"
	dateLayout := "DD.MM.YYYY"
	if u, err := s.db.GetUser(ev.UserID); err == nil && u != nil {
		if u.ExportFormat != "" {
			format = u.ExportFormat
		}
		if u.DateFormat != "" {
			dateLayout = u.DateFormat
		}
	}

	// CSV and JSON keep ISO dates so the output stays machine-friendly.
	var body string
	switch format {
	case "csv":
		body, err = exportCSV(entries)
	case "json":
		body, err = exportJSON(entries)
	default:
		body = s.exportMarkdown(entries, lang, dateLayout)
	}
	if err != nil {
		return fmt.Errorf("plugin: render export: %w", err)
	}

	header := s.loc.T("export_header", lang, map[string]string{
		"count":  strconv.Itoa(len(entries)),
		"format": format,
	})
	if err := respond(ctx, ev, header, nil); err != nil {
		return err
	}
	for _, chunk := range splitChunks(body, messageLimit) {
		if err := ev.Responder.Send(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func (s *Set) exportMarkdown(entries []store.Entry, lang, dateLayout string) string {
	var b strings.Builder
	line := func(key string, v *string) {
		if v != nil && *v != "" {
			b.WriteString("- " + s.loc.T(key, lang, nil) + ": " + *v + "\n")
		}
	}
	for _, e := range entries {
		b.WriteString("## " + formatDate(e.Date, dateLayout) + "\n")
		line("export_field_mood", e.Mood)
		line("export_field_weather", e.Weather)
		line("export_field_location", e.Location)
		line("export_field_events", e.Events)
		line("export_field_notes", e.Notes)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func exportCSV(entries []store.Entry) (string, error) {
	var b strings.Builder
	w := csv.NewWriter(&b)
	if err := w.Write([]string{"date", "mood", "weather", "location", "events", "notes"}); err != nil {
		return "", err
	}
	for _, e := range entries {
		rec := []string{e.Date, deref(e.Mood), deref(e.Weather), deref(e.Location), deref(e.Events), deref(e.Notes)}
		if err := w.Write(rec); err != nil {
			return "", err
		}
	}
	w.Flush()
	return b.String(), w.Error()
}

func exportJSON(entries []store.Entry) (string, error) {
	type record struct {
		Date     string `json:"date"`
		Mood     string `json:"mood,omitempty"`
		Weather  string `json:"weather,omitempty"`
		Location string `json:"location,omitempty"`
		Events   string `json:"events,omitempty"`
		Notes    string `json:"notes,omitempty"`
	}
	out := make([]record, 0, len(entries))
	for _, e := range entries {
		out = append(out, record{
			Date:     e.Date,
			Mood:     deref(e.Mood),
			Weather:  deref(e.Weather),
			Location: deref(e.Location),
			Events:   deref(e.Events),
			Notes:    deref(e.Notes),
		})
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// splitChunks cuts text at line boundaries so no piece exceeds limit.
func splitChunks(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var chunks []string
	var current strings.Builder
	for _, line := range strings.Split(text, "\n") {
		if current.Len() > 0 && current.Len()+len(line)+1 > limit {
			chunks = append(chunks, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if current.Len() > 0 {
		chunks = append(chunks, current.String())
	}
	return chunks
}
