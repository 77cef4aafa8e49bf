package form

import "github.com/starford/daylog/internal/transport"

// CancelPayload aborts the wizard from any step. It is unprefixed: a user
// has at most one session, so the payload needs no namespace.
const CancelPayload = "cancel_creation"

// Fixed choice vocabularies per step. A choice maps to its canonical stored
// value through the localization key "<step>_<choice>".
var (
	moodChoices     = []string{"excellent", "good", "normal", "bad", "terrible"}
	weatherChoices  = []string{"sunny", "cloudy", "rainy", "snowy", "foggy"}
	locationChoices = []string{"home", "work", "street"}
)

func inVocabulary(vocab []string, choice string) bool {
	for _, v := range vocab {
		if v == choice {
			return true
		}
	}
	return false
}

func (e *Engine) btn(labelKey, lang, data string) transport.Button {
	return transport.Button{Label: e.loc.T(labelKey, lang, nil), Data: data}
}

func (e *Engine) moodKeyboard(lang, prefix string) [][]transport.Button {
	p := prefix + "mood_"
	return [][]transport.Button{
		{e.btn("mood_excellent", lang, p+"excellent"), e.btn("mood_good", lang, p+"good")},
		{e.btn("mood_normal", lang, p+"normal"), e.btn("mood_bad", lang, p+"bad")},
		{e.btn("mood_terrible", lang, p+"terrible")},
		{e.btn("btn_skip", lang, p+"skip"), e.btn("btn_cancel", lang, CancelPayload)},
	}
}

func (e *Engine) weatherKeyboard(lang, prefix string) [][]transport.Button {
	p := prefix + "weather_"
	return [][]transport.Button{
		{e.btn("weather_sunny", lang, p+"sunny"), e.btn("weather_cloudy", lang, p+"cloudy")},
		{e.btn("weather_rainy", lang, p+"rainy"), e.btn("weather_snowy", lang, p+"snowy")},
		{e.btn("weather_foggy", lang, p+"foggy"), e.btn("btn_manual", lang, p+"manual")},
		{e.btn("btn_skip", lang, p+"skip"), e.btn("btn_back", lang, p+"back"), e.btn("btn_cancel", lang, CancelPayload)},
	}
}

func (e *Engine) locationKeyboard(lang, prefix string) [][]transport.Button {
	p := prefix + "location_"
	return [][]transport.Button{
		{e.btn("location_home", lang, p+"home"), e.btn("location_work", lang, p+"work")},
		{e.btn("location_street", lang, p+"street"), e.btn("btn_manual", lang, p+"manual")},
		{e.btn("btn_skip", lang, p+"skip"), e.btn("btn_back", lang, p+"back"), e.btn("btn_cancel", lang, CancelPayload)},
	}
}

func (e *Engine) eventsKeyboard(lang, prefix string, editMode bool) [][]transport.Button {
	p := prefix + "events_"
	rows := [][]transport.Button{
		{e.btn("btn_skip", lang, p+"skip"), e.btn("btn_back", lang, p+"back"), e.btn("btn_cancel", lang, CancelPayload)},
	}
	if editMode {
		sub := []transport.Button{
			e.btn("btn_replace", lang, p+"replace"),
			e.btn("btn_append", lang, p+"append"),
			e.btn("btn_rewrite", lang, p+"rewrite"),
		}
		rows = append([][]transport.Button{sub}, rows...)
	}
	return rows
}
