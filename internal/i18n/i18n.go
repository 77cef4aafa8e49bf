// Package i18n resolves localization keys from YAML locale files. Lookup
// never fails: a missing translation degrades to the default language and
// finally to the raw key.
package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Bundle holds the loaded locale tables. Safe for concurrent use; the
// watcher may swap tables while handlers resolve strings.
type Bundle struct {
	dir         string
	defaultLang string

	mu     sync.RWMutex
	tables map[string]map[string]string
}

// Load reads every <lang>.yaml file in dir.
func Load(dir, defaultLang string) (*Bundle, error) {
	b := &Bundle{
		dir:         dir,
		defaultLang: defaultLang,
		tables:      make(map[string]map[string]string),
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("i18n: read locales dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		lang := strings.TrimSuffix(e.Name(), ".yaml")
		if err := b.loadFile(lang); err != nil {
			return nil, err
		}
	}
	if _, ok := b.tables[defaultLang]; !ok {
		return nil, fmt.Errorf("i18n: default language %q has no locale file in %s", defaultLang, dir)
	}
	return b, nil
}

// loadFile parses one locale file and swaps it in. A parse failure keeps
// the previously loaded table.
func (b *Bundle) loadFile(lang string) error {
	data, err := os.ReadFile(filepath.Join(b.dir, lang+".yaml"))
	if err != nil {
		return fmt.Errorf("i18n: read locale %s: %w", lang, err)
	}
	table := make(map[string]string)
	if err := yaml.Unmarshal(data, &table); err != nil {
		return fmt.Errorf("i18n: parse locale %s: %w", lang, err)
	}

	b.mu.Lock()
	b.tables[lang] = table
	b.mu.Unlock()
	return nil
}

// Languages returns the loaded language codes, sorted.
func (b *Bundle) Languages() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.tables))
	for lang := range b.tables {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the language has a loaded table.
func (b *Bundle) Has(lang string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.tables[lang]
	return ok
}

// T resolves key in lang with {name} placeholder substitution. Resolution
// order: requested language, default language, the key itself.
func (b *Bundle) T(key, lang string, params map[string]string) string {
	b.mu.RLock()
	s := b.tables[lang][key]
	if s == "" && lang != b.defaultLang {
		s = b.tables[b.defaultLang][key]
	}
	b.mu.RUnlock()

	if s == "" {
		return key
	}
	if len(params) == 0 {
		return s
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}
