package i18n

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// ReloadCallback is called after a locale file has been reloaded.
type ReloadCallback func(lang string)

// Watch starts an fsnotify watcher on the locales directory and reloads
// changed files until ctx is cancelled. It calls cb (if non-nil) after each
// successful reload so dependent caches can be invalidated. A reload
// failure keeps the previous table and is only logged.
func (b *Bundle) Watch(ctx context.Context, logger *slog.Logger, cb ReloadCallback) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	if err := w.Add(b.dir); err != nil {
		return err
	}
	logger.Info("i18n: watcher started", slog.String("dir", b.dir))

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(ev.Name)
			if !strings.HasSuffix(name, ".yaml") {
				continue
			}
			lang := strings.TrimSuffix(name, ".yaml")
			if err := b.loadFile(lang); err != nil {
				logger.Warn("i18n: reload failed", slog.String("lang", lang), slog.String("error", err.Error()))
				continue
			}
			logger.Info("i18n: locale reloaded", slog.String("lang", lang))
			if cb != nil {
				cb(lang)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("i18n: watcher error", slog.String("error", err.Error()))
		}
	}
}
