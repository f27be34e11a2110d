package config

import (
	"context"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads a Store whenever config.yaml changes on disk, matching
// the teacher's watcher-triggered reload pattern (its worker.go wires an
// fsnotify-backed configWatcher the same way).
type Watcher struct {
	fsw *fsnotify.Watcher
}

// WatchStore starts a background fsnotify watch on the user config file's
// directory and reloads store on any write/create/rename event that
// touches the user config path. Returns immediately; call Close to stop.
func WatchStore(ctx context.Context, store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := ConfigDir()
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	target := UserConfigPath()
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-fsw.Events:
				if !ok {
					return
				}
				if ev.Name != target {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				store.Reload()
			case err, ok := <-fsw.Errors:
				if !ok {
					return
				}
				log.Warn().Err(err).Msg("config: watcher error")
			}
		}
	}()

	return &Watcher{fsw: fsw}, nil
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	if w == nil || w.fsw == nil {
		return nil
	}
	return w.fsw.Close()
}
