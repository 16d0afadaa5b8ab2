package config

import (
	"log"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads path into a Store whenever the file changes on disk,
// mirroring the teacher's fsnotify-based file watching.
type Watcher struct {
	fsw  *fsnotify.Watcher
	path string
}

// WatchFile starts watching path's containing directory (editors commonly
// replace a file via rename-into-place, which fsnotify only observes on
// the directory, not the original file's now-stale watch) and applies
// every change to store until Stop is called.
func WatchFile(path string, store *Store) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dir := dirOf(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{fsw: fsw, path: path}
	go w.loop(store)
	return w, nil
}

func (w *Watcher) loop(store *Store) {
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}
			next, err := Load(w.path)
			if err != nil {
				log.Printf("config: reload %s failed, keeping previous configuration: %v", w.path, err)
				continue
			}
			store.Replace(next, func(field string) {
				log.Printf("config: %s changed in %s, restart fabricd to apply it", field, w.path)
			})
			log.Printf("config: reloaded %s", w.path)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watch error: %v", err)
		}
	}
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() error {
	return w.fsw.Close()
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
