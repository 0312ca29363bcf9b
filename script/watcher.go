package script

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// watcher follows one script file and invokes onChange when it is
// modified. The parent directory is watched rather than the file itself
// so editors that replace the file on save still trigger a reload.
type watcher struct {
	fs   *fsnotify.Watcher
	done chan struct{}
}

func newWatcher(path string, onChange func()) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fs.Close()
		return nil, err
	}

	if err := fs.Add(filepath.Dir(abs)); err != nil {
		_ = fs.Close()
		return nil, err
	}

	w := &watcher{fs: fs, done: make(chan struct{})}
	go w.loop(abs, onChange)

	logrus.WithFields(logrus.Fields{
		"function": "newWatcher",
		"path":     abs,
	}).Info("Watching script for changes")

	return w, nil
}

func (w *watcher) loop(path string, onChange func()) {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if event.Name != path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				logrus.WithFields(logrus.Fields{
					"function": "watcher.loop",
					"path":     path,
					"op":       event.Op.String(),
				}).Debug("Script changed on filesystem")
				onChange()
			}

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			logrus.WithFields(logrus.Fields{
				"function": "watcher.loop",
				"error":    err.Error(),
			}).Warn("Script watcher error")
		}
	}
}

func (w *watcher) Close() {
	close(w.done)
	_ = w.fs.Close()
}
