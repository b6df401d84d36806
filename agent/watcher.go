// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"path/filepath"

	"github.com/ceph/cephmetrics/logger"

	"github.com/fsnotify/fsnotify"
)

// socketWatcher signals when admin sockets appear in or disappear from the
// run directory, so that collectors of newly started daemons get probed.
type socketWatcher struct {
	*logger.Logger

	watcher *fsnotify.Watcher
	changed chan struct{}
}

func newSocketWatcher(dir string, log *logger.Logger) (*socketWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := w.Add(dir); err != nil {
		_ = w.Close()
		return nil, err
	}

	return &socketWatcher{
		Logger:  log,
		watcher: w,
		changed: make(chan struct{}, 1),
	}, nil
}

func (w *socketWatcher) run(ctx context.Context) {
	defer func() { _ = w.watcher.Close() }()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.Warningf("run dir watcher: %v", err)
		}
	}
}

func (w *socketWatcher) handle(event fsnotify.Event) {
	if filepath.Ext(event.Name) != ".asok" {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}

	w.Debugf("admin socket event: %s", event)

	select {
	case w.changed <- struct{}{}:
	default:
	}
}
