// SPDX-License-Identifier: GPL-3.0-or-later

// Package filelock keeps two collector processes from polling the same
// cluster from one host.
package filelock

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("locked by another process")

func New(dir string) *Locker {
	return &Locker{
		suffix: ".cephmetrics.lock",
		dir:    dir,
		locks:  make(map[string]*flock.Flock),
	}
}

type Locker struct {
	suffix string
	dir    string
	locks  map[string]*flock.Flock
}

// Acquire takes the lock for name or fails with ErrLocked.
func (l *Locker) Acquire(name string) error {
	ok, err := l.TryLock(name)
	if err != nil {
		return fmt.Errorf("lock '%s': %v", l.filename(name), err)
	}
	if !ok {
		return fmt.Errorf("'%s': %w", l.filename(name), ErrLocked)
	}
	return nil
}

// TryLock reports whether the lock for name is held by this Locker after the call.
func (l *Locker) TryLock(name string) (bool, error) {
	filename := l.filename(name)

	if _, ok := l.locks[filename]; ok {
		return true, nil
	}

	locker := flock.New(filename)

	ok, err := locker.TryLock()
	if !ok {
		_ = locker.Close()
		return false, err
	}

	l.locks[filename] = locker
	return true, nil
}

func (l *Locker) Unlock(name string) {
	filename := l.filename(name)

	if locker, ok := l.locks[filename]; ok {
		delete(l.locks, filename)
		_ = locker.Close()
	}
}

func (l *Locker) UnlockAll() {
	for key, locker := range l.locks {
		delete(l.locks, key)
		_ = locker.Close()
	}
}

func (l *Locker) isLocked(name string) bool {
	_, ok := l.locks[l.filename(name)]
	return ok
}

func (l *Locker) filename(name string) string {
	return filepath.Join(l.dir, name+l.suffix)
}
