// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"syscall"
	"time"
)

// aLongTimeAgo is a non-zero time in the past, used to abort pending I/O.
var aLongTimeAgo = time.Unix(1, 0)

func socketPath(address string) string {
	return strings.TrimPrefix(address, "unix://")
}

// Exists reports whether the socket path is present on disk.
func Exists(address string) bool {
	_, err := os.Stat(socketPath(address))
	return err == nil
}

// deadline returns now+timeout, or the context deadline when that is earlier.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if cd, ok := ctx.Deadline(); ok && cd.Before(d) {
		return cd
	}
	return d
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE)
}

func isNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, syscall.ENOENT)
}
