// SPDX-License-Identifier: GPL-3.0-or-later

package socket

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestDaemon starts a unix socket server that hands every accepted
// connection to handle. It returns the socket path.
func newTestDaemon(t *testing.T, handle func(conn net.Conn)) string {
	t.Helper()

	// unix socket paths are limited to ~108 bytes, t.TempDir() can be longer
	dir, err := os.MkdirTemp("", "cmsock")
	require.NoError(t, err)

	path := filepath.Join(dir, "daemon.asok")

	ln, err := net.Listen("unix", path)
	require.NoError(t, err)

	var wg sync.WaitGroup
	t.Cleanup(func() {
		_ = ln.Close()
		wg.Wait()
		_ = os.RemoveAll(dir)
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer func() { _ = conn.Close() }()
				handle(conn)
			}()
		}
	}()

	return path
}

// readRequest reads one NUL terminated request.
func readRequest(r io.Reader) ([]byte, error) {
	bs, err := bufio.NewReader(r).ReadBytes(0)
	if err != nil {
		return nil, err
	}
	return bs[:len(bs)-1], nil
}

func writeFrame(w io.Writer, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func drain(conn net.Conn) {
	_, _ = io.Copy(io.Discard, conn)
}
