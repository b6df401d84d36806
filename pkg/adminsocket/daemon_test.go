// SPDX-License-Identifier: GPL-3.0-or-later

package adminsocket

import (
	"bufio"
	"encoding/binary"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

// fakeDaemon answers admin socket requests the way a ceph daemon does:
// one NUL terminated JSON request per connection, one framed response.
type fakeDaemon struct {
	path      string
	responses map[string][]byte

	mu       sync.Mutex
	requests []string
}

func newFakeDaemon(t *testing.T, responses map[string][]byte) *fakeDaemon {
	t.Helper()

	dir, err := os.MkdirTemp("", "cmasok")
	require.NoError(t, err)

	d := &fakeDaemon{path: filepath.Join(dir, "ceph-osd.0.asok"), responses: responses}

	ln, err := net.Listen("unix", d.path)
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
				d.serve(conn)
			}()
		}
	}()

	return d
}

func (d *fakeDaemon) serve(conn net.Conn) {
	r := bufio.NewReader(conn)
	for {
		req, err := r.ReadBytes(0)
		if err != nil {
			return
		}
		req = req[:len(req)-1]

		d.mu.Lock()
		d.requests = append(d.requests, string(req))
		d.mu.Unlock()

		resp, ok := d.responses[gjson.GetBytes(req, "prefix").String()]
		if !ok {
			resp = []byte(`{"error":"unknown command"}`)
		}

		var prefix [4]byte
		binary.BigEndian.PutUint32(prefix[:], uint32(len(resp)))
		if _, err := conn.Write(append(prefix[:], resp...)); err != nil {
			return
		}
	}
}

func (d *fakeDaemon) received() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.requests...)
}
