// SPDX-License-Identifier: GPL-3.0-or-later

package adminsocket

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ceph/cephmetrics/pkg/socket"

	"github.com/tidwall/gjson"
)

// MockCaller answers Call from canned responses keyed by MockKey.
// Unknown keys behave like a missing admin socket.
type MockCaller struct {
	Responses map[string][]byte
	Errors    map[string]error

	mu    sync.Mutex
	calls []string
}

func MockKey(path string, tokens ...string) string {
	return path + " " + strings.Join(tokens, " ")
}

func (m *MockCaller) Call(_ context.Context, path, _ string, tokens ...string) (gjson.Result, error) {
	key := MockKey(path, tokens...)

	m.mu.Lock()
	m.calls = append(m.calls, key)
	m.mu.Unlock()

	if err, ok := m.Errors[key]; ok {
		return gjson.Result{}, err
	}
	bs, ok := m.Responses[key]
	if !ok {
		return gjson.Result{}, fmt.Errorf("%w: '%s' does not exist", socket.ErrConnectionUnavailable, path)
	}
	return decodeResponse(bs, FormatJSON)
}

// Calls returns the keys of all calls made so far.
func (m *MockCaller) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}
