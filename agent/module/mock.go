// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
)

// MockModule MockModule.
type MockModule struct {
	Base

	ProbeFunc   func(context.Context) bool
	CollectFunc func(context.Context) Metrics
	CleanupFunc func()
	CleanupDone bool
}

// Probe returns true unless ProbeFunc says otherwise.
func (m *MockModule) Probe(ctx context.Context) bool {
	if m.ProbeFunc == nil {
		return true
	}
	return m.ProbeFunc(ctx)
}

// Collect invokes CollectFunc.
func (m *MockModule) Collect(ctx context.Context) Metrics {
	if m.CollectFunc == nil {
		return nil
	}
	return m.CollectFunc(ctx)
}

// Cleanup sets CleanupDone to true.
func (m *MockModule) Cleanup(context.Context) {
	if m.CleanupFunc != nil {
		m.CleanupFunc()
	}
	m.CleanupDone = true
}
