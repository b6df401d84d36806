// SPDX-License-Identifier: GPL-3.0-or-later

package radosconn

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// MockConn answers monitor commands by prefix and lists images from a map.
type MockConn struct {
	Responses      map[string][]byte
	Errors         map[string]error
	Images         map[string][]string
	ListImagesFunc func(ctx context.Context, pool string) ([]string, error)
}

func (m *MockConn) MonCommand(_ context.Context, args []byte) ([]byte, error) {
	prefix := gjson.GetBytes(args, "prefix").String()

	if err, ok := m.Errors[prefix]; ok {
		return nil, err
	}
	if bs, ok := m.Responses[prefix]; ok {
		return bs, nil
	}
	return nil, fmt.Errorf("command '%s' not supported: %w", prefix, errors.ErrUnsupported)
}

func (m *MockConn) ListImages(ctx context.Context, pool string) ([]string, error) {
	if m.ListImagesFunc != nil {
		return m.ListImagesFunc(ctx, pool)
	}
	images, ok := m.Images[pool]
	if !ok {
		return nil, fmt.Errorf("pool '%s' does not exist", pool)
	}
	return images, nil
}
