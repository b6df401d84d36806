// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"bufio"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
)

// Sink receives the merged metrics of every cycle.
type Sink interface {
	Write(ts time.Time, mx module.Metrics) error
}

func NewTextSink(w io.Writer, prefix string) *TextSink {
	return &TextSink{w: w, prefix: prefix}
}

// TextSink writes one "<prefix>.<path> <value> <kind> <unix-ts>" line per metric,
// in path order.
type TextSink struct {
	mu     sync.Mutex
	w      io.Writer
	prefix string
}

func (s *TextSink) Write(ts time.Time, mx module.Metrics) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	bw := bufio.NewWriter(s.w)
	unix := strconv.FormatInt(ts.Unix(), 10)

	for _, path := range mx.Paths() {
		m := mx[path]

		_, _ = bw.WriteString(module.Path(s.prefix, path))
		_ = bw.WriteByte(' ')
		_, _ = bw.WriteString(strconv.FormatFloat(m.Value, 'f', -1, 64))
		_ = bw.WriteByte(' ')
		_, _ = bw.WriteString(m.Kind.String())
		_ = bw.WriteByte(' ')
		_, _ = bw.WriteString(unix)
		_ = bw.WriteByte('\n')
	}

	return bw.Flush()
}
