// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"maps"
	"slices"
	"strings"
)

type Kind uint8

const (
	Gauge Kind = iota
	Counter
)

func (k Kind) String() string {
	switch k {
	case Counter:
		return "counter"
	default:
		return "gauge"
	}
}

type Metric struct {
	Value float64
	Kind  Kind
}

// Metrics maps dotted metric paths to values.
type Metrics map[string]Metric

func (m Metrics) Gauge(path string, value float64)   { m[path] = Metric{Value: value, Kind: Gauge} }
func (m Metrics) Counter(path string, value float64) { m[path] = Metric{Value: value, Kind: Counter} }

// Merge copies every metric of other into m.
func (m Metrics) Merge(other Metrics) {
	maps.Copy(m, other)
}

// Paths returns the metric paths in sorted order.
func (m Metrics) Paths() []string {
	return slices.Sorted(maps.Keys(m))
}

// Path joins non-empty elements with dots.
func Path(elems ...string) string {
	var sb strings.Builder
	for _, e := range elems {
		if e == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(e)
	}
	return sb.String()
}
