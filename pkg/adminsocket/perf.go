// SPDX-License-Identifier: GPL-3.0-or-later

package adminsocket

import "github.com/tidwall/gjson"

// PerfValue is a single perf dump counter: either a plain value or a
// cumulative {sum, avgcount} latency pair.
type PerfValue struct {
	Value    float64
	Sum      float64
	AvgCount uint64
	Pair     bool
}

// Section returns the subsystem with exactly the given name.
// Subsystem names contain dots ("client.rgw.host"), so gjson paths are not used.
func Section(doc gjson.Result, name string) (gjson.Result, bool) {
	_, v, ok := FindSection(doc, func(s string) bool { return s == name })
	return v, ok
}

// FindSection returns the first subsystem whose name satisfies match.
func FindSection(doc gjson.Result, match func(name string) bool) (name string, section gjson.Result, ok bool) {
	doc.ForEach(func(key, value gjson.Result) bool {
		if match(key.String()) {
			name, section, ok = key.String(), value, true
			return false
		}
		return true
	})
	return name, section, ok
}

// PerfSection decodes the counters of one perf dump subsystem.
// Objects that are not sum/avgcount pairs (histograms) are skipped.
func PerfSection(doc gjson.Result, name string) map[string]PerfValue {
	section, ok := Section(doc, name)
	if !ok {
		return nil
	}
	return decodePerf(section)
}

func decodePerf(section gjson.Result) map[string]PerfValue {
	values := make(map[string]PerfValue)

	section.ForEach(func(key, value gjson.Result) bool {
		switch {
		case value.Type == gjson.Number:
			values[key.String()] = PerfValue{Value: value.Float()}
		case value.IsObject():
			sum, count := value.Get("sum"), value.Get("avgcount")
			if sum.Exists() && count.Exists() {
				values[key.String()] = PerfValue{Sum: sum.Float(), AvgCount: count.Uint(), Pair: true}
			}
		}
		return true
	})

	return values
}
