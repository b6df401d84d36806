// SPDX-License-Identifier: GPL-3.0-or-later

package adminsocket

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/ceph/cephmetrics/pkg/socket"

	"github.com/tidwall/gjson"
)

var ErrInvalidCommand = errors.New("invalid command")

// Schema is the set of command signatures a daemon advertises in its
// get_command_descriptions response.
type Schema struct {
	sigs []signature
}

type signature struct {
	id    string
	words []string
	args  []argDesc
}

type argDesc struct {
	name    string
	typ     string
	req     bool
	many    bool
	choices []string
}

// Command is a command validated against a Schema.
type Command struct {
	Prefix string
	Args   map[string]any
}

// ParseSchema decodes a get_command_descriptions document.
func ParseSchema(data []byte) (*Schema, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: command descriptions are not valid json", socket.ErrProtocol)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: command descriptions are not a json object", socket.ErrProtocol)
	}

	var schema Schema

	doc.ForEach(func(key, value gjson.Result) bool {
		sig := signature{id: key.String()}

		value.Get("sig").ForEach(func(_, elem gjson.Result) bool {
			if elem.Type == gjson.String {
				if len(sig.args) == 0 {
					sig.words = append(sig.words, elem.String())
				}
				return true
			}
			if elem.IsObject() {
				sig.args = append(sig.args, parseArgDesc(elem))
			}
			return true
		})

		if len(sig.words) > 0 {
			schema.sigs = append(schema.sigs, sig)
		}
		return true
	})

	slices.SortStableFunc(schema.sigs, func(a, b signature) int {
		// more literal words first, so "perf dump" wins over "perf"
		return len(b.words) - len(a.words)
	})

	return &schema, nil
}

func parseArgDesc(v gjson.Result) argDesc {
	desc := argDesc{
		name: v.Get("name").String(),
		typ:  v.Get("type").String(),
		req:  true,
	}
	if req := v.Get("req"); req.Exists() {
		desc.req = req.Bool()
	}
	if n := v.Get("n"); n.Exists() {
		desc.many = n.String() == "N"
	}
	if desc.typ == "CephChoices" {
		desc.choices = strings.Split(v.Get("strings").String(), "|")
	}
	return desc
}

// Len returns the number of advertised commands.
func (s *Schema) Len() int { return len(s.sigs) }

// Match validates tokens against the advertised signatures.
// It fails with ErrInvalidCommand when no signature accepts them.
func (s *Schema) Match(tokens ...string) (Command, error) {
	if len(tokens) == 0 {
		return Command{}, fmt.Errorf("%w: empty command", ErrInvalidCommand)
	}

	for _, sig := range s.sigs {
		if cmd, ok := sig.match(tokens); ok {
			return cmd, nil
		}
	}

	return Command{}, fmt.Errorf("%w: '%s' is not supported by the daemon", ErrInvalidCommand, strings.Join(tokens, " "))
}

func (s signature) match(tokens []string) (Command, bool) {
	if len(tokens) < len(s.words) {
		return Command{}, false
	}
	for i, w := range s.words {
		if tokens[i] != w {
			return Command{}, false
		}
	}

	cmd := Command{Prefix: strings.Join(s.words, " "), Args: make(map[string]any)}
	rest := tokens[len(s.words):]

	for _, arg := range s.args {
		if len(rest) == 0 {
			if arg.req {
				return Command{}, false
			}
			continue
		}

		if arg.many {
			vals := make([]any, 0, len(rest))
			for _, tok := range rest {
				v, ok := arg.parse(tok)
				if !ok {
					return Command{}, false
				}
				vals = append(vals, v)
			}
			cmd.Args[arg.name] = vals
			rest = nil
			continue
		}

		v, ok := arg.parse(rest[0])
		if !ok {
			if arg.req {
				return Command{}, false
			}
			continue
		}
		cmd.Args[arg.name] = v
		rest = rest[1:]
	}

	return cmd, len(rest) == 0
}

func (a argDesc) parse(tok string) (any, bool) {
	switch a.typ {
	case "CephInt":
		v, err := strconv.ParseInt(tok, 10, 64)
		return v, err == nil
	case "CephFloat":
		v, err := strconv.ParseFloat(tok, 64)
		return v, err == nil
	case "CephBool":
		v, err := strconv.ParseBool(tok)
		return v, err == nil
	case "CephChoices":
		return tok, slices.Contains(a.choices, tok)
	default:
		return tok, true
	}
}

// Marshal serializes the command for the wire, adding the output format when set.
func (c Command) Marshal(format string) ([]byte, error) {
	m := make(map[string]any, len(c.Args)+2)
	for k, v := range c.Args {
		m[k] = v
	}
	m["prefix"] = c.Prefix
	if format != "" {
		m["format"] = format
	}
	return json.Marshal(m)
}
