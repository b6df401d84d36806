// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/jessevdk/go-flags"
)

// Option defines command line options.
type Option struct {
	Config  string `short:"c" long:"config" description:"configuration file to read" default:"/etc/cephmetrics/cephmetrics.conf"`
	Modules string `short:"m" long:"modules" description:"comma separated collectors to run" default:"all"`
	Debug   bool   `short:"d" long:"debug" description:"debug mode"`
	Version bool   `short:"v" long:"version" description:"display the version and exit"`
	Once    bool   `long:"once" description:"run a single collection cycle and exit"`
}

// Parse returns parsed command-line flags in Option struct
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = "cephmetrics"
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return opt, nil
}

// Collectors returns the collectors selected with -m, or nil for all.
func (o *Option) Collectors() []string {
	if o.Modules == "" || o.Modules == "all" {
		return nil
	}

	var names []string
	for _, name := range strings.Split(o.Modules, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
