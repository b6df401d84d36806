// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"

	"github.com/ceph/cephmetrics/agent"
	"github.com/ceph/cephmetrics/cli"
	"github.com/ceph/cephmetrics/logger"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/buildinfo"
	"github.com/ceph/cephmetrics/pkg/radosconn"
)

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, args ...interface{}) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("cephmetrics, version: %s\n", buildinfo.Version)
		return
	}

	cfg, err := agent.LoadConfig(opts.Config)
	if err != nil {
		logger.Errorf("load configuration: %v", err)
		os.Exit(1)
	}
	if names := opts.Collectors(); names != nil {
		cfg.Collectors = names
	}

	logger.Level.SetByName(cfg.LogLevel)
	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	if err := cfg.Validate(); err != nil {
		logger.Errorf("invalid configuration '%s': %v", opts.Config, err)
		os.Exit(1)
	}

	os.Exit(run(opts, cfg))
}

func run(opts *cli.Option, cfg agent.Config) int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sockets := adminsocket.New(adminsocket.Config{
		ConnectTimeout: cfg.AdminSocket.ConnectTimeout.Duration(),
		InitialTimeout: cfg.AdminSocket.InitialTimeout.Duration(),
		ChunkTimeout:   cfg.AdminSocket.ChunkTimeout.Duration(),
		MaxChunk:       cfg.AdminSocket.MaxChunk,
	})
	sockets.Logger = logger.New().With(slog.String("component", "adminsocket"))

	conn := radosconn.New(radosconn.Config{
		User:       cfg.Rados.User,
		ConfigFile: cfg.Rados.ConfigFile,
		Timeout:    cfg.Rados.Timeout.Duration(),
	})
	conn.Logger = logger.New().With(slog.String("component", "rados"))

	env := newEnv(cfg, sockets)

	a := agent.New(cfg, env, newRegistry(cfg, conn), agent.NewTextSink(os.Stdout, cfg.Prefix))

	a.Infof("cephmetrics %s, host '%s', %s", buildinfo.Version, env.Host, cfg)

	if err := a.Init(ctx); err != nil {
		a.Error(err)
		return 1
	}
	defer a.Cleanup(context.Background())

	if opts.Once {
		a.RunOnce(ctx)
		return 0
	}

	a.Run(ctx)
	return 0
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args[1:])
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}
	return opt
}

// shortHostname returns the host name up to the first dot, the way ceph names
// its daemons.
func shortHostname() string {
	name, err := os.Hostname()
	if err != nil {
		logger.Warningf("get hostname: %v", err)
		return "localhost"
	}
	name, _, _ = strings.Cut(name, ".")
	return name
}
