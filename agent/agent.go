// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"runtime/debug"
	"slices"
	"strings"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/logger"
	"github.com/ceph/cephmetrics/pkg/filelock"

	"golang.org/x/sync/errgroup"
)

// collectors that failed the probe are probed again every reprobeEvery cycles
const reprobeEvery = 30

type collector struct {
	name string
	mod  module.Module
}

// Agent runs the collectors that apply to this host on a fixed interval and
// hands the merged metrics to a Sink.
type Agent struct {
	*logger.Logger

	Config   Config
	Env      module.Env
	Registry module.Registry
	Sink     Sink

	interval time.Duration
	lock     *filelock.Locker

	created map[string]module.Module
	enabled []*collector
	cycles  int
	reprobe bool

	now func() time.Time
}

func New(cfg Config, env module.Env, reg module.Registry, sink Sink) *Agent {
	return &Agent{
		Logger: logger.New().With(
			slog.String("component", "agent"),
		),
		Config:   cfg,
		Env:      env,
		Registry: reg,
		Sink:     sink,
		interval: cfg.Interval(),
		created:  make(map[string]module.Module),
		now:      time.Now,
	}
}

// Init takes the per cluster lock and probes the collectors.
func (a *Agent) Init(ctx context.Context) error {
	if a.Config.LockDir != "" {
		lock := filelock.New(a.Config.LockDir)
		if err := lock.Acquire(a.Config.ClusterName); err != nil {
			return fmt.Errorf("another instance is collecting cluster '%s': %w", a.Config.ClusterName, err)
		}
		a.lock = lock
	}

	a.probe(ctx)

	if len(a.enabled) == 0 {
		a.Warning("no collectors apply to this host, will probe again later")
	}
	return nil
}

// Run collects every interval until ctx is done.
func (a *Agent) Run(ctx context.Context) {
	a.Infof("started, data collection interval %s", a.interval)
	defer func() { a.Info("stopped") }()

	var changed <-chan struct{}
	if w, err := newSocketWatcher(a.Config.RunDir, a.Logger); err != nil {
		a.Warningf("can not watch '%s' for admin sockets: %v", a.Config.RunDir, err)
	} else {
		changed = w.changed
		go w.run(ctx)
	}

	tk := time.NewTicker(a.interval)
	defer tk.Stop()

	a.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-changed:
			a.reprobe = true
		case <-tk.C:
			a.RunOnce(ctx)

			select {
			case <-tk.C:
				a.Debug("skip the tick due to previous run hasn't been finished")
			default:
			}
		}
	}
}

// RunOnce runs a single collection cycle and writes its metrics to the sink.
func (a *Agent) RunOnce(ctx context.Context) {
	a.cycles++
	if a.reprobe || (a.cycles%reprobeEvery == 0 && len(a.enabled) < len(a.candidates())) {
		a.reprobe = false
		a.probe(ctx)
	}

	start := a.now()
	mx := a.collect(ctx)

	a.Debugf("cycle %d: %d collectors, %d metrics, took %s", a.cycles, len(a.enabled), len(mx), a.now().Sub(start))

	if a.Sink == nil {
		return
	}
	if err := a.Sink.Write(start, mx); err != nil {
		a.Errorf("write metrics: %v", err)
	}
}

func (a *Agent) Cleanup(ctx context.Context) {
	for _, name := range slices.Sorted(maps.Keys(a.created)) {
		a.created[name].Cleanup(ctx)
	}
	if a.lock != nil {
		a.lock.UnlockAll()
	}
}

// candidates returns the registered collector names allowed by the configuration.
func (a *Agent) candidates() []string {
	var names []string
	for _, name := range a.Registry.Names() {
		if len(a.Config.Collectors) == 0 || slices.Contains(a.Config.Collectors, name) {
			names = append(names, name)
		}
	}
	return names
}

func (a *Agent) probe(ctx context.Context) {
	var enabled []*collector

	for _, name := range a.candidates() {
		if i := slices.IndexFunc(a.enabled, func(c *collector) bool { return c.name == name }); i != -1 {
			enabled = append(enabled, a.enabled[i])
			continue
		}

		mod, ok := a.created[name]
		if !ok {
			creator, _ := a.Registry.Lookup(name)
			mod = creator.Create(a.Env)
			mod.GetBase().Logger = logger.New().With(slog.String("collector", name))
			a.created[name] = mod
		}

		if !a.probeModule(ctx, name, mod) {
			a.Debugf("collector '%s' does not apply to this host", name)
			continue
		}

		a.Infof("collector '%s' enabled", name)
		enabled = append(enabled, &collector{name: name, mod: mod})
	}

	a.enabled = enabled
}

func (a *Agent) probeModule(ctx context.Context, name string, mod module.Module) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
			a.Errorf("collector '%s' probe: PANIC: %v", name, r)
			if logger.Level.Enabled(slog.LevelDebug) {
				a.Errorf("STACK: %s", debug.Stack())
			}
		}
	}()
	return mod.Probe(ctx)
}

func (a *Agent) collect(ctx context.Context) module.Metrics {
	results := make([]module.Metrics, len(a.enabled))

	var g errgroup.Group
	g.SetLimit(len(a.enabled))

	for i, c := range a.enabled {
		g.Go(func() error {
			results[i] = a.collectOne(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	mx := module.Metrics{}
	for i, c := range a.enabled {
		mx.Merge(results[i])

		if errs := c.mod.GetBase().TakeErrors(); len(errs) > 0 {
			a.Warningf("%s error: %s", c.name, strings.Join(errs, ", "))
		}
	}

	return mx
}

func (a *Agent) collectOne(ctx context.Context, c *collector) module.Metrics {
	defer func() {
		if r := recover(); r != nil {
			c.mod.GetBase().Fail("panic: %v", r)
			a.Errorf("collector '%s': PANIC: %v", c.name, r)
			if logger.Level.Enabled(slog.LevelDebug) {
				a.Errorf("STACK: %s", debug.Stack())
			}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, a.interval)
	defer cancel()

	return c.mod.Collect(ctx)
}
