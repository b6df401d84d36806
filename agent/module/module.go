// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ceph/cephmetrics/logger"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/socket"
)

// Module is a collector for one kind of ceph daemon.
type Module interface {
	// Probe reports whether the daemon runs on this host.
	// A collector is only run after a successful probe.
	Probe(context.Context) bool

	// Collect collects metrics. Failures are reported with Base.Fail,
	// Collect returns whatever it managed to gather.
	Collect(context.Context) Metrics

	Cleanup(context.Context)

	GetBase() *Base
}

// Env is the cluster context shared by all collectors of an agent.
type Env struct {
	Cluster  string
	Host     string // short host name
	RunDir   string // where daemons keep their admin sockets
	Interval time.Duration
	Sockets  adminsocket.Caller
}

// AdminSocket returns the admin socket path of a daemon, e.g. "mon.host1".
func (e Env) AdminSocket(daemon string) string {
	return fmt.Sprintf("%s/%s-%s.asok", strings.TrimSuffix(e.RunDir, "/"), e.Cluster, daemon)
}

// Base is embedded by every collector.
type Base struct {
	*logger.Logger

	mu   sync.Mutex
	errs []string
}

func (b *Base) GetBase() *Base { return b }

// Fail marks the current cycle as degraded and records a message.
func (b *Base) Fail(format string, a ...any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, fmt.Sprintf(format, a...))
}

// Degrade records a failed step of the current cycle. A daemon that is not
// running (no admin socket) is not an error and is only logged at debug level.
func (b *Base) Degrade(step string, err error) {
	if errors.Is(err, socket.ErrConnectionUnavailable) {
		b.Debugf("%s: %v", step, err)
		return
	}
	b.Fail("%s: %v", step, err)
}

// TakeErrors returns the messages recorded since the last call and resets them.
func (b *Base) TakeErrors() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	errs := b.errs
	b.errs = nil
	return errs
}
