// SPDX-License-Identifier: GPL-3.0-or-later

// Package radosconn runs monitor commands and RBD listings through librados.
package radosconn

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/ceph/cephmetrics/logger"

	"github.com/ceph/go-ceph/rados"
	"github.com/ceph/go-ceph/rbd"
	"github.com/tidwall/gjson"
)

// Conn is the part of the cluster connection the collectors use.
type Conn interface {
	MonCommand(ctx context.Context, args []byte) ([]byte, error)
	ListImages(ctx context.Context, pool string) ([]string, error)
}

type Config struct {
	User       string
	ConfigFile string
	Timeout    time.Duration
}

// Rados implements Conn on top of librados. Every call opens and shuts down
// its own connection, so a Rados may be used from many goroutines.
type Rados struct {
	*logger.Logger
	Config
}

var _ Conn = (*Rados)(nil)

func New(cfg Config) *Rados {
	return &Rados{Config: cfg}
}

func (r *Rados) connect(ctx context.Context) (*rados.Conn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	conn, err := rados.NewConnWithUser(r.User)
	if err != nil {
		return nil, fmt.Errorf("create rados connection: %v", err)
	}

	if r.ConfigFile != "" {
		err = conn.ReadConfigFile(r.ConfigFile)
	} else {
		err = conn.ReadDefaultConfigFile()
	}
	if err != nil {
		return nil, fmt.Errorf("read config file: %v", err)
	}

	// librados calls can not be interrupted, bound them on the cluster side
	tv := strconv.FormatFloat(r.Timeout.Seconds(), 'f', -1, 64)
	for _, opt := range []string{"rados_osd_op_timeout", "rados_mon_op_timeout", "client_mount_timeout"} {
		if err := conn.SetConfigOption(opt, tv); err != nil {
			return nil, fmt.Errorf("set %s: %v", opt, err)
		}
	}

	if err := conn.Connect(); err != nil {
		return nil, fmt.Errorf("connect to rados: %v", err)
	}

	return conn, nil
}

func (r *Rados) MonCommand(ctx context.Context, args []byte) ([]byte, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Shutdown()

	start := time.Now()
	buf, info, err := conn.MonCommand(args)
	r.Debugf("mon command %s took %.3fs", args, time.Since(start).Seconds())

	if err != nil {
		if info != "" {
			return nil, fmt.Errorf("%v: %s", err, info)
		}
		return nil, err
	}
	return buf, nil
}

func (r *Rados) ListImages(ctx context.Context, pool string) ([]string, error) {
	conn, err := r.connect(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Shutdown()

	ioctx, err := conn.OpenIOContext(pool)
	if err != nil {
		return nil, fmt.Errorf("open pool '%s': %v", pool, err)
	}
	defer ioctx.Destroy()

	return rbd.GetImageNames(ioctx)
}

// Command runs a monitor command that takes no arguments and returns its JSON output.
func Command(ctx context.Context, conn Conn, prefix string) (gjson.Result, error) {
	args, err := json.Marshal(map[string]string{"prefix": prefix, "format": "json"})
	if err != nil {
		return gjson.Result{}, err
	}

	bs, err := conn.MonCommand(ctx, args)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("mon command '%s': %w", prefix, err)
	}
	if !gjson.ValidBytes(bs) {
		return gjson.Result{}, fmt.Errorf("mon command '%s': invalid json response", prefix)
	}
	return gjson.ParseBytes(bs), nil
}
