// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"testing"
	"time"

	"github.com/ceph/cephmetrics/pkg/confopt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("testdata/cephmetrics.conf")
	require.NoError(t, err)

	want := DefaultConfig()
	want.ClusterName = "ceph"
	want.UpdateEvery = 5
	want.LogLevel = "debug"
	want.LockDir = "/tmp"
	want.AdminSocket = AdminSocketConfig{
		ConnectTimeout: confopt.Duration(time.Second * 2),
		InitialTimeout: confopt.Duration(time.Second * 10),
		ChunkTimeout:   confopt.Duration(time.Millisecond * 500),
		MaxChunk:       8192,
	}
	want.RBDScan = RBDScanConfig{
		Enabled:    false,
		Timeout:    confopt.Duration(time.Second * 30),
		MaxWorkers: 8,
	}
	want.Rados = RadosConfig{
		User:       "cephmetrics",
		ConfigFile: "/etc/ceph/ceph.conf",
		Timeout:    confopt.Duration(time.Second * 3),
	}
	want.Collectors = []string{"mon", "osd"}

	assert.Equal(t, want, cfg)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, time.Second*5, cfg.Interval())
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := map[string]struct {
		path string
	}{
		"missing file": {path: "testdata/not_exists.conf"},
		"invalid yaml": {path: "testdata/invalid.conf"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(test.path)

			assert.Error(t, err)
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := map[string]struct {
		prepare  func(cfg *Config)
		wantFail bool
	}{
		"valid": {
			prepare: func(cfg *Config) {},
		},
		"no cluster name": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.ClusterName = "" },
		},
		"zero update_every": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.UpdateEvery = 0 },
		},
		"negative update_every": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.UpdateEvery = -1 },
		},
		"no run_dir": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.RunDir = "" },
		},
		"zero initial timeout": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.AdminSocket.InitialTimeout = 0 },
		},
		"negative rados timeout": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.Rados.Timeout = confopt.Duration(-time.Second) },
		},
		"zero scan timeout": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.RBDScan.Timeout = 0 },
		},
		"zero max chunk": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.AdminSocket.MaxChunk = 0 },
		},
		"zero scan workers": {
			wantFail: true,
			prepare:  func(cfg *Config) { cfg.RBDScan.MaxWorkers = 0 },
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.ClusterName = "ceph"
			test.prepare(&cfg)

			if test.wantFail {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}
