// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ceph/cephmetrics/pkg/confopt"

	"gopkg.in/yaml.v2"
)

const DefaultConfigPath = "/etc/cephmetrics/cephmetrics.conf"

func DefaultConfig() Config {
	return Config{
		UpdateEvery: 10,
		LogLevel:    "info",
		RunDir:      "/var/run/ceph",
		LockDir:     "/var/run/cephmetrics",
		Prefix:      "ceph",
		AdminSocket: AdminSocketConfig{
			ConnectTimeout: confopt.Duration(time.Second),
			InitialTimeout: confopt.Duration(time.Second * 5),
			ChunkTimeout:   confopt.Duration(time.Second),
			MaxChunk:       4096,
		},
		RBDScan: RBDScanConfig{
			Enabled:    true,
			Timeout:    confopt.Duration(time.Second * 5),
			MaxWorkers: 4,
		},
		Rados: RadosConfig{
			User:       "admin",
			ConfigFile: "/etc/ceph/ceph.conf",
			Timeout:    confopt.Duration(time.Second * 5),
		},
	}
}

type (
	Config struct {
		ClusterName string            `yaml:"cluster_name"`
		UpdateEvery int               `yaml:"update_every"`
		LogLevel    string            `yaml:"log_level"`
		RunDir      string            `yaml:"run_dir"`
		LockDir     string            `yaml:"lock_dir"`
		Prefix      string            `yaml:"prefix"`
		AdminSocket AdminSocketConfig `yaml:"admin_socket"`
		RBDScan     RBDScanConfig     `yaml:"rbd_scan"`
		Rados       RadosConfig       `yaml:"rados"`
		Collectors  []string          `yaml:"collectors"`
	}
	AdminSocketConfig struct {
		ConnectTimeout confopt.Duration `yaml:"connect_timeout"`
		InitialTimeout confopt.Duration `yaml:"initial_timeout"`
		ChunkTimeout   confopt.Duration `yaml:"chunk_timeout"`
		MaxChunk       int              `yaml:"max_chunk"`
	}
	RBDScanConfig struct {
		Enabled    bool             `yaml:"enabled"`
		Timeout    confopt.Duration `yaml:"timeout"`
		MaxWorkers int              `yaml:"max_workers"`
	}
	RadosConfig struct {
		User       string           `yaml:"user"`
		ConfigFile string           `yaml:"config_file"`
		Timeout    confopt.Duration `yaml:"timeout"`
	}
)

// LoadConfig reads the configuration file on top of the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	bs, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(bs, &cfg); err != nil {
		return cfg, fmt.Errorf("parse '%s': %v", path, err)
	}

	return cfg, nil
}

func (c Config) Interval() time.Duration {
	return time.Duration(c.UpdateEvery) * time.Second
}

func (c Config) Validate() error {
	if c.ClusterName == "" {
		return errors.New("'cluster_name' not set")
	}
	if c.UpdateEvery <= 0 {
		return fmt.Errorf("'update_every' must be positive (got %d)", c.UpdateEvery)
	}
	if c.RunDir == "" {
		return errors.New("'run_dir' not set")
	}

	for name, d := range map[string]confopt.Duration{
		"admin_socket.connect_timeout": c.AdminSocket.ConnectTimeout,
		"admin_socket.initial_timeout": c.AdminSocket.InitialTimeout,
		"admin_socket.chunk_timeout":   c.AdminSocket.ChunkTimeout,
		"rbd_scan.timeout":             c.RBDScan.Timeout,
		"rados.timeout":                c.Rados.Timeout,
	} {
		if d <= 0 {
			return fmt.Errorf("'%s' must be positive (got %s)", name, d)
		}
	}

	if c.AdminSocket.MaxChunk <= 0 {
		return fmt.Errorf("'admin_socket.max_chunk' must be positive (got %d)", c.AdminSocket.MaxChunk)
	}
	if c.RBDScan.MaxWorkers <= 0 {
		return fmt.Errorf("'rbd_scan.max_workers' must be positive (got %d)", c.RBDScan.MaxWorkers)
	}

	return nil
}

func (c Config) String() string {
	return fmt.Sprintf("cluster '%s', update_every %ds, run_dir '%s', collectors %v",
		c.ClusterName, c.UpdateEvery, c.RunDir, c.Collectors)
}
