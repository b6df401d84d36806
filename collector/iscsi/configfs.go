// SPDX-License-Identifier: GPL-3.0-or-later

package iscsi

import (
	"errors"
	"fmt"
	"os"
	"path"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/afero"
)

var ErrUnsupportedBackend = errors.New("unsupported storage backend")

var (
	reHBADir = regexp.MustCompile(`^([a-z_]+)_\d+$`)
	reSize   = regexp.MustCompile(`\bSize:\s*(\d+)`)
)

var unsupportedBackstores = map[string]bool{
	"pscsi":  true,
	"rd_mcp": true,
}

type (
	lioConfig struct {
		targets  []string // sorted target IQNs
		tpgs     int
		sessions int
		objects  map[string]*storageObject
		acls     []nodeACL
		skipped  []error // unsupported storage objects
		failed   []error // entities that could not be read, left out of the config
	}
	storageObject struct {
		name      string
		backstore string
		size      uint64
		numCmds   uint64
		readMB    uint64
		writeMB   uint64
	}
	nodeACL struct {
		initiator string
		luns      []mappedLUN
	}
	mappedLUN struct {
		object string // storage object name
		alua   string // ALUA target port group of the TPG LUN
	}
)

// configfs reads the LIO target configuration under root (/sys/kernel/config/target).
type configfs struct {
	fs   afero.Fs
	root string
}

type tpgLUN struct {
	object string
	alua   string
}

func (c *configfs) read() (*lioConfig, error) {
	cfg := &lioConfig{objects: make(map[string]*storageObject)}

	if err := c.readCore(cfg); err != nil {
		return nil, err
	}

	targets, err := c.subdirs(path.Join(c.root, "iscsi"))
	if err != nil {
		return nil, err
	}

	for _, iqn := range targets {
		// "discovery_auth" is a directory too
		if !strings.HasPrefix(iqn, "iqn.") && !strings.HasPrefix(iqn, "eui.") && !strings.HasPrefix(iqn, "naa.") {
			continue
		}
		cfg.targets = append(cfg.targets, iqn)

		c.readTarget(cfg, path.Join(c.root, "iscsi", iqn))
	}

	return cfg, nil
}

func (c *configfs) readCore(cfg *lioConfig) error {
	core := path.Join(c.root, "core")

	hbas, err := c.subdirs(core)
	if err != nil {
		return err
	}

	for _, hba := range hbas {
		m := reHBADir.FindStringSubmatch(hba)
		if m == nil {
			continue
		}
		backstore := m[1]

		names, err := c.subdirs(path.Join(core, hba))
		if err != nil {
			cfg.failed = append(cfg.failed, fmt.Errorf("hba '%s': %v", hba, err))
			continue
		}

		for _, name := range names {
			if unsupportedBackstores[backstore] {
				cfg.skipped = append(cfg.skipped, fmt.Errorf("%w: '%s' (%s)", ErrUnsupportedBackend, name, backstore))
				continue
			}

			so, err := c.readStorageObject(path.Join(core, hba, name))
			if err != nil {
				cfg.failed = append(cfg.failed, fmt.Errorf("storage object '%s': %v", name, err))
				continue
			}
			so.name, so.backstore = name, backstore
			cfg.objects[name] = so
		}
	}

	return nil
}

func (c *configfs) readStorageObject(dir string) (*storageObject, error) {
	so := &storageObject{}

	stats := path.Join(dir, "statistics", "scsi_lu")
	for name, dst := range map[string]*uint64{
		"num_cmds":     &so.numCmds,
		"read_mbytes":  &so.readMB,
		"write_mbytes": &so.writeMB,
	} {
		v, err := c.readUint(path.Join(stats, name))
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	so.size = c.objectSize(dir)

	return so, nil
}

// objectSize reads the size from the object's info ("Size: N") and falls back
// to the block device behind udev_path.
func (c *configfs) objectSize(dir string) uint64 {
	if bs, err := afero.ReadFile(c.fs, path.Join(dir, "info")); err == nil {
		if m := reSize.FindSubmatch(bs); m != nil {
			v, _ := strconv.ParseUint(string(m[1]), 10, 64)
			return v
		}
	}

	bs, err := afero.ReadFile(c.fs, path.Join(dir, "udev_path"))
	if err != nil || len(strings.TrimSpace(string(bs))) == 0 {
		return 0
	}
	dev := path.Base(strings.TrimSpace(string(bs)))

	sectors, err := c.readUint(path.Join("/sys/block", dev, "size"))
	if err != nil {
		return 0
	}
	return sectors * 512
}

// readTarget adds the TPGs of a target to cfg. Unreadable parts are recorded
// in cfg.failed and left out.
func (c *configfs) readTarget(cfg *lioConfig, dir string) {
	tpgs, err := c.subdirs(dir)
	if err != nil {
		cfg.failed = append(cfg.failed, fmt.Errorf("target '%s': %v", path.Base(dir), err))
		return
	}

	for _, tpg := range tpgs {
		if !strings.HasPrefix(tpg, "tpgt_") {
			continue
		}
		cfg.tpgs++

		tpgDir := path.Join(dir, tpg)

		luns, err := c.readTPGLUNs(cfg, tpgDir)
		if err != nil {
			cfg.failed = append(cfg.failed, fmt.Errorf("target '%s' %s luns: %v", path.Base(dir), tpg, err))
			continue
		}
		if err := c.readACLs(cfg, tpgDir, luns); err != nil {
			cfg.failed = append(cfg.failed, fmt.Errorf("target '%s' %s acls: %v", path.Base(dir), tpg, err))
		}
	}
}

func (c *configfs) readTPGLUNs(cfg *lioConfig, tpgDir string) (map[string]tpgLUN, error) {
	lunDir := path.Join(tpgDir, "lun")

	names, err := c.subdirs(lunDir)
	if err != nil {
		return nil, err
	}

	luns := make(map[string]tpgLUN, len(names))
	for _, name := range names {
		dir := path.Join(lunDir, name)

		link, err := c.findLink(dir)
		if err != nil {
			cfg.failed = append(cfg.failed, fmt.Errorf("tpg lun '%s': %v", dir, err))
			continue
		}
		if link == "" {
			continue
		}

		luns[name] = tpgLUN{
			object: path.Base(link),
			alua:   c.readALUAGroup(path.Join(dir, "alua_tg_pt_gp")),
		}
	}

	return luns, nil
}

func (c *configfs) readACLs(cfg *lioConfig, tpgDir string, luns map[string]tpgLUN) error {
	aclDir := path.Join(tpgDir, "acls")

	initiators, err := c.subdirs(aclDir)
	if err != nil {
		return err
	}

	for _, iqn := range initiators {
		dir := path.Join(aclDir, iqn)
		acl := nodeACL{initiator: iqn}

		if bs, err := afero.ReadFile(c.fs, path.Join(dir, "info")); err == nil && !strings.HasPrefix(string(bs), "No active") {
			cfg.sessions++
		}

		mapped, err := c.subdirs(dir)
		if err != nil {
			cfg.failed = append(cfg.failed, fmt.Errorf("acl '%s': %v", iqn, err))
			continue
		}

		for _, name := range mapped {
			if !strings.HasPrefix(name, "lun_") {
				continue
			}
			link, err := c.findLink(path.Join(dir, name))
			if err != nil {
				cfg.failed = append(cfg.failed, fmt.Errorf("acl '%s' %s: %v", iqn, name, err))
				continue
			}
			if l, ok := luns[path.Base(link)]; ok && link != "" {
				acl.luns = append(acl.luns, mappedLUN{object: l.object, alua: l.alua})
			}
		}

		cfg.acls = append(cfg.acls, acl)
	}

	return nil
}

// readALUAGroup returns the group alias from an alua_tg_pt_gp file.
func (c *configfs) readALUAGroup(name string) string {
	bs, err := afero.ReadFile(c.fs, name)
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(bs), "\n") {
		if v, ok := strings.CutPrefix(line, "TG Port Alias:"); ok {
			return strings.TrimSpace(v)
		}
	}
	return strings.TrimSpace(strings.SplitN(string(bs), "\n", 2)[0])
}

// findLink returns the target of the first symlink in dir, or "" if there is none.
func (c *configfs) findLink(dir string) (string, error) {
	lr, ok := c.fs.(afero.LinkReader)
	if !ok {
		return "", fmt.Errorf("filesystem can not read symlinks")
	}

	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		return "", err
	}

	for _, e := range entries {
		if e.Mode()&os.ModeSymlink == 0 {
			continue
		}
		return lr.ReadlinkIfPossible(path.Join(dir, e.Name()))
	}
	return "", nil
}

func (c *configfs) subdirs(dir string) ([]string, error) {
	entries, err := afero.ReadDir(c.fs, dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func (c *configfs) readUint(name string) (uint64, error) {
	bs, err := afero.ReadFile(c.fs, name)
	if err != nil {
		return 0, err
	}
	return strconv.ParseUint(strings.TrimSpace(string(bs)), 10, 64)
}
