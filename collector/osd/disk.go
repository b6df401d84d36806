// SPDX-License-Identifier: GPL-3.0-or-later

package osd

import (
	"context"
	"fmt"
	"math"
	"path"
	"slices"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/ratecalc"

	"github.com/shirou/gopsutil/v3/disk"
	"github.com/spf13/afero"
)

type osdMount struct {
	device     string // partition, e.g. sdb1
	base       string // whole disk, e.g. sdb
	mountpoint string
	osdID      string
}

type osdDisk struct {
	osdID      string
	rotational float64
	size       float64

	iostat        ratecalc.IOStat
	fsSize        float64
	fsUsed        float64
	fsPercentUsed float64
}

func (d *osdDisk) writeMetrics(mx module.Metrics, prefix string) {
	id, _ := strconv.ParseFloat(d.osdID, 64)

	mx.Gauge(prefix+".osd_id", id)
	mx.Gauge(prefix+".rotational", d.rotational)
	mx.Gauge(prefix+".disk_size", d.size)
	mx.Gauge(prefix+".fs_size", d.fsSize)
	mx.Gauge(prefix+".fs_used", d.fsUsed)
	mx.Gauge(prefix+".fs_percent_used", d.fsPercentUsed)

	st := d.iostat
	mx.Gauge(prefix+".iops", st.IOPS)
	mx.Gauge(prefix+".r_iops", st.ReadIOPS)
	mx.Gauge(prefix+".w_iops", st.WriteIOPS)
	mx.Gauge(prefix+".bytes_per_sec", st.BytesPerSec)
	mx.Gauge(prefix+".r_bytes_per_sec", st.ReadBytesPerSec)
	mx.Gauge(prefix+".w_bytes_per_sec", st.WriteBytesPerSec)
	mx.Gauge(prefix+".util", st.Util)
	mx.Gauge(prefix+".await", st.Await)
	mx.Gauge(prefix+".r_await", st.ReadAwait)
	mx.Gauge(prefix+".w_await", st.WriteAwait)
}

func (o *OSD) collectDisks(ctx context.Context, mx module.Metrics, interval time.Duration) {
	mounts, err := o.discoverMounts(ctx)
	if err != nil {
		o.Fail("discover osd mounts: %v", err)
		return
	}
	if len(mounts) == 0 {
		return
	}

	var names []string
	for _, m := range mounts {
		names = append(names, m.base)
	}

	counters, err := o.disks.IOCounters(ctx, names...)
	if err != nil {
		o.Fail("disk io counters: %v", err)
		return
	}

	seen := make(map[string]bool)

	for _, m := range mounts {
		// several OSDs may share a disk
		if seen[m.base] {
			continue
		}
		seen[m.base] = true

		d := o.tracker.Observe(m.base, func() *osdDisk { return o.newDisk(m.base) })
		d.osdID = m.osdID

		if c, ok := counters[m.base]; ok {
			d.iostat = o.iostat.Ingest(m.base, diskCounters(c), interval)
		} else {
			o.Fail("no io counters for '%s'", m.base)
		}

		if u, err := o.disks.Usage(ctx, m.mountpoint); err != nil {
			o.Fail("filesystem usage of '%s': %v", m.mountpoint, err)
		} else {
			d.fsSize = float64(u.Total)
			d.fsUsed = float64(u.Used)
			d.fsPercentUsed = 0
			if u.Total > 0 {
				d.fsPercentUsed = math.Ceil(float64(u.Used) / float64(u.Total) * 100)
			}
		}

		d.writeMetrics(mx, module.Path("osd.disk", m.base))
	}
}

func (o *OSD) newDisk(dev string) *osdDisk {
	d := &osdDisk{}

	if v, err := readSysfsInt(o.fs, path.Join("/sys/block", dev, "size")); err != nil {
		o.Warningf("disk size of '%s': %v", dev, err)
	} else {
		d.size = float64(v * 512)
	}
	if v, err := readSysfsInt(o.fs, path.Join("/sys/block", dev, "queue/rotational")); err != nil {
		o.Warningf("rotational flag of '%s': %v", dev, err)
	} else {
		d.rotational = float64(v)
	}

	return d
}

// discoverMounts returns the block devices mounted as OSD data directories
// (<osdDataDir>/<cluster>-<id>), sorted by mountpoint.
func (o *OSD) discoverMounts(ctx context.Context) ([]osdMount, error) {
	parts, err := o.disks.Partitions(ctx)
	if err != nil {
		return nil, err
	}

	prefix := path.Join(osdDataDir, o.env.Cluster) + "-"

	var mounts []osdMount
	for _, p := range parts {
		if !strings.HasPrefix(p.Mountpoint, prefix) || !strings.HasPrefix(p.Device, "/dev/") {
			// bluestore keeps its data dir on tmpfs
			continue
		}
		id := strings.TrimPrefix(p.Mountpoint, prefix)
		if _, err := strconv.Atoi(id); err != nil {
			continue
		}

		dev := path.Base(p.Device)
		mounts = append(mounts, osdMount{
			device:     dev,
			base:       baseDevice(dev),
			mountpoint: p.Mountpoint,
			osdID:      id,
		})
	}

	slices.SortFunc(mounts, func(a, b osdMount) int { return strings.Compare(a.mountpoint, b.mountpoint) })

	return mounts, nil
}

// baseDevice maps a partition name to its disk: sdaa1 -> sdaa, nvme0n1p2 -> nvme0n1.
// Intel CAS devices are used as is.
func baseDevice(dev string) string {
	switch {
	case strings.HasPrefix(dev, "intelcas"):
		return dev
	case strings.HasPrefix(dev, "nvme"):
		if i := strings.IndexByte(dev, 'p'); i > 0 {
			return dev[:i]
		}
		return dev
	default:
		return strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) {
				return r
			}
			return -1
		}, dev)
	}
}

func diskCounters(c disk.IOCountersStat) ratecalc.DiskCounters {
	// gopsutil reports sectors already multiplied by 512
	return ratecalc.DiskCounters{
		Reads:          c.ReadCount,
		ReadsMerged:    c.MergedReadCount,
		SectorsRead:    c.ReadBytes / 512,
		ReadMs:         c.ReadTime,
		Writes:         c.WriteCount,
		WritesMerged:   c.MergedWriteCount,
		SectorsWritten: c.WriteBytes / 512,
		WriteMs:        c.WriteTime,
		InFlight:       c.IopsInProgress,
		BusyMs:         c.IoTime,
		WeightedBusyMs: c.WeightedIO,
	}
}

func readSysfsInt(fs afero.Fs, name string) (int64, error) {
	bs, err := afero.ReadFile(fs, name)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(bs)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse '%s': %v", name, err)
	}
	return v, nil
}
