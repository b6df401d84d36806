// SPDX-License-Identifier: GPL-3.0-or-later

package osd

import (
	"context"

	"github.com/shirou/gopsutil/v3/disk"
)

type diskSource interface {
	Partitions(ctx context.Context) ([]disk.PartitionStat, error)
	IOCounters(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error)
	Usage(ctx context.Context, path string) (*disk.UsageStat, error)
}

type gopsutilSource struct{}

func (gopsutilSource) Partitions(ctx context.Context) ([]disk.PartitionStat, error) {
	return disk.PartitionsWithContext(ctx, true)
}

func (gopsutilSource) IOCounters(ctx context.Context, names ...string) (map[string]disk.IOCountersStat, error) {
	return disk.IOCountersWithContext(ctx, names...)
}

func (gopsutilSource) Usage(ctx context.Context, path string) (*disk.UsageStat, error) {
	return disk.UsageWithContext(ctx, path)
}
