// SPDX-License-Identifier: GPL-3.0-or-later

package mon

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/radosconn"
	"github.com/ceph/cephmetrics/pkg/shard"

	"github.com/sourcegraph/conc/pool"
	"github.com/tidwall/gjson"
)

type poolScanResult struct {
	pool   string
	images int
	err    error
}

func (m *Mon) collectRBD(ctx context.Context, mx module.Metrics) {
	peers, err := m.monPeers(ctx)
	if err != nil {
		m.Degrade("mon dump", err)
		return
	}

	mx.Gauge("mon.rbd.shard_peers", float64(len(peers)))
	if err := shard.Check(peers, m.env.Host); err != nil {
		m.Warningf("rbd scan: '%s' gets no pools: %v", m.env.Host, err)
		mx.Gauge("mon.rbd.shard_member", 0)
		return
	}
	mx.Gauge("mon.rbd.shard_member", 1)

	pools, err := m.rbdPools(ctx)
	if err != nil {
		m.Degrade("osd pool ls", err)
		return
	}

	assigned := shard.Plan(pools, peers, m.env.Host)
	results := m.scanPools(ctx, assigned)

	var images int
	for _, name := range assigned {
		images += results[name]
		mx.Gauge(module.Path("mon.rbd.pools", poolMetricName(name), "images"), float64(results[name]))
	}

	mx.Gauge("mon.rbd.num_images", float64(images))
	mx.Gauge("mon.rbd.pools_scanned", float64(len(results)))
	mx.Gauge("mon.rbd.pools_abandoned", float64(len(assigned)-len(results)))
}

// scanPools counts the images of every pool in parallel. Pools that are not
// done when the scan timeout expires are left out of the result.
func (m *Mon) scanPools(ctx context.Context, pools []string) map[string]int {
	if len(pools) == 0 {
		return map[string]int{}
	}

	ctx, cancel := context.WithTimeout(ctx, m.ScanTimeout)
	defer cancel()

	resultsChan := make(chan poolScanResult, len(pools))
	done := make(chan struct{})

	go func() {
		defer close(done)

		p := pool.New().WithMaxGoroutines(m.MaxWorkers).WithContext(ctx)
		for _, name := range pools {
			p.Go(func(ctx context.Context) error {
				if ctx.Err() != nil {
					return nil
				}
				images, err := m.conn.ListImages(ctx, name)
				resultsChan <- poolScanResult{pool: name, images: len(images), err: err}
				return nil
			})
		}
		_ = p.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.Warningf("rbd scan: timed out after %s", m.ScanTimeout)
	}

	results := make(map[string]int)
	for {
		select {
		case r := <-resultsChan:
			if r.err != nil {
				m.Fail("rbd ls '%s': %v", r.pool, r.err)
				continue
			}
			results[r.pool] = r.images
		default:
			return results
		}
	}
}

func (m *Mon) monPeers(ctx context.Context) ([]string, error) {
	resp, err := radosconn.Command(ctx, m.conn, "mon dump")
	if err != nil {
		return nil, err
	}

	var peers []string
	resp.Get("mons.#.name").ForEach(func(_, v gjson.Result) bool {
		peers = append(peers, v.String())
		return true
	})
	slices.Sort(peers)

	return peers, nil
}

// rbdPools returns the sorted names of the pools that may hold RBD images.
func (m *Mon) rbdPools(ctx context.Context) ([]string, error) {
	resp, err := radosconn.Command(ctx, m.conn, "osd pool ls detail")
	if err != nil {
		return nil, err
	}
	if !resp.IsArray() {
		return nil, fmt.Errorf("unexpected response type")
	}

	var pools []string
	resp.ForEach(func(_, v gjson.Result) bool {
		name := v.Get("pool_name").String()
		if name != "" && !isRGWPool(name, v.Get("application_metadata")) {
			pools = append(pools, name)
		}
		return true
	})
	slices.Sort(pools)

	return pools, nil
}

func isRGWPool(name string, apps gjson.Result) bool {
	if apps.Get("rgw").Exists() {
		return true
	}
	// pools created before application tags
	return strings.HasPrefix(name, ".rgw") || strings.Contains(name, ".rgw.")
}
