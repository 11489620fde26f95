// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package main

import (
	"context"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gocql/gocql"
	"golang.org/x/sync/errgroup"

	"github.com/quorumdb/quorumtest/pkg/cluster"
	"github.com/quorumdb/quorumtest/pkg/qlclient"
	"github.com/quorumdb/quorumtest/pkg/testutils/qlutils"
)

func registerUpgradeIndexSummary(r *testRegistry) {
	r.Add(testSpec{
		Name:    "upgrade/index-summary",
		Timeout: 30 * time.Minute,
		Nodes:   1,
		Run:     runUpgradeIndexSummary,
	})
}

// runUpgradeIndexSummary checks that summaries of old-format sstable indexes
// survive an upgrade round trip. The 2.1.3 release erroneously allows
// downsampling summaries of sstables written by 2.0; later releases must
// detect the damage on startup, rebuild the summary, and refuse to
// downsample old-format sstables again.
func runUpgradeIndexSummary(ctx context.Context, t *test, c *cluster.Cluster) {
	const (
		// The default index interval is 128: every 128th partition gets a
		// summary entry. Minimal downsampling removes every 128th summary
		// entry, so the summary needs 128 entries for downsampling to be
		// observable. That takes 128 * 128 partitions.
		indexInterval = 128
		partitions    = indexInterval * indexInterval
	)

	offheap := os.Getenv("QUORUMTEST_OFFHEAP_MEMTABLES") != ""
	if offheap {
		c.SetOption("memtable_allocation", "offheap_objects")
	}

	if err := c.SetVersion(cluster.HeadVersion()); err != nil {
		t.Fatal(err)
	}
	node := c.Node(0)
	originalDir := node.InstallDir()

	// Start out on a 2.0 release.
	installVersion(t, c, "2.0.12")
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}

	// 2.0 speaks native protocol 2 at most.
	sess, err := nativeSession(node, 2)
	if err != nil {
		t.Fatal(err)
	}
	run := qlutils.MakeRunner(qlclient.NewSession(qlclient.WrapGocql(sess), qlclient.One))
	run.Exec(t, "CREATE KEYSPACE testindexsummary WITH replication = {'class': 'SimpleStrategy', 'replication_factor': '1'}")
	run.Exec(t, "USE testindexsummary")
	run.Exec(t, "CREATE TABLE test (k int PRIMARY KEY, v int)")

	t.Logf("inserting %s partitions to fill a full sample's worth of summary entries",
		humanize.Comma(int64(partitions)))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(16)
	for i := 0; i < partitions; i++ {
		i := i
		g.Go(func() error {
			return sess.Query("INSERT INTO testindexsummary.test (k, v) VALUES (?, ?)", i, i).
				WithContext(gctx).Exec()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("inserting partitions: %+v", err)
	}
	t.Logf("wrote %s of partition keys", humanize.IBytes(uint64(partitions*8)))
	sess.Close()

	// Upgrade to 2.1.3, the release that allows downsampling summaries of
	// old-format sstables. Reconciling for 2.0 dropped the offheap option;
	// 2.1 understands it again.
	if offheap {
		c.SetOption("memtable_allocation", "offheap_objects")
	}
	restartInto(ctx, t, c, "2.1.3")

	bean := cluster.MakeBean("db", "IndexSummaries")
	mgmt := node.Mgmt()
	expectIndexInterval(ctx, t, mgmt, bean, indexInterval)

	// Force downsampling by zeroing the summary memory pool.
	forceRedistribution(ctx, t, mgmt, bean)
	downsampled, err := mgmt.ReadFloatAttribute(ctx, bean, "AverageIndexInterval")
	if err != nil {
		t.Fatal(err)
	}
	if downsampled <= indexInterval {
		t.Fatalf("average index interval did not grow after downsampling: got %v, had %v",
			downsampled, float64(indexInterval))
	}
	t.Logf("downsampled average index interval: %v", downsampled)

	// Upgrade to the build under test via the original install dir. On
	// startup it must notice the damaged summary and rebuild it.
	restartIntoDir(ctx, t, c, originalDir)
	if err := node.WatchLogFor(ctx, "detected erroneously downsampled index summary"); err != nil {
		t.Fatal(err)
	}
	expectIndexInterval(ctx, t, mgmt, bean, indexInterval)

	// Old-format sstables must now refuse to downsample.
	forceRedistribution(ctx, t, mgmt, bean)
	expectIndexInterval(ctx, t, mgmt, bean, indexInterval)

	// The data itself made the round trip intact.
	sess, err = nativeSession(node, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer sess.Close()
	run = qlutils.MakeRunner(qlclient.NewSession(qlclient.WrapGocql(sess), qlclient.One))
	run.CheckRowCount(t, "testindexsummary.test", partitions, "")
	run.CheckOne(t, "SELECT k, v FROM testindexsummary.test WHERE k = 17", []interface{}{17, 17})
}

// installVersion points the cluster at a release, reconciles config options
// the release does not understand, and resets log levels.
func installVersion(t *test, c *cluster.Cluster, version string) {
	if err := c.SetVersion(version); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReconcileOptions(); err != nil {
		t.Fatal(err)
	}
	for _, n := range c.Nodes() {
		n.SetLogLevel("INFO")
	}
}

func restartInto(ctx context.Context, t *test, c *cluster.Cluster, version string) {
	drainAndStop(ctx, t, c)
	installVersion(t, c, version)
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
}

func restartIntoDir(ctx context.Context, t *test, c *cluster.Cluster, dir string) {
	drainAndStop(ctx, t, c)
	if err := c.SetInstallDir(dir); err != nil {
		t.Fatal(err)
	}
	if _, err := c.ReconcileOptions(); err != nil {
		t.Fatal(err)
	}
	for _, n := range c.Nodes() {
		n.SetLogLevel("INFO")
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
}

func drainAndStop(ctx context.Context, t *test, c *cluster.Cluster) {
	for _, n := range c.Nodes() {
		if err := n.Drain(ctx); err != nil {
			t.Fatal(err)
		}
		if err := n.Stop(); err != nil {
			t.Fatal(err)
		}
	}
}

func expectIndexInterval(
	ctx context.Context, t *test, m *cluster.MgmtClient, bean string, want float64,
) {
	got, err := m.ReadFloatAttribute(ctx, bean, "AverageIndexInterval")
	if err != nil {
		t.Fatal(err)
	}
	if got != want {
		t.Fatalf("average index interval: expected %v, got %v", want, got)
	}
}

func forceRedistribution(ctx context.Context, t *test, m *cluster.MgmtClient, bean string) {
	if err := m.WriteAttribute(ctx, bean, "MemoryPoolCapacityMB", 0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Invoke(ctx, bean, "RedistributeSummaries"); err != nil {
		t.Fatal(err)
	}
}

// nativeSession opens a native-protocol session against a single node. proto
// 0 lets the driver negotiate.
func nativeSession(node *cluster.Node, proto int) (*gocql.Session, error) {
	cfg := gocql.NewCluster(node.ListenAddr())
	cfg.ProtoVersion = proto
	cfg.DisableInitialHostLookup = true
	cfg.Timeout = 30 * time.Second
	cfg.Consistency = gocql.One
	return cfg.CreateSession()
}
