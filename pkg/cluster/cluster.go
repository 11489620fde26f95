// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package cluster drives a local QuorumDB cluster as the system under test:
// node lifecycle, install-dir/version switching, log watching, and the
// management endpoint. The verification core treats all of this as an
// external collaborator; only scenarios consume it.
package cluster

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// Logger is the minimal logging surface the cluster driver needs; the
// quorumtest runner's logger satisfies it.
type Logger interface {
	Printf(format string, args ...interface{})
}

// Cluster is a set of locally managed quorumd nodes sharing a config option
// map and a releases directory from which versions are resolved.
type Cluster struct {
	root        string
	releasesDir string
	opts        Options
	nodes       []*Node
	log         Logger

	// basePort is where per-node port triples (native, pgwire, mgmt)
	// start.
	basePort int
}

// New returns an empty cluster rooted at root. Releases are resolved under
// releasesDir (releasesDir/<version>/bin/quorumd).
func New(root, releasesDir string, log Logger) *Cluster {
	return &Cluster{
		root:        root,
		releasesDir: releasesDir,
		opts:        Options{},
		log:         log,
		basePort:    21700,
	}
}

func (c *Cluster) logf(format string, args ...interface{}) {
	if c.log != nil {
		c.log.Printf(format, args...)
	}
}

// Populate creates n stopped nodes. It returns the cluster for chaining.
func (c *Cluster) Populate(n int) *Cluster {
	for i := 0; i < n; i++ {
		idx := len(c.nodes)
		name := fmt.Sprintf("node%d", idx+1)
		port := c.basePort + idx*3
		c.nodes = append(c.nodes, &Node{
			Name:       name,
			baseDir:    filepath.Join(c.root, name),
			logLevel:   "INFO",
			listenAddr: fmt.Sprintf("127.0.0.1:%d", port),
			pgAddr:     fmt.Sprintf("127.0.0.1:%d", port+1),
			mgmtAddr:   fmt.Sprintf("127.0.0.1:%d", port+2),
			cluster:    c,
		})
	}
	return c
}

// Nodes returns the node list.
func (c *Cluster) Nodes() []*Node { return c.nodes }

// Node returns the i-th node (0-based).
func (c *Cluster) Node(i int) *Node { return c.nodes[i] }

// Start starts all nodes in parallel.
func (c *Cluster) Start(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, n := range c.nodes {
		n := n
		g.Go(func() error { return n.Start(gctx) })
	}
	return g.Wait()
}

// Stop stops all nodes, returning the first error.
func (c *Cluster) Stop() error {
	var firstErr error
	for _, n := range c.nodes {
		if err := n.Stop(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// SetInstallDir points every node at the given release directory.
func (c *Cluster) SetInstallDir(dir string) error {
	for _, n := range c.nodes {
		if err := n.SetInstallDir(dir); err != nil {
			return err
		}
	}
	return nil
}

// SetVersion resolves a version under the releases directory and points
// every node at it.
func (c *Cluster) SetVersion(version string) error {
	dir := filepath.Join(c.releasesDir, version)
	if _, err := os.Stat(dir); err != nil {
		return errors.Wrapf(err, "release %s not found under %s", version, c.releasesDir)
	}
	return c.SetInstallDir(dir)
}

// Version parses the cluster's current version from the install dir name.
// All nodes are assumed to run the same release between upgrade steps.
func (c *Cluster) Version() (*semver.Version, error) {
	if len(c.nodes) == 0 {
		return nil, errors.New("cluster has no nodes")
	}
	base := filepath.Base(c.nodes[0].installDir)
	v, err := semver.NewVersion(base)
	if err != nil {
		return nil, errors.Wrapf(err, "install dir %q is not a version", base)
	}
	return v, nil
}

// Options returns the shared config option map written to every node.
func (c *Cluster) Options() Options { return c.opts }

// SetOption sets a shared config option.
func (c *Cluster) SetOption(key string, value interface{}) { c.opts[key] = value }

// DeleteOption removes a shared config option.
func (c *Cluster) DeleteOption(key string) { delete(c.opts, key) }

// ReconcileOptions strips options the current release does not understand
// and returns the removed keys.
func (c *Cluster) ReconcileOptions() ([]string, error) {
	v, err := c.Version()
	if err != nil {
		return nil, err
	}
	removed := StripUnsupported(c.opts, v)
	for _, key := range removed {
		c.logf("removed %s from the %s configuration", key, v)
	}
	return removed, nil
}
