// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cluster

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quorumdb/quorumtest/pkg/testutils"
)

// Node is one quorumd process under harness control. All lifecycle methods
// are meant to be driven sequentially from a single scenario goroutine.
type Node struct {
	Name string

	baseDir    string
	installDir string
	logLevel   string
	listenAddr string
	pgAddr     string
	mgmtAddr   string

	cluster *Cluster
	cmd     *exec.Cmd
	waitC   chan error
}

// binaryName is the server binary under a release's bin directory.
const binaryName = "quorumd"

func (n *Node) confDir() string { return filepath.Join(n.baseDir, "conf") }
func (n *Node) dataDir() string { return filepath.Join(n.baseDir, "data") }
func (n *Node) logsDir() string { return filepath.Join(n.baseDir, "logs") }

// LogFile returns the path of the node's main log.
func (n *Node) LogFile() string { return filepath.Join(n.logsDir(), "system.log") }

// ListenAddr returns the native QL address (host:port).
func (n *Node) ListenAddr() string { return n.listenAddr }

// PGAddr returns the pgwire address (host:port).
func (n *Node) PGAddr() string { return n.pgAddr }

// InstallDir returns the release directory the node currently runs from.
func (n *Node) InstallDir() string { return n.installDir }

// SetInstallDir points the node at a different release directory. The node
// must be stopped; the change takes effect on the next Start.
func (n *Node) SetInstallDir(dir string) error {
	if n.cmd != nil {
		return errors.Newf("node %s: cannot switch install dir while running", n.Name)
	}
	bin := filepath.Join(dir, "bin", binaryName)
	if _, err := os.Stat(bin); err != nil {
		return errors.Wrapf(err, "node %s: no %s under %s", n.Name, binaryName, dir)
	}
	n.installDir = dir
	return nil
}

// SetLogLevel sets the log level written into the node config on the next
// Start.
func (n *Node) SetLogLevel(level string) { n.logLevel = level }

// Mgmt returns a client for the node's management endpoint.
func (n *Node) Mgmt() *MgmtClient { return NewMgmtClient(n.mgmtAddr) }

// Start writes the node's config and launches the quorumd process, waiting
// until the management endpoint responds.
func (n *Node) Start(ctx context.Context) error {
	if n.cmd != nil {
		return errors.Newf("node %s: already running", n.Name)
	}
	if n.installDir == "" {
		return errors.Newf("node %s: no install dir set", n.Name)
	}
	for _, dir := range []string{n.confDir(), n.dataDir(), n.logsDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrapf(err, "node %s", n.Name)
		}
	}

	confPath := filepath.Join(n.confDir(), "quorumd.yaml")
	cfg := nodeConfig{
		NodeName:   n.Name,
		DataDir:    n.dataDir(),
		LogLevel:   n.logLevel,
		ListenAddr: n.listenAddr,
		PGAddr:     n.pgAddr,
		MgmtAddr:   n.mgmtAddr,
		Options:    n.cluster.opts,
	}
	if err := cfg.writeFile(confPath); err != nil {
		return errors.Wrapf(err, "node %s", n.Name)
	}

	logFile, err := os.OpenFile(n.LogFile(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Wrapf(err, "node %s", n.Name)
	}

	bin := filepath.Join(n.installDir, "bin", binaryName)
	cmd := exec.Command(bin, "--config", confPath)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	if err := cmd.Start(); err != nil {
		_ = logFile.Close()
		return errors.Wrapf(err, "node %s: starting %s", n.Name, bin)
	}
	n.cmd = cmd
	n.waitC = make(chan error, 1)
	go func() {
		n.waitC <- cmd.Wait()
		_ = logFile.Close()
	}()

	n.cluster.logf("started %s from %s (pid %d)", n.Name, n.installDir, cmd.Process.Pid)
	if err := n.waitReady(ctx); err != nil {
		_ = n.Stop()
		return err
	}
	return nil
}

// waitReady polls the management endpoint until the node answers.
func (n *Node) waitReady(ctx context.Context) error {
	mgmt := n.Mgmt()
	deadline := time.Now().Add(2 * time.Minute)
	wait := 50 * time.Millisecond
	for {
		err := mgmt.Ping(ctx)
		if err == nil {
			return nil
		}
		select {
		case werr := <-n.waitC:
			n.cmd = nil
			return errors.Wrapf(werr, "node %s: exited during startup", n.Name)
		default:
		}
		if time.Now().After(deadline) {
			return errors.Wrapf(err, "node %s: not ready before deadline", n.Name)
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "node %s: waiting for readiness", n.Name)
		case <-time.After(wait):
		}
		if wait < time.Second {
			wait *= 2
		}
	}
}

// Stop terminates the process, escalating from SIGTERM to SIGKILL.
func (n *Node) Stop() error {
	if n.cmd == nil {
		return nil
	}
	defer func() { n.cmd = nil }()
	if err := n.cmd.Process.Signal(syscall.SIGTERM); err != nil {
		return errors.Wrapf(err, "node %s", n.Name)
	}
	select {
	case <-n.waitC:
		return nil
	case <-time.After(time.Minute):
	}
	n.cluster.logf("node %s ignored SIGTERM, killing", n.Name)
	if err := n.cmd.Process.Kill(); err != nil {
		return errors.Wrapf(err, "node %s", n.Name)
	}
	<-n.waitC
	return nil
}

// Drain flushes memtables and shuts the node down for writes, waiting for
// the node to log completion.
func (n *Node) Drain(ctx context.Context) error {
	if _, err := n.Mgmt().Invoke(ctx, MakeBean("node", "StorageService"), "Drain"); err != nil {
		return err
	}
	return n.WatchLogFor(ctx, "node drained")
}

// WatchLogFor blocks until the node's log contains a line matching pattern.
func (n *Node) WatchLogFor(ctx context.Context, pattern string) error {
	progress := testutils.RateLimited(10*time.Second, func() {
		n.cluster.logf("%s: still waiting for %q in %s", n.Name, pattern, n.LogFile())
	})
	return WatchLogFor(ctx, n.LogFile(), pattern, progress)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s@%s", n.Name, n.listenAddr)
}
