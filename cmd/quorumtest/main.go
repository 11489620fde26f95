// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// quorumtest runs verification scenarios against local QuorumDB clusters
// built from release artifacts. Scenarios register themselves with the
// registry in their file's init-style register function; `quorumtest list`
// shows what matched a filter and `quorumtest run` executes it.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/spf13/cobra"

	"github.com/quorumdb/quorumtest/pkg/cluster"
)

var (
	artifactsDir string
	releasesDir  string
	clusterRoot  string
	timeout      time.Duration
)

const defaultTimeout = 30 * time.Minute

func registerAll(r *testRegistry) {
	registerUpgradeIndexSummary(r)
}

func main() {
	rootCmd := &cobra.Command{
		Use:           "quorumtest [command] (flags)",
		Short:         "quorumtest runs QuorumDB verification scenarios",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&artifactsDir, "artifacts", "artifacts",
		"directory scenario logs are written to")
	rootCmd.PersistentFlags().StringVar(&releasesDir, "releases", "releases",
		"directory holding one unpacked release per version")
	rootCmd.PersistentFlags().StringVar(&clusterRoot, "cluster-root", "",
		"directory for node data and logs (default: a temp dir)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0,
		"per-scenario timeout override")

	listCmd := &cobra.Command{
		Use:   "list [regex]",
		Short: "list scenarios matching the filter",
		RunE: func(_ *cobra.Command, args []string) error {
			r := newRegistry()
			registerAll(r)
			filter, err := compileFilter(args)
			if err != nil {
				return err
			}
			for _, s := range r.List(filter) {
				if s.Skip != "" {
					fmt.Printf("%s (skipped: %s)\n", s.Name, s.Skip)
					continue
				}
				fmt.Println(s.Name)
			}
			return nil
		},
	}

	runCmd := &cobra.Command{
		Use:   "run [regex]",
		Short: "run scenarios matching the filter",
		RunE: func(_ *cobra.Command, args []string) error {
			r := newRegistry()
			registerAll(r)
			filter, err := compileFilter(args)
			if err != nil {
				return err
			}
			return runTests(r.List(filter))
		},
	}

	rootCmd.AddCommand(listCmd, runCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func compileFilter(args []string) (*regexp.Regexp, error) {
	if len(args) == 0 {
		return regexp.MustCompile(""), nil
	}
	return regexp.Compile(args[0])
}

func runTests(specs []*testSpec) error {
	if len(specs) == 0 {
		return fmt.Errorf("no scenarios matched")
	}
	var failed int
	for _, spec := range specs {
		if spec.Skip != "" {
			fmt.Printf("--- SKIP: %s (%s)\n", spec.Name, spec.Skip)
			continue
		}
		if err := runOne(spec); err != nil {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d scenario(s) failed", failed)
	}
	return nil
}

func runOne(spec *testSpec) error {
	// Scenario names may contain slashes; they become artifact subdirs.
	logPath := filepath.Join(artifactsDir, filepath.FromSlash(spec.Name), "scenario.log")
	l, err := newLogger(logPath)
	if err != nil {
		return err
	}
	defer l.close()

	root := clusterRoot
	if root == "" {
		root, err = os.MkdirTemp("", "quorumtest")
		if err != nil {
			return err
		}
	} else {
		root = filepath.Join(root, filepath.FromSlash(spec.Name))
	}

	to := spec.Timeout
	if timeout != 0 {
		to = timeout
	}
	if to == 0 {
		to = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), to)
	defer cancel()

	t := &test{spec: spec, l: l}
	c := cluster.New(root, releasesDir, l).Populate(spec.Nodes)
	defer func() {
		if err := c.Stop(); err != nil {
			l.Errorf("stopping cluster: %v", err)
		}
	}()

	l.Printf("=== RUN %s", spec.Name)
	runTest(ctx, t, c)
	if t.Failed() {
		l.Errorf("--- FAIL: %s (%s)", spec.Name, t.duration().Round(time.Second))
		return fmt.Errorf("%s failed: %s", spec.Name, t.failureMessage())
	}
	l.Printf("--- PASS: %s (%s)", spec.Name, t.duration().Round(time.Second))
	return nil
}
