// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package main

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/quorumdb/quorumtest/pkg/cluster"
	"github.com/quorumdb/quorumtest/pkg/testutils"
)

// errTestFatal interrupts a scenario when t.Fatal() is called from its
// closure. The runner recovers it; any other panic propagates.
var errTestFatal = errors.New("t.Fatal() was called")

type testSpec struct {
	Name string
	// Skip, if non-empty, is printed instead of running the scenario.
	Skip string
	// Timeout bounds the scenario. Zero means the runner default.
	Timeout time.Duration
	// Nodes is the local cluster size the scenario needs.
	Nodes int

	Run func(ctx context.Context, t *test, c *cluster.Cluster)
}

type testRegistry struct {
	m map[string]*testSpec
}

func newRegistry() *testRegistry {
	return &testRegistry{m: map[string]*testSpec{}}
}

func (r *testRegistry) Add(spec testSpec) {
	if _, ok := r.m[spec.Name]; ok {
		panic(fmt.Sprintf("scenario %s registered twice", spec.Name))
	}
	if spec.Run == nil && spec.Skip == "" {
		panic(fmt.Sprintf("scenario %s has no Run function", spec.Name))
	}
	if spec.Nodes <= 0 {
		spec.Nodes = 1
	}
	r.m[spec.Name] = &spec
}

// List returns the registered scenarios matching filter, sorted by name.
func (r *testRegistry) List(filter *regexp.Regexp) []*testSpec {
	var specs []*testSpec
	for _, s := range r.m {
		if filter.MatchString(s.Name) {
			specs = append(specs, s)
		}
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// test is the handle passed to a scenario's Run function. It satisfies
// testutils.TB, so the query helpers report failures through it.
type test struct {
	spec *testSpec
	l    *logger

	start time.Time
	end   time.Time

	mu struct {
		sync.Mutex
		failed     bool
		failureMsg string
		cancel     func()
	}
}

var _ testutils.TB = (*test)(nil)

func (t *test) Name() string { return t.spec.Name }

func (t *test) Helper() {}

func (t *test) Logf(format string, args ...interface{}) {
	t.l.Printf(format, args...)
}

func (t *test) Error(args ...interface{}) {
	t.failWithMsg(fmt.Sprint(args...))
}

func (t *test) Errorf(format string, args ...interface{}) {
	t.failWithMsg(fmt.Sprintf(format, args...))
}

// Fatal marks the scenario as failed and interrupts it by panicking with
// errTestFatal. Only call it from the scenario's goroutine.
func (t *test) Fatal(args ...interface{}) {
	t.failWithMsg(fmt.Sprint(args...))
	panic(errTestFatal)
}

func (t *test) Fatalf(format string, args ...interface{}) {
	t.failWithMsg(fmt.Sprintf(format, args...))
	panic(errTestFatal)
}

func (t *test) failWithMsg(msg string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	prefix := ""
	if t.mu.failed {
		prefix = "[not the first failure] "
		msg = "\n" + msg
	}
	t.l.Errorf("%sscenario failure: %s", prefix, msg)
	t.mu.failed = true
	t.mu.failureMsg += msg
	if t.mu.cancel != nil {
		t.mu.cancel()
	}
}

func (t *test) Failed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.failed
}

func (t *test) failureMessage() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mu.failureMsg
}

func (t *test) duration() time.Duration {
	return t.end.Sub(t.start)
}

// runTest executes one scenario against c, recovering the errTestFatal
// panic raised by t.Fatal.
func runTest(ctx context.Context, t *test, c *cluster.Cluster) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.mu.Lock()
	t.mu.cancel = cancel
	t.mu.Unlock()

	t.start = time.Now()
	defer func() {
		t.end = time.Now()
		if r := recover(); r != nil {
			if err, ok := r.(error); ok && errors.Is(err, errTestFatal) {
				// t.Fatal already recorded the failure.
				return
			}
			t.failWithMsg(fmt.Sprintf("panic: %v", r))
		}
	}()
	t.spec.Run(ctx, t, c)
}
