// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package testutils

// TB is the slice of testing.TB used by the harness helpers. It is
// implemented by *testing.T and *testing.B as well as by the quorumtest
// scenario runner's test type, so the same assertion helpers serve unit
// tests and long-running cluster scenarios.
type TB interface {
	Helper()
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
	Logf(format string, args ...interface{})
}

// Fataler is a further slimmed TB for helpers that only ever abort.
type Fataler interface {
	Helper()
	Fatal(args ...interface{})
	Fatalf(format string, args ...interface{})
}
