// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package testutils

import (
	"time"

	"github.com/cockroachdb/errors"
)

// DefaultSucceedsSoonDuration is the maximum amount of time unittests will
// wait for a condition to become true.
const DefaultSucceedsSoonDuration = 45 * time.Second

// SucceedsSoon fails the test (with a stack of the condition's last error)
// unless the supplied function returns nil before the default timeout. The
// function is invoked immediately at first and then with exponential backoff.
func SucceedsSoon(t Fataler, fn func() error) {
	t.Helper()
	if err := SucceedsSoonError(fn); err != nil {
		t.Fatalf("condition failed to evaluate within %s: %+v", DefaultSucceedsSoonDuration, err)
	}
}

// SucceedsSoonError returns an error unless the supplied function returns nil
// before the default timeout.
func SucceedsSoonError(fn func() error) error {
	return succeedsWithinError(fn, DefaultSucceedsSoonDuration)
}

// SucceedsWithin is like SucceedsSoon with an explicit timeout.
func SucceedsWithin(t Fataler, fn func() error, within time.Duration) {
	t.Helper()
	if err := succeedsWithinError(fn, within); err != nil {
		t.Fatalf("condition failed to evaluate within %s: %+v", within, err)
	}
}

func succeedsWithinError(fn func() error, within time.Duration) error {
	deadline := time.Now().Add(within)
	wait := 5 * time.Millisecond
	var err error
	for {
		err = fn()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Wrap(err, "condition not satisfied before deadline")
		}
		time.Sleep(wait)
		if wait < time.Second {
			wait *= 2
		}
	}
}
