// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package testutils

import "time"

// RateLimited closes over fn and a minimum interval. The returned function
// delegates to fn at most once per interval; calls arriving earlier are
// dropped. Used to throttle progress reporting in polling loops.
//
// The returned function is not safe for concurrent use.
func RateLimited(interval time.Duration, fn func()) func() {
	var last time.Time
	return func() {
		if now := time.Now(); last.IsZero() || now.Sub(last) >= interval {
			last = now
			fn()
		}
	}
}
