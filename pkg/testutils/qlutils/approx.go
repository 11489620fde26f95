// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlutils

import (
	"reflect"

	"github.com/quorumdb/quorumtest/pkg/testutils"
)

// DefaultMargin is the tolerance CheckAlmostEqual applies when none is
// configured, matching the historical default used by timing and size
// estimate assertions.
const DefaultMargin = 0.16

// ApproxOpts configures CheckAlmostEqual.
type ApproxOpts struct {
	// Margin is the allowed deviation as a fraction of the maximum value;
	// zero means DefaultMargin. A literal zero-tolerance check is the
	// exact-equality branch of CheckAlmostEqual, so there is no need to
	// express a 0.0 margin explicitly.
	Margin float64
	// Msg is appended to the failure message.
	Msg string
}

// CheckAlmostEqual asserts that all supplied values fall within the margin:
// the minimum must exceed max*(1-margin), or all values must be exactly
// equal (which also covers max = 0). Min and max are treated symmetrically;
// no distribution is assumed.
func CheckAlmostEqual(t testutils.TB, values []float64, opts ...ApproxOpts) {
	t.Helper()
	var o ApproxOpts
	if len(opts) > 0 {
		o = opts[0]
	}
	if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if len(values) == 0 {
		t.Fatal("CheckAlmostEqual requires at least one value")
	}
	vmin, vmax := values[0], values[0]
	for _, v := range values[1:] {
		if v < vmin {
			vmin = v
		}
		if v > vmax {
			vmax = v
		}
	}
	if vmin > vmax*(1.0-o.Margin) || vmin == vmax {
		return
	}
	t.Fatalf("values not within %.2f%% of the max: %v (%s)", o.Margin*100, values, o.Msg)
}

// CheckLengthEqual asserts the element count of any sized value (slice,
// array, map, string, channel).
func CheckLengthEqual(t testutils.TB, collection interface{}, expected int) {
	t.Helper()
	v := reflect.ValueOf(collection)
	switch v.Kind() {
	case reflect.Array, reflect.Chan, reflect.Map, reflect.Slice, reflect.String:
	default:
		t.Fatalf("cannot take the length of a %T", collection)
	}
	if v.Len() != expected {
		t.Fatalf("expected length %d, got %d: %v", expected, v.Len(), collection)
	}
}
