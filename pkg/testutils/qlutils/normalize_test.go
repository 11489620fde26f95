// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlutils

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeRows(t *testing.T) {
	in := [][]interface{}{
		{int8(1), int16(2), int32(3), int(4), uint(5), uint64(6)},
		{float32(1.5), float64(2.5), []byte("bytes"), "str", true, nil},
	}
	out := NormalizeRows(in)
	require.Equal(t, [][]interface{}{
		{int64(1), int64(2), int64(3), int64(4), int64(5), int64(6)},
		{1.5, 2.5, "bytes", "str", true, nil},
	}, out)

	// Column and row order are preserved; the input is not aliased.
	in[0][0] = int8(9)
	require.Equal(t, int64(1), out[0][0])

	require.NotNil(t, NormalizeRows(nil))
	require.Len(t, NormalizeRows(nil), 0)
}

func TestSortMatrixTotalOrder(t *testing.T) {
	rows := [][]interface{}{
		{int64(2), "b"},
		{int64(1), "z"},
		{int64(1), "a"},
		{nil, "x"},
		{int64(1), nil},
	}
	SortMatrix(rows)
	require.Equal(t, [][]interface{}{
		{nil, "x"},
		{int64(1), nil},
		{int64(1), "a"},
		{int64(1), "z"},
		{int64(2), "b"},
	}, rows)
}

func TestSortMatrixDoesNotCollapsePartialKeys(t *testing.T) {
	// Rows sharing a leading column must keep their full content distinct:
	// the comparison key is the whole row.
	a := [][]interface{}{{int64(1), "x"}, {int64(1), "y"}}
	b := [][]interface{}{{int64(1), "y"}, {int64(1), "x"}}
	SortMatrix(a)
	SortMatrix(b)
	require.Equal(t, a, b)

	c := [][]interface{}{{int64(1), "x"}, {int64(1), "x"}}
	SortMatrix(c)
	require.NotEqual(t, a, c)
}

func TestSortMatrixMixedTypes(t *testing.T) {
	// Type rank makes the order total even across heterogeneous columns.
	rows := [][]interface{}{
		{"s"},
		{1.5},
		{int64(3)},
		{true},
		{nil},
	}
	SortMatrix(rows)
	require.Equal(t, [][]interface{}{
		{nil},
		{true},
		{int64(3)},
		{1.5},
		{"s"},
	}, rows)
}

func TestMatrixToStr(t *testing.T) {
	s := MatrixToStr([][]interface{}{{int64(1), "a"}, {nil, 2.5}})
	require.Equal(t, "1, a\nNULL, 2.5\n", s)
}
