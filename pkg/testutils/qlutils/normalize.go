// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlutils

import (
	"fmt"
	"sort"
	"strings"
)

// NormalizeRows converts raw driver rows into the canonical comparison
// shape: every integer width becomes int64, float32 becomes float64, byte
// slices become strings. Row and column order are preserved. Empty results
// are an empty (but non-nil) matrix.
//
// Expected and actual sides of every comparison pass through the same
// normalization, so driver-specific value representations never cause
// spurious mismatches.
func NormalizeRows(rows [][]interface{}) [][]interface{} {
	res := make([][]interface{}, 0, len(rows))
	for _, row := range rows {
		res = append(res, NormalizeRow(row))
	}
	return res
}

// NormalizeRow normalizes a single row; see NormalizeRows.
func NormalizeRow(row []interface{}) []interface{} {
	res := make([]interface{}, len(row))
	for i, v := range row {
		res[i] = normalizeValue(v)
	}
	return res
}

func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return nil
	case bool, int64, float64, string:
		return t
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		return int64(t)
	case float32:
		return float64(t)
	case []byte:
		return string(t)
	default:
		return v
	}
}

// SortMatrix sorts rows in place by a full-row lexicographic order over
// normalized values. The order is total (type rank first, then value), so
// sorting both sides of a comparison yields multiset equality: distinct rows
// with equal leading columns are never collapsed.
func SortMatrix(rows [][]interface{}) {
	sort.SliceStable(rows, func(i, j int) bool {
		return compareRows(rows[i], rows[j]) < 0
	})
}

func compareRows(a, b []interface{}) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValues(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}

const (
	rankNil = iota
	rankBool
	rankInt
	rankFloat
	rankString
	rankOther
)

func rankOf(v interface{}) int {
	switch v.(type) {
	case nil:
		return rankNil
	case bool:
		return rankBool
	case int64:
		return rankInt
	case float64:
		return rankFloat
	case string:
		return rankString
	default:
		return rankOther
	}
}

func compareValues(a, b interface{}) int {
	ra, rb := rankOf(a), rankOf(b)
	if ra != rb {
		return ra - rb
	}
	switch ra {
	case rankNil:
		return 0
	case rankBool:
		av, bv := a.(bool), b.(bool)
		switch {
		case av == bv:
			return 0
		case !av:
			return -1
		default:
			return 1
		}
	case rankInt:
		av, bv := a.(int64), b.(int64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case rankFloat:
		av, bv := a.(float64), b.(float64)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case rankString:
		return strings.Compare(a.(string), b.(string))
	default:
		// Values outside the primitive set fall back to their printed
		// form, which is still deterministic.
		return strings.Compare(fmt.Sprintf("%v", a), fmt.Sprintf("%v", b))
	}
}

// MatrixToStr renders rows one per line with comma-separated columns, for
// failure messages. Nulls print as NULL.
func MatrixToStr(rows [][]interface{}) string {
	var sb strings.Builder
	for _, row := range rows {
		parts := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				parts[i] = "NULL"
			} else {
				parts[i] = fmt.Sprintf("%v", v)
			}
		}
		sb.WriteString(strings.Join(parts, ", "))
		sb.WriteRune('\n')
	}
	return sb.String()
}
