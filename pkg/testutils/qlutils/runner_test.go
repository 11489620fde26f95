// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlutils

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"testing"

	"github.com/quorumdb/quorumtest/pkg/qlclient"
	"github.com/quorumdb/quorumtest/pkg/qlerror"
	"github.com/stretchr/testify/require"
)

// fakeConn serves canned results or errors per query, standing in for a
// live cluster.
type fakeConn struct {
	results map[string][][]interface{}
	errs    map[string]error
	lastCL  qlclient.Consistency
	calls   int
}

func (c *fakeConn) Execute(
	_ context.Context, query string, cl qlclient.Consistency,
) ([][]interface{}, error) {
	c.calls++
	c.lastCL = cl
	if err, ok := c.errs[query]; ok {
		return nil, err
	}
	if res, ok := c.results[query]; ok {
		return res, nil
	}
	return nil, qlerror.Newf(qlerror.InvalidRequest, "unconfigured query: %s", query)
}

// recordTB captures helper failures instead of aborting the test, so the
// failure paths themselves can be verified.
type recordTB struct {
	failed bool
	msg    string
}

type tbAbort struct{}

func (r *recordTB) Helper()                           {}
func (r *recordTB) Logf(string, ...interface{})       {}
func (r *recordTB) Error(args ...interface{})         { r.failed = true; r.msg = fmt.Sprint(args...) }
func (r *recordTB) Errorf(f string, a ...interface{}) { r.failed = true; r.msg = fmt.Sprintf(f, a...) }
func (r *recordTB) Fatal(args ...interface{}) {
	r.failed = true
	r.msg = fmt.Sprint(args...)
	panic(tbAbort{})
}
func (r *recordTB) Fatalf(f string, a ...interface{}) {
	r.failed = true
	r.msg = fmt.Sprintf(f, a...)
	panic(tbAbort{})
}

// expectFatal runs fn and returns the captured failure message, requiring
// that fn failed.
func expectFatal(t *testing.T, fn func(tb *recordTB)) string {
	t.Helper()
	tb := &recordTB{}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(tbAbort); !ok {
					panic(r)
				}
			}
		}()
		fn(tb)
	}()
	require.True(t, tb.failed, "expected the assertion to fail")
	return tb.msg
}

// expectPass runs fn and requires that no failure was recorded.
func expectPass(t *testing.T, fn func(tb *recordTB)) {
	t.Helper()
	tb := &recordTB{}
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(tbAbort); !ok {
					panic(r)
				}
			}
		}()
		fn(tb)
	}()
	require.False(t, tb.failed, "assertion failed: %s", tb.msg)
}

func makeRunner(conn *fakeConn) *Runner {
	return MakeRunner(qlclient.NewSession(conn, qlclient.One))
}

func TestCheckOne(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT * FROM test WHERE id = 3": {{int32(3), "Alex Smith"}},
		"SELECT * FROM empty":             {},
		"SELECT * FROM pair":              {{1, 1}, {2, 2}},
	}}
	r := makeRunner(conn)

	// Driver int widths must not cause mismatches.
	expectPass(t, func(tb *recordTB) {
		r.CheckOne(tb, "SELECT * FROM test WHERE id = 3", []interface{}{3, "Alex Smith"})
	})

	// Wrong value, zero rows, and multiple rows all fail (not error), with
	// the query embedded for diagnosis.
	msg := expectFatal(t, func(tb *recordTB) {
		r.CheckOne(tb, "SELECT * FROM test WHERE id = 3", []interface{}{3, "John Doe"})
	})
	require.Contains(t, msg, "SELECT * FROM test WHERE id = 3")
	require.Contains(t, msg, "John Doe")
	require.Contains(t, msg, "Alex Smith")

	expectFatal(t, func(tb *recordTB) {
		r.CheckOne(tb, "SELECT * FROM empty", []interface{}{3, "Alex Smith"})
	})
	expectFatal(t, func(tb *recordTB) {
		r.CheckOne(tb, "SELECT * FROM pair", []interface{}{1, 1})
	})
}

func TestCheckNone(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT * FROM empty": {},
		"SELECT * FROM full":  {{1, "x"}},
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.CheckNone(tb, "SELECT * FROM empty") })

	// Failure lists the rows that were actually there.
	msg := expectFatal(t, func(tb *recordTB) { r.CheckNone(tb, "SELECT * FROM full") })
	require.Contains(t, msg, "1, x")
}

func TestCheckAll(t *testing.T) {
	rows := [][]interface{}{{1, "a"}, {2, "b"}, {3, "c"}}
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT * FROM t":    rows,
		"SELECT * FROM dups": {{1, "x"}, {1, "y"}, {1, "x"}},
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM t",
			[][]interface{}{{1, "a"}, {2, "b"}, {3, "c"}})
	})

	// Order matters unless IgnoreOrder is set.
	expectFatal(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM t",
			[][]interface{}{{2, "b"}, {1, "a"}, {3, "c"}})
	})
	expectPass(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM t",
			[][]interface{}{{2, "b"}, {1, "a"}, {3, "c"}},
			QueryOpts{IgnoreOrder: true})
	})

	// IgnoreOrder is multiset equality: duplicates are not collapsed.
	expectPass(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM dups",
			[][]interface{}{{1, "y"}, {1, "x"}, {1, "x"}},
			QueryOpts{IgnoreOrder: true})
	})
	expectFatal(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM dups",
			[][]interface{}{{1, "y"}, {1, "x"}},
			QueryOpts{IgnoreOrder: true})
	})

	// Failure output names expected, actual, and the query.
	msg := expectFatal(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT * FROM t", [][]interface{}{{1, "a"}})
	})
	for _, want := range []string{"SELECT * FROM t", "expected:", "got:", "2, b"} {
		require.Contains(t, msg, want)
	}
}

func TestCheckAllIdempotent(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT * FROM t": {{1}},
	}}
	r := makeRunner(conn)
	// Unchanged system state and query must give the same outcome; in
	// particular IgnoreOrder sorting must not mutate the canned result.
	for i := 0; i < 3; i++ {
		expectPass(t, func(tb *recordTB) {
			r.CheckAll(tb, "SELECT * FROM t", [][]interface{}{{1}}, QueryOpts{IgnoreOrder: true})
		})
	}
}

func TestCheckRowCount(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT count(*) FROM t":             {{int64(3)}},
		"SELECT count(*) FROM t WHERE v > 1": {{int64(2)}},
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.CheckRowCount(tb, "t", 3, "") })
	expectPass(t, func(tb *recordTB) { r.CheckRowCount(tb, "t", 2, "v > 1") })

	msg := expectFatal(t, func(tb *recordTB) { r.CheckRowCount(tb, "t", 5, "") })
	require.Contains(t, msg, "row count of 5")
	require.Contains(t, msg, "got 3")
}

func TestCheckChecksumProbe(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT checksum_probe FROM system_schema.tables WHERE keyspace_name = 'ks' AND table_name = 'opts'": {{0.25}},
		"SELECT checksum_probe FROM system_schema.views WHERE keyspace_name = 'ks' AND view_name = 't_by_v'": {{0.5}},
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.CheckChecksumProbe(tb, "ks", "opts", 0.25, false) })
	expectPass(t, func(tb *recordTB) { r.CheckChecksumProbe(tb, "ks", "t_by_v", 0.5, true) })
	expectFatal(t, func(tb *recordTB) { r.CheckChecksumProbe(tb, "ks", "opts", 0.75, false) })
}

func TestExpectInvalid(t *testing.T) {
	conn := &fakeConn{
		results: map[string][][]interface{}{"SELECT * FROM ok": {}},
		errs: map[string]error{
			"SELECT FROM test": qlerror.New(qlerror.InvalidRequest,
				"line 1: no viable alternative at input 'FROM'"),
			"SELECT * FROM down": qlerror.New(qlerror.Unavailable,
				"cannot achieve consistency level ALL"),
		},
	}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.ExpectInvalid(tb, "SELECT FROM test") })
	expectPass(t, func(tb *recordTB) {
		r.ExpectInvalid(tb, "SELECT FROM test", "no viable alternative")
	})

	// A different category is a categorization failure, reported with the
	// original error so nothing is swallowed.
	msg := expectFatal(t, func(tb *recordTB) { r.ExpectInvalid(tb, "SELECT * FROM down") })
	require.Contains(t, msg, "Unavailable")
	require.Contains(t, msg, "cannot achieve consistency level ALL")

	// No failure at all is a missing-failure naming the expected kinds.
	msg = expectFatal(t, func(tb *recordTB) { r.ExpectInvalid(tb, "SELECT * FROM ok") })
	require.Contains(t, msg, "nothing was raised")
	require.Contains(t, msg, "InvalidRequest")

	// Message mismatch reports the full actual text.
	msg = expectFatal(t, func(tb *recordTB) {
		r.ExpectInvalid(tb, "SELECT FROM test", "nonexistent keyspace")
	})
	require.Contains(t, msg, "no viable alternative")
}

func TestExpectUnauthorized(t *testing.T) {
	conn := &fakeConn{errs: map[string]error{
		"DROP USER admin": qlerror.New(qlerror.Unauthorized,
			"You aren't allowed to alter your own superuser status"),
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) {
		r.ExpectUnauthorized(tb, "DROP USER admin", "superuser status")
	})
	expectFatal(t, func(tb *recordTB) {
		r.ExpectUnauthorized(tb, "DROP USER admin", "")
	})
	expectFatal(t, func(tb *recordTB) {
		r.ExpectUnauthorized(tb, "DROP USER admin", "has no DROP permission")
	})
}

func TestExpectUnavailable(t *testing.T) {
	kinds := []qlerror.Kind{
		qlerror.Unavailable, qlerror.ReadTimeout, qlerror.ReadFailure,
		qlerror.WriteTimeout, qlerror.WriteFailure,
	}
	r := makeRunner(&fakeConn{})
	for _, kind := range kinds {
		kind := kind
		expectPass(t, func(tb *recordTB) {
			r.ExpectUnavailable(tb, func() error {
				return qlerror.Newf(kind, "replica coordination failed: %s", kind)
			})
		})
	}

	// Completing normally is a missing-failure.
	msg := expectFatal(t, func(tb *recordTB) {
		r.ExpectUnavailable(tb, func() error { return nil })
	})
	require.Contains(t, msg, "nothing was raised")

	// InvalidRequest is not an unavailability kind.
	expectFatal(t, func(tb *recordTB) {
		r.ExpectUnavailable(tb, func() error {
			return qlerror.New(qlerror.InvalidRequest, "bad query")
		})
	})

	// The query form goes through the session.
	conn := &fakeConn{errs: map[string]error{
		"SELECT * FROM dead": qlerror.New(qlerror.Unavailable, "0 live replicas"),
	}}
	r = makeRunner(conn)
	expectPass(t, func(tb *recordTB) {
		r.ExpectUnavailableQuery(tb, "SELECT * FROM dead", QueryOpts{Consistency: qlclient.All})
	})
	require.Equal(t, qlclient.All, conn.lastCL)
}

func TestConsistencyOverride(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{"SELECT 1": {{1}}}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.CheckOne(tb, "SELECT 1", []interface{}{1}) })
	require.Equal(t, qlclient.One, conn.lastCL)

	expectPass(t, func(tb *recordTB) {
		r.CheckOne(tb, "SELECT 1", []interface{}{1}, QueryOpts{Consistency: qlclient.Serial})
	})
	require.Equal(t, qlclient.Serial, conn.lastCL)
}

func TestCheckAlmostEqual(t *testing.T) {
	expectPass(t, func(tb *recordTB) {
		CheckAlmostEqual(tb, []float64{100, 110}, ApproxOpts{Margin: 0.2})
	})
	expectFatal(t, func(tb *recordTB) {
		CheckAlmostEqual(tb, []float64{100, 200}, ApproxOpts{Margin: 0.2})
	})
	// Exact equality passes even at max = 0, where any fraction of the max
	// is zero.
	expectPass(t, func(tb *recordTB) { CheckAlmostEqual(tb, []float64{0, 0, 0}) })
	// Default margin is 0.16.
	expectPass(t, func(tb *recordTB) { CheckAlmostEqual(tb, []float64{90, 100}) })
	expectFatal(t, func(tb *recordTB) { CheckAlmostEqual(tb, []float64{80, 100}) })
	// An explicit zero margin is the same as leaving it unset.
	expectPass(t, func(tb *recordTB) {
		CheckAlmostEqual(tb, []float64{90, 100}, ApproxOpts{Margin: 0})
	})
	expectFatal(t, func(tb *recordTB) {
		CheckAlmostEqual(tb, []float64{80, 100}, ApproxOpts{Margin: 0})
	})

	msg := expectFatal(t, func(tb *recordTB) {
		CheckAlmostEqual(tb, []float64{1, 2}, ApproxOpts{Margin: 0.1, Msg: "sstable sizes"})
	})
	require.Contains(t, msg, "sstable sizes")
}

func TestCheckLengthEqual(t *testing.T) {
	expectPass(t, func(tb *recordTB) { CheckLengthEqual(tb, []int{1, 2, 3, 4}, 4) })
	expectPass(t, func(tb *recordTB) { CheckLengthEqual(tb, "abc", 3) })
	expectPass(t, func(tb *recordTB) { CheckLengthEqual(tb, map[string]int{"a": 1}, 1) })
	expectFatal(t, func(tb *recordTB) { CheckLengthEqual(tb, []int{1}, 2) })
	expectFatal(t, func(tb *recordTB) { CheckLengthEqual(tb, 42, 1) })
}

func TestExecAndQueryMatrix(t *testing.T) {
	conn := &fakeConn{results: map[string][][]interface{}{
		"INSERT INTO t (k) VALUES (1)": {},
		"SELECT * FROM t":              {{[]byte("blob"), float32(1.5)}},
	}}
	r := makeRunner(conn)

	expectPass(t, func(tb *recordTB) { r.Exec(tb, "INSERT INTO t (k) VALUES (1)") })

	msg := expectFatal(t, func(tb *recordTB) { r.Exec(tb, "INSERT INTO nope (k) VALUES (1)") })
	require.Contains(t, msg, "unconfigured query")

	var matrix [][]interface{}
	expectPass(t, func(tb *recordTB) { matrix = r.QueryMatrix(tb, "SELECT * FROM t") })
	require.Equal(t, [][]interface{}{{"blob", 1.5}}, matrix)
}

func TestFailureMessagesAreDiagnostic(t *testing.T) {
	// Every expected-vs-actual mismatch must carry both values and the
	// query, never a bare boolean failure.
	conn := &fakeConn{results: map[string][][]interface{}{
		"SELECT v FROM t": {{int64(7)}},
	}}
	r := makeRunner(conn)
	msg := expectFatal(t, func(tb *recordTB) {
		r.CheckAll(tb, "SELECT v FROM t", [][]interface{}{{8}})
	})
	require.True(t, strings.Contains(msg, "7") && strings.Contains(msg, "8"))
	require.Regexp(t, regexp.MustCompile(`SELECT v FROM t`), msg)
}
