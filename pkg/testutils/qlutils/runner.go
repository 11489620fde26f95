// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package qlutils provides query-assertion helpers for driving a QuorumDB
// cluster from tests. Use these anytime a test needs to check the content of
// a table, the row count of a table, or that a query raises a particular
// failure category: every mismatch is reported with the expected value, the
// actual value, and the triggering query.
package qlutils

import (
	"context"
	"fmt"
	"reflect"

	"github.com/cockroachdb/errors"
	"github.com/google/go-cmp/cmp"
	"github.com/quorumdb/quorumtest/pkg/qlclient"
	"github.com/quorumdb/quorumtest/pkg/qlerror"
	"github.com/quorumdb/quorumtest/pkg/testutils"
)

// Runner wraps a qlclient.Session and provides convenience functions to run
// queries and fail the test on unexpected results or errors. Like the
// Session it wraps, a Runner is meant for sequential use from one goroutine.
type Runner struct {
	Session *qlclient.Session
}

// MakeRunner returns a Runner for the given session.
func MakeRunner(sess *qlclient.Session) *Runner {
	return &Runner{Session: sess}
}

// QueryOpts is the explicit per-call configuration of the query helpers.
// The zero value is always valid: session-default consistency, order-
// sensitive comparison.
type QueryOpts struct {
	// Consistency overrides the session's default level when set.
	Consistency qlclient.Consistency
	// IgnoreOrder makes CheckAll compare both sides as multisets by
	// sorting them with a full-row total order first.
	IgnoreOrder bool
}

func firstOpts(opts []QueryOpts) QueryOpts {
	if len(opts) > 0 {
		return opts[0]
	}
	return QueryOpts{}
}

func (r *Runner) exec(query string, o QueryOpts) ([][]interface{}, error) {
	return r.Session.ExecuteAt(context.Background(), o.Consistency, query)
}

// Exec runs the given statement and kills the test on error.
func (r *Runner) Exec(t testutils.TB, query string, opts ...QueryOpts) {
	t.Helper()
	if _, err := r.exec(query, firstOpts(opts)); err != nil {
		t.Fatalf("error executing '%s': %+v", query, err)
	}
}

// ExecSucceedsSoon retries the statement with backoff until it succeeds.
func (r *Runner) ExecSucceedsSoon(t testutils.TB, query string, opts ...QueryOpts) {
	t.Helper()
	testutils.SucceedsSoon(t, func() error {
		_, err := r.exec(query, firstOpts(opts))
		return err
	})
}

// QueryMatrix runs the query and returns its normalized rows, killing the
// test on error.
func (r *Runner) QueryMatrix(t testutils.TB, query string, opts ...QueryOpts) [][]interface{} {
	t.Helper()
	raw, err := r.exec(query, firstOpts(opts))
	if err != nil {
		t.Fatalf("error executing '%s': %+v", query, err)
	}
	return NormalizeRows(raw)
}

// CheckOne asserts that the query returns exactly one row equal to expected.
func (r *Runner) CheckOne(
	t testutils.TB, query string, expected []interface{}, opts ...QueryOpts,
) {
	t.Helper()
	res := r.QueryMatrix(t, query, opts...)
	want := [][]interface{}{NormalizeRow(expected)}
	if !reflect.DeepEqual(res, want) {
		t.Fatalf("query '%s': expected single row:\n%sgot:\n%s",
			query, MatrixToStr(want), MatrixToStr(res))
	}
}

// CheckNone asserts that the query returns no rows.
func (r *Runner) CheckNone(t testutils.TB, query string, opts ...QueryOpts) {
	t.Helper()
	res := r.QueryMatrix(t, query, opts...)
	if len(res) != 0 {
		t.Fatalf("query '%s': expected no rows, got:\n%s", query, MatrixToStr(res))
	}
}

// CheckAll asserts that the query returns exactly the expected rows, in
// order unless opts.IgnoreOrder is set.
func (r *Runner) CheckAll(
	t testutils.TB, query string, expected [][]interface{}, opts ...QueryOpts,
) {
	t.Helper()
	if err := r.checkAllErr(query, expected, firstOpts(opts)); err != nil {
		t.Fatal(err)
	}
}

// CheckResultsRetry is CheckAll wrapped in SucceedsSoon, for results that
// converge asynchronously.
func (r *Runner) CheckResultsRetry(
	t testutils.TB, query string, expected [][]interface{}, opts ...QueryOpts,
) {
	t.Helper()
	o := firstOpts(opts)
	testutils.SucceedsSoon(t, func() error {
		return r.checkAllErr(query, expected, o)
	})
}

func (r *Runner) checkAllErr(query string, expected [][]interface{}, o QueryOpts) error {
	raw, err := r.exec(query, o)
	if err != nil {
		return errors.Wrapf(err, "error executing '%s'", query)
	}
	res := NormalizeRows(raw)
	want := NormalizeRows(expected)
	if o.IgnoreOrder {
		SortMatrix(res)
		SortMatrix(want)
	}
	if !reflect.DeepEqual(res, want) {
		return errors.Newf("query '%s': expected:\n%sgot:\n%sdiff (-expected +actual):\n%s",
			query, MatrixToStr(want), MatrixToStr(res), cmp.Diff(want, res))
	}
	return nil
}

// CheckRowCount asserts the number of rows in a table, optionally restricted
// by a where clause (pass "" for none).
func (r *Runner) CheckRowCount(
	t testutils.TB, table string, expected int, where string, opts ...QueryOpts,
) {
	t.Helper()
	query := fmt.Sprintf("SELECT count(*) FROM %s", table)
	if where != "" {
		query += " WHERE " + where
	}
	res := r.QueryMatrix(t, query, opts...)
	if len(res) != 1 || len(res[0]) != 1 {
		t.Fatalf("query '%s': expected a single count cell, got:\n%s", query, MatrixToStr(res))
	}
	count, ok := res[0][0].(int64)
	if !ok {
		t.Fatalf("query '%s': count has non-integer type %T", query, res[0][0])
	}
	if count != int64(expected) {
		t.Fatalf("expected a row count of %d in table '%s', but got %d (query '%s')",
			expected, table, count, query)
	}
}

// CheckChecksumProbe asserts the checksum_probe setting recorded in the
// system schema for a table or materialized view of the given keyspace.
func (r *Runner) CheckChecksumProbe(
	t testutils.TB, ks, name string, expected float64, view bool,
) {
	t.Helper()
	rel, col := "tables", "table_name"
	if view {
		rel, col = "views", "view_name"
	}
	r.CheckOne(t, fmt.Sprintf(
		"SELECT checksum_probe FROM system_schema.%s WHERE keyspace_name = '%s' AND %s = '%s'",
		rel, ks, col, name,
	), []interface{}{expected})
}

// ExpectFailure runs a query that must fail with one of the given kinds and,
// when pattern is non-empty, a message matching it. A query that succeeds is
// a missing-failure; a wrong category re-surfaces the original error
// verbatim; a message mismatch reports the full actual text.
func (r *Runner) ExpectFailure(
	t testutils.TB, query string, pattern string, kinds ...qlerror.Kind,
) {
	t.Helper()
	_, err := r.exec(query, QueryOpts{})
	if err == nil {
		t.Fatalf("expected '%s' to raise one of %v, but nothing was raised", query, kinds)
	}
	if merr := qlerror.Match(err, pattern, kinds...); merr != nil {
		t.Fatalf("query '%s': %+v", query, merr)
	}
}

// ExpectInvalid asserts that the query is rejected as an invalid request.
// The optional pattern constrains the error message.
func (r *Runner) ExpectInvalid(t testutils.TB, query string, pattern ...string) {
	t.Helper()
	p := ""
	if len(pattern) > 0 {
		p = pattern[0]
	}
	r.ExpectFailure(t, query, p, qlerror.InvalidRequest)
}

// ExpectUnauthorized asserts that the query is rejected as unauthorized with
// the given message pattern. The pattern is required: permission errors are
// only meaningful together with who was denied what.
func (r *Runner) ExpectUnauthorized(t testutils.TB, query, message string) {
	t.Helper()
	if message == "" {
		t.Fatal("ExpectUnauthorized requires a message pattern")
	}
	r.ExpectFailure(t, query, message, qlerror.Unauthorized)
}

// UnavailableKinds are the failure categories accepted by ExpectUnavailable:
// everything the coordinator raises when replicas are down or slow.
var UnavailableKinds = []qlerror.Kind{
	qlerror.Unavailable,
	qlerror.WriteTimeout,
	qlerror.WriteFailure,
	qlerror.ReadTimeout,
	qlerror.ReadFailure,
}

// ExpectUnavailable runs an arbitrary operation (not necessarily a query)
// that must fail with an unavailability-class error.
func (r *Runner) ExpectUnavailable(t testutils.TB, op func() error) {
	t.Helper()
	err := op()
	if err == nil {
		t.Fatalf("expected one of %v, but nothing was raised", UnavailableKinds)
	}
	if merr := qlerror.Match(err, "", UnavailableKinds...); merr != nil {
		t.Fatalf("%+v", merr)
	}
}

// ExpectUnavailableQuery is ExpectUnavailable over a plain query.
func (r *Runner) ExpectUnavailableQuery(t testutils.TB, query string, opts ...QueryOpts) {
	t.Helper()
	o := firstOpts(opts)
	r.ExpectUnavailable(t, func() error {
		_, err := r.exec(query, o)
		return err
	})
}
