// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package qlclient abstracts "the thing that can execute a query" against a
// QuorumDB cluster. The verification helpers in testutils/qlutils consume
// only the Session type defined here, so they work identically over the
// native QL driver, the pgwire endpoint, or an in-memory fake.
package qlclient

import "context"

// Conn is the sole capability this layer consumes from a driver: execute one
// query at a consistency level, return raw rows or a categorizable error.
// Implementations must not retry, cache, or pool; those semantics belong to
// the underlying connection.
type Conn interface {
	Execute(ctx context.Context, query string, cl Consistency) ([][]interface{}, error)
}

// Session pairs a Conn with a default consistency level. It is created once
// per test scenario and shared by all assertions in it; it holds no other
// state. A Session must not be used from multiple goroutines concurrently;
// concurrent verification needs independent Sessions.
type Session struct {
	conn Conn
	def  Consistency
}

// NewSession returns a Session issuing queries through conn, defaulting to
// the given consistency level (ONE when unset).
func NewSession(conn Conn, def Consistency) *Session {
	if def == Default {
		def = One
	}
	return &Session{conn: conn, def: def}
}

// Consistency returns the session's default consistency level.
func (s *Session) Consistency() Consistency { return s.def }

// Execute runs query at the session's default consistency level.
func (s *Session) Execute(ctx context.Context, query string) ([][]interface{}, error) {
	return s.conn.Execute(ctx, query, s.def)
}

// ExecuteAt runs query at an explicit consistency level; Default falls back
// to the session's.
func (s *Session) ExecuteAt(
	ctx context.Context, cl Consistency, query string,
) ([][]interface{}, error) {
	if cl == Default {
		cl = s.def
	}
	return s.conn.Execute(ctx, query, cl)
}
