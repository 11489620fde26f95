// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlclient

import (
	"context"
	gosql "database/sql"
	"fmt"

	"github.com/cockroachdb/errors"
	_ "github.com/lib/pq" // registers the "postgres" driver
)

// PGConn adapts QuorumDB's pgwire endpoint to the Conn interface. A single
// connection is pinned from the pool so that the consistency_level session
// setting applies to subsequent statements.
type PGConn struct {
	db      *gosql.DB
	conn    *gosql.Conn
	applied Consistency
}

var _ Conn = (*PGConn)(nil)

// OpenPG dials the pgwire endpoint at the given DSN.
func OpenPG(ctx context.Context, dsn string) (*PGConn, error) {
	db, err := gosql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	conn, err := db.Conn(ctx)
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "connecting to %s", dsn)
	}
	return &PGConn{db: db, conn: conn}, nil
}

// Close releases the pinned connection.
func (c *PGConn) Close() error {
	err := c.conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// Execute implements Conn.
func (c *PGConn) Execute(
	ctx context.Context, query string, cl Consistency,
) ([][]interface{}, error) {
	if cl != Default && cl != c.applied {
		if _, err := c.conn.ExecContext(
			ctx, fmt.Sprintf("SET consistency_level = '%s'", cl),
		); err != nil {
			return nil, errors.Wrapf(err, "setting consistency level %s", cl)
		}
		c.applied = cl
	}
	rows, err := c.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAll(rows)
}

// scanAll drains rows into a value matrix, preserving row and column order.
// Empty results are an empty (but non-nil) slice.
func scanAll(rows *gosql.Rows) ([][]interface{}, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	vals := make([]interface{}, len(cols))
	for i := range vals {
		vals[i] = new(interface{})
	}
	res := [][]interface{}{}
	for rows.Next() {
		if err := rows.Scan(vals...); err != nil {
			return nil, err
		}
		row := make([]interface{}, len(vals))
		for i, v := range vals {
			row[i] = *v.(*interface{})
		}
		res = append(res, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}
