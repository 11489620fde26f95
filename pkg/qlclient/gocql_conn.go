// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlclient

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
)

// GocqlConn adapts a gocql session (QuorumDB's native QL port) to the Conn
// interface. Rows come back in column order regardless of the driver's
// map-based scan.
type GocqlConn struct {
	sess *gocql.Session
}

var _ Conn = (*GocqlConn)(nil)

// WrapGocql returns a Conn backed by the given gocql session. The caller
// retains ownership of the session and closes it when done.
func WrapGocql(sess *gocql.Session) *GocqlConn {
	return &GocqlConn{sess: sess}
}

// Execute implements Conn.
func (c *GocqlConn) Execute(
	ctx context.Context, query string, cl Consistency,
) ([][]interface{}, error) {
	q := c.sess.Query(query).WithContext(ctx)
	switch cl {
	case Default:
	case Serial:
		q = q.SerialConsistency(gocql.Serial)
	case LocalSerial:
		q = q.SerialConsistency(gocql.LocalSerial)
	default:
		lvl, ok := gocqlLevels[cl]
		if !ok {
			return nil, errors.Newf("consistency level %s not supported by the native driver", cl)
		}
		q = q.Consistency(lvl)
	}

	iter := q.Iter()
	cols := iter.Columns()
	rows := [][]interface{}{}
	for {
		m := make(map[string]interface{}, len(cols))
		if !iter.MapScan(m) {
			break
		}
		row := make([]interface{}, len(cols))
		for i, col := range cols {
			row[i] = m[col.Name]
		}
		rows = append(rows, row)
	}
	if err := iter.Close(); err != nil {
		return nil, err
	}
	return rows, nil
}

var gocqlLevels = map[Consistency]gocql.Consistency{
	Any:         gocql.Any,
	One:         gocql.One,
	Two:         gocql.Two,
	Three:       gocql.Three,
	Quorum:      gocql.Quorum,
	All:         gocql.All,
	LocalQuorum: gocql.LocalQuorum,
	EachQuorum:  gocql.EachQuorum,
	LocalOne:    gocql.LocalOne,
}
