// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlerror

import (
	"github.com/cockroachdb/errors"
	"github.com/lib/pq"
)

// QuorumDB's pgwire endpoint reports replica coordination failures with
// implementation-defined SQLSTATEs in the XQ class; everything else uses the
// standard codes.
const (
	PGCodeUnavailable  = pq.ErrorCode("XQ000")
	PGCodeReadTimeout  = pq.ErrorCode("XQ001")
	PGCodeWriteTimeout = pq.ErrorCode("XQ002")
	PGCodeReadFailure  = pq.ErrorCode("XQ003")
	PGCodeWriteFailure = pq.ErrorCode("XQ004")

	pgCodeInsufficientPrivilege = pq.ErrorCode("42501")
	pgCodeDuplicateTable        = pq.ErrorCode("42P07")
	pgCodeDuplicateSchema       = pq.ErrorCode("42P06")
)

// pgwireKind maps a pq error onto a Kind. The bool result is false when err
// did not come from the pgwire endpoint.
func pgwireKind(err error) (Kind, bool) {
	pqErr := (*pq.Error)(nil)
	if !errors.As(err, &pqErr) {
		return Unknown, false
	}
	switch pqErr.Code {
	case PGCodeUnavailable:
		return Unavailable, true
	case PGCodeReadTimeout:
		return ReadTimeout, true
	case PGCodeWriteTimeout:
		return WriteTimeout, true
	case PGCodeReadFailure:
		return ReadFailure, true
	case PGCodeWriteFailure:
		return WriteFailure, true
	case pgCodeInsufficientPrivilege:
		return Unauthorized, true
	case pgCodeDuplicateTable, pgCodeDuplicateSchema:
		return AlreadyExists, true
	}
	switch pqErr.Code.Class() {
	case "28": // invalid authorization specification
		return Unauthorized, true
	case "22", "26", "42": // data exception, invalid statement, syntax/access
		return InvalidRequest, true
	}
	return Unknown, true
}
