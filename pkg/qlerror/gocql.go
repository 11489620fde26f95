// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlerror

import (
	"github.com/cockroachdb/errors"
	"github.com/gocql/gocql"
)

// gocqlKind maps a gocql request error onto a Kind using the native
// protocol's error code. The bool result is false when err did not travel
// through the native protocol at all.
func gocqlKind(err error) (Kind, bool) {
	var req gocql.RequestError
	if !errors.As(err, &req) {
		return Unknown, false
	}
	switch req.Code() {
	case gocql.ErrCodeUnavailable:
		return Unavailable, true
	case gocql.ErrCodeReadTimeout:
		return ReadTimeout, true
	case gocql.ErrCodeWriteTimeout:
		return WriteTimeout, true
	case gocql.ErrCodeReadFailure:
		return ReadFailure, true
	case gocql.ErrCodeWriteFailure:
		return WriteFailure, true
	case gocql.ErrCodeSyntax, gocql.ErrCodeInvalid, gocql.ErrCodeConfig:
		return InvalidRequest, true
	case gocql.ErrCodeUnauthorized, gocql.ErrCodeCredentials:
		return Unauthorized, true
	case gocql.ErrCodeAlreadyExists:
		return AlreadyExists, true
	}
	return Unknown, true
}
