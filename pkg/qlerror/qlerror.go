// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

// Package qlerror defines the closed set of failure categories a QuorumDB
// query execution can surface, and helpers for categorizing and matching
// errors raised by any of the supported drivers.
package qlerror

import (
	"fmt"
	"regexp"

	"github.com/cockroachdb/errors"
)

// Kind is a failure category. The set is closed: drivers map whatever they
// raise onto one of these kinds, and anything unrecognized is Unknown.
type Kind int

const (
	// Unknown is the category of errors that did not originate from
	// QuorumDB's request path (network failures, driver bugs, ...).
	Unknown Kind = iota
	// InvalidRequest covers malformed or unprocessable queries.
	InvalidRequest
	// Unauthorized covers authentication and permission failures.
	Unauthorized
	// AlreadyExists covers DDL against an existing keyspace or table.
	AlreadyExists
	// Unavailable means too few live replicas to satisfy the consistency
	// level.
	Unavailable
	// ReadTimeout and friends are the coordinator-reported replica
	// coordination failures.
	ReadTimeout
	ReadFailure
	WriteTimeout
	WriteFailure
)

var kindNames = map[Kind]string{
	Unknown:        "Unknown",
	InvalidRequest: "InvalidRequest",
	Unauthorized:   "Unauthorized",
	AlreadyExists:  "AlreadyExists",
	Unavailable:    "Unavailable",
	ReadTimeout:    "ReadTimeout",
	ReadFailure:    "ReadFailure",
	WriteTimeout:   "WriteTimeout",
	WriteFailure:   "WriteFailure",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error is the native failure type surfaced by QuorumDB test fakes and by
// drivers that pre-categorize their errors. It participates in
// cockroachdb/errors chains, so wrapping preserves the kind.
type Error struct {
	Kind    Kind
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string { return e.Message }

// New returns a categorized error.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Message: msg}
}

// Newf returns a categorized error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the failure category of err. It understands native *Error
// values, gocql request errors, and pq errors from the pgwire endpoint,
// anywhere in the wrap chain.
func KindOf(err error) Kind {
	if err == nil {
		return Unknown
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	if k, ok := gocqlKind(err); ok {
		return k
	}
	if k, ok := pgwireKind(err); ok {
		return k
	}
	return Unknown
}

// Sentinels distinguishing the two ways Match can reject an error. Callers
// use errors.Is to tell a wrong-category failure (where the original error
// is preserved in the chain and must be reported verbatim) from a message
// mismatch.
var (
	ErrWrongKind       = errors.New("unexpected failure kind")
	ErrMessageMismatch = errors.New("failure message mismatch")
)

// Match reports whether err satisfies an expected failure: its category
// must be one of kinds and, when pattern is non-empty, its
// message must match the pattern as a regexp search. A nil return means the
// expectation is satisfied.
//
// On a category mismatch the returned error wraps err itself so the full
// original context survives; on a message mismatch the returned error embeds
// the complete actual message text.
func Match(err error, pattern string, kinds ...Kind) error {
	if err == nil {
		return errors.AssertionFailedf("Match invoked with a nil error")
	}
	if len(kinds) == 0 {
		return errors.AssertionFailedf("Match invoked with no expected kinds")
	}
	kind := KindOf(err)
	found := false
	for _, k := range kinds {
		if k == kind {
			found = true
			break
		}
	}
	if !found {
		return errors.Mark(
			errors.Wrapf(err, "raised %s, expected one of %v", kind, kinds),
			ErrWrongKind)
	}
	if pattern != "" {
		re, reErr := regexp.Compile(pattern)
		if reErr != nil {
			return errors.Wrapf(reErr, "bad message pattern %q", pattern)
		}
		if !re.MatchString(err.Error()) {
			return errors.Mark(
				errors.Newf("message %q does not match %q", err.Error(), pattern),
				ErrMessageMismatch)
		}
	}
	return nil
}
