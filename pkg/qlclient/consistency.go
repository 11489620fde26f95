// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package qlclient

import "fmt"

// Consistency is the number of replica acknowledgements a read or write
// requires before it is considered successful. The zero value defers to the
// session default.
type Consistency int

const (
	// Default defers to the session's configured consistency level.
	Default Consistency = iota
	Any
	One
	Two
	Three
	Quorum
	All
	LocalQuorum
	EachQuorum
	Serial
	LocalSerial
	LocalOne
)

var consistencyNames = map[Consistency]string{
	Default:     "DEFAULT",
	Any:         "ANY",
	One:         "ONE",
	Two:         "TWO",
	Three:       "THREE",
	Quorum:      "QUORUM",
	All:         "ALL",
	LocalQuorum: "LOCAL_QUORUM",
	EachQuorum:  "EACH_QUORUM",
	Serial:      "SERIAL",
	LocalSerial: "LOCAL_SERIAL",
	LocalOne:    "LOCAL_ONE",
}

func (c Consistency) String() string {
	if s, ok := consistencyNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Consistency(%d)", int(c))
}
