// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// logger logs to a file in the artifacts directory and to stdio
// simultaneously. This makes it possible to follow a scenario from the
// terminal while keeping a non-interleaved record per scenario in the
// artifacts.
type logger struct {
	path           string
	file           *os.File
	stdout, stderr io.Writer
}

// newLogger constructs a logger writing to path. If path is empty, logs go
// to stdout/stderr only.
func newLogger(path string) (*logger, error) {
	if path == "" {
		return &logger{stdout: os.Stdout, stderr: os.Stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &logger{
		path:   path,
		file:   f,
		stdout: io.MultiWriter(f, os.Stdout),
		stderr: io.MultiWriter(f, os.Stderr),
	}, nil
}

func (l *logger) close() {
	if l.file != nil {
		_ = l.file.Close()
	}
}

func (l *logger) Printf(f string, args ...interface{}) {
	fmt.Fprintf(l.stdout, ensureNewline(f), args...)
}

func (l *logger) Errorf(f string, args ...interface{}) {
	fmt.Fprintf(l.stderr, ensureNewline(f), args...)
}

func ensureNewline(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\n' {
		return s + "\n"
	}
	return s
}
