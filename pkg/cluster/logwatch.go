// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cluster

import (
	"context"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
)

// WatchLogFor tails the file at path until a line matches pattern or ctx is
// done. Content already in the file counts. The progress callback, if
// non-nil, is invoked on every scan round so callers can report liveness.
//
// fsnotify wakes the scan on writes; a coarse ticker backstops platforms and
// filesystems where rename-based log handling drops events.
func WatchLogFor(ctx context.Context, path, pattern string, progress func()) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return errors.Wrapf(err, "bad log pattern %q", pattern)
	}

	f, err := waitForFile(ctx, path)
	if err != nil {
		return err
	}
	defer f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating log watcher")
	}
	defer watcher.Close()
	if err := watcher.Add(path); err != nil {
		return errors.Wrapf(err, "watching %s", path)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var pending string
	scan := func() (bool, error) {
		if progress != nil {
			progress()
		}
		buf := make([]byte, 64<<10)
		for {
			n, rerr := f.Read(buf)
			if n > 0 {
				pending += string(buf[:n])
				lines := strings.Split(pending, "\n")
				pending = lines[len(lines)-1]
				for _, line := range lines[:len(lines)-1] {
					if re.MatchString(line) {
						return true, nil
					}
				}
			}
			if rerr != nil {
				if errors.Is(rerr, os.ErrClosed) {
					return false, rerr
				}
				return false, nil // EOF: wait for more
			}
		}
	}

	for {
		if found, serr := scan(); serr != nil {
			return serr
		} else if found {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.Wrapf(ctx.Err(), "%q did not appear in %s", pattern, path)
		case werr := <-watcher.Errors:
			return errors.Wrapf(werr, "watching %s", path)
		case <-watcher.Events:
		case <-ticker.C:
		}
	}
}

func waitForFile(ctx context.Context, path string) (*os.File, error) {
	for {
		f, err := os.Open(path)
		if err == nil {
			return f, nil
		}
		if !os.IsNotExist(err) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, errors.Wrapf(ctx.Err(), "%s never appeared", path)
		case <-time.After(100 * time.Millisecond):
		}
	}
}
