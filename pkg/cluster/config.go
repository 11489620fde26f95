// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cluster

import (
	"os"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// Options is the free-form node configuration written to each node's
// quorumd.yaml alongside the harness-controlled settings.
type Options map[string]interface{}

// nodeConfig is the full configuration file a node starts from.
type nodeConfig struct {
	NodeName   string                 `yaml:"node_name"`
	DataDir    string                 `yaml:"data_dir"`
	LogLevel   string                 `yaml:"log_level"`
	ListenAddr string                 `yaml:"listen_addr"`
	PGAddr     string                 `yaml:"pg_addr"`
	MgmtAddr   string                 `yaml:"mgmt_addr"`
	Options    map[string]interface{} `yaml:"options,omitempty"`
}

func (c nodeConfig) writeFile(path string) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshaling node config")
	}
	return os.WriteFile(path, out, 0644)
}

var (
	v210 = semver.MustParse("2.1.0")
	v300 = semver.MustParse("3.0.0")
	v340 = semver.MustParse("3.4.0")
)

// StripUnsupported removes options the given release line does not
// understand, returning the removed keys. memtable_allocation appeared in
// 2.1, and its offheap variants were dropped again for the 3.0-3.3 lines.
func StripUnsupported(opts Options, v *semver.Version) []string {
	var removed []string
	val, ok := opts["memtable_allocation"]
	if !ok {
		return nil
	}
	drop := v.LessThan(v210)
	if s, isStr := val.(string); isStr && strings.HasPrefix(s, "offheap") {
		if v.Compare(v300) >= 0 && v.LessThan(v340) {
			drop = true
		}
	}
	if drop {
		delete(opts, "memtable_allocation")
		removed = append(removed, "memtable_allocation")
	}
	return removed
}
