// Copyright 2025 The QuorumDB Authors.
//
// Use of this software is governed by the Apache License, Version 2.0,
// included in the LICENSE file.

package cluster

import (
	"github.com/Masterminds/semver/v3"
)

// Variant says where a version line's build comes from: the most recent
// released version, the branch where changing code lands, or a tentative
// release tag.
type Variant string

const (
	VariantCurrent Variant = "current"
	VariantIndev   Variant = "indev"
	VariantNext    Variant = "next"
)

// VersionMeta captures data about a version line: its variant, the concrete
// version, and the native protocol versions it speaks.
type VersionMeta struct {
	Name     string
	Variant  Variant
	Version  *semver.Version
	MinProto int
	MaxProto int
}

// UpgradePath is an upgrade we wish to test, from a starting version to an
// upgrade target.
type UpgradePath struct {
	Name string
	From VersionMeta
	To   VersionMeta
}

var (
	current20 = VersionMeta{Name: "current_2_0", Variant: VariantCurrent, Version: semver.MustParse("2.0.17"), MinProto: 1, MaxProto: 2}
	current21 = VersionMeta{Name: "current_2_1", Variant: VariantCurrent, Version: semver.MustParse("2.1.14"), MinProto: 1, MaxProto: 3}
	current22 = VersionMeta{Name: "current_2_2", Variant: VariantCurrent, Version: semver.MustParse("2.2.6"), MinProto: 1, MaxProto: 4}
	current30 = VersionMeta{Name: "current_3_0", Variant: VariantCurrent, Version: semver.MustParse("3.0.5"), MinProto: 3, MaxProto: 4}
	next30    = VersionMeta{Name: "next_3_0", Variant: VariantNext, Version: semver.MustParse("3.0.6-tentative"), MinProto: 3, MaxProto: 4}
	current3x = VersionMeta{Name: "current_3_x", Variant: VariantCurrent, Version: semver.MustParse("3.5.0"), MinProto: 3, MaxProto: 4}
	next3x    = VersionMeta{Name: "next_3_x", Variant: VariantNext, Version: semver.MustParse("3.6.0-tentative"), MinProto: 3, MaxProto: 4}
	headTrunk = VersionMeta{Name: "head_trunk", Variant: VariantIndev, Version: semver.MustParse("3.7.0-dev"), MinProto: 3, MaxProto: 4}
)

// HeadVersion is the in-development version scenarios treat as the build
// under test.
func HeadVersion() string { return headTrunk.Version.String() }

// manifest maps a version line to the lines it supports upgrading to.
var manifest = []struct {
	from VersionMeta
	to   []VersionMeta
}{
	{current21, []VersionMeta{next3x}},
	{current22, []VersionMeta{next3x}},
	{current30, []VersionMeta{next3x}},
	{next30, []VersionMeta{next3x}},
	{current3x, []VersionMeta{next3x}},
	{next3x, []VersionMeta{headTrunk}},
}

// haveCommonProto reports whether the two versions share a native protocol
// version, in test order from starting version to upgrade version.
func haveCommonProto(from, to VersionMeta) bool {
	return from.MaxProto >= to.MinProto
}

// isTargetedVariantCombo filters upgrade pairs to the combinations worth
// testing: released to in-dev, released to proposed release point, and
// proposed release point onward.
func isTargetedVariantCombo(from, to VersionMeta) bool {
	switch {
	case from.Variant == VariantCurrent && to.Variant == VariantIndev,
		from.Variant == VariantCurrent && to.Variant == VariantNext,
		from.Variant == VariantNext && to.Variant == VariantIndev,
		from.Variant == VariantNext && to.Variant == VariantNext:
		return true
	}
	return false
}

// BuildUpgradePairs derives the set of valid upgrade paths from the
// manifest, dropping pairs whose variants are not targeted or whose protocol
// ranges do not overlap.
func BuildUpgradePairs() []UpgradePath {
	var pairs []UpgradePath
	for _, entry := range manifest {
		for _, to := range entry.to {
			if !isTargetedVariantCombo(entry.from, to) {
				continue
			}
			if !haveCommonProto(entry.from, to) {
				continue
			}
			pairs = append(pairs, UpgradePath{
				Name: "upgrade_" + entry.from.Name + "_to_" + to.Name,
				From: entry.from,
				To:   to,
			})
		}
	}
	return pairs
}
