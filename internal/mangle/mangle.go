// Package mangle derives the auxiliary relation names of the incremental
// evaluation scheme from base relation names.
//
// Mangling is a pure prefix scheme: the same (base, variant) pair always
// yields the same name, and a mangled name uniquely determines both its
// variant and its base. Prefixes starting with '@' mark relations internal
// to the evaluation (never visible as program relations).
package mangle

import "strings"

// Variant identifies a member of a base relation's auxiliary family.
type Variant int

const (
	// Base is the relation itself.
	Base Variant = iota
	// Delta holds rows discovered in the previous fixpoint iteration.
	Delta
	// New holds rows discovered in the current fixpoint iteration.
	New
	// PreviousIndexed is the fully indexed snapshot of the previous epoch.
	PreviousIndexed
	// DiffMinus holds rows retracted in the current epoch.
	DiffMinus
	// DiffPlus holds rows asserted in the current epoch.
	DiffPlus
	// NewDiffMinus holds retractions discovered in the current iteration.
	NewDiffMinus
	// NewDiffPlus holds assertions discovered in the current iteration.
	NewDiffPlus
	// DiffMinusApplied is the previous epoch with retractions applied.
	DiffMinusApplied
	// DiffPlusApplied is the previous epoch with assertions applied.
	DiffPlusApplied
	// DiffApplied is the previous epoch with both diffs applied.
	DiffApplied
	// DiffMinusCount carries retraction counts for pivot joins.
	DiffMinusCount
	// DiffPlusCount carries assertion counts for pivot joins.
	DiffPlusCount
	// DeltaDiffApplied is the per-iteration delta of DiffApplied.
	DeltaDiffApplied
	// DeltaDiffMinusApplied is the per-iteration delta of DiffMinusApplied.
	DeltaDiffMinusApplied
	// DeltaDiffMinusCount is the per-iteration delta of DiffMinusCount.
	DeltaDiffMinusCount
	// DeltaDiffPlusCount is the per-iteration delta of DiffPlusCount.
	DeltaDiffPlusCount
	// TempDeltaDiffApplied is scratch space for the DeltaDiffApplied merge.
	TempDeltaDiffApplied
)

var prefixes = [...]string{
	Base:                  "",
	Delta:                 "@delta_",
	New:                   "@new_",
	PreviousIndexed:       "@indexed_",
	DiffMinus:             "diff_minus@_",
	DiffPlus:              "diff_plus@_",
	NewDiffMinus:          "@new_diff_minus@_",
	NewDiffPlus:           "@new_diff_plus@_",
	DiffMinusApplied:      "diff_minus_applied@_",
	DiffPlusApplied:       "diff_plus_applied@_",
	DiffApplied:           "diff_applied@_",
	DiffMinusCount:        "diff_minus_count@_",
	DiffPlusCount:         "diff_plus_count@_",
	DeltaDiffApplied:      "@delta_diff_applied@_",
	DeltaDiffMinusApplied: "@delta_diff_minus_applied@_",
	DeltaDiffMinusCount:   "@delta_diff_minus_count@_",
	DeltaDiffPlusCount:    "@delta_diff_plus_count@_",
	TempDeltaDiffApplied:  "@temp_delta_diff_applied@_",
}

// order in which Parse probes prefixes: every prefix comes before the shorter
// prefixes it extends so that, for example, "@new_diff_plus@_" is never
// mistaken for "@new_".
var parseOrder = []Variant{
	TempDeltaDiffApplied,
	DeltaDiffMinusApplied,
	DeltaDiffMinusCount,
	DeltaDiffPlusCount,
	DeltaDiffApplied,
	NewDiffMinus,
	NewDiffPlus,
	DiffMinusApplied,
	DiffPlusApplied,
	DiffMinusCount,
	DiffPlusCount,
	DiffApplied,
	DiffMinus,
	DiffPlus,
	PreviousIndexed,
	Delta,
	New,
}

// Prefix returns the name prefix of a variant.
func (v Variant) Prefix() string { return prefixes[v] }

func (v Variant) String() string {
	if v == Base {
		return "base"
	}
	return strings.Trim(prefixes[v], "@_")
}

// Name mangles a base relation name into the given variant.
func Name(base string, v Variant) string {
	return prefixes[v] + base
}

// Parse splits a possibly mangled name into its base and variant.
func Parse(name string) (string, Variant) {
	for _, v := range parseOrder {
		if base, ok := strings.CutPrefix(name, prefixes[v]); ok {
			return base, v
		}
	}
	return name, Base
}

// IsInternal reports whether the variant names an evaluation-internal
// relation (one whose prefix starts with '@').
func (v Variant) IsInternal() bool {
	return strings.HasPrefix(prefixes[v], "@")
}
