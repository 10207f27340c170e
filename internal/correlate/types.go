// Package correlate matches a function's thrown RTTI symbols against the
// catch handlers reachable in its LSDA scopes (SPEC_FULL.md §4.F /
// spec.md §4.F), grounded on
// _examples/original_source/src/validator_catch.cpp.
package correlate

import "github.com/libhal/safe/internal/lsda"

// CatchRecord is one flattened handler entry: a scope's range plus one of
// its handlers. ScopeID is a reporting-only label restored from the
// original's CatchRecord.scope_id (SPEC_FULL.md §4.F addition); it plays
// no role in correlation.
type CatchRecord struct {
	ScopeID    string
	Kind       lsda.HandlerKind
	RangeBegin uint64
	RangeEnd   uint64
	LandingPad uint64
	TypeIndex  int64
}

// ThrowCatchMatch relates one thrown RTTI symbol to the CatchRecords that
// can receive it.
type ThrowCatchMatch struct {
	ThrownAddress uint64
	ThrownName    string
	Handlers      []*CatchRecord
}
