// Package lsda decodes the Itanium C++ ABI Language-Specific Data Area
// found in a function's .gcc_except_table entry: the call-site table,
// action table, type table, and the scopes derived from them. This is
// SAFE's component C, grounded on include/abi_parse.hpp and
// src/abi_parse.cpp.
package lsda

// CallSite is one protected PC range and its landing pad. ActionOffset ==
// 0 means no handler chain: the exception propagates past this range
// without running a handler.
type CallSite struct {
	Start        uint64
	Length       uint64
	LandingPad   uint64
	ActionOffset int64
}

// Action is one entry of the action table. EntryOffset is this action's
// own byte offset from the start of the action table and serves as its
// stable identity; NextOffset == 0 terminates the chain, otherwise
// EntryOffset+NextOffset names the successor's EntryOffset. NextIndex is
// the index of that successor inside Parsed.Actions, or -1 when the chain
// terminates or a link can't be resolved.
type Action struct {
	EntryOffset int64
	Type        int64
	NextOffset  int64
	NextIndex   int64
}

// HandlerKind classifies a ScopeHandler by the sign of its type index.
type HandlerKind int

const (
	// Catch handles a specific type, resolved through the type table.
	Catch HandlerKind = iota
	// Cleanup always runs, regardless of the exception's type.
	Cleanup
	// Filter is an exception specification filter; not modeled by the
	// correlator (spec.md §4.F).
	Filter
)

func (k HandlerKind) String() string {
	switch k {
	case Catch:
		return "catch"
	case Cleanup:
		return "cleanup"
	case Filter:
		return "filter"
	default:
		return "unknown"
	}
}

func classify(typeIndex int64) HandlerKind {
	switch {
	case typeIndex > 0:
		return Catch
	case typeIndex == 0:
		return Cleanup
	default:
		return Filter
	}
}

// ScopeHandler is one step of a call site's action chain.
type ScopeHandler struct {
	Kind       HandlerKind
	TypeIndex  int64
	LandingPad uint64
}

// Scope is the call-site range plus the ordered handlers reached by
// walking its action chain. Every call site with a non-zero landing pad
// produces exactly one Scope.
type Scope struct {
	Start    uint64
	End      uint64
	Handlers []ScopeHandler
}

// Parsed is the fully decoded LSDA for one function.
type Parsed struct {
	CallSites []CallSite
	Actions   []Action
	TypeTable []uint64
	Scopes    []Scope
}

// ResolveType implements the Itanium type-table convention: a positive,
// one-based index counted from the end of the table. Indices <= 0 or
// beyond the table length have no resolution.
func (p *Parsed) ResolveType(typeIndex int64) (uint64, bool) {
	if typeIndex <= 0 {
		return 0, false
	}
	n := int64(len(p.TypeTable))
	if typeIndex > n {
		return 0, false
	}
	return p.TypeTable[n-typeIndex], true
}
