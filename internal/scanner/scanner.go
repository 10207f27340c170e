// Package scanner locates throw sites inside a function's machine code by
// recognizing the RIP-relative LEA pattern the Itanium ABI lowering of
// `throw T` emits to materialize the address of `typeinfo for T`
// (SPEC_FULL.md §4.D / spec.md §4.D). It does not decode instructions; it
// slides a 4-byte window over the function body and tests each position as
// a candidate displacement.
package scanner

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/libhal/safe/internal/itanium"
	"github.com/libhal/safe/internal/objfile"
)

// RTTIIndex maps a typeinfo symbol's address to the symbol itself, built
// once per object (spec.md §4.D "RTTI index construction (eager)").
type RTTIIndex struct {
	byAddress map[uint64]objfile.Symbol
}

// BuildRTTIIndex walks every symbol and inserts (symbol.Value, symbol) for
// every name whose demangled form would begin with "typeinfo". It does not
// demangle: it tests the raw name for an _ZTI or _ZTS prefix via
// itanium.IsRTTISymbol (see SPEC_FULL.md §4.J). The first symbol seen at a
// given address wins, per spec.md §4.D.
func BuildRTTIIndex(symbols []objfile.Symbol) *RTTIIndex {
	idx := &RTTIIndex{byAddress: make(map[uint64]objfile.Symbol)}
	for _, sym := range symbols {
		if !itanium.IsRTTISymbol(sym.Name) {
			continue
		}
		if _, exists := idx.byAddress[sym.Value]; exists {
			continue
		}
		idx.byAddress[sym.Value] = sym
	}
	return idx
}

// Lookup returns the RTTI symbol recorded at address, if any.
func (idx *RTTIIndex) Lookup(address uint64) (objfile.Symbol, bool) {
	sym, ok := idx.byAddress[address]
	return sym, ok
}

// Len reports how many distinct addresses the index covers.
func (idx *RTTIIndex) Len() int { return len(idx.byAddress) }

// ErrOffsetOutOfRange is returned when a function symbol's value lies
// before the scanned section's virtual address, making the byte offset
// computation negative or otherwise meaningless.
var ErrOffsetOutOfRange = fmt.Errorf("scanner: function offset out of range of section")

// ThrownSymbol is one throw site found inside a function: the byte offset
// within the function where the candidate LEA displacement was read, and
// the RTTI symbol resolved at the computed target address.
type ThrownSymbol struct {
	Offset int
	Target uint64
	Symbol objfile.Symbol
}

// Scan walks fn's body (fnValue is the function symbol's address, fnSize
// its declared size, textVirtAddr and textBytes the containing section's
// virtual address and raw bytes) looking for RIP-relative LEA
// displacements that resolve to a typeinfo symbol in idx.
//
// offset = fnValue - textVirtAddr locates the function's first byte inside
// textBytes. An out-of-range offset is an error; an oversize fnSize is
// clipped to the buffer end (spec.md §4.D bounds).
func Scan(fnValue, fnSize, textVirtAddr uint64, textBytes []byte, idx *RTTIIndex) ([]ThrownSymbol, error) {
	if fnValue < textVirtAddr {
		return nil, ErrOffsetOutOfRange
	}
	offset := fnValue - textVirtAddr
	if int(offset) > len(textBytes) {
		return nil, ErrOffsetOutOfRange
	}

	end := offset + fnSize
	if end > uint64(len(textBytes)) {
		end = uint64(len(textBytes))
	}
	window := textBytes[offset:end]

	var found []ThrownSymbol
	seen := make(map[uint64]bool)
	for i := 0; i+4 <= len(window); i++ {
		displacement := int32(binary.LittleEndian.Uint32(window[i : i+4]))
		target := fnValue + uint64(i) + 4 + uint64(displacement)
		sym, ok := idx.Lookup(target)
		if !ok {
			continue
		}
		if seen[target] {
			continue
		}
		seen[target] = true
		found = append(found, ThrownSymbol{Offset: i, Target: target, Symbol: sym})
	}
	return found, nil
}

// DemangledName renders a throw site's symbol through the Itanium
// demangler, stripped of the leading "typeinfo for " noise callers of
// this package don't want to repeat (spec.md §6's human-readable report
// names the thrown type, not the raw RTTI symbol).
func DemangledName(sym objfile.Symbol) string {
	name := itanium.Demangle(sym.Name)
	return strings.TrimPrefix(name, "typeinfo for ")
}
