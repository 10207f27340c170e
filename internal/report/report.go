// Package report renders correlation results as human-readable text
// (SPEC_FULL.md §4.K), grounded on
// _examples/original_source/src/validator_catch.cpp's
// print_throw_catch_report.
package report

import (
	"errors"
	"fmt"
	"io"

	"github.com/libhal/safe/internal/correlate"
)

// WriteOutcome renders the result of correlating one function: either an
// error message naming the correlate.Reason, or one paragraph per thrown
// symbol listing its matching handlers (or their absence).
func WriteOutcome(w io.Writer, funcName string, matches []correlate.ThrowCatchMatch, err error) {
	fmt.Fprintf(w, "[SAFE] throw/catch correlation for function %s:\n", funcName)

	if err != nil {
		var correlateErr *correlate.Error
		if errors.As(err, &correlateErr) {
			fmt.Fprintf(w, "  (%s)\n", correlateErr.Reason.String())
			return
		}
		fmt.Fprintf(w, "  (%s)\n", err.Error())
		return
	}

	for _, m := range matches {
		fmt.Fprintf(w, "  Thrown RTTI symbol: %s @ 0x%x\n", m.ThrownName, m.ThrownAddress)
		if len(m.Handlers) == 0 {
			fmt.Fprintln(w, "    no matching catch handlers in LSDA")
			continue
		}
		fmt.Fprintf(w, "    handled by %d catch handler(s):\n", len(m.Handlers))
		for _, rec := range m.Handlers {
			fmt.Fprintf(w, "      - %s (%s) range 0x%x-0x%x, landing_pad 0x%x, type_index %d\n",
				rec.ScopeID, rec.Kind, rec.RangeBegin, rec.RangeEnd, rec.LandingPad, rec.TypeIndex)
		}
	}
}

// WriteCatchTable renders the full flattened catch-handler table for
// verbose mode (spec.md §6's per-function throw/catch table), grounded on
// print_records.
func WriteCatchTable(w io.Writer, records []*correlate.CatchRecord) {
	fmt.Fprintln(w, "\n[Catch Handler Table]")
	for i, rec := range records {
		fmt.Fprintf(w, "  [%d] Scope: %s, Kind: %s, Range: 0x%x-0x%x, LandingPad: 0x%x, TypeIndex: %d\n",
			i, rec.ScopeID, rec.Kind, rec.RangeBegin, rec.RangeEnd, rec.LandingPad, rec.TypeIndex)
	}
}
