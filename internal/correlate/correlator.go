package correlate

import (
	"fmt"

	"github.com/libhal/safe/internal/lsda"
	"github.com/libhal/safe/internal/scanner"
)

// Correlator holds the flattened catch-handler table for one function's
// LSDA, built once from its parsed scopes.
type Correlator struct {
	parsed  *lsda.Parsed
	records []*CatchRecord
}

// New flattens parsed's scopes into the CatchRecord table (spec.md §4.F
// step 2), assigning each scope a stable "scope[<index>]" label in parse
// order.
func New(parsed *lsda.Parsed) *Correlator {
	c := &Correlator{parsed: parsed}
	for i, scope := range parsed.Scopes {
		scopeID := fmt.Sprintf("scope[%d]", i)
		for _, h := range scope.Handlers {
			c.records = append(c.records, &CatchRecord{
				ScopeID:    scopeID,
				Kind:       h.Kind,
				RangeBegin: scope.Start,
				RangeEnd:   scope.End,
				LandingPad: h.LandingPad,
				TypeIndex:  h.TypeIndex,
			})
		}
	}
	return c
}

// Records returns the flattened catch-handler table, in scope order.
func (c *Correlator) Records() []*CatchRecord { return c.records }

// Correlate matches funcName's thrown RTTI symbols (already computed by
// the scanner) against this LSDA's catch records, per spec.md §4.F steps
// 1, 3, 4 (step 1's "Missing function" case is the caller's
// responsibility — see NoTypeinfoForFunction's doc comment).
func (c *Correlator) Correlate(funcName string, thrown []scanner.ThrownSymbol) ([]ThrowCatchMatch, error) {
	if len(thrown) == 0 {
		return nil, &Error{Reason: NoThrownTypes, Function: funcName}
	}
	if len(c.records) == 0 {
		return nil, &Error{Reason: NoCatchRecords, Function: funcName}
	}

	result := make([]ThrowCatchMatch, 0, len(thrown))
	for _, t := range thrown {
		match := ThrowCatchMatch{ThrownAddress: t.Target, ThrownName: t.Symbol.Name}

		for _, rec := range c.records {
			switch rec.Kind {
			case lsda.Cleanup:
				// Cleanup handlers run for any in-flight exception
				// (spec.md §4.F step 3).
				match.Handlers = append(match.Handlers, rec)
			case lsda.Filter:
				continue
			case lsda.Catch:
				if rec.TypeIndex <= 0 {
					continue
				}
				addr, ok := c.parsed.ResolveType(rec.TypeIndex)
				if !ok {
					return nil, &Error{Reason: TypeResolveFailed, Function: funcName}
				}
				if addr == t.Target {
					match.Handlers = append(match.Handlers, rec)
				}
			}
		}

		result = append(result, match)
	}

	anyHandlers := false
	for _, m := range result {
		if len(m.Handlers) > 0 {
			anyHandlers = true
			break
		}
	}
	if !anyHandlers {
		return nil, &Error{Reason: NoCatchRecords, Function: funcName}
	}

	return result, nil
}
