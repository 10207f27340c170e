package correlate

// Reason discriminates why correlation did not produce a match, mirroring
// the original's four-way CorrelateError enum exactly (SPEC_FULL.md
// §4.F).
type Reason int

const (
	// NoTypeinfoForFunction means the function is not known to the
	// scanner, or its typeinfo set could not be computed. Raised by the
	// pipeline driver before Correlate is ever called (spec.md §4.F step
	// 1's "Missing function" case).
	NoTypeinfoForFunction Reason = iota
	// NoThrownTypes means the function exists but throws nothing
	// recorded by the scanner.
	NoThrownTypes
	// NoCatchRecords means no LSDA catch record matched any thrown
	// type (or no catch records exist at all).
	NoCatchRecords
	// TypeResolveFailed means a Catch-kind handler's type_index could
	// not be resolved against the LSDA's type table during correlation.
	// The LSDA parser does not check type indices at decode time, so this
	// is where an out-of-range index surfaces (SPEC_FULL.md §4.F
	// addition).
	TypeResolveFailed
)

func (r Reason) String() string {
	switch r {
	case NoTypeinfoForFunction:
		return "no typeinfo found for this function"
	case NoThrownTypes:
		return "function has no recorded throw types"
	case NoCatchRecords:
		return "no LSDA catch records matched any thrown type"
	case TypeResolveFailed:
		return "failed to resolve at least one LSDA type index"
	default:
		return "unknown correlate error"
	}
}

// Error is the typed Correlation-class error from spec.md §7 (4).
type Error struct {
	Reason   Reason
	Function string
}

func (e *Error) Error() string {
	return "correlate: " + e.Function + ": " + e.Reason.String()
}
