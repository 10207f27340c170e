// Package pipeline sequences the driver stage order A→C, A→D, A→E, then F
// per focus function, aggregating errors into the four-kind taxonomy of
// spec.md §7 (SPEC_FULL.md §4.G / §7).
package pipeline

// EnvironmentError wraps a fatal-at-the-edge failure: bad arguments,
// missing file, wrong magic.
type EnvironmentError struct{ Err error }

func (e *EnvironmentError) Error() string { return "environment: " + e.Err.Error() }
func (e *EnvironmentError) Unwrap() error { return e.Err }

// DecodeError wraps a stage-fatal failure: out-of-bounds read, LEB
// overflow, unsupported encoding form, malformed action table, or a
// malformed call-graph dump.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return "decode: " + e.Err.Error() }
func (e *DecodeError) Unwrap() error { return e.Err }

// LookupError wraps a requested section or symbol table that is absent.
// Load returns it when .text, the symbol table, or .gcc_except_table is
// missing, and cmd/safe treats it as a process failure. A missing focus
// function is not a LookupError: RunFunction reports it as a
// CorrelationError.
type LookupError struct{ Err error }

func (e *LookupError) Error() string { return "lookup: " + e.Err.Error() }
func (e *LookupError) Unwrap() error { return e.Err }

// CorrelationError wraps a *correlate.Error: no typeinfo found, no
// thrown types, no matching handlers, or a type-resolution miss.
// Returned as a typed outcome; the driver maps these to report text, not
// process failure (spec.md §7 (4)).
type CorrelationError struct{ Err error }

func (e *CorrelationError) Error() string { return "correlation: " + e.Err.Error() }
func (e *CorrelationError) Unwrap() error { return e.Err }
