package lsda

import "errors"

var (
	// ErrCallSiteOverrun is returned when the call-site table's declared
	// length runs past the end of the LSDA buffer.
	ErrCallSiteOverrun = errors.New("lsda: call site table exceeds buffer size")
	// ErrCallSiteMisaligned is returned when decoding the call-site table
	// does not land exactly on the table's declared end.
	ErrCallSiteMisaligned = errors.New("lsda: call site parsing did not end at table boundary")
	// ErrActionTableOddCount is returned when the action table ends after
	// decoding only the `type` half of a would-be record: a malformed,
	// odd SLEB128 count.
	ErrActionTableOddCount = errors.New("lsda: malformed action table, odd sleb128 count")
	// ErrActionsPastTypeTable is returned when the action table would
	// start after the type table, which cannot happen in a well-formed
	// LSDA.
	ErrActionsPastTypeTable = errors.New("lsda: action table starts past type table")
	// ErrMissingAction is returned when a scope's call site names an
	// action_offset that does not correspond to any parsed action.
	ErrMissingAction = errors.New("lsda: call site references missing action entry")
	// ErrActionOverrun is returned when decoding a single action record's
	// fields reads past the action table's limit.
	ErrActionOverrun = errors.New("lsda: action record read past table limit")
)
