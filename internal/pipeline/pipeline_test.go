package pipeline

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/libhal/safe/internal/correlate"
	"github.com/libhal/safe/internal/lsda"
	"github.com/libhal/safe/internal/objfile"
	"github.com/libhal/safe/internal/scanner"
	"github.com/stretchr/testify/require"
)

func leaBytes(displacement int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(displacement))
	return b
}

// buildDriver assembles a Driver without going through Load, exercising
// RunFunction's wiring between the scanner, correlator, and LSDA in
// isolation from ELF/dump parsing — those are covered in their own
// package tests.
func buildDriver(t *testing.T) *Driver {
	t.Helper()

	const fnValue = 0x401000
	const textVirtAddr = 0x401000
	const typeinfoAddr = 0x500000
	const instrOffset = 2

	displacement := int32(typeinfoAddr - (fnValue + instrOffset + 4))
	body := make([]byte, 16)
	copy(body[instrOffset:], leaBytes(displacement))

	symbols := []objfile.Symbol{
		{Name: "_Z3fooi", Value: fnValue, Size: uint64(len(body))},
		{Name: "_ZTIi", Value: typeinfoAddr},
	}

	parsed := &lsda.Parsed{
		TypeTable: []uint64{typeinfoAddr},
		Scopes: []lsda.Scope{
			{
				Start: fnValue, End: fnValue + uint64(len(body)),
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Catch, TypeIndex: 1, LandingPad: fnValue + 12},
				},
			},
		},
	}

	return &Driver{
		RTTI:         scanner.BuildRTTIIndex(symbols),
		LSDA:         parsed,
		Correlator:   correlate.New(parsed),
		Symbols:      symbols,
		textVirtAddr: textVirtAddr,
		textBytes:    body,
	}
}

func TestRunFunctionEndToEndMatch(t *testing.T) {
	d := buildDriver(t)

	name, matches, err := d.RunFunction("_Z3fooi")
	require.NoError(t, err)
	require.Equal(t, "_Z3fooi", name)
	require.Len(t, matches, 1)
	require.NotEmpty(t, matches[0].Handlers)
}

func TestRunFunctionMissingSymbolIsCorrelationError(t *testing.T) {
	d := buildDriver(t)

	_, _, err := d.RunFunction("_Z3nonexistentv")
	var correlationErr *CorrelationError
	require.True(t, errors.As(err, &correlationErr))

	var underlying *correlate.Error
	require.True(t, errors.As(err, &underlying))
	require.Equal(t, correlate.NoTypeinfoForFunction, underlying.Reason)
}

func TestRunFunctionNoThrowsIsCorrelationError(t *testing.T) {
	d := buildDriver(t)
	// _Z3quietv has a zero-byte function body in the symbol table, so the
	// scanner finds nothing to correlate.
	d.Symbols = append(d.Symbols, objfile.Symbol{Name: "_Z3quietv", Value: 0x401000, Size: 0})

	_, _, err := d.RunFunction("_Z3quietv")
	var correlationErr *CorrelationError
	require.True(t, errors.As(err, &correlationErr))

	var underlying *correlate.Error
	require.True(t, errors.As(err, &underlying))
	require.Equal(t, correlate.NoThrownTypes, underlying.Reason)
}
