package correlate

import (
	"errors"
	"testing"

	"github.com/libhal/safe/internal/lsda"
	"github.com/libhal/safe/internal/objfile"
	"github.com/libhal/safe/internal/scanner"
	"github.com/stretchr/testify/require"
)

func thrownAt(addr uint64, name string) []scanner.ThrownSymbol {
	return []scanner.ThrownSymbol{{Target: addr, Symbol: objfile.Symbol{Name: name}}}
}

func TestCorrelateExactAddressMatch(t *testing.T) {
	parsed := &lsda.Parsed{
		TypeTable: []uint64{0xAAAA}, // type_index 1 resolves to the only entry
		Scopes: []lsda.Scope{
			{
				Start: 0x10, End: 0x20,
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Catch, TypeIndex: 1, LandingPad: 0x30},
				},
			},
		},
	}
	c := New(parsed)

	matches, err := c.Correlate("foo", thrownAt(0xAAAA, "_ZTI3Foo"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Len(t, matches[0].Handlers, 1)
	require.Equal(t, "scope[0]", matches[0].Handlers[0].ScopeID)
}

func TestCorrelateCleanupAlwaysMatches(t *testing.T) {
	parsed := &lsda.Parsed{
		Scopes: []lsda.Scope{
			{
				Start: 0x10, End: 0x20,
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Cleanup, TypeIndex: 0, LandingPad: 0x30},
				},
			},
		},
	}
	c := New(parsed)

	matches, err := c.Correlate("foo", thrownAt(0xDEAD, "_ZTI3Bar"))
	require.NoError(t, err)
	require.Len(t, matches[0].Handlers, 1, "cleanup runs for any in-flight exception")
}

func TestCorrelateFilterNeverMatches(t *testing.T) {
	parsed := &lsda.Parsed{
		TypeTable: []uint64{0xDEAD},
		Scopes: []lsda.Scope{
			{
				Start: 0x10, End: 0x20,
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Filter, TypeIndex: -1, LandingPad: 0x30},
				},
			},
		},
	}
	c := New(parsed)

	_, err := c.Correlate("foo", thrownAt(0xDEAD, "_ZTI3Bar"))
	var correlateErr *Error
	require.True(t, errors.As(err, &correlateErr))
	require.Equal(t, NoCatchRecords, correlateErr.Reason)
}

func TestCorrelateNoThrownTypes(t *testing.T) {
	c := New(&lsda.Parsed{})
	_, err := c.Correlate("foo", nil)
	var correlateErr *Error
	require.True(t, errors.As(err, &correlateErr))
	require.Equal(t, NoThrownTypes, correlateErr.Reason)
}

func TestCorrelateNoCatchRecords(t *testing.T) {
	c := New(&lsda.Parsed{})
	_, err := c.Correlate("foo", thrownAt(0x1, "_ZTI3Foo"))
	var correlateErr *Error
	require.True(t, errors.As(err, &correlateErr))
	require.Equal(t, NoCatchRecords, correlateErr.Reason)
}

func TestCorrelateTypeResolveFailed(t *testing.T) {
	parsed := &lsda.Parsed{
		TypeTable: nil, // type_index 1 cannot resolve against an empty table
		Scopes: []lsda.Scope{
			{
				Start: 0x10, End: 0x20,
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Catch, TypeIndex: 1, LandingPad: 0x30},
				},
			},
		},
	}
	c := New(parsed)

	_, err := c.Correlate("foo", thrownAt(0xAAAA, "_ZTI3Foo"))
	var correlateErr *Error
	require.True(t, errors.As(err, &correlateErr))
	require.Equal(t, TypeResolveFailed, correlateErr.Reason)
}

func TestCorrelateSoundness(t *testing.T) {
	// (Correlation soundness, spec.md §8): a nonempty match for throw T
	// implies T is in the thrown set and a catch record with matching
	// resolve_type exists.
	parsed := &lsda.Parsed{
		TypeTable: []uint64{0x1111, 0x2222},
		Scopes: []lsda.Scope{
			{
				Start: 0x10, End: 0x20,
				Handlers: []lsda.ScopeHandler{
					{Kind: lsda.Catch, TypeIndex: 1, LandingPad: 0x30}, // resolves to 0x2222
				},
			},
		},
	}
	c := New(parsed)

	matches, err := c.Correlate("foo", thrownAt(0x2222, "_ZTI3Baz"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.NotEmpty(t, matches[0].Handlers)
	resolved, ok := parsed.ResolveType(matches[0].Handlers[0].TypeIndex)
	require.True(t, ok)
	require.Equal(t, matches[0].ThrownAddress, resolved)
}
