package scanner

import (
	"encoding/binary"
	"testing"

	"github.com/libhal/safe/internal/objfile"
	"github.com/stretchr/testify/require"
)

func leaBytes(displacement int32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, uint32(displacement))
	return b
}

func TestBuildRTTIIndexFiltersByPrefix(t *testing.T) {
	symbols := []objfile.Symbol{
		{Name: "_ZTI3Foo", Value: 0x1000},
		{Name: "main", Value: 0x2000},
		{Name: "_ZTS3Foo", Value: 0x3000},
	}
	idx := BuildRTTIIndex(symbols)
	require.Equal(t, 2, idx.Len())

	sym, ok := idx.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, "_ZTI3Foo", sym.Name)

	_, ok = idx.Lookup(0x2000)
	require.False(t, ok)
}

func TestBuildRTTIIndexKeepsFirstOnCollision(t *testing.T) {
	symbols := []objfile.Symbol{
		{Name: "_ZTI3Foo", Value: 0x1000},
		{Name: "_ZTI3Bar", Value: 0x1000},
	}
	idx := BuildRTTIIndex(symbols)
	sym, ok := idx.Lookup(0x1000)
	require.True(t, ok)
	require.Equal(t, "_ZTI3Foo", sym.Name, "first symbol at an address wins")
}

// TestScanFindsRIPRelativeLEA builds a synthetic function body containing
// one real LEA-style displacement (four bytes at offset 3 resolving to a
// known typeinfo address) among otherwise unrelated bytes, mirroring
// spec.md's _Z3fooi throwing-typeinfo-for-int end-to-end scenario.
func TestScanFindsRIPRelativeLEA(t *testing.T) {
	const fnValue = 0x400000
	const textVirtAddr = 0x400000
	const instrOffset = 3
	const target = 0x401050

	// target = fnValue + instrOffset + 4 + displacement
	displacement := int32(target - (fnValue + instrOffset + 4))

	body := make([]byte, 20)
	copy(body[instrOffset:], leaBytes(displacement))

	symbols := []objfile.Symbol{
		{Name: "_ZTIi", Value: target},
	}
	idx := BuildRTTIIndex(symbols)

	found, err := Scan(fnValue, uint64(len(body)), textVirtAddr, body, idx)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, instrOffset, found[0].Offset)
	require.Equal(t, uint64(target), found[0].Target)
	require.Equal(t, "_ZTIi", found[0].Symbol.Name)
}

func TestScanNoMatchesWithEmptyIndex(t *testing.T) {
	body := make([]byte, 16)
	idx := BuildRTTIIndex(nil)
	found, err := Scan(0x1000, uint64(len(body)), 0x1000, body, idx)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestScanOversizeFunctionClipsToBufferEnd(t *testing.T) {
	body := make([]byte, 8)
	idx := BuildRTTIIndex(nil)
	// fnSize far exceeds the buffer; Scan must not panic or read OOB.
	found, err := Scan(0x1000, 1<<20, 0x1000, body, idx)
	require.NoError(t, err)
	require.Empty(t, found)
}

func TestScanOffsetOutOfRangeErrors(t *testing.T) {
	body := make([]byte, 8)
	idx := BuildRTTIIndex(nil)
	_, err := Scan(0x500, 8, 0x1000, body, idx)
	require.ErrorIs(t, err, ErrOffsetOutOfRange)
}

func TestDemangledNameStripsTypeinfoPrefix(t *testing.T) {
	sym := objfile.Symbol{Name: "_ZTIi"}
	require.Equal(t, "int", DemangledName(sym))
}
