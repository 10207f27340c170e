package objfile

import (
	"bytes"
	"debug/elf"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// buildMinimalELF writes a tiny valid ELF64 object with a .text section and
// one symbol, enough to exercise the reader without a real toolchain.
func buildMinimalELF(t *testing.T) string {
	t.Helper()

	const (
		ehdrSize  = 64
		shdrSize  = 64
		symSize   = 24
	)

	var text = []byte{0x90, 0x90, 0x90, 0x90} // nop nop nop nop
	shstrtab := []byte("\x00.text\x00.shstrtab\x00.symtab\x00.strtab\x00")
	strtab := []byte("\x00myfunc\x00")

	// Layout: header, text, symtab, strtab, shstrtab, then section headers.
	textOff := uint64(ehdrSize)
	symtabOff := textOff + uint64(len(text))
	strtabOff := symtabOff + symSize
	shstrtabOff := strtabOff + uint64(len(strtab))
	shOff := shstrtabOff + uint64(len(shstrtab))

	buf := new(bytes.Buffer)

	// ELF header (e_ident + rest), little-endian 64-bit.
	ident := [16]byte{0x7f, 'E', 'L', 'F', 2, 1, 1, 0}
	buf.Write(ident[:])
	writeLE16(buf, uint16(elf.ET_REL))
	writeLE16(buf, uint16(elf.EM_X86_64))
	writeLE32(buf, 1) // e_version
	writeLE64(buf, 0) // e_entry
	writeLE64(buf, 0) // e_phoff
	writeLE64(buf, shOff)
	writeLE32(buf, 0)            // e_flags
	writeLE16(buf, ehdrSize)     // e_ehsize
	writeLE16(buf, 0)            // e_phentsize
	writeLE16(buf, 0)            // e_phnum
	writeLE16(buf, shdrSize)     // e_shentsize
	writeLE16(buf, 5)            // e_shnum: null, text, symtab, strtab, shstrtab
	writeLE16(buf, 4)            // e_shstrndx

	buf.Write(text)

	// One symbol entry pointing at "myfunc" in strtab, defined in section 1 (.text).
	writeLE32(buf, 1) // st_name offset into strtab
	buf.WriteByte(0x12) // st_info: GLOBAL<<4 | FUNC
	buf.WriteByte(0)     // st_other
	writeLE16(buf, 1)    // st_shndx = .text
	writeLE64(buf, 0x1000) // st_value
	writeLE64(buf, uint64(len(text)))

	buf.Write(strtab)
	buf.Write(shstrtab)

	// Section headers, in order matching the index names above.
	shName := func(name string) uint32 {
		idx := bytes.Index(shstrtab, []byte(name+"\x00"))
		require.GreaterOrEqual(t, idx, 0)
		return uint32(idx)
	}

	writeSectionHeader(buf, 0, elf.SHT_NULL, 0, 0, 0, 0, 0)
	writeSectionHeader(buf, shName(".text"), elf.SHT_PROGBITS, 0x1000, textOff, uint64(len(text)), 0, 0)
	writeSectionHeader(buf, shName(".symtab"), elf.SHT_SYMTAB, 0, symtabOff, symSize, symSize, 3)
	writeSectionHeader(buf, shName(".strtab"), elf.SHT_STRTAB, 0, strtabOff, uint64(len(strtab)), 0, 0)
	writeSectionHeader(buf, shName(".shstrtab"), elf.SHT_STRTAB, 0, shstrtabOff, uint64(len(shstrtab)), 0, 0)

	path := filepath.Join(t.TempDir(), "sample.o")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func writeLE16(buf *bytes.Buffer, v uint16) { buf.WriteByte(byte(v)); buf.WriteByte(byte(v >> 8)) }
func writeLE32(buf *bytes.Buffer, v uint32) {
	for i := 0; i < 4; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}
func writeLE64(buf *bytes.Buffer, v uint64) {
	for i := 0; i < 8; i++ {
		buf.WriteByte(byte(v >> (8 * i)))
	}
}

func writeSectionHeader(buf *bytes.Buffer, name uint32, typ elf.SectionType, addr, offset, size uint64, entsize uint64, link uint32) {
	writeLE32(buf, name)
	writeLE32(buf, uint32(typ))
	writeLE64(buf, 0) // flags
	writeLE64(buf, addr)
	writeLE64(buf, offset)
	writeLE64(buf, size)
	writeLE32(buf, link)
	writeLE32(buf, 0) // info
	writeLE64(buf, 1) // addralign
	writeLE64(buf, entsize)
}

func TestOpenReadsHeaderSectionsAndSymbols(t *testing.T) {
	path := buildMinimalELF(t)

	r, err := Open(path, WithForcedRead())
	require.NoError(t, err)
	defer r.Close()

	hdr, err := r.GetELFHeader()
	require.NoError(t, err)
	require.Equal(t, elf.ELFCLASS64, hdr.Class)
	require.Equal(t, elf.ELFDATA2LSB, hdr.Data)

	text, err := r.GetSection(".text")
	require.NoError(t, err)
	require.Equal(t, []byte{0x90, 0x90, 0x90, 0x90}, text.Bytes)
	require.Equal(t, uint64(0x1000), text.Header.VirtualAddress)

	_, err = r.GetSection(".does-not-exist")
	require.ErrorIs(t, err, ErrSectionNotFound)

	syms, err := r.GetSymbolTable()
	require.NoError(t, err)
	require.Len(t, syms, 1)
	require.Equal(t, "myfunc", syms[0].Name)
	require.Equal(t, uint64(0x1000), syms[0].Value)
	require.Equal(t, elf.STT_FUNC, elf.SymType(syms[0].Type()))

	_, err = r.GetProgramHeaders()
	require.ErrorIs(t, err, ErrNoProgramHeaders)
}

func TestOpenMmapAndForcedReadAgree(t *testing.T) {
	path := buildMinimalELF(t)

	mmapped, err := Open(path)
	require.NoError(t, err)
	defer mmapped.Close()

	buffered, err := Open(path, WithForcedRead())
	require.NoError(t, err)
	defer buffered.Close()

	a, err := mmapped.GetSection(".text")
	require.NoError(t, err)
	b, err := buffered.GetSection(".text")
	require.NoError(t, err)
	require.Equal(t, a.Bytes, b.Bytes)
}

func TestOpenRejectsMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.o"))
	require.Error(t, err)
}

func TestOpenRejectsNonELF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notelf.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an elf file"), 0o644))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrNotELF)
}
