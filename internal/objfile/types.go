// Package objfile is SAFE's object reader (component A). It opens a
// compiled ELF64 little-endian Itanium-ABI object, maps it into memory, and
// exposes sections, program headers, and the symbol table as addressable
// byte ranges. See include/elf_parser.hpp in the libhal/exception-insights
// sources this package is modeled on.
package objfile

import "debug/elf"

// SectionHeader carries the subset of an ELF section header SAFE's
// decoders need: where the bytes live on disk, where they're mapped at
// runtime, and how to interpret fixed-size records inside them.
type SectionHeader struct {
	VirtualAddress uint64
	FileOffset     uint64
	Size           uint64
	Type           elf.SectionType
	EntrySize      uint64
}

// Section is a named tuple of header plus borrowed bytes. Bytes is empty
// for SHT_NOBITS (uninitialized storage) sections.
type Section struct {
	Name   string
	Header SectionHeader
	Bytes  []byte
}

// ProgramHeader is one entry of the program header table (segments).
type ProgramHeader struct {
	Type     elf.ProgType
	Flags    elf.ProgFlag
	Offset   uint64
	VAddr    uint64
	PAddr    uint64
	FileSize uint64
	MemSize  uint64
	Align    uint64
}

// Symbol is one entry of the ELF symbol table. Name is borrowed from the
// reader's owning buffer; callers must not retain a Symbol past the
// lifetime of the Reader that produced it.
type Symbol struct {
	Name         string
	Value        uint64
	Size         uint64
	Info         byte
	SectionIndex int
}

// Bind returns the symbol binding (ELF32_ST_BIND equivalent: local, global,
// weak, ...) encoded in the high 4 bits of Info.
func (s Symbol) Bind() elf.SymBind { return elf.SymBind(s.Info >> 4) }

// Type returns the symbol type (function, object, ...) encoded in the low
// 4 bits of Info.
func (s Symbol) Type() elf.SymType { return elf.SymType(s.Info & 0xf) }

// Header is SAFE's view of the ELF file header: just enough to tell
// callers the object is what it claims to be.
type Header struct {
	Class   elf.Class
	Data    elf.Data
	Type    elf.Type
	Machine elf.Machine
	Entry   uint64
	Version elf.Version
}
