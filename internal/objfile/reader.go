package objfile

import (
	"bytes"
	"debug/elf"
	"fmt"
	"io"
	"os"

	"golang.org/x/sys/unix"
)

// Reader owns the backing bytes for one loaded object file. Every Section
// and Symbol it hands out borrows from that buffer; callers must not use
// them after Close.
//
// Reader prefers to mmap the file (§3 of the spec: "mmap- or read-backed"
// buffers) and falls back to a plain read when mmap isn't available, e.g.
// the path isn't a regular file. Both paths produce byte-identical section
// contents.
type Reader struct {
	raw     []byte
	mmapped bool
	elf     *elf.File

	header       Header
	headerLoaded bool

	sections map[string]Section
	progs    []ProgramHeader
	symbols  []Symbol
}

// Option configures how Open loads the file.
type Option func(*options)

type options struct {
	forceRead bool
}

// WithForcedRead disables the mmap path even when it would otherwise be
// attempted. Used when SAFE_NO_MMAP is set (see internal/config).
func WithForcedRead() Option {
	return func(o *options) { o.forceRead = true }
}

// Open loads path, verifies it is a 64-bit little-endian Itanium-ABI ELF
// object, and eagerly indexes sections, program headers, and the symbol
// table, matching the eager-load contract of spec.md §4.A.
func Open(path string, opts ...Option) (*Reader, error) {
	var cfg options
	for _, o := range opts {
		o(&cfg)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("objfile: open %s: %w", path, err)
	}
	defer f.Close()

	raw, mmapped, err := loadBytes(f, cfg.forceRead)
	if err != nil {
		return nil, err
	}

	ef, err := elf.NewFile(bytes.NewReader(raw))
	if err != nil {
		if mmapped {
			_ = unix.Munmap(raw)
		}
		return nil, fmt.Errorf("%w: %v", ErrNotELF, err)
	}

	if ef.Class != elf.ELFCLASS64 || ef.Data != elf.ELFDATA2LSB {
		if mmapped {
			_ = unix.Munmap(raw)
		}
		return nil, fmt.Errorf("%w: class=%s data=%s", ErrWrongClass, ef.Class, ef.Data)
	}

	r := &Reader{
		raw:     raw,
		mmapped: mmapped,
		elf:     ef,
	}

	r.loadHeader(ef)
	if err := r.loadSections(ef); err != nil {
		r.Close()
		return nil, err
	}
	r.loadProgramHeaders(ef)
	if err := r.loadSymbols(ef); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

// loadBytes mmaps the file when possible, falling back to a full read.
// Recoverable mmap failures (not a regular file, platform doesn't support
// it) silently fall back rather than aborting the load.
func loadBytes(f *os.File, forceRead bool) (raw []byte, mmapped bool, err error) {
	if !forceRead {
		if fi, statErr := f.Stat(); statErr == nil && fi.Mode().IsRegular() && fi.Size() > 0 {
			data, mmapErr := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_PRIVATE)
			if mmapErr == nil {
				return data, true, nil
			}
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	return data, false, nil
}

// Close releases the reader's owning byte buffer. All sections and symbols
// it produced become invalid.
func (r *Reader) Close() error {
	if r.mmapped && r.raw != nil {
		err := unix.Munmap(r.raw)
		r.raw = nil
		return err
	}
	return nil
}

func (r *Reader) loadHeader(ef *elf.File) {
	r.header = Header{
		Class:   ef.Class,
		Data:    ef.Data,
		Type:    ef.Type,
		Machine: ef.Machine,
		Entry:   ef.Entry,
		Version: ef.Version,
	}
	r.headerLoaded = true
}

// GetELFHeader returns the parsed ELF header, or ErrUnloadedHeader if
// construction never reached that step (spec.md §4.A contract).
func (r *Reader) GetELFHeader() (Header, error) {
	if !r.headerLoaded {
		return Header{}, ErrUnloadedHeader
	}
	return r.header, nil
}

func (r *Reader) loadSections(ef *elf.File) error {
	r.sections = make(map[string]Section, len(ef.Sections))
	for _, s := range ef.Sections {
		sec := Section{
			Name: s.Name,
			Header: SectionHeader{
				VirtualAddress: s.Addr,
				FileOffset:     s.Offset,
				Size:           s.Size,
				Type:           s.Type,
				EntrySize:      s.Entsize,
			},
		}

		if s.Type != elf.SHT_NOBITS && s.Size > 0 {
			data, err := s.Data()
			if err != nil {
				// An individual section failing to decode is
				// skipped, not fatal to the whole load. The failure
				// is not logged and no error reaches the caller.
				continue
			}
			sec.Bytes = data
		}

		r.sections[s.Name] = sec
	}
	return nil
}

// GetSection returns the named section, or NoSections if the object has no
// sections at all, or SectionNotFound if the name isn't present.
func (r *Reader) GetSection(name string) (Section, error) {
	if len(r.sections) == 0 {
		return Section{}, ErrNoSections
	}
	sec, ok := r.sections[name]
	if !ok {
		return Section{}, fmt.Errorf("%w: %s", ErrSectionNotFound, name)
	}
	return sec, nil
}

func (r *Reader) loadProgramHeaders(ef *elf.File) {
	r.progs = make([]ProgramHeader, 0, len(ef.Progs))
	for _, p := range ef.Progs {
		r.progs = append(r.progs, ProgramHeader{
			Type:     p.Type,
			Flags:    p.Flags,
			Offset:   p.Off,
			VAddr:    p.Vaddr,
			PAddr:    p.Paddr,
			FileSize: p.Filesz,
			MemSize:  p.Memsz,
			Align:    p.Align,
		})
	}
}

// GetProgramHeaders returns the ordered program header table, or
// NoProgramHeaders if the object carries none.
func (r *Reader) GetProgramHeaders() ([]ProgramHeader, error) {
	if len(r.progs) == 0 {
		return nil, ErrNoProgramHeaders
	}
	return r.progs, nil
}

func (r *Reader) loadSymbols(ef *elf.File) error {
	syms, err := ef.Symbols()
	if err != nil {
		// elf.ErrNoSymbols when .symtab/.strtab are absent: that is an
		// empty result, not a decode failure.
		return nil
	}

	r.symbols = make([]Symbol, 0, len(syms))
	for _, s := range syms {
		r.symbols = append(r.symbols, Symbol{
			Name:         s.Name,
			Value:        s.Value,
			Size:         s.Size,
			Info:         s.Info,
			SectionIndex: int(s.Section),
		})
	}
	return nil
}

// GetSymbolTable returns every symbol derived from .symtab/.strtab, or
// NoSymbols if the object carries no symbol table.
func (r *Reader) GetSymbolTable() ([]Symbol, error) {
	if len(r.symbols) == 0 {
		return nil, ErrNoSymbols
	}
	return r.symbols, nil
}
