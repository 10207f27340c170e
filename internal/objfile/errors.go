package objfile

import "errors"

// Lookup-class errors (spec.md §7 kind 3): the caller asked for something
// that isn't there. None of these abort the pipeline by themselves.
var (
	ErrUnloadedHeader   = errors.New("objfile: elf header not loaded")
	ErrNoSections       = errors.New("objfile: no sections present")
	ErrSectionNotFound  = errors.New("objfile: section not found")
	ErrNoProgramHeaders = errors.New("objfile: no program headers present")
	ErrNoSymbols        = errors.New("objfile: no symbol table present")
)

// Environment/decode-class errors (spec.md §7 kinds 1-2): fatal at the
// boundary that produced them.
var (
	ErrNotELF        = errors.New("objfile: not a well-formed ELF object")
	ErrWrongClass    = errors.New("objfile: expected 64-bit little-endian object")
	ErrMalformedFile = errors.New("objfile: malformed object file")
)
