package leb

import (
	"encoding/binary"
	"fmt"
)

// Encoding is a DW_EH_PE_* byte: form in the low nibble, application in
// bits 4-6, indirection in bit 7.
type Encoding byte

// Omitted reports the 0xFF "no value present" sentinel, which yields zero
// without consuming any bytes.
func (e Encoding) Omitted() bool { return e == 0xFF }

// Form is the representation nibble (absptr, uleb128, udata2, ...).
func (e Encoding) Form() byte { return byte(e) & 0x0F }

// Application is the pcrel/datarel/... nibble.
func (e Encoding) Application() byte { return byte(e) & 0x70 }

// Indirect reports the indirection bit. Raw-section readers (this
// package's only caller) reject indirect encodings.
func (e Encoding) Indirect() bool { return byte(e)&0x80 != 0 }

const applicationPCRelative = 0x10

// ErrIndirect is returned when an encoding's indirection bit is set; SAFE
// only ever decodes encoded pointers straight out of section bytes, where
// indirection is not meaningful.
var ErrIndirect = fmt.Errorf("leb: indirect encoding not supported in raw section context")

// ErrUnsupportedForm is returned for a DW_EH_PE_* form this decoder does
// not implement (only the forms spec.md §4.B lists are supported).
var ErrUnsupportedForm = fmt.Errorf("leb: unsupported DW_EH_PE form")

// Reader decodes encoded pointers from a byte slice, tracking a cursor so
// pcrel (bit 0x10) application can add the position of the encoded value
// itself as its base, matching r_encode's pcrel_base parameter.
type Reader struct {
	Data []byte
	Pos  int
}

// NewReader wraps data for encoded-pointer decoding starting at offset 0.
func NewReader(data []byte) *Reader { return &Reader{Data: data} }

func (r *Reader) need(n int) error {
	if r.Pos+n > len(r.Data) {
		return ErrOutOfBounds
	}
	return nil
}

// Byte reads a single raw byte, advancing the cursor.
func (r *Reader) Byte() (byte, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	b := r.Data[r.Pos]
	r.Pos++
	return b, nil
}

func (r *Reader) u16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.Data[r.Pos:])
	r.Pos += 2
	return v, nil
}

func (r *Reader) u32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.Data[r.Pos:])
	r.Pos += 4
	return v, nil
}

func (r *Reader) u64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.Data[r.Pos:])
	r.Pos += 8
	return v, nil
}

// ULEB128 decodes an unsigned LEB128 at the current cursor.
func (r *Reader) ULEB128() (uint64, error) {
	v, err := Uint64(r.Data, &r.Pos)
	return v, err
}

// SLEB128 decodes a signed LEB128 at the current cursor.
func (r *Reader) SLEB128() (int64, error) {
	v, err := Int64(r.Data, &r.Pos)
	return v, err
}

// DecodePointer reads one encoded value per enc's form and adds pcrelBase
// to it when the application nibble requests pc-relative interpretation
// (0x10). Callers choose the base explicitly rather than having it
// inferred from the cursor, mirroring r_encode(encoding, pcrel)'s explicit
// pcrel parameter: the LSDA header passes the cursor position, while the
// call-site table passes 0 because gcc emits call-site fields as
// already-relative unsigned values, not pc-relative pointers. 0xFF yields
// 0 without consuming any bytes, matching the ABI's "omitted" sentinel.
func (r *Reader) DecodePointer(enc Encoding, pcrelBase uint64) (uint64, error) {
	if enc.Omitted() {
		return 0, nil
	}
	if enc.Indirect() {
		return 0, ErrIndirect
	}

	var value uint64
	var err error
	switch enc.Form() {
	case 0x00: // absptr
		value, err = r.u64()
	case 0x01: // uleb128
		value, err = r.ULEB128()
	case 0x02: // udata2
		var v uint16
		v, err = r.u16()
		value = uint64(v)
	case 0x03: // udata4
		var v uint32
		v, err = r.u32()
		value = uint64(v)
	case 0x04: // udata8
		value, err = r.u64()
	case 0x09: // sleb128
		var v int64
		v, err = r.SLEB128()
		value = uint64(v)
	case 0x0B: // sdata4
		var v uint32
		v, err = r.u32()
		value = uint64(int64(int32(v)))
	case 0x0C: // sdata8
		var v uint64
		v, err = r.u64()
		value = uint64(int64(v))
	default:
		return 0, fmt.Errorf("%w: 0x%02x", ErrUnsupportedForm, enc.Form())
	}
	if err != nil {
		return 0, err
	}

	if enc.Application() == applicationPCRelative {
		value += pcrelBase
	}

	return value, nil
}
