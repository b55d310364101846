// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"encoding/binary"
	"math"
	"unicode/utf16"
	"unicode/utf8"
)

// ByteReader is a position-tracked, read-only view over an immutable byte
// sequence (spec §3, "Byte cursor"). Every primitive read either advances
// position by exactly the number of bytes it consumed, or leaves position
// untouched and returns an error.
type ByteReader struct {
	data []byte
	pos  uint32
}

// NewReader builds a ByteReader over data. The reader never copies data.
func NewReader(data []byte) *ByteReader {
	return &ByteReader{data: data}
}

// Len returns the total length of the underlying buffer.
func (r *ByteReader) Len() uint32 { return uint32(len(r.data)) }

// Pos returns the current cursor position.
func (r *ByteReader) Pos() uint32 { return r.pos }

// Seek moves the cursor to an absolute position. It is the only way to move
// the cursor backwards; it is used by ESF's pool framing and the CAMV video
// frame table.
func (r *ByteReader) Seek(pos uint32) error {
	if pos > r.Len() {
		return newErr(ErrNeedMoreBytes, "seek beyond end of buffer")
	}
	r.pos = pos
	return nil
}

// Remaining returns the number of unread bytes.
func (r *ByteReader) Remaining() uint32 { return r.Len() - r.pos }

// PeekBytes returns, without advancing the cursor, the next n bytes.
func (r *ByteReader) PeekBytes(n uint32) ([]byte, error) {
	if r.pos+n > r.Len() || r.pos+n < r.pos {
		return nil, newErr(ErrNeedMoreBytes, "not enough bytes to peek")
	}
	return r.data[r.pos : r.pos+n], nil
}

func (r *ByteReader) need(n uint32) error {
	if r.pos+n > r.Len() || r.pos+n < r.pos {
		return newErr(ErrNeedMoreBytes, "not enough bytes remaining")
	}
	return nil
}

// Bytes reads n raw bytes and advances the cursor.
func (r *ByteReader) Bytes(n uint32) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// Bool decodes a single byte as a boolean; any byte other than 0x00/0x01
// fails Malformed and does not advance the cursor (spec §4.A, §8 "Bool
// strictness").
func (r *ByteReader) Bool() (bool, error) {
	if err := r.need(1); err != nil {
		return false, err
	}
	b := r.data[r.pos]
	switch b {
	case 0x00:
		r.pos++
		return false, nil
	case 0x01:
		r.pos++
		return true, nil
	default:
		return false, newMalformed(-1, -1, "boolean byte is neither 0x00 nor 0x01")
	}
}

// U8 decodes an unsigned byte.
func (r *ByteReader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// I8 decodes a signed byte.
func (r *ByteReader) I8() (int8, error) {
	v, err := r.U8()
	return int8(v), err
}

// U16 decodes a little-endian unsigned 16-bit integer.
func (r *ByteReader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// I16 decodes a little-endian signed 16-bit integer.
func (r *ByteReader) I16() (int16, error) {
	v, err := r.U16()
	return int16(v), err
}

// U24 decodes a little-endian unsigned 24-bit integer.
func (r *ByteReader) U24() (uint32, error) {
	if err := r.need(3); err != nil {
		return 0, err
	}
	v := uint32(r.data[r.pos]) | uint32(r.data[r.pos+1])<<8 | uint32(r.data[r.pos+2])<<16
	r.pos += 3
	return v, nil
}

// I24 decodes a little-endian signed (sign-extended) 24-bit integer.
func (r *ByteReader) I24() (int32, error) {
	v, err := r.U24()
	if err != nil {
		return 0, err
	}
	if v&0x800000 != 0 {
		return int32(v | 0xFF000000), nil
	}
	return int32(v), nil
}

// U32 decodes a little-endian unsigned 32-bit integer.
func (r *ByteReader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// I32 decodes a little-endian signed 32-bit integer.
func (r *ByteReader) I32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

// U64 decodes a little-endian unsigned 64-bit integer.
func (r *ByteReader) U64() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// I64 decodes a little-endian signed 64-bit integer.
func (r *ByteReader) I64() (int64, error) {
	v, err := r.U64()
	return int64(v), err
}

// F32 decodes an IEEE-754 little-endian single-precision float.
func (r *ByteReader) F32() (float32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// F64 decodes an IEEE-754 little-endian double-precision float.
func (r *ByteReader) F64() (float64, error) {
	v, err := r.U64()
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ColourRGB decodes a 4-byte colour stored as [B, G, R, 0] and returns it
// packed as 0xRRGGBB (spec §4.A).
func (r *ByteReader) ColourRGB() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	b, g, red := r.data[r.pos], r.data[r.pos+1], r.data[r.pos+2]
	r.pos += 4
	return uint32(red)<<16 | uint32(g)<<8 | uint32(b), nil
}

// StringU8 decodes a u16 length prefix followed by that many UTF-8 bytes.
func (r *ByteReader) StringU8() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	raw, err := r.Bytes(uint32(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(raw) {
		return "", newMalformed(-1, -1, "invalid UTF-8 in length-prefixed string")
	}
	return string(raw), nil
}

// StringU16 decodes a u16 code-unit-count prefix followed by that many
// UTF-16LE code units.
func (r *ByteReader) StringU16() (string, error) {
	n, err := r.U16()
	if err != nil {
		return "", err
	}
	raw, err := r.Bytes(uint32(n) * 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, n)
	for i := range units {
		units[i] = binary.LittleEndian.Uint16(raw[i*2:])
	}
	for _, u := range units {
		if utf16.IsSurrogate(rune(u)) {
			// A lone surrogate half decodes to the replacement rune, which
			// utf16.Decode would silently swallow; detect it explicitly so a
			// mate-less half fails per spec §8 "StringU16 validity".
			if !hasSurrogatePair(units, u) {
				return "", newMalformed(-1, -1, "unpaired UTF-16 surrogate")
			}
		}
	}
	return string(utf16.Decode(units)), nil
}

func hasSurrogatePair(units []uint16, half uint16) bool {
	// utf16.Decode turns every unpaired surrogate half into U+FFFD; more
	// U+FFFD runes out than 0xFFFD code units in means some half had no mate.
	balance := 0
	for _, u := range units {
		if u == utf8.RuneError {
			balance++
		}
	}
	for _, r := range utf16.Decode(units) {
		if r == utf8.RuneError {
			balance--
		}
	}
	return balance >= 0
}

// OptionalStringU8 decodes a presence byte followed by a StringU8 when
// present; an absent value decodes as the empty string.
func (r *ByteReader) OptionalStringU8() (string, error) {
	present, err := r.Bool()
	if err != nil {
		return "", err
	}
	if !present {
		return "", nil
	}
	return r.StringU8()
}

// OptionalStringU16 decodes a presence byte followed by a StringU16 when
// present; an absent value decodes as the empty string.
func (r *ByteReader) OptionalStringU16() (string, error) {
	present, err := r.Bool()
	if err != nil {
		return "", err
	}
	if !present {
		return "", nil
	}
	return r.StringU16()
}

// StringU8Padded decodes a fixed-width, NUL-padded ASCII/UTF-8 string:
// decoding stops at the first NUL but the cursor always advances exactly
// size bytes.
func (r *ByteReader) StringU8Padded(size uint32) (string, error) {
	raw, err := r.Bytes(size)
	if err != nil {
		return "", err
	}
	if n := bytes.IndexByte(raw, 0); n >= 0 {
		raw = raw[:n]
	}
	return string(raw), nil
}

// StringU16Padded decodes a fixed-width (in code-unit pairs), NUL-padded
// UTF-16LE string, stopping at the first NUL code unit.
func (r *ByteReader) StringU16Padded(sizeCodeUnits uint32) (string, error) {
	raw, err := r.Bytes(sizeCodeUnits * 2)
	if err != nil {
		return "", err
	}
	units := make([]uint16, 0, sizeCodeUnits)
	for i := uint32(0); i < sizeCodeUnits; i++ {
		u := binary.LittleEndian.Uint16(raw[i*2:])
		if u == 0 {
			break
		}
		units = append(units, u)
	}
	return string(utf16.Decode(units)), nil
}

// StringU8Terminated decodes a NUL-terminated (or end-of-slice-terminated)
// string; invalid UTF-8 bytes become U+FFFD rather than failing (spec §4.A).
func (r *ByteReader) StringU8Terminated() (string, error) {
	start := r.pos
	end := start
	for end < r.Len() && r.data[end] != 0 {
		end++
	}
	raw := r.data[start:end]
	advance := end - start
	if end < r.Len() {
		advance++ // consume the NUL
	}
	r.pos = start + advance
	return sanitizeUTF8(raw), nil
}

// sanitizeUTF8 replaces each invalid byte sequence with U+FFFD, matching
// the "does not fail" contract of 0-terminated string decoding.
func sanitizeUTF8(raw []byte) string {
	var b bytes.Buffer
	for len(raw) > 0 {
		r, size := utf8.DecodeRune(raw)
		if r == utf8.RuneError && size <= 1 {
			b.WriteRune(utf8.RuneError)
			raw = raw[1:]
			continue
		}
		b.Write(raw[:size])
		raw = raw[size:]
	}
	return b.String()
}

// Cauleb128 decodes the engine-specific variable-length unsigned integer.
// The continuation bit is the high bit (0x80); the value accumulates as
// ((acc<<7)|(b&0x7F)) for every byte, final byte included. It returns the
// decoded value and the number of bytes consumed (its "offset_len"), which
// callers must preserve across re-encoding (spec §4.A, §4.E framing
// invariant).
func (r *ByteReader) Cauleb128() (uint64, int, error) {
	var acc uint64
	n := 0
	for {
		b, err := r.U8()
		if err != nil {
			return 0, 0, err
		}
		n++
		acc = (acc << 7) | uint64(b&0x7F)
		if b&0x80 == 0 {
			return acc, n, nil
		}
		if n > 10 {
			return 0, 0, newMalformed(-1, -1, "cauleb128 exceeds maximum width")
		}
	}
}

// ByteWriter is an appendable byte buffer (spec §3, "Byte cursor" write
// side). Writes never fail on bounds; they may fail on domain violations
// (an over-long 0-padded string).
type ByteWriter struct {
	buf bytes.Buffer
}

// NewWriter returns an empty ByteWriter.
func NewWriter() *ByteWriter { return &ByteWriter{} }

// Bytes returns the accumulated buffer.
func (w *ByteWriter) Bytes() []byte { return w.buf.Bytes() }

// Len returns the number of bytes written so far.
func (w *ByteWriter) Len() uint32 { return uint32(w.buf.Len()) }

// RawBytes appends raw bytes verbatim.
func (w *ByteWriter) RawBytes(b []byte) { w.buf.Write(b) }

// Bool appends a single 0x00/0x01 byte.
func (w *ByteWriter) Bool(v bool) {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

// U8 appends an unsigned byte.
func (w *ByteWriter) U8(v uint8) { w.buf.WriteByte(v) }

// I8 appends a signed byte.
func (w *ByteWriter) I8(v int8) { w.buf.WriteByte(byte(v)) }

// U16 appends a little-endian unsigned 16-bit integer.
func (w *ByteWriter) U16(v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

// I16 appends a little-endian signed 16-bit integer.
func (w *ByteWriter) I16(v int16) { w.U16(uint16(v)) }

// U24 appends a little-endian unsigned 24-bit integer (low 24 bits of v).
func (w *ByteWriter) U24(v uint32) {
	w.buf.Write([]byte{byte(v), byte(v >> 8), byte(v >> 16)})
}

// I24 appends a little-endian signed 24-bit integer.
func (w *ByteWriter) I24(v int32) { w.U24(uint32(v) & 0xFFFFFF) }

// U32 appends a little-endian unsigned 32-bit integer.
func (w *ByteWriter) U32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// I32 appends a little-endian signed 32-bit integer.
func (w *ByteWriter) I32(v int32) { w.U32(uint32(v)) }

// U64 appends a little-endian unsigned 64-bit integer.
func (w *ByteWriter) U64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// I64 appends a little-endian signed 64-bit integer.
func (w *ByteWriter) I64(v int64) { w.U64(uint64(v)) }

// F32 appends an IEEE-754 little-endian single-precision float.
func (w *ByteWriter) F32(v float32) { w.U32(math.Float32bits(v)) }

// F64 appends an IEEE-754 little-endian double-precision float.
func (w *ByteWriter) F64(v float64) { w.U64(math.Float64bits(v)) }

// ColourRGB appends a 0xRRGGBB value using the on-disk [B, G, R, 0] byte
// order.
func (w *ByteWriter) ColourRGB(v uint32) {
	red := byte(v >> 16)
	g := byte(v >> 8)
	b := byte(v)
	w.buf.Write([]byte{b, g, red, 0})
}

// StringU8 appends a u16 byte-length prefix followed by the UTF-8 bytes.
func (w *ByteWriter) StringU8(s string) {
	raw := []byte(s)
	w.U16(uint16(len(raw)))
	w.buf.Write(raw)
}

// StringU16 appends a u16 code-unit-count prefix followed by UTF-16LE code
// units.
func (w *ByteWriter) StringU16(s string) {
	units := utf16.Encode([]rune(s))
	w.U16(uint16(len(units)))
	for _, u := range units {
		w.U16(u)
	}
}

// OptionalStringU8 appends a presence byte and, for non-empty absent
// semantics, the StringU8 payload. Following spec §4.A, a present-but-empty
// string still writes present=true with a zero-length payload; callers that
// want an absent value pass present=false explicitly via
// OptionalStringU8Presence.
func (w *ByteWriter) OptionalStringU8(s string) {
	w.Bool(true)
	w.StringU8(s)
}

// OptionalStringU8Presence appends an explicit presence flag.
func (w *ByteWriter) OptionalStringU8Presence(present bool, s string) {
	w.Bool(present)
	if present {
		w.StringU8(s)
	}
}

// OptionalStringU16 appends a presence byte and the StringU16 payload.
func (w *ByteWriter) OptionalStringU16(s string) {
	w.Bool(true)
	w.StringU16(s)
}

// OptionalStringU16Presence appends an explicit presence flag.
func (w *ByteWriter) OptionalStringU16Presence(present bool, s string) {
	w.Bool(present)
	if present {
		w.StringU16(s)
	}
}

// StringU8Padded appends text zero-padded to exactly size bytes; it fails
// without writing anything if text is longer than size (spec §8, "0-padded
// encode bound").
func (w *ByteWriter) StringU8Padded(text string, size uint32) error {
	raw := []byte(text)
	if uint32(len(raw)) > size {
		return newErr(ErrMalformed, "string longer than padded field size")
	}
	padded := make([]byte, size)
	copy(padded, raw)
	w.buf.Write(padded)
	return nil
}

// StringU16Padded appends text zero-padded to exactly sizeCodeUnits *2
// bytes.
func (w *ByteWriter) StringU16Padded(text string, sizeCodeUnits uint32) error {
	units := utf16.Encode([]rune(text))
	if uint32(len(units)) > sizeCodeUnits {
		return newErr(ErrMalformed, "string longer than padded field size")
	}
	padded := make([]byte, sizeCodeUnits*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(padded[i*2:], u)
	}
	w.buf.Write(padded)
	return nil
}

// StringU8Terminated appends text followed by a single NUL.
func (w *ByteWriter) StringU8Terminated(text string) {
	w.buf.WriteString(text)
	w.buf.WriteByte(0)
}

// Cauleb128 appends value using the minimal width-preserving encoding.
func (w *ByteWriter) Cauleb128(value uint64) {
	w.Cauleb128Width(value, cauleb128MinWidth(value))
}

// cauleb128MinWidth returns the minimum number of bytes cauleb128 needs to
// represent value.
func cauleb128MinWidth(value uint64) int {
	n := 1
	v := value >> 7
	for v > 0 {
		n++
		v >>= 7
	}
	return n
}

// Cauleb128Width appends value encoded to occupy exactly width bytes,
// padding with leading continuation bytes carrying zero payload bits (spec
// §4.A, "width-preserving encode").
func (w *ByteWriter) Cauleb128Width(value uint64, width int) {
	if width < 1 {
		width = 1
	}
	out := make([]byte, width)
	for i := width - 1; i >= 0; i-- {
		out[i] = byte(value & 0x7F)
		value >>= 7
		if i != width-1 {
			out[i] |= 0x80
		}
	}
	w.buf.Write(out)
}
