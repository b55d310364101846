// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"fmt"

	"github.com/saferwall/twpack/log"
)

// esfSignatureCAAB is the only ESF signature this decoder accepts; CEAB and
// CFAB documents are recognised but rejected with ErrUnsupportedSignature
// (spec §4.E).
var esfSignatureCAAB = []byte{0xCA, 0xAB, 0x00, 0x00}

// Marker bytes dispatched by decodeEsfNode/encodeEsfNode. The numeric table
// is normative (spec §4.E): changing any value changes what bytes on disk
// mean.
const (
	esfInvalid = 0x00

	esfBool    = 0x01
	esfInt8    = 0x02
	esfInt16   = 0x03
	esfInt32   = 0x04
	esfInt64   = 0x05
	esfUint8   = 0x06
	esfUint16  = 0x07
	esfUint32  = 0x08
	esfUint64  = 0x09
	esfSingle  = 0x0a
	esfDouble  = 0x0b
	esfCoord2D = 0x0c
	esfCoord3D = 0x0d
	esfUTF16   = 0x0e
	esfASCII   = 0x0f
	esfAngle   = 0x10

	esfASCIIW21  = 0x21
	esfUnknown23 = 0x23
	esfUnknown24 = 0x24
	esfASCIIW25  = 0x25
	esfUnknown26 = 0x26

	esfBlockBit = 0x40

	esfBoolArray    = 0x41
	esfInt8Array    = 0x42
	esfInt16Array   = 0x43
	esfInt32Array   = 0x44
	esfInt64Array   = 0x45
	esfUint8Array   = 0x46
	esfUint16Array  = 0x47
	esfUint32Array  = 0x48
	esfUint64Array  = 0x49
	esfSingleArray  = 0x4a
	esfDoubleArray  = 0x4b
	esfCoord2DArray = 0x4c
	esfCoord3DArray = 0x4d
	esfUTF16Array   = 0x4e
	esfASCIIArray   = 0x4f
	esfAngleArray   = 0x50

	esfBoolTrueArray     = 0x52
	esfBoolFalseArray    = 0x53
	esfUintZeroArray     = 0x54
	esfUintOneArray      = 0x55
	esfUint32ByteArray   = 0x56
	esfUint32ShortArray  = 0x57
	esfUint32Bit24Array  = 0x58
	esfInt32ZeroArray    = 0x59
	esfInt32ByteArray    = 0x5a
	esfInt32ShortArray   = 0x5b
	esfInt32Bit24Array   = 0x5c
	esfSingleZeroArray   = 0x5d

	esfRecord      = 0x80
	esfRecordBlock = 0x81

	esfBoolTrue    = 0x12
	esfBoolFalse   = 0x13
	esfUint32Zero  = 0x14
	esfUint32One   = 0x15
	esfUint32Byte  = 0x16
	esfUint32Short = 0x17
	esfUint32Bit24 = 0x18
	esfInt32Zero   = 0x19
	esfInt32Byte   = 0x1a
	esfInt32Short  = 0x1b
	esfInt32Bit24  = 0x1c
	esfSingleZero  = 0x1d

	esfLongRecord      = 0xa0
	esfLongRecordBlock = 0xe0
)

// EsfNodeKind tags the sum of node shapes an ESF document's tree can hold
// (spec §4.E, "≈60 kinds").
type EsfNodeKind int

const (
	EsfBool EsfNodeKind = iota
	EsfInt8
	EsfInt16
	EsfInt32
	EsfInt64
	EsfUint8
	EsfUint16
	EsfUint32
	EsfUint64
	EsfSingle
	EsfCoord2D
	EsfCoord3D
	EsfUTF16
	EsfASCII
	EsfASCIIW21
	EsfASCIIW25
	EsfUnknown23
	EsfBoolArray
	EsfInt8Array
	EsfInt16Array
	EsfInt32Array
	EsfInt64Array
	EsfUint8Array
	EsfUint16Array
	EsfUint32Array
	EsfUint64Array
	EsfSingleArray
	EsfCoord2DArray
	EsfCoord3DArray
	EsfUTF16Array
	EsfASCIIArray
	EsfRecordNode
	EsfRecordBlockNode
	EsfBoolTrue
	EsfBoolFalse
	EsfUint32Zero
	EsfUint32One
	EsfUint32Byte
	EsfUint32Short
	EsfUint32Bit24
	EsfInt32Zero
	EsfInt32Byte
	EsfInt32Short
	EsfInt32Bit24
	EsfSingleZero
)

// Coord2D is a 2-float coordinate node payload.
type Coord2D struct{ X, Y float32 }

// Coord3D is a 3-float coordinate node payload.
type Coord3D struct{ X, Y, Z float32 }

// EsfRecord holds a Record's child nodes plus the cauleb128 width captured
// on decode (spec §4.E, "framing preservation invariant"). OffsetLen
// is the number of bytes the body-length field occupied on disk; encoding
// reuses it so an unedited document re-encodes byte-identical.
type EsfRecord struct {
	Version   uint8
	Name      string
	Children  []*EsfNode
	OffsetLen uint32
}

// EsfRecordBlockGroup is one child group of a RecordBlock: a cauleb128
// size field (whose width is OffsetLen) followed by inline children.
type EsfRecordBlockGroup struct {
	OffsetLen uint32
	Children  []*EsfNode
}

// EsfRecordBlock is a RecordBlock node: a list of child groups plus the
// widths of its two framing cauleb128 fields (body length, group count).
type EsfRecordBlock struct {
	Version    uint8
	Name       string
	Groups     []EsfRecordBlockGroup
	OffsetLen  uint32
	OffsetLen2 uint32
}

// EsfNode is one node of an ESF document's tree, tagged by Kind. Only the
// fields relevant to Kind are populated.
type EsfNode struct {
	Kind EsfNodeKind

	BoolV bool
	I8V   int8
	I16V  int16
	I32V  int32
	I64V  int64
	U8V   uint8
	U16V  uint16
	U32V  uint32
	U64V  uint64
	F32V  float32

	Coord2DV Coord2D
	Coord3DV Coord3D

	// StrV holds the payload for UTF16/ASCII/ASCIIW21/ASCIIW25 nodes: all
	// four carry a u32 string-pool index on disk (spec §4.E).
	StrV string

	BoolArray    []bool
	I8Array      []int8
	I16Array     []int16
	I32Array     []int32
	I64Array     []int64
	U8Array      []uint8
	U16Array     []uint16
	U32Array     []uint32
	U64Array     []uint64
	F32Array     []float32
	Coord2DArray []Coord2D
	Coord3DArray []Coord3D
	StrArray     []string

	Record      *EsfRecord
	RecordBlock *EsfRecordBlock
}

// EsfDocument is a full CAAB document (spec §4.E, "{ signature, unknown_1,
// creation_date, root_node, unknown_2 }").
type EsfDocument struct {
	UnknownOne   uint32
	CreationDate uint32
	UnknownTwo   uint32
	Root         *EsfNode
}

// IsESF reports whether data opens with the CAAB signature this decoder
// supports. CEAB/CFAB documents are recognised by signature but rejected by
// ReadESF, matching the reference decoder's CAAB-only coverage.
func IsESF(data []byte) bool {
	return len(data) >= 4 && bytes.Equal(data[:4], esfSignatureCAAB)
}

// ReadESF decodes a CAAB document: header, root node tree, then the
// record-name and string pools at record_names_offset (spec §4.E).
func ReadESF(data []byte, logger *log.Helper) (*EsfDocument, error) {
	r := NewReader(data)
	sig, err := r.Bytes(4)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(sig, esfSignatureCAAB) {
		return nil, newErr(ErrUnsupportedSignature, "ESF signature is not CAAB")
	}

	unknown1, err := r.U32()
	if err != nil {
		return nil, err
	}
	creationDate, err := r.U32()
	if err != nil {
		return nil, err
	}
	recordNamesOffset, err := r.U32()
	if err != nil {
		return nil, err
	}
	nodesOffset := r.Pos()

	if err := r.Seek(recordNamesOffset); err != nil {
		return nil, err
	}

	nameCount, err := r.U16()
	if err != nil {
		return nil, err
	}
	recordNames := make([]string, nameCount)
	for i := range recordNames {
		recordNames[i], err = r.StringU8()
		if err != nil {
			return nil, err
		}
	}

	unknown2, err := r.U32()
	if err != nil {
		return nil, err
	}
	stringCount, err := r.U32()
	if err != nil {
		return nil, err
	}
	strings := make(map[uint32]string, stringCount)
	for i := uint32(0); i < stringCount; i++ {
		name, err := r.StringU8()
		if err != nil {
			return nil, err
		}
		index, err := r.U32()
		if err != nil {
			return nil, err
		}
		strings[index] = name
	}

	if r.Pos() != r.Len() {
		logger.Warnf("esf: %d trailing bytes after string pools", r.Remaining())
		return nil, newErr(ErrIncompleteDecoding, "esf pools did not consume to end of file")
	}

	if err := r.Seek(nodesOffset); err != nil {
		return nil, err
	}
	root, err := decodeEsfNode(r, true, recordNames, strings)
	if err != nil {
		return nil, err
	}
	if r.Pos() != recordNamesOffset {
		return nil, newErr(ErrIncompleteDecoding, "esf root node did not end at record_names_offset")
	}

	return &EsfDocument{
		UnknownOne:   unknown1,
		CreationDate: creationDate,
		UnknownTwo:   unknown2,
		Root:         root,
	}, nil
}

// decodeEsfNode reads one node starting at the current position, dispatching
// on its marker byte (spec §4.E, "Node decode dispatches on a single byte").
func decodeEsfNode(r *ByteReader, isRoot bool, recordNames []string, strings map[uint32]string) (*EsfNode, error) {
	marker, err := r.U8()
	if err != nil {
		return nil, err
	}

	switch marker {
	case esfInvalid:
		return nil, newErr(ErrUnsupportedDataType, "esf marker 0x00 is invalid")
	case esfBool:
		v, err := r.Bool()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfBool, BoolV: v}, nil
	case esfInt8:
		v, err := r.I8()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt8, I8V: v}, nil
	case esfInt16:
		v, err := r.I16()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt16, I16V: v}, nil
	case esfInt32:
		v, err := r.I32()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt32, I32V: v}, nil
	case esfInt64:
		v, err := r.I64()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt64, I64V: v}, nil
	case esfUint8:
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint8, U8V: v}, nil
	case esfUint16:
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint16, U16V: v}, nil
	case esfUint32:
		v, err := r.U32()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint32, U32V: v}, nil
	case esfUint64:
		v, err := r.U64()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint64, U64V: v}, nil
	case esfSingle:
		v, err := r.F32()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfSingle, F32V: v}, nil
	case esfCoord2D:
		x, err := r.F32()
		if err != nil {
			return nil, err
		}
		y, err := r.F32()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfCoord2D, Coord2DV: Coord2D{X: x, Y: y}}, nil
	case esfCoord3D:
		x, err := r.F32()
		if err != nil {
			return nil, err
		}
		y, err := r.F32()
		if err != nil {
			return nil, err
		}
		z, err := r.F32()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfCoord3D, Coord3DV: Coord3D{X: x, Y: y, Z: z}}, nil
	case esfUTF16, esfASCII, esfASCIIW21, esfASCIIW25:
		s, err := decodeEsfPooledString(r, strings)
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: esfStringKindForMarker(marker), StrV: s}, nil
	case esfUnknown23:
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUnknown23, U8V: v}, nil
	case esfBoolArray:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []bool
		for r.Pos() < end {
			v, err := r.Bool()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfBoolArray, BoolArray: out}, nil
	case esfInt8Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []int8
		for r.Pos() < end {
			v, err := r.I8()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfInt8Array, I8Array: out}, nil
	case esfInt16Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []int16
		for r.Pos() < end {
			v, err := r.I16()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfInt16Array, I16Array: out}, nil
	case esfInt32Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []int32
		for r.Pos() < end {
			v, err := r.I32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfInt32Array, I32Array: out}, nil
	case esfInt64Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []int64
		for r.Pos() < end {
			v, err := r.I64()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfInt64Array, I64Array: out}, nil
	case esfUint8Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []uint8
		for r.Pos() < end {
			v, err := r.U8()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfUint8Array, U8Array: out}, nil
	case esfUint16Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []uint16
		for r.Pos() < end {
			v, err := r.U16()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfUint16Array, U16Array: out}, nil
	case esfUint32Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []uint32
		for r.Pos() < end {
			v, err := r.U32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfUint32Array, U32Array: out}, nil
	case esfUint64Array:
		size, _, err := r.Cauleb128()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + uint32(size)
		var out []uint64
		for r.Pos() < end {
			v, err := r.U64()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfUint64Array, U64Array: out}, nil
	case esfSingleArray:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []float32
		for r.Pos() < end {
			v, err := r.F32()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return &EsfNode{Kind: EsfSingleArray, F32Array: out}, nil
	case esfCoord2DArray:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []Coord2D
		for r.Pos() < end {
			x, err := r.F32()
			if err != nil {
				return nil, err
			}
			y, err := r.F32()
			if err != nil {
				return nil, err
			}
			out = append(out, Coord2D{X: x, Y: y})
		}
		return &EsfNode{Kind: EsfCoord2DArray, Coord2DArray: out}, nil
	case esfCoord3DArray:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []Coord3D
		for r.Pos() < end {
			x, err := r.F32()
			if err != nil {
				return nil, err
			}
			y, err := r.F32()
			if err != nil {
				return nil, err
			}
			z, err := r.F32()
			if err != nil {
				return nil, err
			}
			out = append(out, Coord3D{X: x, Y: y, Z: z})
		}
		return &EsfNode{Kind: EsfCoord3DArray, Coord3DArray: out}, nil
	case esfUTF16Array:
		size, err := r.U32()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + size
		var out []string
		for r.Pos() < end {
			s, err := r.StringU16()
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return &EsfNode{Kind: EsfUTF16Array, StrArray: out}, nil
	case esfASCIIArray:
		size, _, err := r.Cauleb128()
		if err != nil {
			return nil, err
		}
		end := r.Pos() + uint32(size)
		var out []string
		for r.Pos() < end {
			s, err := decodeEsfPooledString(r, strings)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return &EsfNode{Kind: EsfASCIIArray, StrArray: out}, nil
	case esfBoolTrue:
		return &EsfNode{Kind: EsfBoolTrue, BoolV: true}, nil
	case esfBoolFalse:
		return &EsfNode{Kind: EsfBoolFalse, BoolV: false}, nil
	case esfUint32Zero:
		return &EsfNode{Kind: EsfUint32Zero}, nil
	case esfUint32One:
		return &EsfNode{Kind: EsfUint32One, U32V: 1}, nil
	case esfUint32Byte:
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint32Byte, U32V: uint32(v)}, nil
	case esfUint32Short:
		v, err := r.U16()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint32Short, U32V: uint32(v)}, nil
	case esfUint32Bit24:
		v, err := r.U24()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfUint32Bit24, U32V: v}, nil
	case esfInt32Zero:
		return &EsfNode{Kind: EsfInt32Zero}, nil
	case esfInt32Byte:
		v, err := r.I8()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt32Byte, I32V: int32(v)}, nil
	case esfInt32Short:
		v, err := r.I16()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt32Short, I32V: int32(v)}, nil
	case esfInt32Bit24:
		v, err := r.I24()
		if err != nil {
			return nil, err
		}
		return &EsfNode{Kind: EsfInt32Bit24, I32V: v}, nil
	case esfSingleZero:
		return &EsfNode{Kind: EsfSingleZero}, nil

	// Listed in the marker table but never implemented by any known
	// producer; fail loudly rather than silently drop the node (spec §4.E
	// Open Questions).
	case esfDouble, esfAngle, esfUnknown24, esfUnknown26,
		esfDoubleArray, esfAngleArray,
		esfBoolTrueArray, esfBoolFalseArray, esfUintZeroArray, esfUintOneArray,
		esfUint32ByteArray, esfUint32ShortArray, esfUint32Bit24Array,
		esfInt32ZeroArray, esfInt32ByteArray, esfInt32ShortArray, esfInt32Bit24Array,
		esfSingleZeroArray, esfLongRecord, esfLongRecordBlock:
		return nil, newErr(ErrUnsupportedDataType, fmt.Sprintf("esf marker %#x is not implemented", marker))
	}

	hasRecordBit := marker&esfRecord != 0
	hasBlockBit := marker&esfBlockBit != 0

	switch {
	case hasRecordBit && !hasBlockBit:
		return decodeEsfRecord(r, marker, isRoot, recordNames, strings)
	case hasRecordBit && hasBlockBit:
		return decodeEsfRecordBlock(r, marker, recordNames, strings)
	default:
		return nil, newErr(ErrUnsupportedDataType, fmt.Sprintf("esf marker %#x is not supported", marker))
	}
}

func decodeEsfPooledString(r *ByteReader, strings map[uint32]string) (string, error) {
	idx, err := r.U32()
	if err != nil {
		return "", err
	}
	s, ok := strings[idx]
	if !ok {
		return "", newErr(ErrStringNotInPool, fmt.Sprintf("string index %d not found in pool", idx))
	}
	return s, nil
}

func esfStringKindForMarker(marker byte) EsfNodeKind {
	switch marker {
	case esfUTF16:
		return EsfUTF16
	case esfASCIIW21:
		return EsfASCIIW21
	case esfASCIIW25:
		return EsfASCIIW25
	default:
		return EsfASCII
	}
}

// decodeEsfRecord reads a Record node's (version, name_index) header then
// its cauleb128-framed children (spec §4.E). The root node always spells out
// name_index/version in full bytes; every other Record packs them into the
// marker byte plus one trailing byte.
func decodeEsfRecord(r *ByteReader, marker byte, isRoot bool, recordNames []string, strings map[uint32]string) (*EsfNode, error) {
	var version uint8
	var nameIndex uint16
	if isRoot {
		idx, err := r.U16()
		if err != nil {
			return nil, err
		}
		v, err := r.U8()
		if err != nil {
			return nil, err
		}
		nameIndex, version = idx, v
	} else {
		low, err := r.U8()
		if err != nil {
			return nil, err
		}
		version = (marker & 0x1F) >> 1
		nameIndex = (uint16(marker&0x01) << 8) | uint16(low)
	}

	if int(nameIndex) >= len(recordNames) {
		return nil, newErr(ErrRecordNameNotInPool, fmt.Sprintf("record name index %d out of range", nameIndex))
	}
	name := recordNames[nameIndex]

	before := r.Pos()
	bodyLen, n, err := r.Cauleb128()
	if err != nil {
		return nil, err
	}
	offsetLen := uint32(n)
	end := before + uint32(n) + uint32(bodyLen)

	var children []*EsfNode
	for r.Pos() < end {
		child, err := decodeEsfNode(r, false, recordNames, strings)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}

	return &EsfNode{Kind: EsfRecordNode, Record: &EsfRecord{
		Version:   version,
		Name:      name,
		Children:  children,
		OffsetLen: offsetLen,
	}}, nil
}

// decodeEsfRecordBlock reads a RecordBlock node: header, a framed body
// length, a framed group count, then that many cauleb128-framed child groups
// (spec §4.E).
func decodeEsfRecordBlock(r *ByteReader, marker byte, recordNames []string, strings map[uint32]string) (*EsfNode, error) {
	low, err := r.U8()
	if err != nil {
		return nil, err
	}
	version := (marker & 0x1F) >> 1
	nameIndex := (uint16(marker&0x01) << 8) | uint16(low)

	if int(nameIndex) >= len(recordNames) {
		return nil, newErr(ErrRecordNameNotInPool, fmt.Sprintf("record name index %d out of range", nameIndex))
	}
	name := recordNames[nameIndex]

	// Body length is re-derived on encode from the actual group bytes; only
	// its framing width (n1) needs to survive round-trip.
	_, n1, err := r.Cauleb128()
	if err != nil {
		return nil, err
	}
	offsetLen := uint32(n1)

	count, n2, err := r.Cauleb128()
	if err != nil {
		return nil, err
	}
	offsetLen2 := uint32(n2)

	var groups []EsfRecordBlockGroup
	for i := uint64(0); i < count; i++ {
		groupBefore := r.Pos()
		size, n3, err := r.Cauleb128()
		if err != nil {
			return nil, err
		}
		end := groupBefore + uint32(n3) + uint32(size)

		var group []*EsfNode
		for r.Pos() < end {
			child, err := decodeEsfNode(r, false, recordNames, strings)
			if err != nil {
				return nil, err
			}
			group = append(group, child)
		}
		groups = append(groups, EsfRecordBlockGroup{OffsetLen: uint32(n3), Children: group})
	}

	return &EsfNode{Kind: EsfRecordBlockNode, RecordBlock: &EsfRecordBlock{
		Version:    version,
		Name:       name,
		Groups:     groups,
		OffsetLen:  offsetLen,
		OffsetLen2: offsetLen2,
	}}, nil
}

// Save re-encodes d. Pools are collected by walking the tree once (record
// names and strings in first-seen order), nodes are encoded against those
// pools, then the pools themselves are appended (spec §4.E, "Encode walks
// the tree twice").
func (d *EsfDocument) Save() ([]byte, error) {
	var recordNames, strs []string
	collectEsfPools(d.Root, &recordNames, &strs)

	nodesBuf, err := encodeEsfNode(d.Root, true, recordNames, strs)
	if err != nil {
		return nil, err
	}

	w := NewWriter()
	w.RawBytes(esfSignatureCAAB)
	w.U32(d.UnknownOne)
	w.U32(d.CreationDate)
	w.U32(4 + 4 + 4 + 4 + uint32(len(nodesBuf)))
	w.RawBytes(nodesBuf)

	w.U16(uint16(len(recordNames)))
	for _, name := range recordNames {
		w.StringU8(name)
	}

	w.U32(d.UnknownTwo)
	w.U32(uint32(len(strs)))
	for i, s := range strs {
		w.StringU8(s)
		w.U32(uint32(i))
	}

	return w.Bytes(), nil
}

func collectEsfPools(n *EsfNode, recordNames, strs *[]string) {
	if n == nil {
		return
	}
	switch n.Kind {
	case EsfUTF16, EsfASCII, EsfASCIIW21, EsfASCIIW25:
		appendUniqueString(strs, n.StrV)
	case EsfUTF16Array, EsfASCIIArray:
		for _, s := range n.StrArray {
			appendUniqueString(strs, s)
		}
	case EsfRecordNode:
		appendUniqueString(recordNames, n.Record.Name)
		for _, c := range n.Record.Children {
			collectEsfPools(c, recordNames, strs)
		}
	case EsfRecordBlockNode:
		appendUniqueString(recordNames, n.RecordBlock.Name)
		for _, g := range n.RecordBlock.Groups {
			for _, c := range g.Children {
				collectEsfPools(c, recordNames, strs)
			}
		}
	}
}

func appendUniqueString(list *[]string, s string) {
	for _, existing := range *list {
		if existing == s {
			return
		}
	}
	*list = append(*list, s)
}

func indexOfString(list []string, s string) int {
	for i, x := range list {
		if x == s {
			return i
		}
	}
	return -1
}

// encodeEsfNode mirrors decodeEsfNode's dispatch in reverse.
func encodeEsfNode(n *EsfNode, isRoot bool, recordNames, strs []string) ([]byte, error) {
	w := NewWriter()
	switch n.Kind {
	case EsfBool:
		w.U8(esfBool)
		w.Bool(n.BoolV)
	case EsfInt8:
		w.U8(esfInt8)
		w.I8(n.I8V)
	case EsfInt16:
		w.U8(esfInt16)
		w.I16(n.I16V)
	case EsfInt32:
		w.U8(esfInt32)
		w.I32(n.I32V)
	case EsfInt64:
		w.U8(esfInt64)
		w.I64(n.I64V)
	case EsfUint8:
		w.U8(esfUint8)
		w.U8(n.U8V)
	case EsfUint16:
		w.U8(esfUint16)
		w.U16(n.U16V)
	case EsfUint32:
		w.U8(esfUint32)
		w.U32(n.U32V)
	case EsfUint64:
		w.U8(esfUint64)
		w.U64(n.U64V)
	case EsfSingle:
		w.U8(esfSingle)
		w.F32(n.F32V)
	case EsfCoord2D:
		w.U8(esfCoord2D)
		w.F32(n.Coord2DV.X)
		w.F32(n.Coord2DV.Y)
	case EsfCoord3D:
		w.U8(esfCoord3D)
		w.F32(n.Coord3DV.X)
		w.F32(n.Coord3DV.Y)
		w.F32(n.Coord3DV.Z)
	case EsfUTF16, EsfASCII, EsfASCIIW21, EsfASCIIW25:
		marker, err := esfMarkerForStringKind(n.Kind)
		if err != nil {
			return nil, err
		}
		idx := indexOfString(strs, n.StrV)
		if idx < 0 {
			return nil, newErr(ErrStringNotInPool, "esf string missing from pool at encode time")
		}
		w.U8(marker)
		w.U32(uint32(idx))
	case EsfUnknown23:
		w.U8(esfUnknown23)
		w.U8(n.U8V)
	case EsfBoolArray:
		var body ByteWriter
		for _, v := range n.BoolArray {
			body.Bool(v)
		}
		w.U8(esfBoolArray)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfInt8Array:
		var body ByteWriter
		for _, v := range n.I8Array {
			body.I8(v)
		}
		w.U8(esfInt8Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfInt16Array:
		var body ByteWriter
		for _, v := range n.I16Array {
			body.I16(v)
		}
		w.U8(esfInt16Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfInt32Array:
		var body ByteWriter
		for _, v := range n.I32Array {
			body.I32(v)
		}
		w.U8(esfInt32Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfInt64Array:
		var body ByteWriter
		for _, v := range n.I64Array {
			body.I64(v)
		}
		w.U8(esfInt64Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfUint8Array:
		var body ByteWriter
		for _, v := range n.U8Array {
			body.U8(v)
		}
		w.U8(esfUint8Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfUint16Array:
		var body ByteWriter
		for _, v := range n.U16Array {
			body.U16(v)
		}
		w.U8(esfUint16Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfUint32Array:
		var body ByteWriter
		for _, v := range n.U32Array {
			body.U32(v)
		}
		w.U8(esfUint32Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfUint64Array:
		var body ByteWriter
		for _, v := range n.U64Array {
			body.U64(v)
		}
		w.U8(esfUint64Array)
		w.Cauleb128(uint64(body.Len()))
		w.RawBytes(body.Bytes())
	case EsfSingleArray:
		var body ByteWriter
		for _, v := range n.F32Array {
			body.F32(v)
		}
		w.U8(esfSingleArray)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfCoord2DArray:
		var body ByteWriter
		for _, v := range n.Coord2DArray {
			body.F32(v.X)
			body.F32(v.Y)
		}
		w.U8(esfCoord2DArray)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfCoord3DArray:
		var body ByteWriter
		for _, v := range n.Coord3DArray {
			body.F32(v.X)
			body.F32(v.Y)
			body.F32(v.Z)
		}
		w.U8(esfCoord3DArray)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfUTF16Array:
		var body ByteWriter
		for _, s := range n.StrArray {
			body.StringU16(s)
		}
		w.U8(esfUTF16Array)
		w.U32(body.Len())
		w.RawBytes(body.Bytes())
	case EsfASCIIArray:
		var body ByteWriter
		for _, s := range n.StrArray {
			idx := indexOfString(strs, s)
			if idx < 0 {
				return nil, newErr(ErrStringNotInPool, "esf string missing from pool at encode time")
			}
			body.U32(uint32(idx))
		}
		w.U8(esfASCIIArray)
		w.Cauleb128(uint64(body.Len()))
		w.RawBytes(body.Bytes())
	case EsfRecordNode:
		return encodeEsfRecord(n.Record, isRoot, recordNames, strs)
	case EsfRecordBlockNode:
		return encodeEsfRecordBlock(n.RecordBlock, recordNames, strs)
	case EsfBoolTrue:
		w.U8(esfBoolTrue)
	case EsfBoolFalse:
		w.U8(esfBoolFalse)
	case EsfUint32Zero:
		w.U8(esfUint32Zero)
	case EsfUint32One:
		w.U8(esfUint32One)
	case EsfUint32Byte:
		w.U8(esfUint32Byte)
		w.U8(uint8(n.U32V))
	case EsfUint32Short:
		w.U8(esfUint32Short)
		w.U16(uint16(n.U32V))
	case EsfUint32Bit24:
		w.U8(esfUint32Bit24)
		w.U24(n.U32V)
	case EsfInt32Zero:
		w.U8(esfInt32Zero)
	case EsfInt32Byte:
		w.U8(esfInt32Byte)
		w.I8(int8(n.I32V))
	case EsfInt32Short:
		w.U8(esfInt32Short)
		w.I16(int16(n.I32V))
	case EsfInt32Bit24:
		w.U8(esfInt32Bit24)
		w.I24(n.I32V)
	case EsfSingleZero:
		w.U8(esfSingleZero)
	default:
		return nil, newErr(ErrUnsupportedDataType, fmt.Sprintf("esf node kind %d cannot be encoded", n.Kind))
	}
	return w.Bytes(), nil
}

func esfMarkerForStringKind(kind EsfNodeKind) (byte, error) {
	switch kind {
	case EsfUTF16:
		return esfUTF16, nil
	case EsfASCII:
		return esfASCII, nil
	case EsfASCIIW21:
		return esfASCIIW21, nil
	case EsfASCIIW25:
		return esfASCIIW25, nil
	default:
		return 0, newErr(ErrUnsupportedDataType, "not a pooled-string esf node kind")
	}
}

// encodeEsfRecord mirrors decodeEsfRecord: full-byte header for the root
// node, packed marker+byte header otherwise, then a width-preserving
// cauleb128 body length (spec §4.E, "framing preservation invariant").
func encodeEsfRecord(rec *EsfRecord, isRoot bool, recordNames, strs []string) ([]byte, error) {
	nameIdx := indexOfString(recordNames, rec.Name)
	if nameIdx < 0 {
		return nil, newErr(ErrRecordNameNotInPool, "esf record name missing from pool at encode time")
	}

	w := NewWriter()
	if isRoot {
		w.U8(esfRecord)
		w.U16(uint16(nameIdx))
		w.U8(rec.Version)
	} else {
		info := uint16(rec.Version)<<9 | uint16(nameIdx) | uint16(esfRecord)<<8
		w.U8(byte(info >> 8))
		w.U8(byte(info))
	}

	var childBuf ByteWriter
	for _, c := range rec.Children {
		b, err := encodeEsfNode(c, false, recordNames, strs)
		if err != nil {
			return nil, err
		}
		childBuf.RawBytes(b)
	}

	width := widthOrMinimum(rec.OffsetLen, uint64(childBuf.Len()))
	w.Cauleb128Width(uint64(childBuf.Len()), width)
	w.RawBytes(childBuf.Bytes())

	return w.Bytes(), nil
}

// encodeEsfRecordBlock mirrors decodeEsfRecordBlock: packed marker+byte
// header, then the body length and group count framing fields, then each
// group framed by its own cauleb128 size.
func encodeEsfRecordBlock(rb *EsfRecordBlock, recordNames, strs []string) ([]byte, error) {
	nameIdx := indexOfString(recordNames, rb.Name)
	if nameIdx < 0 {
		return nil, newErr(ErrRecordNameNotInPool, "esf record name missing from pool at encode time")
	}

	w := NewWriter()
	info := uint16(rb.Version)<<9 | uint16(nameIdx) | uint16(esfBlockBit)<<8 | uint16(esfRecord)<<8
	w.U8(byte(info >> 8))
	w.U8(byte(info))

	var childBuf ByteWriter
	for _, g := range rb.Groups {
		var groupBuf ByteWriter
		for _, c := range g.Children {
			b, err := encodeEsfNode(c, false, recordNames, strs)
			if err != nil {
				return nil, err
			}
			groupBuf.RawBytes(b)
		}
		groupWidth := widthOrMinimum(g.OffsetLen, uint64(groupBuf.Len()))
		childBuf.Cauleb128Width(uint64(groupBuf.Len()), groupWidth)
		childBuf.RawBytes(groupBuf.Bytes())
	}

	bodyWidth := widthOrMinimum(rb.OffsetLen, uint64(childBuf.Len()))
	w.Cauleb128Width(uint64(childBuf.Len()), bodyWidth)

	countWidth := widthOrMinimum(rb.OffsetLen2, uint64(len(rb.Groups)))
	w.Cauleb128Width(uint64(len(rb.Groups)), countWidth)

	w.RawBytes(childBuf.Bytes())

	return w.Bytes(), nil
}

// widthOrMinimum returns captured as the cauleb128 width to use, falling
// back to the minimal width needed for value when captured is too small to
// hold it (e.g. a hand-built node with no decode-time framing recorded).
func widthOrMinimum(captured uint32, value uint64) int {
	min := cauleb128MinWidth(value)
	if captured > uint32(min) {
		return int(captured)
	}
	return min
}
