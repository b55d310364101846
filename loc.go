// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"github.com/saferwall/twpack/log"
)

// locByteOrderMark is the two raw bytes every Loc file opens with (spec §6).
var locByteOrderMark = [2]byte{0xFF, 0xFE}

const locPackedFileType = "LOC"
const locHeaderSize = 2 + 3 + 1 + 4 + 4

// LocFixedDefinition returns the fixed (key, text, tooltip) field list every
// Loc table uses, for callers that want to register it with a Schema
// without hand-writing the Definition (spec §3, "Loc file").
func LocFixedDefinition(version int32) Definition {
	return Definition{
		Version: version,
		Fields: []Field{
			{Name: "key", Type: Type{Kind: TypeStringU16}, IsKey: true, SortKey: 0},
			{Name: "text", Type: Type{Kind: TypeStringU16}, SortKey: 1},
			{Name: "tooltip", Type: Type{Kind: TypeBool}, SortKey: 2},
		},
	}
}

// Loc is a localisation table with its distinct fixed header (spec §3, §6).
type Loc struct {
	Version int32   `json:"version"`
	Table   *Table  `json:"table"`
}

// IsLoc reports whether data opens with the Loc signature.
func IsLoc(data []byte) bool {
	if len(data) < locHeaderSize {
		return false
	}
	return data[0] == locByteOrderMark[0] && data[1] == locByteOrderMark[1] &&
		string(data[2:5]) == locPackedFileType
}

// ReadLoc decodes a Loc file (spec §6: `FF FE` + "LOC" + 00 + i32 version +
// u32 entry count + rows).
func ReadLoc(data []byte, schema *Schema, returnIncomplete bool, logger *log.Helper) (*Loc, error) {
	if !IsLoc(data) {
		return nil, newErr(ErrNotThisKind, "missing Loc signature")
	}
	r := NewReader(data)
	if _, err := r.Bytes(5); err != nil { // FF FE 'L' 'O' 'C'
		return nil, err
	}
	if _, err := r.U8(); err != nil { // the always-zero 6th byte
		return nil, err
	}
	version, err := r.I32()
	if err != nil {
		return nil, err
	}
	count, err := r.U32()
	if err != nil {
		return nil, err
	}

	def, err := schema.Get(LocKind, version)
	if err != nil {
		if count == 0 {
			return nil, newErr(ErrTableEmptyWithNoDefinition, "no Loc definition and file is empty")
		}
		return nil, err
	}

	table, err := DecodeTable(r, def, count, returnIncomplete)
	if err != nil {
		return nil, err
	}
	if r.Pos() != r.Len() {
		logger.Warnf("loc: %d trailing bytes after decode", r.Remaining())
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}
	return &Loc{Version: version, Table: table}, nil
}

// Save re-encodes l to its on-disk byte-identical form when unedited (spec
// §6, "save").
func (l *Loc) Save() ([]byte, error) {
	w := NewWriter()
	w.RawBytes(locByteOrderMark[:])
	w.RawBytes([]byte(locPackedFileType))
	w.U8(0)
	w.I32(l.Version)
	w.U32(uint32(len(l.Table.Rows)))
	if err := EncodeTable(w, l.Table); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
