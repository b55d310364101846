// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "github.com/saferwall/twpack/log"

// AnimTable is a fixed-header table with no distinguishing signature; its
// kind is established externally by the caller (its location within a pack),
// per spec §3/§6.
type AnimTable struct {
	Version int32  `json:"version"`
	Table   *Table `json:"table"`
}

// ReadAnimTable decodes an AnimTable body: i32 version + u32 entry count +
// rows.
func ReadAnimTable(data []byte, schema *Schema, returnIncomplete bool, logger *log.Helper) (*AnimTable, error) {
	r := NewReader(data)
	version, err := r.I32()
	if err != nil {
		return nil, err
	}
	count, err := r.U32()
	if err != nil {
		return nil, err
	}

	def, err := schema.Get(AnimTableKind, version)
	if err != nil {
		if count == 0 {
			return nil, newErr(ErrTableEmptyWithNoDefinition, "no AnimTable definition and file is empty")
		}
		return nil, err
	}

	table, err := DecodeTable(r, def, count, returnIncomplete)
	if err != nil {
		return nil, err
	}
	if r.Pos() != r.Len() {
		logger.Warnf("animtable: %d trailing bytes after decode", r.Remaining())
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}
	return &AnimTable{Version: version, Table: table}, nil
}

// Save re-encodes an AnimTable (spec §6, "save").
func (a *AnimTable) Save() ([]byte, error) {
	w := NewWriter()
	w.I32(a.Version)
	w.U32(uint32(len(a.Table.Rows)))
	if err := EncodeTable(w, a.Table); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
