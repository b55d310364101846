// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "github.com/saferwall/twpack/log"

// MatchedCombat mirrors AnimTable's layout: i32 version + u32 entry count +
// rows, identified externally by pack location rather than a signature
// (spec §3/§6).
type MatchedCombat struct {
	Version int32  `json:"version"`
	Table   *Table `json:"table"`
}

// ReadMatchedCombat decodes a MatchedCombat body.
func ReadMatchedCombat(data []byte, schema *Schema, returnIncomplete bool, logger *log.Helper) (*MatchedCombat, error) {
	r := NewReader(data)
	version, err := r.I32()
	if err != nil {
		return nil, err
	}
	count, err := r.U32()
	if err != nil {
		return nil, err
	}

	def, err := schema.Get(MatchedCombatKind, version)
	if err != nil {
		if count == 0 {
			return nil, newErr(ErrTableEmptyWithNoDefinition, "no MatchedCombat definition and file is empty")
		}
		return nil, err
	}

	table, err := DecodeTable(r, def, count, returnIncomplete)
	if err != nil {
		return nil, err
	}
	if r.Pos() != r.Len() {
		logger.Warnf("matched_combat: %d trailing bytes after decode", r.Remaining())
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}
	return &MatchedCombat{Version: version, Table: table}, nil
}

// Save re-encodes a MatchedCombat (spec §6, "save").
func (m *MatchedCombat) Save() ([]byte, error) {
	w := NewWriter()
	w.I32(m.Version)
	w.U32(uint32(len(m.Table.Rows)))
	if err := EncodeTable(w, m.Table); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
