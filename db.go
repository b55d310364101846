// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"

	"github.com/saferwall/twpack/log"
)

// dbGUIDMarker precedes an optional 74-byte StringU16 GUID (spec §6).
var dbGUIDMarker = []byte{0xFD, 0xFE, 0xFC, 0xFF}

// dbVersionMarker precedes the i32 version field (spec §6).
var dbVersionMarker = []byte{0xFC, 0xFD, 0xFE, 0xFF}

// DB is a relational table file: an optional GUID, a version, a mystery
// bool, and the generic table body (spec §3, "DB file").
type DB struct {
	TableName   string `json:"table_name"`
	GUID        string `json:"guid,omitempty"`
	HasGUID     bool   `json:"has_guid"`
	Version     int32  `json:"version"`
	MysteryByte bool   `json:"mystery_byte"`
	Table       *Table `json:"table"`
}

// ReadDB decodes a DB file for tableName (spec §6: optional GUID marker +
// GUID, optional version marker + i32 version (else 0), bool mystery byte,
// u32 entry count, rows).
func ReadDB(data []byte, tableName string, schema *Schema, returnIncomplete bool, logger *log.Helper) (*DB, error) {
	r := NewReader(data)

	db := &DB{TableName: tableName}

	if peek, err := r.PeekBytes(4); err == nil && bytes.Equal(peek, dbGUIDMarker) {
		if _, err := r.Bytes(4); err != nil {
			return nil, err
		}
		guid, err := r.StringU16()
		if err != nil {
			return nil, err
		}
		db.GUID = guid
		db.HasGUID = true
	}

	version := int32(0)
	if peek, err := r.PeekBytes(4); err == nil && bytes.Equal(peek, dbVersionMarker) {
		if _, err := r.Bytes(4); err != nil {
			return nil, err
		}
		v, err := r.I32()
		if err != nil {
			return nil, err
		}
		version = v
	}
	db.Version = version

	mystery, err := r.Bool()
	if err != nil {
		return nil, err
	}
	db.MysteryByte = mystery

	count, err := r.U32()
	if err != nil {
		return nil, err
	}

	def, err := schema.Get(DBKind(tableName), version)
	if err != nil {
		if count == 0 {
			return nil, newErr(ErrTableEmptyWithNoDefinition, "no DB definition for "+tableName+" and file is empty")
		}
		return nil, err
	}

	table, err := DecodeTable(r, def, count, returnIncomplete)
	if err != nil {
		return nil, err
	}
	if r.Pos() != r.Len() {
		logger.Warnf("db %s: %d trailing bytes after decode", tableName, r.Remaining())
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}
	db.Table = table
	return db, nil
}

// Save re-encodes db, writing the GUID marker only when one was decoded; the
// version marker and version are always written, so a table decoded without
// a version marker gains one (spec §6, "save").
func (db *DB) Save() ([]byte, error) {
	w := NewWriter()
	if db.HasGUID {
		w.RawBytes(dbGUIDMarker)
		w.StringU16(db.GUID)
	}
	w.RawBytes(dbVersionMarker)
	w.I32(db.Version)
	w.Bool(db.MysteryByte)
	w.U32(uint32(len(db.Table.Rows)))
	if err := EncodeTable(w, db.Table); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
