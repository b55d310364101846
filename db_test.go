// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"testing"
)

func TestDBSeedScenarioNoGUID(t *testing.T) {
	data := []byte{0xFC, 0xFD, 0xFE, 0xFF, 0x02, 0x00, 0x00, 0x00, 0x01, 0x01, 0x00, 0x00, 0x00, 0x00}

	def := Definition{
		Version: 2,
		Fields:  []Field{{Name: "flag", Type: Type{Kind: TypeBool}}},
	}
	schema := NewSchema()
	schema.Add(&VersionedFile{Kind: DBKind("units_tables"), Definitions: []Definition{def}})

	db, err := ReadDB(data, "units_tables", schema, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if db.HasGUID {
		t.Error("HasGUID should be false")
	}
	if db.Version != 2 {
		t.Errorf("version = %d, want 2", db.Version)
	}
	if !db.MysteryByte {
		t.Error("mystery byte should be true")
	}
	if len(db.Table.Rows) != 1 || db.Table.Rows[0][0].BoolV != false {
		t.Errorf("rows = %v", db.Table.Rows)
	}

	out, err := db.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() = % x, want % x", out, data)
	}
}

func TestDBWithGUIDRoundTrip(t *testing.T) {
	def := Definition{
		Version: 1,
		Fields:  []Field{{Name: "amount", Type: Type{Kind: TypeI32}}},
	}
	schema := NewSchema()
	schema.Add(&VersionedFile{Kind: DBKind("t"), Definitions: []Definition{def}})

	w := NewWriter()
	w.RawBytes(dbGUIDMarker)
	w.StringU16("11111111-2222-3333-4444-555555555555")
	w.RawBytes(dbVersionMarker)
	w.I32(1)
	w.Bool(true)
	w.U32(1)
	w.I32(42)

	db, err := ReadDB(w.Bytes(), "t", schema, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if !db.HasGUID || db.GUID != "11111111-2222-3333-4444-555555555555" {
		t.Errorf("GUID = %q, HasGUID = %v", db.GUID, db.HasGUID)
	}

	out, err := db.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, w.Bytes()) {
		t.Errorf("save() round trip mismatch")
	}
}

func TestDBTableEmptyWithNoDefinition(t *testing.T) {
	data := []byte{0xFC, 0xFD, 0xFE, 0xFF, 0x09, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	schema := NewSchema()
	_, err := ReadDB(data, "unknown_table", schema, false, nil)
	ce, ok := err.(*CodecError)
	if !ok || ce.Kind != ErrTableEmptyWithNoDefinition {
		t.Fatalf("err = %v, want TableEmptyWithNoDefinition", err)
	}
}
