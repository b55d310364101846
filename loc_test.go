// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bytes"
	"testing"
)

func locSeedBytes() []byte {
	return []byte{
		0xFF, 0xFE, 0x4C, 0x4F, 0x43, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00,
		0x03, 0x00, 0x6B, 0x00, 0x65, 0x00, 0x79, 0x00,
		0x04, 0x00, 0x74, 0x00, 0x65, 0x00, 0x78, 0x00, 0x74, 0x00,
		0x01,
	}
}

func TestLocSeedScenario(t *testing.T) {
	schema := NewSchema()
	schema.Add(&VersionedFile{Kind: LocKind, Definitions: []Definition{LocFixedDefinition(1)}})

	data := locSeedBytes()
	loc, err := ReadLoc(data, schema, false, nil)
	if err != nil {
		t.Fatal(err)
	}
	if loc.Version != 1 {
		t.Errorf("version = %d, want 1", loc.Version)
	}
	if len(loc.Table.Rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(loc.Table.Rows))
	}
	row := loc.Table.Rows[0]
	if row[0].StrV != "key" || row[1].StrV != "text" || row[2].BoolV != true {
		t.Errorf("row = %+v", row)
	}

	out, err := loc.Save()
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(out, data) {
		t.Errorf("save() = % x, want % x", out, data)
	}
}

func TestIsLoc(t *testing.T) {
	if !IsLoc(locSeedBytes()) {
		t.Error("IsLoc should accept the seed scenario bytes")
	}
	if IsLoc([]byte{0, 1, 2}) {
		t.Error("IsLoc should reject a short buffer")
	}
	if IsLoc([]byte("not a loc file at all......")) {
		t.Error("IsLoc should reject non-matching signature")
	}
}
