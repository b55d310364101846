// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"strings"
	"testing"
)

func sampleDBDefinition() Definition {
	return Definition{
		Version: 3,
		Fields: []Field{
			{Name: "key", Type: Type{Kind: TypeStringU8}, IsKey: true, SortKey: 0},
			{Name: "amount", Type: Type{Kind: TypeI32}, SortKey: 1},
			{Name: "enabled", Type: Type{Kind: TypeBool}, SortKey: 2, HasDefault: true, Default: "false"},
		},
	}
}

func TestTSVRoundTrip(t *testing.T) {
	def := sampleDBDefinition()
	table := NewTable(def)
	if err := table.SetRows([]Row{
		{StringU8Cell("unit_a"), I32Cell(10), BoolCell(true)},
		{StringU8Cell("unit_b"), I32Cell(-5), BoolCell(false)},
	}); err != nil {
		t.Fatal(err)
	}

	kind := DBKind("units")
	out, err := ExportTSV(table, kind, "units.tsv")
	if err != nil {
		t.Fatal(err)
	}

	schema := NewSchema()
	schema.Add(&VersionedFile{Kind: kind, Definitions: []Definition{def}})

	got, gotKind, path, err := ImportTSV(out, schema)
	if err != nil {
		t.Fatal(err)
	}
	if gotKind != kind {
		t.Errorf("kind = %v, want %v", gotKind, kind)
	}
	if path != "units.tsv" {
		t.Errorf("path = %q, want units.tsv", path)
	}
	if !tablesEqual(table, got) {
		t.Errorf("round trip mismatch:\n  want %+v\n  got  %+v", table.Rows, got.Rows)
	}
}

func TestTSVLegacyMetadataLine(t *testing.T) {
	def := sampleDBDefinition()
	schema := NewSchema()
	kind := DBKind("units")
	schema.Add(&VersionedFile{Kind: kind, Definitions: []Definition{def}})

	content := strings.Join([]string{
		"key\tamount\tenabled",
		"#db:units\t3\tunits.tsv",
		"unit_a\t10\ttrue",
	}, "\n") + "\n"

	table, gotKind, path, err := ImportTSV([]byte(content), schema)
	if err != nil {
		t.Fatal(err)
	}
	if gotKind != kind || path != "units.tsv" {
		t.Errorf("kind/path = %v/%q", gotKind, path)
	}
	if len(table.Rows) != 1 || table.Rows[0][0].StrV != "unit_a" {
		t.Errorf("rows = %v", table.Rows)
	}
}

func TestTSVMissingColumnDefaults(t *testing.T) {
	def := sampleDBDefinition()
	schema := NewSchema()
	kind := DBKind("units")
	schema.Add(&VersionedFile{Kind: kind, Definitions: []Definition{def}})

	// "enabled" column omitted entirely; should default to false.
	content := "amount\tkey\n#db:units;3;units.tsv\n7\tunit_c\n"
	table, _, _, err := ImportTSV([]byte(content), schema)
	if err != nil {
		t.Fatal(err)
	}
	if table.Rows[0][2].BoolV != false {
		t.Errorf("missing bool column default = %v, want false", table.Rows[0][2].BoolV)
	}
	if table.Rows[0][1].I32V != 7 {
		t.Errorf("amount = %d, want 7", table.Rows[0][1].I32V)
	}
}

func TestTSVIncorrectRowLength(t *testing.T) {
	def := sampleDBDefinition()
	schema := NewSchema()
	kind := DBKind("units")
	schema.Add(&VersionedFile{Kind: kind, Definitions: []Definition{def}})

	content := "key\tamount\tenabled\n#db:units;3;units.tsv\nunit_a\t10\n"
	_, _, _, err := ImportTSV([]byte(content), schema)
	ce, ok := err.(*CodecError)
	if !ok || ce.Kind != ErrImportTSVIncorrectRow {
		t.Fatalf("err = %v, want ImportTSVIncorrectRow", err)
	}
}

func TestTSVRejectsSequenceColumns(t *testing.T) {
	inner := &Definition{Fields: []Field{{Name: "v", Type: Type{Kind: TypeI16}}}}
	def := Definition{Fields: []Field{{Name: "items", Type: Type{Kind: TypeSequenceU16, Inner: inner}}}}
	table := NewTable(def)
	if _, err := ExportTSV(table, LocKind, "x.tsv"); err == nil {
		t.Fatal("expected error exporting a table with a sequence column")
	}
}
