// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "testing"

func TestTableBitwisePack(t *testing.T) {
	// Scenario 4: an I16 field with is_bitwise=3 and bytes 05 00 decodes to
	// [true, false, true] and re-encodes to the same bytes.
	def := Definition{
		Version: 1,
		Fields: []Field{
			{Name: "flags", Type: Type{Kind: TypeI16}, IsBitwise: 3},
		},
	}
	table, err := DecodeTable(NewReader([]byte{0x05, 0x00}), def, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	want := []bool{true, false, true}
	if len(table.Rows) != 1 || len(table.Rows[0]) != 3 {
		t.Fatalf("decoded row shape = %v", table.Rows)
	}
	for i, b := range want {
		if table.Rows[0][i].BoolV != b {
			t.Errorf("bit %d = %v, want %v", i, table.Rows[0][i].BoolV, b)
		}
	}

	w := NewWriter()
	if err := EncodeTable(w, table); err != nil {
		t.Fatal(err)
	}
	if got := w.Bytes(); len(got) != 2 || got[0] != 0x05 || got[1] != 0x00 {
		t.Errorf("re-encoded bytes = % x, want 05 00", got)
	}
}

func TestTableColourMerge(t *testing.T) {
	// Scenario 5: a_r/a_g/a_b channel fields merge into one ColourRGB cell
	// and re-encode to the same three I16 channel values.
	def := Definition{
		Version: 1,
		Fields: []Field{
			{Name: "a_r", Type: Type{Kind: TypeI16}, IsPartOfColour: "a", ColourChannel: "r"},
			{Name: "a_g", Type: Type{Kind: TypeI16}, IsPartOfColour: "a", ColourChannel: "g"},
			{Name: "a_b", Type: Type{Kind: TypeI16}, IsPartOfColour: "a", ColourChannel: "b"},
		},
	}
	raw := []byte{0x12, 0x00, 0x34, 0x00, 0x56, 0x00}
	table, err := DecodeTable(NewReader(raw), def, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(table.Rows[0]) != 1 {
		t.Fatalf("expected exactly one synthetic colour cell, got %d", len(table.Rows[0]))
	}
	if table.Rows[0][0].ColourV != 0x123456 {
		t.Errorf("ColourV = %#x, want 0x123456", table.Rows[0][0].ColourV)
	}

	w := NewWriter()
	if err := EncodeTable(w, table); err != nil {
		t.Fatal(err)
	}
	if got := w.Bytes(); len(got) != len(raw) || string(got) != string(raw) {
		t.Errorf("re-encoded bytes = % x, want % x", got, raw)
	}
}

func TestTableEnumMissThrough(t *testing.T) {
	def := Definition{
		Version: 1,
		Fields: []Field{
			{Name: "kind", Type: Type{Kind: TypeI32}, EnumValues: map[int64]string{1: "alpha", 2: "beta"}, Default: "9", HasDefault: true},
		},
	}
	// value 1 -> "alpha"
	table, err := DecodeTable(NewReader([]byte{1, 0, 0, 0}), def, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if table.Rows[0][0].StrV != "alpha" {
		t.Fatalf("enum decode = %q, want alpha", table.Rows[0][0].StrV)
	}

	// Miss-through: a non-matching name that parses as an integer.
	table.Rows[0][0].StrV = "42"
	w := NewWriter()
	if err := EncodeTable(w, table); err != nil {
		t.Fatal(err)
	}
	if got := w.Bytes(); len(got) != 4 || got[0] != 42 {
		t.Errorf("numeric miss-through = % x, want 2a 00 00 00", got)
	}

	// Total miss: falls back to the field's default.
	table.Rows[0][0].StrV = "not-a-number"
	w2 := NewWriter()
	if err := EncodeTable(w2, table); err != nil {
		t.Fatal(err)
	}
	if got := w2.Bytes(); len(got) != 4 || got[0] != 9 {
		t.Errorf("default fallback = % x, want 09 00 00 00", got)
	}
}

func TestTableSequenceRoundTrip(t *testing.T) {
	inner := &Definition{
		Version: 1,
		Fields:  []Field{{Name: "v", Type: Type{Kind: TypeI16}}},
	}
	def := Definition{
		Version: 1,
		Fields: []Field{
			{Name: "items", Type: Type{Kind: TypeSequenceU16, Inner: inner}},
		},
	}
	w := NewWriter()
	w.U16(1) // outer entry count is supplied externally; here we hand-build one row
	w.U16(2) // sequence length
	w.I16(7)
	w.I16(8)

	r := NewReader(w.Bytes())
	if _, err := r.U16(); err != nil { // consume the hand-written entry count
		t.Fatal(err)
	}
	table, err := DecodeTable(r, def, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	nested := table.Rows[0][0].SeqV
	if nested == nil || len(nested.Rows) != 2 {
		t.Fatalf("nested sequence = %v", nested)
	}
	if nested.Rows[0][0].I16V != 7 || nested.Rows[1][0].I16V != 8 {
		t.Fatalf("nested values = %v", nested.Rows)
	}

	out := NewWriter()
	if err := EncodeTable(out, table); err != nil {
		t.Fatal(err)
	}
	want := []byte{2, 0, 7, 0, 8, 0}
	if got := out.Bytes(); string(got) != string(want) {
		t.Errorf("re-encoded sequence = % x, want % x", got, want)
	}
}

func TestTableReturnIncomplete(t *testing.T) {
	def := Definition{
		Version: 1,
		Fields:  []Field{{Name: "v", Type: Type{Kind: TypeI32}}},
	}
	r := NewReader([]byte{1, 0, 0, 0, 2, 0}) // second row is truncated
	_, err := DecodeTable(r, def, 2, true)
	incomplete, ok := err.(*IncompleteError)
	if !ok {
		t.Fatalf("expected *IncompleteError, got %T: %v", err, err)
	}
	if len(incomplete.Partial.Rows) != 1 {
		t.Fatalf("partial rows = %d, want 1", len(incomplete.Partial.Rows))
	}
	if kind, _ := Kind(incomplete.Cause); kind != ErrMalformed {
		t.Errorf("cause kind = %v, want Malformed (table decode wraps row/col context)", kind)
	}
}

func TestTableRowWrongFieldCount(t *testing.T) {
	def := Definition{Fields: []Field{{Name: "a", Type: Type{Kind: TypeBool}}}}
	table := NewTable(def)
	err := table.SetRows([]Row{{}})
	ce, ok := err.(*CodecError)
	if !ok || ce.Kind != ErrRowWrongFieldCount {
		t.Fatalf("err = %v, want RowWrongFieldCount", err)
	}
}
