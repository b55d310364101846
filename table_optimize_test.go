// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "testing"

func TestOptimizeRemovesVanillaRows(t *testing.T) {
	def := sampleDBDefinition()
	vanilla := NewTable(def)
	if err := vanilla.SetRows([]Row{
		{StringU8Cell("vanilla_a"), I32Cell(1), BoolCell(true)},
	}); err != nil {
		t.Fatal(err)
	}

	mod := NewTable(def)
	if err := mod.SetRows([]Row{
		{StringU8Cell("vanilla_a"), I32Cell(1), BoolCell(true)}, // matches vanilla, dropped
		{StringU8Cell("custom_b"), I32Cell(2), BoolCell(false)}, // kept
	}); err != nil {
		t.Fatal(err)
	}

	empty, err := Optimize(mod, []*Table{vanilla})
	if err != nil {
		t.Fatal(err)
	}
	if empty {
		t.Fatal("table should not be empty after optimize")
	}
	if len(mod.Rows) != 1 || mod.Rows[0][0].StrV != "custom_b" {
		t.Errorf("rows after optimize = %v", mod.Rows)
	}
}

func TestOptimizeIdempotence(t *testing.T) {
	def := sampleDBDefinition()
	vanilla := NewTable(def)
	_ = vanilla.SetRows([]Row{{StringU8Cell("v"), I32Cell(1), BoolCell(true)}})

	mod := NewTable(def)
	_ = mod.SetRows([]Row{
		{StringU8Cell("a"), I32Cell(1), BoolCell(true)},
		{StringU8Cell("a"), I32Cell(2), BoolCell(false)}, // duplicate key, dropped
		{StringU8Cell("b"), I32Cell(3), BoolCell(true)},
	})

	if _, err := Optimize(mod, []*Table{vanilla}); err != nil {
		t.Fatal(err)
	}
	first := append([]Row(nil), mod.Rows...)

	if _, err := Optimize(mod, []*Table{vanilla}); err != nil {
		t.Fatal(err)
	}
	if len(mod.Rows) != len(first) {
		t.Fatalf("optimize is not idempotent: %v vs %v", first, mod.Rows)
	}
}

func TestOptimizeEmptyResult(t *testing.T) {
	def := sampleDBDefinition()
	vanilla := NewTable(def)
	_ = vanilla.SetRows([]Row{{StringU8Cell("only"), I32Cell(1), BoolCell(true)}})

	mod := NewTable(def)
	_ = mod.SetRows([]Row{{StringU8Cell("only"), I32Cell(1), BoolCell(true)}})

	empty, err := Optimize(mod, []*Table{vanilla})
	if err != nil {
		t.Fatal(err)
	}
	if !empty {
		t.Error("expected is_empty after removing the only row")
	}
}

func TestGatherDependencyData(t *testing.T) {
	def := Definition{
		Fields: []Field{
			{Name: "key", Type: Type{Kind: TypeStringU8}},
			{Name: "display", Type: Type{Kind: TypeStringU8}},
		},
	}
	pack := NewTable(def)
	_ = pack.SetRows([]Row{{StringU8Cell("k1"), StringU8Cell("Display One")}})
	vanilla := NewTable(def)
	_ = vanilla.SetRows([]Row{
		{StringU8Cell("k1"), StringU8Cell("ignored duplicate")},
		{StringU8Cell("k2"), StringU8Cell("Display Two")},
	})

	rows, err := GatherDependencyData([]*Table{pack, vanilla}, "key", []string{"display"})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %v, want 2", rows)
	}
	if rows[0].Value != "k1" || rows[0].Lookup != "Display One" {
		t.Errorf("first row = %+v", rows[0])
	}
	if rows[1].Value != "k2" || rows[1].Lookup != "Display Two" {
		t.Errorf("second row = %+v", rows[1])
	}
}
