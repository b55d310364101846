// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import "testing"

const sampleDefinitionXML = `<root>
	<field>
		<primary_key>1</primary_key>
		<name>key</name>
		<field_type>autonumber</field_type>
		<required>1</required>
	</field>
	<field>
		<primary_key>0</primary_key>
		<name>display_name</name>
		<field_type>stringu16</field_type>
		<required>1</required>
	</field>
	<field>
		<primary_key>0</primary_key>
		<name>is_hidden</name>
		<field_type>yesno</field_type>
		<required>0</required>
	</field>
</root>`

const sampleDataXML = `<dataroot>
	<row>
		<datafield field_name="key">7</datafield>
		<datafield field_name="display_name">Spearmen</datafield>
		<datafield field_name="is_hidden">true</datafield>
	</row>
	<row>
		<datafield field_name="key">8</datafield>
		<datafield field_name="display_name">Archers</datafield>
	</row>
</dataroot>`

func TestParseAssemblyKitDefinition(t *testing.T) {
	def, err := ParseAssemblyKitDefinition([]byte(sampleDefinitionXML))
	if err != nil {
		t.Fatal(err)
	}
	if def.Version != -1 {
		t.Fatalf("version = %d, want -1", def.Version)
	}
	if len(def.Fields) != 3 {
		t.Fatalf("fields = %+v", def.Fields)
	}
	if !def.Fields[0].IsKey || def.Fields[0].Type.Kind != TypeI32 {
		t.Fatalf("key field = %+v", def.Fields[0])
	}
	if def.Fields[2].Type.Kind != TypeBool {
		t.Fatalf("is_hidden field = %+v", def.Fields[2])
	}
}

func TestParseAssemblyKitData(t *testing.T) {
	def, err := ParseAssemblyKitDefinition([]byte(sampleDefinitionXML))
	if err != nil {
		t.Fatal(err)
	}

	rows, err := ParseAssemblyKitData([]byte(sampleDataXML), def)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %+v", rows)
	}
	if rows[0][1].StrV != "Spearmen" || rows[0][2].BoolV != true {
		t.Fatalf("row 0 = %+v", rows[0])
	}
	// is_hidden is absent from the second row and should decode to its zero cell.
	if rows[1][2].BoolV != false {
		t.Fatalf("row 1 is_hidden = %+v, want false", rows[1][2])
	}
}

func TestAssemblyKitCacheRoundTrip(t *testing.T) {
	def, err := ParseAssemblyKitDefinition([]byte(sampleDefinitionXML))
	if err != nil {
		t.Fatal(err)
	}
	rows, err := ParseAssemblyKitData([]byte(sampleDataXML), def)
	if err != nil {
		t.Fatal(err)
	}

	cache := NewAssemblyKitCache()
	if err := cache.AddTable("units_tables", def, rows); err != nil {
		t.Fatal(err)
	}

	data, err := cache.Save()
	if err != nil {
		t.Fatal(err)
	}

	loaded, err := LoadAssemblyKitCache(data)
	if err != nil {
		t.Fatal(err)
	}

	table, ok := loaded.Tables["units_tables"]
	if !ok {
		t.Fatal("units_tables missing from loaded cache")
	}
	if len(table.Rows) != 2 || table.Rows[0][1].StrV != "Spearmen" {
		t.Fatalf("rows = %+v", table.Rows)
	}
}

func TestLoadAssemblyKitCacheBadSignature(t *testing.T) {
	if _, err := LoadAssemblyKitCache([]byte("NOPE0000")); err == nil {
		t.Fatal("expected an unsupported-signature error")
	}
}
