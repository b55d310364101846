// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"encoding/xml"
	"fmt"
	"strconv"
)

// akDefinitionRoot is the `TWaD_<table>.xml` definition file shape: an
// ordered list of fields with CA's assembly-kit field-type vocabulary
// (original_source/rpfm_lib/src/schema/assembly_kit/mod.rs, `struct root`).
type akDefinitionRoot struct {
	XMLName xml.Name    `xml:"root"`
	Fields  []akFieldXML `xml:"field"`
}

type akFieldXML struct {
	PrimaryKey         string   `xml:"primary_key"`
	Name               string   `xml:"name"`
	FieldType          string   `xml:"field_type"`
	Required           string   `xml:"required"`
	MaxLength          string   `xml:"max_length"`
	ColumnSourceColumn []string `xml:"column_source_column"`
	ColumnSourceTable  string   `xml:"column_source_table"`
	FieldDescription   string   `xml:"field_description"`
}

// akDataRoot is the per-table data XML shape: a sequence of rows, each a
// sequence of named fields (`struct dataroot`/`datarow`/`datafield`).
type akDataRoot struct {
	Rows []akDataRowXML `xml:",any"`
}

type akDataRowXML struct {
	Fields []akDataFieldXML `xml:",any"`
}

type akDataFieldXML struct {
	FieldName string `xml:"field_name,attr"`
	Value     string `xml:",chardata"`
}

// assemblyKitFieldType maps CA's assembly-kit field_type vocabulary to this
// library's TypeKind.
func assemblyKitFieldType(fieldType string) TypeKind {
	switch fieldType {
	case "yesno", "boolean":
		return TypeBool
	case "single", "float", "decimal":
		return TypeF32
	case "autonumber", "int", "integer":
		return TypeI32
	case "long integer":
		return TypeI64
	default:
		return TypeStringU16
	}
}

// ParseAssemblyKitDefinition decodes a `TWaD_<table>.xml` definition file
// into a fake Definition with Version -1, matching the original's
// "fake tables with version -1 ... for dependency checking" convention
// (original_source/rpfm_lib/src/schema/assembly_kit/mod.rs,
// `process_raw_tables`).
func ParseAssemblyKitDefinition(data []byte) (Definition, error) {
	var root akDefinitionRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return Definition{}, newErrWrap(ErrMalformed, "assembly-kit definition is not well-formed XML", err)
	}

	def := Definition{Version: -1}
	for i, f := range root.Fields {
		field := Field{
			Name:        f.Name,
			Type:        Type{Kind: assemblyKitFieldType(f.FieldType)},
			IsKey:       f.PrimaryKey == "1" || f.PrimaryKey == "true",
			Description: f.FieldDescription,
			SortKey:     i,
		}
		if f.ColumnSourceTable != "" && len(f.ColumnSourceColumn) > 0 {
			field.IsReference = &FieldRef{Table: f.ColumnSourceTable, Column: f.ColumnSourceColumn[0]}
		}
		def.Fields = append(def.Fields, field)
	}
	return def, nil
}

// ParseAssemblyKitData decodes a raw data XML file against def, re-scanning
// the row's observed field order rather than trusting it matches the
// definition's order (the original works around the same mismatch by
// regex-rewriting each row's field tags before deserializing; this decoder
// instead looks each data field up by name against the definition). A field
// present in def but absent from a row decodes as its zero cell, matching
// "some games may have missing fields when said field is empty."
func ParseAssemblyKitData(data []byte, def Definition) ([]Row, error) {
	var root akDataRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, newErrWrap(ErrMalformed, "assembly-kit data is not well-formed XML", err)
	}

	rows := make([]Row, 0, len(root.Rows))
	for _, rawRow := range root.Rows {
		byName := make(map[string]string, len(rawRow.Fields))
		for _, f := range rawRow.Fields {
			byName[f.FieldName] = f.Value
		}

		row := make(Row, len(def.Fields))
		for i, field := range def.Fields {
			text, ok := byName[field.Name]
			row[i] = assemblyKitCell(field.Type.Kind, text, ok)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func assemblyKitCell(kind TypeKind, text string, present bool) Cell {
	if !present {
		return Cell{Kind: kind}
	}
	switch kind {
	case TypeBool:
		return BoolCell(text == "true" || text == "1")
	case TypeF32:
		v, _ := strconv.ParseFloat(text, 32)
		return F32Cell(float32(v))
	case TypeI32:
		v, _ := strconv.ParseInt(text, 10, 32)
		return I32Cell(int32(v))
	case TypeI64:
		v, _ := strconv.ParseInt(text, 10, 64)
		return I64Cell(v)
	default:
		return StringU16Cell(text)
	}
}

// AssemblyKitCache is the fake-table dependency backstop (original's
// "pak_files" bincode blob, `process_raw_tables`): a flat list of fake
// (table name, Table) pairs produced by ingesting an assembly kit's raw XML
// export, serialised through the same ByteWriter/ByteReader every other
// format here uses instead of a separate serialization format.
type AssemblyKitCache struct {
	Tables map[string]*Table
}

// NewAssemblyKitCache returns an empty cache.
func NewAssemblyKitCache() *AssemblyKitCache {
	return &AssemblyKitCache{Tables: make(map[string]*Table)}
}

// AddTable ingests one already-parsed (definition, data) pair under
// tableName, overwriting any existing entry.
func (c *AssemblyKitCache) AddTable(tableName string, def Definition, rows []Row) error {
	t := NewTable(def)
	if err := t.SetRows(rows); err != nil {
		return err
	}
	c.Tables[tableName] = t
	return nil
}

var assemblyKitCacheSignature = []byte("TWAKC001")

// Save encodes the cache to a single self-describing binary blob.
func (c *AssemblyKitCache) Save() ([]byte, error) {
	w := NewWriter()
	w.RawBytes(assemblyKitCacheSignature)
	w.U32(uint32(len(c.Tables)))

	for name, t := range c.Tables {
		w.StringU16(name)
		w.U32(uint32(len(t.Definition.Fields)))
		for _, f := range t.Definition.Fields {
			w.StringU16(f.Name)
			w.U8(uint8(f.Type.Kind))
		}
		w.U32(uint32(len(t.Rows)))
		if err := EncodeTable(w, t); err != nil {
			return nil, err
		}
	}
	return w.Bytes(), nil
}

// LoadAssemblyKitCache decodes a blob produced by Save.
func LoadAssemblyKitCache(data []byte) (*AssemblyKitCache, error) {
	r := NewReader(data)
	sig, err := r.Bytes(uint32(len(assemblyKitCacheSignature)))
	if err != nil {
		return nil, err
	}
	if string(sig) != string(assemblyKitCacheSignature) {
		return nil, newErr(ErrUnsupportedSignature, "not an assembly-kit cache")
	}

	tableCount, err := r.U32()
	if err != nil {
		return nil, err
	}

	cache := NewAssemblyKitCache()
	for i := uint32(0); i < tableCount; i++ {
		name, err := r.StringU16()
		if err != nil {
			return nil, err
		}
		fieldCount, err := r.U32()
		if err != nil {
			return nil, err
		}
		def := Definition{Version: -1}
		for j := uint32(0); j < fieldCount; j++ {
			fieldName, err := r.StringU16()
			if err != nil {
				return nil, err
			}
			kind, err := r.U8()
			if err != nil {
				return nil, err
			}
			def.Fields = append(def.Fields, Field{Name: fieldName, Type: Type{Kind: TypeKind(kind)}, SortKey: int(j)})
		}

		entryCount, err := r.U32()
		if err != nil {
			return nil, err
		}
		table, err := DecodeTable(r, def, entryCount, false)
		if err != nil {
			return nil, newErrWrap(ErrMalformed, fmt.Sprintf("assembly-kit cache table %q is corrupt", name), err)
		}
		cache.Tables[name] = table
	}

	if r.Pos() != r.Len() {
		return nil, newSizeMismatch(int(r.Len()), int(r.Pos()))
	}
	return cache, nil
}
