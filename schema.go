// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
)

// TypeKind is the tag of the Type sum described in spec §3.
type TypeKind int

// Cell/field type tags.
const (
	TypeBool TypeKind = iota
	TypeF32
	TypeF64
	TypeI16
	TypeI32
	TypeI64
	TypeColourRGB
	TypeStringU8
	TypeStringU16
	TypeOptionalStringU8
	TypeOptionalStringU16
	TypeSequenceU16
	TypeSequenceU32
)

func (k TypeKind) String() string {
	names := [...]string{
		"Bool", "F32", "F64", "I16", "I32", "I64", "ColourRGB",
		"StringU8", "StringU16", "OptionalStringU8", "OptionalStringU16",
		"SequenceU16", "SequenceU32",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// IsInteger reports whether k is one of the integer kinds eligible for
// bitwise expansion or enum values.
func (k TypeKind) IsInteger() bool {
	return k == TypeI16 || k == TypeI32 || k == TypeI64
}

// Type is the tagged sum over cell/field types. Only TypeSequenceU16/U32
// carry an Inner definition.
type Type struct {
	Kind  TypeKind
	Inner *Definition
}

// FieldRef names the (table, column) a field's value looks up into.
type FieldRef struct {
	Table  string
	Column string
}

// Field is a single column descriptor (spec §3, "Field").
type Field struct {
	Name           string
	Type           Type
	IsKey          bool
	Default        string
	HasDefault     bool
	IsReference    *FieldRef
	Lookup         []string
	EnumValues     map[int64]string
	IsBitwise      uint8 // >=1; fan-out when >1 is IsBitwise consecutive bools
	IsPartOfColour string // channel group id; empty means "not a colour part"
	ColourChannel  string // one of r/g/b/red/green/blue, only set when IsPartOfColour != ""
	Description    string
	SortKey        int // stable TSV column ordering
}

// effectiveFanOut returns how many decoded cells this raw field produces.
func (f Field) effectiveFanOut() int {
	switch {
	case f.IsBitwise > 1:
		return int(f.IsBitwise)
	case f.IsPartOfColour != "":
		return 0
	default:
		return 1
	}
}

// Definition is an ordered list of field descriptors for one table version
// (spec §3, "Definition").
type Definition struct {
	Version          int32
	Fields           []Field
	LocalisedFields  []Field
}

// Clone returns a deep-enough copy of d so a Table can own its Definition by
// value (spec §3, "Ownership").
func (d Definition) Clone() Definition {
	out := Definition{Version: d.Version}
	out.Fields = append([]Field(nil), d.Fields...)
	out.LocalisedFields = append([]Field(nil), d.LocalisedFields...)
	return out
}

// colourFieldName returns the synthetic ColourRGB column name for a colour
// group: "<prefix>_colour" when the group carries a prefix, or "colour" for
// a nameless (sole) group (spec §4.C, encode contract).
func colourFieldName(group string) string {
	if group == "" {
		return "colour"
	}
	return group + "_colour"
}

// ProcessedFields materialises the decoded-row-aligned field list: bitwise
// integer fields expand into IsBitwise consecutive bool fields (sharing the
// base name), enum fields take the StringU8 type of the cell they decode to,
// and colour-part fields collapse into one synthetic ColourRGB field per
// group, appended after every other processed field (spec §4.B).
func ProcessedFields(d Definition) []Field {
	out := make([]Field, 0, len(d.Fields))
	seenGroup := map[string]bool{}
	var colourFields []Field
	for _, f := range d.Fields {
		switch {
		case f.IsBitwise > 1:
			for i := 0; i < int(f.IsBitwise); i++ {
				bit := f
				bit.Type = Type{Kind: TypeBool}
				bit.IsBitwise = 1
				out = append(out, bit)
			}
		case len(f.EnumValues) > 0:
			enum := f
			enum.Type = Type{Kind: TypeStringU8}
			out = append(out, enum)
		case f.IsPartOfColour != "":
			if seenGroup[f.IsPartOfColour] {
				continue
			}
			seenGroup[f.IsPartOfColour] = true
			colourFields = append(colourFields, Field{
				Name:        colourFieldName(f.IsPartOfColour),
				Type:        Type{Kind: TypeColourRGB},
				Description: "merged colour channels for group " + f.IsPartOfColour,
			})
		default:
			out = append(out, f)
		}
	}
	// Colour cells are staged and finalised only after every field in the
	// row has been decoded (spec §4.C), so the synthetic column always
	// trails the row regardless of where its channel fields were declared.
	return append(out, colourFields...)
}

// Category distinguishes the four VersionedFile unions in spec §3.
type Category int

// File categories.
const (
	CategoryDB Category = iota
	CategoryLoc
	CategoryAnimTable
	CategoryMatchedCombat
)

func (c Category) String() string {
	switch c {
	case CategoryDB:
		return "db"
	case CategoryLoc:
		return "loc"
	case CategoryAnimTable:
		return "animtable"
	case CategoryMatchedCombat:
		return "matched_combat"
	default:
		return "unknown"
	}
}

// Kind identifies a schema entry: a Category, plus a table name for
// CategoryDB (spec §3, "VersionedFile").
type Kind struct {
	Category  Category
	TableName string
}

func (k Kind) String() string {
	if k.Category == CategoryDB {
		return k.Category.String() + ":" + k.TableName
	}
	return k.Category.String()
}

// DBKind builds the Kind for a named DB table.
func DBKind(tableName string) Kind { return Kind{Category: CategoryDB, TableName: tableName} }

// LocKind, AnimTableKind and MatchedCombatKind are the singleton kinds for
// the three fixed-format table wrappers.
var (
	LocKind           = Kind{Category: CategoryLoc}
	AnimTableKind     = Kind{Category: CategoryAnimTable}
	MatchedCombatKind = Kind{Category: CategoryMatchedCombat}
)

// VersionedFile groups every known Definition version for one Kind (spec
// §3).
type VersionedFile struct {
	Kind        Kind
	Definitions []Definition
}

// byVersion returns the Definition matching version, if any.
func (vf *VersionedFile) byVersion(version int32) (Definition, bool) {
	for _, d := range vf.Definitions {
		if d.Version == version {
			return d, true
		}
	}
	return Definition{}, false
}

// last returns the highest-versioned Definition.
func (vf *VersionedFile) last() (Definition, bool) {
	if len(vf.Definitions) == 0 {
		return Definition{}, false
	}
	best := vf.Definitions[0]
	for _, d := range vf.Definitions[1:] {
		if d.Version > best.Version {
			best = d
		}
	}
	return best, true
}

// Schema is the process-wide, read-mostly mapping of Kind to VersionedFile,
// guarded by a mutex per spec §5 ("the Schema is shared read-mostly; a
// mutex wraps the process-wide schema handle").
type Schema struct {
	mu    sync.RWMutex
	files map[Kind]*VersionedFile
}

// NewSchema returns an empty Schema.
func NewSchema() *Schema {
	return &Schema{files: make(map[Kind]*VersionedFile)}
}

// Add registers (or replaces) a VersionedFile.
func (s *Schema) Add(vf *VersionedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[vf.Kind] = vf
}

// Swap atomically replaces the entire schema contents, the "hot-reload via
// a full swap" lifecycle named in spec §3.
func (s *Schema) Swap(files map[Kind]*VersionedFile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = files
}

// Get returns the exact Definition for (kind, version).
func (s *Schema) Get(kind Kind, version int32) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vf, ok := s.files[kind]
	if !ok {
		return Definition{}, newErr(ErrDefinitionNotFound, fmt.Sprintf("no schema entry for %s", kind))
	}
	def, ok := vf.byVersion(version)
	if !ok {
		return Definition{}, newErr(ErrDefinitionNotFound,
			fmt.Sprintf("%s has no definition for version %d", kind, version))
	}
	return def.Clone(), nil
}

// LastDefinition returns the highest-versioned Definition for kind, used by
// TSV header auto-detection.
func (s *Schema) LastDefinition(kind Kind) (Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vf, ok := s.files[kind]
	if !ok {
		return Definition{}, newErr(ErrDefinitionNotFound, fmt.Sprintf("no schema entry for %s", kind))
	}
	def, ok := vf.last()
	if !ok {
		return Definition{}, newErr(ErrDefinitionNotFound, fmt.Sprintf("%s has no definitions", kind))
	}
	return def.Clone(), nil
}

// ReverseRefs computes, across every DB table and every version registered
// in the schema, the list of (table, column) pairs whose is_reference
// target is (table, column) — the "reverse reference graph" of spec §3/§4.B,
// deduplicated. It is rebuilt from scratch on every call; nothing is cached
// (spec §9, "Cyclic graphs").
func (s *Schema) ReverseRefs(table, column string) []FieldRef {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := map[FieldRef]bool{}
	var out []FieldRef
	for kind, vf := range s.files {
		if kind.Category != CategoryDB {
			continue
		}
		for _, def := range vf.Definitions {
			for _, f := range def.Fields {
				if f.IsReference == nil {
					continue
				}
				if f.IsReference.Table != table || f.IsReference.Column != column {
					continue
				}
				ref := FieldRef{Table: kind.TableName, Column: f.Name}
				if !seen[ref] {
					seen[ref] = true
					out = append(out, ref)
				}
			}
		}
	}
	return out
}

// sortedColumnNames returns processed field names ordered by SortKey, for
// TSV's "column display names in sorted order" header line.
func sortedColumnNames(fields []Field) []string {
	type idxField struct {
		idx int
		f   Field
	}
	tmp := make([]idxField, len(fields))
	for i, f := range fields {
		tmp[i] = idxField{i, f}
	}
	// stable insertion sort by SortKey keeps ties in original order,
	// mirroring the field declaration order for untagged fields.
	for i := 1; i < len(tmp); i++ {
		for j := i; j > 0 && tmp[j].f.SortKey < tmp[j-1].f.SortKey; j-- {
			tmp[j], tmp[j-1] = tmp[j-1], tmp[j]
		}
	}
	names := make([]string, len(tmp))
	for i, e := range tmp {
		names[i] = e.f.Name
	}
	return names
}

// parseEnumDefault parses s as an integer enum fallback value, used by the
// encode contract's enum miss-through path.
func parseEnumDefault(s string, kind TypeKind) (int64, bool) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, false
	}
	_ = kind
	return v, true
}
