// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"math"
	"strconv"
	"strings"
)

// Cell is the tagged sum parallel to Type carrying a decoded value (spec
// §3, "Decoded cell").
type Cell struct {
	Kind   TypeKind
	BoolV  bool
	I16V   int16
	I32V   int32
	I64V   int64
	F32V   float32
	F64V   float64
	ColourV uint32 // packed 0xRRGGBB
	StrV   string
	SeqV   *Table // only set for TypeSequenceU16/U32
}

// Row is an ordered list of decoded cells matching a Definition's processed
// field list length (spec §3).
type Row []Cell

// Table pairs a Definition with its decoded rows (spec §3).
type Table struct {
	Definition Definition
	Rows       []Row
}

// NewTable constructs an empty Table owning a clone of def.
func NewTable(def Definition) *Table {
	return &Table{Definition: def.Clone()}
}

// SetRows validates and installs rows, the only mutator besides decode
// (spec §3, "Lifecycles").
func (t *Table) SetRows(rows []Row) error {
	processed := ProcessedFields(t.Definition)
	for _, row := range rows {
		if err := validateRow(row, processed); err != nil {
			return err
		}
	}
	t.Rows = rows
	return nil
}

func validateRow(row Row, processed []Field) error {
	if len(row) != len(processed) {
		return newRowWrongFieldCount(len(processed), len(row))
	}
	for i, cell := range row {
		if cell.Kind != processed[i].Type.Kind {
			return newWrongFieldType(int(processed[i].Type.Kind), int(cell.Kind))
		}
	}
	return nil
}

// cellsEqual compares two cells for the equality-derived tests in spec §4.C,
// using an absolute tolerance of 1e-3 for floats.
func cellsEqual(a, b Cell) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case TypeBool:
		return a.BoolV == b.BoolV
	case TypeI16:
		return a.I16V == b.I16V
	case TypeI32:
		return a.I32V == b.I32V
	case TypeI64:
		return a.I64V == b.I64V
	case TypeF32:
		return math.Abs(float64(a.F32V-b.F32V)) <= 1e-3
	case TypeF64:
		return math.Abs(a.F64V-b.F64V) <= 1e-3
	case TypeColourRGB:
		return a.ColourV == b.ColourV
	case TypeStringU8, TypeStringU16, TypeOptionalStringU8, TypeOptionalStringU16:
		return a.StrV == b.StrV
	case TypeSequenceU16, TypeSequenceU32:
		return tablesEqual(a.SeqV, b.SeqV)
	default:
		return false
	}
}

func tablesEqual(a, b *Table) bool {
	if a == nil || b == nil {
		return a == b
	}
	if len(a.Rows) != len(b.Rows) {
		return false
	}
	for i := range a.Rows {
		if len(a.Rows[i]) != len(b.Rows[i]) {
			return false
		}
		for j := range a.Rows[i] {
			if !cellsEqual(a.Rows[i][j], b.Rows[i][j]) {
				return false
			}
		}
	}
	return true
}

// escapeString rewrites raw control characters the way decode presents them
// to callers (spec §4.C step 6).
func escapeString(s string) string {
	r := strings.NewReplacer("\n", "\\n", "\t", "\\t")
	return r.Replace(s)
}

// unescapeString reverses escapeString before a cell is written back out.
func unescapeString(s string) string {
	r := strings.NewReplacer("\\n", "\n", "\\t", "\t")
	return r.Replace(s)
}

// IncompleteError is returned instead of aborting when return_incomplete is
// set and a primitive read fails partway through a table decode (spec §4.C,
// §7). Partial holds every row decoded before the failure.
type IncompleteError struct {
	Partial *Table
	Cause   error
}

func (e *IncompleteError) Error() string {
	return "incomplete table decode: " + e.Cause.Error()
}

// Unwrap exposes Cause to errors.Is/errors.As.
func (e *IncompleteError) Unwrap() error { return e.Cause }

// DecodeTable decodes entryCount rows from r against def (spec §4.C,
// "Decode contract"). When returnIncomplete is true, a primitive read
// failure yields the rows decoded so far wrapped in an *IncompleteError
// rather than aborting outright.
func DecodeTable(r *ByteReader, def Definition, entryCount uint32, returnIncomplete bool) (*Table, error) {
	table := &Table{Definition: def.Clone()}
	rows, err := decodeRows(r, def.Fields, entryCount)
	table.Rows = rows
	if err != nil {
		if returnIncomplete {
			return table, &IncompleteError{Partial: table, Cause: err}
		}
		return nil, err
	}
	return table, nil
}

func decodeRows(r *ByteReader, raw []Field, count uint32) ([]Row, error) {
	rows := make([]Row, 0, count)
	for i := uint32(0); i < count; i++ {
		row, err := decodeRow(r, raw, int(i))
		if err != nil {
			return rows, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func decodeRow(r *ByteReader, raw []Field, rowIdx int) (Row, error) {
	row := make(Row, 0, len(raw))
	colourStage := map[string]map[string]int64{}
	var colourOrder []string

	for colIdx, f := range raw {
		if err := decodeField(r, f, rowIdx, colIdx, &row, colourStage, &colourOrder); err != nil {
			return row, err
		}
	}

	for _, group := range colourOrder {
		channels := colourStage[group]
		red := channel(channels, "r", "red")
		green := channel(channels, "g", "green")
		blue := channel(channels, "b", "blue")
		packed := uint32(red)<<16 | uint32(green)<<8 | uint32(blue)
		row = append(row, Cell{Kind: TypeColourRGB, ColourV: packed})
	}
	return row, nil
}

func channel(m map[string]int64, short, long string) int64 {
	if v, ok := m[short]; ok {
		return v
	}
	if v, ok := m[long]; ok {
		return v
	}
	return 0
}

// decodeField decodes one raw field's on-disk representation and appends
// zero or more cells to row, or stages a colour channel value, following
// the priority order in spec §4.C: bitwise, then enum, then colour-part,
// then sequence, then plain primitive.
func decodeField(r *ByteReader, f Field, rowIdx, colIdx int, row *Row,
	colourStage map[string]map[string]int64, colourOrder *[]string) error {

	switch {
	case f.IsBitwise > 1:
		raw, err := readRawInteger(r, f.Type.Kind)
		if err != nil {
			return wrapMalformed(err, rowIdx, colIdx)
		}
		for i := 0; i < int(f.IsBitwise); i++ {
			*row = append(*row, Cell{Kind: TypeBool, BoolV: raw&(1<<uint(i)) != 0})
		}
		return nil

	case len(f.EnumValues) > 0:
		raw, err := readRawInteger(r, f.Type.Kind)
		if err != nil {
			return wrapMalformed(err, rowIdx, colIdx)
		}
		name, ok := f.EnumValues[int64(signExtend(raw, f.Type.Kind))]
		if !ok {
			name = strconv.FormatInt(signExtend(raw, f.Type.Kind), 10)
		}
		*row = append(*row, Cell{Kind: TypeStringU8, StrV: name})
		return nil

	case f.IsPartOfColour != "":
		raw, err := readRawInteger(r, f.Type.Kind)
		if err != nil {
			return wrapMalformed(err, rowIdx, colIdx)
		}
		if colourStage[f.IsPartOfColour] == nil {
			colourStage[f.IsPartOfColour] = map[string]int64{}
			*colourOrder = append(*colourOrder, f.IsPartOfColour)
		}
		colourStage[f.IsPartOfColour][f.ColourChannel] = signExtend(raw, f.Type.Kind)
		return nil

	case f.Type.Kind == TypeSequenceU16, f.Type.Kind == TypeSequenceU32:
		var count uint32
		var err error
		if f.Type.Kind == TypeSequenceU16 {
			var n uint16
			n, err = r.U16()
			count = uint32(n)
		} else {
			count, err = r.U32()
		}
		if err != nil {
			return wrapMalformed(err, rowIdx, colIdx)
		}
		nested, err := DecodeTable(r, *f.Type.Inner, count, false)
		if err != nil {
			return err
		}
		*row = append(*row, Cell{Kind: f.Type.Kind, SeqV: nested})
		return nil

	default:
		cell, err := decodePrimitiveCell(r, f.Type.Kind)
		if err != nil {
			return wrapMalformed(err, rowIdx, colIdx)
		}
		*row = append(*row, cell)
		return nil
	}
}

func wrapMalformed(err error, row, col int) error {
	if ce, ok := err.(*CodecError); ok && ce.Kind == ErrMalformed {
		ce.Row, ce.Col, ce.HasRowCol = row, col, true
		return ce
	}
	return newMalformed(row, col, err.Error())
}

// readRawInteger reads the bit pattern for an integer-kinded field,
// zero-extended to 64 bits, for use by the bitwise/enum/colour paths which
// all need the raw bits before interpretation.
func readRawInteger(r *ByteReader, kind TypeKind) (uint64, error) {
	switch kind {
	case TypeI16:
		v, err := r.U16()
		return uint64(v), err
	case TypeI32:
		v, err := r.U32()
		return uint64(v), err
	case TypeI64:
		v, err := r.U64()
		return uint64(v), err
	default:
		return 0, newErr(ErrMalformed, "bitwise/enum/colour field must be an integer type")
	}
}

// signExtend reinterprets the zero-extended raw bits as a signed value of
// the field's declared width.
func signExtend(raw uint64, kind TypeKind) int64 {
	switch kind {
	case TypeI16:
		return int64(int16(raw))
	case TypeI32:
		return int64(int32(raw))
	default:
		return int64(raw)
	}
}

func decodePrimitiveCell(r *ByteReader, kind TypeKind) (Cell, error) {
	switch kind {
	case TypeBool:
		v, err := r.Bool()
		return Cell{Kind: TypeBool, BoolV: v}, err
	case TypeF32:
		v, err := r.F32()
		return Cell{Kind: TypeF32, F32V: v}, err
	case TypeF64:
		v, err := r.F64()
		return Cell{Kind: TypeF64, F64V: v}, err
	case TypeI16:
		v, err := r.I16()
		return Cell{Kind: TypeI16, I16V: v}, err
	case TypeI32:
		v, err := r.I32()
		return Cell{Kind: TypeI32, I32V: v}, err
	case TypeI64:
		v, err := r.I64()
		return Cell{Kind: TypeI64, I64V: v}, err
	case TypeColourRGB:
		v, err := r.ColourRGB()
		return Cell{Kind: TypeColourRGB, ColourV: v}, err
	case TypeStringU8:
		v, err := r.StringU8()
		return Cell{Kind: TypeStringU8, StrV: escapeString(v)}, err
	case TypeStringU16:
		v, err := r.StringU16()
		return Cell{Kind: TypeStringU16, StrV: escapeString(v)}, err
	case TypeOptionalStringU8:
		v, err := r.OptionalStringU8()
		return Cell{Kind: TypeOptionalStringU8, StrV: escapeString(v)}, err
	case TypeOptionalStringU16:
		v, err := r.OptionalStringU16()
		return Cell{Kind: TypeOptionalStringU16, StrV: escapeString(v)}, err
	default:
		return Cell{}, newErr(ErrMalformed, "unsupported primitive type kind")
	}
}

// EncodeTable mirrors DecodeTable, writing t's rows against its Definition
// (spec §4.C, "Encode contract"). It does not write an entry count; callers
// that frame a row count (Loc/DB headers, Sequence fields) write it
// themselves around this call.
func EncodeTable(w *ByteWriter, t *Table) error {
	processed := ProcessedFields(t.Definition)
	colourIdx := colourCellIndex(processed)
	for _, row := range t.Rows {
		if err := validateRow(row, processed); err != nil {
			return err
		}
		if err := encodeRow(w, row, t.Definition.Fields, colourIdx); err != nil {
			return err
		}
	}
	return nil
}

// colourCellIndex maps a colour group id to the index of its synthetic cell
// within a processed row.
func colourCellIndex(processed []Field) map[string]int {
	idx := map[string]int{}
	for i, f := range processed {
		if f.Type.Kind != TypeColourRGB {
			continue
		}
		name := f.Name
		group := ""
		if name != "colour" {
			group = strings.TrimSuffix(name, "_colour")
		}
		idx[group] = i
	}
	return idx
}

func encodeRow(w *ByteWriter, row Row, raw []Field, colourIdx map[string]int) error {
	cellIdx := 0
	for _, f := range raw {
		switch {
		case f.IsBitwise > 1:
			var packed uint64
			for i := 0; i < int(f.IsBitwise); i++ {
				if cellIdx >= len(row) {
					return newRowWrongFieldCount(cellIdx+1, len(row))
				}
				if row[cellIdx].BoolV {
					packed |= 1 << uint(i)
				}
				cellIdx++
			}
			writeRawInteger(w, f.Type.Kind, packed)

		case len(f.EnumValues) > 0:
			if cellIdx >= len(row) {
				return newRowWrongFieldCount(cellIdx+1, len(row))
			}
			cell := row[cellIdx]
			cellIdx++
			writeRawInteger(w, f.Type.Kind, uint64(encodeEnumCell(cell.StrV, f)))

		case f.IsPartOfColour != "":
			idx, ok := colourIdx[f.IsPartOfColour]
			if !ok || idx >= len(row) {
				return newErr(ErrMalformed, "missing synthetic colour column for group "+f.IsPartOfColour)
			}
			v := row[idx].ColourV
			writeRawInteger(w, f.Type.Kind, uint64(colourChannelValue(v, f.ColourChannel)))

		case f.Type.Kind == TypeSequenceU16, f.Type.Kind == TypeSequenceU32:
			if cellIdx >= len(row) {
				return newRowWrongFieldCount(cellIdx+1, len(row))
			}
			cell := row[cellIdx]
			cellIdx++
			nested := cell.SeqV
			count := 0
			if nested != nil {
				count = len(nested.Rows)
			}
			if f.Type.Kind == TypeSequenceU16 {
				w.U16(uint16(count))
			} else {
				w.U32(uint32(count))
			}
			if nested != nil {
				if err := EncodeTable(w, nested); err != nil {
					return err
				}
			}

		default:
			if cellIdx >= len(row) {
				return newRowWrongFieldCount(cellIdx+1, len(row))
			}
			if err := encodePrimitiveCell(w, row[cellIdx], f.Type.Kind); err != nil {
				return err
			}
			cellIdx++
		}
	}
	return nil
}

func colourChannelValue(packed uint32, channel string) int64 {
	switch channel {
	case "r", "red":
		return int64((packed >> 16) & 0xFF)
	case "g", "green":
		return int64((packed >> 8) & 0xFF)
	case "b", "blue":
		return int64(packed & 0xFF)
	default:
		return 0
	}
}

// encodeEnumCell matches a cell's enum-name text case-insensitively against
// f's enum names; on miss it tries to parse the text as an integer; on
// total failure it falls back to the field's declared default (spec §4.C).
func encodeEnumCell(text string, f Field) int64 {
	for v, name := range f.EnumValues {
		if strings.EqualFold(name, text) {
			return v
		}
	}
	if v, ok := parseEnumDefault(text, f.Type.Kind); ok {
		return v
	}
	if f.HasDefault {
		if v, ok := parseEnumDefault(f.Default, f.Type.Kind); ok {
			return v
		}
	}
	return 0
}

func writeRawInteger(w *ByteWriter, kind TypeKind, v uint64) {
	switch kind {
	case TypeI16:
		w.U16(uint16(v))
	case TypeI32:
		w.U32(uint32(v))
	case TypeI64:
		w.U64(v)
	}
}

func encodePrimitiveCell(w *ByteWriter, cell Cell, kind TypeKind) error {
	if cell.Kind != kind {
		return newWrongFieldType(int(kind), int(cell.Kind))
	}
	switch kind {
	case TypeBool:
		w.Bool(cell.BoolV)
	case TypeF32:
		w.F32(cell.F32V)
	case TypeF64:
		w.F64(cell.F64V)
	case TypeI16:
		w.I16(cell.I16V)
	case TypeI32:
		w.I32(cell.I32V)
	case TypeI64:
		w.I64(cell.I64V)
	case TypeColourRGB:
		w.ColourRGB(cell.ColourV)
	case TypeStringU8:
		w.StringU8(unescapeString(cell.StrV))
	case TypeStringU16:
		w.StringU16(unescapeString(cell.StrV))
	case TypeOptionalStringU8:
		w.OptionalStringU8(unescapeString(cell.StrV))
	case TypeOptionalStringU16:
		w.OptionalStringU16(unescapeString(cell.StrV))
	default:
		return newErr(ErrMalformed, "unsupported primitive type kind on encode")
	}
	return nil
}

// Convenience constructors used by callers building rows by hand (tests,
// the assembly-kit ingestor, TSV import).

// BoolCell builds a TypeBool cell.
func BoolCell(v bool) Cell { return Cell{Kind: TypeBool, BoolV: v} }

// I16Cell builds a TypeI16 cell.
func I16Cell(v int16) Cell { return Cell{Kind: TypeI16, I16V: v} }

// I32Cell builds a TypeI32 cell.
func I32Cell(v int32) Cell { return Cell{Kind: TypeI32, I32V: v} }

// I64Cell builds a TypeI64 cell.
func I64Cell(v int64) Cell { return Cell{Kind: TypeI64, I64V: v} }

// F32Cell builds a TypeF32 cell.
func F32Cell(v float32) Cell { return Cell{Kind: TypeF32, F32V: v} }

// F64Cell builds a TypeF64 cell.
func F64Cell(v float64) Cell { return Cell{Kind: TypeF64, F64V: v} }

// ColourCell builds a TypeColourRGB cell from a packed 0xRRGGBB value.
func ColourCell(v uint32) Cell { return Cell{Kind: TypeColourRGB, ColourV: v} }

// StringU8Cell builds a TypeStringU8 cell.
func StringU8Cell(v string) Cell { return Cell{Kind: TypeStringU8, StrV: v} }

// StringU16Cell builds a TypeStringU16 cell.
func StringU16Cell(v string) Cell { return Cell{Kind: TypeStringU16, StrV: v} }
