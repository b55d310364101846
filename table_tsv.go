// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// ExportTSV renders t as TAB-delimited text with the two-line header
// described in spec §4.C ("TSV round-trip"): a sorted column-name line,
// followed by a single-field metadata line `#<kind>;<version>;<path>`.
// Tables with any Sequence-typed column are rejected — TSV has no way to
// represent nested rows.
func ExportTSV(t *Table, kind Kind, filePath string) ([]byte, error) {
	processed := ProcessedFields(t.Definition)
	for _, f := range processed {
		if f.Type.Kind == TypeSequenceU16 || f.Type.Kind == TypeSequenceU32 {
			return nil, newErr(ErrUnsupportedDataType, "TSV cannot represent a sequence column: "+f.Name)
		}
	}

	names := sortedColumnNames(processed)
	nameToIdx := map[string]int{}
	for i, f := range processed {
		nameToIdx[f.Name] = i
	}

	var buf bytes.Buffer
	buf.WriteString(strings.Join(names, "\t"))
	buf.WriteByte('\n')
	fmt.Fprintf(&buf, "#%s;%d;%s\n", kind.String(), t.Definition.Version, filePath)

	for _, row := range t.Rows {
		cells := make([]string, len(names))
		for i, name := range names {
			idx := nameToIdx[name]
			text, err := formatTSVCell(row[idx], processed[idx])
			if err != nil {
				return nil, err
			}
			cells[i] = text
		}
		buf.WriteString(strings.Join(cells, "\t"))
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// ImportTSV parses a TSV file against a Definition resolved by kind/version
// from the file's own metadata line (spec §4.C, §6 "import_tsv"). Columns
// the Definition expects but the file's header omits take the field's
// type-specific default.
func ImportTSV(data []byte, schema *Schema) (*Table, Kind, string, error) {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	if !scanner.Scan() {
		return nil, Kind{}, "", newErr(ErrImportTSVIncorrectRow, "empty TSV file")
	}
	header := strings.Split(scanner.Text(), "\t")

	if !scanner.Scan() {
		return nil, Kind{}, "", newErr(ErrImportTSVIncorrectRow, "missing metadata line")
	}
	kind, version, filePath, err := parseTSVMetadata(scanner.Text())
	if err != nil {
		return nil, Kind{}, "", err
	}

	def, err := schema.Get(kind, version)
	if err != nil {
		return nil, Kind{}, "", err
	}
	processed := ProcessedFields(def)
	for _, f := range processed {
		if f.Type.Kind == TypeSequenceU16 || f.Type.Kind == TypeSequenceU32 {
			return nil, Kind{}, "", newErr(ErrUnsupportedDataType, "TSV cannot represent a sequence column: "+f.Name)
		}
	}

	fieldByName := map[string]Field{}
	for _, f := range processed {
		fieldByName[f.Name] = f
	}
	colField := make([]Field, len(header))
	colPresent := make([]bool, len(header))
	for i, name := range header {
		if f, ok := fieldByName[name]; ok {
			colField[i] = f
			colPresent[i] = true
		}
	}

	var rows []Row
	rowIdx := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		cols := strings.Split(line, "\t")
		if len(cols) != len(header) {
			return nil, Kind{}, "", &CodecError{
				Kind: ErrImportTSVIncorrectRow, Row: rowIdx, Col: len(cols), HasRowCol: true,
				Reason: "row does not have the header's column count",
			}
		}
		row := make(Row, len(processed))
		seen := make([]bool, len(processed))
		for i, text := range cols {
			if !colPresent[i] {
				continue
			}
			f := colField[i]
			cell, err := parseTSVCell(text, f)
			if err != nil {
				return nil, Kind{}, "", &CodecError{
					Kind: ErrImportTSVWrongType, Row: rowIdx, Col: i, HasRowCol: true,
					Reason: err.Error(),
				}
			}
			idx := indexOfField(processed, f.Name)
			row[idx] = cell
			seen[idx] = true
		}
		for i, f := range processed {
			if !seen[i] {
				row[i] = defaultCell(f)
			}
		}
		rows = append(rows, row)
		rowIdx++
	}
	if err := scanner.Err(); err != nil {
		return nil, Kind{}, "", newErrWrap(ErrImportTSVIncorrectRow, "scanning TSV body", err)
	}

	table := NewTable(def)
	if err := table.SetRows(rows); err != nil {
		return nil, Kind{}, "", err
	}
	return table, kind, filePath, nil
}

func indexOfField(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// parseTSVMetadata accepts both the single-field `#<kind>;<version>;<path>`
// form and the legacy three-column `#<kind>\t<version>\t<path>` form.
func parseTSVMetadata(line string) (Kind, int32, string, error) {
	if strings.Contains(line, "\t") {
		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			return Kind{}, 0, "", newErr(ErrImportTSVIncorrectRow, "malformed legacy metadata line")
		}
		return parseTSVMetadataParts(parts[0], parts[1], parts[2])
	}
	line = strings.TrimPrefix(line, "#")
	parts := strings.SplitN(line, ";", 3)
	if len(parts) != 3 {
		return Kind{}, 0, "", newErr(ErrImportTSVIncorrectRow, "malformed metadata line")
	}
	return parseTSVMetadataParts(parts[0], parts[1], parts[2])
}

func parseTSVMetadataParts(kindStr, versionStr, path string) (Kind, int32, string, error) {
	kind, err := parseKindString(strings.TrimPrefix(kindStr, "#"))
	if err != nil {
		return Kind{}, 0, "", err
	}
	v, err := strconv.ParseInt(strings.TrimSpace(versionStr), 10, 32)
	if err != nil {
		return Kind{}, 0, "", newErrWrap(ErrImportTSVInvalidVersion, "version is not an integer", err)
	}
	return kind, int32(v), path, nil
}

func parseKindString(s string) (Kind, error) {
	switch {
	case s == CategoryLoc.String():
		return LocKind, nil
	case s == CategoryAnimTable.String():
		return AnimTableKind, nil
	case s == CategoryMatchedCombat.String():
		return MatchedCombatKind, nil
	case strings.HasPrefix(s, CategoryDB.String()+":"):
		return DBKind(strings.TrimPrefix(s, CategoryDB.String()+":")), nil
	default:
		return Kind{}, newErr(ErrImportTSVIncorrectRow, "unrecognised kind in metadata line: "+s)
	}
}

func formatTSVCell(cell Cell, f Field) (string, error) {
	switch cell.Kind {
	case TypeBool:
		return strconv.FormatBool(cell.BoolV), nil
	case TypeI16:
		return strconv.FormatInt(int64(cell.I16V), 10), nil
	case TypeI32:
		return strconv.FormatInt(int64(cell.I32V), 10), nil
	case TypeI64:
		return strconv.FormatInt(cell.I64V, 10), nil
	case TypeF32:
		return strconv.FormatFloat(float64(cell.F32V), 'f', -1, 32), nil
	case TypeF64:
		return strconv.FormatFloat(cell.F64V, 'f', -1, 64), nil
	case TypeColourRGB:
		return fmt.Sprintf("%06X", cell.ColourV), nil
	case TypeStringU8, TypeStringU16, TypeOptionalStringU8, TypeOptionalStringU16:
		return cell.StrV, nil
	default:
		return "", newErr(ErrUnsupportedDataType, "cannot render "+f.Name+" to TSV")
	}
}

func parseTSVCell(text string, f Field) (Cell, error) {
	switch f.Type.Kind {
	case TypeBool:
		switch strings.ToLower(text) {
		case "true", "1":
			return Cell{Kind: TypeBool, BoolV: true}, nil
		case "false", "0":
			return Cell{Kind: TypeBool, BoolV: false}, nil
		default:
			return Cell{}, fmt.Errorf("invalid bool literal %q", text)
		}
	case TypeI16:
		v, err := strconv.ParseInt(text, 10, 16)
		return Cell{Kind: TypeI16, I16V: int16(v)}, err
	case TypeI32:
		v, err := strconv.ParseInt(text, 10, 32)
		return Cell{Kind: TypeI32, I32V: int32(v)}, err
	case TypeI64:
		v, err := strconv.ParseInt(text, 10, 64)
		return Cell{Kind: TypeI64, I64V: v}, err
	case TypeF32:
		v, err := strconv.ParseFloat(text, 32)
		return Cell{Kind: TypeF32, F32V: float32(v)}, err
	case TypeF64:
		v, err := strconv.ParseFloat(text, 64)
		return Cell{Kind: TypeF64, F64V: v}, err
	case TypeColourRGB:
		v, err := strconv.ParseUint(text, 16, 32)
		return Cell{Kind: TypeColourRGB, ColourV: uint32(v)}, err
	case TypeStringU8, TypeStringU16, TypeOptionalStringU8, TypeOptionalStringU16:
		return Cell{Kind: f.Type.Kind, StrV: text}, nil
	default:
		return Cell{}, fmt.Errorf("unsupported TSV column type for %s", f.Name)
	}
}

// defaultCell builds the type-specific zero value for a column missing from
// a TSV file's header, honouring the field's declared default when set.
func defaultCell(f Field) Cell {
	if f.HasDefault {
		if cell, err := parseTSVCell(f.Default, f); err == nil {
			return cell
		}
	}
	switch f.Type.Kind {
	case TypeColourRGB:
		return Cell{Kind: TypeColourRGB}
	default:
		return Cell{Kind: f.Type.Kind}
	}
}
