// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package twpack

import (
	"encoding/json"
	"strings"
)

// DependencyRow is one (reference_value, lookup_value) pair produced by
// GatherDependencyData (spec §4.C, "Dependency data").
type DependencyRow struct {
	Value  string
	Lookup string
}

// GatherDependencyData scans sources in order — conventionally the current
// pack's copy of the referenced table, then a vanilla dependency cache, then
// an assembly-kit fake-table cache — collecting a (value, lookup) pair per
// row of refColumn, using the first non-empty column in lookupColumns as the
// display value. Duplicate values (by exact string match) after the first
// occurrence are dropped (spec §4.C).
func GatherDependencyData(sources []*Table, refColumn string, lookupColumns []string) ([]DependencyRow, error) {
	seen := map[string]bool{}
	var out []DependencyRow
	for _, src := range sources {
		if src == nil {
			continue
		}
		processed := ProcessedFields(src.Definition)
		refIdx := indexOfField(processed, refColumn)
		if refIdx < 0 {
			continue
		}
		lookupIdx := make([]int, 0, len(lookupColumns))
		for _, name := range lookupColumns {
			lookupIdx = append(lookupIdx, indexOfField(processed, name))
		}
		for _, row := range src.Rows {
			if refIdx >= len(row) {
				continue
			}
			value, err := formatTSVCell(row[refIdx], processed[refIdx])
			if err != nil {
				return nil, err
			}
			if seen[value] {
				continue
			}
			seen[value] = true
			lookup := ""
			for _, idx := range lookupIdx {
				if idx < 0 || idx >= len(row) {
					continue
				}
				text, err := formatTSVCell(row[idx], processed[idx])
				if err != nil {
					return nil, err
				}
				if text != "" {
					lookup = text
					break
				}
			}
			out = append(out, DependencyRow{Value: value, Lookup: lookup})
		}
	}
	return out, nil
}

// rowJSONForm renders row as a canonical JSON array of plain values, the
// equality basis the optimizer and vanilla-row comparison both use (spec
// §4.C, "Optimiser").
func rowJSONForm(row Row) (string, error) {
	values := make([]interface{}, len(row))
	for i, cell := range row {
		values[i] = cellPlainValue(cell)
	}
	b, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func cellPlainValue(cell Cell) interface{} {
	switch cell.Kind {
	case TypeBool:
		return cell.BoolV
	case TypeI16:
		return cell.I16V
	case TypeI32:
		return cell.I32V
	case TypeI64:
		return cell.I64V
	case TypeF32:
		return cell.F32V
	case TypeF64:
		return cell.F64V
	case TypeColourRGB:
		return cell.ColourV
	case TypeStringU8, TypeStringU16, TypeOptionalStringU8, TypeOptionalStringU16:
		return cell.StrV
	default:
		return nil
	}
}

// newRowTemplate builds the all-default row the UI inserts for "add new
// row", used by Optimize to drop that placeholder before vanilla comparison.
func newRowTemplate(processed []Field) Row {
	row := make(Row, len(processed))
	for i, f := range processed {
		row[i] = defaultCell(f)
	}
	return row
}

// Optimize removes, in place, every row of t whose JSON form matches a row
// in any table in vanilla, drops the synthetic "new row" template, and
// dedupes the remainder by the first key column (spec §4.C, "Optimiser";
// spec §8, "Optimiser idempotence"). It reports whether t is now empty.
func Optimize(t *Table, vanilla []*Table) (bool, error) {
	processed := ProcessedFields(t.Definition)

	vanillaForms := map[string]bool{}
	for _, v := range vanilla {
		if v == nil {
			continue
		}
		for _, row := range v.Rows {
			form, err := rowJSONForm(row)
			if err != nil {
				return false, err
			}
			vanillaForms[form] = true
		}
	}

	templateForm, err := rowJSONForm(newRowTemplate(processed))
	if err != nil {
		return false, err
	}

	keyIdx := -1
	for i, f := range processed {
		if f.IsKey {
			keyIdx = i
			break
		}
	}

	seenKeys := map[string]bool{}
	kept := make([]Row, 0, len(t.Rows))
	for _, row := range t.Rows {
		form, err := rowJSONForm(row)
		if err != nil {
			return false, err
		}
		if form == templateForm || vanillaForms[form] {
			continue
		}
		if keyIdx >= 0 && keyIdx < len(row) {
			keyText, err := formatTSVCell(row[keyIdx], processed[keyIdx])
			if err != nil {
				return false, err
			}
			key := strings.ToLower(keyText)
			if seenKeys[key] {
				continue
			}
			seenKeys[key] = true
		}
		kept = append(kept, row)
	}

	t.Rows = kept
	return len(t.Rows) == 0, nil
}
