// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saferwall/twpack"
)

var tsvExportTable string

var tsvCmd = &cobra.Command{
	Use:   "tsv",
	Short: "Export or import tables as TSV (spec §4.C)",
}

var tsvExportCmd = &cobra.Command{
	Use:   "export <file> <out.tsv>",
	Short: "Decode a DB/Loc file and write it out as TSV",
	Args:  cobra.ExactArgs(2),
	RunE:  runTSVExport,
}

var tsvImportCmd = &cobra.Command{
	Use:   "import <in.tsv>",
	Short: "Parse a TSV file against an empty schema and print its kind, path and row count",
	Args:  cobra.ExactArgs(1),
	RunE:  runTSVImport,
}

func init() {
	tsvExportCmd.Flags().StringVar(&tsvExportTable, "table", "", "table name, required for DB files")
	tsvCmd.AddCommand(tsvExportCmd)
	tsvCmd.AddCommand(tsvImportCmd)
}

func runTSVExport(cmd *cobra.Command, args []string) error {
	mf, err := twpack.OpenFile(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer mf.Close()

	var table *twpack.Table
	var kind twpack.Kind
	switch {
	case tsvExportTable != "":
		db, err := twpack.ReadDB(mf.Bytes(), tsvExportTable, nil, false, nil)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}
		table = db.Table
		kind = twpack.DBKind(tsvExportTable)
	default:
		loc, err := twpack.ReadLoc(mf.Bytes(), nil, false, nil)
		if err != nil {
			return fmt.Errorf("decoding %s: %w", args[0], err)
		}
		table = loc.Table
		kind = twpack.LocKind
	}

	out, err := twpack.ExportTSV(table, kind, args[0])
	if err != nil {
		return fmt.Errorf("exporting TSV: %w", err)
	}
	return os.WriteFile(args[1], out, 0o644)
}

func runTSVImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}

	// The core Schema provider is an explicit argument everywhere in this
	// library (spec §9); the CLI owns no schema-persistence format of its
	// own, so callers wanting real Definitions wire up a *twpack.Schema
	// populated from their own tooling before calling ImportTSV directly.
	schema := twpack.NewSchema()

	table, kind, path, err := twpack.ImportTSV(data, schema)
	if err != nil {
		return fmt.Errorf("importing %s: %w", args[0], err)
	}

	fmt.Printf("kind=%s path=%s rows=%d\n", kind.String(), path, len(table.Rows))
	return nil
}
