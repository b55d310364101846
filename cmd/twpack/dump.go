// Copyright 2024 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/saferwall/twpack"
)

var dumpTableName string

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Decode a file and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpTableName, "table", "", "table name, required for DB files (which carry no self-describing signature)")
}

func runDump(cmd *cobra.Command, args []string) error {
	mf, err := twpack.OpenFile(args[0])
	if err != nil {
		return fmt.Errorf("opening %s: %w", args[0], err)
	}
	defer mf.Close()

	data := mf.Bytes()

	var doc interface{}
	if dumpTableName != "" {
		doc, err = twpack.ReadDB(data, dumpTableName, nil, false, nil)
	} else {
		doc, _, err = twpack.Decode(data, &twpack.Options{})
	}
	if err != nil {
		return fmt.Errorf("decoding %s: %w", args[0], err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}
