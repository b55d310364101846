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

var configPath string

var rootCmd = &cobra.Command{
	Use:   "twpack",
	Short: "Inspect and convert Total War-engine container formats",
}

func loadConfig() *twpack.Config {
	if configPath == "" {
		return &twpack.Config{}
	}
	cfg, err := twpack.LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "twpack: failed to load config %s: %v\n", configPath, err)
		os.Exit(1)
	}
	return cfg
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a twpack TOML config file")
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(tsvCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
