// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

// Package cmd implements pcc's command-line interface: a
// single root command accepting a source file and an `--emit` stage,
// plus a `check` subcommand for diagnostics-only validation.
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pipit-lang/pcc/pkg/buildinfo"
)

// exit codes: 0 success, 1 compilation error, 2 usage error, 3 system
// error.
const (
	ExitSuccess = 0
	ExitCompile = 1
	ExitUsage   = 2
	ExitSystem  = 3
)

var rootCmd = &cobra.Command{
	Use:   "pcc [source]",
	Short: "pcc compiles a pipit dataflow program to a native executable.",
	Long: `pcc compiles a pipit dataflow program — a clock-driven network of
actors — through lexing, resolution, type inference, lowering,
SDF analysis, scheduling, and codegen, into a compiled C++ translation
unit and (by default) a linked executable.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "version") {
			fmt.Printf("pcc %s\n", buildinfo.CompilerVersion())
			return
		}

		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		os.Exit(runCompile(cmd, args))
	},
}

// Execute runs the root command; it is the sole entry point cmd/pcc/main.go
// calls.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(ExitUsage)
	}
}

func init() {
	rootCmd.Flags().String("emit", "exe", "artifact to emit: exe|cpp|ast|graph|graph-dot|schedule|timing-chart|manifest|build-info|interface")
	rootCmd.Flags().StringP("output", "o", "", "output path (defaults per --emit stage)")
	rootCmd.PersistentFlags().String("actor-meta", "", "schema-v1 actor manifest JSON file (manifest mode)")
	rootCmd.PersistentFlags().StringArrayP("include", "I", nil, "explicit actor header to scan (manifest-generation mode)")
	rootCmd.PersistentFlags().StringArray("actor-path", nil, "directory to recursively scan for actor headers (manifest-generation mode)")
	rootCmd.Flags().StringArray("bind", nil, "NAME=ENDPOINT external-interface override")
	rootCmd.Flags().String("interface-out", "", "path to write the interface-manifest artifact")
	rootCmd.PersistentFlags().String("cc", "c++", "external compiler command for --emit exe")
	rootCmd.Flags().String("cflags", "", "extra flags passed to the external compiler")
	rootCmd.Flags().Bool("release", false, "build the external compiler invocation in release mode")
	rootCmd.PersistentFlags().String("diagnostic-format", "human", "diagnostic output format: human|json")
	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.Flags().Bool("version", false, "print the compiler version and exit")

	rootCmd.AddCommand(checkCmd)
}

// GetFlag gets an expected bool flag, or exits with ExitUsage if the
// flag is misdeclared (a programming error in this package, not a user
// mistake, but still not something to panic over in a CLI).
func GetFlag(cmd *cobra.Command, flag string) bool {
	v, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	return v
}

// GetString gets an expected string flag.
func GetString(cmd *cobra.Command, flag string) string {
	v, err := cmd.Flags().GetString(flag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	return v
}

// GetStringArray gets an expected repeated-string flag.
func GetStringArray(cmd *cobra.Command, flag string) []string {
	v, err := cmd.Flags().GetStringArray(flag)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(ExitUsage)
	}

	return v
}
