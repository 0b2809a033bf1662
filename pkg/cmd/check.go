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
package cmd

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/thir"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// checkCmd runs only the front half of the pipeline — parse, resolve,
// infer, lower, certify — and reports diagnostics without ever reaching
// graph building, SDF analysis, scheduling, or codegen. It exists for
// editor integrations and pre-commit hooks that want fast feedback on a
// source file without paying for a full compile.
var checkCmd = &cobra.Command{
	Use:   "check [source]",
	Short: "validate a pipit source file through lowering certification, without compiling it.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}

		os.Exit(runCheck(cmd, args))
	},
}

func runCheck(cmd *cobra.Command, args []string) int {
	cfg, err := LoadProjectConfig("pcc.yaml")
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsage
	}

	reg, err := buildRegistry(cmd, cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitSystem
	}

	srcBytes, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsage
	}

	file := source.NewSourceFile(args[0], srcBytes)
	bag := diag.NewBag()

	prog := parser.Parse(file, bag)
	h := hir.Resolve(prog, reg, bag)
	sol := types.Infer(h, reg, bag)
	t, cert := thir.Build(h, sol)
	thir.Verify(t, cert, bag)

	format := diag.Human
	if GetString(cmd, "diagnostic-format") == "json" {
		format = diag.JSON
	}

	printer := diag.NewPrinter(format, file, os.Stdout)
	_ = printer.Print(os.Stderr, bag)

	if bag.HasErrors() {
		return ExitCompile
	}

	return ExitSuccess
}
