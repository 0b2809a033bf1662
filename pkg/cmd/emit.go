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
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/pipit-lang/pcc/pkg/codegen/chart"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/lir"
	"github.com/pipit-lang/pcc/pkg/passmgr"
)

// renderStage writes the artifact the user's --emit stage asked for to
// --output (or stdout, for stages with no conventional default file) and
// returns the process exit code. Diagnostics have already been printed
// and checked for errors by the time this runs.
func renderStage(cmd *cobra.Command, stage string, ctx *passmgr.Context) int {
	out := GetString(cmd, "output")

	var (
		body []byte
		err  error
	)

	switch stage {
	case "exe":
		path, _ := ctx.Get(passmgr.ArtifactExe)
		if out == "" {
			out = "a.out"
		}

		if err := copyFile(path.(string), out); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitSystem
		}

		return ExitSuccess

	case "cpp":
		src, _ := ctx.Get(passmgr.ArtifactCodegen)
		body = []byte(src.(string))

	case "ast":
		prog, _ := ctx.Get(passmgr.ArtifactAST)
		body, err = json.MarshalIndent(prog, "", "  ")

	case "graph":
		g, _ := ctx.Get(passmgr.ArtifactGraph)
		body, err = json.MarshalIndent(g, "", "  ")

	case "graph-dot":
		g, _ := ctx.Get(passmgr.ArtifactGraph)
		body = []byte(renderDOT(g.(*graph.Graph)))

	case "schedule":
		sched, _ := ctx.Get(passmgr.ArtifactSchedule)
		body, err = json.MarshalIndent(sched.(scheduleArtifact).fused, "", "  ")

	case "timing-chart":
		rows, _ := ctx.Get(passmgr.ArtifactTimingChart)
		if out == "" && term.IsTerminal(int(os.Stdout.Fd())) {
			return chartExitCode(chart.Run(rows.([]chart.Row)))
		}

		body = []byte(chart.RenderStatic(rows.([]chart.Row)))

	case "manifest":
		m, _ := ctx.Get(passmgr.ArtifactManifest)
		body = m.([]byte)

	case "build-info":
		bi, _ := ctx.Get(passmgr.ArtifactBuildInfo)
		body, err = json.MarshalIndent(bi, "", "  ")

	case "interface":
		binds, _ := ctx.Get(passmgr.ArtifactInterface)
		body, err = json.MarshalIndent(binds.([]lir.Bind), "", "  ")
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitSystem
	}

	if interfaceOut := GetString(cmd, "interface-out"); interfaceOut != "" && stage != "interface" {
		if binds, ok := ctx.Get(passmgr.ArtifactBinds); ok {
			ifaceBody, _ := json.MarshalIndent(binds.([]lir.Bind), "", "  ")
			if err := os.WriteFile(interfaceOut, ifaceBody, 0o644); err != nil {
				fmt.Fprintln(os.Stderr, err)
				return ExitSystem
			}
		}
	}

	if out == "" {
		fmt.Println(string(body))
		return ExitSuccess
	}

	if err := os.WriteFile(out, body, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitSystem
	}

	return ExitSuccess
}

func chartExitCode(err error) int {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitSystem
	}

	return ExitSuccess
}

// renderDOT writes a Graphviz DOT rendering of g's subgraphs: one
// cluster per subgraph, one node per graph.Node, intra-subgraph edges
// solid, inter-subgraph buffer edges dashed.
func renderDOT(g *graph.Graph) string {
	var b strings.Builder

	b.WriteString("digraph pipit {\n")

	for si, sg := range g.Subgraphs {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", si)
		fmt.Fprintf(&b, "    label=%q;\n", sg.Name)

		for _, n := range sg.Nodes {
			fmt.Fprintf(&b, "    %s_%d [label=%q];\n", dotSafe(sg.Name), n.ID, n.Actor)
		}

		for _, e := range sg.Edges {
			fmt.Fprintf(&b, "    %s_%d -> %s_%d;\n", dotSafe(sg.Name), e.From, dotSafe(sg.Name), e.To)
		}

		b.WriteString("  }\n")
	}

	for _, be := range g.Buffers {
		for i, rg := range be.ReaderGraphs {
			fmt.Fprintf(&b, "  %s_%d -> %s_%d [style=dashed, label=%q];\n",
				dotSafe(be.WriterGraph), be.WriterNode, dotSafe(rg), be.ReaderNodes[i], be.Buffer)
		}
	}

	b.WriteString("}\n")

	return b.String()
}

func dotSafe(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0o755)
}
