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
	"crypto/sha256"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/buildinfo"
	"github.com/pipit-lang/pcc/pkg/codegen"
	"github.com/pipit-lang/pcc/pkg/codegen/chart"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/lir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/passmgr"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/schedule"
	"github.com/pipit-lang/pcc/pkg/sdf"
	"github.com/pipit-lang/pcc/pkg/thir"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

var zeroSpan = source.NewSpan(0, 0)

// thirArtifact bundles THIR with its certificate — pkg/thir.Build returns
// both, and the graph-building pass needs only the HIR/Solution it was
// already given, but certification failures must still surface before
// any pass downstream of THIR runs.
type thirArtifact struct {
	thir *thir.THIR
	cert *thir.Certificate
}

// scheduleArtifact is the fused PASS for every subgraph, in the same
// order as the graph's Subgraphs.
type scheduleArtifact struct {
	fused []*schedule.PASS
}

func stageToArtifact(stage string) (passmgr.Artifact, error) {
	switch stage {
	case "exe":
		return passmgr.ArtifactExe, nil
	case "cpp":
		return passmgr.ArtifactCodegen, nil
	case "ast":
		return passmgr.ArtifactAST, nil
	case "graph":
		return passmgr.ArtifactGraph, nil
	case "graph-dot":
		return passmgr.ArtifactGraph, nil
	case "schedule":
		return passmgr.ArtifactSchedule, nil
	case "timing-chart":
		return passmgr.ArtifactTimingChart, nil
	case "manifest":
		return passmgr.ArtifactManifest, nil
	case "build-info":
		return passmgr.ArtifactBuildInfo, nil
	case "interface":
		return passmgr.ArtifactInterface, nil
	default:
		return "", fmt.Errorf("unknown --emit stage %q", stage)
	}
}

// runCompile drives the whole pipeline for the root command and returns
// the process exit code.
func runCompile(cmd *cobra.Command, args []string) int {
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

	var sourcePath string
	if len(args) == 1 {
		sourcePath = args[0]
	}

	var srcBytes []byte
	if sourcePath != "" {
		srcBytes, err = os.ReadFile(sourcePath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return ExitUsage
		}
	}

	file := source.NewSourceFile(sourcePath, srcBytes)
	bag := diag.NewBag()

	stage := GetString(cmd, "emit")
	target, err := stageToArtifact(stage)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return ExitUsage
	}

	cliBinds := parseBindFlags(GetStringArray(cmd, "bind"))
	setMem := int64(0) // resolved once HIR's `set mem` is known, inside the sdf pass

	cc := mergeString(GetString(cmd, "cc"), cfg.CC)
	cflags := mergeString(GetString(cmd, "cflags"), cfg.CFlags)
	release := GetFlag(cmd, "release")

	m := newManager(file, reg, srcBytes, cliBinds, cc, cflags, release, &setMem)

	ctx := passmgr.NewContext(bag)
	stats := util.NewPerfStats()

	if err := passmgr.Execute(m, target, ctx); err != nil {
		log.Debug(err)
	}

	stats.Log("compile")

	format := diag.Human
	if GetString(cmd, "diagnostic-format") == "json" {
		format = diag.JSON
	}

	printer := diag.NewPrinter(format, file, os.Stdout)
	_ = printer.Print(os.Stderr, bag)

	if bag.HasErrors() {
		return ExitCompile
	}

	return renderStage(cmd, stage, ctx)
}

// parseBindFlags turns repeated `NAME=ENDPOINT` strings into a map,
// exiting with ExitUsage on a malformed entry.
func parseBindFlags(flags []string) map[string]string {
	out := map[string]string{}

	for _, f := range flags {
		name, endpoint, ok := strings.Cut(f, "=")
		if !ok {
			fmt.Fprintf(os.Stderr, "malformed --bind %q, expected NAME=ENDPOINT\n", f)
			os.Exit(ExitUsage)
		}

		out[name] = endpoint
	}

	return out
}

func buildRegistry(cmd *cobra.Command, cfg *ProjectConfig) (*registry.Registry, error) {
	actorMeta := mergeString(GetString(cmd, "actor-meta"), cfg.ActorMeta)
	if actorMeta != "" {
		data, err := os.ReadFile(actorMeta)
		if err != nil {
			return nil, fmt.Errorf("reading actor manifest %s: %w", actorMeta, err)
		}

		return registry.LoadManifest(data)
	}

	includes := mergeStrings(GetStringArray(cmd, "include"), cfg.Includes)
	searchPaths := mergeStrings(GetStringArray(cmd, "actor-path"), cfg.ActorPaths)

	return registry.Scan(registry.ScanConfig{
		Includes:    includes,
		SearchPaths: searchPaths,
		CC:          mergeString(GetString(cmd, "cc"), cfg.CC),
	})
}

// newManager registers every compiler pass once, wired purely by the
// artifacts they require/produce. setMem is threaded by pointer because
// it is resolved partway through the chain (from the source's own
// `set mem`, once HIR exists) rather than known up front; cc, cflags and
// release are plain values.
func newManager(file *source.File, reg *registry.Registry, srcBytes []byte, cliBinds map[string]string, cc, cflags string, release bool, setMem *int64) *passmgr.Manager {
	m := passmgr.NewManager()

	m.Register(passmgr.Pass{
		Name:     "parse",
		Produces: []passmgr.Artifact{passmgr.ArtifactAST},
		Run: func(c *passmgr.Context) error {
			c.Set(passmgr.ArtifactAST, parser.Parse(file, c.Diag()))
			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "resolve",
		Requires: []passmgr.Artifact{passmgr.ArtifactAST},
		Produces: []passmgr.Artifact{passmgr.ArtifactHIR},
		Run: func(c *passmgr.Context) error {
			prog, _ := c.Get(passmgr.ArtifactAST)
			h := hir.Resolve(prog.(*ast.Program), reg, c.Diag())
			*setMem = memSetting(h)
			c.Set(passmgr.ArtifactHIR, h)

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "infer",
		Requires: []passmgr.Artifact{passmgr.ArtifactHIR},
		Produces: []passmgr.Artifact{passmgr.ArtifactTypes},
		Run: func(c *passmgr.Context) error {
			h, _ := c.Get(passmgr.ArtifactHIR)
			c.Set(passmgr.ArtifactTypes, types.Infer(h.(*hir.Program), reg, c.Diag()))

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "lower",
		Requires: []passmgr.Artifact{passmgr.ArtifactHIR, passmgr.ArtifactTypes},
		Produces: []passmgr.Artifact{passmgr.ArtifactTHIR},
		Run: func(c *passmgr.Context) error {
			h, _ := c.Get(passmgr.ArtifactHIR)
			sol, _ := c.Get(passmgr.ArtifactTypes)

			t, cert := thir.Build(h.(*hir.Program), sol.(*types.Solution))
			thir.Verify(t, cert, c.Diag())
			c.Set(passmgr.ArtifactTHIR, thirArtifact{thir: t, cert: cert})

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "graph",
		Requires: []passmgr.Artifact{passmgr.ArtifactHIR, passmgr.ArtifactTypes, passmgr.ArtifactTHIR},
		Produces: []passmgr.Artifact{passmgr.ArtifactGraph},
		Run: func(c *passmgr.Context) error {
			h, _ := c.Get(passmgr.ArtifactHIR)
			sol, _ := c.Get(passmgr.ArtifactTypes)

			prog := h.(*hir.Program)
			endpoints := mergeBinds(prog, cliBinds)
			bound := make(map[string]bool, len(endpoints))

			for name := range endpoints {
				bound[name] = true
			}

			c.Set(passmgr.ArtifactGraph, graph.Build(prog, sol.(*types.Solution), reg, bound, c.Diag()))

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "sdf",
		Requires: []passmgr.Artifact{passmgr.ArtifactGraph, passmgr.ArtifactHIR},
		Produces: []passmgr.Artifact{passmgr.ArtifactSDF},
		Run: func(c *passmgr.Context) error {
			g, _ := c.Get(passmgr.ArtifactGraph)
			h, _ := c.Get(passmgr.ArtifactHIR)
			c.Set(passmgr.ArtifactSDF, sdf.Analyze(g.(*graph.Graph), h.(*hir.Program), *setMem, c.Diag()))

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "schedule",
		Requires: []passmgr.Artifact{passmgr.ArtifactGraph, passmgr.ArtifactSDF},
		Produces: []passmgr.Artifact{passmgr.ArtifactSchedule},
		Run: func(c *passmgr.Context) error {
			g, _ := c.Get(passmgr.ArtifactGraph)
			analyses, _ := c.Get(passmgr.ArtifactSDF)

			gg := g.(*graph.Graph)
			as := analyses.([]*sdf.Analysis)

			fused := make([]*schedule.PASS, len(gg.Subgraphs))

			for i, sg := range gg.Subgraphs {
				pass := schedule.Build(sg, as[i].Repetitions, c.Diag())
				schedule.Verify(sg, as[i].Repetitions, pass, c.Diag())
				fused[i] = schedule.Fuse(sg, pass)
			}

			c.Set(passmgr.ArtifactSchedule, scheduleArtifact{fused: fused})

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "lir",
		Requires: []passmgr.Artifact{passmgr.ArtifactGraph, passmgr.ArtifactSchedule, passmgr.ArtifactHIR},
		Produces: []passmgr.Artifact{passmgr.ArtifactLIR, passmgr.ArtifactBinds},
		Run: func(c *passmgr.Context) error {
			g, _ := c.Get(passmgr.ArtifactGraph)
			sched, _ := c.Get(passmgr.ArtifactSchedule)
			h, _ := c.Get(passmgr.ArtifactHIR)

			gg := g.(*graph.Graph)
			sa := sched.(scheduleArtifact)

			lirs := lir.Build(gg.Subgraphs, gg.Buffers, sa.fused)

			cert := lir.Verify(gg.Subgraphs, lirs, gg.Buffers, c.Diag())
			_ = cert

			rates := taskRates(h.(*hir.Program))
			endpoints := mergeBinds(h.(*hir.Program), cliBinds)
			fingerprint := fingerprintOf(srcBytes)

			binds := lir.InferBinds(gg.Buffers, rates, endpoints, fingerprint, c.Diag())

			c.Set(passmgr.ArtifactLIR, lirs)
			c.Set(passmgr.ArtifactBinds, binds)

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "codegen",
		Requires: []passmgr.Artifact{passmgr.ArtifactGraph, passmgr.ArtifactLIR, passmgr.ArtifactBinds},
		Produces: []passmgr.Artifact{passmgr.ArtifactCodegen},
		Run: func(c *passmgr.Context) error {
			g, _ := c.Get(passmgr.ArtifactGraph)
			lirs, _ := c.Get(passmgr.ArtifactLIR)
			binds, _ := c.Get(passmgr.ArtifactBinds)

			out, err := codegen.Emit(g.(*graph.Graph).Subgraphs, lirs.([]*lir.TaskLIR), binds.([]lir.Bind))
			if err != nil {
				c.Diag().Errorf(diag.ECertificateInternal, zeroSpan, "codegen: %v", err)
				return nil
			}

			c.Set(passmgr.ArtifactCodegen, out)

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "exe",
		Requires: []passmgr.Artifact{passmgr.ArtifactCodegen},
		Produces: []passmgr.Artifact{passmgr.ArtifactExe},
		Run: func(c *passmgr.Context) error {
			src, _ := c.Get(passmgr.ArtifactCodegen)

			path, err := compileExe(cc, cflags, src.(string), release)
			if err != nil {
				c.Diag().Errorf(diag.EExternalCompile, zeroSpan, "%v", err)
				return nil
			}

			c.Set(passmgr.ArtifactExe, path)

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "timing-chart",
		Requires: []passmgr.Artifact{passmgr.ArtifactGraph, passmgr.ArtifactSchedule, passmgr.ArtifactHIR},
		Produces: []passmgr.Artifact{passmgr.ArtifactTimingChart},
		Run: func(c *passmgr.Context) error {
			g, _ := c.Get(passmgr.ArtifactGraph)
			sched, _ := c.Get(passmgr.ArtifactSchedule)
			h, _ := c.Get(passmgr.ArtifactHIR)

			gg := g.(*graph.Graph)
			sa := sched.(scheduleArtifact)
			hh := h.(*hir.Program)

			names := make([]string, len(gg.Subgraphs))
			clocks := make([]float64, len(gg.Subgraphs))

			taskClock := map[string]float64{}
			for _, t := range hh.Tasks {
				if hz, ok := sdf.TaskFrequencyHz(t.Clock); ok {
					taskClock[t.Name] = hz
				}
			}

			for i, sg := range gg.Subgraphs {
				names[i] = sg.Name
				clocks[i] = taskClock[sg.Task]
			}

			c.Set(passmgr.ArtifactTimingChart, chart.BuildRows(names, sa.fused, clocks, clocks))

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "manifest",
		Produces: []passmgr.Artifact{passmgr.ArtifactManifest},
		Run: func(c *passmgr.Context) error {
			out, err := registry.EmitManifest(reg)
			if err != nil {
				c.Diag().Errorf(diag.ECertificateInternal, zeroSpan, "manifest: %v", err)
				return nil
			}

			c.Set(passmgr.ArtifactManifest, out)

			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "build-info",
		Produces: []passmgr.Artifact{passmgr.ArtifactBuildInfo},
		Run: func(c *passmgr.Context) error {
			c.Set(passmgr.ArtifactBuildInfo, buildinfo.Compute(srcBytes, reg))
			return nil
		},
	})

	m.Register(passmgr.Pass{
		Name:     "interface",
		Requires: []passmgr.Artifact{passmgr.ArtifactBinds},
		Produces: []passmgr.Artifact{passmgr.ArtifactInterface},
		Run: func(c *passmgr.Context) error {
			binds, _ := c.Get(passmgr.ArtifactBinds)
			c.Set(passmgr.ArtifactInterface, binds.([]lir.Bind))

			return nil
		},
	})

	return m
}

func fingerprintOf(src []byte) [32]byte {
	return sha256.Sum256(src)
}

func memSetting(h *hir.Program) int64 {
	expr, ok := h.Settings["mem"]
	if !ok {
		return 0
	}

	switch v := expr.(type) {
	case *ast.SizeLit:
		return v.Bytes
	case *ast.IntLit:
		return v.Value
	default:
		return 0
	}
}

func taskRates(h *hir.Program) map[string]float64 {
	rates := map[string]float64{}

	for _, t := range h.Tasks {
		if hz, ok := sdf.TaskFrequencyHz(t.Clock); ok {
			rates[t.Name] = hz
		}
	}

	return rates
}

// mergeBinds combines source-level `bind NAME = "endpoint"` declarations
// with CLI `--bind NAME=ENDPOINT` overrides; the CLI wins on conflict,
// since it is the more specific, deployment-time override.
func mergeBinds(h *hir.Program, cli map[string]string) map[string]string {
	out := map[string]string{}

	for name, expr := range h.Binds {
		if s, ok := expr.(*ast.StringLit); ok {
			out[name] = s.Value
		}
	}

	for name, endpoint := range cli {
		out[name] = endpoint
	}

	return out
}
