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
package graph

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const graphManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": [{"name": "value", "type": "float"}]},
    {"name": "mul", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": [{"name": "factor", "type": "float"}]},
    {"name": "sense", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "int32", "out_count": "1", "params": []},
    {"name": "fft", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "$n", "params": [{"name": "n", "type": "int32"}]},
    {"name": "reshape", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "$shape0*$shape1", "params": []}
  ]
}`

func buildGraph(t *testing.T, text string) (*Graph, *diag.Bag) {
	t.Helper()
	return buildGraphWithBinds(t, text, nil)
}

func buildGraphWithBinds(t *testing.T, text string, binds map[string]bool) (*Graph, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(graphManifest))
	assert.Equal(t, nil, err)

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	prog := parser.Parse(file, bag)
	assert.Equal(t, false, bag.HasErrors())

	h := hir.Resolve(prog, reg, bag)
	assert.Equal(t, false, bag.HasErrors())

	sol := types.Infer(h, reg, bag)
	assert.Equal(t, false, bag.HasErrors())

	g := Build(h, sol, reg, binds, bag)

	return g, bag
}

func TestBuildSingleSubgraph(t *testing.T) {
	g, bag := buildGraph(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(g.Subgraphs))
	assert.Equal(t, "plain", g.Subgraphs[0].Kind)
	assert.Equal(t, 2, len(g.Subgraphs[0].Nodes))
	assert.Equal(t, 1, len(g.Subgraphs[0].Edges))
}

func TestBuildTapForksHaveSharedNode(t *testing.T) {
	g, bag := buildGraph(t, ""+
		"clock 1kHz t {\n"+
		"  constant(1.0) | :tapped -> out\n"+
		"  :tapped | mul(2.0) -> doubled\n"+
		"}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(g.Subgraphs))

	var forks int
	for _, n := range g.Subgraphs[0].Nodes {
		if n.Kind == NodeFork {
			forks++
		}
	}

	assert.Equal(t, 1, forks)
}

func TestBuildSharedBufferCrossesSubgraphs(t *testing.T) {
	g, bag := buildGraph(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 1kHz b {\n  @shared | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 2, len(g.Buffers))
	assert.Equal(t, "shared", g.Buffers[1].Buffer)
	assert.Equal(t, "a", g.Buffers[1].WriterGraph)
	assert.Equal(t, 1, len(g.Buffers[1].ReaderGraphs))
	assert.Equal(t, "b", g.Buffers[1].ReaderGraphs[0])
}

func TestBuildModalSplitsIntoControlAndModeSubgraphs(t *testing.T) {
	src := "param sel = 0\n" +
		"clock 48kHz audio {\n" +
		"  control {\n    sense() -> ctrl\n  }\n" +
		"  mode quiet {\n    constant(0.0) -> out\n  }\n" +
		"  mode loud {\n    constant(1.0) -> out\n  }\n" +
		"  switch(ctrl, quiet, loud) default quiet\n" +
		"}\n"

	g, bag := buildGraph(t, src)
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 3, len(g.Subgraphs))
	assert.Equal(t, "control", g.Subgraphs[0].Kind)
	assert.Equal(t, "mode", g.Subgraphs[1].Kind)
	assert.Equal(t, "quiet", g.Subgraphs[1].Mode)
	assert.Equal(t, "loud", g.Subgraphs[2].Mode)
}

func TestBuildUnwrittenSharedBufferIsError(t *testing.T) {
	_, bag := buildGraph(t, "clock 1kHz b {\n  @ghost | mul(2.0) -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestBuildExternallyFedBufferIsAccepted(t *testing.T) {
	g, bag := buildGraphWithBinds(t, "clock 1kHz b {\n  @fed | mul(2.0) -> out\n}\n", map[string]bool{"fed": true})
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 2, len(g.Buffers))
	assert.Equal(t, "fed", g.Buffers[1].Buffer)
	assert.Equal(t, "", g.Buffers[1].WriterGraph)
	assert.Equal(t, -1, g.Buffers[1].WriterNode)
}

func TestBuildResolvesCallSiteRate(t *testing.T) {
	g, bag := buildGraph(t, "clock 1kHz t {\n  constant(1.0) | fft(256) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, int64(256), g.Subgraphs[0].Nodes[1].OutRate)
}

func TestBuildShapeAnnotationTooShortIsShapeConflict(t *testing.T) {
	_, bag := buildGraph(t, "clock 1kHz t {\n  constant(1.0) | reshape()[256] -> out\n}\n")
	// reshape's out_count references shape0 and shape1, but the call only
	// supplies one dimension.
	assert.Equal(t, true, bag.HasErrors())
}

func TestBuildShapeAnnotationFullRankResolves(t *testing.T) {
	g, bag := buildGraph(t, "clock 1kHz t {\n  constant(1.0) | reshape()[16, 16] -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, int64(256), g.Subgraphs[0].Nodes[1].OutRate)
}
