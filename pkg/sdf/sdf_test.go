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
package sdf

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const sdfManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": [{"name": "value", "type": "float"}]},
    {"name": "mul", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": [{"name": "factor", "type": "float"}]},
    {"name": "sense", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "int32", "out_count": "1", "params": []},
    {"name": "gauge", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": []},
    {"name": "fft", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "$n", "params": [{"name": "n", "type": "int32"}]},
    {"name": "fir", "type_params": 0, "in_type": "float", "in_count": "$n", "out_type": "float", "out_count": "1", "params": [{"name": "n", "type": "int32"}]},
    {"name": "mag", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": []}
  ]
}`

func analyzeString(t *testing.T, text string, setMem int64) ([]*Analysis, *diag.Bag) {
	t.Helper()
	_, results, bag := buildAndAnalyze(t, text, setMem)
	return results, bag
}

func buildAndAnalyze(t *testing.T, text string, setMem int64) (*graph.Graph, []*Analysis, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(sdfManifest))
	assert.Equal(t, nil, err)

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	prog := parser.Parse(file, bag)
	assert.Equal(t, false, bag.HasErrors())

	h := hir.Resolve(prog, reg, bag)
	assert.Equal(t, false, bag.HasErrors())

	sol := types.Infer(h, reg, bag)
	assert.Equal(t, false, bag.HasErrors())

	g := graph.Build(h, sol, reg, nil, bag)
	assert.Equal(t, false, bag.HasErrors())

	return g, Analyze(g, h, setMem, bag), bag
}

func TestAnalyzeLinearChainBalances(t *testing.T) {
	results, bag := analyzeString(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n", 0)
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(results))
	assert.Equal(t, true, results[0].HasSolution)
	assert.Equal(t, 1, results[0].Repetitions[0])
	assert.Equal(t, 1, results[0].Repetitions[1])
}

func TestAnalyzeFeedbackCycleIsError(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz t {\n"+
		"  constant(1.0) | :loop -> discard1\n"+
		"  :loop | mul(1.0) | :loop -> discard2\n"+
		"}\n", 0)
	// a tap referencing itself downstream synthesizes a self-loop on the
	// fork node.
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeBufferBudgetExceeded(t *testing.T) {
	_, bag := analyzeString(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) | mul(3.0) -> out\n}\n", 1)
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeCrossClockMismatch(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 2kHz b {\n  @shared | mul(2.0) -> out\n}\n", 0)
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeCrossClockMatchIsFine(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 1kHz b {\n  @shared | mul(2.0) -> out\n}\n", 0)
	assert.Equal(t, false, bag.HasErrors())
}

func TestAnalyzeForkMultiRateSolves(t *testing.T) {
	g, results, bag := buildAndAnalyze(t, ""+
		"clock 1kHz t {\n"+
		"  constant(1.0) | fft(256) | :raw | fir(256) -> filtered\n"+
		"  :raw | mag() -> out\n"+
		"}\n", 0)
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(results))
	assert.Equal(t, true, results[0].HasSolution)

	sg := g.Subgraphs[0]
	reps := results[0].Repetitions

	for i, n := range sg.Nodes {
		switch n.Actor {
		case "fft":
			assert.Equal(t, 1, reps[i])
		case "fir":
			assert.Equal(t, 1, reps[i])
		case "mag":
			assert.Equal(t, 256, reps[i])
		}
	}
}

func TestAnalyzeDirectRateMismatchIsError(t *testing.T) {
	_, bag := analyzeString(t, "clock 1kHz t {\n  constant(1.0) | fir(256) -> out\n}\n", 0)
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeCrossClockSameFreqRateConflict(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 1kHz b {\n  @shared | fir(256) -> out\n}\n", 0)
	// writer produces 1 token/firing, reader consumes 256, both clocked at
	// 1kHz: the clocks agree so the disagreement is purely in token count.
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeCrossClockRateCompensatesFrequency(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 256kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 1kHz b {\n  @shared | fir(256) -> out\n}\n", 0)
	// 1 token/firing x 256kHz == 256 tokens/firing x 1kHz: the rate
	// difference exactly compensates the clock difference.
	assert.Equal(t, false, bag.HasErrors())
}

func TestAnalyzeModalSwitchBufferAcceptsInt32(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz t {\n"+
		"  control {\n    sense() -> ctrl\n  }\n"+
		"  mode quiet {\n    constant(0.0) -> out\n  }\n"+
		"  mode loud {\n    constant(1.0) -> out\n  }\n"+
		"  switch(ctrl, quiet, loud) default quiet\n"+
		"}\n", 0)
	assert.Equal(t, false, bag.HasErrors())
}

func TestAnalyzeModalSwitchBufferRejectsFloat(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"clock 1kHz t {\n"+
		"  control {\n    gauge() -> ctrl\n  }\n"+
		"  mode quiet {\n    constant(0.0) -> out\n  }\n"+
		"  mode loud {\n    constant(1.0) -> out\n  }\n"+
		"  switch(ctrl, quiet, loud) default quiet\n"+
		"}\n", 0)
	assert.Equal(t, true, bag.HasErrors())
}

func TestAnalyzeModalSwitchParamAcceptsInt(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"param sel = 0\n"+
		"clock 1kHz t {\n"+
		"  control {\n    sense() -> unused\n  }\n"+
		"  mode quiet {\n    constant(0.0) -> out\n  }\n"+
		"  mode loud {\n    constant(1.0) -> out\n  }\n"+
		"  switch($sel, quiet, loud) default quiet\n"+
		"}\n", 0)
	assert.Equal(t, false, bag.HasErrors())
}

func TestAnalyzeModalSwitchParamRejectsFloat(t *testing.T) {
	_, bag := analyzeString(t, ""+
		"param sel = 0.0\n"+
		"clock 1kHz t {\n"+
		"  control {\n    sense() -> unused\n  }\n"+
		"  mode quiet {\n    constant(0.0) -> out\n  }\n"+
		"  mode loud {\n    constant(1.0) -> out\n  }\n"+
		"  switch($sel, quiet, loud) default quiet\n"+
		"}\n", 0)
	assert.Equal(t, true, bag.HasErrors())
}
