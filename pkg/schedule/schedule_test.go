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
package schedule

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/sdf"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const schedManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": [{"name": "value", "type": "float"}]},
    {"name": "mul", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": [{"name": "factor", "type": "float"}]}
  ]
}`

func buildOne(t *testing.T, text string) (*graph.Subgraph, []int, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(schedManifest))
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

	analyses := sdf.Analyze(g, h, 0, bag)
	assert.Equal(t, false, bag.HasErrors())

	return g.Subgraphs[0], analyses[0].Repetitions, bag
}

func TestKFactor(t *testing.T) {
	assert.Equal(t, 1, KFactor(44100, 44100))
	assert.Equal(t, 1, KFactor(44100, 0))
	assert.Equal(t, 4, KFactor(192000, 48000))
	assert.Equal(t, 2, KFactor(44101, 44100))
}

func TestBuildLinearChainSchedulesInOrder(t *testing.T) {
	sg, reps, bag := buildOne(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	pass := Build(sg, reps, bag)
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 2, len(pass.Entries))
	assert.Equal(t, 0, pass.Entries[0].Node)
	assert.Equal(t, 1, pass.Entries[1].Node)
}

func TestVerifyAcceptsWellFormedPass(t *testing.T) {
	sg, reps, bag := buildOne(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	pass := Build(sg, reps, bag)

	verifyBag := diag.NewBag()
	cert := Verify(sg, reps, pass, verifyBag)
	assert.Equal(t, true, cert.S1)
	assert.Equal(t, true, cert.S2)
	assert.Equal(t, false, verifyBag.HasErrors())
}

func TestVerifyRejectsDependencyViolation(t *testing.T) {
	sg, reps, bag := buildOne(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	broken := &PASS{SubgraphName: sg.Name, Entries: []Entry{
		{Node: 1, Multiplicity: 1}, // mul fires before constant ever has
		{Node: 0, Multiplicity: 1},
	}}

	verifyBag := diag.NewBag()
	cert := Verify(sg, reps, broken, verifyBag)
	assert.Equal(t, false, cert.S2)
	assert.Equal(t, true, verifyBag.HasErrors())
}

func TestFuseMergesLinearChain(t *testing.T) {
	sg, reps, bag := buildOne(t, "clock 1kHz t {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	pass := Build(sg, reps, bag)
	fused := Fuse(sg, pass)

	assert.Equal(t, 2, len(fused.Entries))
	assert.Equal(t, true, fused.Entries[0].Fused)
	assert.Equal(t, false, fused.Entries[1].Fused)
}
