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
package lir

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/schedule"
	"github.com/pipit-lang/pcc/pkg/sdf"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const lirManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": [{"name": "value", "type": "float"}]},
    {"name": "mul", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": [{"name": "factor", "type": "float"}]}
  ]
}`

func buildAll(t *testing.T, text string) (*graph.Graph, []*schedule.PASS, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(lirManifest))
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

	fused := make([]*schedule.PASS, len(g.Subgraphs))
	for i, sg := range g.Subgraphs {
		pass := schedule.Build(sg, analyses[i].Repetitions, bag)
		fused[i] = schedule.Fuse(sg, pass)
	}

	return g, fused, bag
}

func TestBuildClassifiesEdges(t *testing.T) {
	g, fused, bag := buildAll(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> shared\n}\n"+
		"clock 1kHz b {\n  @shared | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	lirs := Build(g.Subgraphs, g.Buffers, fused)
	assert.Equal(t, 2, len(lirs))

	verifyBag := diag.NewBag()
	cert := Verify(g.Subgraphs, lirs, g.Buffers, verifyBag)
	assert.Equal(t, true, cert.R1)
	assert.Equal(t, true, cert.R2)
	assert.Equal(t, false, verifyBag.HasErrors())
}

func TestInferBindsDatagram(t *testing.T) {
	g, _, bag := buildAll(t, "clock 1kHz a {\n  constant(1.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	bindBag := diag.NewBag()
	rates := map[string]float64{"a": 1000}
	endpoints := map[string]string{"out": "udp://127.0.0.1:9000"}

	binds := InferBinds(g.Buffers, rates, endpoints, [32]byte{}, bindBag)
	assert.Equal(t, false, bindBag.HasErrors())
	assert.Equal(t, 1, len(binds))
	assert.Equal(t, DirOut, binds[0].Direction)
	assert.Equal(t, EndpointDatagram, binds[0].Endpoint.Kind)
	assert.Equal(t, "127.0.0.1", binds[0].Endpoint.Host)
	assert.Equal(t, 9000, binds[0].Endpoint.Port)
}

func TestInferBindsRejectsRelativeUnixPath(t *testing.T) {
	g, _, bag := buildAll(t, "clock 1kHz a {\n  constant(1.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	bindBag := diag.NewBag()
	endpoints := map[string]string{"out": "unix://relative/path"}

	binds := InferBinds(g.Buffers, map[string]float64{"a": 1000}, endpoints, [32]byte{}, bindBag)
	assert.Equal(t, true, bindBag.HasErrors())
	assert.Equal(t, 0, len(binds))
}

func TestInferBindsRejectsBadSharedMemory(t *testing.T) {
	g, _, bag := buildAll(t, "clock 1kHz a {\n  constant(1.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	bindBag := diag.NewBag()
	endpoints := map[string]string{"out": "shm://ring?slots=4&slot_bytes=7"}

	binds := InferBinds(g.Buffers, map[string]float64{"a": 1000}, endpoints, [32]byte{}, bindBag)
	assert.Equal(t, true, bindBag.HasErrors())
	assert.Equal(t, 0, len(binds))
}

func TestInferBindsAcceptsSharedMemory(t *testing.T) {
	g, _, bag := buildAll(t, "clock 1kHz a {\n  constant(1.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	bindBag := diag.NewBag()
	endpoints := map[string]string{"out": "shm://ring?slots=4&slot_bytes=64"}

	binds := InferBinds(g.Buffers, map[string]float64{"a": 1000}, endpoints, [32]byte{}, bindBag)
	assert.Equal(t, false, bindBag.HasErrors())
	assert.Equal(t, 1, len(binds))
	assert.Equal(t, 4, binds[0].Endpoint.Slots)
	assert.Equal(t, 64, binds[0].Endpoint.SlotBytes)
}

func TestStableIDDeterministic(t *testing.T) {
	a := stableID([32]byte{1, 2, 3}, "task", "buf", "out")
	b := stableID([32]byte{1, 2, 3}, "task", "buf", "out")
	c := stableID([32]byte{1, 2, 3}, "task", "buf", "in")
	assert.Equal(t, a, b)
	assert.Equal(t, true, a != c)
}
