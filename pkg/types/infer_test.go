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
package types

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const inferManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": []},
    {"name": "widen_me", "type_params": 0, "in_type": "double", "in_count": "1", "out_type": "double", "out_count": "1", "params": []},
    {"name": "narrow_me", "type_params": 0, "in_type": "int8", "in_count": "1", "out_type": "int8", "out_count": "1", "params": []},
    {"name": "identity", "type_params": 1, "in_type": "T", "in_count": "1", "out_type": "T", "out_count": "1", "params": []},
    {"name": "bogus_type", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "nonsense", "out_count": "1", "params": []},
    {"name": "poly_source", "type_params": 1, "in_type": "void", "in_count": "0", "out_type": "T", "out_count": "1", "params": []},
    {"name": "overloaded", "type_params": 0, "in_type": "float", "in_count": "1", "out_type": "float", "out_count": "1", "params": []},
    {"name": "overloaded", "type_params": 1, "in_type": "T", "in_count": "1", "out_type": "T", "out_count": "1", "params": []}
  ]
}`

func inferString(t *testing.T, text string) (*Solution, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(inferManifest))
	assert.Equal(t, nil, err)

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	prog := parser.Parse(file, bag)
	assert.Equal(t, false, bag.HasErrors())

	h := hir.Resolve(prog, reg, bag)
	sol := Infer(h, reg, bag)

	return sol, bag
}

func TestWideningInserted(t *testing.T) {
	sol, bag := inferString(t, "clock 1Hz t {\n  constant(1.0) | widen_me() -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(sol.Widenings))
	assert.Equal(t, Float, sol.Widenings[0].From)
	assert.Equal(t, Double, sol.Widenings[0].To)
}

func TestNarrowingRejected(t *testing.T) {
	_, bag := inferString(t, "clock 1Hz t {\n  constant(1.0) | narrow_me() -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestPolymorphicMonomorphizes(t *testing.T) {
	sol, bag := inferString(t, "clock 1Hz t {\n  constant(1.0) | identity() -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(sol.Monomorphizations))
	assert.Equal(t, Float, sol.Monomorphizations[0].Concrete)
}

func TestUnknownDeclaredTypeRejected(t *testing.T) {
	_, bag := inferString(t, "clock 1Hz t {\n  bogus_type() -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestAmbiguousOutputTypeWithNoUpstreamRejected(t *testing.T) {
	_, bag := inferString(t, "clock 1Hz t {\n  poly_source() -> out\n}\n")
	// a polymorphic source actor with nothing upstream to instantiate its
	// output type parameter from.
	assert.Equal(t, true, bag.HasErrors())
}

func TestAmbiguousArityCallRejected(t *testing.T) {
	_, bag := inferString(t, "clock 1Hz t {\n  constant(1.0) | overloaded() -> out\n}\n")
	// "overloaded" is registered at both arity 0 and arity 1; pipit call
	// syntax has no type-argument list to pick one.
	assert.Equal(t, true, bag.HasErrors())
}

func TestJoinAcrossChainsFails(t *testing.T) {
	_, ok := Join(Int32, CFloat)
	assert.Equal(t, false, ok)
}

func TestWidensRejectsCrossChain(t *testing.T) {
	assert.Equal(t, false, Widens(Int32, CDouble))
	assert.Equal(t, true, Widens(Int8, Double))
	assert.Equal(t, false, Widens(Double, Int8))
}
