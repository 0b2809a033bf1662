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
package hir

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/parser"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

const testManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "double", "out_count": "1", "params": [{"name": "value", "type": "double"}]},
    {"name": "mul", "type_params": 0, "in_type": "double", "in_count": "1", "out_type": "double", "out_count": "1", "params": [{"name": "factor", "type": "double"}]},
    {"name": "sense", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "int32", "out_count": "1", "params": []}
  ]
}`

func resolveString(t *testing.T, text string) (*Program, *diag.Bag) {
	t.Helper()

	reg, err := registry.LoadManifest([]byte(testManifest))
	assert.Equal(t, nil, err)

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	prog := parser.Parse(file, bag)
	assert.Equal(t, false, bag.HasErrors())

	h := Resolve(prog, reg, bag)

	return h, bag
}

func TestResolvePlainTaskAndBuffer(t *testing.T) {
	h, bag := resolveString(t, "clock 1kHz proc {\n  constant(1.0) | mul(2.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(h.Tasks))

	buf, ok := h.Buffers["out"]
	assert.Equal(t, true, ok)
	assert.Equal(t, "proc", buf.WriterTask)
}

func TestResolveDuplicateWriterIsError(t *testing.T) {
	_, bag := resolveString(t, ""+
		"clock 1kHz a {\n  constant(1.0) -> out\n}\n"+
		"clock 1kHz b {\n  constant(2.0) -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestResolveUnconsumedTapIsError(t *testing.T) {
	_, bag := resolveString(t, "clock 1kHz t {\n  constant(1.0) | :tapped -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestResolveConsumedTapIsFine(t *testing.T) {
	_, bag := resolveString(t, ""+
		"clock 1kHz t {\n"+
		"  constant(1.0) | :tapped -> out\n"+
		"  :tapped | mul(2.0) -> doubled\n"+
		"}\n")
	assert.Equal(t, false, bag.HasErrors())
}

func TestResolveDefineInlining(t *testing.T) {
	h, bag := resolveString(t, ""+
		"define stage(g) {\n  mul($g) | :inner\n}\n"+
		"clock 1kHz t {\n"+
		"  constant(1.0) | stage(2.0) -> out\n"+
		"  :inner | mul(1.0) -> discard\n"+
		"}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(h.Tasks))
}

func TestResolveUnknownActorIsError(t *testing.T) {
	_, bag := resolveString(t, "clock 1kHz t {\n  bogus_actor(1) -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestResolveModalRequiresControl(t *testing.T) {
	src := "clock 48kHz audio {\n" +
		"  mode quiet {\n    constant(0.0) -> out\n  }\n" +
		"  switch($sel, quiet) default quiet\n" +
		"}\n" +
		"param sel = 0\n"

	_, bag := resolveString(t, src)
	assert.Equal(t, true, bag.HasErrors())
}

func TestResolveModalValidSwitch(t *testing.T) {
	src := "param sel = 0\n" +
		"clock 48kHz audio {\n" +
		"  control {\n    sense() -> ctrl\n  }\n" +
		"  mode quiet {\n    constant(0.0) -> out\n  }\n" +
		"  mode loud {\n    constant(1.0) -> out\n  }\n" +
		"  switch(ctrl, quiet, loud) default quiet\n" +
		"}\n"

	h, bag := resolveString(t, src)
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 2, len(h.Tasks[0].Modal.Modes))
}

func TestResolveUnusedParamWarns(t *testing.T) {
	_, bag := resolveString(t, "param gain = 1.0\nclock 1Hz t {\n  constant(1.0) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, true, len(bag.Sorted()) > 0)
}
