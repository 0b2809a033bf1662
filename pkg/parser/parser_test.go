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
package parser

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

func parseString(t *testing.T, text string) (*ast.Program, *diag.Bag) {
	t.Helper()

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	prog := Parse(file, bag)

	return prog, bag
}

func TestParseSetAndConst(t *testing.T) {
	prog, bag := parseString(t, "set mem 64KB\nconst gain = 0.5\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 2, len(prog.Statements))

	set, ok := prog.Statements[0].(*ast.SetStmt)
	assert.Equal(t, true, ok)
	assert.Equal(t, "mem", set.Key)

	c, ok := prog.Statements[1].(*ast.ConstStmt)
	assert.Equal(t, true, ok)
	assert.Equal(t, "gain", c.Name)
}

func TestParsePlainTask(t *testing.T) {
	prog, bag := parseString(t, "clock 1kHz proc {\n  constant(1.0) | mul($gain) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, 1, len(prog.Statements))

	task, ok := prog.Statements[0].(*ast.TaskStmt)
	assert.Equal(t, true, ok)
	assert.Equal(t, "proc", task.Name)
	assert.Equal(t, 1, len(task.Plain))
	assert.Equal(t, "out", task.Plain[0].Sink)
	assert.Equal(t, 1, len(task.Plain[0].Elems))
}

func TestParseModalTask(t *testing.T) {
	src := "clock 48kHz audio {\n" +
		"  control {\n" +
		"    sense() -> mode_sel\n" +
		"  }\n" +
		"  mode quiet {\n" +
		"    constant(0.0) -> out\n" +
		"  }\n" +
		"  mode loud {\n" +
		"    constant(1.0) -> out\n" +
		"  }\n" +
		"  switch(mode_sel, quiet, loud) default quiet\n" +
		"}\n"

	prog, bag := parseString(t, src)
	assert.Equal(t, false, bag.HasErrors())

	task, ok := prog.Statements[0].(*ast.TaskStmt)
	assert.Equal(t, true, ok)
	assert.Equal(t, true, task.Modal != nil)
	assert.Equal(t, 2, len(task.Modal.Modes))
	assert.Equal(t, "quiet", task.Modal.Switch.Default)
	assert.Equal(t, 2, len(task.Modal.Switch.Modes))
}

func TestParseDefineAndTapProbe(t *testing.T) {
	prog, bag := parseString(t, "define gain_stage(g) {\n  mul($g) | :tapped | ?probed\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	def, ok := prog.Statements[0].(*ast.DefineStmt)
	assert.Equal(t, true, ok)
	assert.Equal(t, "gain_stage", def.Name)
	assert.Equal(t, []string{"g"}, def.Params)
	assert.Equal(t, 3, len(def.Body))

	_, isTap := def.Body[1].(*ast.TapElem)
	assert.Equal(t, true, isTap)

	_, isProbe := def.Body[2].(*ast.ProbeElem)
	assert.Equal(t, true, isProbe)
}

func TestParseActorCallRequiresParens(t *testing.T) {
	_, bag := parseString(t, "clock 1Hz t {\n  constant -> out\n}\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestParseRecoversAfterError(t *testing.T) {
	_, bag := parseString(t, "set\nconst ok = 1\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestParseBufferReadAndTapRefSources(t *testing.T) {
	prog, bag := parseString(t, "clock 1Hz t {\n  @acc | mul(2) -> acc\n  :tapped | mul(3) -> out\n}\n")
	assert.Equal(t, false, bag.HasErrors())

	task := prog.Statements[0].(*ast.TaskStmt)
	assert.Equal(t, 2, len(task.Plain))
	assert.Equal(t, "acc", task.Plain[0].Source.BufRead)
	assert.Equal(t, "tapped", task.Plain[1].Source.TapRef)
}

func TestParseArrayLitAndShape(t *testing.T) {
	prog, bag := parseString(t, "const taps = [0.1, 0.2, 0.3]\n")
	assert.Equal(t, false, bag.HasErrors())

	c := prog.Statements[0].(*ast.ConstStmt)
	arr, ok := c.Value.(*ast.ArrayLit)
	assert.Equal(t, true, ok)
	assert.Equal(t, 3, len(arr.Elements))
}
