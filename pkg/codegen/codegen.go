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

// Package codegen walks LIR and emits C++ source text: a
// purely syntax-directed serialization, never re-inferring a type or
// consulting the registry. Emit is a total function of its TaskLIR
// slice — identical LIR always produces byte-identical output, in the
// fixed section order: transport-layer includes; concrete-actor type
// aliases and static metadata; static storage; one function per task;
// modal dispatch; a call into the runtime shell entry point.
package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/lir"
	"github.com/pipit-lang/pcc/pkg/types"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var tmpl = template.Must(template.New("codegen").Funcs(template.FuncMap{
	"cxxType": cxxType,
}).ParseFS(templateFS, "templates/*.tmpl"))

// cxxType maps a wire type to the runtime-shell's scalar typedef. The
// mapping is a fixed table, not inference: each of the seven numeric wire
// types has one entry, and types.Void or any other value maps to "void".
func cxxType(w types.Wire) string {
	switch w {
	case types.Int8:
		return "pipit_i8"
	case types.Int16:
		return "pipit_i16"
	case types.Int32:
		return "pipit_i32"
	case types.Float:
		return "pipit_f32"
	case types.Double:
		return "pipit_f64"
	case types.CFloat:
		return "pipit_cf32"
	case types.CDouble:
		return "pipit_cf64"
	default:
		return "void"
	}
}

// taskFunc is the emitted shape of one TaskLIR's firing function: a
// storage block and a list of firing lines already rendered in PASS order
// (including fused inner loops).
type taskFunc struct {
	Name     string
	FuncName string
	Storage  []lir.StorageSlot
	Firing   []string
}

// pageData is the top-level template context. Fields are pre-rendered
// strings, not raw LIR: the walk that turns LIR into these strings is
// the syntax-directed part of codegen and lives entirely in Go, not in
// the templates, so templates never branch on LIR contents.
type pageData struct {
	Tasks  []taskFunc
	Modal  []modalDispatch
	Binds  []lir.Bind
}

type modalDispatch struct {
	Task         string
	ControlFunc  string
	ModeFuncs    map[string]string
	ModeNames    []string
}

// Emit renders the complete translation unit for one compiled program.
// lirs and binds come straight from pkg/lir.Build/InferBinds; subgraphs
// supplies the Task/Kind/Mode metadata LIR itself drops once storage and
// firing are flattened. The result is deterministic: lirs is walked in
// the order it was built (subgraph declaration order), and within each
// task, nodes and edges are walked in arena order.
func Emit(subgraphs []*graph.Subgraph, lirs []*lir.TaskLIR, binds []lir.Bind) (string, error) {
	byName := make(map[string]*graph.Subgraph, len(subgraphs))
	for _, sg := range subgraphs {
		byName[sg.Name] = sg
	}

	data := pageData{}
	modalByTask := map[string]*modalDispatch{}

	for _, t := range lirs {
		sg := byName[t.SubgraphName]
		if sg == nil {
			return "", fmt.Errorf("codegen: no subgraph metadata for %q", t.SubgraphName)
		}

		funcName := funcNameFor(t.SubgraphName)

		data.Tasks = append(data.Tasks, taskFunc{
			Name:     t.SubgraphName,
			FuncName: funcName,
			Storage:  t.Storage,
			Firing:   firingLines(sg, t),
		})

		switch sg.Kind {
		case "control":
			d := modalByTask[sg.Task]
			if d == nil {
				d = &modalDispatch{Task: sg.Task, ModeFuncs: map[string]string{}}
				modalByTask[sg.Task] = d
			}

			d.ControlFunc = funcName
		case "mode":
			d := modalByTask[sg.Task]
			if d == nil {
				d = &modalDispatch{Task: sg.Task, ModeFuncs: map[string]string{}}
				modalByTask[sg.Task] = d
			}

			d.ModeFuncs[sg.Mode] = funcName
		}
	}

	taskNames := make([]string, 0, len(modalByTask))
	for name := range modalByTask {
		taskNames = append(taskNames, name)
	}

	sort.Strings(taskNames)

	for _, name := range taskNames {
		d := modalByTask[name]

		modeNames := make([]string, 0, len(d.ModeFuncs))
		for m := range d.ModeFuncs {
			modeNames = append(modeNames, m)
		}

		sort.Strings(modeNames)
		d.ModeNames = modeNames

		data.Modal = append(data.Modal, *d)
	}

	data.Binds = binds

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, "unit.cpp.tmpl", data); err != nil {
		return "", fmt.Errorf("codegen: template execution: %w", err)
	}

	return buf.String(), nil
}

func funcNameFor(subgraphName string) string {
	name := strings.ReplaceAll(subgraphName, ".", "_")
	return "pipit_fire_" + name
}

// firingLines walks one task's fused PASS in order and renders each
// entry as a firing-loop line. It reads Firing.Entries and the
// subgraph's Nodes/Edges directly, never re-deriving them.
func firingLines(sg *graph.Subgraph, t *lir.TaskLIR) []string {
	var lines []string

	for _, e := range t.Firing.Entries {
		n := sg.Nodes[e.Node]

		switch n.Kind {
		case graph.NodeActor:
			if e.Multiplicity == 1 {
				lines = append(lines, fmt.Sprintf("fire_%s();", n.Actor))
			} else {
				lines = append(lines, fmt.Sprintf("for (int i = 0; i < %d; ++i) fire_%s();", e.Multiplicity, n.Actor))
			}
		case graph.NodeFork:
			lines = append(lines, fmt.Sprintf("fork_tee(%d);", n.ID))
		case graph.NodeWiden:
			lines = append(lines, fmt.Sprintf("widen_%d();", n.ID))
		}
	}

	return lines
}
