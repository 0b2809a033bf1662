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

// Package hir defines pipit's High-level Intermediate Representation: the
// AST with every name bound to exactly one declaration, `define` calls
// inlined, and modal task structure normalized. Building a Program is the only way to
// obtain one; Resolve checks the HIR invariants while it builds a Program and
// reports every violation to its diagnostic bag (there is no separate
// verifier).
package hir

import (
	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Program is the resolved, define-inlined, modal-normalized form of an
// ast.Program.
type Program struct {
	Settings map[string]ast.Expr
	Consts   map[string]ast.Expr
	Params   map[string]*ParamDecl
	Binds    map[string]ast.Expr
	Tasks    []*Task

	// Buffers indexes every shared buffer discovered across the whole
	// program by name, recording its sole writer task and every reader.
	Buffers map[string]*Buffer
}

// ParamDecl is a resolved `param` declaration plus its usage bit for
// WUnusedParam.
type ParamDecl struct {
	Name    string
	Default ast.Expr
	Span    source.Span
	Used    bool
}

// Buffer is a named inter-task FIFO: exactly
// one writer task, zero or more reader tasks.
type Buffer struct {
	Name        string
	WriterTask  string
	WriterSpan  source.Span
	ReaderTasks []string
}

// Task is a resolved clocked task: either Plain or Modal is set, never
// both.
type Task struct {
	Name  string
	Span  source.Span
	Clock ast.Expr
	Plain []Pipeline
	Modal *Modal
}

// Modal is a normalized modal body: the control subgraph, each mode's
// subgraph, and the switch declaration.
type Modal struct {
	Span    source.Span
	Control []Pipeline
	Modes   []ModeBlock
	Switch  ast.SwitchDecl
}

// ModeBlock is one named mode subgraph.
type ModeBlock struct {
	Name      string
	Span      source.Span
	Pipelines []Pipeline
}

// Pipeline is a pipeline body with every `define` call inline-expanded: no
// PipeElem in Elems is ever itself a reference to a DefineStmt.
type Pipeline struct {
	Span   source.Span
	Source *ast.PipeSource
	Elems  []ast.PipeElem
	Sink   string
}
