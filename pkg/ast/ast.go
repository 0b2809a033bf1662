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

// Package ast defines pipit's abstract syntax tree. Nodes are plain structs
// implementing Node; no semantic checks happen here (that is the
// resolver's job, pkg/hir) — this package only says what the parser can
// build, not what the resolver later proves about it.
package ast

import "github.com/pipit-lang/pcc/pkg/util/source"

// Node is implemented by every AST element so the printer (--emit ast) and
// diagnostics can report a source location for any node uniformly.
type Node interface {
	Span() source.Span
}

// Program is the root of the AST: an ordered sequence of top-level
// statements.
type Program struct {
	Statements []Statement
}

// Statement is any top-level declaration: set, const, param, define, task
// or bind.
type Statement interface {
	Node
	stmt()
}

// SetStmt is a `set key value` compiler-configuration statement (e.g.
// `set mem 65536`).
type SetStmt struct {
	Sp    source.Span
	Key   string
	Value Expr
}

// Span implements Node.
func (s *SetStmt) Span() source.Span { return s.Sp }
func (*SetStmt) stmt()               {}

// ConstStmt declares a compile-time constant, e.g. `const c = [0.1, 0.2]`.
type ConstStmt struct {
	Sp    source.Span
	Name  string
	Value Expr
}

// Span implements Node.
func (s *ConstStmt) Span() source.Span { return s.Sp }
func (*ConstStmt) stmt()               {}

// ParamStmt declares a runtime-settable parameter, e.g. `param gain = 1.0`.
type ParamStmt struct {
	Sp      source.Span
	Name    string
	Default Expr
}

// Span implements Node.
func (s *ParamStmt) Span() source.Span { return s.Sp }
func (*ParamStmt) stmt()               {}

// DefineStmt declares a reusable named pipeline fragment, inlined by the
// resolver.
type DefineStmt struct {
	Sp     source.Span
	Name   string
	Params []string
	Body   []PipeElem
}

// Span implements Node.
func (s *DefineStmt) Span() source.Span { return s.Sp }
func (*DefineStmt) stmt()               {}

// BindStmt declares an explicit external endpoint override, e.g.
// `bind signal = "udp://host:port"`, consumed by bind inference (pkg/lir)
// instead of the CLI's `--bind NAME=ENDPOINT` flag.
type BindStmt struct {
	Sp       source.Span
	Name     string
	Endpoint Expr
}

// Span implements Node.
func (s *BindStmt) Span() source.Span { return s.Sp }
func (*BindStmt) stmt()               {}

// TaskStmt declares one clocked task, either a plain pipeline body or a
// modal body.
type TaskStmt struct {
	Sp    source.Span
	Name  string
	Clock Expr // a frequency literal or a $param reference
	Plain []Pipeline
	Modal *ModalBody
}

// Span implements Node.
func (s *TaskStmt) Span() source.Span { return s.Sp }
func (*TaskStmt) stmt()               {}

// ModalBody is `{control {...}, mode NAME {...}+, switch(...)}`.
type ModalBody struct {
	Sp      source.Span
	Control []Pipeline // empty if no control block was given (E0018 candidate)
	Modes   []ModeBlock
	Switch  SwitchDecl
}

// ModeBlock is one named `mode NAME { ... }` subgraph.
type ModeBlock struct {
	Sp        source.Span
	Name      string
	Pipelines []Pipeline
}

// SwitchDecl is `switch(SRC, NAME, NAME {, NAME}) [default NAME]`.
type SwitchDecl struct {
	Sp      source.Span
	Source  SwitchSource
	Modes   []string
	Default string // "" if absent
}

// SwitchSource is either a control-produced buffer name or a runtime
// `$param` reference.
type SwitchSource struct {
	Sp      source.Span
	IsParam bool
	Name    string
}

// Pipeline is one pipe expression: an optional source, `|`-separated
// elements, and an optional `-> buffer` sink.
type Pipeline struct {
	Sp     source.Span
	Source *PipeSource // nil if the pipeline begins with the first element itself
	Elems  []PipeElem
	Sink   string // "" if this pipeline has no `-> name` sink
}

// Span implements Node.
func (p *Pipeline) Span() source.Span { return p.Sp }

// PipeSource is the optional head of a pipeline: a shared-buffer read
// (`@buf`), a tap reference (`:tap`), or an actor call.
type PipeSource struct {
	Sp       source.Span
	BufRead  string // "" unless this is an @buf read
	TapRef   string // "" unless this is a :tap reference
	ActorSrc *ActorCall
}

// Span implements Node.
func (p *PipeSource) Span() source.Span { return p.Sp }

// PipeElem is one `|`-separated pipeline element: an actor call, a tap
// declaration/reference, or a probe.
type PipeElem interface {
	Node
	pipeElem()
}

// ActorCall is `name(args)[shape]`, requiring parentheses even with zero
// arguments.
type ActorCall struct {
	Sp    source.Span
	Name  string
	Args  []Expr
	Shape []Expr // from `[d0, d1, ...]`; nil if absent
}

// Span implements Node.
func (a *ActorCall) Span() source.Span { return a.Sp }
func (*ActorCall) pipeElem()           {}

// TapElem is `:name`, either declaring a new fork point or referencing a
// previously-declared one within the same task (resolved in pkg/hir).
type TapElem struct {
	Sp   source.Span
	Name string
}

// Span implements Node.
func (t *TapElem) Span() source.Span { return t.Sp }
func (*TapElem) pipeElem()           {}

// ProbeElem is `?name`, a non-invasive observation point (zero cost in
// release builds per the glossary).
type ProbeElem struct {
	Sp   source.Span
	Name string
}

// Span implements Node.
func (p *ProbeElem) Span() source.Span { return p.Sp }
func (*ProbeElem) pipeElem()           {}

// Expr is any argument expression: a literal, an identifier (const
// reference), a `$name` runtime-parameter reference, or an array literal.
type Expr interface {
	Node
	expr()
}

// IntLit is an integer literal.
type IntLit struct {
	Sp    source.Span
	Value int64
}

// Span implements Node.
func (e *IntLit) Span() source.Span { return e.Sp }
func (*IntLit) expr()               {}

// FloatLit is a floating-point literal.
type FloatLit struct {
	Sp    source.Span
	Value float64
}

// Span implements Node.
func (e *FloatLit) Span() source.Span { return e.Sp }
func (*FloatLit) expr()               {}

// FrequencyLit is a `number unit` literal where unit is one of
// Hz|kHz|MHz|GHz, stored normalized to Hz.
type FrequencyLit struct {
	Sp   source.Span
	Hz   float64
	Text string // original text, for --emit ast round-tripping
}

// Span implements Node.
func (e *FrequencyLit) Span() source.Span { return e.Sp }
func (*FrequencyLit) expr()               {}

// SizeLit is a `number unit` literal where unit is one of KB|MB|GB, stored
// normalized to bytes.
type SizeLit struct {
	Sp    source.Span
	Bytes int64
	Text  string
}

// Span implements Node.
func (e *SizeLit) Span() source.Span { return e.Sp }
func (*SizeLit) expr()               {}

// StringLit is a double-quoted string literal with escapes already
// resolved.
type StringLit struct {
	Sp    source.Span
	Value string
}

// Span implements Node.
func (e *StringLit) Span() source.Span { return e.Sp }
func (*StringLit) expr()               {}

// Ident is a bare identifier used as an expression: a const/dimension-
// parameter reference, or (in a switch source position) a control buffer
// name.
type Ident struct {
	Sp   source.Span
	Name string
}

// Span implements Node.
func (e *Ident) Span() source.Span { return e.Sp }
func (*Ident) expr()               {}

// ParamRef is a `$name` runtime-parameter reference.
type ParamRef struct {
	Sp   source.Span
	Name string
}

// Span implements Node.
func (e *ParamRef) Span() source.Span { return e.Sp }
func (*ParamRef) expr()               {}

// ArrayLit is a `[e0, e1, ...]` array literal (span-of-T actor argument or
// shape constraint).
type ArrayLit struct {
	Sp       source.Span
	Elements []Expr
}

// Span implements Node.
func (e *ArrayLit) Span() source.Span { return e.Sp }
func (*ArrayLit) expr()               {}
