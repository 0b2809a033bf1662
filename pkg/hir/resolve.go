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
	"fmt"
	"strings"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// maxInlineDepth bounds recursive define-expansion against self-referential
// define cycles.
const maxInlineDepth = 64

// resolver carries the scopes and accumulators needed across one Resolve
// call: the global const/param/bind namespaces, the define table used for
// inlining, and the diagnostic sink.
type resolver struct {
	reg  *registry.Registry
	bag  *diag.Bag
	prog *Program

	defines map[string]*ast.DefineStmt
	tapSeq  int
}

// Resolve binds every name in prog, inline-expands every `define` call, and
// normalizes modal task bodies into HIR, checking the invariants HIR
// requires: every name resolves to exactly one declaration; no
// cross-namespace collision; every declared tap is consumed; exactly one
// writer per shared buffer.
func Resolve(prog *ast.Program, reg *registry.Registry, bag *diag.Bag) *Program {
	r := &resolver{
		reg: reg,
		bag: bag,
		prog: &Program{
			Settings: map[string]ast.Expr{},
			Consts:   map[string]ast.Expr{},
			Params:   map[string]*ParamDecl{},
			Binds:    map[string]ast.Expr{},
			Buffers:  map[string]*Buffer{},
		},
		defines: map[string]*ast.DefineStmt{},
	}

	r.collectTopLevel(prog)
	r.resolveTasks(prog)
	r.checkUnusedParams()

	return r.prog
}

// collectTopLevel binds set/const/param/define/bind declarations, rejecting
// duplicates within and across these namespaces (E0010).
func (r *resolver) collectTopLevel(prog *ast.Program) {
	declared := map[string]bool{}

	dup := func(kind, name string, span ast.Node) bool {
		if declared[name] {
			r.bag.Errorf(diag.EDuplicateDecl, span.Span(), "%q is already declared in this program", name)
			return true
		}

		declared[name] = true

		return false
	}

	for _, stmt := range prog.Statements {
		switch s := stmt.(type) {
		case *ast.SetStmt:
			r.prog.Settings[s.Key] = s.Value
		case *ast.ConstStmt:
			if !dup("const", s.Name, s) {
				r.prog.Consts[s.Name] = s.Value
			}
		case *ast.ParamStmt:
			if !dup("param", s.Name, s) {
				r.prog.Params[s.Name] = &ParamDecl{Name: s.Name, Default: s.Default, Span: s.Sp}
			}
		case *ast.DefineStmt:
			if !dup("define", s.Name, s) {
				r.defines[s.Name] = s
			}
		case *ast.BindStmt:
			if !dup("bind", s.Name, s) {
				r.prog.Binds[s.Name] = s.Endpoint
			}
		case *ast.TaskStmt:
			if dup("task", s.Name, s) {
				continue
			}
		}
	}
}

func (r *resolver) resolveTasks(prog *ast.Program) {
	for _, stmt := range prog.Statements {
		ts, ok := stmt.(*ast.TaskStmt)
		if !ok {
			continue
		}

		task := &Task{Name: ts.Name, Span: ts.Sp, Clock: ts.Clock}

		if ts.Modal != nil {
			task.Modal = r.resolveModal(ts.Name, ts.Modal)
		} else {
			task.Plain = r.resolvePipelines(ts.Name, ts.Plain)
		}

		r.prog.Tasks = append(r.prog.Tasks, task)
	}
}

func (r *resolver) resolveModal(taskName string, m *ast.ModalBody) *Modal {
	if len(m.Control) == 0 {
		r.bag.Errorf(diag.EModalNoControl, m.Sp, "modal task %q requires a non-empty control block", taskName)
	}

	modal := &Modal{Span: m.Sp, Switch: m.Switch}
	modal.Control = r.resolvePipelines(taskName+".control", m.Control)

	seenModes := map[string]bool{}

	for _, mb := range m.Modes {
		if seenModes[mb.Name] {
			r.bag.Errorf(diag.EModalDuplicateMode, mb.Sp, "duplicate mode %q in task %q", mb.Name, taskName)
			continue
		}

		seenModes[mb.Name] = true
		modal.Modes = append(modal.Modes, ModeBlock{
			Name:      mb.Name,
			Span:      mb.Sp,
			Pipelines: r.resolvePipelines(fmt.Sprintf("%s.mode.%s", taskName, mb.Name), mb.Pipelines),
		})
	}

	r.checkSwitch(taskName, m.Switch, seenModes)

	return modal
}

func (r *resolver) checkSwitch(taskName string, sw ast.SwitchDecl, modes map[string]bool) {
	if sw.Source.Name == "" {
		r.bag.Errorf(diag.EModalNoSwitchSource, sw.Sp, "modal task %q has no switch source", taskName)
		return
	}

	if !sw.Source.IsParam {
		if _, ok := r.prog.Buffers[sw.Source.Name]; !ok {
			r.bag.Errorf(diag.EModalBadSwitchRef, sw.Sp,
				"switch source %q is neither a control-produced buffer nor a $param", sw.Source.Name)
		}
	} else if _, ok := r.prog.Params[sw.Source.Name]; !ok {
		r.bag.Errorf(diag.EModalBadSwitchRef, sw.Sp, "switch source references undeclared parameter %q", sw.Source.Name)
	}

	for _, name := range sw.Modes {
		if !modes[name] {
			r.bag.Errorf(diag.EModalBadSwitchRef, sw.Sp, "switch lists undeclared mode %q", name)
		}
	}

	if sw.Default != "" && !modes[sw.Default] {
		r.bag.Errorf(diag.EModalBadSwitchRef, sw.Sp, "switch default %q is not a declared mode", sw.Default)
	}
}

// resolvePipelines resolves every pipeline in one task/control/mode body:
// inline-expanding defines, tracking tap declaration/consumption, and
// recording shared-buffer writers/readers.
func (r *resolver) resolvePipelines(owner string, pipes []ast.Pipeline) []Pipeline {
	declaredTaps := map[string]bool{}
	consumedTaps := map[string]bool{}
	tapSpans := map[string]ast.Node{}

	out := make([]Pipeline, 0, len(pipes))

	for _, p := range pipes {
		if p.Source == nil && len(p.Elems) == 0 {
			r.bag.Errorf(diag.EUnconsumedTap, p.Sp, "empty pipeline body in %s", owner)
		}

		elems := r.inlineElems(p.Elems, 0)

		if p.Source != nil && p.Source.TapRef != "" {
			consumedTaps[p.Source.TapRef] = true
		}

		for _, e := range elems {
			switch el := e.(type) {
			case *ast.TapElem:
				if !declaredTaps[el.Name] {
					declaredTaps[el.Name] = true
					tapSpans[el.Name] = el
				}
			}
		}

		if p.Sink != "" {
			r.recordWriter(owner, p.Sink, p.Sp)
		}

		if p.Source != nil && p.Source.BufRead != "" {
			r.recordReader(owner, p.Source.BufRead)
		}

		out = append(out, Pipeline{Span: p.Sp, Source: p.Source, Elems: elems, Sink: p.Sink})
	}

	for name, declSpan := range tapSpans {
		if !consumedTaps[name] {
			r.bag.Errorf(diag.EUnconsumedTap, declSpan.Span(), "tap %q declared in %s is never consumed", name, owner)
		}
	}

	return out
}

// recordWriter enforces the "exactly one writer per shared buffer" HIR
// invariant.
func (r *resolver) recordWriter(owner, name string, span source.Span) {
	b, ok := r.prog.Buffers[name]
	if !ok {
		b = &Buffer{Name: name}
		r.prog.Buffers[name] = b
	}

	// owner may name a control or mode body ("task.control"); the invariant
	// is per task, so compare on the task name alone.
	task, _, _ := strings.Cut(owner, ".")

	if b.WriterTask != "" && b.WriterTask != task {
		r.bag.Errorf(diag.EDuplicateDecl, span, "buffer %q already has a writer in %q", name, b.WriterTask)
		return
	}

	b.WriterTask = task
	b.WriterSpan = span
}

func (r *resolver) recordReader(owner, name string) {
	b, ok := r.prog.Buffers[name]
	if !ok {
		b = &Buffer{Name: name}
		r.prog.Buffers[name] = b
	}

	b.ReaderTasks = append(b.ReaderTasks, owner)
}

// inlineElems expands every ActorCall whose name is a define into its body,
// renaming the define's internal taps into the enclosing task's namespace
// so two expansions of the same define never collide.
func (r *resolver) inlineElems(elems []ast.PipeElem, depth int) []ast.PipeElem {
	if depth > maxInlineDepth {
		span := source.NewSpan(0, 0)
		if len(elems) > 0 {
			span = elems[0].Span()
		}

		r.bag.Errorf(diag.ESyntax, span, "define expansion exceeded maximum recursion depth (cyclic define?)")

		return nil
	}

	out := make([]ast.PipeElem, 0, len(elems))

	for _, e := range elems {
		call, ok := e.(*ast.ActorCall)
		if !ok {
			out = append(out, e)
			continue
		}

		def, isDefine := r.defines[call.Name]
		if !isDefine {
			if _, isActor := r.reg.LookupByName(call.Name); !isActor {
				r.bag.Errorf(diag.EUnresolvedName, call.Sp, "%q is neither a declared define nor a registered actor", call.Name)
			}

			out = append(out, call)
			continue
		}

		r.tapSeq++
		prefix := fmt.Sprintf("__%s$%d$", def.Name, r.tapSeq)
		expanded := r.inlineElems(def.Body, depth+1)
		out = append(out, renameTaps(expanded, prefix)...)
	}

	return out
}

// renameTaps prefixes every tap name in elems so a define's internal fork
// points never collide with the enclosing task's own taps or with another
// expansion of the same define.
func renameTaps(elems []ast.PipeElem, prefix string) []ast.PipeElem {
	out := make([]ast.PipeElem, len(elems))

	for i, e := range elems {
		switch el := e.(type) {
		case *ast.TapElem:
			out[i] = &ast.TapElem{Sp: el.Sp, Name: prefix + el.Name}
		default:
			out[i] = e
		}
	}

	return out
}

func (r *resolver) checkUnusedParams() {
	used := map[string]bool{}
	r.markUsedParams(r.prog.Tasks, used)

	for name, p := range r.prog.Params {
		if !used[name] {
			r.bag.Warnf(diag.WUnusedParam, p.Span, "parameter %q is never referenced", name)
		}
	}
}

func (r *resolver) markUsedParams(tasks []*Task, used map[string]bool) {
	var walkExpr func(ast.Expr)

	walkExpr = func(e ast.Expr) {
		switch v := e.(type) {
		case *ast.ParamRef:
			used[v.Name] = true
		case *ast.ArrayLit:
			for _, el := range v.Elements {
				walkExpr(el)
			}
		}
	}

	walkPipes := func(pipes []Pipeline) {
		for _, p := range pipes {
			if p.Source != nil && p.Source.ActorSrc != nil {
				for _, a := range p.Source.ActorSrc.Args {
					walkExpr(a)
				}
			}

			for _, e := range p.Elems {
				if call, ok := e.(*ast.ActorCall); ok {
					for _, a := range call.Args {
						walkExpr(a)
					}
				}
			}
		}
	}

	for _, t := range tasks {
		walkExpr(t.Clock)
		walkPipes(t.Plain)

		if t.Modal != nil {
			walkPipes(t.Modal.Control)
			if t.Modal.Switch.Source.IsParam {
				used[t.Modal.Switch.Source.Name] = true
			}

			for _, mb := range t.Modal.Modes {
				walkPipes(mb.Pipelines)
			}
		}
	}
}
