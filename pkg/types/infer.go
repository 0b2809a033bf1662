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
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// NodeRef identifies one actor-call occurrence within a resolved HIR
// program: the owning task/control/mode body, the pipeline within it, and
// the element index (-1 for the pipeline's own Source, when it is an actor
// call).
type NodeRef struct {
	Owner   string
	PipeIdx int
	ElemIdx int
}

// Widening documents one inserted safe-widening conversion, consumed by pkg/thir's certificate.
type Widening struct {
	At   NodeRef
	From Wire
	To   Wire
}

// Monomorphization documents one polymorphic-actor call resolved to a
// concrete substitution.
type Monomorphization struct {
	At       NodeRef
	Actor    string
	Concrete Wire
}

// Solution is constraint-solver output: the concrete wire type of every
// node's input and output, plus the widening/monomorphization events the
// solver inserted.
type Solution struct {
	In               map[NodeRef]Wire
	Out              map[NodeRef]Wire
	Widenings        []Widening
	Monomorphizations []Monomorphization
}

// concreteWire reports whether s names one of the fixed Wire constants; any
// other string is treated as a type-parameter placeholder.
func concreteWire(s string) (Wire, bool) {
	switch Wire(s) {
	case Int8, Int16, Int32, Float, Double, CFloat, CDouble, Void:
		return Wire(s), true
	default:
		return "", false
	}
}

type taskResult struct {
	in, out map[NodeRef]Wire
	widen   []Widening
	mono    []Monomorphization
	diags   []diagEntry
}

type diagEntry struct {
	code diag.Code
	span source.Span
	msg  string
}

// Infer walks every task's pipelines, solving for each actor call's
// concrete input/output wire type and inserting widening conversions where
// unification would otherwise fail. Tasks are solved
// concurrently via errgroup — the compiler runs single-threaded pass-to-
// pass, but nothing prevents parallel constraint solving *within* this one
// pass, so long as artifact bytes stay deterministic; the
// per-task result slice is merged back in task-declaration order, so the
// final Solution and diagnostic ordering never depend on goroutine
// scheduling.
func Infer(prog *hir.Program, reg *registry.Registry, bag *diag.Bag) *Solution {
	results := make([]taskResult, len(prog.Tasks))

	var g errgroup.Group

	for i, task := range prog.Tasks {
		i, task := i, task

		g.Go(func() error {
			results[i] = solveTask(task, reg)

			return nil
		})
	}

	_ = g.Wait()

	sol := &Solution{In: map[NodeRef]Wire{}, Out: map[NodeRef]Wire{}}

	for _, r := range results {
		for k, v := range r.in {
			sol.In[k] = v
		}

		for k, v := range r.out {
			sol.Out[k] = v
		}

		sol.Widenings = append(sol.Widenings, r.widen...)
		sol.Monomorphizations = append(sol.Monomorphizations, r.mono...)

		for _, d := range r.diags {
			bag.Errorf(d.code, d.span, "%s", d.msg)
		}
	}

	sort.Slice(sol.Widenings, func(i, j int) bool { return nodeRefLess(sol.Widenings[i].At, sol.Widenings[j].At) })
	sort.Slice(sol.Monomorphizations, func(i, j int) bool {
		return nodeRefLess(sol.Monomorphizations[i].At, sol.Monomorphizations[j].At)
	})

	return sol
}

func nodeRefLess(a, b NodeRef) bool {
	if a.Owner != b.Owner {
		return a.Owner < b.Owner
	}

	if a.PipeIdx != b.PipeIdx {
		return a.PipeIdx < b.PipeIdx
	}

	return a.ElemIdx < b.ElemIdx
}

func solveTask(task *hir.Task, reg *registry.Registry) taskResult {
	res := taskResult{in: map[NodeRef]Wire{}, out: map[NodeRef]Wire{}}

	solvePipelines(task.Name, task.Plain, reg, &res)

	if task.Modal != nil {
		solvePipelines(task.Name+".control", task.Modal.Control, reg, &res)

		for _, mb := range task.Modal.Modes {
			solvePipelines(task.Name+".mode."+mb.Name, mb.Pipelines, reg, &res)
		}
	}

	return res
}

func solvePipelines(owner string, pipes []hir.Pipeline, reg *registry.Registry, res *taskResult) {
	for pi, p := range pipes {
		var current Wire
		hasCurrent := false

		if p.Source != nil && p.Source.ActorSrc != nil {
			ref := NodeRef{Owner: owner, PipeIdx: pi, ElemIdx: -1}
			current, hasCurrent = solveCall(ref, p.Source.ActorSrc, reg, hasCurrent, current, res)
		}

		for ei, e := range p.Elems {
			call, ok := e.(*ast.ActorCall)
			if !ok {
				continue
			}

			ref := NodeRef{Owner: owner, PipeIdx: pi, ElemIdx: ei}
			current, hasCurrent = solveCall(ref, call, reg, hasCurrent, current, res)
		}
	}
}

// solveCall resolves one actor-call node's input/output wire types against
// the upstream propagated type, inserting a Widening when unification fails
// but a safe-widening path exists.
func solveCall(ref NodeRef, call *ast.ActorCall, reg *registry.Registry, hasUpstream bool, upstream Wire, res *taskResult) (Wire, bool) {
	actor, ok := reg.LookupByName(call.Name)
	if !ok {
		// Unresolved names are already reported by pkg/hir; avoid a
		// duplicate diagnostic here.
		return upstream, hasUpstream
	}

	// pipit call syntax carries no explicit type-argument list, so a name
	// registered at more than one arity has nothing at the call site to
	// pick among them.
	if arities := reg.Arities(call.Name); len(arities) > 1 {
		res.diags = append(res.diags, diagEntry{diag.EAmbiguousPolyCall, call.Sp,
			fmt.Sprintf("%q is registered at %d different type-parameter arities; nothing at this call site disambiguates them", call.Name, len(arities))})

		return upstream, hasUpstream
	}

	inType, inConcrete := concreteWire(actor.InType)
	if !inConcrete && actor.TypeParams == 0 {
		res.diags = append(res.diags, diagEntry{diag.EUnknownType, call.Sp,
			fmt.Sprintf("actor %q declares in_type %q, which is neither a known wire type nor backed by a type parameter", call.Name, actor.InType)})
	}

	hasInput := actor.InCount != "" && actor.InCount != "0"

	switch {
	case hasInput && hasUpstream && inConcrete:
		res.in[ref] = inType

		switch {
		case upstream == inType:
			// exact match, nothing to insert.
		case Widens(upstream, inType):
			res.widen = append(res.widen, Widening{At: ref, From: upstream, To: inType})
		default:
			if _, joinable := Join(upstream, inType); joinable {
				res.diags = append(res.diags, diagEntry{diag.ENarrowingForbidden, call.Sp,
					"narrowing conversion is never inserted implicitly"})
			} else {
				res.diags = append(res.diags, diagEntry{diag.ETypeMismatch, call.Sp,
					"incompatible wire types at " + call.Name})
			}
		}
	case hasInput && hasUpstream && !inConcrete:
		// Polymorphic input: the call instantiates at the upstream type.
		res.in[ref] = upstream

		if actor.TypeParams > 0 {
			res.mono = append(res.mono, Monomorphization{At: ref, Actor: call.Name, Concrete: upstream})
		}
	case hasInput && !hasUpstream && !inConcrete:
		// A polymorphic input type parameter with nothing upstream to
		// instantiate it from: e.g. the first call in a pipeline, or a
		// buffer/tap read whose own wire type isn't known at this point.
		res.diags = append(res.diags, diagEntry{diag.EAmbiguousType, call.Sp,
			fmt.Sprintf("actor %q's input type parameter has no upstream wire type to instantiate it from", call.Name)})
	}

	outType, outConcrete := concreteWire(actor.OutType)
	if !outConcrete && actor.TypeParams == 0 {
		res.diags = append(res.diags, diagEntry{diag.EUnknownType, call.Sp,
			fmt.Sprintf("actor %q declares out_type %q, which is neither a known wire type nor backed by a type parameter", call.Name, actor.OutType)})
	}

	switch {
	case outConcrete:
		res.out[ref] = outType
		return outType, true
	case hasInput && hasUpstream:
		// Polymorphic pass-through: output mirrors the instantiated input.
		res.out[ref] = upstream
		return upstream, true
	case !hasInput && !hasUpstream:
		// A source actor (no input at all) with a polymorphic output and
		// nothing upstream to pin it: no wire type anywhere determines what
		// it should instantiate at.
		res.diags = append(res.diags, diagEntry{diag.EAmbiguousType, call.Sp,
			fmt.Sprintf("actor %q's output type parameter has no upstream wire type and no concrete input to instantiate it from", call.Name)})

		return upstream, hasUpstream
	default:
		return upstream, hasUpstream
	}
}
