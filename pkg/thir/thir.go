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

// Package thir builds the Typed High-level IR: HIR plus pkg/types'
// Solution, with explicit widening-conversion nodes spliced into every edge
// the solver widened, and a Certificate documenting every inserted
// conversion and monomorphization, checked independently by Verify against
// obligations L1-L5. THIR is an
// arena: nodes and edges are dense slices addressed by integer index, not
// pointers, so the certificate can be checked as a pure function of data.
package thir

import (
	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/types"
)

// elemActorCall reports the actor name if e is an actor-call pipe element.
func elemActorCall(e ast.PipeElem) (string, bool) {
	call, ok := e.(*ast.ActorCall)
	if !ok {
		return "", false
	}

	return call.Name, true
}

// NodeKind distinguishes an actor instance from a compiler-inserted
// widening conversion.
type NodeKind int

const (
	NodeActor NodeKind = iota
	NodeWiden
)

// Node is one arena-indexed THIR node.
type Node struct {
	ID    int
	Kind  NodeKind
	Owner string
	Ref   types.NodeRef // zero value for synthetic NodeWiden nodes
	Actor string
	In    types.Wire
	Out   types.Wire
}

// Edge is a directed arena-indexed connection between two nodes, carrying
// the wire type that flows along it.
type Edge struct {
	From, To int
	Wire     types.Wire
}

// THIR is the whole lowered program: one arena per owner (task/control/mode
// body name), flattened into global node/edge slices.
type THIR struct {
	Nodes []Node
	Edges []Edge
}

// Certificate documents every widening conversion and monomorphization the
// solver performed, exactly as produced by pkg/types.Infer — Build does not
// invent or drop entries, it only arranges them into THIR's node/edge
// shape.
type Certificate struct {
	Widenings         []types.Widening
	Monomorphizations []types.Monomorphization
}

// Build constructs THIR and its Certificate from a resolved HIR program and
// its type Solution.
func Build(prog *hir.Program, sol *types.Solution) (*THIR, *Certificate) {
	b := &builder{sol: sol, widenAt: map[types.NodeRef]types.Widening{}}

	for _, w := range sol.Widenings {
		b.widenAt[w.At] = w
	}

	for _, task := range prog.Tasks {
		b.buildPipelines(task.Name, task.Plain)

		if task.Modal != nil {
			b.buildPipelines(task.Name+".control", task.Modal.Control)

			for _, mb := range task.Modal.Modes {
				b.buildPipelines(task.Name+".mode."+mb.Name, mb.Pipelines)
			}
		}
	}

	return &THIR{Nodes: b.nodes, Edges: b.edges}, &Certificate{
		Widenings:         sol.Widenings,
		Monomorphizations: sol.Monomorphizations,
	}
}

type builder struct {
	sol     *types.Solution
	widenAt map[types.NodeRef]types.Widening
	nodes   []Node
	edges   []Edge
}

func (b *builder) addNode(n Node) int {
	n.ID = len(b.nodes)
	b.nodes = append(b.nodes, n)

	return n.ID
}

func (b *builder) buildPipelines(owner string, pipes []hir.Pipeline) {
	for pi, p := range pipes {
		prev := -1

		link := func(ref types.NodeRef, actorName string) {
			if w, widened := b.widenAt[ref]; widened {
				widenID := b.addNode(Node{Kind: NodeWiden, Owner: owner, In: w.From, Out: w.To})
				if prev >= 0 {
					b.edges = append(b.edges, Edge{From: prev, To: widenID, Wire: w.From})
				}

				prev = widenID
			}

			id := b.addNode(Node{
				Kind:  NodeActor,
				Owner: owner,
				Ref:   ref,
				Actor: actorName,
				In:    b.sol.In[ref],
				Out:   b.sol.Out[ref],
			})

			if prev >= 0 {
				b.edges = append(b.edges, Edge{From: prev, To: id, Wire: b.sol.In[ref]})
			}

			prev = id
		}

		if p.Source != nil && p.Source.ActorSrc != nil {
			ref := types.NodeRef{Owner: owner, PipeIdx: pi, ElemIdx: -1}
			link(ref, p.Source.ActorSrc.Name)
		}

		for ei, e := range p.Elems {
			call, ok := elemActorCall(e)
			if !ok {
				continue
			}

			ref := types.NodeRef{Owner: owner, PipeIdx: pi, ElemIdx: ei}
			link(ref, call)
		}
	}
}
