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

// Package graph expands THIR into per-subgraph dataflow graphs: one
// subgraph per plain task, or per control/mode pair for a modal task, each
// independently balanced by the downstream SDF analyzer. Taps become
// explicit fork nodes with fan-out = consumer count; shared-buffer
// `-> name`/`@name` pairs become inter-subgraph Edges annotated with the
// buffer descriptor. Like pkg/thir, the graph is an arena: Nodes and Edges
// are dense slices addressed by integer handle.
//
// Every actor node also carries the per-firing token rate the registry
// declares for it, resolved against that call site's constructor arguments
// and `[...]` shape dimensions; this is what lets the SDF analyzer balance
// graphs whose actors consume and produce token counts other than one.
package graph

import (
	"sort"
	"strconv"
	"strings"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// NodeKind distinguishes actor instances from compiler-inserted plumbing.
type NodeKind int

const (
	NodeActor NodeKind = iota
	NodeFork           // expanded :tap with fan-out = consumer count
	NodeWiden
)

// Node is one arena-indexed dataflow node belonging to exactly one
// Subgraph.
//
// InRate and OutRate are the per-firing token counts this node consumes and
// produces, resolved from the registry's count expression for the actor at
// this call site. Fork and widen nodes carry no registered rate of their
// own and default to 1/1.
type Node struct {
	ID      int
	Kind    NodeKind
	Actor   string
	In      types.Wire
	Out     types.Wire
	InRate  int64
	OutRate int64
}

// Edge is a directed intra-subgraph connection.
type Edge struct {
	From, To int
	Wire     types.Wire
}

// BufferEdge is an inter-subgraph connection synthesized from a `-> name`
// writer paired with every `@name` reader.
type BufferEdge struct {
	Buffer       string
	WriterGraph  string
	WriterNode   int
	ReaderGraphs []string
	ReaderNodes  []int
	Wire         types.Wire
}

// Subgraph is one independently-balanced dataflow graph: a plain task
// body, a modal task's control body, or one of its mode bodies.
type Subgraph struct {
	Name   string // task name, or "task.control" / "task.mode.NAME"
	Task   string
	Kind   string // "plain", "control", "mode"
	Mode   string // mode name, "" unless Kind == "mode"
	Nodes  []Node
	Edges  []Edge
}

// Graph is the whole program's graph-builder output.
type Graph struct {
	Subgraphs []*Subgraph
	Buffers   []BufferEdge
}

// Build expands a THIR program into per-subgraph graphs. sol supplies the
// wire types recorded against each hir.Pipeline position; prog is walked a
// second time (alongside THIR) only for shared-buffer sink/source names,
// since THIR itself does not carry them. reg resolves each actor call's
// per-firing token rate; binds names the buffers bound to an external
// endpoint (via `bind NAME = "endpoint"`) so a buffer read with no
// in-program writer is accepted as an externally-fed input rather than
// rejected as unwritten.
func Build(prog *hir.Program, sol *types.Solution, reg *registry.Registry, binds map[string]bool, bag *diag.Bag) *Graph {
	g := &Graph{}
	writers := map[string]struct {
		graph string
		node  int
		wire  types.Wire
	}{}
	readers := map[string][]struct {
		graph string
		node  int
	}{}

	for _, task := range prog.Tasks {
		if task.Modal == nil {
			sg := buildOne(task.Name, task.Name, "plain", "", task.Plain, sol, reg, prog, writers, readers, bag)
			g.Subgraphs = append(g.Subgraphs, sg)
		}

		if task.Modal != nil {
			ctrl := buildOne(task.Name+".control", task.Name, "control", "", task.Modal.Control, sol, reg, prog, writers, readers, bag)
			g.Subgraphs = append(g.Subgraphs, ctrl)

			for _, mb := range task.Modal.Modes {
				m := buildOne(task.Name+".mode."+mb.Name, task.Name, "mode", mb.Name, mb.Pipelines, sol, reg, prog, writers, readers, bag)
				g.Subgraphs = append(g.Subgraphs, m)
			}
		}
	}

	names := make([]string, 0, len(writers))
	for name := range writers {
		names = append(names, name)
	}

	sort.Strings(names)

	for _, name := range names {
		w := writers[name]
		be := BufferEdge{Buffer: name, WriterGraph: w.graph, WriterNode: w.node, Wire: w.wire}

		for _, r := range readers[name] {
			be.ReaderGraphs = append(be.ReaderGraphs, r.graph)
			be.ReaderNodes = append(be.ReaderNodes, r.node)
		}

		g.Buffers = append(g.Buffers, be)
	}

	unwritten := make([]string, 0)

	for name := range readers {
		if _, ok := writers[name]; ok {
			continue
		}

		unwritten = append(unwritten, name)
	}

	sort.Strings(unwritten)

	for _, name := range unwritten {
		if !binds[name] {
			bag.Errorf(diag.EGraphTopology, zeroSpan, "buffer %q is read via @%s but never written", name, name)
			continue
		}

		// Externally fed: its sole producer is outside the program, supplied
		// through the bound endpoint rather than a `-> name` writer. This
		// buffer has no writer node, so WriterGraph is left empty; lir.
		// InferBinds recognizes that and resolves the direction to in.
		be := BufferEdge{Buffer: name, WriterNode: -1}

		for _, r := range readers[name] {
			be.ReaderGraphs = append(be.ReaderGraphs, r.graph)
			be.ReaderNodes = append(be.ReaderNodes, r.node)
		}

		g.Buffers = append(g.Buffers, be)
	}

	return g
}

type writerEntry = struct {
	graph string
	node  int
	wire  types.Wire
}

type readerEntry = struct {
	graph string
	node  int
}

func buildOne(
	name, task, kind, mode string,
	pipes []hir.Pipeline,
	sol *types.Solution,
	reg *registry.Registry,
	prog *hir.Program,
	writers map[string]writerEntry,
	readers map[string][]readerEntry,
	bag *diag.Bag,
) *Subgraph {
	sg := &Subgraph{Name: name, Task: task, Kind: kind, Mode: mode}

	// One fork node per declared tap, fan-out expanded lazily: every
	// `:tap` occurrence after the first reuses the same fork node, so its
	// out-edge count equals the number of pipelines that read it.
	taps := map[string]int{}

	addNode := func(n Node) int {
		n.ID = len(sg.Nodes)
		sg.Nodes = append(sg.Nodes, n)

		return n.ID
	}

	forkFor := func(tapName string) int {
		if id, ok := taps[tapName]; ok {
			return id
		}

		id := addNode(Node{Kind: NodeFork, InRate: 1, OutRate: 1})
		taps[tapName] = id

		return id
	}

	for pi, p := range pipes {
		prev := -1
		var prevWire types.Wire

		link := func(elemIdx int, call *ast.ActorCall) {
			ref := types.NodeRef{Owner: name, PipeIdx: pi, ElemIdx: elemIdx}

			inRate, outRate := int64(1), int64(1)

			if actor, ok := reg.LookupByName(call.Name); ok {
				inRate, outRate = resolveRates(call, actor, prog, bag)
			}

			id := addNode(Node{
				Kind:    NodeActor,
				Actor:   call.Name,
				In:      sol.In[ref],
				Out:     sol.Out[ref],
				InRate:  inRate,
				OutRate: outRate,
			})

			if prev >= 0 {
				sg.Edges = append(sg.Edges, Edge{From: prev, To: id, Wire: prevWire})
			}

			prev, prevWire = id, sol.Out[ref]
		}

		if p.Source != nil {
			switch {
			case p.Source.ActorSrc != nil:
				link(-1, p.Source.ActorSrc)
			case p.Source.TapRef != "":
				id := forkFor(p.Source.TapRef)
				prev, prevWire = id, sg.Nodes[id].Out
			case p.Source.BufRead != "":
				// Shared-buffer read: the reader side has no local producer
				// node of its own until the writer's Wire is known, so park a
				// placeholder fork node as the read point and register it.
				id := addNode(Node{Kind: NodeFork, InRate: 1, OutRate: 1})
				readers[p.Source.BufRead] = append(readers[p.Source.BufRead], readerEntry{graph: name, node: id})
				prev = id
			}
		}

		for ei, e := range p.Elems {
			switch el := e.(type) {
			case *ast.ActorCall:
				link(ei, el)
			case *ast.TapElem:
				id := forkFor(el.Name)
				if prev >= 0 && prev != id {
					sg.Edges = append(sg.Edges, Edge{From: prev, To: id, Wire: prevWire})
				}

				prev, prevWire = id, prevWire
			case *ast.ProbeElem:
				// Probes observe without altering flow; zero cost in release
				// builds, so they never appear as graph nodes.
			}
		}

		if p.Sink != "" && prev >= 0 {
			writers[p.Sink] = writerEntry{graph: name, node: prev, wire: prevWire}
		}
	}

	return sg
}

var zeroSpan = source.NewSpan(0, 0)

// paramBindings collects the integer bindings a call site supplies for its
// actor's count expressions: its constructor arguments, positionally
// matched to the registered Param names, plus its `[d0,d1,...]` shape
// dimensions under the names "shape0", "shape1", and so on. A term whose
// value can't be resolved to a compile-time constant is simply omitted —
// ResolveCount reports the resulting gap itself.
func paramBindings(call *ast.ActorCall, actor registry.Actor, prog *hir.Program) map[string]int64 {
	b := map[string]int64{}

	for i, p := range actor.Params {
		if i >= len(call.Args) {
			continue
		}

		if v, ok := evalConstInt(call.Args[i], prog); ok {
			b[p.Name] = v
		}
	}

	for i, e := range call.Shape {
		if v, ok := evalConstInt(e, prog); ok {
			b["shape"+strconv.Itoa(i)] = v
		}
	}

	return b
}

// evalConstInt resolves e to a compile-time integer constant: an integer
// literal directly, or a const/param reference resolved (recursively, for
// a param whose default is itself a reference) through prog's own const and
// param tables. Anything else — a runtime-only parameter with no usable
// default, a float, a string — isn't a rate binding and resolves to false.
func evalConstInt(e ast.Expr, prog *hir.Program) (int64, bool) {
	switch v := e.(type) {
	case *ast.IntLit:
		return v.Value, true
	case *ast.Ident:
		if c, ok := prog.Consts[v.Name]; ok {
			return evalConstInt(c, prog)
		}

		return 0, false
	case *ast.ParamRef:
		if p, ok := prog.Params[v.Name]; ok && p.Default != nil {
			return evalConstInt(p.Default, prog)
		}

		return 0, false
	default:
		return 0, false
	}
}

// maxShapeIndex returns the highest "shapeN" position expr references, or
// -1 if it references none.
func maxShapeIndex(expr string) int {
	max := -1

	for _, name := range registry.ReferencedNames(expr) {
		if !strings.HasPrefix(name, "shape") {
			continue
		}

		if n, err := strconv.Atoi(strings.TrimPrefix(name, "shape")); err == nil && n > max {
			max = n
		}
	}

	return max
}

// resolveOneRate resolves a single count expression (in_count or out_count)
// against bindings, falling back to the unit rate. An explicit `[...]`
// shape annotation too short for what expr references is reported as
// EShapeConflict (the call site did supply a constraint, it just doesn't
// reach the rank the actor needs); a term missing from bindings altogether
// — no shape annotation at all, or an unresolvable constructor argument —
// is EDimensionUnresolved.
func resolveOneRate(call *ast.ActorCall, actor registry.Actor, expr, label string, bindings map[string]int64, bag *diag.Bag) int64 {
	if expr == "" {
		return 1
	}

	if max := maxShapeIndex(expr); max >= 0 && len(call.Shape) > 0 && len(call.Shape) <= max {
		bag.Errorf(diag.EShapeConflict, call.Sp,
			"actor %q: %s %q references shape dimension %d but the call site's shape annotation only supplies %d dimension(s)",
			actor.Name, label, expr, max, len(call.Shape))

		return 1
	}

	v, ok := registry.ResolveCount(expr, bindings)
	if !ok {
		bag.Errorf(diag.EDimensionUnresolved, call.Sp,
			"actor %q: %s %q could not be resolved at this call site (unbound: %v)",
			actor.Name, label, expr, registry.ReferencedNames(expr))

		return 1
	}

	return v
}

// resolveRates evaluates actor's in_count/out_count expressions against
// this call site's bindings, falling back to the unit rate and reporting
// EDimensionUnresolved when a count expression names a term the call site
// doesn't supply.
func resolveRates(call *ast.ActorCall, actor registry.Actor, prog *hir.Program, bag *diag.Bag) (inRate, outRate int64) {
	bindings := paramBindings(call, actor, prog)

	inRate = resolveOneRate(call, actor, actor.InCount, "in_count", bindings, bag)
	outRate = resolveOneRate(call, actor, actor.OutCount, "out_count", bindings, bag)

	return inRate, outRate
}
