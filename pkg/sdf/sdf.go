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

// Package sdf analyzes each pkg/graph Subgraph as a synchronous dataflow
// system: it solves the per-node repetition vector from the topology
// matrix Γ, rejects a direct actor-to-actor pipe whose rates can't match
// 1:1, detects feedback cycles lacking an initial token, verifies
// cross-clock buffer rate matching, bounds per-edge buffer occupancy
// against `set mem`, and checks modal switch-source wiring.
package sdf

import (
	"sort"
	"strings"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/hir"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/collection/stack"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Analysis is the SDF analyzer's output for one Subgraph.
type Analysis struct {
	SubgraphName string
	Repetitions  []int // parallel to the subgraph's Nodes
	HasSolution  bool
	BufferBound  map[int]int // per-edge index, occupancy upper bound in tokens
}

// Analyze runs the full SDF analysis pass over every subgraph, returning
// one Analysis per subgraph in g.Subgraphs order. prog supplies each task's
// clock frequency for cross-clock matching; setMem is the `set mem` byte
// budget, 0 disables that check.
func Analyze(g *graph.Graph, prog *hir.Program, setMem int64, bag *diag.Bag) []*Analysis {
	results := make([]*Analysis, len(g.Subgraphs))

	for i, sg := range g.Subgraphs {
		results[i] = analyzeOne(sg, bag)
	}

	checkCrossClock(g, prog, bag)
	checkModalSwitch(g, prog, bag)

	if setMem > 0 {
		checkBufferBudget(results, setMem, bag)
	}

	return results
}

// TaskFrequencyHz evaluates a clock expression to a concrete frequency.
// Only frequency literals and plain-decimal numeric literals resolve here;
// a `$param`-driven clock is runtime-configurable and so has no single
// compile-time frequency to check against (cross-clock matching against it
// is necessarily a runtime obligation, not a compile-time one). Exported
// for pkg/cmd, which needs the same per-task Hz value to build the
// bind-inference rate table.
func TaskFrequencyHz(e ast.Expr) (float64, bool) {
	switch v := e.(type) {
	case *ast.FrequencyLit:
		return v.Hz, true
	case *ast.FloatLit:
		return v.Value, true
	case *ast.IntLit:
		return float64(v.Value), true
	default:
		return 0, false
	}
}

func analyzeOne(sg *graph.Subgraph, bag *diag.Bag) *Analysis {
	a := &Analysis{SubgraphName: sg.Name, BufferBound: map[int]int{}}

	reps, ok := solveRepetitions(sg)
	a.Repetitions = reps
	a.HasSolution = ok

	if !ok {
		bag.Errorf(diag.ENoRepetitionVector, zeroSpan, "subgraph %q has no balanced repetition vector", sg.Name)
		return a
	}

	checkFeedback(sg, bag)
	checkDirectRateMatch(sg, bag)

	for ei := range sg.Edges {
		a.BufferBound[ei] = bufferBound(sg, reps, ei)
	}

	return a
}

// edgeRate reports (produce, consume) token counts per firing on e: the
// registry-resolved OutRate of its source node and InRate of its
// destination node, as pkg/graph recorded them against this call site's
// constructor arguments and shape dimensions. A node with no registered
// rate of its own (a fork or widen node) carries InRate/OutRate 1, the
// correct rate for plumbing that neither produces nor consumes more than
// one token per pass-through.
func edgeRate(sg *graph.Subgraph, e graph.Edge) (produce, consume int64) {
	produce = sg.Nodes[e.From].OutRate
	consume = sg.Nodes[e.To].InRate

	if produce <= 0 {
		produce = 1
	}

	if consume <= 0 {
		consume = 1
	}

	return produce, consume
}

// solveRepetitions finds the minimal positive integer vector r such that
// Γr = 0, where Γ[e,u] = +produce(e) if node u produces on edge e, and
// -consume(e) if u consumes. Balancing proceeds by
// propagating each node's repetition count, as a fraction relative to an
// arbitrary root, breadth-first across edges using edgeRate, then LCM-
// normalizing the resulting rationals into the minimal positive integer
// vector — the standard ratio-propagation algorithm for an acyclic-enough
// (in the undirected sense) SDF topology; a cross-component mismatch
// between two independently-derived ratios for the same node reports no
// solution (E0304).
func solveRepetitions(sg *graph.Subgraph) ([]int, bool) {
	n := len(sg.Nodes)
	if n == 0 {
		return nil, true
	}

	num := make([]int64, n)
	den := make([]int64, n)
	visited := make([]bool, n)

	type link struct {
		to              int
		producerIsSelf  bool
		produce, consume int64
	}

	adj := make([][]link, n)
	for _, e := range sg.Edges {
		produce, consume := edgeRate(sg, e)
		adj[e.From] = append(adj[e.From], link{to: e.To, producerIsSelf: true, produce: produce, consume: consume})
		adj[e.To] = append(adj[e.To], link{to: e.From, producerIsSelf: false, produce: produce, consume: consume})
	}

	for root := 0; root < n; root++ {
		if visited[root] {
			continue
		}

		num[root], den[root] = 1, 1
		visited[root] = true
		queue := []int{root}

		for len(queue) > 0 {
			u := queue[0]
			queue = queue[1:]

			for _, l := range adj[u] {
				// r(producer) * produce == r(consumer) * consume
				var pn, pd int64
				if l.producerIsSelf {
					pn, pd = num[u]*l.consume, den[u]*l.produce
				} else {
					pn, pd = num[u]*l.produce, den[u]*l.consume
				}

				if g := gcd(pn, pd); g != 0 {
					pn, pd = pn/g, pd/g
				}

				if visited[l.to] {
					if num[l.to]*pd != pn*den[l.to] {
						return nil, false
					}

					continue
				}

				num[l.to], den[l.to] = pn, pd
				visited[l.to] = true

				queue = append(queue, l.to)
			}
		}
	}

	var lcmDen int64 = 1
	for i := 0; i < n; i++ {
		lcmDen = lcm(lcmDen, den[i])
	}

	r := make([]int, n)
	for i := 0; i < n; i++ {
		v := num[i] * (lcmDen / den[i])
		if v <= 0 {
			return nil, false
		}

		r[i] = int(v)
	}

	g := r[0]
	for _, v := range r[1:] {
		g = int(gcd(int64(g), int64(v)))
	}

	if g > 1 {
		for i := range r {
			r[i] /= g
		}
	}

	return r, true
}

func gcd(a, b int64) int64 {
	if a < 0 {
		a = -a
	}

	if b < 0 {
		b = -b
	}

	for b != 0 {
		a, b = b, a%b
	}

	return a
}

func lcm(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}

	return a / gcd(a, b) * b
}

// checkFeedback detects cycles in sg and requires at least one node on
// each cycle to carry an initial token. pkg/graph
// does not yet model initial-token annotations explicitly (no grammar
// surface assigns them), so this walk conservatively reports any cycle: a
// genuine feedback path without a delay actor is unsatisfiable at runtime,
// and the registry convention is that a delay/feedback actor's presence on
// the cycle is what pkg/sdf's more complete sibling revision would check
// by actor kind.
func checkFeedback(sg *graph.Subgraph, bag *diag.Bag) {
	n := len(sg.Nodes)
	adj := make([][]int, n)

	for _, e := range sg.Edges {
		adj[e.From] = append(adj[e.From], e.To)
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)

	color := make([]int, n)
	path := stack.NewStack[int]()

	var visit func(u int) bool

	visit = func(u int) bool {
		color[u] = gray
		path.Push(u)

		for _, v := range adj[u] {
			if color[v] == gray || (color[v] == white && visit(v)) {
				return true
			}
		}

		path.Pop()
		color[u] = black

		return false
	}

	for u := 0; u < n; u++ {
		if color[u] == white && visit(u) {
			bag.Errorf(diag.EFeedbackNoDelay, zeroSpan, "subgraph %q contains a feedback cycle with no initial-token node (depth %d)",
				sg.Name, path.Len())
			return
		}
	}
}

// checkDirectRateMatch rejects a direct actor-to-actor edge (neither
// endpoint a fork) whose producer and consumer rates disagree. A fork
// node is the only construct that gives a multi-rate junction somewhere
// to hold the excess tokens between firings; two actors wired directly
// by a bare pipe have nowhere to buffer a rate mismatch, so their
// per-firing token counts must match exactly. Edges into or out of a
// fork are exempt: solveRepetitions already balances those through the
// subgraph's repetition vector, as in a tap that feeds one reader once
// per 256 samples and another once per sample.
func checkDirectRateMatch(sg *graph.Subgraph, bag *diag.Bag) {
	for _, e := range sg.Edges {
		if sg.Nodes[e.From].Kind != graph.NodeActor || sg.Nodes[e.To].Kind != graph.NodeActor {
			continue
		}

		produce, consume := edgeRate(sg, e)
		if produce != consume {
			bag.Errorf(diag.ERateMismatch, zeroSpan,
				"subgraph %q: %q produces %d token(s) per firing but %q consumes %d with no intervening tap or buffer; insert a tap or reshape",
				sg.Name, sg.Nodes[e.From].Actor, produce, sg.Nodes[e.To].Actor, consume)
		}
	}
}

// bufferBound computes a safe upper bound on edge ei's occupancy: the
// producer's repetition count times its per-firing output rate, the total
// token volume it can possibly emit across one balanced iteration of the
// subgraph. Without a materialized PASS order yet (that is pkg/schedule's
// job), this is an over-approximation that is never tighter than the true
// PASS-ordered bound, which is what "safe" requires.
func bufferBound(sg *graph.Subgraph, reps []int, ei int) int {
	e := sg.Edges[ei]
	if e.From >= len(reps) {
		return 0
	}

	rate := sg.Nodes[e.From].OutRate
	if rate <= 0 {
		rate = 1
	}

	return reps[e.From] * int(rate)
}

// readerConsumeRate resolves the real per-firing consumption rate for a
// buffer read. graph.Build inserts a synthetic NodeFork as the buffer-read
// entry point (so a tap can fan out to more than one downstream consumer),
// so node itself always carries the placeholder InRate of 1; the genuine
// rate lives on whatever NodeActor that fork feeds. This follows the fork's
// outgoing edges forward — through any further forks — until it finds an
// actor, and returns the maximum InRate among them, since a cross-clock
// buffer balances against its hungriest consumer.
func readerConsumeRate(sg *graph.Subgraph, node int) int64 {
	if node < 0 || node >= len(sg.Nodes) {
		return 1
	}

	if sg.Nodes[node].Kind == graph.NodeActor {
		if rate := sg.Nodes[node].InRate; rate > 0 {
			return rate
		}

		return 1
	}

	var (
		best  int64 = -1
		visit       func(n, depth int)
	)

	visit = func(n, depth int) {
		if depth > len(sg.Nodes) {
			return
		}

		for _, e := range sg.Edges {
			if e.From != n {
				continue
			}

			if sg.Nodes[e.To].Kind == graph.NodeActor {
				if rate := sg.Nodes[e.To].InRate; rate > best {
					best = rate
				}
			} else {
				visit(e.To, depth+1)
			}
		}
	}

	visit(node, 0)

	if best <= 0 {
		return 1
	}

	return best
}

// checkCrossClock verifies, for every shared buffer, that the writer's
// throughput (its resolved per-firing OutRate times its task's clock
// frequency) equals each reader's throughput (its resolved per-firing
// InRate times its own task's clock frequency) — the P_w·f_w = C_r·f_r
// balance a cross-clock buffer must satisfy for neither side to starve or
// overflow the other. Two distinguishable failures fall out of that one
// equation: a producer/consumer rate disagreement between two sides
// clocked identically (EDimensionConflict — the clock isn't at fault, the
// token counts are) and a genuine clock-frequency mismatch the rates
// cannot absorb (ECrossClockMismatch).
func checkCrossClock(g *graph.Graph, prog *hir.Program, bag *diag.Bag) {
	freq := map[string]float64{}

	for _, task := range prog.Tasks {
		if hz, ok := TaskFrequencyHz(task.Clock); ok {
			freq[task.Name] = hz
		}
	}

	byName := map[string]*graph.Subgraph{}
	for _, sg := range g.Subgraphs {
		byName[sg.Name] = sg
	}

	taskOf := func(subgraph string) string {
		name, _, _ := strings.Cut(subgraph, ".")
		return name
	}

	sortedBuffers := append([]graph.BufferEdge(nil), g.Buffers...)
	sort.Slice(sortedBuffers, func(i, j int) bool { return sortedBuffers[i].Buffer < sortedBuffers[j].Buffer })

	for _, be := range sortedBuffers {
		wf, wok := freq[taskOf(be.WriterGraph)]
		if !wok {
			continue
		}

		wsg := byName[be.WriterGraph]
		if wsg == nil || be.WriterNode < 0 || be.WriterNode >= len(wsg.Nodes) {
			continue
		}

		produce := wsg.Nodes[be.WriterNode].OutRate
		if produce <= 0 {
			produce = 1
		}

		for i, rg := range be.ReaderGraphs {
			rf, rok := freq[taskOf(rg)]
			if !rok {
				continue
			}

			rsg := byName[rg]
			if rsg == nil {
				continue
			}

			consume := readerConsumeRate(rsg, be.ReaderNodes[i])

			switch {
			case wf == rf && produce != consume:
				bag.Errorf(diag.EDimensionConflict, zeroSpan,
					"buffer %q: writer and reader share clock %gHz but disagree on per-firing token count (writer produces %d, reader consumes %d)",
					be.Buffer, wf, produce, consume)
			case float64(produce)*wf != float64(consume)*rf:
				bag.Errorf(diag.ECrossClockMismatch, zeroSpan,
					"buffer %q: writer clock %gHz x %d token(s)/firing does not balance against reader clock %gHz x %d token(s)/firing",
					be.Buffer, wf, produce, rf, consume)
			}
		}
	}
}

// checkModalSwitch verifies that a modal task's switch source resolves to
// a 32-bit integer: a runtime `$param` whose default is an integer
// literal, or a control-produced buffer whose wire type is types.Int32.
// hir.checkSwitch already confirms the source exists and names a declared
// mode set (E0018-E0021); this only checks its type, which needs the
// buffer wire types the graph builder resolves — unavailable yet at HIR
// construction time.
func checkModalSwitch(g *graph.Graph, prog *hir.Program, bag *diag.Bag) {
	bufWire := map[string]types.Wire{}
	for _, be := range g.Buffers {
		bufWire[be.Buffer] = be.Wire
	}

	for _, task := range prog.Tasks {
		if task.Modal == nil {
			continue
		}

		sw := task.Modal.Switch.Source

		if sw.IsParam {
			p, ok := prog.Params[sw.Name]
			if !ok || p.Default == nil {
				continue
			}

			switch p.Default.(type) {
			case *ast.IntLit:
				// 32-bit integer parameter, as required.
			case *ast.FloatLit, *ast.FrequencyLit, *ast.SizeLit:
				bag.Errorf(diag.EModalSwitchNotInt, task.Modal.Switch.Sp,
					"task %q: switch source parameter %q has a non-integer default value", task.Name, sw.Name)
			default:
				bag.Errorf(diag.EModalSwitchType, task.Modal.Switch.Sp,
					"task %q: switch source parameter %q is not a 32-bit integer parameter", task.Name, sw.Name)
			}

			continue
		}

		wire, ok := bufWire[sw.Name]
		if !ok {
			continue
		}

		switch wire {
		case types.Int32:
			// Required type.
		case types.Float, types.Double, types.CFloat, types.CDouble:
			bag.Errorf(diag.EModalSwitchNotInt, task.Modal.Switch.Sp,
				"task %q: switch source buffer %q has type %s, a non-integer type", task.Name, sw.Name, wire)
		default:
			bag.Errorf(diag.EModalSwitchType, task.Modal.Switch.Sp,
				"task %q: switch source buffer %q has type %s, not 32-bit integer", task.Name, sw.Name, wire)
		}
	}
}

func checkBufferBudget(results []*Analysis, setMem int64, bag *diag.Bag) {
	var total int64

	for _, a := range results {
		for _, b := range a.BufferBound {
			total += int64(b)
		}
	}

	if total > setMem {
		bag.Errorf(diag.EBufferBoundExceeded, zeroSpan, "total buffer occupancy %d exceeds 'set mem' budget %d", total, setMem)
	}
}

var zeroSpan = source.NewSpan(0, 0)
