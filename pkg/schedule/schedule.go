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

// Package schedule turns each pkg/sdf Analysis into a concrete firing
// order: a PASS — a sequence of (node, multiplicity) pairs whose
// per-node multiplicities sum to the node's repetition count, respecting
// data dependencies. It also computes each task's K-factor
// and, optionally, fuses adjacent same-task same-multiplicity PASS entries
// into a single inner loop.
package schedule

import (
	"math"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Entry is one (node, multiplicity) pair in a PASS.
type Entry struct {
	Node       int
	Multiplicity int
	Fused      bool // true if this entry is fused with the entry that follows it
}

// PASS is the complete firing order for one subgraph.
type PASS struct {
	SubgraphName string
	Entries      []Entry
}

// Certificate documents the schedule obligations checked against a PASS
//: S1 every node appears r(node)
// times across the PASS, S2 no dependency violation.
type Certificate struct {
	S1 bool
	S2 bool
}

// KFactor is ⌈clock_freq / tick_rate⌉; tickRate
// defaults to clockFreq when the caller supplies no runtime hint (0).
func KFactor(clockFreq, tickRate float64) int {
	if tickRate <= 0 {
		tickRate = clockFreq
	}

	if tickRate <= 0 {
		return 1
	}

	return int(math.Ceil(clockFreq / tickRate))
}

// Build produces an unfused PASS for sg respecting reps (the repetition
// vector from pkg/sdf, parallel to sg.Nodes) and the subgraph's data
// dependencies: a node may not fire before every predecessor that feeds it
// has fired enough times to supply its required tokens. Every node fires
// its whole repetition count r(node) in a single entry, so a predecessor
// that already has an entry has produced all of its tokens for the
// iteration; a single topological pass — each node placed as soon as all
// its predecessors have been placed, with multiplicity r(node) — is
// therefore sufficient.
func Build(sg *graph.Subgraph, reps []int, bag *diag.Bag) *PASS {
	n := len(sg.Nodes)
	indeg := make([]int, n)
	preds := make([][]int, n)

	for _, e := range sg.Edges {
		indeg[e.To]++
		preds[e.To] = append(preds[e.To], e.From)
	}

	fired := make([]int, n) // how many times each node has fired so far
	ready := func(u int) bool {
		for _, p := range preds[u] {
			if fired[p] == 0 {
				return false
			}
		}

		return true
	}

	pass := &PASS{SubgraphName: sg.Name}
	remaining := 0

	for i := 0; i < n; i++ {
		if i < len(reps) {
			remaining += reps[i]
		}
	}

	for remaining > 0 {
		progressed := false

		for u := 0; u < n; u++ {
			want := 0
			if u < len(reps) {
				want = reps[u]
			}

			if fired[u] >= want {
				continue
			}

			if !ready(u) {
				continue
			}

			mult := want - fired[u]
			pass.Entries = append(pass.Entries, Entry{Node: u, Multiplicity: mult})
			fired[u] += mult
			remaining -= mult
			progressed = true
		}

		if !progressed {
			bag.Errorf(diag.EScheduleCyclic, zeroSpan, "subgraph %q cannot be scheduled: irresolvable dependency cycle", sg.Name)
			return pass
		}
	}

	return pass
}

// Verify independently checks S1 (every node appears exactly r(node) times
// summed across the PASS) and S2 (no entry fires a node before all its
// predecessors have appeared at least once earlier in the PASS).
func Verify(sg *graph.Subgraph, reps []int, pass *PASS, bag *diag.Bag) *Certificate {
	cert := &Certificate{S1: true, S2: true}

	totals := make([]int, len(sg.Nodes))
	for _, e := range pass.Entries {
		totals[e.Node] += e.Multiplicity
	}

	for i, want := range reps {
		if i >= len(totals) || totals[i] != want {
			cert.S1 = false

			bag.Errorf(diag.ECertS, zeroSpan, "schedule certificate S1 violated: node %d fired %d times, expected %d", i, totals[i], want)
		}
	}

	fired := map[int]bool{}
	preds := make([][]int, len(sg.Nodes))

	for _, e := range sg.Edges {
		preds[e.To] = append(preds[e.To], e.From)
	}

	for _, entry := range pass.Entries {
		for _, p := range preds[entry.Node] {
			if !fired[p] {
				cert.S2 = false

				bag.Errorf(diag.ECertS, zeroSpan, "schedule certificate S2 violated: node %d fires before predecessor %d", entry.Node, p)
			}
		}

		fired[entry.Node] = true
	}

	return cert
}

var zeroSpan = source.NewSpan(0, 0)
