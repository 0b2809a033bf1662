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

// Package lir builds the flat per-task Low-level IR codegen walks
//: a static storage block, an ordered firing list with
// fused inner loops carried over from pkg/schedule, and a memory class
// per edge. It also performs bind inference — deriving each shared
// buffer's external-endpoint contract from the graph, independent of the
// schedule.
package lir

import (
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/graph"
	"github.com/pipit-lang/pcc/pkg/schedule"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// EdgeClass classifies one edge's storage.
type EdgeClass int

const (
	// ClassLocal is an intra-task edge within the same fusion domain:
	// register/stack.
	ClassLocal EdgeClass = iota
	// ClassShared is an inter-task ring buffer (single writer, multi
	// reader).
	ClassShared
	// ClassAliased is a probe tee: the same value observed without
	// altering the primary flow.
	ClassAliased
)

// StorageSlot is one entry in the static storage block.
type StorageSlot struct {
	Name  string
	Kind  string // "const", "ring", "param"
	Wire  types.Wire
	Slots int // ring depth, or 1 for scalar/param slots
}

// TaskLIR is the flat per-task output: everything codegen needs to emit
// one task's function, with no further inference required.
type TaskLIR struct {
	SubgraphName string
	Storage      []StorageSlot
	Firing       *schedule.PASS
	EdgeClasses  []EdgeClass // parallel to the subgraph's Edges
}

// Certificate documents R1/R2 obligations for LIR construction.
type Certificate struct {
	R1 bool
	R2 bool
}

// Build constructs one TaskLIR per subgraph. buffers is the program's
// shared-buffer edge set (from pkg/graph.Graph.Buffers), used to classify
// which subgraph-local edges are actually fed by or feed into another
// subgraph's writer/reader node, making them ClassShared rather than
// ClassLocal; fused is the already-fusion-optimized PASS for each
// subgraph (pkg/schedule.Fuse output), in the same order as subgraphs.
func Build(subgraphs []*graph.Subgraph, buffers []graph.BufferEdge, fused []*schedule.PASS) []*TaskLIR {
	sharedNodes := map[string]map[int]bool{} // subgraph name -> node id -> is a bind endpoint

	for _, be := range buffers {
		if sharedNodes[be.WriterGraph] == nil {
			sharedNodes[be.WriterGraph] = map[int]bool{}
		}

		sharedNodes[be.WriterGraph][be.WriterNode] = true

		for i, rg := range be.ReaderGraphs {
			if sharedNodes[rg] == nil {
				sharedNodes[rg] = map[int]bool{}
			}

			sharedNodes[rg][be.ReaderNodes[i]] = true
		}
	}

	out := make([]*TaskLIR, len(subgraphs))

	for i, sg := range subgraphs {
		t := &TaskLIR{SubgraphName: sg.Name, Firing: fused[i]}

		for _, n := range sg.Nodes {
			if n.Kind != graph.NodeActor {
				continue
			}

			t.Storage = append(t.Storage, StorageSlot{Name: n.Actor, Kind: "const", Wire: n.Out, Slots: 1})
		}

		shared := sharedNodes[sg.Name]
		t.EdgeClasses = make([]EdgeClass, len(sg.Edges))

		for ei, e := range sg.Edges {
			switch {
			case e.To < len(sg.Nodes) && sg.Nodes[e.To].Kind == graph.NodeFork:
				t.EdgeClasses[ei] = ClassAliased
			case shared[e.From] || shared[e.To]:
				t.EdgeClasses[ei] = ClassShared
			default:
				t.EdgeClasses[ei] = ClassLocal
			}
		}

		out[i] = t
	}

	return out
}

// Verify independently checks R1 (every edge carries exactly one
// consistent memory class) and R2 (each buffer name has exactly one entry
// in the buffer set) against the constructed LIR and the program's buffer
// set.
func Verify(subgraphs []*graph.Subgraph, lirs []*TaskLIR, buffers []graph.BufferEdge, bag *diag.Bag) *Certificate {
	cert := &Certificate{R1: true, R2: true}

	for i, t := range lirs {
		if len(t.EdgeClasses) != len(subgraphs[i].Edges) {
			cert.R1 = false

			bag.Errorf(diag.ECertR, zeroSpan, "LIR certificate R1 violated: subgraph %q has %d edges but %d memory classes",
				t.SubgraphName, len(subgraphs[i].Edges), len(t.EdgeClasses))
		}
	}

	writerCount := map[string]int{}
	for _, be := range buffers {
		writerCount[be.Buffer]++
	}

	for name, count := range writerCount {
		if count != 1 {
			cert.R2 = false

			bag.Errorf(diag.ECertR, zeroSpan, "LIR certificate R2 violated: buffer %q has %d writers, expected exactly 1", name, count)
		}
	}

	return cert
}

var zeroSpan = source.NewSpan(0, 0)
