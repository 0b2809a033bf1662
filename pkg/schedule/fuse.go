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
package schedule

import "github.com/pipit-lang/pcc/pkg/graph"

// Fuse merges adjacent PASS entries into single fused inner loops wherever
// rate-domain fusion conditions hold: the two entries share equal
// multiplicity and are connected by exactly one edge (pkg/sdf already
// requires a direct, non-fork edge's producer and consumer rates to
// match, so same multiplicity here implies the same token count crosses
// every firing), the connecting edge crosses no feedback cut (the
// consumer has no other predecessor than the producer) and no barrier
// (neither node is a NodeFork, which stands in for a shared-buffer
// boundary or probe tee).
// Fusion never reorders entries — it only marks consecutive runs as one
// fused loop — so it preserves firing counts, per-edge FIFO order,
// observable side-effect order, and error short-circuit semantics by
// construction.
func Fuse(sg *graph.Subgraph, pass *PASS) *PASS {
	succOf := map[int]int{} // node -> its single successor, if unique
	predCount := map[int]int{}

	for _, e := range sg.Edges {
		predCount[e.To]++

		if _, exists := succOf[e.From]; exists {
			succOf[e.From] = -1 // more than one outgoing edge: not fusable
		} else {
			succOf[e.From] = e.To
		}
	}

	isBarrier := func(id int) bool {
		return id < len(sg.Nodes) && sg.Nodes[id].Kind == graph.NodeFork
	}

	fused := &PASS{SubgraphName: pass.SubgraphName}

	i := 0
	for i < len(pass.Entries) {
		cur := pass.Entries[i]

		for i+1 < len(pass.Entries) {
			next := pass.Entries[i+1]

			canFuse := cur.Multiplicity == next.Multiplicity &&
				succOf[cur.Node] == next.Node &&
				predCount[next.Node] == 1 &&
				!isBarrier(cur.Node) && !isBarrier(next.Node)

			if !canFuse {
				break
			}

			cur = Entry{Node: cur.Node, Multiplicity: cur.Multiplicity, Fused: true}
			fused.Entries = append(fused.Entries, cur)
			cur = next
			i++
		}

		fused.Entries = append(fused.Entries, cur)
		i++
	}

	return fused
}
