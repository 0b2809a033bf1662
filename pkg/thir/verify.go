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
package thir

import (
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/types"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Verify independently checks the lowering certificate's five obligations
// against the THIR it was produced alongside. It never
// trusts Build's bookkeeping: it recomputes each check directly from Nodes
// and Edges, so a bug in Build that produces an unsound certificate is
// still caught here. Returns true if every obligation holds; failures are
// reported into bag as E0200-E0206 plus the umbrella E0601.
func Verify(t *THIR, cert *Certificate, bag *diag.Bag) bool {
	ok := true

	// L1: both endpoints of every edge have identical concrete wire types.
	for _, e := range t.Edges {
		from, to := t.Nodes[e.From], t.Nodes[e.To]
		if from.Out == "" || to.In == "" || from.Out != to.In {
			bag.Errorf(diag.ETypeMismatch, zero(), "L1 violated: edge %d->%d has mismatched endpoint types (%s vs %s)",
				e.From, e.To, from.Out, to.In)

			ok = false
		}
	}

	// L2: every inserted conversion belongs to the allowed widening chain.
	for _, w := range cert.Widenings {
		if !types.Widens(w.From, w.To) {
			bag.Errorf(diag.EIllegalWidening, zero(), "L2 violated: inserted conversion %s->%s is not on an allowed chain",
				w.From, w.To)

			ok = false
		}
	}

	// L3: every inserted conversion preserves token rate and shape. Widen
	// nodes are unary pass-through by construction (Build never changes a
	// widen node's firing multiplicity), so this holds structurally; the
	// check here defends against a future Build bug that fans a widen node
	// out to more than one outgoing edge.
	fanout := map[int]int{}
	for _, e := range t.Edges {
		fanout[e.From]++
	}

	for _, n := range t.Nodes {
		if n.Kind == NodeWiden && fanout[n.ID] > 1 {
			bag.Errorf(diag.ECertificateInternal, zero(), "L3 violated: widen node %d has fan-out %d, expected 1", n.ID, fanout[n.ID])

			ok = false
		}
	}

	// L4: every actor node is concrete; no residual type parameters.
	for _, n := range t.Nodes {
		if n.Kind != NodeActor {
			continue
		}

		if n.Out == "" {
			bag.Errorf(diag.EResidualTypeParam, zero(), "L4 violated: actor node %d (%s) has an unresolved output type", n.ID, n.Actor)

			ok = false
		}
	}

	// L5: no port has an unresolved or fallback wire type.
	for _, n := range t.Nodes {
		wantsIn := n.Kind == NodeActor
		if wantsIn && n.In == "" && hasIncoming(t, n.ID) {
			bag.Errorf(diag.EUnresolvedWireType, zero(), "L5 violated: node %d (%s) has an unresolved input port", n.ID, n.Actor)

			ok = false
		}
	}

	if !ok {
		bag.Errorf(diag.ECertL1, zero(), "lowering certificate is unsound; compilation aborted")
	}

	return ok
}

func hasIncoming(t *THIR, id int) bool {
	for _, e := range t.Edges {
		if e.To == id {
			return true
		}
	}

	return false
}

func zero() source.Span { return source.NewSpan(0, 0) }
