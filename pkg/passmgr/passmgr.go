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

// Package passmgr is the compiler's pass manager. Each
// pass declares the artifacts it requires and produces; an emission
// target names the artifact it wants, and the manager computes and runs
// the minimal topologically-ordered subset of registered passes needed
// to produce it. A pass failure aborts the run immediately — no later
// pass executes, and the caller is responsible for not persisting
// whatever partial artifacts are sitting in the Context.
package passmgr

import (
	"fmt"

	"github.com/pipit-lang/pcc/pkg/diag"
)

// Artifact names one value a pass can require or produce. Passes are
// wired together purely by these names, not by pass name, so a new pass
// that produces an existing artifact differently can be swapped in
// without touching its consumers.
type Artifact string

const (
	ArtifactAST         Artifact = "ast"
	ArtifactHIR         Artifact = "hir"
	ArtifactTypes       Artifact = "types"
	ArtifactTHIR        Artifact = "thir"
	ArtifactGraph       Artifact = "graph"
	ArtifactSDF         Artifact = "sdf"
	ArtifactSchedule    Artifact = "schedule"
	ArtifactLIR         Artifact = "lir"
	ArtifactBinds       Artifact = "binds"
	ArtifactCodegen     Artifact = "codegen"
	ArtifactExe         Artifact = "exe"
	ArtifactManifest    Artifact = "manifest"
	ArtifactBuildInfo   Artifact = "build_info"
	ArtifactInterface   Artifact = "interface"
	ArtifactTimingChart Artifact = "timing_chart"
)

// Context is the mutable bag of produced artifacts threaded through a
// run. Passes read their Requires out of it and write their Produces
// back into it; nothing else may mutate it.
type Context struct {
	diag   *diag.Bag
	values map[Artifact]any
}

// NewContext creates an empty run context reporting into bag.
func NewContext(bag *diag.Bag) *Context {
	return &Context{diag: bag, values: map[Artifact]any{}}
}

// Diag returns the diagnostic bag every pass reports into.
func (c *Context) Diag() *diag.Bag { return c.diag }

// Get retrieves a previously produced artifact. ok is false if no pass
// has produced it yet in this run.
func (c *Context) Get(a Artifact) (any, bool) {
	v, ok := c.values[a]
	return v, ok
}

// Set records an artifact value, overwriting any prior value.
func (c *Context) Set(a Artifact, v any) {
	c.values[a] = v
}

// Pass is one declarative compiler stage. InvalidationKeys lists the ingredient names (e.g.
// "source_hash", "registry_fingerprint") that would force this pass to
// re-run under an incremental build; pcc itself always runs every
// planned pass once, so this field is descriptive metadata rather than
// an active cache key today — it is carried so pkg/buildinfo's
// fingerprint composition has a single place to read "what would
// invalidate pass X" from, without a separate duplicate table.
type Pass struct {
	Name             string
	Requires         []Artifact
	Produces         []Artifact
	InvalidationKeys []string
	PreInvariant     func(c *Context) error
	PostInvariant    func(c *Context) error
	Run              func(c *Context) error
}

// Manager holds the registered passes for one compiler build.
type Manager struct {
	passes    []*Pass
	producers map[Artifact]*Pass
}

// NewManager constructs an empty Manager.
func NewManager() *Manager {
	return &Manager{producers: map[Artifact]*Pass{}}
}

// Register adds a pass. Each artifact must have exactly one producer;
// registering a second producer for the same artifact is a programming
// error in the compiler itself (not a user-facing diagnostic), so it
// panics.
func (m *Manager) Register(p Pass) {
	for _, a := range p.Produces {
		if existing, ok := m.producers[a]; ok {
			panic(fmt.Sprintf("passmgr: artifact %q already produced by pass %q, cannot also register %q", a, existing.Name, p.Name))
		}
	}

	stored := &p
	m.passes = append(m.passes, stored)

	for _, a := range p.Produces {
		m.producers[a] = stored
	}
}

// Plan computes the minimal topologically-ordered subset of registered
// passes needed to produce target, via depth-first traversal of the
// artifact dependency graph with cycle detection.
func (m *Manager) Plan(target Artifact) ([]*Pass, error) {
	var order []*Pass

	visited := map[Artifact]bool{}
	inStack := map[Artifact]bool{}

	var visit func(a Artifact) error
	visit = func(a Artifact) error {
		if visited[a] {
			return nil
		}

		if inStack[a] {
			return fmt.Errorf("passmgr: cyclic artifact dependency reaching %q", a)
		}

		p, ok := m.producers[a]
		if !ok {
			return fmt.Errorf("passmgr: no pass produces artifact %q", a)
		}

		inStack[a] = true

		for _, req := range p.Requires {
			if err := visit(req); err != nil {
				return err
			}
		}

		inStack[a] = false
		visited[a] = true

		// A pass may already be queued by an earlier artifact it also
		// produces (multi-output passes); skip re-queueing it.
		for _, queued := range order {
			if queued == p {
				return nil
			}
		}

		order = append(order, p)

		return nil
	}

	if err := visit(target); err != nil {
		return nil, err
	}

	return order, nil
}

// Execute plans and runs the pass chain for target against ctx. A pass's
// PreInvariant/PostInvariant, if set, are checked immediately before and
// after Run; any invariant failure or diagnostic-bag error aborts the
// remaining chain. Execute never runs a pass twice and never continues
// past the first failure: failure in any pass aborts, and partial
// artifacts are not persisted (persistence itself is the caller's
// responsibility — Execute only guarantees it stops producing more).
func Execute(m *Manager, target Artifact, ctx *Context) error {
	plan, err := m.Plan(target)
	if err != nil {
		return err
	}

	for _, p := range plan {
		if p.PreInvariant != nil {
			if err := p.PreInvariant(ctx); err != nil {
				return fmt.Errorf("passmgr: pass %q pre-invariant failed: %w", p.Name, err)
			}
		}

		if err := p.Run(ctx); err != nil {
			return fmt.Errorf("passmgr: pass %q failed: %w", p.Name, err)
		}

		if ctx.diag.HasErrors() {
			return fmt.Errorf("passmgr: pass %q reported errors, aborting", p.Name)
		}

		if p.PostInvariant != nil {
			if err := p.PostInvariant(ctx); err != nil {
				return fmt.Errorf("passmgr: pass %q post-invariant failed: %w", p.Name, err)
			}
		}
	}

	return nil
}
