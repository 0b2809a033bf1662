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
package passmgr

import (
	"errors"
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

func linearManager(ran *[]string) *Manager {
	m := NewManager()

	m.Register(Pass{
		Name:     "parse",
		Produces: []Artifact{ArtifactAST},
		Run: func(c *Context) error {
			*ran = append(*ran, "parse")
			c.Set(ArtifactAST, "ast")
			return nil
		},
	})
	m.Register(Pass{
		Name:     "resolve",
		Requires: []Artifact{ArtifactAST},
		Produces: []Artifact{ArtifactHIR},
		Run: func(c *Context) error {
			*ran = append(*ran, "resolve")
			c.Set(ArtifactHIR, "hir")
			return nil
		},
	})
	m.Register(Pass{
		Name:     "infer",
		Requires: []Artifact{ArtifactHIR},
		Produces: []Artifact{ArtifactTypes},
		Run: func(c *Context) error {
			*ran = append(*ran, "infer")
			c.Set(ArtifactTypes, "types")
			return nil
		},
	})

	return m
}

func TestPlanOrdersByDependency(t *testing.T) {
	m := linearManager(&[]string{})

	plan, err := m.Plan(ArtifactTypes)
	assert.Equal(t, nil, err)
	assert.Equal(t, 3, len(plan))
	assert.Equal(t, "parse", plan[0].Name)
	assert.Equal(t, "resolve", plan[1].Name)
	assert.Equal(t, "infer", plan[2].Name)
}

func TestPlanSkipsUnrelatedPasses(t *testing.T) {
	m := linearManager(&[]string{})

	plan, err := m.Plan(ArtifactHIR)
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, len(plan))
}

func TestPlanDetectsCycle(t *testing.T) {
	m := NewManager()
	m.Register(Pass{Name: "a", Requires: []Artifact{"b"}, Produces: []Artifact{"a"}})
	m.Register(Pass{Name: "b", Requires: []Artifact{"a"}, Produces: []Artifact{"b"}})

	_, err := m.Plan("a")
	assert.Equal(t, true, err != nil)
}

func TestExecuteRunsMinimalSubsetInOrder(t *testing.T) {
	var ran []string
	m := linearManager(&ran)

	ctx := NewContext(diag.NewBag())
	err := Execute(m, ArtifactTypes, ctx)
	assert.Equal(t, nil, err)
	assert.Equal(t, []string{"parse", "resolve", "infer"}, ran)

	v, ok := ctx.Get(ArtifactTypes)
	assert.Equal(t, true, ok)
	assert.Equal(t, "types", v)
}

func TestExecuteAbortsOnPassError(t *testing.T) {
	var ran []string
	m := linearManager(&ran)

	m.Register(Pass{
		Name:     "broken_lower",
		Requires: []Artifact{ArtifactTypes},
		Produces: []Artifact{ArtifactTHIR},
		Run: func(c *Context) error {
			return errors.New("boom")
		},
	})

	ctx := NewContext(diag.NewBag())
	err := Execute(m, ArtifactTHIR, ctx)
	assert.Equal(t, true, err != nil)

	_, ok := ctx.Get(ArtifactTHIR)
	assert.Equal(t, false, ok)
}

func TestExecuteAbortsOnDiagnosticError(t *testing.T) {
	var ran []string
	m := linearManager(&ran)

	m.Register(Pass{
		Name:     "broken_lower",
		Requires: []Artifact{ArtifactTypes},
		Produces: []Artifact{ArtifactTHIR},
		Run: func(c *Context) error {
			c.Diag().Errorf(diag.EUsage, source.NewSpan(0, 0), "synthetic failure")
			return nil
		},
	})
	m.Register(Pass{
		Name:     "never_runs",
		Requires: []Artifact{ArtifactTHIR},
		Produces: []Artifact{ArtifactGraph},
		Run: func(c *Context) error {
			ran = append(ran, "never_runs")
			return nil
		},
	})

	ctx := NewContext(diag.NewBag())
	err := Execute(m, ArtifactGraph, ctx)
	assert.Equal(t, true, err != nil)
	assert.Equal(t, false, contains(ran, "never_runs"))
}

func contains(xs []string, want string) bool {
	for _, x := range xs {
		if x == want {
			return true
		}
	}

	return false
}
