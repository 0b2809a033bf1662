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

// Package registry loads the actor registry, in one of two mutually
// exclusive modes: parsing a schema-v1 JSON manifest, or scanning actor
// headers and invoking an external preprocessor to discover them. The
// registry itself is immutable, borrowed by every later pass — there is no
// process-wide mutable registry state.
package registry

import (
	"fmt"
	"sort"
)

// Param describes one named, typed parameter accepted by an actor call.
type Param struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Actor describes one registered actor's signature: its wire types, token
// counts per firing, and constructor parameters.
//
// InCount and OutCount are count expressions, not bare integers: an actor's
// per-firing token count may be a literal ("256"), a reference to one of its
// own constructor parameters ("$n"), a reference to one of the call site's
// shape dimensions ("$shape0"), or a product of such terms ("$a*$b"). A
// plain literal is just the degenerate one-term case of this grammar.
// ResolveCount evaluates a count expression against a binding set collected
// at a particular call site.
type Actor struct {
	Name       string  `json:"name"`
	TypeParams int     `json:"type_params"`
	InType     string  `json:"in_type"`
	InCount    string  `json:"in_count"`
	OutType    string  `json:"out_type"`
	OutCount   string  `json:"out_count"`
	Params     []Param `json:"params"`
}

// key is the registry's lookup key: actor name plus the arity of its type
// parameters.
type key struct {
	name  string
	arity int
}

// Registry is an immutable, name-and-arity-keyed table of actor signatures.
type Registry struct {
	actors map[key]Actor
	// fingerprint is the 256-bit digest of the canonical manifest bytes
	// this registry was built from.
	fingerprint   [32]byte
	schemaVersion int
}

// Fingerprint returns the SHA-256 digest of the canonical manifest bytes
// this registry was constructed from.
func (r *Registry) Fingerprint() [32]byte { return r.fingerprint }

// SchemaVersion returns the manifest schema version this registry was
// constructed from. Schema versions are a single monotonically increasing
// integer, not a semver triple, so plain int comparison is sufficient.
func (r *Registry) SchemaVersion() int { return r.schemaVersion }

// Lookup finds the actor registered under name with the given type-argument
// arity. A monomorphic actor (TypeParams == 0) registered without type
// arguments is found by arity 0; supplying type arguments against it is an
// error the caller reports as E0012, not something Lookup itself decides —
// Lookup only reports whether an entry exists at that (name, arity) key.
func (r *Registry) Lookup(name string, arity int) (Actor, bool) {
	a, ok := r.actors[key{name, arity}]

	return a, ok
}

// LookupByName finds any registered arity for name, for the monomorphic-
// rejects-type-arguments check (E0012): if an actor exists at arity 0 but
// the call site supplies type arguments, that is the E0012 case.
//
// A name registered at more than one arity has no call-site syntax to pick
// among them — pipit actor calls carry no explicit type-argument list — so
// which entry LookupByName returns is arbitrary. Callers that care about
// this ambiguity (rather than merely needing some entry to exist) should
// check Arities(name) first and report it rather than trust the pick.
func (r *Registry) LookupByName(name string) (Actor, bool) {
	for k, a := range r.actors {
		if k.name == name {
			return a, true
		}
	}

	return Actor{}, false
}

// Arities returns the sorted, distinct type-parameter arities registered
// under name. Length 0 means the name isn't registered at all; length 1 is
// the common, unambiguous case; length > 1 means a call to name can resolve
// to more than one signature and callers must treat that as ambiguous.
func (r *Registry) Arities(name string) []int {
	var out []int

	for k := range r.actors {
		if k.name == name {
			out = append(out, k.arity)
		}
	}

	sort.Ints(out)

	return out
}

// Len returns the number of distinct (name, arity) entries.
func (r *Registry) Len() int { return len(r.actors) }

func newRegistry(actors []Actor, fingerprint [32]byte, schemaVersion int) (*Registry, error) {
	m := make(map[key]Actor, len(actors))

	for _, a := range actors {
		k := key{a.Name, a.TypeParams}
		if _, dup := m[k]; dup {
			return nil, fmt.Errorf("duplicate actor registration: %s (type_params=%d)", a.Name, a.TypeParams)
		}

		m[k] = a
	}

	return &Registry{actors: m, fingerprint: fingerprint, schemaVersion: schemaVersion}, nil
}
