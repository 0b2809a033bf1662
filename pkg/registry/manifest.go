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
package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// manifestDoc is the schema-v1 wire shape.
type manifestDoc struct {
	Schema int     `json:"schema"`
	Actors []Actor `json:"actors"`
}

const schemaResourceURL = "pipit://actor-manifest-v1.json"

func compileSchema() (*jsonschema.Schema, error) {
	var doc any
	if err := json.Unmarshal([]byte(schemaV1), &doc); err != nil {
		return nil, fmt.Errorf("internal: embedded schema-v1 is not valid JSON: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaResourceURL, doc); err != nil {
		return nil, fmt.Errorf("internal: failed to register schema-v1: %w", err)
	}

	return compiler.Compile(schemaResourceURL)
}

// LoadManifest parses and validates manifest bytes against schema v1,
// rejecting unknown/missing fields and duplicate actor registrations, then
// canonicalizes the actor list and fingerprints the canonical bytes.
func LoadManifest(data []byte) (*Registry, error) {
	schema, err := compileSchema()
	if err != nil {
		return nil, err
	}

	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}

	if err := schema.Validate(instance); err != nil {
		return nil, fmt.Errorf("manifest failed schema-v1 validation: %w", err)
	}

	var doc manifestDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}

	canonical, err := canonicalize(doc)
	if err != nil {
		return nil, err
	}

	fingerprint := sha256.Sum256(canonical)

	return newRegistry(doc.Actors, fingerprint, doc.Schema)
}

// canonicalize produces deterministic bytes for a manifest: actors sorted
// by (name, type_params), struct field order fixed by the Go type.
func canonicalize(doc manifestDoc) ([]byte, error) {
	sorted := make([]Actor, len(doc.Actors))
	copy(sorted, doc.Actors)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Name != sorted[j].Name {
			return sorted[i].Name < sorted[j].Name
		}

		return sorted[i].TypeParams < sorted[j].TypeParams
	})

	for i := range sorted {
		sort.Slice(sorted[i].Params, func(a, b int) bool {
			return sorted[i].Params[a].Name < sorted[i].Params[b].Name
		})
	}

	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(manifestDoc{Schema: doc.Schema, Actors: sorted}); err != nil {
		return nil, fmt.Errorf("canonicalize manifest: %w", err)
	}

	return buf.Bytes(), nil
}

// EmitManifest renders a Registry back to canonical schema-v1 JSON.
// Parsing the result back with LoadManifest must reproduce the same
// in-memory registry as a direct scan.
func EmitManifest(r *Registry) ([]byte, error) {
	actors := make([]Actor, 0, r.Len())
	for _, a := range r.actors {
		actors = append(actors, a)
	}

	return canonicalize(manifestDoc{Schema: 1, Actors: actors})
}
