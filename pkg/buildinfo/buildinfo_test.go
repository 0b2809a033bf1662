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
package buildinfo

import (
	"testing"

	"github.com/pipit-lang/pcc/pkg/registry"
	"github.com/pipit-lang/pcc/pkg/util/assert"
)

const biManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "float", "out_count": "1", "params": [{"name": "value", "type": "float"}]}
  ]
}`

func TestComputeIsDeterministic(t *testing.T) {
	reg, err := registry.LoadManifest([]byte(biManifest))
	assert.Equal(t, nil, err)

	source := []byte("clock 1kHz t {\n  constant(1.0) -> out\n}\n")

	a := Compute(source, reg)
	b := Compute(source, reg)
	assert.Equal(t, a, b)
	assert.Equal(t, 1, a.ManifestSchemaVersion)
	assert.Equal(t, 64, len(a.SourceHash))
	assert.Equal(t, 64, len(a.RegistryFingerprint))
}

func TestComputeDiffersOnSourceChange(t *testing.T) {
	reg, err := registry.LoadManifest([]byte(biManifest))
	assert.Equal(t, nil, err)

	a := Compute([]byte("clock 1kHz t {\n  constant(1.0) -> out\n}\n"), reg)
	b := Compute([]byte("clock 2kHz t {\n  constant(1.0) -> out\n}\n"), reg)
	assert.Equal(t, true, a.SourceHash != b.SourceHash)
}

func TestCompilerVersionDefaultsToDev(t *testing.T) {
	assert.Equal(t, "dev", CompilerVersion())
}
