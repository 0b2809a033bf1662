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
	"testing"

	"github.com/pipit-lang/pcc/pkg/util/assert"
)

const validManifest = `{
  "schema": 1,
  "actors": [
    {"name": "constant", "type_params": 0, "in_type": "void", "in_count": "0", "out_type": "double", "out_count": "1", "params": [{"name": "value", "type": "double"}]},
    {"name": "mul", "type_params": 1, "in_type": "T", "in_count": "1", "out_type": "T", "out_count": "1", "params": [{"name": "factor", "type": "T"}]}
  ]
}`

func TestLoadManifestValid(t *testing.T) {
	r, err := LoadManifest([]byte(validManifest))
	assert.Equal(t, nil, err)
	assert.Equal(t, 2, r.Len())

	a, ok := r.Lookup("constant", 0)
	assert.Equal(t, true, ok)
	assert.Equal(t, "double", a.OutType)

	_, ok = r.Lookup("mul", 0)
	assert.Equal(t, false, ok)

	a, ok = r.Lookup("mul", 1)
	assert.Equal(t, true, ok)
	assert.Equal(t, "1", a.InCount)
}

func TestLoadManifestRejectsUnknownField(t *testing.T) {
	bad := `{"schema": 1, "actors": [], "extra": true}`
	_, err := LoadManifest([]byte(bad))
	assert.Equal(t, true, err != nil)
}

func TestLoadManifestRejectsMissingField(t *testing.T) {
	bad := `{"schema": 1, "actors": [{"name": "x", "type_params": 0, "in_type": "int", "in_count": "1", "out_type": "int"}]}`
	_, err := LoadManifest([]byte(bad))
	assert.Equal(t, true, err != nil)
}

func TestManifestRoundTrip(t *testing.T) {
	r1, err := LoadManifest([]byte(validManifest))
	assert.Equal(t, nil, err)

	bytes, err := EmitManifest(r1)
	assert.Equal(t, nil, err)

	r2, err := LoadManifest(bytes)
	assert.Equal(t, nil, err)
	assert.Equal(t, r1.Len(), r2.Len())
	assert.Equal(t, r1.Fingerprint(), r2.Fingerprint())
}

func TestMergeOverlayReplacesBase(t *testing.T) {
	headers := []discoveredHeader{
		{path: "base.pip.h", overlay: false},
		{path: "overlay.pip.h", overlay: true},
	}
	perHeader := [][]Actor{
		{{Name: "gain", InType: "double", OutType: "double"}},
		{{Name: "gain", InType: "float", OutType: "float"}},
	}

	merged, err := merge(headers, perHeader)
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(merged))
	assert.Equal(t, "float", merged[0].InType)
}

func TestMergeDuplicateWithinSameClassIsError(t *testing.T) {
	headers := []discoveredHeader{
		{path: "a.pip.h", overlay: false},
		{path: "b.pip.h", overlay: false},
	}
	perHeader := [][]Actor{
		{{Name: "gain"}},
		{{Name: "gain"}},
	}

	_, err := merge(headers, perHeader)
	assert.Equal(t, true, err != nil)
}

func TestParseRecords(t *testing.T) {
	out := "PIPIT_RECORD gain|0|double|1|double|1|factor:double\n"
	actors, err := parseRecords([]byte(out))
	assert.Equal(t, nil, err)
	assert.Equal(t, 1, len(actors))
	assert.Equal(t, "gain", actors[0].Name)
	assert.Equal(t, 1, len(actors[0].Params))
	assert.Equal(t, "factor", actors[0].Params[0].Name)
}
