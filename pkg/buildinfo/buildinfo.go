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

// Package buildinfo produces the `--emit build-info` artifact: a JSON document identifying exactly what was compiled and
// with what — deterministic for identical (source bytes, registry,
// compiler binary).
package buildinfo

import (
	"crypto/sha256"
	"encoding/hex"
	"runtime/debug"

	"github.com/pipit-lang/pcc/pkg/registry"
)

// Version is the compiler's own release version, overridden at link time
// via `-ldflags "-X github.com/pipit-lang/pcc/pkg/buildinfo.Version=..."`.
// It defaults to "dev" for unreleased builds, matching the common Go CLI
// convention of stamping a version string in rather than relying solely
// on module build info (which is absent entirely for a plain `go build`
// outside of `go install`).
var Version = "dev"

// Info is the build-info artifact's fields. All four fields are pure functions of (source bytes,
// registry, compiler binary) — nothing here depends on wall-clock time
// or environment, so two compilations of the same input with the same
// compiler produce byte-identical JSON.
type Info struct {
	SourceHash            string `json:"source_hash"`
	RegistryFingerprint   string `json:"registry_fingerprint"`
	ManifestSchemaVersion int    `json:"manifest_schema_version"`
	CompilerVersion       string `json:"compiler_version"`
}

// Compute derives the build-info artifact from the compiled source bytes
// and the registry it was resolved against.
func Compute(source []byte, reg *registry.Registry) Info {
	h := sha256.Sum256(source)
	fp := reg.Fingerprint()

	return Info{
		SourceHash:            hex.EncodeToString(h[:]),
		RegistryFingerprint:   hex.EncodeToString(fp[:]),
		ManifestSchemaVersion: reg.SchemaVersion(),
		CompilerVersion:       CompilerVersion(),
	}
}

// CompilerVersion resolves the running binary's version: the link-time
// Version override if set, else the module version recorded by
// `runtime/debug.ReadBuildInfo` for a `go install`-produced binary, else
// "dev".
func CompilerVersion() string {
	if Version != "dev" {
		return Version
	}

	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}

	return Version
}
