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
	"bufio"
	"bytes"
	"crypto/sha256"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// ScanConfig configures manifest-generation mode.
type ScanConfig struct {
	// Includes are explicit header paths, highest precedence.
	Includes []string
	// SearchPaths are recursively scanned for actor headers, lowest
	// precedence.
	SearchPaths []string
	// CC is the external preprocessor binary, invoked as
	// `cc -E -P -x c++ -std=c++20 -`.
	CC string
}

// discoveredHeader pairs a header path with its precedence class: explicit
// includes outrank search-path discoveries, so a name found in both is an
// overlay replacement, not a duplicate.
type discoveredHeader struct {
	path    string
	overlay bool
}

// discoverHeaders walks cfg.Includes (overlay=true) and cfg.SearchPaths
// (overlay=false, recursive) for files with a .pip.h extension, the actor-
// header convention this registry scanner recognizes.
func discoverHeaders(cfg ScanConfig) ([]discoveredHeader, error) {
	var out []discoveredHeader

	for _, inc := range cfg.Includes {
		out = append(out, discoveredHeader{path: inc, overlay: true})
	}

	for _, root := range cfg.SearchPaths {
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && strings.HasSuffix(path, ".pip.h") {
				out = append(out, discoveredHeader{path: path, overlay: false})
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning search path %s: %w", root, err)
		}
	}

	return out, nil
}

// probeMacro redefines the actor-declaration macro so the preprocessor
// expansion emits one machine-parseable record line per actor declaration.
const probeMacro = `#define PIPIT_ACTOR(name, tparams, in_t, in_n, out_t, out_n, ...) ` +
	`PIPIT_RECORD name|tparams|in_t|in_n|out_t|out_n|__VA_ARGS__
`

// buildProbeUnit assembles the translation unit: the probe macro followed
// by an #include of each discovered header, in discovery order.
func buildProbeUnit(headers []discoveredHeader) string {
	var b strings.Builder

	b.WriteString(probeMacro)

	for _, h := range headers {
		fmt.Fprintf(&b, "#include \"%s\"\n", h.path)
	}

	return b.String()
}

var recordLine = regexp.MustCompile(`^\s*PIPIT_RECORD\s+(.*)$`)

// runPreprocessor invokes the external preprocessor on the probe
// translation unit over stdin, returning its expanded stdout.
func runPreprocessor(ccPath, unit string) ([]byte, error) {
	cmd := exec.Command(ccPath, "-E", "-P", "-x", "c++", "-std=c++20", "-")
	cmd.Stdin = strings.NewReader(unit)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("preprocessor invocation failed: %w: %s", err, stderr.String())
	}

	return stdout.Bytes(), nil
}

// parseRecords extracts PIPIT_RECORD lines from preprocessed output into
// Actor values.
func parseRecords(output []byte) ([]Actor, error) {
	var actors []Actor

	scanner := bufio.NewScanner(bytes.NewReader(output))
	for scanner.Scan() {
		m := recordLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		fields := strings.Split(m[1], "|")
		if len(fields) < 6 {
			return nil, fmt.Errorf("malformed actor record: %q", scanner.Text())
		}

		tparams, err := strconv.Atoi(strings.TrimSpace(fields[1]))
		if err != nil {
			return nil, fmt.Errorf("malformed type_params in record %q: %w", scanner.Text(), err)
		}

		inCount := strings.TrimSpace(fields[3])
		if !countExpr.MatchString(inCount) {
			return nil, fmt.Errorf("malformed in_count in record %q", scanner.Text())
		}

		outCount := strings.TrimSpace(fields[5])
		if !countExpr.MatchString(outCount) {
			return nil, fmt.Errorf("malformed out_count in record %q", scanner.Text())
		}

		actors = append(actors, Actor{
			Name:       strings.TrimSpace(fields[0]),
			TypeParams: tparams,
			InType:     strings.TrimSpace(fields[2]),
			InCount:    inCount,
			OutType:    strings.TrimSpace(fields[4]),
			OutCount:   outCount,
			Params:     parseParamList(fields[6:]),
		})
	}

	return actors, scanner.Err()
}

func parseParamList(fields []string) []Param {
	var params []Param

	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}

		parts := strings.SplitN(f, ":", 2)
		if len(parts) != 2 {
			continue
		}

		params = append(params, Param{Name: strings.TrimSpace(parts[0]), Type: strings.TrimSpace(parts[1])})
	}

	return params
}

// merge combines records by precedence: within the same precedence class
// (overlay vs base) a duplicate name is an error; an overlay entry may
// replace a base entry of the same name.
func merge(headers []discoveredHeader, perHeader [][]Actor) ([]Actor, error) {
	base := map[string]Actor{}
	baseOrder := []string{}
	overlay := map[string]Actor{}
	overlayOrder := []string{}

	for i, h := range headers {
		dest, order := base, &baseOrder
		if h.overlay {
			dest, order = overlay, &overlayOrder
		}

		for _, a := range perHeader[i] {
			if _, dup := dest[a.Name]; dup {
				return nil, fmt.Errorf("duplicate actor %q declared twice in the same precedence class", a.Name)
			}

			dest[a.Name] = a
			*order = append(*order, a.Name)
		}
	}

	merged := map[string]Actor{}

	for _, n := range baseOrder {
		merged[n] = base[n]
	}

	for _, n := range overlayOrder {
		merged[n] = overlay[n]
	}

	out := make([]Actor, 0, len(merged))
	for _, a := range merged {
		out = append(out, a)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out, nil
}

// Scan runs manifest-generation mode end to end: discover headers, build
// and preprocess one probe unit per header (so a malformed header's
// diagnostics map back to a single file), parse records, merge by
// precedence, and construct the resulting Registry.
func Scan(cfg ScanConfig) (*Registry, error) {
	headers, err := discoverHeaders(cfg)
	if err != nil {
		return nil, err
	}

	perHeader := make([][]Actor, len(headers))

	for i, h := range headers {
		unit := buildProbeUnit([]discoveredHeader{h})

		out, err := runPreprocessor(cfg.CC, unit)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", h.path, err)
		}

		actors, err := parseRecords(out)
		if err != nil {
			return nil, fmt.Errorf("header %s: %w", h.path, err)
		}

		perHeader[i] = actors
	}

	actors, err := merge(headers, perHeader)
	if err != nil {
		return nil, err
	}

	doc := manifestDoc{Schema: 1, Actors: actors}

	canonical, err := canonicalize(doc)
	if err != nil {
		return nil, err
	}

	return newRegistry(actors, sha256.Sum256(canonical), doc.Schema)
}
