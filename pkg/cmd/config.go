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
package cmd

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ProjectConfig is `pcc.yaml`'s shape: project-level defaults a source
// directory can commit once instead of repeating on every invocation.
// Any field a CLI flag also covers is overridden by that flag when the
// flag is explicitly set — the file only supplies a default.
type ProjectConfig struct {
	ActorMeta    string   `yaml:"actor_meta"`
	ActorPaths   []string `yaml:"actor_paths"`
	Includes     []string `yaml:"includes"`
	CC           string   `yaml:"cc"`
	CFlags       string   `yaml:"cflags"`
	Binds        map[string]string `yaml:"binds"`
}

// LoadProjectConfig reads and parses `pcc.yaml` at path. A missing file is
// not an error — an absent config is simply an all-defaults config —
// but a malformed one is, since the user clearly intended it to apply.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return &ProjectConfig{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var cfg ProjectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return &cfg, nil
}

// mergeStrings returns flagValues if non-empty, else cfgValues — CLI
// flags take precedence over the project file.
func mergeStrings(flagValues, cfgValues []string) []string {
	if len(flagValues) > 0 {
		return flagValues
	}

	return cfgValues
}

func mergeString(flagValue, cfgValue string) string {
	if flagValue != "" {
		return flagValue
	}

	return cfgValue
}
