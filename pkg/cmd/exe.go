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
	"os/exec"
	"strings"
)

// compileExe writes the generated translation unit to a temp file and
// invokes the external C++ compiler on it. Returns the path to the
// linked executable.
func compileExe(cc, cflags, src string, release bool) (string, error) {
	dir, err := os.MkdirTemp("", "pcc-build-")
	if err != nil {
		return "", fmt.Errorf("creating build directory: %w", err)
	}

	unit := dir + "/unit.cpp"
	if err := os.WriteFile(unit, []byte(src), 0o644); err != nil {
		return "", fmt.Errorf("writing translation unit: %w", err)
	}

	out := dir + "/a.out"

	args := []string{"-std=c++17", unit, "-o", out}
	if release {
		args = append(args, "-O2", "-DNDEBUG")
	} else {
		args = append(args, "-g", "-O0")
	}

	if cflags != "" {
		args = append(args, strings.Fields(cflags)...)
	}

	cmd := exec.Command(cc, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s: %w", cc, strings.Join(args, " "), err)
	}

	return out, nil
}
