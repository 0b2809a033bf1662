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
	"regexp"
	"strconv"
	"strings"
)

var countExpr = regexp.MustCompile(countPattern)

// countTerm matches one term of a count expression (a name, a $name, or an
// integer); ReferencedNames uses it to list the names an expression
// mentions. It is compiled once, at package initialization.
var countTerm = regexp.MustCompile(`\$?[A-Za-z_][A-Za-z0-9_]*|[0-9]+`)

// ResolveCount evaluates a count expression — as stored in Actor.InCount or
// Actor.OutCount — against the bindings collected at a particular call
// site, returning the resolved per-firing token count.
//
// bindings maps each named term the expression can reference to its
// concrete value: a constructor parameter name ("n") to the integer the
// caller passed for it, and a shape-bracket position ("shape0", "shape1",
// ...) to the corresponding `[d0,d1,...]` dimension. The leading '$' on a
// term, if present, is stripped before lookup — "$n" and "n" bind the same.
//
// ResolveCount returns (0, false) when expr doesn't match the count-
// expression grammar, or when it references a name absent from bindings.
func ResolveCount(expr string, bindings map[string]int64) (int64, bool) {
	expr = strings.TrimSpace(expr)
	if expr == "" || !countExpr.MatchString(expr) {
		return 0, false
	}

	terms := strings.Split(expr, "*")

	var product int64 = 1

	for _, t := range terms {
		t = strings.TrimSpace(t)

		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			product *= n
			continue
		}

		name := strings.TrimPrefix(t, "$")

		v, ok := bindings[name]
		if !ok {
			return 0, false
		}

		product *= v
	}

	return product, true
}

// ReferencedNames returns the distinct parameter/shape names expr
// references, in first-occurrence order, ignoring any literal terms. It is
// used to report which binding was missing when ResolveCount fails.
func ReferencedNames(expr string) []string {
	var out []string

	seen := map[string]bool{}

	for _, m := range countTerm.FindAllString(expr, -1) {
		if _, err := strconv.ParseInt(m, 10, 64); err == nil {
			continue
		}

		name := strings.TrimPrefix(m, "$")
		if seen[name] {
			continue
		}

		seen[name] = true
		out = append(out, name)
	}

	return out
}
