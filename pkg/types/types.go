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

// Package types implements pipit's numeric-type lattice and the constraint
// solver that walks HIR to assign a concrete wire type to every edge,
// inserting safe-widening conversions where unification alone would fail.
// It never mutates HIR; it produces a Solution consumed by
// pkg/thir to build the lowered, certified IR.
package types

// Wire is a concrete wire type. Numeric types form two independent
// safe-widening chains: no other chain is legal, and narrowing along either chain
// always errors.
type Wire string

const (
	Int8    Wire = "int8"
	Int16   Wire = "int16"
	Int32   Wire = "int32"
	Float   Wire = "float"
	Double  Wire = "double"
	CFloat  Wire = "cfloat"
	CDouble Wire = "cdouble"
	Void    Wire = "void"
)

// realChain and complexChain are the two legal widening chains; position in
// the slice is widening rank.
var realChain = []Wire{Int8, Int16, Int32, Float, Double}
var complexChain = []Wire{CFloat, CDouble}

func chainOf(w Wire) ([]Wire, int) {
	for i, c := range realChain {
		if c == w {
			return realChain, i
		}
	}

	for i, c := range complexChain {
		if c == w {
			return complexChain, i
		}
	}

	return nil, -1
}

// Widens reports whether from can be implicitly widened to to: both must
// lie on the same chain and to must not precede from.
func Widens(from, to Wire) bool {
	if from == to {
		return true
	}

	chain, i := chainOf(from)
	if chain == nil || !sameChain(chain, to) {
		return false
	}

	_, j := chainOf(to)

	return j > i
}

func sameChain(chain []Wire, w Wire) bool {
	for _, c := range chain {
		if c == w {
			return true
		}
	}

	return false
}

// Join returns the least upper bound of a and b along their shared chain,
// the type a conversion would widen both toward, or ok=false if a and b lie
// on different chains (or neither chain at all) — no implicit conversion is
// legal between a real type and a complex type.
func Join(a, b Wire) (Wire, bool) {
	if a == b {
		return a, true
	}

	chainA, i := chainOf(a)
	_, j := chainOf(b)

	if chainA == nil || !sameChain(chainA, b) {
		return "", false
	}

	if i > j {
		return a, true
	}

	return b, true
}
