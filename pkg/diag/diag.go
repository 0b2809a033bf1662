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

// Package diag implements pcc's stable-coded diagnostic channel: every error, warning and info message carries a code whose
// meaning never changes once published, a primary span, optional related
// spans and an optional hint. Diagnostics are deduplicated and ordered
// deterministically before being handed to a Format.
package diag

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Level classifies a diagnostic's severity.
type Level uint8

// Severity levels, ordered loosest-to-strictest for sorting purposes.
const (
	Info Level = iota
	Warning
	Error
)

// String renders a Level the way the human formatter's "level[code]:" prefix
// expects it.
func (l Level) String() string {
	switch l {
	case Error:
		return "error"
	case Warning:
		return "warning"
	default:
		return "info"
	}
}

// Code is a stable diagnostic code, e.g. "E0305" or "W0400". Once assigned a
// Code's meaning is permanent; retiring a diagnostic retires the code with
// it rather than reassigning it.
type Code string

// Related attaches a secondary span with explanatory text to a Diagnostic,
// e.g. pointing at the other writer of a shared buffer.
type Related struct {
	Span    source.Span
	Message string
}

// Diagnostic is one reported error, warning or info message.
type Diagnostic struct {
	Code    Code
	Level   Level
	Span    source.Span
	Related []Related
	Message string
	Hint    string
}

// messageHash condenses a diagnostic's message into the short hash used for
// deduplication, so two diagnostics with the same code and span but
// genuinely different messages are not conflated.
func messageHash(msg string) string {
	sum := sha256.Sum256([]byte(msg))
	return hex.EncodeToString(sum[:8])
}

// dedupKey is the (code, primary span, message hash) tuple diagnostics
// are deduplicated by within a single compilation.
type dedupKey struct {
	code  string
	start int
	end   int
	hash  string
}

// Bag accumulates diagnostics over the course of a compilation and produces
// a deterministic, deduplicated, source-position-ascending report.
type Bag struct {
	items []Diagnostic
	seen  map[dedupKey]bool
}

// NewBag constructs an empty diagnostic bag.
func NewBag() *Bag {
	return &Bag{seen: make(map[dedupKey]bool)}
}

// Add appends a diagnostic, silently dropping it if an equal (code, span,
// message-hash) diagnostic was already recorded.
func (b *Bag) Add(d Diagnostic) {
	key := dedupKey{string(d.Code), d.Span.Start(), d.Span.End(), messageHash(d.Message)}
	if b.seen[key] {
		return
	}

	b.seen[key] = true
	b.items = append(b.items, d)
}

// Errorf is a convenience wrapper for the common case of reporting a
// single-span error diagnostic.
func (b *Bag) Errorf(code Code, span source.Span, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Level: Error, Span: span, Message: fmt.Sprintf(format, args...)})
}

// Warnf is the Warning-level equivalent of Errorf.
func (b *Bag) Warnf(code Code, span source.Span, format string, args ...any) {
	b.Add(Diagnostic{Code: code, Level: Warning, Span: span, Message: fmt.Sprintf(format, args...)})
}

// HasErrors reports whether any Error-level diagnostic has been recorded.
// A single Error makes the owning pass (and hence the whole compilation)
// fail-fast.
func (b *Bag) HasErrors() bool {
	for _, d := range b.items {
		if d.Level == Error {
			return true
		}
	}

	return false
}

// Sorted returns diagnostics ordered by ascending source position, the
// tie-break order both formatters require.
func (b *Bag) Sorted() []Diagnostic {
	out := make([]Diagnostic, len(b.items))
	copy(out, b.items)
	sort.SliceStable(out, func(i, j int) bool {
		si, sj := out[i].Span, out[j].Span
		if si.Start() != sj.Start() {
			return si.Start() < sj.Start()
		}

		return si.End() < sj.End()
	})

	return out
}

// Len reports the number of distinct diagnostics recorded.
func (b *Bag) Len() int { return len(b.items) }
