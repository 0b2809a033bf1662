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
package parser

import (
	"strconv"
	"strings"
)

var frequencyScale = map[string]float64{
	"Hz": 1, "kHz": 1e3, "MHz": 1e6, "GHz": 1e9,
}

var sizeScale = map[string]int64{
	"KB": 1 << 10, "MB": 1 << 20, "GB": 1 << 30,
}

// parseFrequency normalizes a `number unit` frequency literal to Hz. The lexer has already validated the unit suffix, so any failure
// here would indicate a lexer/parser contract bug rather than user input.
func parseFrequency(text string) float64 {
	digits, unit := splitNumericSuffix(text)
	n, _ := strconv.ParseFloat(digits, 64)

	scale, ok := frequencyScale[unit]
	if !ok {
		scale = 1
	}

	return n * scale
}

// parseSize normalizes a `number unit` size literal to bytes.
func parseSize(text string) int64 {
	digits, unit := splitNumericSuffix(text)
	n, _ := strconv.ParseInt(digits, 10, 64)

	scale, ok := sizeScale[unit]
	if !ok {
		scale = 1
	}

	return n * scale
}

func splitNumericSuffix(text string) (digits, unit string) {
	i := 0
	for i < len(text) && (text[i] >= '0' && text[i] <= '9' || text[i] == '.') {
		i++
	}

	return text[:i], text[i:]
}

// unescapeString resolves the \" and \\ escapes the lexer already validated,
// stripping the surrounding quotes.
func unescapeString(text string) string {
	if len(text) < 2 {
		return ""
	}

	body := text[1 : len(text)-1]

	var b strings.Builder

	for i := 0; i < len(body); i++ {
		if body[i] == '\\' && i+1 < len(body) {
			i++
		}

		b.WriteByte(body[i])
	}

	return b.String()
}
