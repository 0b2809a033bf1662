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
package lexer

import (
	"strings"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/util/source"
	"github.com/pipit-lang/pcc/pkg/util/source/lex"
)

// rawNumber is an internal tag used during the first scanning pass before a
// numeric literal's unit suffix (if any) is classified into Int, Float,
// Frequency or Size.
const rawNumber = 1000

// frequencyUnits and sizeUnits are the only suffixes this lexer
// recognizes; anything else scanned as a unit is E0002.
var (
	frequencyUnits = []string{"GHz", "MHz", "kHz", "Hz"}
	sizeUnits      = []string{"GB", "MB", "KB"}
)

func isLetter(r rune) bool { return r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') }
func isDigit(r rune) bool  { return r >= '0' && r <= '9' }

func identScanner(items []rune) uint {
	if len(items) == 0 || !isLetter(items[0]) {
		return 0
	}

	n := uint(1)
	for int(n) < len(items) && (isLetter(items[n]) || isDigit(items[n])) {
		n++
	}

	return n
}

// numberScanner matches digit+ ('.' digit+)? letter*, deferring unit
// validation to the post-processing pass in Lex so a single scanner covers
// int, float, frequency and size literals.
func numberScanner(items []rune) uint {
	if len(items) == 0 || !isDigit(items[0]) {
		return 0
	}

	n := uint(1)
	for int(n) < len(items) && isDigit(items[n]) {
		n++
	}

	if int(n) < len(items) && items[n] == '.' && int(n)+1 < len(items) && isDigit(items[n+1]) {
		n++
		for int(n) < len(items) && isDigit(items[n]) {
			n++
		}
	}

	for int(n) < len(items) && isLetter(items[n]) {
		n++
	}

	return n
}

// stringScanner matches a double-quoted string literal, consuming through
// the closing quote when present. It accepts any escape sequence so the
// generic scan succeeds; Lex itself rejects anything but \" and \\ so the
// error carries a precise span.
func stringScanner(items []rune) uint {
	if len(items) == 0 || items[0] != '"' {
		return 0
	}

	n := uint(1)
	for int(n) < len(items) {
		switch items[n] {
		case '\\':
			if int(n)+1 >= len(items) {
				return n + 1
			}

			n += 2
		case '"':
			return n + 1
		default:
			n++
		}
	}
	// Unterminated: consume to EOF so Lex can report it with a full span.
	return n
}

func commentScanner(items []rune) uint {
	if len(items) == 0 || items[0] != '#' {
		return 0
	}

	n := uint(1)
	for int(n) < len(items) && items[n] != '\n' {
		n++
	}

	return n
}

func whitespaceScanner(items []rune) uint {
	n := uint(0)
	for int(n) < len(items) && (items[n] == ' ' || items[n] == '\t' || items[n] == '\r') {
		n++
	}

	return n
}

const (
	kindWhitespace = 2000
	kindComment    = 2001
)

// rules lists every lexical rule in priority order: longer / more specific
// punctuation must precede its single-character prefix (e.g. "->" before
// "-").
var rules = []lex.LexRule[rune]{
	lex.Rule[rune](whitespaceScanner, kindWhitespace),
	lex.Rule[rune](commentScanner, kindComment),
	lex.Rule[rune](lex.Unit('\n'), uint(KindNewline)),
	lex.Rule[rune](lex.Unit('-', '>'), uint(KindArrow)),
	lex.Rule[rune](stringScanner, uint(KindString)),
	lex.Rule[rune](numberScanner, rawNumber),
	lex.Rule[rune](identScanner, uint(KindIdent)),
	lex.Rule[rune](lex.Unit('|'), uint(KindPipe)),
	lex.Rule[rune](lex.Unit('@'), uint(KindAt)),
	lex.Rule[rune](lex.Unit(':'), uint(KindColon)),
	lex.Rule[rune](lex.Unit('?'), uint(KindQuestion)),
	lex.Rule[rune](lex.Unit('$'), uint(KindDollar)),
	lex.Rule[rune](lex.Unit(','), uint(KindComma)),
	lex.Rule[rune](lex.Unit('='), uint(KindEquals)),
	lex.Rule[rune](lex.Unit('{'), uint(KindLBrace)),
	lex.Rule[rune](lex.Unit('}'), uint(KindRBrace)),
	lex.Rule[rune](lex.Unit('['), uint(KindLBracket)),
	lex.Rule[rune](lex.Unit(']'), uint(KindRBracket)),
	lex.Rule[rune](lex.Unit('('), uint(KindLParen)),
	lex.Rule[rune](lex.Unit(')'), uint(KindRParen)),
}

// Lex tokenizes a whole source file, reporting lexer-level errors (E0001-
// E0003) into bag and returning the filtered, classified token stream
// terminated by a KindEOF token.
func Lex(file *source.File, bag *diag.Bag) []Token {
	raw := lex.NewLexer(file.Contents(), rules...)

	var out []Token

	for raw.HasNext() {
		t := raw.Next()
		switch t.Kind {
		case kindWhitespace, kindComment:
			continue
		case uint(KindIdent):
			text := file.Contents()[t.Span.Start():t.Span.End()]
			s := string(text)
			kind := KindIdent
			if Keywords[s] {
				kind = KindKeyword
			}

			out = append(out, Token{kind, t.Span, s})
		case uint(KindString):
			text := string(file.Contents()[t.Span.Start():t.Span.End()])
			validateString(bag, t.Span, text)
			out = append(out, Token{KindString, t.Span, text})
		case rawNumber:
			text := string(file.Contents()[t.Span.Start():t.Span.End()])
			kind := classifyNumber(bag, t.Span, text)
			out = append(out, Token{kind, t.Span, text})
		default:
			out = append(out, Token{Kind(t.Kind), t.Span, string(file.Contents()[t.Span.Start():t.Span.End()])})
		}
	}

	out = append(out, Token{KindEOF, source.NewSpan(len(file.Contents()), len(file.Contents())), ""})

	return out
}

// validateString rejects anything but \" and \\ escapes and reports
// unterminated strings (the scanner accepts both conditions syntactically
// so it can return a span covering the whole malformed literal).
func validateString(bag *diag.Bag, span source.Span, text string) {
	if !strings.HasSuffix(text, `"`) || len(text) < 2 {
		bag.Errorf(diag.ELexUnterminatedString, span, "unterminated string literal")
		return
	}

	body := text[1 : len(text)-1]
	for i := 0; i < len(body); i++ {
		if body[i] == '\\' {
			if i+1 >= len(body) || (body[i+1] != '"' && body[i+1] != '\\') {
				bag.Errorf(diag.ELexInvalidEscape, span, "invalid escape sequence in string literal")
				return
			}

			i++
		}
	}
}

// classifyNumber refines a rawNumber match into Int, Float, Frequency or
// Size, validating its unit suffix against the exact set frequencyUnits
// and sizeUnits allow.
func classifyNumber(bag *diag.Bag, span source.Span, text string) Kind {
	digits, unit := splitUnit(text)

	switch {
	case unit == "":
		if strings.Contains(digits, ".") {
			return KindFloat
		}

		return KindInt
	case contains(frequencyUnits, unit):
		return KindFrequency
	case contains(sizeUnits, unit):
		return KindSize
	default:
		bag.Errorf(diag.ELexUnknownUnit, span, "unknown unit suffix %q", unit)
		return KindInt
	}
}

func splitUnit(text string) (digits, unit string) {
	i := 0
	for i < len(text) && (isDigit(rune(text[i])) || text[i] == '.') {
		i++
	}

	return text[:i], text[i:]
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}

	return false
}
