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

// Package lexer turns pipit source text into a token stream, built atop
// the generic scanner-combinator framework in pkg/util/source/lex rather
// than hand-rolled rune scanning: pipit's token set is expressed as a
// table of lex.Scanner[rune] rules.
package lexer

import "github.com/pipit-lang/pcc/pkg/util/source"

// Kind identifies the lexical category of a Token.
type Kind uint

// Token kinds. Punctuation kinds are listed in the order the grammar
// introduces them.
const (
	KindEOF Kind = iota
	KindIdent
	KindKeyword
	KindInt
	KindFloat
	KindFrequency
	KindSize
	KindString
	KindNewline
	KindPipe      // |
	KindArrow     // ->
	KindAt        // @
	KindColon     // :
	KindQuestion  // ?
	KindDollar    // $
	KindComma     // ,
	KindEquals    // =
	KindLBrace    // {
	KindRBrace    // }
	KindLBracket  // [
	KindRBracket  // ]
	KindLParen    // (
	KindRParen    // )
)

// Keywords recognized after an identifier is scanned.
var Keywords = map[string]bool{
	"set": true, "const": true, "param": true, "define": true,
	"clock": true, "mode": true, "control": true, "switch": true,
	"default": true, "delay": true, "bind": true, "task": true,
}

// Token is one lexeme with its source span and, for literals, the exact
// text that was scanned (unit suffixes and escapes are resolved by the
// parser, not the lexer, keeping the lexer a pure tokenizer).
type Token struct {
	Kind Kind
	Span source.Span
	Text string
}

// String renders a token kind name for diagnostics and --emit ast dumps.
func (k Kind) String() string {
	names := map[Kind]string{
		KindEOF: "eof", KindIdent: "ident", KindKeyword: "keyword",
		KindInt: "int", KindFloat: "float", KindFrequency: "frequency",
		KindSize: "size", KindString: "string", KindNewline: "newline",
		KindPipe: "|", KindArrow: "->", KindAt: "@", KindColon: ":",
		KindQuestion: "?", KindDollar: "$", KindComma: ",", KindEquals: "=",
		KindLBrace: "{", KindRBrace: "}", KindLBracket: "[", KindRBracket: "]",
		KindLParen: "(", KindRParen: ")",
	}
	if n, ok := names[k]; ok {
		return n
	}

	return "?"
}
