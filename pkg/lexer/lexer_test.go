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
	"testing"

	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/util/assert"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

func lexString(t *testing.T, text string) ([]Token, *diag.Bag) {
	t.Helper()

	file := source.NewSourceFile("test.pip", []byte(text))
	bag := diag.NewBag()
	toks := Lex(file, bag)

	return toks, bag
}

func kinds(toks []Token) []Kind {
	out := make([]Kind, len(toks))
	for i, t := range toks {
		out[i] = t.Kind
	}

	return out
}

func TestLexSingleRateChain(t *testing.T) {
	toks, bag := lexString(t, "clock 1kHz t { constant(1.0) | mul($gain) }\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, []Kind{
		KindKeyword, KindFrequency, KindIdent, KindLBrace,
		KindIdent, KindLParen, KindFloat, KindRParen,
		KindPipe, KindIdent, KindLParen, KindDollar, KindIdent, KindRParen,
		KindRBrace, KindNewline, KindEOF,
	}, kinds(toks))
}

func TestLexArrowAndBuffer(t *testing.T) {
	toks, bag := lexString(t, "fir(coeff) -> signal\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, KindArrow, toks[4].Kind)
}

func TestLexUnknownUnitSuffix(t *testing.T) {
	_, bag := lexString(t, "clock 10Foo t { }\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestLexUnterminatedString(t *testing.T) {
	_, bag := lexString(t, `csvwrite("out.csv)`+"\n")
	assert.Equal(t, true, bag.HasErrors())
}

func TestLexComment(t *testing.T) {
	toks, bag := lexString(t, "# a comment\nclock 1Hz t { }\n")
	assert.Equal(t, false, bag.HasErrors())
	assert.Equal(t, KindNewline, toks[0].Kind)
}
