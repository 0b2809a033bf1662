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

// Package parser is a hand-written recursive-descent parser over pipit's
// token stream, one method per grammar production, with panic-mode
// recovery at the next newline or `}`. The parser never consults the
// actor registry; unknown actor names are left for the resolver.
package parser

import (
	"strconv"

	"github.com/pipit-lang/pcc/pkg/ast"
	"github.com/pipit-lang/pcc/pkg/diag"
	"github.com/pipit-lang/pcc/pkg/lexer"
	"github.com/pipit-lang/pcc/pkg/util/source"
)

// Parser holds the token cursor and diagnostic sink for one parse.
type Parser struct {
	toks []lexer.Token
	pos  int
	bag  *diag.Bag
}

// Parse tokenizes and parses a whole source file into a Program, recording
// every syntax error it can recover from into bag rather than aborting on
// the first one.
func Parse(file *source.File, bag *diag.Bag) *ast.Program {
	toks := lexer.Lex(file, bag)
	p := &Parser{toks: toks, bag: bag}

	return p.parseProgram()
}

func (p *Parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *Parser) atEOF() bool       { return p.cur().Kind == lexer.KindEOF }
func (p *Parser) advance() lexer.Token {
	t := p.cur()
	if t.Kind != lexer.KindEOF {
		p.pos++
	}

	return t
}

func (p *Parser) check(k lexer.Kind) bool { return p.cur().Kind == k }

func (p *Parser) checkKeyword(kw string) bool {
	return p.cur().Kind == lexer.KindKeyword && p.cur().Text == kw
}

func (p *Parser) expect(k lexer.Kind, what string) (lexer.Token, bool) {
	if p.check(k) {
		return p.advance(), true
	}

	p.errorf(p.cur().Span, "expected %s, found %q", what, p.cur().Text)

	return lexer.Token{}, false
}

func (p *Parser) errorf(span source.Span, format string, args ...any) {
	p.bag.Errorf(diag.ESyntax, span, format, args...)
}

// recover implements panic-mode recovery: skip tokens up to and including
// the next newline (statement terminator) or a closing brace.
func (p *Parser) recover() {
	for !p.atEOF() && !p.check(lexer.KindNewline) && !p.check(lexer.KindRBrace) {
		p.advance()
	}

	if p.check(lexer.KindNewline) {
		p.advance()
	}
}

func (p *Parser) skipNewlines() {
	for p.check(lexer.KindNewline) {
		p.advance()
	}
}

func (p *Parser) parseProgram() *ast.Program {
	prog := &ast.Program{}

	p.skipNewlines()
	for !p.atEOF() {
		stmt := p.parseStatement()
		if stmt != nil {
			prog.Statements = append(prog.Statements, stmt)
		}

		p.skipNewlines()
	}

	return prog
}

func (p *Parser) parseStatement() ast.Statement {
	defer func() {
		if r := recover(); r != nil {
			p.recover()
		}
	}()

	switch {
	case p.checkKeyword("set"):
		return p.parseSet()
	case p.checkKeyword("const"):
		return p.parseConst()
	case p.checkKeyword("param"):
		return p.parseParam()
	case p.checkKeyword("define"):
		return p.parseDefine()
	case p.checkKeyword("bind"):
		return p.parseBind()
	case p.checkKeyword("clock"):
		return p.parseTask()
	default:
		p.errorf(p.cur().Span, "expected a top-level declaration, found %q", p.cur().Text)
		p.recover()

		return nil
	}
}

func (p *Parser) parseSet() ast.Statement {
	start := p.advance().Span // 'set'
	key, _ := p.expect(lexer.KindIdent, "key")
	val := p.parseExpr()

	return &ast.SetStmt{Sp: start.Merge(val.Span()), Key: key.Text, Value: val}
}

func (p *Parser) parseConst() ast.Statement {
	start := p.advance().Span // 'const'
	name, _ := p.expect(lexer.KindIdent, "name")
	p.expect(lexer.KindEquals, "'='")
	val := p.parseExpr()

	return &ast.ConstStmt{Sp: start.Merge(val.Span()), Name: name.Text, Value: val}
}

func (p *Parser) parseParam() ast.Statement {
	start := p.advance().Span // 'param'
	name, _ := p.expect(lexer.KindIdent, "name")

	var def ast.Expr

	if p.check(lexer.KindEquals) {
		p.advance()
		def = p.parseExpr()
	}

	sp := start.Merge(name.Span)
	if def != nil {
		sp = sp.Merge(def.Span())
	}

	return &ast.ParamStmt{Sp: sp, Name: name.Text, Default: def}
}

func (p *Parser) parseBind() ast.Statement {
	start := p.advance().Span // 'bind'
	name, _ := p.expect(lexer.KindIdent, "name")
	p.expect(lexer.KindEquals, "'='")
	ep := p.parseExpr()

	return &ast.BindStmt{Sp: start.Merge(ep.Span()), Name: name.Text, Endpoint: ep}
}

func (p *Parser) parseDefine() ast.Statement {
	start := p.advance().Span // 'define'
	name, _ := p.expect(lexer.KindIdent, "name")

	var params []string

	if p.check(lexer.KindLParen) {
		p.advance()
		for !p.check(lexer.KindRParen) && !p.atEOF() {
			id, _ := p.expect(lexer.KindIdent, "parameter name")
			params = append(params, id.Text)

			if p.check(lexer.KindComma) {
				p.advance()
			} else {
				break
			}
		}

		p.expect(lexer.KindRParen, "')'")
	}

	p.expect(lexer.KindLBrace, "'{'")
	p.skipNewlines()

	body := p.parsePipeElems()
	end, _ := p.expect(lexer.KindRBrace, "'}'")

	return &ast.DefineStmt{Sp: start.Merge(end.Span), Name: name.Text, Params: params, Body: body}
}

func (p *Parser) parseTask() ast.Statement {
	start := p.advance().Span // 'clock'
	clock := p.parseExpr()
	name, _ := p.expect(lexer.KindIdent, "task name")
	p.expect(lexer.KindLBrace, "'{'")
	p.skipNewlines()

	task := &ast.TaskStmt{Clock: clock, Name: name.Text}

	if p.checkKeyword("control") || p.checkKeyword("mode") {
		task.Modal = p.parseModalBody()
	} else {
		task.Plain = p.parsePipelines()
	}

	p.skipNewlines()
	end, _ := p.expect(lexer.KindRBrace, "'}'")
	task.Sp = start.Merge(end.Span)

	return task
}

func (p *Parser) parseModalBody() *ast.ModalBody {
	mb := &ast.ModalBody{}
	startTok := p.cur()

	if p.checkKeyword("control") {
		p.advance()
		p.expect(lexer.KindLBrace, "'{'")
		p.skipNewlines()
		mb.Control = p.parsePipelines()
		p.expect(lexer.KindRBrace, "'}'")
		p.skipNewlines()
	}

	for p.checkKeyword("mode") {
		p.advance()

		name, _ := p.expect(lexer.KindIdent, "mode name")
		p.expect(lexer.KindLBrace, "'{'")
		p.skipNewlines()
		pipes := p.parsePipelines()
		end, _ := p.expect(lexer.KindRBrace, "'}'")
		p.skipNewlines()

		mb.Modes = append(mb.Modes, ast.ModeBlock{Sp: name.Span.Merge(end.Span), Name: name.Text, Pipelines: pipes})
	}

	if p.checkKeyword("switch") {
		mb.Switch = p.parseSwitch()
	} else {
		p.errorf(p.cur().Span, "modal task requires a switch() declaration")
	}

	mb.Sp = startTok.Span.Merge(p.cur().Span)

	return mb
}

func (p *Parser) parseSwitch() ast.SwitchDecl {
	start := p.advance().Span // 'switch'
	p.expect(lexer.KindLParen, "'('")

	var src ast.SwitchSource

	if p.check(lexer.KindDollar) {
		dollar := p.advance()
		id, _ := p.expect(lexer.KindIdent, "parameter name")
		src = ast.SwitchSource{Sp: dollar.Span.Merge(id.Span), IsParam: true, Name: id.Text}
	} else {
		id, _ := p.expect(lexer.KindIdent, "switch source")
		src = ast.SwitchSource{Sp: id.Span, IsParam: false, Name: id.Text}
	}

	var modes []string

	for p.check(lexer.KindComma) {
		p.advance()
		id, _ := p.expect(lexer.KindIdent, "mode name")
		modes = append(modes, id.Text)
	}

	end, _ := p.expect(lexer.KindRParen, "')'")
	p.skipNewlines()

	decl := ast.SwitchDecl{Sp: start.Merge(end.Span), Source: src, Modes: modes}

	if p.checkKeyword("default") {
		p.advance()

		id, _ := p.expect(lexer.KindIdent, "default mode name")
		decl.Default = id.Text
		decl.Sp = decl.Sp.Merge(id.Span)
	}

	return decl
}

func (p *Parser) parsePipelines() []ast.Pipeline {
	var out []ast.Pipeline

	p.skipNewlines()
	for !p.check(lexer.KindRBrace) && !p.atEOF() && !p.checkKeyword("mode") && !p.checkKeyword("switch") {
		out = append(out, p.parsePipeline())
		p.skipNewlines()
	}

	return out
}

// parsePipeline parses one `[source] (| elem)* [-> buf]` line. An empty pipeline body (nothing before a bare `->` or newline) is
// reported as E0023 by the resolver, not here: the parser's job is
// syntax, not the "every declared tap is consumed" invariant.
func (p *Parser) parsePipeline() ast.Pipeline {
	start := p.cur().Span

	pl := ast.Pipeline{}

	pl.Source = p.parsePipeSourceIfAny()

	for p.check(lexer.KindPipe) {
		p.advance()
		pl.Elems = append(pl.Elems, p.parsePipeElem())
	}

	if p.check(lexer.KindArrow) {
		p.advance()

		id, _ := p.expect(lexer.KindIdent, "buffer name")
		pl.Sink = id.Text
	}

	if p.check(lexer.KindNewline) {
		end := p.advance().Span
		pl.Sp = start.Merge(end)
	} else {
		pl.Sp = start.Merge(p.cur().Span)
	}

	return pl
}

func (p *Parser) parsePipeSourceIfAny() *ast.PipeSource {
	switch {
	case p.check(lexer.KindAt):
		at := p.advance()
		id, _ := p.expect(lexer.KindIdent, "buffer name")

		return &ast.PipeSource{Sp: at.Span.Merge(id.Span), BufRead: id.Text}
	case p.check(lexer.KindColon):
		colon := p.advance()
		id, _ := p.expect(lexer.KindIdent, "tap name")

		return &ast.PipeSource{Sp: colon.Span.Merge(id.Span), TapRef: id.Text}
	case p.check(lexer.KindIdent):
		call := p.parseActorCall()

		return &ast.PipeSource{Sp: call.Span(), ActorSrc: call}
	default:
		return nil
	}
}

func (p *Parser) parsePipeElems() []ast.PipeElem {
	var out []ast.PipeElem

	p.skipNewlines()
	for !p.check(lexer.KindRBrace) && !p.atEOF() {
		out = append(out, p.parsePipeElem())

		if p.check(lexer.KindPipe) {
			p.advance()
		}

		p.skipNewlines()
	}

	return out
}

func (p *Parser) parsePipeElem() ast.PipeElem {
	switch {
	case p.check(lexer.KindColon):
		colon := p.advance()
		id, _ := p.expect(lexer.KindIdent, "tap name")

		return &ast.TapElem{Sp: colon.Span.Merge(id.Span), Name: id.Text}
	case p.check(lexer.KindQuestion):
		q := p.advance()
		id, _ := p.expect(lexer.KindIdent, "probe name")

		return &ast.ProbeElem{Sp: q.Span.Merge(id.Span), Name: id.Text}
	case p.check(lexer.KindIdent):
		return p.parseActorCall()
	default:
		p.errorf(p.cur().Span, "expected an actor call, tap or probe, found %q", p.cur().Text)
		panic("recover")
	}
}

// parseActorCall parses `name(args)[shape]`; parentheses are mandatory
//.
func (p *Parser) parseActorCall() *ast.ActorCall {
	name, _ := p.expect(lexer.KindIdent, "actor name")
	p.expect(lexer.KindLParen, "'(' (actor calls always require parentheses)")

	var args []ast.Expr

	for !p.check(lexer.KindRParen) && !p.atEOF() {
		args = append(args, p.parseExpr())

		if p.check(lexer.KindComma) {
			p.advance()
		} else {
			break
		}
	}

	end, _ := p.expect(lexer.KindRParen, "')'")

	call := &ast.ActorCall{Sp: name.Span.Merge(end.Span), Name: name.Text, Args: args}

	if p.check(lexer.KindLBracket) {
		shape, shapeEnd := p.parseShape()
		call.Shape = shape
		call.Sp = call.Sp.Merge(shapeEnd)
	}

	return call
}

func (p *Parser) parseShape() ([]ast.Expr, source.Span) {
	p.advance() // '['

	var dims []ast.Expr

	for !p.check(lexer.KindRBracket) && !p.atEOF() {
		dims = append(dims, p.parseExpr())

		if p.check(lexer.KindComma) {
			p.advance()
		} else {
			break
		}
	}

	end, _ := p.expect(lexer.KindRBracket, "']'")

	return dims, end.Span
}

func (p *Parser) parseExpr() ast.Expr {
	switch {
	case p.check(lexer.KindInt):
		t := p.advance()
		v, _ := strconv.ParseInt(t.Text, 10, 64)

		return &ast.IntLit{Sp: t.Span, Value: v}
	case p.check(lexer.KindFloat):
		t := p.advance()
		v, _ := strconv.ParseFloat(t.Text, 64)

		return &ast.FloatLit{Sp: t.Span, Value: v}
	case p.check(lexer.KindFrequency):
		t := p.advance()

		return &ast.FrequencyLit{Sp: t.Span, Hz: parseFrequency(t.Text), Text: t.Text}
	case p.check(lexer.KindSize):
		t := p.advance()

		return &ast.SizeLit{Sp: t.Span, Bytes: parseSize(t.Text), Text: t.Text}
	case p.check(lexer.KindString):
		t := p.advance()

		return &ast.StringLit{Sp: t.Span, Value: unescapeString(t.Text)}
	case p.check(lexer.KindDollar):
		dollar := p.advance()
		id, _ := p.expect(lexer.KindIdent, "parameter name")

		return &ast.ParamRef{Sp: dollar.Span.Merge(id.Span), Name: id.Text}
	case p.check(lexer.KindLBracket):
		start := p.cur().Span
		elems, end := p.parseShape()

		return &ast.ArrayLit{Sp: start.Merge(end), Elements: elems}
	case p.check(lexer.KindIdent):
		t := p.advance()

		return &ast.Ident{Sp: t.Span, Name: t.Text}
	default:
		p.errorf(p.cur().Span, "expected an expression, found %q", p.cur().Text)
		panic("recover")
	}
}
