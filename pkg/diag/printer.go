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
package diag

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pipit-lang/pcc/pkg/util/source"
	"golang.org/x/term"
)

// Format names the two wire formats a Printer can emit, matching the
// --diagnostic-format human|json CLI flag.
type Format string

// The two supported diagnostic formats.
const (
	Human Format = "human"
	JSON  Format = "json"
)

// Printer renders a Bag to an io.Writer in either Format. pcc compiles one
// pipeline source file per invocation, so a single
// *source.File is enough context to render every diagnostic's source line.
type Printer struct {
	Format Format
	File   *source.File
	// color is enabled only for Human output on a genuine terminal; it is
	// computed once via x/term so piping `pcc` output never embeds escape
	// codes.
	color bool
}

var (
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	infoStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	caretStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	hintStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("14"))
)

// NewPrinter constructs a Printer. out is probed with term.IsTerminal to
// decide whether lipgloss styling is applied to Human output (normally
// os.Stdout).
func NewPrinter(format Format, file *source.File, out *os.File) *Printer {
	color := format == Human && out != nil && term.IsTerminal(int(out.Fd()))
	return &Printer{Format: format, File: file, color: color}
}

// Print writes every diagnostic in b, in ascending source order, to w.
func (p *Printer) Print(w io.Writer, b *Bag) error {
	if p.Format == JSON {
		return p.printJSON(w, b)
	}

	return p.printHuman(w, b)
}

func (p *Printer) levelStyle(l Level) lipgloss.Style {
	switch l {
	case Error:
		return errorStyle
	case Warning:
		return warnStyle
	default:
		return infoStyle
	}
}

func (p *Printer) printHuman(w io.Writer, b *Bag) error {
	for _, d := range b.Sorted() {
		header := fmt.Sprintf("%s[%s]: %s", d.Level, d.Code, d.Message)
		if p.color {
			header = p.levelStyle(d.Level).Render(header)
		}

		fmt.Fprintln(w, header)

		if p.File != nil {
			line := p.File.FindFirstEnclosingLine(d.Span)
			col := d.Span.Start() - line.Start() + 1

			fmt.Fprintf(w, "  --> %s:%d:%d\n", p.File.Filename(), line.Number(), col)
			fmt.Fprintf(w, "%4d | %s\n", line.Number(), line.String())

			caretLen := max(1, d.Span.Length())
			caret := strings.Repeat(" ", col-1) + strings.Repeat("^", caretLen)
			if p.color {
				caret = caretStyle.Render(caret)
			}

			fmt.Fprintf(w, "     | %s\n", caret)
		}

		for _, r := range d.Related {
			fmt.Fprintf(w, "  note: %s\n", r.Message)
		}

		if d.Hint != "" {
			hint := "hint: " + d.Hint
			if p.color {
				hint = hintStyle.Render(hint)
			}

			fmt.Fprintln(w, hint)
		}
	}

	return nil
}

// jsonDiagnostic is the wire shape for Format==JSON: one JSON object per
// diagnostic, sharing exactly the same fields as the human format.
type jsonDiagnostic struct {
	Code    string        `json:"code"`
	Level   string        `json:"level"`
	Start   int           `json:"start"`
	End     int           `json:"end"`
	Message string        `json:"message"`
	Hint    string        `json:"hint,omitempty"`
	Related []jsonRelated `json:"related,omitempty"`
}

// jsonRelated is one related span of a jsonDiagnostic.
type jsonRelated struct {
	Start   int    `json:"start"`
	End     int    `json:"end"`
	Message string `json:"message"`
}

func (p *Printer) printJSON(w io.Writer, b *Bag) error {
	enc := json.NewEncoder(w)
	for _, d := range b.Sorted() {
		jd := jsonDiagnostic{
			Code:    string(d.Code),
			Level:   d.Level.String(),
			Start:   d.Span.Start(),
			End:     d.Span.End(),
			Message: d.Message,
			Hint:    d.Hint,
		}
		for _, r := range d.Related {
			jd.Related = append(jd.Related, jsonRelated{Start: r.Span.Start(), End: r.Span.End(), Message: r.Message})
		}
		if err := enc.Encode(jd); err != nil {
			return err
		}
	}

	return nil
}
