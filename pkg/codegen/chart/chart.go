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

// Package chart renders the `--emit timing-chart` artifact: a per-task
// summary of its PASS firing order, K-factor, and fusion ratio, either
// as a static table (piped/non-tty output) or an interactive bubbletea
// program (tty output).
package chart

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pipit-lang/pcc/pkg/schedule"
)

// Row is one task's timing-chart summary line.
type Row struct {
	Task      string
	Entries   int
	Fused     int
	KFactor   int
	ClockHz   float64
	TickHz    float64
}

// BuildRows summarizes each subgraph's fused PASS into a Row. passes and
// names must be parallel slices, as produced by walking pkg/graph's
// Subgraphs alongside their pkg/schedule.Fuse output.
func BuildRows(names []string, passes []*schedule.PASS, clockHz, tickHz []float64) []Row {
	rows := make([]Row, len(names))

	for i, name := range names {
		fused := 0

		for _, e := range passes[i].Entries {
			if e.Fused {
				fused++
			}
		}

		rows[i] = Row{
			Task:    name,
			Entries: len(passes[i].Entries),
			Fused:   fused,
			KFactor: schedule.KFactor(clockHz[i], tickHz[i]),
			ClockHz: clockHz[i],
			TickHz:  tickHz[i],
		}
	}

	return rows
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	footerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
)

func columns() []table.Column {
	return []table.Column{
		{Title: "Task", Width: 20},
		{Title: "Entries", Width: 8},
		{Title: "Fused", Width: 6},
		{Title: "K", Width: 4},
		{Title: "Clock(Hz)", Width: 12},
		{Title: "Tick(Hz)", Width: 12},
	}
}

func rowsOf(rows []Row) []table.Row {
	out := make([]table.Row, len(rows))

	for i, r := range rows {
		out[i] = table.Row{
			r.Task,
			strconv.Itoa(r.Entries),
			strconv.Itoa(r.Fused),
			strconv.Itoa(r.KFactor),
			strconv.FormatFloat(r.ClockHz, 'g', -1, 64),
			strconv.FormatFloat(r.TickHz, 'g', -1, 64),
		}
	}

	return out
}

// RenderStatic renders rows as a non-interactive table, for piped or
// non-tty `--emit timing-chart` output.
func RenderStatic(rows []Row) string {
	t := table.New(
		table.WithColumns(columns()),
		table.WithRows(rowsOf(rows)),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Bold(false)
	t.SetStyles(s)

	return headerStyle.Render("pipit timing chart") + "\n" + t.View()
}

// Model is the interactive bubbletea program shown on a tty.
type Model struct {
	table table.Model
	quit  bool
}

// NewModel builds the interactive model from a pre-built row set; it
// does not recompute the schedule, only presents it.
func NewModel(rows []Row) Model {
	t := table.New(
		table.WithColumns(columns()),
		table.WithRows(rowsOf(rows)),
		table.WithFocused(true),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).BorderBottom(true).Bold(true)
	s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Bold(false)
	t.SetStyles(s)

	return Model{table: t}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quit = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd

	m.table, cmd = m.table.Update(msg)

	return m, cmd
}

func (m Model) View() string {
	if m.quit {
		return ""
	}

	return headerStyle.Render("pipit timing chart") + "\n" + m.table.View() + "\n" +
		footerStyle.Render("↑/↓ navigate · q quit")
}

// Run starts the interactive program against the given rows, blocking
// until the user quits.
func Run(rows []Row) error {
	_, err := tea.NewProgram(NewModel(rows)).Run()
	if err != nil {
		return fmt.Errorf("chart: %w", err)
	}

	return nil
}
