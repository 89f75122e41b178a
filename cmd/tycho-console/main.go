package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"tycho/internal/httpapi"
	"tycho/internal/report"
	"tycho/internal/store"
	"tycho/pkg/tycho"
)

// Styles.
var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("6"))
	colHeaderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	strategyStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	gainStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	lossStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	sparkStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("14"))
	errStyle       = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	highlightBG    = lipgloss.Color("236")
)

// Messages.
type tickMsg time.Time

type runsLoadedMsg struct {
	runs []store.Run
	err  error
}

type detailLoadedMsg struct {
	run    *store.Run
	equity []store.EquityPoint
	fills  []httpapi.FillJSON
	err    error
}

type runDeletedMsg struct {
	id  string
	err error
}

func tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

type viewMode int

const (
	modeList viewMode = iota
	modeDetail
)

type model struct {
	client *tycho.Client

	runs   []store.Run
	cursor int
	mode   viewMode

	detail detailLoadedMsg

	viewport viewport.Model
	ready    bool
	width    int
	height   int

	status string
	err    error
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.loadRuns, tickCmd())
}

func (m model) loadRuns() tea.Msg {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	runs, err := m.client.Runs(ctx, 100)
	return runsLoadedMsg{runs: runs, err: err}
}

func (m model) loadDetail(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		run, err := m.client.Run(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		equity, err := m.client.Equity(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		fills, err := m.client.Fills(ctx, id)
		if err != nil {
			return detailLoadedMsg{err: err}
		}
		return detailLoadedMsg{run: run, equity: equity, fills: fills}
	}
}

func (m model) deleteRun(id string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return runDeletedMsg{id: id, err: m.client.DeleteRun(ctx, id)}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "esc":
			if m.mode == modeDetail {
				m.mode = modeList
			}
			return m, nil

		case "up", "k":
			if m.mode == modeList && m.cursor > 0 {
				m.cursor--
				return m, nil
			}

		case "down", "j":
			if m.mode == modeList && m.cursor < len(m.runs)-1 {
				m.cursor++
				return m, nil
			}

		case "enter":
			if m.mode == modeList && len(m.runs) > 0 {
				m.status = "loading run..."
				return m, m.loadDetail(m.runs[m.cursor].ID)
			}

		case "r":
			m.status = "refreshing..."
			return m, m.loadRuns

		case "d":
			if m.mode == modeList && len(m.runs) > 0 {
				m.status = "deleting..."
				return m, m.deleteRun(m.runs[m.cursor].ID)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		vpHeight := m.height - 3
		if vpHeight < 1 {
			vpHeight = 1
		}
		if !m.ready {
			m.viewport = viewport.New(m.width, vpHeight)
			m.viewport.MouseWheelEnabled = true
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = vpHeight
		}
		if m.mode == modeDetail {
			m.viewport.SetContent(m.renderDetail())
		}

	case tickMsg:
		return m, tea.Batch(m.loadRuns, tickCmd())

	case runsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.status = ""
		m.runs = msg.runs
		if m.cursor >= len(m.runs) {
			m.cursor = len(m.runs) - 1
		}
		if m.cursor < 0 {
			m.cursor = 0
		}
		return m, nil

	case detailLoadedMsg:
		m.status = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.detail = msg
		m.mode = modeDetail
		if m.ready {
			m.viewport.SetContent(m.renderDetail())
			m.viewport.GotoTop()
		}
		return m, nil

	case runDeletedMsg:
		m.status = ""
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		return m, m.loadRuns
	}

	if m.mode == modeDetail && m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m model) View() string {
	if !m.ready {
		return "starting..."
	}

	var header string
	switch m.mode {
	case modeList:
		header = titleStyle.Render(" tycho runs ") + dimStyle.Render("  enter: detail  d: delete  r: refresh  q: quit")
	case modeDetail:
		header = titleStyle.Render(" run detail ") + dimStyle.Render("  esc: back  q: quit")
	}

	footer := ""
	if m.err != nil {
		footer = errStyle.Render("error: " + m.err.Error())
	} else if m.status != "" {
		footer = dimStyle.Render(m.status)
	}

	if m.mode == modeDetail {
		return header + "\n" + m.viewport.View() + "\n" + footer
	}
	return header + "\n" + m.renderList() + "\n" + footer
}

func (m model) renderList() string {
	if len(m.runs) == 0 {
		return dimStyle.Render("\n  no runs in the catalog; run tycho-backtest -save or POST /api/backtests\n")
	}

	var b strings.Builder
	b.WriteString(colHeaderStyle.Render(fmt.Sprintf("  %-8s  %-16s  %-18s  %-10s  %12s  %8s  %7s",
		"ID", "STRATEGY", "SYMBOLS", "CREATED", "FINAL", "RETURN", "SHARPE")))
	b.WriteByte('\n')

	maxRows := m.height - 5
	if maxRows < 1 {
		maxRows = len(m.runs)
	}
	for i, run := range m.runs {
		if i >= maxRows {
			b.WriteString(dimStyle.Render(fmt.Sprintf("  ... %d more", len(m.runs)-maxRows)))
			b.WriteByte('\n')
			break
		}

		retStyle := gainStyle
		if run.Metrics.TotalReturn < 0 {
			retStyle = lossStyle
		}

		line := fmt.Sprintf("  %-8s  %s  %-18s  %-10s  %12s  %s  %7s",
			shortID(run.ID),
			strategyStyle.Render(fmt.Sprintf("%-16s", run.Strategy)),
			strings.Join(run.Symbols, ","),
			run.CreatedAt.Local().Format("2006-01-02"),
			report.FormatMoney(run.Metrics.FinalValue),
			retStyle.Render(fmt.Sprintf("%8s", report.FormatPct(run.Metrics.TotalReturn))),
			report.FormatRatio(run.Metrics.SharpeRatio))

		if i == m.cursor {
			line = lipgloss.NewStyle().Background(highlightBG).Render(line)
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

func (m model) renderDetail() string {
	d := m.detail
	if d.run == nil {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s  %s  %s..%s\n",
		strategyStyle.Render(d.run.Strategy),
		strings.Join(d.run.Symbols, ","),
		d.run.Start.Format("2006-01-02"),
		d.run.End.Format("2006-01-02"))
	fmt.Fprintf(&b, "%s\n\n", dimStyle.Render(d.run.ID))

	if len(d.equity) > 0 {
		width := m.width - 4
		if width > 80 {
			width = 80
		}
		if width < 10 {
			width = 10
		}
		totals := make([]float64, len(d.equity))
		for i, p := range d.equity {
			totals[i] = p.Total
		}
		b.WriteString(sparkStyle.Render(report.Sparkline(totals, width)))
		b.WriteString("\n\n")
	}

	b.WriteString(report.RenderMetrics(d.run.Metrics))

	if len(d.fills) > 0 {
		b.WriteByte('\n')
		b.WriteString(colHeaderStyle.Render(fmt.Sprintf("%-12s  %-8s  %-4s  %8s  %12s  %12s",
			"DATE", "SYMBOL", "SIDE", "QTY", "PRICE", "COST")))
		b.WriteByte('\n')
		for _, f := range d.fills {
			sideStyle := gainStyle
			if f.Side == "SELL" {
				sideStyle = lossStyle
			}
			fmt.Fprintf(&b, "%-12s  %-8s  %s  %8s  %12s  %12s\n",
				f.Timestamp.Format("2006-01-02"),
				f.Symbol,
				sideStyle.Render(fmt.Sprintf("%-4s", f.Side)),
				report.FormatInt(int(f.Quantity)),
				report.FormatMoney(f.Price),
				report.FormatMoney(f.TotalCost))
		}
	}
	return b.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func main() {
	addr := flag.String("addr", "http://localhost:8080", "tycho-server base URL")
	flag.Parse()

	m := model{client: tycho.NewClient(*addr)}
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		log.Fatalf("console error: %v", err)
	}
}
