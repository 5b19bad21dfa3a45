// Package tui implements the interactive report browser.
package tui

import (
	"context"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/atotto/clipboard"

	"github.com/evanschultz/selftrack/internal/adapters/render"
	"github.com/evanschultz/selftrack/internal/app"
	"github.com/evanschultz/selftrack/internal/domain"
)

// Service represents the report reads used by the browser.
type Service interface {
	ListBatches(context.Context) ([]app.BatchSummary, error)
	ReportForBatch(context.Context, string) (domain.FinalReport, error)
}

// listWidth is the fixed width of the batch list pane.
const listWidth = 30

// batchEntry is one row of the batch list.
type batchEntry struct {
	id       string
	name     string
	periods  int
	finished bool
}

// Model is the bubbletea model for the report browser.
type Model struct {
	svc      Service
	help     help.Model
	keys     keyMap
	copyText func(string) error

	ready  bool
	width  int
	height int
	err    error
	status string

	static         bool
	pendingBatchID string
	batches        []batchEntry
	selected       int

	reportID  string
	report    domain.FinalReport
	hasReport bool
	reportErr error
	view      *reportView
	scroll    int
}

// batchesLoadedMsg carries the stored batch list.
type batchesLoadedMsg struct {
	batches []app.BatchSummary
	err     error
}

// reportLoadedMsg carries one aggregated batch report.
type reportLoadedMsg struct {
	batchID string
	report  domain.FinalReport
	err     error
}

// copiedMsg reports the clipboard result.
type copiedMsg struct {
	err error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	m := Model{
		svc:      svc,
		help:     h,
		keys:     newKeyMap(),
		copyText: clipboard.WriteAll,
		status:   "loading...",
		view:     &reportView{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	if m.static {
		return nil
	}
	return m.loadBatches
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		m.scroll = clamp(m.scroll, 0, m.maxScroll())
		return m, nil

	case batchesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.batches = make([]batchEntry, 0, len(msg.batches))
		for _, summary := range msg.batches {
			m.batches = append(m.batches, batchEntry{
				id:       summary.Batch.ID,
				name:     summary.Batch.Name,
				periods:  summary.PeriodCount,
				finished: summary.Batch.Finished(),
			})
		}
		if len(m.batches) == 0 {
			m.selected = 0
			m.status = "no batches recorded yet"
			return m, nil
		}
		if m.pendingBatchID != "" {
			for idx, entry := range m.batches {
				if entry.id == m.pendingBatchID {
					m.selected = idx
					break
				}
			}
			m.pendingBatchID = ""
		}
		m.selected = clamp(m.selected, 0, len(m.batches)-1)
		m.status = fmt.Sprintf("%d batches", len(m.batches))
		return m, m.loadSelectedReport()

	case reportLoadedMsg:
		if msg.batchID != m.selectedID() {
			return m, nil
		}
		if msg.err != nil {
			m.reportID = msg.batchID
			m.hasReport = false
			m.reportErr = msg.err
			m.view.setMarkdown("")
			m.scroll = 0
			return m, nil
		}
		m.setReport(msg.batchID, msg.report)
		return m, nil

	case copiedMsg:
		if msg.err != nil {
			m.status = "copy failed: " + msg.err.Error()
			return m, nil
		}
		m.status = "report copied to clipboard"
		return m, nil

	case tea.KeyPressMsg:
		return m.handleKey(msg)

	default:
		return m, nil
	}
}

// handleKey applies one key press.
func (m Model) handleKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.reload):
		if m.static {
			return m, nil
		}
		m.status = "reloading..."
		return m, m.loadBatches
	case key.Matches(msg, m.keys.moveUp):
		return m.moveSelection(-1)
	case key.Matches(msg, m.keys.moveDown):
		return m.moveSelection(1)
	case key.Matches(msg, m.keys.scrollUp):
		m.scroll = clamp(m.scroll-m.pageSize(), 0, m.maxScroll())
		return m, nil
	case key.Matches(msg, m.keys.scrollDown):
		m.scroll = clamp(m.scroll+m.pageSize(), 0, m.maxScroll())
		return m, nil
	case key.Matches(msg, m.keys.top):
		m.scroll = 0
		return m, nil
	case key.Matches(msg, m.keys.copyReport):
		if !m.hasReport {
			m.status = "nothing to copy"
			return m, nil
		}
		markdown := render.Markdown(m.report)
		write := m.copyText
		return m, func() tea.Msg {
			return copiedMsg{err: write(markdown)}
		}
	default:
		return m, nil
	}
}

// moveSelection moves the batch cursor and loads the newly selected report.
func (m Model) moveSelection(delta int) (tea.Model, tea.Cmd) {
	if len(m.batches) == 0 || m.static {
		return m, nil
	}
	next := clamp(m.selected+delta, 0, len(m.batches)-1)
	if next == m.selected {
		return m, nil
	}
	m.selected = next
	return m, m.loadSelectedReport()
}

// setReport stores one report and resets the scroll position.
func (m *Model) setReport(batchID string, report domain.FinalReport) {
	m.reportID = batchID
	m.report = report
	m.hasReport = true
	m.reportErr = nil
	m.view.setMarkdown(render.Markdown(report))
	m.scroll = 0
}

// selectedID returns the id of the highlighted batch.
func (m Model) selectedID() string {
	if len(m.batches) == 0 {
		return ""
	}
	return m.batches[clamp(m.selected, 0, len(m.batches)-1)].id
}

// loadBatches lists stored batches.
func (m Model) loadBatches() tea.Msg {
	if m.svc == nil {
		return batchesLoadedMsg{err: fmt.Errorf("report service is not configured")}
	}
	batches, err := m.svc.ListBatches(context.Background())
	return batchesLoadedMsg{batches: batches, err: err}
}

// loadSelectedReport aggregates the highlighted batch.
func (m Model) loadSelectedReport() tea.Cmd {
	batchID := m.selectedID()
	svc := m.svc
	if batchID == "" || svc == nil {
		return nil
	}
	return func() tea.Msg {
		report, err := svc.ReportForBatch(context.Background(), batchID)
		return reportLoadedMsg{batchID: batchID, report: report, err: err}
	}
}

// reportWidth returns the wrap width of the report pane.
func (m Model) reportWidth() int {
	return max(24, m.width-listWidth-4)
}

// reportHeight returns the number of visible report lines.
func (m Model) reportHeight() int {
	if m.height <= 0 {
		return 20
	}
	return max(1, m.height-4)
}

// pageSize returns the scroll step.
func (m Model) pageSize() int {
	return max(1, m.reportHeight()-2)
}

// maxScroll returns the largest valid scroll offset.
func (m Model) maxScroll() int {
	lines := m.view.linesAt(m.reportWidth())
	return max(0, len(lines)-m.reportHeight())
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.renderContent())
	v.AltScreen = true
	return v
}

// renderContent renders the full screen as text.
func (m Model) renderContent() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("selftrack")
	if m.hasReport {
		header += "  " + m.report.StartDate + " → " + m.report.EndDate
	}
	if status := strings.TrimSpace(m.status); status != "" {
		header += statusStyle.Render("  " + status)
	}

	listStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		Width(listWidth).
		Height(m.reportHeight())
	reportStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Height(m.reportHeight())

	body := lipgloss.JoinHorizontal(
		lipgloss.Top,
		listStyle.Render(m.renderBatchList(accent, muted)),
		reportStyle.Render(m.renderReport(muted)),
	)

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().Foreground(muted).Padding(0, 1).Render(helpBubble.View(m.keys))

	return strings.Join([]string{header, body, helpLine}, "\n")
}

// renderBatchList renders the batch list pane.
func (m Model) renderBatchList(accent, muted color.Color) string {
	if len(m.batches) == 0 {
		return lipgloss.NewStyle().Foreground(muted).Render("no batches")
	}
	selectedStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)
	itemStyle := lipgloss.NewStyle()
	subStyle := lipgloss.NewStyle().Foreground(muted)

	rows := make([]string, 0, len(m.batches)*2)
	start, end := windowBounds(len(m.batches), m.selected, max(1, m.reportHeight()/2))
	for idx := start; idx < end; idx++ {
		entry := m.batches[idx]
		cursor := "  "
		style := itemStyle
		if idx == m.selected {
			cursor = "› "
			style = selectedStyle
		}
		rows = append(rows, style.Render(cursor+truncate(entry.name, listWidth-4)))
		state := "open"
		if entry.finished {
			state = "done"
		}
		rows = append(rows, subStyle.Render(fmt.Sprintf("  %d periods · %s", entry.periods, state)))
	}
	return strings.Join(rows, "\n")
}

// renderReport renders the visible window of the report pane.
func (m Model) renderReport(muted color.Color) string {
	note := lipgloss.NewStyle().Foreground(muted)
	switch {
	case m.reportErr != nil:
		return note.Render("report unavailable: " + m.reportErr.Error())
	case !m.hasReport:
		return note.Render("select a batch to see its report")
	}
	lines := m.view.linesAt(m.reportWidth())
	start := clamp(m.scroll, 0, max(0, len(lines)-1))
	end := min(len(lines), start+m.reportHeight())
	return strings.Join(lines[start:end], "\n")
}

// windowBounds returns the visible slice of a list around the selected row.
func windowBounds(total, selected, windowSize int) (int, int) {
	if total <= windowSize {
		return 0, total
	}
	start := clamp(selected-windowSize/2, 0, total-windowSize)
	return start, start + windowSize
}

// clamp bounds v to [minV, maxV].
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// truncate shortens s to max runes with an ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
