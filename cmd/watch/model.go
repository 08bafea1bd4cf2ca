package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/timmy/reelforge/internal/client"
	"github.com/timmy/reelforge/internal/domain"
	"github.com/timmy/reelforge/internal/service"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	activeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// api is the part of client.Client the view reads from.
type api interface {
	Snapshot(ctx context.Context, opts client.PollOptions) (*service.Snapshot, error)
	Overview(ctx context.Context, opts client.PollOptions) (*service.Overview, error)
	TriggerDaily(ctx context.Context) (*service.DailyResult, error)
}

type snapshotMsg client.PollResult[service.Snapshot]
type overviewMsg client.PollResult[service.Overview]
type tickMsg struct{}
type triggerMsg struct {
	result *service.DailyResult
	err    error
}

type model struct {
	ctx      context.Context
	baseURL  string
	api      api
	snapshot *client.Poller[service.Snapshot]
	overview *client.Poller[service.Overview]
	interval time.Duration
	spinner  spinner.Model

	snap       client.PollResult[service.Snapshot]
	ov         client.PollResult[service.Overview]
	flash      string
	flashErr   bool
	triggering bool
	width      int
}

func newModel(ctx context.Context, baseURL string, a api, opts client.PollOptions) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = activeStyle
	return model{
		ctx:      ctx,
		baseURL:  baseURL,
		api:      a,
		snapshot: client.NewPoller(a.Snapshot, opts),
		overview: client.NewPoller(a.Overview, opts),
		interval: opts.Interval,
		spinner:  sp,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.poll())
}

func (m model) poll() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return snapshotMsg(m.snapshot.Poll(m.ctx)) },
		func() tea.Msg { return overviewMsg(m.overview.Poll(m.ctx)) },
	)
}

func (m model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, m.poll()
		case "t":
			if m.triggering {
				return m, nil
			}
			m.triggering = true
			m.flash = "starting daily run..."
			m.flashErr = false
			return m, func() tea.Msg {
				result, err := m.api.TriggerDaily(m.ctx)
				return triggerMsg{result: result, err: err}
			}
		}
		return m, nil
	case snapshotMsg:
		m.snap = client.PollResult[service.Snapshot](msg)
		// overview and snapshot arrive together; one of them drives the next tick
		return m, m.scheduleTick()
	case overviewMsg:
		m.ov = client.PollResult[service.Overview](msg)
		return m, nil
	case tickMsg:
		return m, m.poll()
	case triggerMsg:
		m.triggering = false
		switch {
		case errors.Is(msg.err, domain.ErrAlreadyRunning):
			m.flash = "daily run rejected: previous run still in flight"
			m.flashErr = true
		case msg.err != nil:
			m.flash = msg.err.Error()
			m.flashErr = true
		default:
			m.flash = fmt.Sprintf("daily run %s accepted: %d created, %d existing, %d failed",
				msg.result.RunDate, len(msg.result.Created), msg.result.Existing, len(msg.result.Failed))
			m.flashErr = false
		}
		return m, m.poll()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m model) View() string {
	width := m.width
	if width <= 0 {
		width = 100
	}

	header := titleStyle.Render("reelforge pipeline") + "  " + mutedStyle.Render(m.baseURL) + "\n" +
		mutedStyle.Render("t: trigger daily run | r: refresh | q: quit")

	sections := []string{header, m.renderOverview(width), m.renderActive(width), m.renderScheduled(width)}
	if line := m.renderStatusLine(); line != "" {
		sections = append(sections, line)
	}
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m model) renderOverview(width int) string {
	ov := m.ov.Value
	if ov == nil {
		return panelStyle.Width(width - 2).Render(mutedStyle.Render("loading overview..."))
	}

	cells := make([]string, 0, len(ov.Stages))
	for _, cell := range ov.Stages {
		cells = append(cells, m.icon(cell.Display)+" "+toneStyle(cell.Display).Render(cell.Display.Badge))
	}
	title := "idle"
	if ov.Representative != nil {
		title = ov.Representative.Title
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Pipeline")+" "+mutedStyle.Render(title),
		strings.Join(cells, mutedStyle.Render(" > ")),
	)
	return panelStyle.Width(width - 2).Render(body)
}

func (m model) renderActive(width int) string {
	lines := []string{titleStyle.Render("Active jobs")}
	snap := m.snap.Value
	switch {
	case snap == nil:
		lines = append(lines, mutedStyle.Render("loading..."))
	case len(snap.Active) == 0:
		lines = append(lines, mutedStyle.Render("No jobs in flight."))
	default:
		for _, job := range snap.Active {
			lines = append(lines, fmt.Sprintf("%s %-14s %3d%%  %-9s %s",
				m.icon(job.Display),
				toneStyle(job.Display).Render(job.Display.Badge),
				job.Progress,
				job.VideoType,
				job.Title,
			))
		}
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m model) renderScheduled(width int) string {
	lines := []string{titleStyle.Render("Scheduled uploads")}
	snap := m.snap.Value
	switch {
	case snap == nil:
		lines = append(lines, mutedStyle.Render("loading..."))
	case len(snap.Scheduled) == 0:
		lines = append(lines, mutedStyle.Render("Nothing scheduled."))
	default:
		for _, job := range snap.Scheduled {
			when := "-"
			if job.ScheduledTime != nil {
				when = job.ScheduledTime.Local().Format("Mon 15:04")
			}
			lines = append(lines, fmt.Sprintf("%-10s %-14s %s",
				when,
				toneStyle(job.Display).Render(job.Display.Badge),
				job.Title,
			))
		}
	}
	return panelStyle.Width(width - 2).Render(strings.Join(lines, "\n"))
}

func (m model) renderStatusLine() string {
	var parts []string
	if m.flash != "" {
		if m.flashErr {
			parts = append(parts, errorStyle.Render(m.flash))
		} else {
			parts = append(parts, okStyle.Render(m.flash))
		}
	}
	if err := firstErr(m.snap.Err, m.ov.Err); err != nil {
		parts = append(parts, warningStyle.Render(err.Error()))
	} else if !m.snap.FetchedAt.IsZero() {
		parts = append(parts, mutedStyle.Render("updated "+m.snap.FetchedAt.Format("15:04:05")))
	}
	return strings.Join(parts, "  ")
}

func (m model) icon(v domain.StatusView) string {
	switch v.Icon {
	case domain.IconSpinner:
		return m.spinner.View()
	case domain.IconCheck:
		return okStyle.Render("✓")
	case domain.IconAlert:
		return errorStyle.Render("!")
	default:
		return mutedStyle.Render("·")
	}
}

func toneStyle(v domain.StatusView) lipgloss.Style {
	switch v.Status {
	case domain.DisplayActive:
		return activeStyle
	case domain.DisplayCompleted:
		return okStyle
	case domain.DisplayFailed:
		return errorStyle
	default:
		return mutedStyle
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
