// Package tui is the terminal dashboard: tasks with progress, the reconciled
// log list, and conflicts, refreshed on a timer and on live pushes.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/larksync/larksync-console/internal/larkapi"
	"github.com/larksync/larksync-console/internal/livelog"
	"github.com/larksync/larksync-console/internal/synclog"
)

type tab int

const (
	tabTasks tab = iota
	tabLogs
	tabConflicts
)

var tabNames = []string{"Tasks", "Logs", "Conflicts"}

const (
	DefaultRefreshInterval = 5 * time.Second
	barWidth               = 24
	txtHelpTasks           = "enter run · e enable/disable · d delete · r refresh · tab switch · q quit"
	txtHelpLogs            = "f status · / search · ←/→ page · z page size · c clear · tab switch · q quit"
	txtHelpConflicts       = "l keep local · o keep cloud · b keep both · r refresh · tab switch · q quit"
)

type Options struct {
	Console *console.Console
	// Live delivers live log events. Nil disables live refresh.
	Live            <-chan livelog.Event
	RefreshInterval time.Duration
	PageSize        int
}

// --- Messages ---
type dashboardMsg struct{ d console.Dashboard }
type logsMsg struct{ v console.LogCenterView }
type tickMsg time.Time
type liveMsg struct {
	ev livelog.Event
	ok bool
}
type actionMsg struct {
	text string
	err  error
}

type Model struct {
	ctx      context.Context
	console  *console.Console
	live     <-chan livelog.Event
	interval time.Duration

	tab    tab
	cursor [3]int

	dashboard *console.Dashboard
	logs      *console.LogCenterView
	pager     *synclog.Pager
	statusIdx int
	liveState livelog.State

	search    textinput.Model
	searching bool
	bar       progress.Model
	spinner   spinner.Model
	loading   bool
	confirm   Confirm

	notice    string
	noticeErr bool
}

func New(ctx context.Context, opts Options) Model {
	interval := opts.RefreshInterval
	if interval <= 0 {
		interval = DefaultRefreshInterval
	}

	search := textinput.New()
	search.Placeholder = "path, task or message"
	search.CharLimit = 128
	search.Width = 40
	search.PromptStyle = cyan
	search.Prompt = "/ "

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = cyan

	return Model{
		ctx:      ctx,
		console:  opts.Console,
		live:     opts.Live,
		interval: interval,
		pager:    synclog.NewPager(opts.PageSize),
		search:   search,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(barWidth), progress.WithoutPercentage()),
		spinner:  s,
		loading:  true,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchDashboard(false), m.fetchLogs(), m.tick(), m.waitLive())
}

// fetchDashboard forces a status refetch on timer ticks while any task exists.
func (m Model) fetchDashboard(pollStatus bool) tea.Cmd {
	c, ctx := m.console, m.ctx
	return func() tea.Msg {
		if pollStatus {
			c.Invalidate(console.KeyStatus)
		}
		return dashboardMsg{d: c.Dashboard(ctx)}
	}
}

func (m Model) fetchLogs() tea.Cmd {
	c, ctx := m.console, m.ctx
	pager := *m.pager
	return func() tea.Msg {
		return logsMsg{v: c.LogCenter(ctx, &pager)}
	}
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) waitLive() tea.Cmd {
	if m.live == nil {
		return nil
	}
	ch := m.live
	return func() tea.Msg {
		ev, ok := <-ch
		return liveMsg{ev: ev, ok: ok}
	}
}

func (m Model) action(text string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{text: text, err: fn(ctx)}
	}
}

func (m Model) hasTasks() bool {
	return m.dashboard != nil && len(m.dashboard.Tasks) > 0
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case dashboardMsg:
		m.loading = false
		m.dashboard = &msg.d
		if msg.d.LiveState != "" {
			m.liveState = msg.d.LiveState
		}
		m.clampCursors()

	case logsMsg:
		m.logs = &msg.v
		m.clampCursors()

	case tickMsg:
		return m, tea.Batch(m.fetchDashboard(m.hasTasks()), m.fetchLogs(), m.tick())

	case liveMsg:
		if !msg.ok {
			m.live = nil
			return m, nil
		}
		m.liveState = msg.ev.State
		if msg.ev.Entry != nil {
			return m, tea.Batch(m.fetchDashboard(false), m.fetchLogs(), m.waitLive())
		}
		return m, m.waitLive()

	case actionMsg:
		m.noticeErr = msg.err != nil
		m.notice = msg.text
		if msg.err != nil {
			m.notice = larkapi.ErrorMessage(msg.err)
		}
		return m, tea.Batch(m.fetchDashboard(false), m.fetchLogs())
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.confirm.IsOpen() {
		var cmd tea.Cmd
		m.confirm, cmd = m.confirm.Update(msg)
		return m, cmd
	}

	if m.searching {
		return m.handleSearchKey(msg)
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "tab":
		m.tab = (m.tab + 1) % tab(len(tabNames))
		return m, nil
	case "shift+tab":
		m.tab = (m.tab + tab(len(tabNames)) - 1) % tab(len(tabNames))
		return m, nil
	case "1", "2", "3":
		m.tab = tab(msg.String()[0] - '1')
		return m, nil
	case "up", "k":
		m.cursor[m.tab] = max(m.cursor[m.tab]-1, 0)
		return m, nil
	case "down", "j":
		m.cursor[m.tab]++
		m.clampCursors()
		return m, nil
	case "r":
		m.notice = ""
		m.loading = true
		c := m.console
		return m, tea.Sequence(func() tea.Msg {
			c.Invalidate(console.KeyTasks, console.KeyStatus, console.KeyConflicts)
			return nil
		}, tea.Batch(m.fetchDashboard(false), m.fetchLogs()))
	}

	switch m.tab {
	case tabTasks:
		return m.handleTasksKey(msg)
	case tabLogs:
		return m.handleLogsKey(msg)
	case tabConflicts:
		return m.handleConflictsKey(msg)
	}
	return m, nil
}

func (m Model) selectedTask() (console.TaskRow, bool) {
	if m.dashboard == nil || len(m.dashboard.Tasks) == 0 {
		return console.TaskRow{}, false
	}
	return m.dashboard.Tasks[m.cursor[tabTasks]], true
}

func (m Model) handleTasksKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	row, ok := m.selectedTask()
	if !ok {
		return m, nil
	}
	c := m.console
	id, name := row.Task.ID, row.Task.DisplayName()

	switch msg.String() {
	case "enter", "s":
		return m, m.action("Sync started for "+name, func(ctx context.Context) error {
			return c.RunTask(ctx, id)
		})
	case "e":
		enabled := !row.Task.Enabled
		verb := "Disabled "
		if enabled {
			verb = "Enabled "
		}
		return m, m.action(verb+name, func(ctx context.Context) error {
			_, err := c.UpdateTask(ctx, id, &larkapi.UpdateTaskRequest{Enabled: &enabled})
			return err
		})
	case "d":
		m.confirm = m.confirm.Open(
			"Delete task "+name+"?",
			"Local and cloud files are left in place.",
			m.action("Deleted "+name, func(ctx context.Context) error {
				return c.DeleteTask(ctx, id)
			}),
		)
	}
	return m, nil
}

func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	total := 0
	if m.logs != nil {
		total = m.logs.Total
	}

	switch msg.String() {
	case "f":
		var options []string
		if m.logs != nil {
			options = m.logs.StatusOptions
		}
		m.statusIdx = (m.statusIdx + 1) % (len(options) + 1)
		f := m.pager.Filter()
		f.Status = synclog.StatusAll
		if m.statusIdx > 0 {
			f.Status = options[m.statusIdx-1]
		}
		m.pager.SetFilter(f)
	case "/":
		m.searching = true
		m.search.SetValue(m.pager.Filter().Search)
		return m, m.search.Focus()
	case "right", "n":
		m.pager.Next(total)
	case "left", "p":
		m.pager.Prev()
	case "z":
		m.pager.SetPageSize(nextPageSize(m.pager.PageSize()))
	case "c":
		m.statusIdx = 0
		m.pager.SetFilter(synclog.Filter{})
	default:
		return m, nil
	}

	m.cursor[tabLogs] = 0
	return m, m.fetchLogs()
}

func (m Model) handleSearchKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEnter:
		m.searching = false
		m.search.Blur()
		f := m.pager.Filter()
		f.Search = strings.TrimSpace(m.search.Value())
		m.pager.SetFilter(f)
		m.cursor[tabLogs] = 0
		return m, m.fetchLogs()
	case tea.KeyEsc:
		m.searching = false
		m.search.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.search, cmd = m.search.Update(msg)
	return m, cmd
}

func (m Model) handleConflictsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	var action larkapi.ResolveAction
	switch msg.String() {
	case "l":
		action = larkapi.ResolveUseLocal
	case "o":
		action = larkapi.ResolveUseCloud
	case "b":
		action = larkapi.ResolveKeepBoth
	default:
		return m, nil
	}

	if m.dashboard == nil || len(m.dashboard.Conflicts) == 0 {
		return m, nil
	}
	item := m.dashboard.Conflicts[m.cursor[tabConflicts]]
	if item.Resolved {
		m.notice = "Conflict already resolved"
		m.noticeErr = true
		return m, nil
	}

	c, id, label := m.console, item.ID, synclog.ResolveActionLabel(action)
	m.confirm = m.confirm.Open(
		fmt.Sprintf("%s for %s?", label, item.LocalPath),
		fmt.Sprintf("cloud v%d · local hash %s", item.CloudVersion, shortHash(item.LocalHash)),
		m.action("Resolved "+item.LocalPath, func(ctx context.Context) error {
			return c.ResolveConflict(ctx, id, action)
		}),
	)
	return m, nil
}

func (m *Model) clampCursors() {
	lengths := [3]int{}
	if m.dashboard != nil {
		lengths[tabTasks] = len(m.dashboard.Tasks)
		lengths[tabConflicts] = len(m.dashboard.Conflicts)
	}
	if m.logs != nil {
		lengths[tabLogs] = len(m.logs.Items)
	}
	for i := range m.cursor {
		m.cursor[i] = max(min(m.cursor[i], lengths[i]-1), 0)
	}
}

func nextPageSize(cur int) int {
	for i, size := range synclog.PageSizes {
		if size == cur {
			return synclog.PageSizes[(i+1)%len(synclog.PageSizes)]
		}
	}
	return synclog.DefaultPageSize
}

func shortHash(h string) string {
	if len(h) > 8 {
		return h[:8]
	}
	return h
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("LarkSync Console"))
	b.WriteString("  ")
	b.WriteString(m.liveIndicator())
	if m.loading {
		b.WriteString("  " + m.spinner.View())
	}
	b.WriteString("\n\n")

	for i, name := range tabNames {
		style := tabStyle
		if tab(i) == m.tab {
			style = activeTabStyle
		}
		b.WriteString(style.Render(fmt.Sprintf("%d %s", i+1, name)))
	}
	b.WriteString("\n\n")

	switch m.tab {
	case tabTasks:
		m.renderTasks(&b)
	case tabLogs:
		m.renderLogs(&b)
	case tabConflicts:
		m.renderConflicts(&b)
	}

	if m.notice != "" {
		b.WriteString("\n")
		if m.noticeErr {
			b.WriteString(errorStyle.Render(m.notice))
		} else {
			b.WriteString(green.Render(m.notice))
		}
		b.WriteString("\n")
	}

	if m.confirm.IsOpen() {
		b.WriteString("\n")
		b.WriteString(m.confirm.View())
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render(m.help()))
	b.WriteString("\n")
	return b.String()
}

func (m Model) help() string {
	switch m.tab {
	case tabLogs:
		return txtHelpLogs
	case tabConflicts:
		return txtHelpConflicts
	}
	return txtHelpTasks
}

func (m Model) liveIndicator() string {
	switch m.liveState {
	case livelog.StateConnected:
		return green.Render("● live")
	case livelog.StateConnecting:
		return yellow.Render("● connecting")
	case livelog.StateDisconnected:
		return red.Render("● offline")
	}
	return gray.Render("○ polling")
}

func (m Model) renderTasks(b *strings.Builder) {
	d := m.dashboard
	if d == nil {
		b.WriteString(gray.Render("Loading tasks..."))
		b.WriteString("\n")
		return
	}
	if d.TasksError != "" {
		b.WriteString(errorStyle.Render("Tasks: " + d.TasksError))
		b.WriteString("\n")
	}
	if d.StatusError != "" {
		b.WriteString(errorStyle.Render("Status: " + d.StatusError))
		b.WriteString("\n")
	}
	if len(d.Tasks) == 0 {
		b.WriteString(gray.Render("No sync tasks configured."))
		b.WriteString("\n")
		return
	}

	b.WriteString(fmt.Sprintf("%s %s\n\n", gray.Render("Overall"), m.renderProgress(d.Summary.Progress)))

	for i, row := range d.Tasks {
		var state larkapi.TaskState
		if row.Status != nil {
			state = row.Status.State
		}
		text, tone := synclog.TaskStateLabel(state)

		name := row.Task.DisplayName()
		if !row.Task.Enabled {
			name += gray.Render(" (disabled)")
		}

		line := fmt.Sprintf("%-28s %-12s %s  %s",
			name,
			toneStyle(tone).Render(text),
			m.renderProgress(row.Progress.Progress),
			gray.Render(fmt.Sprintf("%d/%d done · %d failed · %s",
				row.Progress.Completed, row.Progress.EffectiveTotal, row.Progress.Failed,
				synclog.SyncModeLabel(row.Task.SyncMode))),
		)
		if i == m.cursor[tabTasks] {
			line = selectedStyle.Render("› ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")

		if row.Status != nil && row.Status.LastError != nil && *row.Status.LastError != "" {
			b.WriteString("    " + errorStyle.Render(*row.Status.LastError) + "\n")
		}
	}
}

func (m Model) renderProgress(p *int) string {
	if p == nil {
		return gray.Render(strings.Repeat("·", barWidth) + "   -")
	}
	return fmt.Sprintf("%s %3d%%", m.bar.ViewAs(float64(*p)/100), *p)
}

func (m Model) renderLogs(b *strings.Builder) {
	f := m.pager.Filter()
	status := f.Status
	if status == "" {
		status = synclog.StatusAll
	}
	b.WriteString(gray.Render(fmt.Sprintf("status: %s · search: %q", status, f.Search)))
	b.WriteString("\n")
	if m.searching {
		b.WriteString(m.search.View())
		b.WriteString("\n")
	}

	v := m.logs
	if v == nil {
		b.WriteString(gray.Render("Loading logs..."))
		b.WriteString("\n")
		return
	}
	if v.Error != "" {
		b.WriteString(errorStyle.Render(v.Error))
		b.WriteString("\n")
	}
	b.WriteString(gray.Render(fmt.Sprintf("source: %s · page %d/%d · %d per page · %d entries",
		v.Source, v.Page.Page, v.TotalPages, v.PageSize, v.Total)))
	b.WriteString("\n\n")

	if len(v.Items) == 0 {
		b.WriteString(gray.Render("No log entries."))
		b.WriteString("\n")
		return
	}

	for i, e := range v.Items {
		text, tone := synclog.StatusLabel(e.Status)
		line := fmt.Sprintf("%s  %-11s %-18s %s",
			gray.Render(e.Time().Format("01-02 15:04:05")),
			toneStyle(tone).Render(text),
			e.TaskName,
			e.Path,
		)
		if e.Message != "" {
			line += "  " + lightGray.Render(e.Message)
		}
		if i == m.cursor[tabLogs] {
			line = selectedStyle.Render("› ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

func (m Model) renderConflicts(b *strings.Builder) {
	d := m.dashboard
	if d == nil {
		b.WriteString(gray.Render("Loading conflicts..."))
		b.WriteString("\n")
		return
	}
	if d.ConflictsError != "" {
		b.WriteString(errorStyle.Render(d.ConflictsError))
		b.WriteString("\n")
	}
	if len(d.Conflicts) == 0 {
		b.WriteString(green.Render("No conflicts."))
		b.WriteString("\n")
		return
	}

	b.WriteString(gray.Render(fmt.Sprintf("%d open", d.OpenConflicts)))
	b.WriteString("\n\n")

	for i, item := range d.Conflicts {
		state := yellow.Render("open")
		if item.Resolved {
			state = green.Render(synclog.ResolveActionLabel(item.ResolvedAction))
		}
		line := fmt.Sprintf("%-40s %-12s %s",
			item.LocalPath,
			state,
			gray.Render(fmt.Sprintf("cloud v%d · db v%d · %s",
				item.CloudVersion, item.DBVersion, humanize.Time(item.CreatedAtTime()))),
		)
		if i == m.cursor[tabConflicts] {
			line = selectedStyle.Render("› ") + line
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
}

// Run starts the dashboard and blocks until the user quits or ctx is done.
func Run(ctx context.Context, opts Options) error {
	_, err := tea.NewProgram(New(ctx, opts), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
