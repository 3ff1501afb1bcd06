// Package tui is the terminal dashboard. It renders a session.Session with
// bubbletea: supervisors get every request with filters and status keys,
// operators get their own history and a submission form.
package tui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/erazemk/manutencao/internal/filter"
	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
)

// noticeFadeDelay is how long a notice stays in the status bar.
const noticeFadeDelay = 5 * time.Second

// noticeFadeMsg clears the notice it was scheduled for, unless a newer
// notice replaced it.
type noticeFadeMsg struct {
	seq int
}

// refreshTimeout bounds a manual refresh.
const refreshTimeout = 15 * time.Second

// Model is the top-level bubbletea model.
type Model struct {
	sess   *session.Session
	bridge *Bridge
	keys   KeyMap
	help   help.Model

	table table.Model
	ids   []string

	width  int
	height int

	form *form

	notice    session.Notice
	noticeSeq int
}

// New creates a model for sess. The session must have been created with
// bridge.OnEvent as its event callback.
func New(sess *session.Session, bridge *Bridge) Model {
	t := table.New(
		table.WithColumns(columnsFor(sess.Scope(), 100)),
		table.WithFocused(true),
		table.WithHeight(15),
	)
	m := Model{
		sess:   sess,
		bridge: bridge,
		keys:   DefaultKeyMap,
		help:   help.New(),
		table:  t,
	}
	m.syncRows()
	return m
}

func (m Model) supervisor() bool {
	return m.sess.Scope() == session.ScopeAll
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return m.bridge.listen()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case sessionEventMsg:
		cmd := m.handleEvent(msg.event)
		return m, tea.Batch(m.bridge.listen(), cmd)

	case noticeFadeMsg:
		if msg.seq == m.noticeSeq {
			m.notice = session.Notice{}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.table.SetColumns(columnsFor(m.sess.Scope(), msg.Width))
		m.table.SetHeight(max(msg.Height-12, 5))

	case tea.KeyMsg:
		if m.form != nil {
			return m.handleFormKey(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(ev session.Event) tea.Cmd {
	switch ev.Kind {
	case session.EventChanged:
		m.syncRows()
	case session.EventNotice:
		return m.showNotice(ev.Notice)
	case session.EventSubmitted:
		if m.form != nil {
			m.form.sent = true
		}
	case session.EventFormReset:
		m.form = nil
	}
	return nil
}

func (m *Model) showNotice(n session.Notice) tea.Cmd {
	m.notice = n
	m.noticeSeq++
	seq := m.noticeSeq
	return tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{seq: seq}
	})
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Refresh):
		sess := m.sess
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
			defer cancel()
			sess.Refresh(ctx)
			return nil
		}
	}

	if m.supervisor() {
		if status, ok := m.statusKey(msg); ok {
			return m, m.setStatus(status)
		}
	} else if key.Matches(msg, m.keys.NewRequest) {
		m.form = newForm(session.DefaultDraft(m.sess.Viewer()))
		return m, textinput.Blink
	}

	if c, ok := m.filterKey(msg); ok {
		if c.Empty(m.supervisor()) {
			m.sess.ClearCriteria()
		} else {
			m.sess.SetCriteria(c)
		}
		m.syncRows()
		return m, nil
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Cancel) {
		m.form = nil
		return m, nil
	}
	if m.form.sent {
		// Waiting for the reset; the form is read-only until then.
		return m, nil
	}

	submit, cmd := m.form.update(m.keys, msg)
	if !submit {
		return m, cmd
	}
	// Validation failures and store errors arrive as notices.
	_ = m.sess.Submit(m.form.draft())
	return m, nil
}

func (m Model) statusKey(msg tea.KeyMsg) (model.Status, bool) {
	switch {
	case key.Matches(msg, m.keys.SetPending):
		return model.StatusPending, true
	case key.Matches(msg, m.keys.SetInProgress):
		return model.StatusInProgress, true
	case key.Matches(msg, m.keys.SetDone):
		return model.StatusDone, true
	case key.Matches(msg, m.keys.SetCancelled):
		return model.StatusCancelled, true
	}
	return "", false
}

func (m *Model) setStatus(status model.Status) tea.Cmd {
	id := m.selectedID()
	if id == "" {
		return nil
	}
	if _, err := m.sess.SetStatus(id, status); err != nil {
		return m.showNotice(session.Notice{Level: session.LevelError, Message: err.Error()})
	}
	m.syncRows()
	return nil
}

// filterKey returns the criteria after the filter key in msg, if it is one.
// Each dimension cycles through its options one value at a time and then
// back to no restriction. Operators have no requester filter.
func (m Model) filterKey(msg tea.KeyMsg) (filter.Criteria, bool) {
	c := m.sess.Criteria()
	opts := m.sess.Options()

	switch {
	case key.Matches(msg, m.keys.FilterStatus):
		c.Statuses = cycle(c.Statuses, model.Statuses)
	case key.Matches(msg, m.keys.FilterPriority):
		c.Priorities = cycle(c.Priorities, model.Priorities)
	case key.Matches(msg, m.keys.FilterService):
		c.ServiceTypes = cycle(c.ServiceTypes, opts.ServiceTypes)
	case key.Matches(msg, m.keys.FilterSector):
		c.Sectors = cycle(c.Sectors, opts.Sectors)
	case key.Matches(msg, m.keys.FilterMachine):
		c.Machines = cycle(c.Machines, opts.Machines)
	case key.Matches(msg, m.keys.FilterRequester) && m.supervisor():
		c.Requesters = cycle(c.Requesters, opts.Requesters)
	case key.Matches(msg, m.keys.FilterClear):
		c = filter.Criteria{}
	default:
		return c, false
	}
	return c, true
}

// cycle advances a single-value selection through options: none, the first
// option, the next one, and after the last back to none.
func cycle[T comparable](current, options []T) []T {
	if len(options) == 0 {
		return nil
	}
	if len(current) == 0 {
		return []T{options[0]}
	}
	i := slices.Index(options, current[0])
	if len(current) > 1 || i < 0 || i == len(options)-1 {
		return nil
	}
	return []T{options[i+1]}
}

func (m Model) selectedID() string {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.ids) {
		return ""
	}
	return m.ids[i]
}

// syncRows copies the session's displayed list into the table, keeping the
// cursor on the same request when it is still shown.
func (m *Model) syncRows() {
	selected := m.selectedID()
	displayed := m.sess.Displayed()

	rows := make([]table.Row, 0, len(displayed))
	ids := make([]string, 0, len(displayed))
	for _, r := range displayed {
		rows = append(rows, rowFor(m.sess.Scope(), r))
		ids = append(ids, r.ID)
	}
	m.table.SetRows(rows)
	m.ids = ids

	if i := slices.Index(ids, selected); i >= 0 {
		m.table.SetCursor(i)
	} else if m.table.Cursor() >= len(ids) {
		m.table.SetCursor(max(len(ids)-1, 0))
	}
}

func columnsFor(scope session.Scope, width int) []table.Column {
	if scope == session.ScopeOwn {
		return []table.Column{
			{Title: "Data", Width: 16},
			{Title: "Máquina", Width: 14},
			{Title: "Descrição", Width: max(width-60, 20)},
			{Title: "Prioridade", Width: 12},
			{Title: "Status", Width: 12},
		}
	}
	return []table.Column{
		{Title: "Data", Width: 16},
		{Title: "Setor", Width: 12},
		{Title: "Máquina", Width: 14},
		{Title: "Solicitante", Width: 14},
		{Title: "Descrição", Width: max(width-110, 20)},
		{Title: "Pri", Width: 3},
		{Title: "Serviço", Width: 9},
		{Title: "Status", Width: 12},
	}
}

func rowFor(scope session.Scope, r model.Request) table.Row {
	created := r.CreatedAt.Local().Format("02/01/2006 15:04")
	if scope == session.ScopeOwn {
		return table.Row{created, r.Machine, r.Description, r.Priority.Label(), r.Status.Label()}
	}
	return table.Row{
		created, r.Sector, r.Machine, r.RequesterName, r.Description,
		string(r.Priority.OrDefault()), r.ServiceType.Label(), r.Status.Label(),
	}
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	viewer := m.sess.Viewer()
	title := "Painel de Manutenção"
	if !m.supervisor() {
		title = "Minhas solicitações"
	}
	fmt.Fprintf(&b, "%s  %s\n\n", titleStyle.Render(title), mutedStyle.Render(viewer.Name+" ("+viewer.Role.Label()+")"))

	if m.supervisor() {
		b.WriteString(m.talliesView())
	} else {
		b.WriteString(m.completedView())
	}
	b.WriteString("\n")
	b.WriteString(m.filtersView())
	b.WriteString("\n\n")

	if m.form != nil {
		b.WriteString(m.form.view())
	} else {
		b.WriteString(m.table.View())
	}
	b.WriteString("\n\n")
	b.WriteString(m.statusBar())
	return b.String()
}

func (m Model) talliesView() string {
	counts := m.sess.Counts()
	total := 0
	parts := make([]string, 0, len(model.Statuses)+1)
	for _, s := range model.Statuses {
		total += counts[s]
		parts = append(parts, fmt.Sprintf("%s %d", statusBadge(s), counts[s]))
	}
	return fmt.Sprintf("Total %d  %s", total, strings.Join(parts, "  "))
}

func (m Model) filtersView() string {
	c := m.sess.Criteria()
	n := m.sess.ActiveFilters()
	if n == 0 {
		return mutedStyle.Render("Sem filtros")
	}

	var parts []string
	add := func(label string, values []string) {
		if len(values) > 0 {
			parts = append(parts, label+"="+strings.Join(values, ","))
		}
	}
	add("setor", c.Sectors)
	add("máquina", c.Machines)
	if m.supervisor() {
		add("solicitante", c.Requesters)
	}
	add("status", labels(c.Statuses))
	add("prioridade", labels(c.Priorities))
	add("serviço", labels(c.ServiceTypes))
	return fmt.Sprintf("Filtros (%d): %s  %s", n, strings.Join(parts, "  "),
		mutedStyle.Render(fmt.Sprintf("%d de %d", len(m.ids), len(m.sess.All()))))
}

func labels[T interface{ Label() string }](values []T) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, v.Label())
	}
	return out
}

func (m Model) completedView() string {
	done := m.sess.Completed()
	if len(done) == 0 {
		return mutedStyle.Render("Nenhuma solicitação concluída")
	}
	machines := make([]string, 0, len(done))
	for _, r := range done {
		machines = append(machines, r.Machine)
	}
	return fmt.Sprintf("%s %d: %s", statusBadge(model.StatusDone), len(done), strings.Join(machines, ", "))
}

func (m Model) statusBar() string {
	if m.notice.Message != "" {
		return noticeStyles[m.notice.Level].Render(m.notice.Message)
	}
	return m.help.ShortHelpView(m.helpBindings())
}

func (m Model) helpBindings() []key.Binding {
	switch {
	case m.form != nil:
		return []key.Binding{m.keys.NextField, m.keys.FormPriority, m.keys.FormService, m.keys.Submit, m.keys.Cancel}
	case m.supervisor():
		return []key.Binding{
			m.keys.Up, m.keys.Down,
			m.keys.SetPending, m.keys.SetInProgress, m.keys.SetDone, m.keys.SetCancelled,
			m.keys.FilterStatus, m.keys.FilterPriority, m.keys.FilterSector, m.keys.FilterClear,
			m.keys.Refresh, m.keys.Quit,
		}
	}
	return []key.Binding{
		m.keys.Up, m.keys.Down, m.keys.NewRequest,
		m.keys.FilterStatus, m.keys.FilterSector, m.keys.FilterMachine, m.keys.FilterClear,
		m.keys.Refresh, m.keys.Quit,
	}
}
