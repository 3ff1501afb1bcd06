package tui

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the key bindings of the dashboard.
type KeyMap struct {
	Up   key.Binding
	Down key.Binding

	// Supervisor: set the selected request's status.
	SetPending    key.Binding
	SetInProgress key.Binding
	SetDone       key.Binding
	SetCancelled  key.Binding

	// Cycle one filter dimension through its options. Requester is
	// supervisor only.
	FilterStatus    key.Binding
	FilterPriority  key.Binding
	FilterService   key.Binding
	FilterSector    key.Binding
	FilterMachine   key.Binding
	FilterRequester key.Binding
	FilterClear     key.Binding

	// Operator: open the submission form.
	NewRequest key.Binding

	// Form.
	NextField    key.Binding
	PrevField    key.Binding
	FormPriority key.Binding
	FormService  key.Binding
	Submit       key.Binding
	Cancel       key.Binding

	Refresh key.Binding
	Quit    key.Binding
}

// DefaultKeyMap is the built-in key binding set.
var DefaultKeyMap = KeyMap{
	Up: key.NewBinding(
		key.WithKeys("k", "up"),
		key.WithHelp("k/↑", "cima"),
	),
	Down: key.NewBinding(
		key.WithKeys("j", "down"),
		key.WithHelp("j/↓", "baixo"),
	),
	SetPending: key.NewBinding(
		key.WithKeys("1"),
		key.WithHelp("1", "pendente"),
	),
	SetInProgress: key.NewBinding(
		key.WithKeys("2"),
		key.WithHelp("2", "andamento"),
	),
	SetDone: key.NewBinding(
		key.WithKeys("3"),
		key.WithHelp("3", "concluída"),
	),
	SetCancelled: key.NewBinding(
		key.WithKeys("4"),
		key.WithHelp("4", "cancelada"),
	),
	FilterStatus: key.NewBinding(
		key.WithKeys("s"),
		key.WithHelp("s", "status"),
	),
	FilterPriority: key.NewBinding(
		key.WithKeys("p"),
		key.WithHelp("p", "prioridade"),
	),
	FilterService: key.NewBinding(
		key.WithKeys("t"),
		key.WithHelp("t", "serviço"),
	),
	FilterSector: key.NewBinding(
		key.WithKeys("e"),
		key.WithHelp("e", "setor"),
	),
	FilterMachine: key.NewBinding(
		key.WithKeys("m"),
		key.WithHelp("m", "máquina"),
	),
	FilterRequester: key.NewBinding(
		key.WithKeys("o"),
		key.WithHelp("o", "solicitante"),
	),
	FilterClear: key.NewBinding(
		key.WithKeys("c", "esc"),
		key.WithHelp("c", "limpar filtros"),
	),
	NewRequest: key.NewBinding(
		key.WithKeys("n"),
		key.WithHelp("n", "nova solicitação"),
	),
	NextField: key.NewBinding(
		key.WithKeys("tab", "down"),
		key.WithHelp("Tab", "próximo campo"),
	),
	PrevField: key.NewBinding(
		key.WithKeys("shift+tab", "up"),
		key.WithHelp("S-Tab", "campo anterior"),
	),
	FormPriority: key.NewBinding(
		key.WithKeys("ctrl+p"),
		key.WithHelp("C-p", "prioridade"),
	),
	FormService: key.NewBinding(
		key.WithKeys("ctrl+t"),
		key.WithHelp("C-t", "serviço"),
	),
	Submit: key.NewBinding(
		key.WithKeys("enter"),
		key.WithHelp("Enter", "enviar"),
	),
	Cancel: key.NewBinding(
		key.WithKeys("esc"),
		key.WithHelp("Esc", "fechar"),
	),
	Refresh: key.NewBinding(
		key.WithKeys("r"),
		key.WithHelp("r", "atualizar"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "sair"),
	),
}
