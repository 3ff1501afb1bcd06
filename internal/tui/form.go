package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/session"
)

// Form fields, in focus order.
const (
	fieldMachine = iota
	fieldSector
	fieldDescription
	fieldCount
)

// form is the operator's submission form. Requester identity, priority and
// service type come from the draft it was opened with; the rest is typed.
type form struct {
	inputs   [fieldCount]textinput.Model
	focus    int
	base     model.Draft
	priority model.Priority
	service  model.ServiceType
	sent     bool
}

func newForm(d model.Draft) *form {
	f := &form{base: d, priority: d.Priority.OrDefault(), service: d.ServiceType.OrDefault()}

	labels := [fieldCount]string{"Máquina", "Setor", "Descrição"}
	values := [fieldCount]string{d.Machine, d.Sector, d.Description}
	for i := range f.inputs {
		in := textinput.New()
		in.Prompt = fmt.Sprintf("%-10s ", labels[i]+":")
		in.Placeholder = strings.ToLower(labels[i])
		in.CharLimit = 500
		in.Width = 60
		in.SetValue(values[i])
		f.inputs[i] = in
	}
	f.inputs[fieldMachine].Focus()
	return f
}

// draft is what the form would submit.
func (f *form) draft() model.Draft {
	d := f.base
	d.Machine = strings.TrimSpace(f.inputs[fieldMachine].Value())
	d.Sector = strings.TrimSpace(f.inputs[fieldSector].Value())
	d.Description = strings.TrimSpace(f.inputs[fieldDescription].Value())
	d.Priority = f.priority
	d.ServiceType = f.service
	return d
}

func (f *form) moveFocus(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f.inputs[f.focus].Focus()
}

// update handles a key while the form is open. It reports whether the user
// asked to submit.
func (f *form) update(keys KeyMap, msg tea.KeyMsg) (bool, tea.Cmd) {
	switch {
	case key.Matches(msg, keys.Submit):
		return true, nil
	case key.Matches(msg, keys.NextField):
		return false, f.moveFocus(1)
	case key.Matches(msg, keys.PrevField):
		return false, f.moveFocus(-1)
	case key.Matches(msg, keys.FormPriority):
		f.priority = nextOf(model.Priorities, f.priority)
		return false, nil
	case key.Matches(msg, keys.FormService):
		f.service = nextOf(model.ServiceTypes, f.service)
		return false, nil
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return false, cmd
}

func (f *form) view() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Nova solicitação"))
	b.WriteString("\n\n")
	for _, in := range f.inputs {
		b.WriteString(in.View())
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%-10s %s\n", "Prioridade:", f.priority.Label())
	fmt.Fprintf(&b, "%-10s %s\n", "Serviço:", f.service.Label())
	if f.sent {
		b.WriteString("\n" + noticeStyles[session.LevelInfo].Render("Enviado!"))
	}
	return formStyle.Render(b.String())
}

// nextOf returns the value after cur in values, wrapping around.
func nextOf[T comparable](values []T, cur T) T {
	for i, v := range values {
		if v == cur {
			return values[(i+1)%len(values)]
		}
	}
	return values[0]
}
