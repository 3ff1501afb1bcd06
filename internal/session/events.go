package session

// EventKind says what changed.
type EventKind int

const (
	// EventChanged means the lists, criteria or tallies changed.
	EventChanged EventKind = iota
	// EventNotice carries a message for the viewer.
	EventNotice
	// EventSubmitted acknowledges a submission as soon as it passes validation.
	EventSubmitted
	// EventFormReset fires AckDelay after EventSubmitted; the submission form
	// should go back to its defaults.
	EventFormReset
)

func (k EventKind) String() string {
	switch k {
	case EventChanged:
		return "changed"
	case EventNotice:
		return "notice"
	case EventSubmitted:
		return "submitted"
	case EventFormReset:
		return "form reset"
	}
	return "unknown"
}

// Level grades a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
)

// Notice is a user-visible message.
type Notice struct {
	Level   Level
	Message string
}

// Event is delivered to Options.OnEvent.
type Event struct {
	Kind   EventKind
	Notice Notice // EventNotice only
}

func notice(level Level, msg string) Event {
	return Event{Kind: EventNotice, Notice: Notice{Level: level, Message: msg}}
}

// Messages shown to the viewer.
const (
	msgUpdateFailed  = "Erro ao atualizar no banco de dados."
	msgMissingFields = "Por favor, preencha todos os campos obrigatórios."
	msgSubmitted     = "Solicitação enviada com sucesso!"
	msgSubmitFailed  = "Erro ao enviar a solicitação."
)
