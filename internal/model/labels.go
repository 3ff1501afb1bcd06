package model

// Label is the status as shown on the dashboards.
func (s Status) Label() string {
	switch s {
	case StatusPending:
		return "Pendente"
	case StatusInProgress:
		return "Em andamento"
	case StatusDone:
		return "Concluída"
	case StatusCancelled:
		return "Cancelada"
	}
	return string(s)
}

// Label is the priority as shown on the dashboards.
func (p Priority) Label() string {
	switch p.OrDefault() {
	case PriorityA:
		return "A - Urgente"
	case PriorityB:
		return "B - Média"
	}
	return "C - Baixa"
}

// Label is the service type as shown on the dashboards.
func (t ServiceType) Label() string {
	if t.OrDefault() == ServiceElectrical {
		return "Elétrica"
	}
	return "Mecânica"
}

// Label is the role as shown on the dashboards.
func (r Role) Label() string {
	switch r {
	case RoleOperator:
		return "Operador"
	case RoleSupervisor:
		return "Encarregado"
	}
	return string(r)
}
