package model

import (
	"strings"
	"time"
)

// Request is a maintenance request (solicitação) in its canonical form.
// Every Request handed to the rest of the program has gone through Normalize,
// so Priority and ServiceType are always populated.
type Request struct {
	ID                 string      `json:"id"`
	RequesterID        string      `json:"requesterId"`
	RequesterName      string      `json:"requesterName"`
	Sector             string      `json:"sector"`
	Machine            string      `json:"machine"`
	Description        string      `json:"description"`
	Status             Status      `json:"status"`
	Priority           Priority    `json:"priority"`
	ServiceType        ServiceType `json:"serviceType"`
	CreatedAt          time.Time   `json:"createdAt"`
	UpdatedAt          *time.Time  `json:"updatedAt,omitempty"`
	Notes              string      `json:"notes,omitempty"`
	CreatedViaScan     bool        `json:"createdViaScan,omitempty"`
	AssignedTechnician string      `json:"assignedTechnician,omitempty"`
}

// Draft holds the fields an operator supplies when filing a request.
type Draft struct {
	RequesterID        string      `json:"requesterId"`
	RequesterName      string      `json:"requesterName"`
	Sector             string      `json:"sector"`
	Machine            string      `json:"machine"`
	Description        string      `json:"description"`
	Status             Status      `json:"status,omitempty"`
	Priority           Priority    `json:"priority,omitempty"`
	ServiceType        ServiceType `json:"serviceType,omitempty"`
	CreatedViaScan     bool        `json:"createdViaScan,omitempty"`
	AssignedTechnician string      `json:"assignedTechnician,omitempty"`
}

// Validate checks the fields a submission cannot do without.
func (d Draft) Validate() error {
	switch {
	case strings.TrimSpace(d.RequesterID) == "":
		return &ValidationError{Field: "requesterId", Message: "requester is required"}
	case strings.TrimSpace(d.Description) == "":
		return &ValidationError{Field: "description", Message: "description is required"}
	case strings.TrimSpace(d.Machine) == "":
		return &ValidationError{Field: "machine", Message: "machine is required"}
	}
	if d.Status != "" && !d.Status.Valid() {
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return nil
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Status *Status `json:"status,omitempty"`
	Notes  *string `json:"notes,omitempty"`
}

// Validate rejects unknown statuses.
func (p Patch) Validate() error {
	if p.Status != nil && !p.Status.Valid() {
		return &ValidationError{Field: "status", Message: "invalid status"}
	}
	return nil
}

// Status is the lifecycle state of a request. Any status may follow any other.
type Status string

// Request statuses.
const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
)

// Statuses lists every status in display order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusDone, StatusCancelled}

// Valid reports whether s is one of the four known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus maps canonical and legacy spellings to a Status.
func ParseStatus(s string) (Status, bool) {
	switch fold(s) {
	case "pending", "pendente":
		return StatusPending, true
	case "in_progress", "inprogress", "em_andamento", "andamento":
		return StatusInProgress, true
	case "done", "concluida", "completed":
		return StatusDone, true
	case "cancelled", "canceled", "cancelada":
		return StatusCancelled, true
	}
	return "", false
}

// Priority is the severity tier. A is urgent, C is low.
type Priority string

// Priorities.
const (
	PriorityA Priority = "A"
	PriorityB Priority = "B"
	PriorityC Priority = "C"
)

// DefaultPriority applies when a request carries no recognizable priority.
const DefaultPriority = PriorityC

// Priorities lists every priority, most urgent first.
var Priorities = []Priority{PriorityA, PriorityB, PriorityC}

// ParsePriority returns the priority named by s, or DefaultPriority.
func ParsePriority(s string) Priority {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "A":
		return PriorityA
	case "B":
		return PriorityB
	}
	return DefaultPriority
}

// OrDefault coerces an empty or unknown priority to DefaultPriority.
func (p Priority) OrDefault() Priority {
	return ParsePriority(string(p))
}

// ServiceType is the trade a request needs.
type ServiceType string

// Service types.
const (
	ServiceMechanical ServiceType = "mechanical"
	ServiceElectrical ServiceType = "electrical"
)

// DefaultServiceType applies when a request carries no recognizable service type.
const DefaultServiceType = ServiceMechanical

// ServiceTypes lists every service type.
var ServiceTypes = []ServiceType{ServiceMechanical, ServiceElectrical}

// ParseServiceType returns the service type named by s, or DefaultServiceType.
func ParseServiceType(s string) ServiceType {
	switch fold(s) {
	case "electrical", "eletrica", "eletrico":
		return ServiceElectrical
	}
	return DefaultServiceType
}

// OrDefault coerces an empty or unknown service type to DefaultServiceType.
func (t ServiceType) OrDefault() ServiceType {
	return ParseServiceType(string(t))
}

var accentFolder = strings.NewReplacer(
	"á", "a", "à", "a", "â", "a", "ã", "a",
	"é", "e", "ê", "e",
	"í", "i",
	"ó", "o", "ô", "o", "õ", "o",
	"ú", "u",
	"ç", "c",
	" ", "_", "-", "_",
)

// fold lowercases s and strips Portuguese accents so legacy values compare equal.
func fold(s string) string {
	return accentFolder.Replace(strings.ToLower(strings.TrimSpace(s)))
}
