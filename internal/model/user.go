package model

import (
	"errors"
	"strings"
	"time"
)

// User is someone who can sign in: an operator on the floor or a maintenance supervisor.
type User struct {
	ID           int64      `json:"id"`
	Login        string     `json:"login"`
	Name         string     `json:"name"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Sector       string     `json:"sector,omitempty"`
	Machine      string     `json:"machine,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// Role is compared by equality only; there is no hierarchy.
type Role string

// Roles.
const (
	RoleOperator   Role = "operator"
	RoleSupervisor Role = "supervisor"
)

// ParseRole accepts the canonical role names and the legacy Portuguese ones.
func ParseRole(s string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "operator", "operador":
		return RoleOperator, true
	case "supervisor", "encarregado":
		return RoleSupervisor, true
	}
	return "", false
}

// NeedsSecret reports whether signing in with this role requires a password.
func (r Role) NeedsSecret() bool {
	return r == RoleSupervisor
}

// MinPasswordLength is the shortest accepted supervisor password.
const MinPasswordLength = 8

// ValidatePassword checks a new supervisor password.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return errors.New("password must be at least 8 characters")
	}
	return nil
}
