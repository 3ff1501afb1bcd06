package auth

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/erazemk/manutencao/internal/model"
	"github.com/erazemk/manutencao/internal/store"
)

// Authenticate looks up the user behind a login attempt. Operators sign in
// with their badge identifier alone; supervisors also need their password.
// A mismatch of any kind returns model.ErrCredentials.
func Authenticate(ctx context.Context, db *sql.DB, role model.Role, identifier, secret string) (*model.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, model.ErrCredentials
	}

	user, err := store.GetUserByLogin(ctx, db, identifier)
	if err != nil {
		return nil, fmt.Errorf("authenticating: %w", err)
	}
	if user == nil || user.Role != role {
		return nil, model.ErrCredentials
	}

	if role.NeedsSecret() {
		if secret == "" || user.PasswordHash == "" {
			return nil, model.ErrCredentials
		}
		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(secret)); err != nil {
			return nil, model.ErrCredentials
		}
	}

	return user, nil
}

// HashPassword hashes a supervisor password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword reports whether password matches the stored hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
