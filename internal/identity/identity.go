package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates no account matches the lookup.
	ErrNotFound = errors.New("account not found")

	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")

	// ErrInvalidCredentials indicates the email or password is wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	RoleCustomer = "customer"
	RoleBusiness = "business"
)

// User is a registered account. TokenVersion increments on logout so every
// previously issued token stops verifying.
type User struct {
	ID           string
	Email        string
	Name         string
	Role         string
	PasswordHash string
	TokenVersion int
	CreatedAt    time.Time
}

// Repository persists accounts.
type Repository interface {
	Create(ctx context.Context, u User) error
	Get(ctx context.Context, id string) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	BumpTokenVersion(ctx context.Context, id string) (int, error)
}
