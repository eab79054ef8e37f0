package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterAndAuthenticate(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{
		Email: "Ada@Example.com", Name: "Ada", Password: "hunter22",
	})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, RoleCustomer, u.Role)
	assert.NotEqual(t, "hunter22", u.PasswordHash)

	got, err := svc.Authenticate(ctx, "ada@example.com", "hunter22")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.Authenticate(ctx, "a@b.c", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	// Unknown account answers the same way as a wrong password.
	_, err = svc.Authenticate(ctx, "nobody@b.c", "secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, RegisterInput{Email: "A@B.C", Password: "other"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRevokeTokensBumpsVersion(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	u, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Password: "secret"})
	require.NoError(t, err)
	assert.Equal(t, 0, u.TokenVersion)

	v, err := svc.RevokeTokens(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	got, err := svc.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.TokenVersion)
}
