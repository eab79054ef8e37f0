package paymethod

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFirstMethodBecomesDefault(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	uid := uuid.NewString()

	m, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeCard, Token: "tok_1", Last4: "4242"})
	require.NoError(t, err)
	assert.True(t, m.IsDefault)
}

func TestAddDefaultFlipsPrevious(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	uid := uuid.NewString()

	first, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeCard, Token: "tok_1"})
	require.NoError(t, err)

	second, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypePayPal, Token: "tok_2", IsDefault: true})
	require.NoError(t, err)
	assert.True(t, second.IsDefault)

	got, err := svc.Get(ctx, uid, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestAddRejectsUnknownType(t *testing.T) {
	svc := NewService(NewMemoryRepository())

	_, err := svc.Add(context.Background(), AddInput{
		UserID: uuid.NewString(), Type: "crypto_wallet", Token: "tok",
	})
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestUpdateSetDefaultMovesFlag(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	uid := uuid.NewString()

	first, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeCard, Token: "tok_1"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeBank, Token: "tok_2"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, uid, second.ID, UpdateInput{SetDefault: true})
	require.NoError(t, err)
	assert.True(t, updated.IsDefault)

	got, err := svc.Get(ctx, uid, first.ID)
	require.NoError(t, err)
	assert.False(t, got.IsDefault)
}

func TestRemoveLastMethodRefused(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	uid := uuid.NewString()

	m, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeCard, Token: "tok_1"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Remove(ctx, uid, m.ID), ErrLastMethod)

	methods, err := svc.List(ctx, uid)
	require.NoError(t, err)
	assert.Len(t, methods, 1)
}

func TestRemoveDefaultPromotesSurvivor(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()
	uid := uuid.NewString()

	first, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypeCard, Token: "tok_1"})
	require.NoError(t, err)
	second, err := svc.Add(ctx, AddInput{UserID: uid, Type: TypePayPal, Token: "tok_2"})
	require.NoError(t, err)

	require.NoError(t, svc.Remove(ctx, uid, first.ID))

	got, err := svc.Get(ctx, uid, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
}

func TestGetRefusesForeignMethod(t *testing.T) {
	svc := NewService(NewMemoryRepository())
	ctx := context.Background()

	m, err := svc.Add(ctx, AddInput{UserID: uuid.NewString(), Type: TypeCard, Token: "tok_1"})
	require.NoError(t, err)

	_, err = svc.Get(ctx, uuid.NewString(), m.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
