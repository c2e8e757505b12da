package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/maykinmedia/open-vtb-sub000/internal/config"
)

func TestToken_CreateVerifyRevoke(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	env.tokens.cost = bcrypt.MinCost
	ctx := context.Background()

	created, err := env.tokens.Create(ctx, " portaal ")
	require.NoError(t, err)
	assert.Equal(t, "portaal", created.Naam)

	prefix, secret, ok := strings.Cut(created.Key, ".")
	require.True(t, ok)
	assert.Len(t, prefix, 8)
	assert.Len(t, secret, 32)
	assert.Equal(t, prefix, created.Prefix)
	assert.NotContains(t, string(created.Hash), secret, "открытый ключ не хранится")

	got, err := env.tokens.Verify(ctx, created.Key)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = env.tokens.Verify(ctx, prefix+".00000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.tokens.Verify(ctx, "zonder-punt")
	assert.ErrorIs(t, err, ErrInvalidToken)
	_, err = env.tokens.Verify(ctx, "ffffffff."+secret)
	assert.ErrorIs(t, err, ErrInvalidToken)

	active := true
	items, err := env.tokens.List(ctx, &active)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	require.NoError(t, env.tokens.Revoke(ctx, "portaal"))
	_, err = env.tokens.Verify(ctx, created.Key)
	assert.ErrorIs(t, err, ErrInvalidToken, "отозванный ключ не принимается")

	items, err = env.tokens.List(ctx, &active)
	require.NoError(t, err)
	assert.Empty(t, items)

	assert.ErrorIs(t, env.tokens.Revoke(ctx, "onbekend"), ErrNotFound)
}

func TestToken_CreateValidation(t *testing.T) {
	env := newTestEnv(t, config.TakenConfig{})
	env.tokens.cost = bcrypt.MinCost
	ctx := context.Background()

	_, err := env.tokens.Create(ctx, "  ")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = env.tokens.Create(ctx, "portaal")
	require.NoError(t, err)
	_, err = env.tokens.Create(ctx, "portaal")
	assert.ErrorIs(t, err, ErrConflict)
}
