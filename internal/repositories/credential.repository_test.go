package repositories

import (
	"context"
	"testing"
	"time"

	"ineed/config"
	"ineed/internal/database"
	. "ineed/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_UsesMemoryStoresWithoutCache(t *testing.T) {
	repos := New(database.DB{}, config.Config{ToastedSetCapacity: 5})

	_, ok := repos.Toasted.(*memoryToastedRepository)
	assert.True(t, ok)
	assert.NotNil(t, repos.Credentials)
	assert.NotNil(t, repos.ChatTokens)
}

func TestCredentialRepository_PerRoleKeys(t *testing.T) {
	store := newMemoryStore()
	repo := NewCredentialRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, RoleClient, Credentials{AccessToken: "c-access", RefreshToken: "c-refresh"}))
	require.NoError(t, repo.Save(ctx, RoleProfessional, Credentials{AccessToken: "p-access"}))

	var raw string
	found, err := store.Get(ctx, "clientAccessToken", &raw)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "c-access", raw)

	professional, ok, err := repo.Get(ctx, RoleProfessional)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, Credentials{AccessToken: "p-access"}, professional)

	require.NoError(t, repo.Save(ctx, RoleClient, Credentials{AccessToken: "rotated"}))
	client, _, _ := repo.Get(ctx, RoleClient)
	assert.Equal(t, Credentials{AccessToken: "rotated", RefreshToken: "c-refresh"}, client)

	require.NoError(t, repo.Delete(ctx, RoleClient))
	_, ok, err = repo.Get(ctx, RoleClient)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = repo.Get(ctx, Role("admin"))
	assert.Error(t, err)
}

func TestChatTokenRepository(t *testing.T) {
	store := newMemoryStore()
	repo := NewChatTokenRepository(store)
	ctx := context.Background()
	professional := Identity{Role: RoleProfessional, UserID: "88"}

	_, ok, err := repo.Get(ctx, professional)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Save(ctx, professional, "tok"))
	token, ok, err := repo.Get(ctx, professional)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)
	assert.Equal(t, "profChatToken:88", chatTokenKey(professional))

	_, ok, _ = repo.Get(ctx, Identity{Role: RoleClient, UserID: "88"})
	assert.False(t, ok)

	require.NoError(t, repo.Delete(ctx, professional))
	_, ok, _ = repo.Get(ctx, professional)
	assert.False(t, ok)
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := newMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v", time.Minute))
	var value string
	found, _ := store.Get(ctx, "k", &value)
	assert.True(t, found)

	now = now.Add(2 * time.Minute)
	found, _ = store.Get(ctx, "k", &value)
	assert.False(t, found)
}
