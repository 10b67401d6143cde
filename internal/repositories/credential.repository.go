package repositories

import (
	"context"
	"fmt"

	"ineed/internal/constants"
	. "ineed/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

var credentialKeys = map[Role]struct{ access, refresh string }{
	RoleProfessional: {access: constants.ProfessionalAccessTokenKey, refresh: constants.ProfessionalRefreshTokenKey},
	RoleClient:       {access: constants.ClientAccessTokenKey, refresh: constants.ClientRefreshTokenKey},
}

type CredentialRepository interface {
	Get(ctx context.Context, role Role) (Credentials, bool, error)
	Save(ctx context.Context, role Role, credentials Credentials) error
	Delete(ctx context.Context, role Role) error
}

type credentialRepository struct {
	store keyValueStore
	log   logger.Logger
}

func NewCredentialRepository(store keyValueStore) CredentialRepository {
	return &credentialRepository{
		store: store,
		log:   logger.New("credentialRepository"),
	}
}

func (r *credentialRepository) Get(ctx context.Context, role Role) (Credentials, bool, error) {
	log := r.log.Function("Get")

	keys, ok := credentialKeys[role]
	if !ok {
		return Credentials{}, false, log.Error("unknown role", "role", role)
	}

	var credentials Credentials
	if _, err := r.store.Get(ctx, keys.access, &credentials.AccessToken); err != nil {
		return Credentials{}, false, log.Err("failed to read access token", err, "role", role)
	}
	if _, err := r.store.Get(ctx, keys.refresh, &credentials.RefreshToken); err != nil {
		return Credentials{}, false, log.Err("failed to read refresh token", err, "role", role)
	}

	return credentials, !credentials.IsZero(), nil
}

// Save writes only the non-empty tokens, so a response rotating one header keeps
// the other token.
func (r *credentialRepository) Save(ctx context.Context, role Role, credentials Credentials) error {
	log := r.log.Function("Save")

	keys, ok := credentialKeys[role]
	if !ok {
		return log.Error("unknown role", "role", role)
	}

	if credentials.AccessToken != "" {
		if err := r.store.Set(ctx, keys.access, credentials.AccessToken, 0); err != nil {
			return log.Err("failed to store access token", err, "role", role)
		}
	}
	if credentials.RefreshToken != "" {
		if err := r.store.Set(ctx, keys.refresh, credentials.RefreshToken, 0); err != nil {
			return log.Err("failed to store refresh token", err, "role", role)
		}
	}

	return nil
}

func (r *credentialRepository) Delete(ctx context.Context, role Role) error {
	log := r.log.Function("Delete")

	keys, ok := credentialKeys[role]
	if !ok {
		return log.Error("unknown role", "role", role)
	}

	for _, key := range []string{keys.access, keys.refresh} {
		if err := r.store.Delete(ctx, key); err != nil {
			return log.Err("failed to delete credential", err, "role", role, "key", key)
		}
	}
	return nil
}

type ChatTokenRepository interface {
	Get(ctx context.Context, identity Identity) (string, bool, error)
	Save(ctx context.Context, identity Identity, token string) error
	Delete(ctx context.Context, identity Identity) error
}

type chatTokenRepository struct {
	store keyValueStore
	log   logger.Logger
}

func NewChatTokenRepository(store keyValueStore) ChatTokenRepository {
	return &chatTokenRepository{
		store: store,
		log:   logger.New("chatTokenRepository"),
	}
}

// chatTokenKey is "<chatType>ChatToken:<userId>", e.g. "profChatToken:88".
func chatTokenKey(identity Identity) string {
	return fmt.Sprintf("%s%s:%s", identity.Role.ChatType(), constants.ChatTokenCacheSuffix, identity.UserID)
}

func (r *chatTokenRepository) Get(ctx context.Context, identity Identity) (string, bool, error) {
	var token string
	found, err := r.store.Get(ctx, chatTokenKey(identity), &token)
	if err != nil {
		return "", false, r.log.Function("Get").
			Err("failed to read chat token", err, "identity", identity.Key())
	}
	return token, found && token != "", nil
}

func (r *chatTokenRepository) Save(ctx context.Context, identity Identity, token string) error {
	if err := r.store.Set(ctx, chatTokenKey(identity), token, constants.ChatTokenExpiry); err != nil {
		return r.log.Function("Save").
			Err("failed to store chat token", err, "identity", identity.Key())
	}
	return nil
}

func (r *chatTokenRepository) Delete(ctx context.Context, identity Identity) error {
	if err := r.store.Delete(ctx, chatTokenKey(identity)); err != nil {
		return r.log.Function("Delete").
			Err("failed to delete chat token", err, "identity", identity.Key())
	}
	return nil
}
