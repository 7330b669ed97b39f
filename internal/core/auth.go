package core

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"vendhub/internal/types"
)

// KeyStore is the credential lookup surface the KeyAuthenticator needs.
// Implemented by db.APIKeyRepository.
type KeyStore interface {
	GetByID(ctx context.Context, id string) (*types.APIKey, error)
	TouchLastUsed(ctx context.Context, id string) error
}

// KeyAuthenticator verifies raw API keys of the form "<keyID>.<secret>"
// against bcrypt hashes held in the key store.
type KeyAuthenticator struct {
	keys   KeyStore
	logger *slog.Logger
}

// NewKeyAuthenticator creates a KeyAuthenticator. A nil logger falls back
// to slog.Default().
func NewKeyAuthenticator(keys KeyStore, logger *slog.Logger) *KeyAuthenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &KeyAuthenticator{keys: keys, logger: logger}
}

// ResolveKey splits the raw key into its ID and secret parts, loads the key
// record, and compares the secret against the stored bcrypt hash. Revoked
// keys fail with auth_api_key_revoked; everything else that does not verify
// fails with auth_api_key_invalid.
func (a *KeyAuthenticator) ResolveKey(ctx context.Context, rawKey string) (*types.Actor, error) {
	keyID, secret, ok := strings.Cut(rawKey, ".")
	if !ok || keyID == "" || secret == "" {
		return nil, types.NewAppError(types.ErrCodeAuthKeyInvalid, "malformed API key", nil)
	}

	key, err := a.keys.GetByID(ctx, keyID)
	if err != nil {
		return nil, err
	}

	if key.Revoked() {
		return nil, types.NewAppError(types.ErrCodeAuthKeyRevoked, "API key has been revoked", nil)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		return nil, types.NewAppError(types.ErrCodeAuthKeyInvalid, "API key verification failed", nil)
	}

	// Best effort; a failed timestamp update must not block the request.
	if err := a.keys.TouchLastUsed(ctx, key.ID); err != nil {
		a.logger.Warn("failed to update API key last_used_at",
			slog.String("key_id", key.ID),
			slog.String("error", err.Error()),
		)
	}

	return &types.Actor{
		ID:       key.ID,
		Role:     key.Role,
		VendorID: key.VendorID,
	}, nil
}

// HashSecret produces the bcrypt hash stored for a new API key secret.
func HashSecret(secret string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to hash API key secret", err)
	}
	return string(hash), nil
}
