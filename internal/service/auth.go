package service

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

// Authenticate returns the role of the matching account. Accounts still holding
// a plain-text credential are upgraded to a bcrypt hash on their first
// successful login.
func (s *Service) Authenticate(ctx context.Context, username string, credential string) (domain.Role, bool) {
	username = strings.TrimSpace(username)
	if username == "" || credential == "" {
		return "", false
	}

	user, err := s.repo.GetUser(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Error().Err(err).Str("username", username).Msg("user lookup failed")
		}
		return "", false
	}
	if !store.CredentialMatches(user.Credential, credential) {
		return "", false
	}
	if !user.Role.Valid() {
		log.Warn().Str("username", username).Str("role", string(user.Role)).Msg("account has unknown role")
		return "", false
	}

	if !store.IsCredentialHash(user.Credential) {
		hashed, err := store.HashCredential(credential)
		if err == nil {
			err = s.repo.UpdateUserCredential(ctx, username, hashed)
		}
		if err != nil {
			log.Warn().Err(err).Str("username", username).Msg("failed to upgrade legacy credential")
		} else {
			log.Info().Str("username", username).Msg("legacy credential upgraded")
		}
	}
	return user.Role, true
}
