package auth

import (
	"os"

	"ighashtag/pkg/config"
)

// EnvironmentStore implements CredentialStore over environment variables.
// It is read-only and serves every profile.
type EnvironmentStore struct {
	getenv func(string) string
}

// NewEnvironmentStore creates a new environment-based credential store
func NewEnvironmentStore() *EnvironmentStore {
	return &EnvironmentStore{getenv: os.Getenv}
}

// Name identifies the store
func (e *EnvironmentStore) Name() string { return "environment" }

// Store is not supported for environment variables
func (e *EnvironmentStore) Store(creds *Credentials) error {
	return ErrStoreUnavailable
}

// Retrieve gets credentials from environment variables. The prefixed
// variables take precedence over the bare ones.
func (e *EnvironmentStore) Retrieve(profile string) (*Credentials, error) {
	token := e.first(config.EnvPrefixedToken, config.EnvAPIToken)
	sessionID := e.first(config.EnvPrefixedSession, config.EnvSessionID)

	if token == "" && sessionID == "" {
		return nil, ErrCredentialsNotFound
	}
	if profile == "" {
		profile = DefaultProfile
	}

	return &Credentials{
		Profile:   profile,
		APIToken:  token,
		SessionID: sessionID,
	}, nil
}

// Delete is not supported for environment variables
func (e *EnvironmentStore) Delete(profile string) error {
	return ErrStoreUnavailable
}

func (e *EnvironmentStore) first(names ...string) string {
	for _, name := range names {
		if v := e.getenv(name); v != "" {
			return v
		}
	}
	return ""
}
