package auth

import (
	"errors"
	"fmt"
	"time"

	"ighashtag/pkg/config"
)

// DefaultProfile names the credential set used when none is given
const DefaultProfile = "default"

// Credentials are the two secrets a scrape needs: the platform API token and
// the Instagram session cookie handed to the actor
type Credentials struct {
	Profile      string    `json:"profile"`
	APIToken     string    `json:"api_token"`
	SessionID    string    `json:"session_id"`
	LastModified time.Time `json:"last_modified"`
}

// Complete reports whether both secrets are present
func (c *Credentials) Complete() bool {
	return c != nil && c.APIToken != "" && c.SessionID != ""
}

// CredentialStore is the interface for storing and retrieving credentials
type CredentialStore interface {
	// Name identifies the store in status output
	Name() string

	// Store saves credentials for a profile
	Store(creds *Credentials) error

	// Retrieve gets credentials for a profile
	Retrieve(profile string) (*Credentials, error)

	// Delete removes credentials for a profile
	Delete(profile string) error
}

// Manager walks credential stores in order
type Manager struct {
	stores []CredentialStore
}

// NewManager creates a manager reading the environment first and the system
// keychain second, when one is available
func NewManager() *Manager {
	stores := []CredentialStore{NewEnvironmentStore()}

	if keyringStore, err := NewKeyringStore(); err == nil {
		stores = append(stores, keyringStore)
	}

	return &Manager{stores: stores}
}

// NewManagerWithStores creates a manager over explicit stores
func NewManagerWithStores(stores ...CredentialStore) *Manager {
	return &Manager{stores: stores}
}

// Store saves credentials in the first store that accepts them
func (m *Manager) Store(creds *Credentials) error {
	if creds == nil {
		return ErrInvalidCredentials
	}
	if creds.APIToken == "" {
		return errors.New("API token is required")
	}
	if creds.SessionID == "" {
		return errors.New("session ID is required")
	}
	if creds.Profile == "" {
		creds.Profile = DefaultProfile
	}

	creds.LastModified = time.Now()

	var lastErr error
	for _, store := range m.stores {
		err := store.Store(creds)
		if err == nil {
			return nil
		}
		lastErr = err
	}

	if lastErr != nil {
		return fmt.Errorf("failed to store credentials: %w", lastErr)
	}
	return ErrStoreUnavailable
}

// Resolve merges credentials for profile across stores. Earlier stores win
// field by field, so an exported APIFY_TOKEN overrides a stored one while a
// stored session id still fills the gap.
func (m *Manager) Resolve(profile string) (*Credentials, error) {
	if profile == "" {
		profile = DefaultProfile
	}

	resolved := &Credentials{Profile: profile}
	for _, store := range m.stores {
		creds, err := store.Retrieve(profile)
		if err != nil || creds == nil {
			continue
		}
		if resolved.APIToken == "" {
			resolved.APIToken = creds.APIToken
		}
		if resolved.SessionID == "" {
			resolved.SessionID = creds.SessionID
		}
		if resolved.Complete() {
			break
		}
	}

	if resolved.APIToken == "" && resolved.SessionID == "" {
		return nil, ErrCredentialsNotFound
	}
	return resolved, nil
}

// Sources reports, per store, whether it holds credentials for profile
func (m *Manager) Sources(profile string) map[string]*Credentials {
	if profile == "" {
		profile = DefaultProfile
	}

	found := make(map[string]*Credentials)
	for _, store := range m.stores {
		if creds, err := store.Retrieve(profile); err == nil && creds != nil {
			found[store.Name()] = Sanitize(creds)
		}
	}
	return found
}

// Delete removes credentials for profile from every writable store
func (m *Manager) Delete(profile string) error {
	if profile == "" {
		profile = DefaultProfile
	}

	var deleted bool
	var lastErr error
	for _, store := range m.stores {
		err := store.Delete(profile)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrStoreUnavailable):
		default:
			lastErr = err
		}
	}

	if !deleted && lastErr != nil {
		return fmt.Errorf("failed to delete credentials: %w", lastErr)
	}
	if !deleted {
		return fmt.Errorf("credentials not found for profile: %s", profile)
	}
	return nil
}

// Apply fills whatever credentials cfg lacks from the stores. Values
// already present in cfg are left untouched.
func (m *Manager) Apply(cfg *config.Config, profile string) {
	if cfg.Apify.Token != "" && cfg.Apify.SessionID != "" {
		return
	}
	creds, err := m.Resolve(profile)
	if err != nil {
		return
	}
	if cfg.Apify.Token == "" {
		cfg.Apify.Token = creds.APIToken
	}
	if cfg.Apify.SessionID == "" {
		cfg.Apify.SessionID = creds.SessionID
	}
}

// Sanitize creates a copy of the credentials with secrets masked
func Sanitize(creds *Credentials) *Credentials {
	if creds == nil {
		return nil
	}

	return &Credentials{
		Profile:      creds.Profile,
		APIToken:     config.MaskSecret(creds.APIToken),
		SessionID:    config.MaskSecret(creds.SessionID),
		LastModified: creds.LastModified,
	}
}

// Errors
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrStoreUnavailable    = errors.New("credential store unavailable")
)
