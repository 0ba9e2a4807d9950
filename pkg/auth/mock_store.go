package auth

import (
	"sync"
)

// MockStore implements CredentialStore for testing purposes
type MockStore struct {
	profiles map[string]*Credentials
	mu       sync.RWMutex

	// Error injection for testing
	StoreError    error
	RetrieveError error
	DeleteError   error
}

// NewMockStore creates a new mock credential store
func NewMockStore() *MockStore {
	return &MockStore{
		profiles: make(map[string]*Credentials),
	}
}

// Name identifies the store
func (m *MockStore) Name() string { return "mock" }

// Store saves a copy of creds
func (m *MockStore) Store(creds *Credentials) error {
	if m.StoreError != nil {
		return m.StoreError
	}
	if creds == nil || creds.Profile == "" {
		return ErrInvalidCredentials
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *creds
	m.profiles[creds.Profile] = &stored
	return nil
}

// Retrieve returns a copy of the stored credentials
func (m *MockStore) Retrieve(profile string) (*Credentials, error) {
	if m.RetrieveError != nil {
		return nil, m.RetrieveError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	creds, ok := m.profiles[profile]
	if !ok {
		return nil, ErrCredentialsNotFound
	}
	out := *creds
	return &out, nil
}

// Delete removes stored credentials
func (m *MockStore) Delete(profile string) error {
	if m.DeleteError != nil {
		return m.DeleteError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile]; !ok {
		return ErrCredentialsNotFound
	}
	delete(m.profiles, profile)
	return nil
}

// Count returns the number of stored profiles
func (m *MockStore) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.profiles)
}

// NewMockManager creates a Manager with a single mock store for testing
func NewMockManager() (*Manager, *MockStore) {
	store := NewMockStore()
	return NewManagerWithStores(store), store
}
