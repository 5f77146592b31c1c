package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

// Session is the persisted authentication state. All fields empty means
// anonymous.
type Session struct {
	AccessToken  string          `json:"accessToken,omitempty"`
	RefreshToken string          `json:"refreshToken,omitempty"`
	Profile      json.RawMessage `json:"userProfile,omitempty"`
}

// Authenticated reports whether an access token is present.
func (s *Session) Authenticated() bool {
	return s != nil && s.AccessToken != ""
}

// UserProfile is the signed-in user as returned by login.
type UserProfile struct {
	ID          int64    `json:"id,omitempty"`
	FullName    string   `json:"fullName"`
	Email       string   `json:"email"`
	Phone       string   `json:"phone,omitempty"`
	Authorities []string `json:"authorities,omitempty"`
}

// Provider is the session surface the API client depends on.
type Provider interface {
	Load() (*Session, error)
	Save(*Session) error
	SetTokens(access, refresh string) error
	Clear() error
}

// Manager implements Provider over a Store.
type Manager struct {
	store Store

	mu sync.Mutex
}

var _ Provider = (*Manager)(nil)

// NewManager creates a session manager backed by store.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Load reads the current session. A store failure returns the partial
// session read so far together with the error.
func (m *Manager) Load() (*Session, error) {
	s := &Session{}
	var err error
	if s.AccessToken, _, err = m.store.Get(KeyAccessToken); err != nil {
		return s, err
	}
	if s.RefreshToken, _, err = m.store.Get(KeyRefreshToken); err != nil {
		return s, err
	}
	profile, ok, err := m.store.Get(KeyUserProfile)
	if err != nil {
		return s, err
	}
	if ok && profile != "" {
		s.Profile = json.RawMessage(profile)
	}
	return s, nil
}

// Save persists every field of s. Empty fields are removed.
func (m *Manager) Save(s *Session) error {
	if s == nil {
		return errors.New("nil session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var remove []string
	set := func(key, value string) error {
		if value == "" {
			remove = append(remove, key)
			return nil
		}
		return m.store.Set(key, value)
	}
	if err := set(KeyAccessToken, s.AccessToken); err != nil {
		return err
	}
	if err := set(KeyRefreshToken, s.RefreshToken); err != nil {
		return err
	}
	if err := set(KeyUserProfile, string(s.Profile)); err != nil {
		return err
	}
	if len(remove) > 0 {
		return m.store.Remove(remove...)
	}
	return nil
}

// SetTokens stores a new access token and, when non-empty, a new refresh
// token. The profile is left as is.
func (m *Manager) SetTokens(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.store.Set(KeyAccessToken, access); err != nil {
		return err
	}
	if refresh != "" {
		return m.store.Set(KeyRefreshToken, refresh)
	}
	return nil
}

// Clear ends the session in one bulk remove. The onboarding flag survives.
func (m *Manager) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove(sessionKeys...)
}

// Profile decodes the stored user profile. It returns nil when none is stored.
func (m *Manager) Profile() (*UserProfile, error) {
	raw, ok, err := m.store.Get(KeyUserProfile)
	if err != nil || !ok || raw == "" {
		return nil, err
	}
	var p UserProfile
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, fmt.Errorf("stored profile is corrupt: %w", err)
	}
	return &p, nil
}

// OnboardingSeen reports whether the onboarding flag is set.
func (m *Manager) OnboardingSeen() (bool, error) {
	v, ok, err := m.store.Get(KeyOnboardingSeen)
	if err != nil {
		return false, err
	}
	return ok && v == "true", nil
}

// MarkOnboardingSeen sets the onboarding flag.
func (m *Manager) MarkOnboardingSeen() error {
	return m.store.Set(KeyOnboardingSeen, "true")
}
