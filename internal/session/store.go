// Package session persists the authenticated session (access token, refresh
// token, user profile) and the onboarding flag.
package session

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
)

// Store keys.
const (
	KeyAccessToken    = "accessToken"
	KeyRefreshToken   = "refreshToken"
	KeyUserProfile    = "userProfile"
	KeyOnboardingSeen = "hasSeenOnboarding"
)

// sessionKeys are removed together when a session ends.
var sessionKeys = []string{KeyAccessToken, KeyRefreshToken, KeyUserProfile}

// Store is a string-keyed persistent store. A missing key is not an error:
// Get reports it with ok=false.
type Store interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Remove(keys ...string) error
}

// NewStore returns a store for the given API origin, preferring the system
// keyring and falling back to a file under dir.
func NewStore(dir, origin string, preferKeyring bool) Store {
	if preferKeyring && keyringAvailable() {
		return NewKeyringStore(origin)
	}
	if preferKeyring {
		fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, session stored in plaintext at %s\n",
			filepath.Join(dir, sessionFileName))
	}
	return NewFileStore(dir, origin)
}

func keyringAvailable() bool {
	probe := serviceName + "::probe"
	if err := keyring.Set(serviceName, probe, "probe"); err != nil {
		return false
	}
	_ = keyring.Delete(serviceName, probe) // Best-effort cleanup
	return true
}

// BackendName describes where a store keeps its data.
func BackendName(s Store) string {
	switch st := s.(type) {
	case *KeyringStore:
		return "keyring"
	case *FileStore:
		return "file (" + st.Path() + ")"
	case *MemoryStore:
		return "memory"
	default:
		return fmt.Sprintf("%T", s)
	}
}
