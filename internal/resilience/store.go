// Package resilience keeps cross-process request health for the staybook
// CLI. A circuit breaker and a Retry-After window are persisted per API host
// so that consecutive invocations stop hammering a server that is down or
// throttling.
package resilience

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const (
	// StateFileName is the state file name.
	StateFileName = "state.json"

	// DefaultDirName is the subdirectory within the cache dir.
	DefaultDirName = "resilience"

	// LockTimeout bounds the wait for the file lock. Past it, operations run
	// unlocked rather than hang the CLI.
	LockTimeout = 100 * time.Millisecond
)

// Store reads and writes resilience state under a file lock.
type Store struct {
	dir string
}

// NewStore creates a state store. If dir is empty, it uses
// $STAYBOOK_CACHE_DIR/resilience or the XDG cache directory.
func NewStore(dir string) *Store {
	if dir == "" {
		dir = defaultStateDir()
	}
	return &Store{dir: dir}
}

func defaultStateDir() string {
	if v := os.Getenv("STAYBOOK_CACHE_DIR"); v != "" {
		return filepath.Join(v, DefaultDirName)
	}
	if cacheDir := os.Getenv("XDG_CACHE_HOME"); cacheDir != "" {
		return filepath.Join(cacheDir, "staybook", DefaultDirName)
	}
	if cacheDir, err := os.UserCacheDir(); err == nil && cacheDir != "" {
		return filepath.Join(cacheDir, "staybook", DefaultDirName)
	}
	return filepath.Join(os.TempDir(), "staybook", DefaultDirName)
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the state file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, StateFileName)
}

// acquireLock returns a nil lock and nil error when the lock is busy past
// LockTimeout; callers then proceed unlocked.
func (s *Store) acquireLock() (*flock.Flock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(filepath.Join(s.dir, ".lock"))
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return fl, nil
}

func release(fl *flock.Flock) {
	if fl != nil {
		_ = fl.Unlock()
	}
}

// Load reads the state. A missing or corrupt file yields an empty state.
func (s *Store) Load() (*State, error) {
	fl, err := s.acquireLock()
	if err != nil {
		return nil, err
	}
	defer release(fl)

	return s.loadUnsafe()
}

func (s *Store) loadUnsafe() (*State, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil || state.Version != StateVersion {
		return NewState(), nil //nolint:nilerr // corrupt or outdated state starts over
	}
	if state.Hosts == nil {
		state.Hosts = make(map[string]*HostState)
	}
	return &state, nil
}

func (s *Store) saveUnsafe(state *State) error {
	state.Version = StateVersion

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	// Unique temp name: two unlocked writers must not share one.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}
	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// Update loads the state, applies fn and saves it, holding the lock for the
// whole cycle. If fn returns an error nothing is written.
func (s *Store) Update(fn func(*State) error) error {
	fl, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release(fl)

	state, err := s.loadUnsafe()
	if err != nil {
		return err
	}
	if err := fn(state); err != nil {
		return err
	}
	return s.saveUnsafe(state)
}

// Clear removes the state file.
func (s *Store) Clear() error {
	fl, err := s.acquireLock()
	if err != nil {
		return err
	}
	defer release(fl)

	err = os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
