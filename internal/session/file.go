package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

const sessionFileName = "session.json"

// LockTimeout bounds how long a write waits for the cross-process lock.
// When it expires the write proceeds unlocked so the CLI never hangs on a
// stale lock.
const LockTimeout = 100 * time.Millisecond

// FileStore keeps sessions for every origin in one JSON file:
//
//	{"http://localhost:8080": {"accessToken": "...", "refreshToken": "..."}}
type FileStore struct {
	dir    string
	origin string
}

// NewFileStore creates a file-backed store for origin under dir.
func NewFileStore(dir, origin string) *FileStore {
	return &FileStore{dir: dir, origin: origin}
}

// Path returns the session file path.
func (s *FileStore) Path() string {
	return filepath.Join(s.dir, sessionFileName)
}

func (s *FileStore) lockPath() string {
	return filepath.Join(s.dir, ".session.lock")
}

// Get returns the value stored under key. Writes replace the file atomically,
// so reads take no lock.
func (s *FileStore) Get(key string) (string, bool, error) {
	all, err := s.loadAll()
	if err != nil {
		return "", false, err
	}
	v, ok := all[s.origin][key]
	return v, ok, nil
}

// Set stores value under key.
func (s *FileStore) Set(key, value string) error {
	return s.update(func(entries map[string]string) {
		entries[key] = value
	})
}

// Remove deletes keys in a single write.
func (s *FileStore) Remove(keys ...string) error {
	return s.update(func(entries map[string]string) {
		for _, k := range keys {
			delete(entries, k)
		}
	})
}

func (s *FileStore) update(mutate func(map[string]string)) error {
	lock, err := s.acquireLock()
	if err != nil {
		return fmt.Errorf("locking session file: %w", err)
	}
	defer func() { _ = lock.release() }()

	all, err := s.loadAll()
	if err != nil {
		return err
	}
	entries := all[s.origin]
	if entries == nil {
		entries = make(map[string]string)
	}
	mutate(entries)
	if len(entries) == 0 {
		delete(all, s.origin)
	} else {
		all[s.origin] = entries
	}
	return s.saveAll(all)
}

func (s *FileStore) loadAll() (map[string]map[string]string, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return make(map[string]map[string]string), nil
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var all map[string]map[string]string
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, fmt.Errorf("parsing session file %s: %w", s.Path(), err)
	}
	if all == nil {
		all = make(map[string]map[string]string)
	}
	return all, nil
}

func (s *FileStore) saveAll(all map[string]map[string]string) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	tmpFile, err := os.CreateTemp(s.dir, "session-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Windows refuses to rename over an existing file.
	dest := s.Path()
	if err := os.Rename(tmpPath, dest); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(dest)
			return os.Rename(tmpPath, dest)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

type fileLock struct {
	flock *flock.Flock
}

// acquireLock returns a nil lock (and no error) when the timeout expires.
func (s *FileStore) acquireLock() (*fileLock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())
	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}
	return &fileLock{flock: fl}, nil
}

func (fl *fileLock) release() error {
	if fl == nil || fl.flock == nil {
		return nil
	}
	return fl.flock.Unlock()
}
