// Package completion provides tab completion support for the staybook CLI.
// It keeps a small file cache of rooms and hotels so shell completions work
// without an API call.
package completion

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/staybook/staybook-cli/internal/hotel"
)

// CachedRoom holds room data for tab completion.
type CachedRoom struct {
	ID        int64    `json:"id"`
	RoomType  string   `json:"room_type"`
	HotelID   int64    `json:"hotel_id,omitempty"`
	HotelName string   `json:"hotel_name,omitempty"`
	Price     *float64 `json:"price,omitempty"`
}

// CachedHotel holds hotel data for tab completion.
type CachedHotel struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	City string `json:"city,omitempty"`
}

// Cache stores completion data with per-section timestamps.
type Cache struct {
	Rooms           []CachedRoom  `json:"rooms,omitempty"`
	Hotels          []CachedHotel `json:"hotels,omitempty"`
	RoomsUpdatedAt  time.Time     `json:"rooms_updated_at,omitempty"`
	HotelsUpdatedAt time.Time     `json:"hotels_updated_at,omitempty"`
	Version         int           `json:"version"`
}

const (
	// CacheVersion is the current cache schema version.
	CacheVersion = 1

	// DefaultMaxAge is the default cache staleness threshold.
	DefaultMaxAge = time.Hour

	// CacheFileName is the cache file name.
	CacheFileName = "completion.json"
)

// Store handles reading and writing the completion cache.
type Store struct {
	dir string
	mu  sync.RWMutex
}

// NewStore creates a new cache store.
// If dir is empty, it uses the default location (~/.cache/staybook/).
func NewStore(dir string) *Store {
	if dir == "" {
		dir = DefaultCacheDir()
	}
	return &Store{dir: dir}
}

// DefaultCacheDir returns $STAYBOOK_CACHE_DIR, or staybook under the XDG
// cache directory.
func DefaultCacheDir() string {
	if v := os.Getenv("STAYBOOK_CACHE_DIR"); v != "" {
		return v
	}
	cacheDir := os.Getenv("XDG_CACHE_HOME")
	if cacheDir == "" {
		home, _ := os.UserHomeDir()
		cacheDir = filepath.Join(home, ".cache")
	}
	return filepath.Join(cacheDir, "staybook")
}

// Dir returns the cache directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the cache file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, CacheFileName)
}

// Load reads the cache from disk.
// Returns an empty cache if the file doesn't exist or is invalid.
func (s *Store) Load() (*Cache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loadUnsafe()
}

func (s *Store) loadUnsafe() (*Cache, error) {
	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return &Cache{Version: CacheVersion}, nil
		}
		return nil, err
	}

	var cache Cache
	if err := json.Unmarshal(data, &cache); err != nil {
		return &Cache{Version: CacheVersion}, nil //nolint:nilerr // a corrupt cache is rebuilt
	}
	return &cache, nil
}

// saveUnsafe writes the cache atomically. The caller holds the lock and
// sets the timestamps.
func (s *Store) saveUnsafe(cache *Cache) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	cache.Version = CacheVersion

	data, err := json.MarshalIndent(cache, "", "  ")
	if err != nil {
		return err
	}

	tmpPath := s.Path() + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmpPath, s.Path())
}

// update loads the cache, applies fn and writes it back.
func (s *Store) update(fn func(*Cache)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache, err := s.loadUnsafe()
	if err != nil {
		cache = &Cache{Version: CacheVersion}
	}
	fn(cache)
	return s.saveUnsafe(cache)
}

// UpdateRooms replaces the cached rooms. Only RoomsUpdatedAt changes.
func (s *Store) UpdateRooms(rooms []CachedRoom) error {
	return s.update(func(c *Cache) {
		c.Rooms = rooms
		c.RoomsUpdatedAt = time.Now()
	})
}

// UpdateHotels replaces the cached hotels. Only HotelsUpdatedAt changes.
func (s *Store) UpdateHotels(hotels []CachedHotel) error {
	return s.update(func(c *Cache) {
		c.Hotels = hotels
		c.HotelsUpdatedAt = time.Now()
	})
}

// IsStale reports whether either section is missing or older than maxAge.
func (s *Store) IsStale(maxAge time.Duration) bool {
	cache, err := s.Load()
	if err != nil {
		return true
	}
	if cache.RoomsUpdatedAt.IsZero() || cache.HotelsUpdatedAt.IsZero() {
		return true
	}
	oldest := cache.RoomsUpdatedAt
	if cache.HotelsUpdatedAt.Before(oldest) {
		oldest = cache.HotelsUpdatedAt
	}
	return time.Since(oldest) > maxAge
}

// Clear removes the cache file.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Rooms returns cached rooms, or nil if the cache is empty.
func (s *Store) Rooms() []CachedRoom {
	cache, err := s.Load()
	if err != nil {
		return nil
	}
	return cache.Rooms
}

// Hotels returns cached hotels, or nil if the cache is empty.
func (s *Store) Hotels() []CachedHotel {
	cache, err := s.Load()
	if err != nil {
		return nil
	}
	return cache.Hotels
}

// RoomsFrom converts API rooms to cache entries.
func RoomsFrom(rooms []hotel.Room) []CachedRoom {
	out := make([]CachedRoom, len(rooms))
	for i, r := range rooms {
		out[i] = CachedRoom{
			ID:        r.ID,
			RoomType:  r.RoomType,
			HotelID:   r.HotelID,
			HotelName: r.HotelName,
			Price:     r.Price,
		}
	}
	return out
}

// HotelsFrom converts API hotels to cache entries.
func HotelsFrom(hotels []hotel.Hotel) []CachedHotel {
	out := make([]CachedHotel, len(hotels))
	for i, h := range hotels {
		out[i] = CachedHotel{ID: h.ID, Name: h.Name, City: h.City}
	}
	return out
}

// Profiles returns the profile names configured in the system and global
// config files. Local config files cannot define profiles.
func Profiles() []string {
	paths := []string{"/etc/staybook/config.json"}
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		if home, err := os.UserHomeDir(); err == nil && home != "" {
			configDir = filepath.Join(home, ".config")
		}
	}
	if configDir != "" {
		paths = append(paths, filepath.Join(configDir, "staybook", "config.json"))
	}

	seen := make(map[string]bool)
	var names []string
	for _, path := range paths {
		data, err := os.ReadFile(path) //nolint:gosec // G304: Path is from trusted config locations
		if err != nil {
			continue
		}
		var fileCfg struct {
			Profiles map[string]json.RawMessage `json:"profiles"`
		}
		if err := json.Unmarshal(data, &fileCfg); err != nil {
			continue
		}
		for name := range fileCfg.Profiles {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	return names
}
