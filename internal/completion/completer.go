package completion

import (
	"cmp"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// CacheDirFunc returns the cache directory to use for completion.
type CacheDirFunc func(cmd *cobra.Command) string

// DefaultCacheDirFunc resolves the cache directory from the environment.
// During __complete the app is not built, so config files are not read.
func DefaultCacheDirFunc(*cobra.Command) string {
	return DefaultCacheDir()
}

// Completer provides tab completion functions backed by the file cache.
// It never builds the App or calls the API.
type Completer struct {
	getCacheDir CacheDirFunc
}

// NewCompleter creates a new Completer. If getCacheDir is nil,
// DefaultCacheDirFunc is used.
func NewCompleter(getCacheDir CacheDirFunc) *Completer {
	if getCacheDir == nil {
		getCacheDir = DefaultCacheDirFunc
	}
	return &Completer{getCacheDir: getCacheDir}
}

func (c *Completer) store(cmd *cobra.Command) *Store {
	return NewStore(c.getCacheDir(cmd))
}

// matches reports whether any of fields contains the lowercased prefix, or
// id starts with it.
func matches(toComplete string, id int64, fields ...string) bool {
	q := strings.ToLower(toComplete)
	if q == "" || strings.HasPrefix(strconv.FormatInt(id, 10), q) {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}
	return false
}

// RoomCompletion completes room IDs, described by type and hotel.
// Only the first positional argument is completed.
func (c *Completer) RoomCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return c.rooms(cmd, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

// RoomFlagCompletion completes room IDs for a --room flag.
func (c *Completer) RoomFlagCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		return c.rooms(cmd, toComplete), cobra.ShellCompDirectiveNoFileComp
	}
}

func (c *Completer) rooms(cmd *cobra.Command, toComplete string) []cobra.Completion {
	var completions []cobra.Completion
	for _, r := range rankRooms(c.store(cmd).Rooms()) {
		if !matches(toComplete, r.ID, r.RoomType, r.HotelName) {
			continue
		}
		desc := r.RoomType
		if r.HotelName != "" {
			desc += " at " + r.HotelName
		}
		completions = append(completions, cobra.CompletionWithDesc(strconv.FormatInt(r.ID, 10), desc))
	}
	return completions
}

// HotelCompletion completes hotel IDs, described by name and city.
func (c *Completer) HotelCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		hotels := slices.Clone(c.store(cmd).Hotels())
		slices.SortFunc(hotels, func(a, b CachedHotel) int {
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		})

		var completions []cobra.Completion
		for _, h := range hotels {
			if !matches(toComplete, h.ID, h.Name, h.City) {
				continue
			}
			desc := h.Name
			if h.City != "" {
				desc += ", " + h.City
			}
			completions = append(completions, cobra.CompletionWithDesc(strconv.FormatInt(h.ID, 10), desc))
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// CityCompletion completes city names seen in the hotel cache.
func (c *Completer) CityCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		q := strings.ToLower(toComplete)
		seen := make(map[string]bool)
		var cities []string
		for _, h := range c.store(cmd).Hotels() {
			if h.City == "" || seen[h.City] || !strings.HasPrefix(strings.ToLower(h.City), q) {
				continue
			}
			seen[h.City] = true
			cities = append(cities, h.City)
		}
		slices.Sort(cities)

		completions := make([]cobra.Completion, len(cities))
		for i, city := range cities {
			completions[i] = cobra.Completion(city)
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// ProfileCompletion completes --profile from the configured profiles.
func (c *Completer) ProfileCompletion() cobra.CompletionFunc {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		names := Profiles()
		slices.Sort(names)
		var completions []cobra.Completion
		for _, name := range names {
			if strings.HasPrefix(name, toComplete) {
				completions = append(completions, cobra.Completion(name))
			}
		}
		return completions, cobra.ShellCompDirectiveNoFileComp
	}
}

// rankRooms orders rooms by hotel name, then room type, then ID.
func rankRooms(rooms []CachedRoom) []CachedRoom {
	ranked := slices.Clone(rooms)
	slices.SortFunc(ranked, func(a, b CachedRoom) int {
		return cmp.Or(
			cmp.Compare(strings.ToLower(a.HotelName), strings.ToLower(b.HotelName)),
			cmp.Compare(strings.ToLower(a.RoomType), strings.ToLower(b.RoomType)),
			cmp.Compare(a.ID, b.ID),
		)
	})
	return ranked
}
