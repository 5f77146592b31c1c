package completion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/staybook/staybook-cli/internal/hotel"
)

// RoomLister lists rooms. *hotel.RoomsService satisfies it.
type RoomLister interface {
	List(ctx context.Context) ([]hotel.Room, error)
}

// HotelLister lists hotels. *hotel.HotelsService satisfies it.
type HotelLister interface {
	List(ctx context.Context) ([]hotel.Hotel, error)
}

// RefreshResult contains the outcome of a refresh operation.
type RefreshResult struct {
	RoomsCount  int
	HotelsCount int
	RoomsErr    error
	HotelsErr   error
}

// HasError returns true if any refresh operation failed.
func (r RefreshResult) HasError() bool {
	return r.RoomsErr != nil || r.HotelsErr != nil
}

// Error returns the combined error, or nil.
func (r RefreshResult) Error() error {
	var errs []error
	if r.RoomsErr != nil {
		errs = append(errs, fmt.Errorf("rooms: %w", r.RoomsErr))
	}
	if r.HotelsErr != nil {
		errs = append(errs, fmt.Errorf("hotels: %w", r.HotelsErr))
	}
	return errors.Join(errs...)
}

// Refresher fetches rooms and hotels into the cache.
type Refresher struct {
	store  *Store
	rooms  RoomLister
	hotels HotelLister

	mu         sync.Mutex
	refreshing bool
}

// NewRefresher creates a new cache refresher.
func NewRefresher(store *Store, rooms RoomLister, hotels HotelLister) *Refresher {
	return &Refresher{store: store, rooms: rooms, hotels: hotels}
}

// RefreshIfStale refreshes in the background when the cache is stale and
// no refresh is running. The returned channel closes when it is done.
func (r *Refresher) RefreshIfStale(maxAge time.Duration) <-chan struct{} {
	done := make(chan struct{})
	if !r.store.IsStale(maxAge) || !r.begin() {
		close(done)
		return done
	}

	go func() {
		defer close(done)
		defer r.end()

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		r.RefreshAll(ctx) // best effort
	}()
	return done
}

func (r *Refresher) begin() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.refreshing {
		return false
	}
	r.refreshing = true
	return true
}

func (r *Refresher) end() {
	r.mu.Lock()
	r.refreshing = false
	r.mu.Unlock()
}

// RefreshAll fetches rooms and hotels in parallel. A failed section keeps
// its previously cached data.
func (r *Refresher) RefreshAll(ctx context.Context) RefreshResult {
	var result RefreshResult
	var rooms []hotel.Room
	var hotels []hotel.Hotel

	var wg sync.WaitGroup
	wg.Go(func() { rooms, result.RoomsErr = r.rooms.List(ctx) })
	wg.Go(func() { hotels, result.HotelsErr = r.hotels.List(ctx) })
	wg.Wait()

	if result.RoomsErr == nil {
		if err := r.store.UpdateRooms(RoomsFrom(rooms)); err != nil {
			result.RoomsErr = err
		} else {
			result.RoomsCount = len(rooms)
		}
	}
	if result.HotelsErr == nil {
		if err := r.store.UpdateHotels(HotelsFrom(hotels)); err != nil {
			result.HotelsErr = err
		} else {
			result.HotelsCount = len(hotels)
		}
	}
	return result
}

// IsRefreshing returns true if a background refresh is in progress.
func (r *Refresher) IsRefreshing() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.refreshing
}
