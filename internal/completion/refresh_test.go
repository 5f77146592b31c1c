package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staybook/staybook-cli/internal/hotel"
)

type fakeRooms struct {
	rooms []hotel.Room
	err   error
}

func (f fakeRooms) List(context.Context) ([]hotel.Room, error) { return f.rooms, f.err }

type fakeHotels struct {
	hotels []hotel.Hotel
	err    error
}

func (f fakeHotels) List(context.Context) ([]hotel.Hotel, error) { return f.hotels, f.err }

func TestRefreshAll(t *testing.T) {
	store := NewStore(t.TempDir())
	r := NewRefresher(store,
		fakeRooms{rooms: []hotel.Room{{ID: 1, RoomType: "Deluxe"}, {ID: 2, RoomType: "Suite"}}},
		fakeHotels{hotels: []hotel.Hotel{{ID: 7, Name: "Sea Breeze"}}},
	)

	result := r.RefreshAll(context.Background())
	require.False(t, result.HasError())
	require.NoError(t, result.Error())
	assert.Equal(t, 2, result.RoomsCount)
	assert.Equal(t, 1, result.HotelsCount)
	assert.Len(t, store.Rooms(), 2)
	assert.False(t, store.IsStale(time.Hour))
}

func TestRefreshAllPartialFailureKeepsCache(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.UpdateHotels([]CachedHotel{{ID: 7, Name: "Sea Breeze"}}))

	r := NewRefresher(store,
		fakeRooms{rooms: []hotel.Room{{ID: 1}}},
		fakeHotels{err: errors.New("down")},
	)
	result := r.RefreshAll(context.Background())

	assert.True(t, result.HasError())
	assert.ErrorContains(t, result.Error(), "hotels: down")
	assert.NotContains(t, result.Error().Error(), "rooms")
	assert.Equal(t, 1, result.RoomsCount)
	assert.Equal(t, []CachedHotel{{ID: 7, Name: "Sea Breeze"}}, store.Hotels(), "failed section keeps old data")
}

func TestRefreshIfStaleSkipsFreshCache(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.UpdateRooms(nil))
	require.NoError(t, store.UpdateHotels(nil))

	r := NewRefresher(store, fakeRooms{err: errors.New("must not be called")}, fakeHotels{})
	<-r.RefreshIfStale(time.Hour)
	assert.False(t, r.IsRefreshing())
}

func TestRefreshIfStaleRefreshes(t *testing.T) {
	store := NewStore(t.TempDir())
	r := NewRefresher(store, fakeRooms{rooms: []hotel.Room{{ID: 5}}}, fakeHotels{hotels: []hotel.Hotel{{ID: 6}}})

	select {
	case <-r.RefreshIfStale(time.Hour):
	case <-time.After(5 * time.Second):
		t.Fatal("refresh did not finish")
	}
	assert.False(t, r.IsRefreshing())
	assert.Len(t, store.Rooms(), 1)
	assert.Len(t, store.Hotels(), 1)
}
