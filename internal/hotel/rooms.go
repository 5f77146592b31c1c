package hotel

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/staybook/staybook-cli/internal/api"
)

// RoomsService browses rooms. All endpoints are public.
type RoomsService struct {
	client *Client
}

// List returns every room.
func (s *RoomsService) List(ctx context.Context) ([]Room, error) {
	rooms, _, err := invoke[[]Room](ctx, s.client, read("Rooms", "List", 0),
		&api.Request{Method: http.MethodGet, Path: "rooms"})
	return orEmpty(rooms), err
}

// Search matches keyword against room type and hotel. An empty keyword
// returns every room.
func (s *RoomsService) Search(ctx context.Context, keyword string) ([]Room, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	rooms, _, err := invoke[[]Room](ctx, s.client, read("Rooms", "Search", 0),
		&api.Request{Method: http.MethodGet, Path: "rooms/search", Query: q})
	return orEmpty(rooms), err
}

// Get returns one room.
func (s *RoomsService) Get(ctx context.Context, id int64) (*Room, error) {
	room, _, err := invoke[*Room](ctx, s.client, read("Rooms", "Get", id),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("rooms/%d", id)})
	return found(room, err, "Room", id)
}

// ListByHotel returns the rooms of one hotel.
func (s *RoomsService) ListByHotel(ctx context.Context, hotelID int64) ([]Room, error) {
	rooms, _, err := invoke[[]Room](ctx, s.client, read("Rooms", "ListByHotel", hotelID),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("rooms/hotel/%d", hotelID)})
	return orEmpty(rooms), err
}

// HotelsService browses hotels. All endpoints are public.
type HotelsService struct {
	client *Client
}

// List returns every hotel.
func (s *HotelsService) List(ctx context.Context) ([]Hotel, error) {
	hotels, _, err := invoke[[]Hotel](ctx, s.client, read("Hotels", "List", 0),
		&api.Request{Method: http.MethodGet, Path: "hotels"})
	return orEmpty(hotels), err
}

// Search filters hotels by keyword and city. Empty filters are omitted.
func (s *HotelsService) Search(ctx context.Context, keyword, city string) ([]Hotel, error) {
	q := url.Values{}
	if keyword != "" {
		q.Set("keyword", keyword)
	}
	if city != "" {
		q.Set("city", city)
	}
	hotels, _, err := invoke[[]Hotel](ctx, s.client, read("Hotels", "Search", 0),
		&api.Request{Method: http.MethodGet, Path: "hotels/search", Query: q})
	return orEmpty(hotels), err
}

// Get returns one hotel.
func (s *HotelsService) Get(ctx context.Context, id int64) (*Hotel, error) {
	h, _, err := invoke[*Hotel](ctx, s.client, read("Hotels", "Get", id),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("hotels/%d", id)})
	return found(h, err, "Hotel", id)
}
