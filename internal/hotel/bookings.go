package hotel

import (
	"context"
	"fmt"
	"net/http"

	"github.com/staybook/staybook-cli/internal/api"
)

// BookingsService manages the signed-in user's bookings. Every endpoint
// requires a session.
type BookingsService struct {
	client *Client
}

// Create books a room.
func (s *BookingsService) Create(ctx context.Context, r BookingRequest) (*Booking, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	b, _, err := invoke[*Booking](ctx, s.client, write("Bookings", "Create", r.RoomID),
		&api.Request{Method: http.MethodPost, Path: "bookings", Body: r})
	return b, err
}

// Upcoming returns bookings whose stay has not ended.
func (s *BookingsService) Upcoming(ctx context.Context) ([]Booking, error) {
	return s.list(ctx, "Upcoming", "bookings/upcoming")
}

// Past returns bookings whose stay has ended.
func (s *BookingsService) Past(ctx context.Context) ([]Booking, error) {
	return s.list(ctx, "Past", "bookings/past")
}

// List returns all of the user's bookings.
func (s *BookingsService) List(ctx context.Context) ([]Booking, error) {
	return s.list(ctx, "List", "bookings")
}

func (s *BookingsService) list(ctx context.Context, operation, path string) ([]Booking, error) {
	bookings, _, err := invoke[[]Booking](ctx, s.client, read("Bookings", operation, 0),
		&api.Request{Method: http.MethodGet, Path: path})
	return orEmpty(bookings), err
}

// Get returns one booking.
func (s *BookingsService) Get(ctx context.Context, id int64) (*Booking, error) {
	b, _, err := invoke[*Booking](ctx, s.client, read("Bookings", "Get", id),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("bookings/%d", id)})
	return found(b, err, "Booking", id)
}

// Cancel cancels a booking and returns its new state.
func (s *BookingsService) Cancel(ctx context.Context, id int64) (*Booking, error) {
	b, _, err := invoke[*Booking](ctx, s.client, write("Bookings", "Cancel", id),
		&api.Request{Method: http.MethodPut, Path: fmt.Sprintf("bookings/%d/cancel", id)})
	return b, err
}
