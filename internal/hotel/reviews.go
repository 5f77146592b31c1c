package hotel

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/staybook/staybook-cli/internal/api"
	"github.com/staybook/staybook-cli/internal/output"
)

// ReviewsService reads and writes room reviews. Reading a room's reviews
// is public; writing and Mine require a session.
type ReviewsService struct {
	client *Client
}

// Create reviews a room.
func (s *ReviewsService) Create(ctx context.Context, r ReviewRequest) (*Review, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rv, _, err := invoke[*Review](ctx, s.client, write("Reviews", "Create", r.RoomID),
		&api.Request{Method: http.MethodPost, Path: "reviews", Body: r})
	return rv, err
}

// Update replaces the rating and comment of an existing review.
func (s *ReviewsService) Update(ctx context.Context, id int64, r ReviewRequest) (*Review, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	rv, _, err := invoke[*Review](ctx, s.client, write("Reviews", "Update", id),
		&api.Request{Method: http.MethodPut, Path: fmt.Sprintf("reviews/%d", id), Body: r})
	return rv, err
}

// ListByRoom returns the reviews of a room.
func (s *ReviewsService) ListByRoom(ctx context.Context, roomID int64) ([]Review, error) {
	reviews, _, err := invoke[[]Review](ctx, s.client, read("Reviews", "ListByRoom", roomID),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("reviews/room/%d", roomID)})
	return orEmpty(reviews), err
}

// Get returns one review.
func (s *ReviewsService) Get(ctx context.Context, id int64) (*Review, error) {
	rv, _, err := invoke[*Review](ctx, s.client, read("Reviews", "Get", id),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("reviews/%d", id)})
	return found(rv, err, "Review", id)
}

// Mine returns the user's review of a room, or nil when there is none.
func (s *ReviewsService) Mine(ctx context.Context, roomID int64) (*Review, error) {
	rv, _, err := invoke[*Review](ctx, s.client, read("Reviews", "Mine", roomID),
		&api.Request{Method: http.MethodGet, Path: fmt.Sprintf("reviews/room/%d/my-review", roomID)})
	var e *output.Error
	if errors.As(err, &e) && e.Code == output.CodeNotFound {
		return nil, nil
	}
	return rv, err
}
