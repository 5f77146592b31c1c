// Package hotel provides typed access to the hotel-booking API.
//
// Each service method issues one call through the authenticated API client
// and unwraps the response envelope:
//
//	c := hotel.NewClient(apiClient, sessions)
//	upcoming, err := c.Bookings().Upcoming(ctx)
package hotel

import (
	"context"
	"strconv"
	"time"

	"github.com/staybook/staybook-cli/internal/api"
	"github.com/staybook/staybook-cli/internal/observability"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
)

// Client groups the domain services.
type Client struct {
	api      *api.Client
	sessions session.Provider
	hooks    observability.Hooks

	auth     *AuthService
	rooms    *RoomsService
	hotels   *HotelsService
	bookings *BookingsService
	reviews  *ReviewsService
}

// NewClient wraps apiClient. sessions receives the session created by
// login; it is normally the same provider the API client reads from.
func NewClient(apiClient *api.Client, sessions session.Provider) *Client {
	c := &Client{
		api:      apiClient,
		sessions: sessions,
		hooks:    apiClient.Hooks(),
	}
	c.auth = &AuthService{client: c}
	c.rooms = &RoomsService{client: c}
	c.hotels = &HotelsService{client: c}
	c.bookings = &BookingsService{client: c}
	c.reviews = &ReviewsService{client: c}
	return c
}

// API returns the underlying API client.
func (c *Client) API() *api.Client { return c.api }

func (c *Client) Auth() *AuthService         { return c.auth }
func (c *Client) Rooms() *RoomsService       { return c.rooms }
func (c *Client) Hotels() *HotelsService     { return c.hotels }
func (c *Client) Bookings() *BookingsService { return c.bookings }
func (c *Client) Reviews() *ReviewsService   { return c.reviews }

// operation reports fn to the hooks as one domain operation.
func (c *Client) operation(ctx context.Context, op observability.OperationInfo, fn func(context.Context) error) error {
	ctx = c.hooks.OnOperationStart(ctx, op)
	start := time.Now()
	err := fn(ctx)
	c.hooks.OnOperationEnd(ctx, op, err, time.Since(start))
	return err
}

// invoke sends req as one operation and unwraps the envelope. It returns
// the data and the server message.
func invoke[T any](ctx context.Context, c *Client, op observability.OperationInfo, req *api.Request) (T, string, error) {
	var (
		out T
		msg string
	)
	err := c.operation(ctx, op, func(ctx context.Context) error {
		resp, err := c.api.Do(ctx, req)
		if err != nil {
			return err
		}
		if out, err = api.Decode[T](resp); err != nil {
			return err
		}
		msg = api.Message(resp)
		return nil
	})
	return out, msg, err
}

func read(service, operation string, id int64) observability.OperationInfo {
	return observability.OperationInfo{Service: service, Operation: operation, ResourceID: id}
}

func write(service, operation string, id int64) observability.OperationInfo {
	return observability.OperationInfo{Service: service, Operation: operation, ResourceID: id, IsMutation: true}
}

// orEmpty keeps list results non-nil so they render as [] rather than null.
func orEmpty[T any](list []T) []T {
	if list == nil {
		return []T{}
	}
	return list
}

// found reports a successful response without data as a missing resource.
func found[T any](v *T, err error, resource string, id int64) (*T, error) {
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, output.ErrNotFound(resource, strconv.FormatInt(id, 10))
	}
	return v, nil
}
