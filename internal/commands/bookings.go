package commands

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/format"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/tui"
)

// NewBookingsCmd creates the bookings command group.
func NewBookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "bookings",
		Aliases: []string{"booking"},
		Short:   "Book and manage stays",
		Long: `Book rooms and manage your reservations.

Dates accept YYYY-MM-DD, DD/MM/YYYY and shortcuts such as today,
tomorrow, friday, next week and +3.`,
	}

	cmd.AddCommand(
		newBookingsCreateCmd(),
		newBookingsListCmd("upcoming", "List upcoming stays", (*hotel.BookingsService).Upcoming),
		newBookingsListCmd("past", "List past stays", (*hotel.BookingsService).Past),
		newBookingsListCmd("list", "List all bookings", (*hotel.BookingsService).List),
		newBookingsShowCmd(),
		newBookingsCancelCmd(),
	)

	return cmd
}

func newBookingsCreateCmd() *cobra.Command {
	var room string
	var stay stayFlags

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Book a room",
		Example: `  staybook bookings create --room 12 --check-in 2026-12-24 --nights 3
  staybook bookings create --room 12 --check-in friday --check-out +2 --adults 2 --children 1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if room == "" {
				return output.ErrUsage("--room is required")
			}
			roomID, err := parseID(room, "room")
			if err != nil {
				return err
			}
			checkIn, checkOut, err := stay.dates()
			if err != nil {
				return err
			}

			booking, err := app.Hotel.Bookings().Create(cmd.Context(), hotel.BookingRequest{
				RoomID:        roomID,
				CheckIn:       checkIn,
				CheckOut:      checkOut,
				AdultsCount:   stay.adults,
				ChildrenCount: stay.children,
				InfantsCount:  stay.infants,
			})
			if err != nil {
				return err
			}
			if booking == nil {
				return app.OK(map[string]any{"roomId": roomID, "checkIn": checkIn, "checkOut": checkOut},
					output.WithSummary("Booked "+app.Locale.Stay(checkIn, checkOut)),
					output.WithBreadcrumbs(crumb("upcoming", "staybook bookings upcoming", "Your upcoming stays")),
				)
			}

			id := strconv.FormatInt(booking.ID, 10)
			return app.OK(booking,
				output.WithSummary("Booked "+bookingSummary(app.Locale, *booking)),
				output.WithBreadcrumbs(
					crumb("show", "staybook bookings show "+id, "Show the booking"),
					crumb("cancel", "staybook bookings cancel "+id, "Cancel the booking"),
				),
			)
		},
	}

	cmd.Flags().StringVar(&room, "room", "", "Room ID")
	_ = cmd.RegisterFlagCompletionFunc("room", completer.RoomFlagCompletion())
	stay.register(cmd.Flags())

	return cmd
}

type bookingLister func(*hotel.BookingsService, context.Context) ([]hotel.Booking, error)

func newBookingsListCmd(use, short string, list bookingLister) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			bookings, err := list(app.Hotel.Bookings(), cmd.Context())
			if err != nil {
				return err
			}
			return app.OK(bookings,
				output.WithSummary(bookingsTotal(app, bookings)),
				output.WithBreadcrumbs(crumb("show", "staybook bookings show <id>", "Show a booking")),
			)
		},
	}
}

// bookingsTotal summarizes a list as "2 bookings, 4 nights, ₫3,600,000".
func bookingsTotal(app *appctx.App, bookings []hotel.Booking) string {
	s := countSummary(len(bookings), "booking", "bookings")
	if len(bookings) == 0 {
		return s
	}
	var nights int
	var total float64
	for _, b := range bookings {
		if b.Status == hotel.BookingCancelled {
			continue
		}
		nights += b.Nights()
		total += b.TotalPrice
	}
	if nights > 0 {
		s += ", " + format.Plural(nights, "night") + ", " + app.Locale.FormatPrice(total, format.DefaultCurrency)
	}
	return s
}

func bookingSummary(l format.Locale, b hotel.Booking) string {
	s := b.RoomType
	if b.HotelName != "" {
		s += " at " + b.HotelName
	}
	s += ", " + l.Stay(b.CheckIn, b.CheckOut)
	s += ", " + format.Guests(b.AdultsCount, b.ChildrenCount, b.InfantsCount)
	if b.TotalPrice > 0 {
		s += ", " + l.FormatPrice(b.TotalPrice, format.DefaultCurrency)
	}
	return s
}

func newBookingsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "booking")
			if err != nil {
				return err
			}
			booking, err := app.Hotel.Bookings().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			var crumbs []output.Breadcrumb
			if booking.Cancellable() {
				crumbs = append(crumbs, crumb("cancel", "staybook bookings cancel "+args[0], "Cancel the booking"))
			}
			crumbs = append(crumbs, crumb("review", fmt.Sprintf("staybook reviews create --room %d", booking.RoomID), "Review the room"))

			return app.OK(booking,
				output.WithSummary(fmt.Sprintf("%s: %s", booking.Status, bookingSummary(app.Locale, *booking))),
				output.WithBreadcrumbs(crumbs...),
			)
		},
	}
}

func newBookingsCancelCmd() *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a booking",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "booking")
			if err != nil {
				return err
			}

			if !yes {
				if !app.IsInteractive() {
					return output.ErrUsageHint("Cancelling requires confirmation", "Add --yes to cancel without a prompt")
				}
				ok, err := tui.ConfirmDangerous(fmt.Sprintf("Cancel booking %d?", id))
				if err != nil {
					return err
				}
				if !ok {
					return app.OK(map[string]any{"bookingId": id, "status": "kept"}, output.WithSummary("Booking kept"))
				}
			}

			booking, err := app.Hotel.Bookings().Cancel(cmd.Context(), id)
			if err != nil {
				return err
			}
			var data any = booking
			if booking == nil {
				data = map[string]any{"bookingId": id, "status": hotel.BookingCancelled}
			}
			return app.OK(data,
				output.WithSummary(fmt.Sprintf("Cancelled booking %d", id)),
				output.WithBreadcrumbs(crumb("upcoming", "staybook bookings upcoming", "Your upcoming stays")),
			)
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Cancel without confirmation")

	return cmd
}
