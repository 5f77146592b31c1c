package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/format"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/output"
)

// NewRoomsCmd creates the rooms command group.
func NewRoomsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rooms",
		Aliases: []string{"room"},
		Short:   "Browse rooms",
		Long:    "List, search and inspect bookable rooms.",
	}

	cmd.AddCommand(
		newRoomsListCmd(),
		newRoomsSearchCmd(),
		newRoomsShowCmd(),
		newRoomsHotelCmd(),
	)

	return cmd
}

func newRoomsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all rooms",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			rooms, err := app.Hotel.Rooms().List(cmd.Context())
			if err != nil {
				return err
			}
			cacheRooms(rooms)
			return app.OK(rooms,
				output.WithSummary(countSummary(len(rooms), "room", "rooms")),
				output.WithBreadcrumbs(roomListCrumbs(rooms)...),
			)
		},
	}
}

func newRoomsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <keyword>",
		Short: "Search rooms by keyword",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			rooms, err := app.Hotel.Rooms().Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return app.OK(rooms,
				output.WithSummary(fmt.Sprintf("%s matching %q", countSummary(len(rooms), "room", "rooms"), args[0])),
				output.WithBreadcrumbs(roomListCrumbs(rooms)...),
			)
		},
	}
}

func newRoomsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Show a room",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completer.RoomCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "room")
			if err != nil {
				return err
			}
			room, err := app.Hotel.Rooms().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			rid := strconv.FormatInt(room.ID, 10)
			return app.OK(room,
				output.WithSummary(roomSummary(app.Locale, *room)),
				output.WithBreadcrumbs(
					crumb("book", "staybook bookings create --room "+rid+" --check-in <date> --nights <n>", "Book this room"),
					crumb("reviews", "staybook reviews room "+rid, "Read reviews"),
					crumb("hotel", "staybook hotels show "+strconv.FormatInt(room.HotelID, 10), "Show the hotel"),
				),
			)
		},
	}
}

func newRoomsHotelCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "hotel <hotel-id>",
		Short:             "List the rooms of a hotel",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completer.HotelCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "hotel")
			if err != nil {
				return err
			}
			rooms, err := app.Hotel.Rooms().ListByHotel(cmd.Context(), id)
			if err != nil {
				return err
			}
			return app.OK(rooms,
				output.WithSummary(countSummary(len(rooms), "room", "rooms")),
				output.WithBreadcrumbs(roomListCrumbs(rooms)...),
			)
		},
	}
}

func roomListCrumbs(rooms []hotel.Room) []output.Breadcrumb {
	if len(rooms) == 0 {
		return []output.Breadcrumb{crumb("list", "staybook rooms list", "List all rooms")}
	}
	return []output.Breadcrumb{
		crumb("show", "staybook rooms show <id>", "Show a room"),
		crumb("book", "staybook bookings create --room <id> --check-in <date> --nights <n>", "Book a room"),
	}
}

func roomSummary(l format.Locale, r hotel.Room) string {
	s := r.RoomType
	if r.HotelName != "" {
		s += " at " + r.HotelName
	}
	if r.Price != nil {
		s += ", " + l.FormatPrice(*r.Price, format.DefaultCurrency) + " per night"
	}
	if r.Capacity > 0 {
		s += ", sleeps " + strconv.Itoa(r.Capacity)
	}
	if r.Rating != nil && r.ReviewCount != nil && *r.ReviewCount > 0 {
		s += fmt.Sprintf(", rated %.1f (%s)", *r.Rating, format.Plural(*r.ReviewCount, "review"))
	}
	return s
}

// NewHotelsCmd creates the hotels command group.
func NewHotelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "hotels",
		Aliases: []string{"hotel"},
		Short:   "Browse hotels",
	}

	cmd.AddCommand(
		newHotelsListCmd(),
		newHotelsSearchCmd(),
		newHotelsShowCmd(),
	)

	return cmd
}

func newHotelsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all hotels",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			hotels, err := app.Hotel.Hotels().List(cmd.Context())
			if err != nil {
				return err
			}
			cacheHotels(hotels)
			return app.OK(hotels,
				output.WithSummary(countSummary(len(hotels), "hotel", "hotels")),
				output.WithBreadcrumbs(crumb("rooms", "staybook rooms hotel <hotel-id>", "List rooms of a hotel")),
			)
		},
	}
}

func newHotelsSearchCmd() *cobra.Command {
	var city string

	cmd := &cobra.Command{
		Use:   "search [keyword]",
		Short: "Search hotels by keyword or city",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			var keyword string
			if len(args) > 0 {
				keyword = args[0]
			}
			if keyword == "" && city == "" {
				return output.ErrUsageHint("A keyword or --city is required", "Example: staybook hotels search --city \"Da Nang\"")
			}
			hotels, err := app.Hotel.Hotels().Search(cmd.Context(), keyword, city)
			if err != nil {
				return err
			}
			return app.OK(hotels,
				output.WithSummary(countSummary(len(hotels), "hotel", "hotels")),
				output.WithBreadcrumbs(crumb("show", "staybook hotels show <id>", "Show a hotel")),
			)
		},
	}

	cmd.Flags().StringVar(&city, "city", "", "Only hotels in this city")
	_ = cmd.RegisterFlagCompletionFunc("city", completer.CityCompletion())

	return cmd
}

func newHotelsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "show <id>",
		Short:             "Show a hotel",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completer.HotelCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "hotel")
			if err != nil {
				return err
			}
			h, err := app.Hotel.Hotels().Get(cmd.Context(), id)
			if err != nil {
				return err
			}

			summary := h.Name
			if h.City != "" {
				summary += ", " + h.City
			}
			if h.PricePerNight != nil {
				summary += ", from " + app.Locale.FormatPrice(*h.PricePerNight, format.DefaultCurrency) + " per night"
			}
			return app.OK(h,
				output.WithSummary(summary),
				output.WithBreadcrumbs(
					crumb("rooms", "staybook rooms hotel "+strconv.FormatInt(h.ID, 10), "List rooms"),
				),
			)
		},
	}
}
