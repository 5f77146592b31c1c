package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/format"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/tui"
)

// NewReviewsCmd creates the reviews command group.
func NewReviewsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "reviews",
		Aliases: []string{"review"},
		Short:   "Read and write room reviews",
	}

	cmd.AddCommand(
		newReviewsCreateCmd(),
		newReviewsUpdateCmd(),
		newReviewsRoomCmd(),
		newReviewsShowCmd(),
		newReviewsMineCmd(),
	)

	return cmd
}

// request fills a review request from flags, prompting for what is missing.
func (f *reviewFlags) request(app *appctx.App) (hotel.ReviewRequest, error) {
	var req hotel.ReviewRequest
	if f.room == "" {
		return req, output.ErrUsage("--room is required")
	}
	roomID, err := parseID(f.room, "room")
	if err != nil {
		return req, err
	}
	req.RoomID = roomID
	req.Rating = f.rating
	req.Comment = strings.TrimSpace(f.comment)

	if app.IsInteractive() {
		if req.Rating == 0 {
			if req.Rating, err = tui.Rating("How was your stay?"); err != nil {
				return req, err
			}
		}
		if req.Comment == "" {
			comment, err := tui.TextArea("Your review", "What did you like? What could be better?")
			if err != nil {
				return req, err
			}
			req.Comment = strings.TrimSpace(comment)
		}
	}
	return req, nil
}

func newReviewsCreateCmd() *cobra.Command {
	var f reviewFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Review a room",
		Example: `  staybook reviews create --room 12 --rating 5 --comment "Great view, quiet at night"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			req, err := f.request(app)
			if err != nil {
				return err
			}

			review, err := app.Hotel.Reviews().Create(cmd.Context(), req)
			if err != nil {
				return err
			}
			return okReview(app, review, req, "Reviewed room")
		},
	}

	f.register(cmd.Flags())
	_ = cmd.RegisterFlagCompletionFunc("room", completer.RoomFlagCompletion())

	return cmd
}

func newReviewsUpdateCmd() *cobra.Command {
	var f reviewFlags

	cmd := &cobra.Command{
		Use:   "update <review-id>",
		Short: "Change one of your reviews",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "review")
			if err != nil {
				return err
			}
			req, err := f.request(app)
			if err != nil {
				return err
			}

			review, err := app.Hotel.Reviews().Update(cmd.Context(), id, req)
			if err != nil {
				return err
			}
			return okReview(app, review, req, "Updated review of room")
		},
	}

	f.register(cmd.Flags())
	_ = cmd.RegisterFlagCompletionFunc("room", completer.RoomFlagCompletion())

	return cmd
}

func okReview(app *appctx.App, review *hotel.Review, req hotel.ReviewRequest, verb string) error {
	var data any = review
	if review == nil {
		data = req
	}
	room := strconv.FormatInt(req.RoomID, 10)
	return app.OK(data,
		output.WithSummary(fmt.Sprintf("%s %s %s", verb, room, format.Stars(req.Rating))),
		output.WithBreadcrumbs(crumb("reviews", "staybook reviews room "+room, "All reviews of the room")),
	)
}

func newReviewsRoomCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "room <room-id>",
		Short:             "List the reviews of a room",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completer.RoomCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			roomID, err := parseID(args[0], "room")
			if err != nil {
				return err
			}
			reviews, err := app.Hotel.Reviews().ListByRoom(cmd.Context(), roomID)
			if err != nil {
				return err
			}
			return app.OK(reviews,
				output.WithSummary(reviewsSummary(reviews)),
				output.WithBreadcrumbs(crumb("review", "staybook reviews create --room "+args[0], "Write a review")),
			)
		},
	}
}

// reviewsSummary renders "3 reviews, average 4.3".
func reviewsSummary(reviews []hotel.Review) string {
	s := countSummary(len(reviews), "review", "reviews")
	if len(reviews) == 0 {
		return s
	}
	var sum int
	for _, r := range reviews {
		sum += r.Rating
	}
	return fmt.Sprintf("%s, average %.1f", s, float64(sum)/float64(len(reviews)))
}

func newReviewsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <review-id>",
		Short: "Show a review",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			id, err := parseID(args[0], "review")
			if err != nil {
				return err
			}
			review, err := app.Hotel.Reviews().Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			summary := format.Stars(review.Rating)
			if review.UserName != "" {
				summary += " by " + review.UserName
			}
			return app.OK(review, output.WithSummary(summary))
		},
	}
}

func newReviewsMineCmd() *cobra.Command {
	return &cobra.Command{
		Use:               "mine <room-id>",
		Short:             "Show your review of a room",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completer.RoomCompletion(),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			roomID, err := parseID(args[0], "room")
			if err != nil {
				return err
			}
			review, err := app.Hotel.Reviews().Mine(cmd.Context(), roomID)
			if err != nil {
				return err
			}
			if review == nil {
				return app.OK(nil,
					output.WithSummary("You have not reviewed room "+args[0]),
					output.WithBreadcrumbs(crumb("review", "staybook reviews create --room "+args[0], "Write a review")),
				)
			}
			id := strconv.FormatInt(review.ID, 10)
			return app.OK(review,
				output.WithSummary(format.Stars(review.Rating)+" "+review.Comment),
				output.WithBreadcrumbs(crumb("update", "staybook reviews update "+id+" --room "+args[0], "Change your review")),
			)
		},
	}
}
