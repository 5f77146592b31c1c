package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/completion"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/output"
)

var completionShells = []string{"bash", "zsh", "fish", "powershell"}

// NewCompletionCmd creates the completion command group.
func NewCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [shell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for staybook.

Bash:
  $ source <(staybook completion bash)

Zsh:
  $ staybook completion zsh > "${fpath[1]}/_staybook"

Fish:
  $ staybook completion fish > ~/.config/fish/completions/staybook.fish

PowerShell:
  PS> staybook completion powershell | Out-String | Invoke-Expression

Room and hotel IDs complete from a local cache. It is filled by
"staybook rooms list", "staybook hotels list" and "staybook completion refresh".`,
		DisableFlagsInUseLine: true,
		ValidArgs:             completionShells,
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd.OutOrStdout(), args[0])
		},
	}

	for _, shell := range completionShells {
		cmd.AddCommand(newCompletionShellCmd(shell))
	}
	cmd.AddCommand(newCompletionRefreshCmd())
	cmd.AddCommand(newCompletionStatusCmd())

	return cmd
}

func writeCompletion(root *cobra.Command, w io.Writer, shell string) error {
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(w, true)
	case "zsh":
		return root.GenZshCompletion(w)
	case "fish":
		return root.GenFishCompletion(w, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(w)
	default:
		return output.ErrUsage(fmt.Sprintf("unknown shell: %s", shell))
	}
}

func newCompletionShellCmd(shell string) *cobra.Command {
	return &cobra.Command{
		Use:                   shell,
		Short:                 fmt.Sprintf("Generate %s completion script", shell),
		DisableFlagsInUseLine: true,
		Args:                  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return writeCompletion(cmd.Root(), cmd.OutOrStdout(), shell)
		},
	}
}

func newCompletionRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the completion cache",
		Long: `Fetch the current rooms and hotels and store them in the completion cache.

The cache lives in $STAYBOOK_CACHE_DIR, or staybook under $XDG_CACHE_HOME.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			store := completion.NewStore("")
			refresher := completion.NewRefresher(store, app.Hotel.Rooms(), app.Hotel.Hotels())
			res := refresher.RefreshAll(cmd.Context())
			if res.RoomsErr != nil && res.HotelsErr != nil {
				return fmt.Errorf("refresh failed: %w", res.Error())
			}

			cache, err := store.Load()
			if err != nil {
				return fmt.Errorf("refresh completed but failed to read cache: %w", err)
			}

			result := map[string]any{
				"rooms":      len(cache.Rooms),
				"hotels":     len(cache.Hotels),
				"cache_path": store.Path(),
			}
			summary := fmt.Sprintf("Cached %s and %s",
				countSummary(len(cache.Rooms), "room", "rooms"),
				countSummary(len(cache.Hotels), "hotel", "hotels"))
			if res.HasError() {
				result["rooms_refreshed"] = res.RoomsErr == nil
				result["hotels_refreshed"] = res.HotelsErr == nil
				result["error"] = res.Error().Error()
				summary += fmt.Sprintf(" (warning: %v)", res.Error())
			}

			return app.OK(result, output.WithSummary(summary))
		},
	}
}

func newCompletionStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show completion cache status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			store := completion.NewStore("")
			cache, err := store.Load()
			if err != nil {
				return err
			}
			stale := store.IsStale(completion.DefaultMaxAge)

			oldest := cache.RoomsUpdatedAt
			if !cache.HotelsUpdatedAt.IsZero() && (oldest.IsZero() || cache.HotelsUpdatedAt.Before(oldest)) {
				oldest = cache.HotelsUpdatedAt
			}

			age, status := "never", "empty"
			switch {
			case len(cache.Rooms) == 0 && len(cache.Hotels) == 0:
			case stale:
				age, status = time.Since(oldest).Round(time.Second).String(), "stale"
			default:
				age, status = time.Since(oldest).Round(time.Second).String(), "fresh"
			}

			return app.OK(map[string]any{
				"rooms":             len(cache.Rooms),
				"hotels":            len(cache.Hotels),
				"rooms_updated_at":  cache.RoomsUpdatedAt,
				"hotels_updated_at": cache.HotelsUpdatedAt,
				"age":               age,
				"status":            status,
				"stale":             stale,
				"cache_path":        store.Path(),
			},
				output.WithSummary(fmt.Sprintf("%s, %s (%s)",
					countSummary(len(cache.Rooms), "room", "rooms"),
					countSummary(len(cache.Hotels), "hotel", "hotels"),
					status)),
				output.WithBreadcrumbs(crumb("refresh", "staybook completion refresh", "Refresh the cache")),
			)
		},
	}
}

// cacheRooms stores listed rooms for completion. Failures are ignored.
func cacheRooms(rooms []hotel.Room) {
	_ = completion.NewStore("").UpdateRooms(completion.RoomsFrom(rooms))
}

// cacheHotels stores listed hotels for completion. Failures are ignored.
func cacheHotels(hotels []hotel.Hotel) {
	_ = completion.NewStore("").UpdateHotels(completion.HotelsFrom(hotels))
}

// completer is shared by every command that completes IDs.
var completer = completion.NewCompleter(nil)
