// Package commands implements the CLI commands.
package commands

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/output"
)

// requireApp returns the app stored in the command context.
func requireApp(cmd *cobra.Command) (*appctx.App, error) {
	app := appctx.FromContext(cmd.Context())
	if app == nil {
		return nil, fmt.Errorf("app not initialized")
	}
	return app, nil
}

// parseID parses a positive numeric entity ID from an argument or flag.
func parseID(raw, what string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, output.ErrUsage(fmt.Sprintf("Invalid %s ID %q", what, raw))
	}
	return id, nil
}

// readSecret reads one line from r, for --password-stdin.
func readSecret(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", output.ErrUsage("No password on stdin")
	}
	return line, nil
}

// countSummary renders "3 rooms" style summaries.
func countSummary(n int, singular, plural string) string {
	if n == 1 {
		return "1 " + singular
	}
	return fmt.Sprintf("%d %s", n, plural)
}

func crumb(action, cmd, description string) output.Breadcrumb {
	return output.Breadcrumb{Action: action, Cmd: cmd, Description: description}
}
