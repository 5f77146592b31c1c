package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"github.com/staybook/staybook-cli/internal/appctx"
	"github.com/staybook/staybook-cli/internal/dateparse"
	"github.com/staybook/staybook-cli/internal/hostutil"
	"github.com/staybook/staybook-cli/internal/hotel"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
	"github.com/staybook/staybook-cli/internal/tui"
)

// NewAuthCmd creates the auth command group.
func NewAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage your account and session",
		Long: `Register, sign in and manage the stored session.

Registration takes three steps: register sends a code to your phone,
verify-otp confirms it, and complete-registration sets your password.`,
	}

	cmd.AddCommand(
		newAuthRegisterCmd(),
		newAuthVerifyOTPCmd(),
		newAuthResendOTPCmd(),
		newAuthCompleteRegistrationCmd(),
		newAuthLoginCmd(),
		newAuthLogoutCmd(),
		newAuthStatusCmd(),
		newAuthRefreshCmd(),
		newAuthTokenCmd(),
	)

	return cmd
}

func newAuthRegisterCmd() *cobra.Command {
	var reg hotel.Registration

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		Long: `Create an account. A verification code is sent by SMS to the phone number.

Missing fields are prompted for in an interactive terminal. When run
interactively, the command continues with code verification and password
setup.`,
		Example: `  staybook auth register --name "Lan Nguyen" --email lan@example.com \
    --phone 0912345678 --dob 1995-04-12 --gender FEMALE`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if app.IsInteractive() {
				fields, err := tui.Registration(tui.RegistrationFields{
					FullName:    reg.FullName,
					Email:       reg.Email,
					PhoneNumber: reg.PhoneNumber,
					DateOfBirth: reg.DateOfBirth,
					Gender:      reg.Gender,
				}, map[string]tui.Validator{
					"email": hotel.ValidateEmail,
					"phone": hotel.ValidatePhone,
					"dob":   validateBirthDate,
				})
				if err != nil {
					return err
				}
				reg = hotel.Registration(fields)
			}

			if reg.DateOfBirth != "" {
				dob, err := dateparse.Parse(reg.DateOfBirth)
				if err != nil {
					return output.ErrUsage("Invalid date of birth: " + err.Error())
				}
				reg.DateOfBirth = dob
			}

			user, msg, err := app.Hotel.Auth().Register(cmd.Context(), reg)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Verification code sent to " + reg.PhoneNumber
			}

			if app.IsInteractive() {
				return finishRegistration(cmd.Context(), app, reg.PhoneNumber)
			}

			return app.OK(user,
				output.WithSummary(msg),
				output.WithBreadcrumbs(
					crumb("verify", "staybook auth verify-otp --phone "+reg.PhoneNumber+" --code <code>", "Verify the SMS code"),
					crumb("resend", "staybook auth resend-otp --phone "+reg.PhoneNumber, "Send a new code"),
				),
			)
		},
	}

	cmd.Flags().StringVar(&reg.FullName, "name", "", "Full name")
	cmd.Flags().StringVar(&reg.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&reg.PhoneNumber, "phone", "", "Phone number (10 digits, starting with 0)")
	cmd.Flags().StringVar(&reg.DateOfBirth, "dob", "", "Date of birth (YYYY-MM-DD)")
	cmd.Flags().StringVar(&reg.Gender, "gender", "", "Gender (MALE, FEMALE or OTHER)")

	return cmd
}

func validateBirthDate(s string) error {
	_, err := dateparse.Parse(s)
	return err
}

// finishRegistration runs the interactive verify and password steps.
func finishRegistration(ctx context.Context, app *appctx.App, phone string) error {
	auth := app.Hotel.Auth()
	for {
		code, err := tui.OTP(phone, hotel.OTPLength, hotel.ValidateOTP)
		if err != nil {
			return err
		}
		_, err = auth.VerifyOTP(ctx, phone, code)
		if err == nil {
			break
		}
		if e := output.AsError(err); e.Code != output.CodeValidation && e.Code != output.CodeUsage {
			return err
		}
		fmt.Fprintln(app.Stderr(), output.AsError(err).Message)
		again, perr := tui.Confirm("Try another code?", true)
		if perr != nil || !again {
			return err
		}
	}

	password, err := tui.NewPassword()
	if err != nil {
		return err
	}
	msg, err := auth.CompleteRegistration(ctx, phone, password)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "Registration complete"
	}
	return app.OK(map[string]any{"phoneNumber": phone, "status": "registered"},
		output.WithSummary(msg),
		output.WithBreadcrumbs(crumb("login", "staybook auth login", "Sign in")),
	)
}

func newAuthVerifyOTPCmd() *cobra.Command {
	var phone, code string

	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "Verify the SMS code sent at registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			if code == "" && app.IsInteractive() {
				if code, err = tui.OTP(phone, hotel.OTPLength, hotel.ValidateOTP); err != nil {
					return err
				}
			}

			msg, err := app.Hotel.Auth().VerifyOTP(cmd.Context(), phone, code)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Phone number verified"
			}
			return app.OK(map[string]any{"phoneNumber": phone, "status": "verified"},
				output.WithSummary(msg),
				output.WithBreadcrumbs(
					crumb("password", "staybook auth complete-registration --phone "+phone+" --password-stdin", "Set your password"),
				),
			)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number used at registration")
	cmd.Flags().StringVar(&code, "code", "", "4-digit verification code")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newAuthResendOTPCmd() *cobra.Command {
	var phone string

	cmd := &cobra.Command{
		Use:   "resend-otp",
		Short: "Send a new verification code",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}
			msg, err := app.Hotel.Auth().ResendOTP(cmd.Context(), phone)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Verification code sent to " + phone
			}
			return app.OK(map[string]any{"phoneNumber": phone, "status": "sent"}, output.WithSummary(msg))
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number used at registration")
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

func newAuthCompleteRegistrationCmd() *cobra.Command {
	var phone string
	var pw passwordFlags

	cmd := &cobra.Command{
		Use:   "complete-registration",
		Short: "Set the password of a verified account",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			password, err := resolvePassword(cmd, app, pw, tui.NewPassword)
			if err != nil {
				return err
			}

			msg, err := app.Hotel.Auth().CompleteRegistration(cmd.Context(), phone, password)
			if err != nil {
				return err
			}
			if msg == "" {
				msg = "Registration complete"
			}
			return app.OK(map[string]any{"phoneNumber": phone, "status": "registered"},
				output.WithSummary(msg),
				output.WithBreadcrumbs(crumb("login", "staybook auth login", "Sign in")),
			)
		},
	}

	cmd.Flags().StringVar(&phone, "phone", "", "Phone number used at registration")
	pw.register(cmd.Flags())
	_ = cmd.MarkFlagRequired("phone")

	return cmd
}

// resolvePassword takes the password from stdin, the flag, or a prompt.
func resolvePassword(cmd *cobra.Command, app *appctx.App, pw passwordFlags, prompt func() (string, error)) (string, error) {
	switch {
	case pw.stdin:
		return readSecret(cmd.InOrStdin())
	case pw.password != "":
		return pw.password, nil
	case app.IsInteractive():
		return prompt()
	}
	return "", output.ErrUsageHint("Password is required", "Use --password-stdin, e.g. echo \"$PW\" | staybook auth login --email you@example.com --password-stdin")
}

func newAuthLoginCmd() *cobra.Command {
	var email string
	var pw passwordFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in with email and password. The access token, refresh token and
profile are stored in the system keyring, or in a file when no keyring is
available.`,
		Example: `  staybook auth login
  echo "$PW" | staybook auth login --email you@example.com --password-stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			var password string
			if email == "" && !pw.stdin && pw.password == "" && app.IsInteractive() {
				if email, password, err = tui.Credentials(email, hotel.ValidateEmail); err != nil {
					return err
				}
			} else {
				if email == "" {
					return output.ErrUsage("--email is required")
				}
				if password, err = resolvePassword(cmd, app, pw, func() (string, error) {
					_, p, err := tui.Credentials(email, hotel.ValidateEmail)
					return p, err
				}); err != nil {
					return err
				}
			}

			var result *hotel.LoginResult
			_, err = runWithSpinner(cmd.Context(), app, "Signing in…", func(ctx context.Context) (string, error) {
				r, err := app.Hotel.Auth().Login(ctx, email, password)
				if err != nil {
					return "", err
				}
				result = r
				return "Signed in as " + displayName(r.Profile), nil
			})
			if err != nil {
				return err
			}

			return app.OK(result.Profile,
				output.WithSummary("Signed in as "+displayName(result.Profile)),
				output.WithBreadcrumbs(
					crumb("rooms", "staybook rooms list", "Browse rooms"),
					crumb("bookings", "staybook bookings upcoming", "Your upcoming stays"),
				),
			)
		},
	}

	cmd.Flags().StringVarP(&email, "email", "e", "", "Email address")
	pw.register(cmd.Flags())

	return cmd
}

func displayName(p session.UserProfile) string {
	if p.FullName != "" {
		return p.FullName
	}
	return p.Email
}

// runWithSpinner shows a spinner while fn runs in an interactive terminal.
func runWithSpinner(ctx context.Context, app *appctx.App, message string, fn func(context.Context) (string, error)) (string, error) {
	if !app.IsInteractive() {
		return fn(ctx)
	}
	return tui.NewSpinner(message).Run(ctx, fn)
}

func newAuthLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session",
		Long:  "Remove the stored tokens and profile. The onboarding flag is kept.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if err := app.Hotel.Auth().Logout(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "logged_out",
			}, output.WithSummary("Signed out"))
		},
	}
}

func newAuthStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the stored session",
		Long:  "Display who is signed in, where the session is stored and when the access token expires.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			sess, err := app.Sessions.Load()
			if err != nil {
				return err
			}

			status := map[string]any{
				"authenticated": sess.Authenticated(),
				"origin":        hostutil.Origin(app.API.BaseURL()),
				"store":         session.BackendName(app.Sessions.Store()),
			}
			if !sess.Authenticated() {
				return app.OK(status,
					output.WithSummary("Not signed in"),
					output.WithBreadcrumbs(crumb("login", "staybook auth login", "Sign in")),
				)
			}

			status["refresh_token"] = sess.RefreshToken != ""

			summary := "Signed in"
			if profile, err := app.Sessions.Profile(); err == nil && profile != nil {
				status["user"] = profile
				summary += " as " + displayName(*profile)
			}

			if claims, ok := tokenClaims(sess.AccessToken); ok {
				if claims.subject != "" {
					status["subject"] = claims.subject
				}
				if !claims.expires.IsZero() {
					expiresIn := time.Until(claims.expires)
					status["expires_at"] = claims.expires.UTC().Format(time.RFC3339)
					status["expires_in"] = expiresIn.Round(time.Second).String()
					status["expired"] = expiresIn < 0
					if expiresIn < 0 {
						summary += " (access token expired, it will be refreshed on the next request)"
					}
				}
			}

			return app.OK(status, output.WithSummary(summary))
		},
	}
}

type accessClaims struct {
	subject string
	expires time.Time
}

// tokenClaims reads the subject and expiry of a JWT without verifying it.
// Opaque tokens report ok=false.
func tokenClaims(token string) (accessClaims, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return accessClaims{}, false
	}
	var c accessClaims
	c.subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		c.expires = exp.Time
	}
	return c, true
}

func newAuthRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Refresh the access token",
		Long:  "Exchange the refresh token for a new access token. A failed refresh ends the session.",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			if err := app.Hotel.Auth().Refresh(cmd.Context()); err != nil {
				return err
			}

			return app.OK(map[string]string{
				"status": "refreshed",
			}, output.WithSummary("Access token refreshed"))
		},
	}
}

func newAuthTokenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "token",
		Short: "Print the access token",
		Long: `Print the stored access token to stdout for use with other tools.

Examples:
  curl -H "Authorization: Bearer $(staybook auth token)" ...
  staybook auth token --json    # JSON envelope with token in data field`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := requireApp(cmd)
			if err != nil {
				return err
			}

			sess, err := app.Sessions.Load()
			if err != nil {
				return err
			}
			if !sess.Authenticated() {
				return output.ErrAuth("Not signed in")
			}

			// Raw by default for shell substitution; envelope only when asked.
			if app.Flags.JSON || app.Flags.YAML || app.Flags.JQ != "" {
				return app.OK(map[string]string{"token": sess.AccessToken})
			}
			fmt.Fprintln(app.Stdout(), sess.AccessToken)
			return nil
		},
	}
}
