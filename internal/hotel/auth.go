package hotel

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/staybook/staybook-cli/internal/api"
	"github.com/staybook/staybook-cli/internal/output"
	"github.com/staybook/staybook-cli/internal/session"
)

// AuthService covers registration, login and the local session.
type AuthService struct {
	client *Client
}

// LoginResult is a successful login. The tokens are already persisted.
type LoginResult struct {
	Profile      session.UserProfile `json:"profile"`
	AccessToken  string              `json:"-"`
	RefreshToken string              `json:"-"`
}

// loginPayload is the login response body, bare or inside an envelope.
type loginPayload struct {
	UserID      int64           `json:"userId"`
	ID          int64           `json:"id"`
	FullName    string          `json:"fullName"`
	Email       string          `json:"email"`
	Phone       string          `json:"phone"`
	PhoneNumber string          `json:"phoneNumber"`
	Authorities json.RawMessage `json:"authorities"`
}

// Register starts a new account. The server sends an OTP to the phone number.
func (s *AuthService) Register(ctx context.Context, r Registration) (*User, string, error) {
	if err := r.Validate(); err != nil {
		return nil, "", err
	}
	return invoke[*User](ctx, s.client, write("Auth", "Register", 0),
		&api.Request{Method: http.MethodPost, Path: "auth/register", Body: r})
}

// VerifyOTP confirms the code sent to phone.
func (s *AuthService) VerifyOTP(ctx context.Context, phone, otp string) (string, error) {
	if err := ValidatePhone(phone); err != nil {
		return "", err
	}
	if err := ValidateOTP(otp); err != nil {
		return "", err
	}
	_, msg, err := invoke[json.RawMessage](ctx, s.client, write("Auth", "VerifyOTP", 0),
		&api.Request{Method: http.MethodPost, Path: "auth/verify-otp", Body: map[string]string{"phoneNumber": phone, "otp": otp}})
	return msg, err
}

// ResendOTP asks for a new code.
func (s *AuthService) ResendOTP(ctx context.Context, phone string) (string, error) {
	if err := ValidatePhone(phone); err != nil {
		return "", err
	}
	_, msg, err := invoke[json.RawMessage](ctx, s.client, write("Auth", "ResendOTP", 0),
		&api.Request{Method: http.MethodPost, Path: "auth/resend-otp", Body: map[string]string{"phoneNumber": phone}})
	return msg, err
}

// CompleteRegistration sets the password of a verified account.
func (s *AuthService) CompleteRegistration(ctx context.Context, phone, password string) (string, error) {
	if err := ValidatePhone(phone); err != nil {
		return "", err
	}
	if password == "" {
		return "", output.ErrUsage("Password is required")
	}
	_, msg, err := invoke[json.RawMessage](ctx, s.client, write("Auth", "CompleteRegistration", 0),
		&api.Request{Method: http.MethodPost, Path: "auth/complete-registration", Body: map[string]string{"phoneNumber": phone, "password": password}})
	return msg, err
}

// Login exchanges credentials for tokens and persists the new session
// (access token, refresh token and profile).
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, output.ErrUsage("Password is required")
	}

	var result *LoginResult
	err := s.client.operation(ctx, write("Auth", "Login", 0), func(ctx context.Context) error {
		resp, err := s.client.api.Post(ctx, "auth/login", map[string]string{"email": email, "password": password})
		if err != nil {
			return err
		}
		payload, err := api.Decode[json.RawMessage](resp)
		if err != nil {
			return err
		}
		result, err = parseLogin(payload)
		if err != nil {
			return err
		}
		return s.persist(result)
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func parseLogin(payload []byte) (*LoginResult, error) {
	tokens, err := api.ExtractTokens(payload)
	if err != nil {
		return nil, &output.Error{Code: output.CodeAPI, Message: "Login response carried no access token", Cause: err}
	}
	var p loginPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, &output.Error{Code: output.CodeAPI, Message: "Invalid login response", Cause: err}
	}
	profile := session.UserProfile{
		ID:          p.UserID,
		FullName:    p.FullName,
		Email:       p.Email,
		Phone:       p.Phone,
		Authorities: parseAuthorities(p.Authorities),
	}
	if profile.ID == 0 {
		profile.ID = p.ID
	}
	if profile.Phone == "" {
		profile.Phone = p.PhoneNumber
	}
	return &LoginResult{Profile: profile, AccessToken: tokens.AccessToken, RefreshToken: tokens.RefreshToken}, nil
}

// parseAuthorities accepts "ROLE_A,ROLE_B" or ["ROLE_A","ROLE_B"].
func parseAuthorities(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list
	}
	var joined string
	if err := json.Unmarshal(raw, &joined); err != nil || joined == "" {
		return nil
	}
	for _, a := range strings.Split(joined, ",") {
		if a = strings.TrimSpace(a); a != "" {
			list = append(list, a)
		}
	}
	return list
}

func (s *AuthService) persist(r *LoginResult) error {
	if s.client.sessions == nil {
		return nil
	}
	profile, err := json.Marshal(r.Profile)
	if err != nil {
		return err
	}
	if err := s.client.sessions.Save(&session.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		Profile:      profile,
	}); err != nil {
		return &output.Error{Code: output.CodeAPI, Message: "Logged in, but the session could not be saved", Hint: err.Error(), Cause: err}
	}
	return nil
}

// Refresh forces a token refresh. A failure ends the session.
func (s *AuthService) Refresh(ctx context.Context) error {
	return s.client.operation(ctx, write("Auth", "Refresh", 0), s.client.api.Refresh)
}

// Logout ends the session locally. There is no server-side logout.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.client.operation(ctx, write("Auth", "Logout", 0), func(context.Context) error {
		return s.client.api.EndSession()
	})
}
