package tui

import (
	"errors"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// Validator checks a single field value.
type Validator func(string) error

// Required rejects blank input, then applies the optional validator.
func Required(v Validator) Validator {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("this field is required")
		}
		if v != nil {
			return v(strings.TrimSpace(s))
		}
		return nil
	}
}

// Confirm shows a yes/no confirmation prompt.
func Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	err := huh.NewConfirm().
		Title(message).
		Affirmative("Yes").
		Negative("No").
		Value(&result).
		Run()
	if err != nil {
		return defaultValue, err
	}
	return result, nil
}

// ConfirmDangerous shows a confirmation prompt for actions that cannot be undone.
func ConfirmDangerous(message string) (bool, error) {
	var result bool
	err := huh.NewConfirm().
		Title(message).
		Description("This action cannot be undone.").
		Affirmative("Yes, I'm sure").
		Negative("Cancel").
		Value(&result).
		Run()
	if err != nil {
		return false, err
	}
	return result, nil
}

// InputRequired shows a required text input prompt.
func InputRequired(title, placeholder string, v Validator) (string, error) {
	var result string
	err := huh.NewInput().
		Title(title).
		Placeholder(placeholder).
		Value(&result).
		Validate(Required(v)).
		Run()
	return strings.TrimSpace(result), err
}

// TextArea shows a multiline text input prompt.
func TextArea(title, placeholder string) (string, error) {
	var result string
	err := huh.NewText().
		Title(title).
		Placeholder(placeholder).
		Value(&result).
		Validate(Required(nil)).
		Run()
	return strings.TrimSpace(result), err
}

// Credentials prompts for an email and password. A non-empty email is
// used as the starting value.
func Credentials(email string, validateEmail Validator) (string, string, error) {
	var password string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Email").
				Placeholder("you@example.com").
				Value(&email).
				Validate(Required(validateEmail)),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(Required(nil)),
		).Title("Sign in to StayBook"),
	)
	if err := form.Run(); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(email), password, nil
}

// NewPassword prompts for a password twice and requires them to match.
func NewPassword() (string, error) {
	var password, confirm string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&password).
				Validate(Required(nil)),
			huh.NewInput().
				Title("Confirm password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm).
				Validate(func(s string) error {
					if s != password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
	)
	if err := form.Run(); err != nil {
		return "", err
	}
	return password, nil
}

// OTP prompts for a one-time code sent to phone.
func OTP(phone string, length int, v Validator) (string, error) {
	var code string
	err := huh.NewInput().
		Title("Verification code").
		Description("Enter the " + strconv.Itoa(length) + "-digit code sent to " + phone).
		CharLimit(length).
		Value(&code).
		Validate(Required(v)).
		Run()
	return strings.TrimSpace(code), err
}

// RegistrationFields holds the values collected by the registration form.
type RegistrationFields struct {
	FullName    string
	Email       string
	PhoneNumber string
	DateOfBirth string
	Gender      string
}

// Registration prompts for any registration fields not already set.
// Validators are keyed by field: "email", "phone" and "dob".
func Registration(in RegistrationFields, validators map[string]Validator) (RegistrationFields, error) {
	out := in
	var fields []huh.Field
	if out.FullName == "" {
		fields = append(fields, huh.NewInput().Title("Full name").Value(&out.FullName).Validate(Required(nil)))
	}
	if out.Email == "" {
		fields = append(fields, huh.NewInput().Title("Email").Value(&out.Email).Validate(Required(validators["email"])))
	}
	if out.PhoneNumber == "" {
		fields = append(fields, huh.NewInput().Title("Phone number").Placeholder("0912345678").Value(&out.PhoneNumber).Validate(Required(validators["phone"])))
	}
	if out.DateOfBirth == "" {
		fields = append(fields, huh.NewInput().Title("Date of birth").Placeholder("YYYY-MM-DD").Value(&out.DateOfBirth).Validate(Required(validators["dob"])))
	}
	if out.Gender == "" {
		fields = append(fields, huh.NewSelect[string]().
			Title("Gender").
			Options(huh.NewOptions("MALE", "FEMALE", "OTHER")...).
			Value(&out.Gender))
	}
	if len(fields) == 0 {
		return out, nil
	}

	if err := huh.NewForm(huh.NewGroup(fields...).Title("Create your account")).Run(); err != nil {
		return in, err
	}
	out.FullName = strings.TrimSpace(out.FullName)
	out.Email = strings.TrimSpace(out.Email)
	out.PhoneNumber = strings.TrimSpace(out.PhoneNumber)
	out.DateOfBirth = strings.TrimSpace(out.DateOfBirth)
	return out, nil
}

// Rating shows a 1 to 5 star select.
func Rating(title string) (int, error) {
	options := make([]huh.Option[int], 0, 5)
	for n := 5; n >= 1; n-- {
		options = append(options, huh.NewOption(StarLabel(n), n))
	}

	result := 5
	err := huh.NewSelect[int]().
		Title(title).
		Options(options...).
		Value(&result).
		Run()
	return result, err
}

// Choice is one entry of a Pick prompt.
type Choice struct {
	Value       string
	Title       string
	Description string
}

// Pick shows a single-select list and returns the chosen value.
func Pick(title string, choices []Choice) (string, error) {
	if len(choices) == 0 {
		return "", errors.New("nothing to choose from")
	}
	options := make([]huh.Option[string], len(choices))
	for i, c := range choices {
		label := c.Title
		if c.Description != "" {
			label += "  " + c.Description
		}
		options[i] = huh.NewOption(label, c.Value)
	}

	result := choices[0].Value
	err := huh.NewSelect[string]().
		Title(title).
		Options(options...).
		Value(&result).
		Run()
	return result, err
}

// StarLabel renders n filled stars followed by the empty remainder.
func StarLabel(n int) string {
	n = max(0, min(5, n))
	return strings.Repeat("★", n) + strings.Repeat("☆", 5-n)
}

// IsAborted reports whether err means the user dismissed a prompt.
func IsAborted(err error) bool {
	return errors.Is(err, huh.ErrUserAborted)
}
