package hotel

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/staybook/staybook-cli/internal/output"
)

// Superficial client-side checks. The server validates everything again.

var (
	emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	phonePattern = regexp.MustCompile(`^0\d{9}$`)
	otpPattern   = regexp.MustCompile(`^\d{4}$`)
)

// OTPLength is the number of digits in a verification code.
const OTPLength = 4

// ValidateEmail checks the shape of an email address.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return output.ErrUsage("Email is required")
	}
	if !emailPattern.MatchString(email) {
		return output.ErrUsage(fmt.Sprintf("Invalid email address: %s", email))
	}
	return nil
}

// ValidatePhone checks for a ten-digit number starting with 0.
func ValidatePhone(phone string) error {
	if !phonePattern.MatchString(phone) {
		return output.ErrUsageHint(fmt.Sprintf("Invalid phone number: %q", phone), "Phone numbers start with 0 and have 10 digits")
	}
	return nil
}

// ValidateOTP checks for a 4-digit code.
func ValidateOTP(otp string) error {
	if !otpPattern.MatchString(otp) {
		return output.ErrUsage(fmt.Sprintf("The verification code has %d digits", OTPLength))
	}
	return nil
}

// ValidateRating checks a review rating is between 1 and 5.
func ValidateRating(rating int) error {
	if rating < 1 || rating > 5 {
		return output.ErrUsage(fmt.Sprintf("Rating must be between 1 and 5, got %d", rating))
	}
	return nil
}

// ValidateStay checks both dates parse and check-out is after check-in.
func ValidateStay(checkIn, checkOut string) error {
	in, err := time.Parse(DateLayout, checkIn)
	if err != nil {
		return output.ErrUsageHint(fmt.Sprintf("Invalid check-in date: %q", checkIn), "Use YYYY-MM-DD")
	}
	out, err := time.Parse(DateLayout, checkOut)
	if err != nil {
		return output.ErrUsageHint(fmt.Sprintf("Invalid check-out date: %q", checkOut), "Use YYYY-MM-DD")
	}
	if !out.After(in) {
		return output.ErrUsage("Check-out must be after check-in")
	}
	return nil
}

// Validate checks a registration before it is sent.
func (r Registration) Validate() error {
	if strings.TrimSpace(r.FullName) == "" {
		return output.ErrUsage("Full name is required")
	}
	if err := ValidateEmail(r.Email); err != nil {
		return err
	}
	if err := ValidatePhone(r.PhoneNumber); err != nil {
		return err
	}
	if _, err := time.Parse(DateLayout, r.DateOfBirth); err != nil {
		return output.ErrUsageHint(fmt.Sprintf("Invalid date of birth: %q", r.DateOfBirth), "Use YYYY-MM-DD")
	}
	if strings.TrimSpace(r.Gender) == "" {
		return output.ErrUsage("Gender is required")
	}
	return nil
}

// Validate checks a booking request before it is sent.
func (r BookingRequest) Validate() error {
	if r.RoomID <= 0 {
		return output.ErrUsage("Room ID is required")
	}
	if r.AdultsCount < 1 {
		return output.ErrUsage("At least one adult is required")
	}
	if r.ChildrenCount < 0 || r.InfantsCount < 0 {
		return output.ErrUsage("Guest counts cannot be negative")
	}
	return ValidateStay(r.CheckIn, r.CheckOut)
}

// Validate checks a review request before it is sent.
func (r ReviewRequest) Validate() error {
	if r.RoomID <= 0 {
		return output.ErrUsage("Room ID is required")
	}
	if err := ValidateRating(r.Rating); err != nil {
		return err
	}
	if strings.TrimSpace(r.Comment) == "" {
		return output.ErrUsage("Comment is required")
	}
	return nil
}
