package hotel

import "time"

// DateLayout is the wire format for stay dates.
const DateLayout = "2006-01-02"

// Room represents a bookable room.
type Room struct {
	ID          int64    `json:"roomId"`
	RoomType    string   `json:"roomType"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price"`
	Capacity    int      `json:"capacity"`
	HotelID     int64    `json:"hotelId"`
	HotelName   string   `json:"hotelName"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	Rating      *float64 `json:"rating"`
	ReviewCount *int     `json:"reviewCount"`
}

// Hotel represents a property with rooms.
type Hotel struct {
	ID            int64    `json:"hotelId"`
	Name          string   `json:"hotelName"`
	Address       string   `json:"address,omitempty"`
	City          string   `json:"city,omitempty"`
	Country       string   `json:"country,omitempty"`
	Description   string   `json:"description,omitempty"`
	PricePerNight *float64 `json:"pricePerNight"`
	MainImageURL  string   `json:"mainImageUrl,omitempty"`
	ImageURLs     []string `json:"imageUrls,omitempty"`
	OwnerName     string   `json:"ownerName,omitempty"`
}

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingCancelled BookingStatus = "CANCELLED"
)

// Booking is a reservation of one room for a stay.
type Booking struct {
	ID            int64         `json:"bookingId"`
	RoomID        int64         `json:"roomId"`
	RoomType      string        `json:"roomType"`
	RoomImageURL  string        `json:"roomImageUrl,omitempty"`
	HotelID       int64         `json:"hotelId"`
	HotelName     string        `json:"hotelName"`
	HotelLocation string        `json:"hotelLocation,omitempty"`
	HotelCity     string        `json:"hotelCity,omitempty"`
	HotelAddress  string        `json:"hotelAddress,omitempty"`
	CheckIn       string        `json:"checkIn"`
	CheckOut      string        `json:"checkOut"`
	TotalPrice    float64       `json:"totalPrice"`
	Status        BookingStatus `json:"status"`
	AdultsCount   int           `json:"adultsCount"`
	ChildrenCount int           `json:"childrenCount"`
	InfantsCount  int           `json:"infantsCount"`
	CreatedAt     string        `json:"createdAt,omitempty"`
	Rating        *float64      `json:"rating,omitempty"`
	ReviewCount   *int          `json:"reviewCount,omitempty"`
}

// Nights returns the length of the stay, or 0 when the dates don't parse.
func (b Booking) Nights() int {
	in, err1 := time.Parse(DateLayout, b.CheckIn)
	out, err2 := time.Parse(DateLayout, b.CheckOut)
	if err1 != nil || err2 != nil || !out.After(in) {
		return 0
	}
	return int(out.Sub(in).Hours() / 24)
}

// Cancellable reports whether the booking can still be cancelled.
func (b Booking) Cancellable() bool {
	return b.Status != BookingCancelled
}

// Review is a guest's rating of a room.
type Review struct {
	ID        int64  `json:"reviewId"`
	RoomID    int64  `json:"roomId"`
	RoomType  string `json:"roomType,omitempty"`
	HotelID   int64  `json:"hotelId,omitempty"`
	HotelName string `json:"hotelName,omitempty"`
	UserID    int64  `json:"userId,omitempty"`
	UserName  string `json:"userName,omitempty"`
	Rating    int    `json:"rating"`
	Comment   string `json:"comment"`
	CreatedAt string `json:"createdAt,omitempty"`
}

// User is an account as returned by registration.
type User struct {
	ID          int64  `json:"userId"`
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
	Gender      string `json:"gender,omitempty"`
}

// Registration starts a new account. The password is set later with
// CompleteRegistration, after the phone number is verified.
type Registration struct {
	FullName    string `json:"fullName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
	DateOfBirth string `json:"dateOfBirth"`
	Gender      string `json:"gender"`
}

// BookingRequest creates a booking.
type BookingRequest struct {
	RoomID        int64  `json:"roomId"`
	CheckIn       string `json:"checkIn"`
	CheckOut      string `json:"checkOut"`
	AdultsCount   int    `json:"adultsCount"`
	ChildrenCount int    `json:"childrenCount"`
	InfantsCount  int    `json:"infantsCount"`
}

// ReviewRequest creates or updates a review.
type ReviewRequest struct {
	RoomID  int64  `json:"roomId"`
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}
