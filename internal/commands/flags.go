package commands

import (
	"github.com/spf13/pflag"

	"github.com/staybook/staybook-cli/internal/dateparse"
	"github.com/staybook/staybook-cli/internal/output"
)

// stayFlags are shared by commands that describe a stay.
type stayFlags struct {
	checkIn  string
	checkOut string
	nights   int
	adults   int
	children int
	infants  int
}

func (f *stayFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.checkIn, "check-in", "", "Check-in date (YYYY-MM-DD, DD/MM/YYYY, today, friday, +3, ...)")
	fs.StringVar(&f.checkOut, "check-out", "", "Check-out date, or +N nights after check-in")
	fs.IntVarP(&f.nights, "nights", "n", 0, "Number of nights (when --check-out is not given)")
	fs.IntVar(&f.adults, "adults", 1, "Number of adults")
	fs.IntVar(&f.children, "children", 0, "Number of children")
	fs.IntVar(&f.infants, "infants", 0, "Number of infants")
}

// dates resolves the check-in and check-out flags to wire dates.
func (f *stayFlags) dates() (string, string, error) {
	if f.checkIn == "" {
		return "", "", output.ErrUsageHint("--check-in is required", "Example: --check-in 2026-12-24 --nights 3")
	}
	in, out, err := dateparse.Stay(f.checkIn, f.checkOut, f.nights)
	if err != nil {
		return "", "", output.ErrUsage(err.Error())
	}
	return in, out, nil
}

// reviewFlags are shared by reviews create and update.
type reviewFlags struct {
	room    string
	rating  int
	comment string
}

func (f *reviewFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.room, "room", "", "Room ID")
	fs.IntVarP(&f.rating, "rating", "r", 0, "Rating from 1 to 5")
	fs.StringVarP(&f.comment, "comment", "c", "", "Review text")
}

// passwordFlags read a password from a flag or stdin.
type passwordFlags struct {
	password string
	stdin    bool
}

func (f *passwordFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.password, "password", "", "Password (prefer --password-stdin)")
	fs.BoolVar(&f.stdin, "password-stdin", false, "Read the password from stdin")
}
