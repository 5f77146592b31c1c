// Package format renders prices, dates and stays for people.
package format

import (
	"os"
	"strings"
	"time"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// DefaultCurrency is the currency the API quotes prices in.
const DefaultCurrency = "VND"

// Locale holds resolved formatting conventions for dates and numbers.
type Locale struct {
	tag     language.Tag
	printer *message.Printer
}

// DetectLocale resolves the user's locale from the environment. An explicit
// override (config "locale" or STAYBOOK_LOCALE) wins over LC_ALL and LANG.
func DetectLocale(override string) Locale {
	raw := override
	if raw == "" {
		raw = os.Getenv("LC_ALL")
	}
	if raw == "" {
		raw = os.Getenv("LC_MONETARY")
	}
	if raw == "" {
		raw = os.Getenv("LANG")
	}
	return NewLocale(raw)
}

// NewLocale creates a Locale from a POSIX locale string (e.g. "vi_VN.UTF-8")
// or BCP 47 tag (e.g. "vi-VN"). Returns en-US for empty or unparseable input.
func NewLocale(raw string) Locale {
	if idx := strings.IndexByte(raw, '.'); idx != -1 {
		raw = raw[:idx]
	}
	raw = strings.ReplaceAll(raw, "_", "-")

	tag, _ := language.Parse(raw)
	if tag == language.Und || raw == "C" || raw == "POSIX" {
		tag = language.AmericanEnglish
	}
	return Locale{tag: tag, printer: message.NewPrinter(tag)}
}

// Tag returns the resolved language tag.
func (l Locale) Tag() language.Tag {
	return l.tag
}

// FormatNumber formats v with locale grouping and at most two decimals.
func (l Locale) FormatNumber(v float64) string {
	if v == float64(int64(v)) {
		return l.printer.Sprint(number.Decimal(int64(v)))
	}
	return l.printer.Sprint(number.Decimal(v, number.MaxFractionDigits(2)))
}

// FormatPrice formats amount in the given ISO 4217 currency, rounded to the
// currency's standard digits. Unknown codes are appended as is.
func (l Locale) FormatPrice(amount float64, code string) string {
	if code == "" {
		code = DefaultCurrency
	}
	unit, err := currency.ParseISO(code)
	if err != nil {
		return l.FormatNumber(amount) + " " + code
	}

	scale, _ := currency.Standard.Rounding(unit)
	digits := l.printer.Sprint(number.Decimal(amount, number.Scale(scale)))
	symbol := l.printer.Sprint(currency.NarrowSymbol(unit))

	if l.symbolFirst() {
		return symbol + digits
	}
	return digits + " " + symbol
}

// symbolFirst reports whether the locale writes "$10" rather than "10 $".
func (l Locale) symbolFirst() bool {
	base, _ := l.tag.Base()
	switch base.String() {
	case "en", "ja", "zh", "ko", "th":
		return true
	}
	return false
}

// FormatDate formats t as a locale-appropriate date.
func (l Locale) FormatDate(t time.Time) string {
	return t.Format(l.dateLayout())
}

func (l Locale) dateLayout() string {
	region, _ := l.tag.Region()
	if layout, ok := dateLayouts[region.String()]; ok {
		return layout
	}
	base, _ := l.tag.Base()
	if layout, ok := dateLayoutsByLang[base.String()]; ok {
		return layout
	}
	return layoutMDY
}

const (
	layoutMDY    = "Jan 2, 2006"
	layoutDMY    = "2 Jan 2006"
	layoutDMYNum = "02/01/2006"
	layoutYMD    = "2006-01-02"
	layoutDMYDot = "2. Jan 2006"
)

// dateLayouts maps ISO 3166-1 region codes to date layouts.
var dateLayouts = map[string]string{
	"US": layoutMDY,
	"PH": layoutMDY,

	"VN": layoutDMYNum,
	"TH": layoutDMYNum,
	"ID": layoutDMYNum,
	"MY": layoutDMYNum,
	"SG": layoutDMY,
	"GB": layoutDMY,
	"AU": layoutDMY,
	"FR": layoutDMY,
	"ES": layoutDMY,
	"IT": layoutDMY,

	"DE": layoutDMYDot,
	"AT": layoutDMYDot,
	"CH": layoutDMYDot,

	"JP": layoutYMD,
	"CN": layoutYMD,
	"KR": layoutYMD,
	"TW": layoutYMD,
	"CA": layoutYMD,
}

// dateLayoutsByLang provides fallbacks when the region is unknown.
var dateLayoutsByLang = map[string]string{
	"en": layoutMDY,
	"vi": layoutDMYNum,
	"de": layoutDMYDot,
	"fr": layoutDMY,
	"es": layoutDMY,
	"ja": layoutYMD,
	"zh": layoutYMD,
	"ko": layoutYMD,
}
