// Package format holds the display helpers shared by both portals: money,
// numbers, dates, phone numbers and status badges, plus the client-side
// input checks used before a form is submitted.
package format

import (
	"math"
	"regexp"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// CurrencySymbol is the Mongolian tögrög sign.
const CurrencySymbol = "₮"

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

// The portal groups digits with commas regardless of the UI language.
var printer = message.NewPrinter(language.English)

// Currency formats a tögrög amount without fractional digits, e.g. "50,000₮".
// Amounts of any size are grouped exactly.
func Currency(amount decimal.Decimal) string {
	return humanize.BigComma(amount.Round(0).BigInt()) + CurrencySymbol
}

// Number formats n with thousands separators.
func Number(n int) string {
	return printer.Sprintf("%d", n)
}

// Percent formats a ratio given in percent with one decimal.
func Percent(p float64) string {
	return printer.Sprintf("%.1f%%", p)
}

func Date(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateLayout)
}

func DateTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format(DateTimeLayout)
}

// OptDate formats an optional date, "-" when unset.
func OptDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return Date(*t)
}

var relMagnitudes = []humanize.RelTimeMagnitude{
	{D: time.Minute, Format: "дөнгөж сая", DivBy: time.Second},
	{D: 2 * time.Minute, Format: "1 минутын %s", DivBy: 1},
	{D: time.Hour, Format: "%d минутын %s", DivBy: time.Minute},
	{D: 2 * time.Hour, Format: "1 цагийн %s", DivBy: 1},
	{D: humanize.Day, Format: "%d цагийн %s", DivBy: time.Hour},
	{D: 2 * humanize.Day, Format: "1 өдрийн %s", DivBy: 1},
	{D: humanize.Month, Format: "%d өдрийн %s", DivBy: humanize.Day},
	{D: 2 * humanize.Month, Format: "1 сарын %s", DivBy: 1},
	{D: humanize.Year, Format: "%d сарын %s", DivBy: humanize.Month},
	{D: math.MaxInt64, Format: "%d жилийн %s", DivBy: humanize.Year},
}

// RelativeTime describes t relative to now, in Mongolian.
func RelativeTime(t, now time.Time) string {
	return humanize.CustomRelTime(t, now, "өмнө", "дараа", relMagnitudes)
}

func digits(s string) string {
	return strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, s)
}

// Phone formats 8-digit local numbers as "XX XX XX XX" and 976-prefixed
// numbers as "+976 XX XX XX XX". Anything else is returned unchanged.
func Phone(phone string) string {
	d := digits(phone)
	switch {
	case len(d) == 8:
		return d[0:2] + " " + d[2:4] + " " + d[4:6] + " " + d[6:8]
	case len(d) == 11 && strings.HasPrefix(d, "976"):
		return "+976 " + d[3:5] + " " + d[5:7] + " " + d[7:9] + " " + d[9:11]
	}
	return phone
}

// Truncate shortens s to n runes, appending "...".
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

// Initials returns the upper-cased first letters of the two names, or "?".
func Initials(first, last string) string {
	var b strings.Builder
	for _, name := range []string{first, last} {
		if r, _ := utf8.DecodeRuneInString(name); r != utf8.RuneError {
			b.WriteRune(unicode.ToUpper(r))
		}
	}
	if b.Len() == 0 {
		return "?"
	}
	return b.String()
}

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

func IsValidEmail(email string) bool {
	return emailRe.MatchString(email)
}

// IsValidPhone accepts Mongolian numbers: 8 digits, or 976 followed by 8.
func IsValidPhone(phone string) bool {
	d := digits(phone)
	return len(d) == 8 || (len(d) == 11 && strings.HasPrefix(d, "976"))
}
