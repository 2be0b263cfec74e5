// Package validate holds the pure field predicates of the registration form.
package validate

import (
	"strings"
	"time"

	"github.com/hazyhaar/ongspa/mask"
)

// NationalID reports whether raw is a valid CPF: 11 digits once separators
// are stripped, not a single repeated digit, and both mod-11 check digits
// matching.
func NationalID(raw string) bool {
	d := mask.Digits(raw)
	if len(d) != 11 {
		return false
	}
	if strings.Count(d, d[:1]) == len(d) {
		return false
	}
	return checkDigit(d, 10) == int(d[9]-'0') && checkDigit(d, 11) == int(d[10]-'0')
}

// checkDigit computes the check digit at position t (10 or 11) from the
// t-1 digits before it, weighted t down to 2.
func checkDigit(d string, t int) int {
	sum := 0
	for i := 0; i < t-1; i++ {
		sum += int(d[i]-'0') * (t - i)
	}
	c := 11 - sum%11
	if c >= 10 {
		return 0
	}
	return c
}

// dateLayouts are tried in order. ISO dates come from <input type="date">.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"02/01/2006",
}

// ParseDate parses a birth date in any accepted layout.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Age returns the completed years between birth and now.
func Age(birth, now time.Time) int {
	age := now.Year() - birth.Year()
	if now.Month() < birth.Month() || (now.Month() == birth.Month() && now.Day() < birth.Day()) {
		age--
	}
	return age
}

// MinimumAge reports whether the person born on date is at least minYears
// old at now. Unparsable dates fail.
func MinimumAge(date string, minYears int, now time.Time) bool {
	birth, ok := ParseDate(date)
	if !ok {
		return false
	}
	return Age(birth, now) >= minYears
}
