// Package mask formats raw field input into the canonical Brazilian shapes
// for CPF, telephone and CEP. Every mask strips non-digits, truncates to the
// field's digit budget and re-inserts separators; a separator is only placed
// once the group after it has at least one digit.
package mask

import (
	"strings"
)

// Digits returns only the ASCII digits of s.
func Digits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// NationalID formats a CPF: 000.000.000-00.
func NationalID(raw string) string {
	d := truncate(Digits(raw), 11)
	switch {
	case len(d) <= 3:
		return d
	case len(d) <= 6:
		return d[:3] + "." + d[3:]
	case len(d) <= 9:
		return d[:3] + "." + d[3:6] + "." + d[6:]
	default:
		return d[:3] + "." + d[3:6] + "." + d[6:9] + "-" + d[9:]
	}
}

// Phone formats a landline (10 digits) as (00) 0000-0000 and a mobile
// (11 digits) as (00) 00000-0000. Fewer than six digits are left bare.
func Phone(raw string) string {
	d := truncate(Digits(raw), 11)
	first := 4
	if len(d) == 11 {
		first = 5
	}
	if len(d) < 2+first {
		return d
	}
	out := "(" + d[:2] + ") " + d[2:2+first]
	if rest := d[2+first:]; rest != "" {
		out += "-" + rest
	}
	return out
}

// PostalCode formats a CEP: 00000-000.
func PostalCode(raw string) string {
	d := truncate(Digits(raw), 8)
	if len(d) <= 5 {
		return d
	}
	return d[:5] + "-" + d[5:]
}

// Func is a mask.
type Func func(string) string

// ByName returns the mask for a field kind: "cpf", "telefone" or "cep".
func ByName(name string) (Func, bool) {
	switch name {
	case "cpf":
		return NationalID, true
	case "telefone":
		return Phone, true
	case "cep":
		return PostalCode, true
	}
	return nil, false
}
