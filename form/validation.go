package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/hazyhaar/ongspa/dom"
	"github.com/hazyhaar/ongspa/mask"
	"github.com/hazyhaar/ongspa/validate"
)

// RequiredFields must all be non-empty.
var RequiredFields = []string{
	"nome", "email", "cpf", "telefone", "nascimento",
	"endereco", "cep", "cidade", "estado", "tipo",
}

// DefaultMinAge is the minimum age to register.
const DefaultMinAge = 16

// ValidationError carries every failed check of one submission, in order.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, " ")
}

// Collect turns trimmed form entries into a flat mapping; a repeated name
// keeps its last value.
func Collect(entries []dom.Field) map[string]string {
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		out[e.Name] = strings.TrimSpace(e.Value)
	}
	return out
}

// Check runs every consistency check over fields and returns the failures
// in order. No check stops the others. Format checks only run on non-empty
// fields since emptiness is already reported as a missing required field.
func Check(fields map[string]string, minAge int, now time.Time) []string {
	var errs []string

	for _, k := range RequiredFields {
		if fields[k] == "" {
			errs = append(errs, fmt.Sprintf("O campo %q é obrigatório.", k))
		}
	}
	if v := fields["cpf"]; v != "" && !validate.NationalID(v) {
		errs = append(errs, "CPF inválido.")
	}
	if v := fields["telefone"]; v != "" && len(mask.Digits(v)) < 10 {
		errs = append(errs, "Telefone inválido.")
	}
	if v := fields["cep"]; v != "" && len(mask.Digits(v)) != 8 {
		errs = append(errs, "CEP inválido.")
	}
	if v := fields["nascimento"]; v != "" && !validate.MinimumAge(v, minAge, now) {
		errs = append(errs, fmt.Sprintf("É necessário ter pelo menos %d anos para se cadastrar.", minAge))
	}
	return errs
}
