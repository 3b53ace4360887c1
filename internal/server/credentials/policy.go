package credentials

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
)

const (
	MinPasswordLength = 8
	MaxPasswordLength = 128
)

var (
	errNoUpper  = errors.New("must contain an upper-case letter")
	errNoLower  = errors.New("must contain a lower-case letter")
	errNoDigit  = errors.New("must contain a digit")
	errNoSymbol = errors.New("must contain a symbol")
)

// ValidatePassword applies the password policy: 8 to 128 characters with at
// least one upper-case letter, lower-case letter, digit and symbol.
func ValidatePassword(password string) error {
	return validation.Validate(password,
		validation.Required,
		validation.RuneLength(MinPasswordLength, MaxPasswordLength),
		validation.By(characterClasses),
	)
}

func characterClasses(value interface{}) error {
	s, _ := value.(string)

	var upper, lower, digit, symbol bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			symbol = true
		}
	}

	switch {
	case !upper:
		return errNoUpper
	case !lower:
		return errNoLower
	case !digit:
		return errNoDigit
	case !symbol:
		return errNoSymbol
	}
	return nil
}
