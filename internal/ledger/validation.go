package ledger

import (
	"strings"
	"unicode/utf8"

	validator "github.com/go-playground/validator/v10"

	"github.com/Proton-105/minibank/internal/errors"
)

const (
	minNameLength  = 2
	minPhoneLength = 10
)

// RegisterInput carries a registration request from either front-end.
type RegisterInput struct {
	FirstName string `validate:"required,name"`
	LastName  string `validate:"required,name"`
	Phone     string `validate:"required,phone"`
	PIN       string `validate:"required,pin"`
	// ChatLink is set when registering through the chat front-end.
	ChatLink string
}

func newValidator(pinLength int) *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	_ = v.RegisterValidation("name", func(fl validator.FieldLevel) bool {
		return isValidName(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return isValidPhone(fl.Field().String())
	})
	_ = v.RegisterValidation("pin", func(fl validator.FieldLevel) bool {
		return isValidPIN(fl.Field().String(), pinLength)
	})

	return v
}

// NormalizePhone strips the spaces and dashes people type into phone numbers.
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(phone))
}

func isValidName(name string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(name)) >= minNameLength
}

// isValidPhone accepts "+" followed by digits only, at least 10 characters in total.
func isValidPhone(phone string) bool {
	if len(phone) < minPhoneLength || !strings.HasPrefix(phone, "+") {
		return false
	}
	return isDigits(phone[1:])
}

func isValidPIN(pin string, length int) bool {
	return len(pin) == length && isDigits(pin)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return errors.Wrapf(errors.ErrValidation, "%s failed %s", strings.ToLower(fe.Field()), fe.Tag())
	}
	return errors.Wrap(errors.ErrValidation, err)
}
