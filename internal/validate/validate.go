// Package validate pre-checks console form input before it is sent.
// The backend still validates everything; this only saves a round trip
// for input that is obviously wrong.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// usernameRe enforces the marketplace username character set.
var usernameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{2,29}$`)

// phoneRe accepts digits with optional leading + and common separators.
var phoneRe = regexp.MustCompile(`^\+?[0-9][0-9 ()-]{5,19}$`)

// MinPasswordLen is the shortest password the console will submit.
const MinPasswordLen = 8

var v = newValidator()

func newValidator() *validator.Validate {
	vd := validator.New(validator.WithRequiredStructEnabled())
	vd.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = vd.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = vd.RegisterValidation("password", func(fl validator.FieldLevel) bool {
		return passwordProblem(fl.Field().String()) == ""
	})
	_ = vd.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(strings.TrimSpace(fl.Field().String()))
	})
	_ = vd.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return vd
}

// FieldErrors maps a JSON field name to a message. It is also used for
// field errors reported by the server.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	if len(fe) == 0 {
		return "invalid input"
	}
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return strings.Join(parts, "; ")
}

// Struct validates s using its `validate` tags. It returns nil or FieldErrors.
func Struct(s any) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := FieldErrors{}
	for _, fe := range verrs {
		name := fe.Field()
		if _, dup := out[name]; dup {
			continue
		}
		out[name] = message(fe)
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.ActualTag() {
	case "required", "notblank":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "username":
		return "must be 3-30 characters: letters, digits, dot, dash or underscore"
	case "password":
		if p := passwordProblem(fe.Value().(string)); p != "" {
			return p
		}
		return "is too weak"
	case "phone":
		return "must be a phone number"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "gtfield":
		return fmt.Sprintf("must be after %s", fe.Param())
	default:
		return "is invalid"
	}
}

// Username validates a username string for length and allowed characters.
func Username(s string) error {
	if !usernameRe.MatchString(s) {
		return errors.New("invalid username")
	}
	return nil
}

// Email validates an email address.
func Email(s string) error {
	if err := v.Var(s, "required,email"); err != nil {
		return errors.New("invalid email")
	}
	return nil
}

// Password checks length and character classes.
func Password(s string) error {
	if p := passwordProblem(s); p != "" {
		return errors.New("password " + p)
	}
	return nil
}

func passwordProblem(s string) string {
	if len(s) < MinPasswordLen {
		return fmt.Sprintf("must be at least %d characters", MinPasswordLen)
	}
	var upper, lower, digit bool
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return "must mix upper case, lower case and digits"
	}
	return ""
}
