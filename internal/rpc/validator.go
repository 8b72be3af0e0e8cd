package rpc

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	apperrors "lexpertease/internal/errors"
)

var (
	personNameRE = regexp.MustCompile(`^[a-zA-Z\s]*[a-zA-Z][a-zA-Z\s]*$`)
	phoneRE      = regexp.MustCompile(`^\+?[1-9]\d{0,15}$`)
)

// Validator checks decoded procedure inputs. Struct fields may carry a msg
// tag of the form "rule=message;rule=message" to override the default
// message of a failed rule.
type Validator struct {
	validate *validator.Validate
}

// NewValidator builds a Validator with the custom rules registered.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRE.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRE.MatchString(fl.Field().String())
	})
	return &Validator{validate: v}
}

// Validate implements echo.Validator. Failures are returned as validation
// errors whose message is the first violated rule.
func (v *Validator) Validate(i interface{}) error {
	err := v.validate.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperrors.Internal("validate input", err)
	}

	overrides := messageOverrides(i)
	fields := make(map[string]string, len(verrs))
	var first string
	for _, fe := range verrs {
		msg := overrides[fe.StructField()][fe.Tag()]
		if msg == "" {
			msg = defaultMessage(fe)
		}
		if _, seen := fields[fe.Field()]; !seen {
			fields[fe.Field()] = msg
		}
		if first == "" {
			first = msg
		}
	}
	return apperrors.Validation(first, fields)
}

// messageOverrides reads the msg tags of the struct behind i.
func messageOverrides(i interface{}) map[string]map[string]string {
	t := reflect.TypeOf(i)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	out := map[string]map[string]string{}
	if t.Kind() != reflect.Struct {
		return out
	}
	for n := 0; n < t.NumField(); n++ {
		f := t.Field(n)
		tag := f.Tag.Get("msg")
		if tag == "" {
			continue
		}
		rules := map[string]string{}
		for _, part := range strings.Split(tag, ";") {
			rule, msg, ok := strings.Cut(part, "=")
			if ok {
				rules[strings.TrimSpace(rule)] = strings.TrimSpace(msg)
			}
		}
		out[f.Name] = rules
	}
	return out
}

func defaultMessage(fe validator.FieldError) string {
	label := humanize(fe.Field())
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Please provide a valid email address"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters long", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s cannot exceed %s characters", label, fe.Param())
	case "personname":
		return label + " can only contain letters and spaces"
	case "phone":
		return "Please provide a valid phone number"
	case "eqfield":
		return "Passwords do not match"
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

// humanize turns a camelCase field name into a sentence-case label.
func humanize(field string) string {
	var b strings.Builder
	for i, r := range field {
		switch {
		case i == 0:
			b.WriteRune(unicode.ToUpper(r))
		case unicode.IsUpper(r):
			b.WriteRune(' ')
			b.WriteRune(unicode.ToLower(r))
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
