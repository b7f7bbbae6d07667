package validate

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"unicode"

	"github.com/go-marketplace-auth/internal/domain"
	"github.com/go-playground/validator/v10"
)

// v is the package-level singleton validator. Custom tags are registered in
// init() before the first call to Struct.
var v = validator.New()

func init() {
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", func(fl validator.FieldLevel) bool {
		return StrongPassword(fl.Field().String()) == ""
	})
	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return PersonName(fl.Field().String()) == ""
	})
}

// Struct validates the given struct using its validate tags and returns a
// *domain.ValidationError describing the first failing field, or nil.
func Struct(s interface{}) error {
	err := v.Struct(s)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return err
	}
	fe := ve[0]
	return &domain.ValidationError{Field: fe.Field(), Message: message(fe)}
}

func message(fe validator.FieldError) string {
	val, _ := fe.Value().(string)
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return "invalid email address"
	case "strongpassword":
		return StrongPassword(val)
	case "personname":
		return PersonName(val)
	case "numeric":
		return fmt.Sprintf("%s must contain only digits", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", fe.Field(), fe.Param())
	}
	return fmt.Sprintf("field '%s' failed '%s'", fe.Field(), fe.Tag())
}

// StrongPassword returns the first unmet password rule, or "" when p passes:
// at least 8 characters, one uppercase letter and one non-alphanumeric symbol.
func StrongPassword(p string) string {
	if len([]rune(p)) < 8 {
		return "password must be at least 8 characters"
	}
	var upper, symbol bool
	for _, r := range p {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case !unicode.IsLetter(r) && !unicode.IsDigit(r):
			symbol = true
		}
	}
	if !upper {
		return "password must contain at least one uppercase letter"
	}
	if !symbol {
		return "password must contain at least one symbol"
	}
	return ""
}

// PersonName returns the first unmet name rule, or "" when n passes:
// letters and spaces only, at least 2 characters.
func PersonName(n string) string {
	if len([]rune(strings.TrimSpace(n))) < 2 {
		return "name must be at least 2 characters"
	}
	for _, r := range n {
		if !unicode.IsLetter(r) && r != ' ' {
			return "name may only contain letters and spaces"
		}
	}
	return ""
}
