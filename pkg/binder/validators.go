package binder

import (
	"net/url"

	"github.com/go-playground/validator/v10"
)

// urlValidator accepts absolute http(s) urls or the empty string. The empty
// string is allowed so the validator can share a field with omitempty; add
// `required` to the tag when the value must be present.
func urlValidator(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if value == "" {
		return true
	}

	u, err := url.Parse(value)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
