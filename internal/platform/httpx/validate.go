package httpx

import (
	"net/http"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags on v and returns the validator error.
func Validate(v any) error {
	return validate.Struct(v)
}

// DecodeValid decodes the request body into dst and runs tag validation.
// Handlers treat any returned error as a 400.
func DecodeValid(r *http.Request, dst any) error {
	if err := DecodeBody(r, dst); err != nil {
		return err
	}
	return validate.Struct(dst)
}
