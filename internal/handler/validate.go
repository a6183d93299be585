package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/cmdshift-learn/internal/apperror"
)

// maxBodyBytes bounds request bodies; every payload here is a few fields.
const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names so error messages match
// what the client sent.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decodeJSON reads a JSON body into dst and validates it. Every failure is
// an apperror.ErrValidation so writeError answers 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return apperror.ValidationFailed("body", "request body is empty")
		case errors.As(err, &maxErr):
			return apperror.ValidationFailed("body", "request body too large")
		default:
			return apperror.ValidationFailed("body", "invalid JSON body")
		}
	}

	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperror.ValidationFailed(fe.Field(), fieldMessage(fe))
		}
		return apperror.ValidationFailed("body", "invalid payload")
	}
	return nil
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "max":
		return fmt.Sprintf("%s must be at most %s%s", fe.Field(), fe.Param(), lengthUnit(fe))
	case "min":
		return fmt.Sprintf("%s must be at least %s%s", fe.Field(), fe.Param(), lengthUnit(fe))
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", fe.Field())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// lengthUnit is " characters" for string fields, where min and max bound the
// length, and empty for numbers, where they bound the value.
func lengthUnit(fe validator.FieldError) string {
	if fe.Kind() == reflect.String {
		return " characters"
	}
	return ""
}
