package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// DecodeJSON decodes the request body into dst and runs struct validation.
// Failures are reported as VALIDATION errors with per-field details.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return ValidationError("request body is required")
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return &AppError{Code: CodeValidation, Message: "invalid request body", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	if err := validate.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			details := make(map[string]string, len(fieldErrs))
			for _, fe := range fieldErrs {
				details[strings.ToLower(fe.Field())] = fe.Tag()
			}
			return &AppError{Code: CodeValidation, Message: "invalid request body", HTTPStatus: http.StatusBadRequest, Details: details}
		}
		return &AppError{Code: CodeValidation, Message: "invalid request body", HTTPStatus: http.StatusBadRequest, Err: err}
	}
	return nil
}
