package validation

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/feedback-system/feedback-system/internal/apperrors"
)

// MsgInvalidBody is returned for a request body that is not the expected JSON.
const MsgInvalidBody = "Invalid request body."

// BindError converts a JSON binding failure into a validation error. A value of the
// wrong type names the offending field.
func BindError(err error) error {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return apperrors.Validation("Validation failed.", typeErr.Field+" has the wrong type")
	}
	if errors.Is(err, io.EOF) {
		return apperrors.Validation(MsgInvalidBody, "Request body is empty")
	}
	return apperrors.Validation(MsgInvalidBody)
}
