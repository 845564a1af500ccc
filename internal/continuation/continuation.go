// Package continuation carries pending authorization state through redirects
// and form posts as base64(JSON).
//
// The encoding is reversible, not authenticated. Callers must re-validate
// anything privilege relevant (the client id) after decoding.
package continuation

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	dErrors "mcpauth/pkg/domain-errors"
)

// DecodeError reports a continuation that is not base64(JSON). It always maps
// to a 400 and is never retried.
type DecodeError struct {
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return "invalid continuation: " + e.Reason + ": " + e.Err.Error()
	}
	return "invalid continuation: " + e.Reason
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Encode marshals v to JSON and returns it as padded standard base64, the
// same alphabet browsers produce with btoa.
func Encode(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode continuation: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Decode reverses Encode into v. Failures are wrapped as
// dErrors.CodeBadRequest around a *DecodeError.
func Decode(s string, v any) error {
	if s == "" {
		return badRequest(&DecodeError{Reason: "empty"})
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return badRequest(&DecodeError{Reason: "malformed base64", Err: err})
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return badRequest(&DecodeError{Reason: "malformed json", Err: err})
	}
	return nil
}

func badRequest(err *DecodeError) error {
	return dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid state")
}
