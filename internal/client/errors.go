package client

import (
	"encoding/json"
	"fmt"

	"bookfair/internal/domain"
	"bookfair/internal/validate"
)

// APIError is a non-2xx answer from the server. It unwraps to the matching
// domain sentinel and, for 422s, to the field errors.
type APIError struct {
	Status  int
	Code    string
	Message string
	Fields  validate.FieldErrors
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("bookfair: HTTP %d", e.Status)
	}
	return fmt.Sprintf("bookfair: %s (HTTP %d)", e.Message, e.Status)
}

func (e *APIError) Unwrap() []error {
	var errs []error
	if err := domain.ErrorForCode(e.Code); err != nil {
		errs = append(errs, err)
	}
	if len(e.Fields) > 0 {
		errs = append(errs, e.Fields)
	}
	return errs
}

type errorBody struct {
	Error  string               `json:"error"`
	Code   string               `json:"code"`
	Fields validate.FieldErrors `json:"fields"`
}

func decodeError(status int, body []byte) *APIError {
	e := &APIError{Status: status}
	var eb errorBody
	if err := json.Unmarshal(body, &eb); err == nil {
		e.Code, e.Message, e.Fields = eb.Code, eb.Error, eb.Fields
	}
	if e.Code == "" && status == 401 {
		e.Code = domain.Code(domain.ErrUnauthorized)
	}
	return e
}
