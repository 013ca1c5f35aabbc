package larkapi

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imroc/req/v3"
)

var (
	ErrNoServerURL      = errors.New("larkapi: server url missing")
	ErrInvalidServerURL = errors.New("larkapi: server url must be http or https")
	ErrMissingID        = errors.New("larkapi: id missing")
	ErrEmptyUpdate      = errors.New("larkapi: update has no fields")
	ErrInvalidAction    = errors.New("larkapi: invalid resolve action")
)

// APIError is a non-2xx response, or a 2xx response whose body could not be decoded.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("request failed (%d)", e.Status)
}

// errorBody is the backend's error envelope. detail is a string for handled
// errors and a list of {loc, msg} objects for request validation failures.
// Any other structured detail is shown as compact JSON.
type errorBody struct {
	Detail any `json:"detail"`
}

func parseDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var eb errorBody
	if err := jsonUnmarshal(body, &eb); err != nil {
		return ""
	}

	switch d := eb.Detail.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(d)
	case []any:
		if msgs := validationMessages(d); len(msgs) > 0 {
			return strings.Join(msgs, "; ")
		}
	}

	compact, err := jsonMarshal(eb.Detail)
	if err != nil {
		return ""
	}
	return string(compact)
}

func validationMessages(items []any) []string {
	msgs := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case string:
			msgs = append(msgs, v)
		case map[string]any:
			if msg, ok := v["msg"].(string); ok && msg != "" {
				msgs = append(msgs, msg)
			}
		}
	}
	return msgs
}

// handleAPIError folds the three failure kinds into one error:
// transport failures, non-2xx responses, and undecodable bodies.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if resp == nil || resp.Response == nil {
		if requestErr == nil {
			requestErr = errors.New("no response")
		}
		return fmt.Errorf("%s: %w", operation, requestErr)
	}

	if resp.IsErrorState() {
		return fmt.Errorf("%s: %w", operation, &APIError{
			Status: resp.StatusCode,
			Detail: parseDetail(resp.Bytes()),
		})
	}

	// got a 2xx but the body did not decode
	if requestErr != nil {
		return fmt.Errorf("%s: %w", operation, &APIError{Status: resp.StatusCode})
	}

	return nil
}

// ErrorMessage turns any client error into the string shown next to a panel.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Error()
	}
	return err.Error()
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
