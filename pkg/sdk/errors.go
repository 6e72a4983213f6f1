package sdk

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Sentinel errors checked with errors.Is().
var (
	ErrIndexNotFound  = errors.New("sdk: index not found")
	ErrInvalidMapping = errors.New("sdk: invalid mapping")
	ErrMergeConflict  = errors.New("sdk: merge conflict")
)

// APIError is a non-2xx response from the server.
type APIError struct {
	Status    int
	Code      string
	Message   string
	Conflicts []string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sdk: server returned %d (%s): %s", e.Status, e.Code, e.Message)
}

// Unwrap maps well-known error codes to sentinels.
func (e *APIError) Unwrap() error {
	switch e.Code {
	case "index_not_found":
		return ErrIndexNotFound
	case "invalid_mapping", "invalid_document":
		return ErrInvalidMapping
	case "merge_conflict":
		return ErrMergeConflict
	}
	return nil
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil {
		apiErr.Code = "unknown"
		apiErr.Message = string(body)
	}
	return apiErr
}

// UnmarshalJSON reads the server's error envelope.
func (e *APIError) UnmarshalJSON(data []byte) error {
	var env struct {
		Code      string   `json:"code"`
		Message   string   `json:"message"`
		Conflicts []string `json:"conflicts"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	e.Code = env.Code
	e.Message = env.Message
	e.Conflicts = env.Conflicts
	return nil
}
