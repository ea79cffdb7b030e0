package api

import (
	"errors"
	"fmt"
	"net/http"
)

var ErrNotFound = errors.New("not found")

// Error is a non-2xx response from the booking API.
type Error struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("booking api status %d", e.Status)
	}
	return fmt.Sprintf("booking api status %d: %s: %s", e.Status, e.Code, e.Message)
}

func (e *Error) Is(target error) bool {
	return target == ErrNotFound && e.Status == http.StatusNotFound
}
