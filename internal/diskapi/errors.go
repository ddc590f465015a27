package diskapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/imroc/req/v3"
)

var (
	ErrNotFound      = errors.New("diskapi: resource not found")
	ErrMalformedLink = errors.New("diskapi: response has no href")
)

// APIError is a non-success answer from the disk API.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"error"`
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Description
	}
	if e.Code == "" && msg == "" {
		return fmt.Sprintf("api error: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api error: status %d: %s - %s", e.StatusCode, e.Code, msg)
}

// IsConflict reports a 409 answer, which the API uses for "already exists".
func (e *APIError) IsConflict() bool {
	return e.StatusCode == http.StatusConflict
}

// newAPIError builds an APIError from an error-state response, falling back
// to the raw body when it is not the usual JSON error document.
func newAPIError(resp *req.Response) *APIError {
	apiErr := &APIError{}
	if body := resp.Bytes(); len(body) > 0 {
		if err := jsonUnmarshal(body, apiErr); err != nil {
			apiErr.Message = string(body)
		}
	}
	apiErr.StatusCode = resp.GetStatusCode()
	return apiErr
}

// handleAPIError covers the cases every call shares: transport failures and
// statuses the caller did not expect.
func handleAPIError(resp *req.Response, requestErr error, operation string) error {
	if requestErr != nil {
		return fmt.Errorf("diskapi: %s: %w", operation, requestErr)
	}
	if resp.GetStatusCode() == http.StatusNotFound {
		return fmt.Errorf("diskapi: %s: %w", operation, ErrNotFound)
	}
	return fmt.Errorf("diskapi: %s: %w", operation, newAPIError(resp))
}
