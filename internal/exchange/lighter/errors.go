package lighter

import (
	"errors"
	"fmt"
	"strings"

	"perp-gateway/internal/core"
)

// APIError is a structured rejection returned by the venue's REST surface.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lighter api error %d: %s", e.Code, e.Message)
}

// classifyAPIError joins the venue error with the matching common sentinel so
// callers can branch with errors.Is without parsing message text themselves.
func classifyAPIError(code int, message string) error {
	apiErr := &APIError{Code: code, Message: message}
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "insufficient"):
		return errors.Join(core.ErrInsufficientBalance, apiErr)
	case strings.Contains(lower, "not found"), strings.Contains(lower, "unknown order"):
		return errors.Join(core.ErrOrderNotFound, apiErr)
	case strings.Contains(lower, "duplicate"), strings.Contains(lower, "nonce already"):
		return errors.Join(core.ErrDuplicateOrder, apiErr)
	case strings.Contains(lower, "timeout"), strings.Contains(lower, "timed out"):
		return errors.Join(core.ErrTimeout, apiErr)
	}
	return apiErr
}

// apiMessage extracts the venue's message for surfacing in an OrderResult.
func apiMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}
