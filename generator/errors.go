package generator

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go"
	"google.golang.org/genai"
)

// ErrUnparsablePlan is matched by every plan that could not be read as an outline.
var ErrUnparsablePlan = errors.New("unparsable plan")

// PlanError keeps the raw model output for the logs.
type PlanError struct {
	Raw string
	Err error
}

func (e *PlanError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnparsablePlan, e.Err)
}

func (e *PlanError) Unwrap() error { return e.Err }

func (e *PlanError) Is(target error) bool { return target == ErrUnparsablePlan }

var rotatableStatuses = map[string]bool{
	"UNAUTHENTICATED":    true,
	"PERMISSION_DENIED":  true,
	"RESOURCE_EXHAUSTED": true,
}

// IsRotatable reports whether a backend error is an auth or quota rejection
// that another API key could get past.
func IsRotatable(err error) bool {
	if err == nil {
		return false
	}

	if gerr, ok := asGenaiError(err); ok {
		if rotatableCode(gerr.Code) || rotatableStatuses[gerr.Status] {
			return true
		}
	}
	var oerr *openai.Error
	if errors.As(err, &oerr) && rotatableCode(oerr.StatusCode) {
		return true
	}
	// genai renders its errors as "Error <code>, Message: ..., Status: <STATUS>".
	return isQuotaMessage(err.Error())
}

// asGenaiError finds a genai.APIError in the chain. The SDK returns it by
// value; the pointer form is matched as well.
func asGenaiError(err error) (genai.APIError, bool) {
	var v genai.APIError
	if errors.As(err, &v) {
		return v, true
	}
	var p *genai.APIError
	if errors.As(err, &p) && p != nil {
		return *p, true
	}
	return genai.APIError{}, false
}

func rotatableCode(code int) bool {
	switch code {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return true
	}
	return false
}

func isQuotaMessage(msg string) bool {
	lower := strings.ToLower(msg)
	for _, needle := range []string{
		"rate limit",
		"rate_limit",
		"too many requests",
		"quota",
		"resource_exhausted",
		"api key not valid",
		"api_key_invalid",
		"api key expired",
		"permission_denied",
		"unauthenticated",
	} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}
