package errors

import (
	"encoding/json"
	"fmt"
	"strings"
)

// FormatForUser returns a user-facing rendering of err: message,
// suggestion when present, and the code for reference.
func FormatForUser(err error, debug bool) string {
	if err == nil {
		return ""
	}

	ke, ok := err.(*KGError)
	if !ok {
		return err.Error()
	}

	var sb strings.Builder
	sb.WriteString("Error: ")
	sb.WriteString(ke.Message)
	sb.WriteString("\n")

	if ke.Suggestion != "" {
		sb.WriteString("\nSuggestion: ")
		sb.WriteString(ke.Suggestion)
		sb.WriteString("\n")
	}

	sb.WriteString(fmt.Sprintf("\n[%s]", ke.Code))

	if debug && ke.Cause != nil {
		sb.WriteString(fmt.Sprintf("\nCause: %v", ke.Cause))
	}

	return sb.String()
}

// FormatForCLI renders err in the concise form the CLI prints to
// stderr. Non-KGErrors are wrapped as internal.
func FormatForCLI(err error) string {
	if err == nil {
		return ""
	}

	ke, ok := err.(*KGError)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Error: %s\n", ke.Message))
	if ke.Suggestion != "" {
		sb.WriteString(fmt.Sprintf("  Hint: %s\n", ke.Suggestion))
	}
	sb.WriteString(fmt.Sprintf("  Code: %s\n", ke.Code))

	return sb.String()
}

// jsonError is the JSON representation of an error.
type jsonError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Category   string            `json:"category"`
	Severity   string            `json:"severity"`
	Details    map[string]string `json:"details,omitempty"`
	Suggestion string            `json:"suggestion,omitempty"`
	Cause      string            `json:"cause,omitempty"`
	Retryable  bool              `json:"retryable"`
}

// FormatJSON returns a JSON rendering, suitable for machine consumption.
func FormatJSON(err error) ([]byte, error) {
	if err == nil {
		return json.Marshal(nil)
	}

	ke, ok := err.(*KGError)
	if !ok {
		ke = Wrap(ErrCodeInternal, err)
	}

	je := jsonError{
		Code:       ke.Code,
		Message:    ke.Message,
		Category:   string(ke.Category),
		Severity:   string(ke.Severity),
		Details:    ke.Details,
		Suggestion: ke.Suggestion,
		Retryable:  ke.Retryable,
	}
	if ke.Cause != nil {
		je.Cause = ke.Cause.Error()
	}

	return json.Marshal(je)
}

// FormatForLog returns key-value pairs suitable for slog attributes.
func FormatForLog(err error) map[string]any {
	if err == nil {
		return nil
	}

	ke, ok := err.(*KGError)
	if !ok {
		return map[string]any{"error": err.Error()}
	}

	result := map[string]any{
		"error_code": ke.Code,
		"message":    ke.Message,
		"category":   string(ke.Category),
		"severity":   string(ke.Severity),
		"retryable":  ke.Retryable,
	}
	if ke.Cause != nil {
		result["cause"] = ke.Cause.Error()
	}
	if ke.Suggestion != "" {
		result["suggestion"] = ke.Suggestion
	}
	for k, v := range ke.Details {
		result["detail_"+k] = v
	}

	return result
}
