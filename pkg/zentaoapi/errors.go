package zentaoapi

import "fmt"

// AuthError means the token exchange failed or returned no usable token.
// Fatal for the whole session: every dependent call fails the same way until
// the process restarts.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("zentao auth failed: %s", e.Reason)
}

// UpstreamError is a well-formed JSON response carrying an explicit error
// field, encountered mid-scan where a partial result would under-report.
type UpstreamError struct {
	Msg string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("zentao upstream error: %s", e.Msg)
}

// ParseError means a response body was not valid JSON. Snippet holds a
// truncated prefix of the raw body for diagnosis.
type ParseError struct {
	Snippet string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("zentao response parse failed: %s", e.Snippet)
}

// ValidationError means a required argument was missing or unusable. Raised
// before any network call.
type ValidationError struct {
	Param string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Param)
}

// snippet truncates a raw response body for error messages.
func snippet(body []byte) string {
	const max = 200
	if len(body) > max {
		body = body[:max]
	}
	return string(body)
}
