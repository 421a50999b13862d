package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

const maxSnippetLength = 200

// ErrBodyTooLarge is returned when a response body exceeds the read limit.
var ErrBodyTooLarge = errors.New("response body too large")

// HTTPError reports a non-2xx response from the service.
type HTTPError struct {
	StatusCode int
	URL        string
	// Body holds the start of the response body, trimmed.
	Body string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("DOPA service returned HTTP %d for %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("DOPA service returned HTTP %d for %s: %s", e.StatusCode, e.URL, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func snippet(body []byte) string {
	text := strings.TrimSpace(string(body))
	if len(text) <= maxSnippetLength {
		return text
	}
	cut := maxSnippetLength
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut] + "..."
}
