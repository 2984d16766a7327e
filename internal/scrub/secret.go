// Package scrub provides security helpers for removing sensitive data from
// errors and URLs before they reach logs.
package scrub

import (
	"net/url"
	"strings"
)

// Query parameter names that commonly carry credentials on the APIs the
// collectors call.
var secretParams = map[string]bool{
	"api_key":      true,
	"apikey":       true,
	"x_cg_api_key": true,
	"key":          true,
	"token":        true,
	"secret":       true,
	"signature":    true,
}

// SecretFromError removes secret from an error's message.
// Go's http.Client.Do() includes the request URL (which may carry an API key
// as a query parameter) in error strings.
// Preserves the error chain for errors.Is/As via Unwrap().
func SecretFromError(err error, secret string) error {
	if err == nil {
		return nil
	}
	if secret == "" {
		return err
	}
	msg := err.Error()
	if strings.Contains(msg, secret) {
		return &scrubbedError{
			msg: strings.ReplaceAll(msg, secret, "[REDACTED]"),
			err: err,
		}
	}
	return err
}

// URL redacts credential-bearing query parameters for logging.
// A URL that fails to parse is returned unchanged; whatever called with it
// will fail loudly elsewhere.
func URL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	changed := false
	for name := range q {
		if secretParams[strings.ToLower(name)] {
			q.Set(name, "[REDACTED]")
			changed = true
		}
	}
	if !changed {
		return rawURL
	}
	u.RawQuery = q.Encode()
	return u.String()
}

type scrubbedError struct {
	msg string
	err error
}

func (e *scrubbedError) Error() string { return e.msg }
func (e *scrubbedError) Unwrap() error { return e.err }
