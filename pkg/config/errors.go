package config

import (
	"fmt"
)

// DocsURL is included in every missing-credential error.
const DocsURL = "https://github.com/lambdamechanic/scrapinghub-mcp#configuration"

// Error is returned for malformed configuration files and missing credentials.
// Both are fatal at startup.
type Error struct {
	// Path of the offending configuration file, empty when no file was involved.
	Path    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", e.Path, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(path string, err error, format string, args ...any) *Error {
	return &Error{Path: path, Message: fmt.Sprintf(format, args...), Err: err}
}

func missingAPIKeyError(path string) *Error {
	where := "no " + FileName + " was found"
	if path != "" {
		where = path + " does not set auth.api_key"
	}
	return &Error{
		Message: fmt.Sprintf("missing Scrapinghub API key: %s and %s is not set; see %s",
			where, APIKeyEnvVar, DocsURL),
	}
}
