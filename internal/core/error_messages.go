package core

// error_messages.go maps technical errors to user-facing messages with codes
// that can be quoted when reporting a problem.
//
//	FILE001 - Input file not found
//	FILE002 - Input is not valid delimited text
//	FILE003 - Upload too large
//	FILE004 - Input file could not be read
//	FILE005 - Input file has no header
//	SAVE001 - Save retries exhausted
//	SAVE002 - Too many saves in progress
//	SAVE003 - Table holds values that cannot be written
//	PATH001 - Path escapes the data root
//	REQ001  - Request cancelled
//	REQ002  - Request timed out
//	REQ003  - Request malformed
//	DB001   - Database unreachable
//	DB002   - Database table missing
//	DB003   - Database not configured
//	ERR000  - Anything else
//
// Known sentinel errors are matched with errors.Is first. Everything else is
// matched case-insensitively on message substrings; the first match wins.

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

var (
	msgFileNotFound = UserMessage{
		Message: "Input file not found",
		Action:  "Check the path and try again",
		Code:    "FILE001",
	}
	msgInvalidCSV = UserMessage{
		Message: "Input is not valid delimited text",
		Action:  "Ensure every row has at most as many fields as the header and quotes are balanced",
		Code:    "FILE002",
	}
	msgFileRead = UserMessage{
		Message: "Input file could not be read",
		Action:  "Check file permissions and try again",
		Code:    "FILE004",
	}
	msgEmptyFile = UserMessage{
		Message: "Input file has no header",
		Action:  "Provide a file whose first line names the columns",
		Code:    "FILE005",
	}
	msgSaveExhausted = UserMessage{
		Message: "The table could not be saved",
		Action:  "Check that the destination directory exists and is writable",
		Code:    "SAVE001",
	}
	msgTooManySaves = UserMessage{
		Message: "Too many saves in progress",
		Action:  "Please wait a moment and try again",
		Code:    "SAVE002",
	}
	msgInvalidTable = UserMessage{
		Message: "The table holds values that cannot be written",
		Action:  "Check the table contents",
		Code:    "SAVE003",
	}
	msgCancelled = UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "REQ001",
	}
	msgTimeout = UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "REQ002",
	}
)

// sentinelMessages is checked in order with errors.Is. Save failures come
// first because they wrap the filesystem error that caused them.
var sentinelMessages = []struct {
	target error
	msg    UserMessage
}{
	{ErrSaveExhausted, msgSaveExhausted},
	{ErrInvalidTable, msgInvalidTable},
	{ErrTooManySaves, msgTooManySaves},
	{ErrEmptyData, msgEmptyFile},
	{ErrParse, msgInvalidCSV},
	{fs.ErrNotExist, msgFileNotFound},
	{ErrFileRead, msgFileRead},
	{context.Canceled, msgCancelled},
	{context.DeadlineExceeded, msgTimeout},
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns catches errors that cross package or process boundaries
// and lose their sentinel identity.
var errorPatterns = []errorPattern{
	{
		pattern: "outside data root",
		msg: UserMessage{
			Message: "Path is outside the data directory",
			Action:  "Use a path relative to the data directory",
			Code:    "PATH001",
		},
	},
	{
		pattern: "request body too large",
		msg: UserMessage{
			Message: "Upload is too large",
			Action:  "Split the table into smaller files",
			Code:    "FILE003",
		},
	},
	{
		pattern: "bad request",
		msg: UserMessage{
			Message: "Request was malformed",
			Action:  "Check the request parameters and body",
			Code:    "REQ003",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to database",
			Action:  "Please try again in a few moments",
			Code:    "DB001",
		},
	},
	{
		pattern: "does not exist (sqlstate 42p01)",
		msg: UserMessage{
			Message: "Database table does not exist",
			Action:  "Export the table before importing it",
			Code:    "DB002",
		},
	},
	{
		pattern: "database not configured",
		msg: UserMessage{
			Message: "No database is configured",
			Action:  "Set DATABASE_URL to enable database export",
			Code:    "DB003",
		},
	},
	{pattern: "no such file", msg: msgFileNotFound},
	{pattern: "save retries exhausted", msg: msgSaveExhausted},
	{pattern: "context canceled", msg: msgCancelled},
	{pattern: "context deadline exceeded", msg: msgTimeout},
}

// defaultMessage is returned when no pattern matches.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the logs",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// Returns an empty UserMessage for a nil error.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, sm := range sentinelMessages {
		if errors.Is(err, sm.target) {
			return sm.msg
		}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}

	return defaultMessage
}

// FormatUserError creates a formatted error string for display.
// The format is: "Message (Code: XXX). Action"
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific message rather than
// the ERR000 fallback.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user-facing message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err into a UserError. Returns nil if err is nil.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
