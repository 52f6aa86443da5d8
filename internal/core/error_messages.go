package core

// # Error Codes Reference
//
// Errors shown to users carry a short code they can quote when asking for
// help. Codes are grouped by the part of the system that failed.
//
// # Configuration (CFG001-CFG099)
//
//	CFG001 - Missing configuration: a required setting is not set
//	         Action: Set the listed environment variables and restart
//	         Patterns: "required environment variables not set"
//
//	CFG002 - Invalid configuration: a setting has an unusable value
//	         Action: Check the listed settings and restart
//	         Patterns: "validation failed", "invalid value for"
//
// # Spreadsheet (SHEET001-SHEET099)
//
//	SHEET001 - Fetch failed: the spreadsheet could not be read
//	           Action: Check the spreadsheet id, sheet name and API key, then refresh
//	           Matches: sheets.ErrFetch
//
//	SHEET002 - Unreadable sheet: rows did not match the configured columns
//	           Action: Check that the schema variant matches the sheet layout
//	           Matches: sheets.ErrDecode
//
// # Messaging (MSG001-MSG099)
//
//	MSG001 - Invalid template form: one or more fields need attention
//	         Action: Fix the highlighted fields and submit again
//	         Matches: *messaging.ValidationError
//
//	MSG002 - Image too large: the header image exceeds the upload limit
//	         Action: Use a smaller image
//	         Matches: messaging.ErrImageTooLarge
//
//	MSG003 - Messaging API rejected the request
//	         Action: Check the token and template name, then download the error report
//	         Matches: *messaging.APIError
//
//	MSG004 - Invalid image: the image could not be read
//	         Action: Choose a PNG or JPEG file
//	         Patterns: "data url"
//
// # Batches (BAT001-BAT099)
//
//	BAT001 - No recipients: nothing is selected
//	         Action: Select at least one row
//	         Matches: ErrNoTargets
//
//	BAT002 - System busy: another batch is still sending
//	         Action: Wait for the running batch to finish and try again
//	         Matches: ErrTooManyBatches
//
//	BAT003 - Batch not found: the batch id is unknown or has expired
//	         Action: Check the batch history
//	         Matches: ErrBatchNotFound
//
//	BAT004 - No error report: the batch has no errors to download
//	         Action: None needed
//	         Matches: ErrNoReport
//
//	BAT005 - Request cancelled
//	         Action: Please try again
//	         Matches: context.Canceled
//
//	BAT006 - Request timed out
//	         Action: Please try again
//	         Matches: context.DeadlineExceeded
//
// # Table (TBL001-TBL099)
//
//	TBL001 - Unknown column
//	         Action: Refresh the page
//	         Matches: table.ErrUnknownColumn
//
//	TBL002 - Unknown row: the row is not in the current data
//	         Action: Refresh the page
//	         Matches: table.ErrUnknownRow
//
//	TBL003 - Column cannot be hidden
//	         Action: None needed
//	         Patterns: "cannot be hidden"
//
// # Other
//
//	REQ001  - Malformed request body
//	RATE001 - Too many requests
//	GATE001 - Dashboard is locked
//	ERR000  - Anything else; check the server logs

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/sheets"
	"github.com/JonMunkholm/leaddesk/internal/table"
)

// UserMessage is an error as shown to a user.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

// errorMatch recognizes an error by identity or type.
type errorMatch struct {
	match func(error) bool
	msg   UserMessage
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

func as[T error]() func(error) bool {
	return func(err error) bool {
		var t T
		return errors.As(err, &t)
	}
}

// errorMatches is checked before errorPatterns. Order matters: the first
// match wins.
var errorMatches = []errorMatch{
	{is(sheets.ErrFetch), UserMessage{
		Message: "Could not load the spreadsheet",
		Action:  "Check the spreadsheet id, sheet name and API key, then refresh",
		Code:    "SHEET001",
	}},
	{is(sheets.ErrDecode), UserMessage{
		Message: "The spreadsheet rows do not match the configured columns",
		Action:  "Check that the schema variant matches the sheet layout",
		Code:    "SHEET002",
	}},
	{as[*messaging.ValidationError](), UserMessage{
		Message: "The template form has invalid fields",
		Action:  "Fix the highlighted fields and submit again",
		Code:    "MSG001",
	}},
	{is(messaging.ErrImageTooLarge), UserMessage{
		Message: "The header image is too large",
		Action:  "Use a smaller image",
		Code:    "MSG002",
	}},
	{as[*messaging.APIError](), UserMessage{
		Message: "The messaging service rejected the request",
		Action:  "Check the token and template name, then download the error report",
		Code:    "MSG003",
	}},
	{is(ErrNoTargets), UserMessage{
		Message: "No recipients selected",
		Action:  "Select at least one row",
		Code:    "BAT001",
	}},
	{is(ErrTooManyBatches), UserMessage{
		Message: "Another batch is still sending",
		Action:  "Wait for the running batch to finish and try again",
		Code:    "BAT002",
	}},
	{is(ErrBatchNotFound), UserMessage{
		Message: "Batch not found",
		Action:  "The batch may have expired. Check the batch history",
		Code:    "BAT003",
	}},
	{is(ErrNoReport), UserMessage{
		Message: "This batch has no error report",
		Action:  "No errors were recorded",
		Code:    "BAT004",
	}},
	{is(context.Canceled), UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "BAT005",
	}},
	{is(context.DeadlineExceeded), UserMessage{
		Message: "Request timed out",
		Action:  "Please try again",
		Code:    "BAT006",
	}},
	{is(table.ErrUnknownColumn), UserMessage{
		Message: "Unknown column",
		Action:  "Refresh the page",
		Code:    "TBL001",
	}},
	{is(table.ErrUnknownRow), UserMessage{
		Message: "That row is no longer in the data",
		Action:  "Refresh the page",
		Code:    "TBL002",
	}},
}

// errorPatterns maps error text to messages for errors without a sentinel.
// Patterns are matched case-insensitively.
var errorPatterns = []struct {
	pattern string
	msg     UserMessage
}{
	{
		pattern: "required environment variables not set",
		msg: UserMessage{
			Message: "Required configuration is missing",
			Action:  "Set the listed environment variables and restart",
			Code:    "CFG001",
		},
	},
	{
		pattern: "validation failed",
		msg: UserMessage{
			Message: "Configuration is invalid",
			Action:  "Check the listed settings and restart",
			Code:    "CFG002",
		},
	},
	{
		pattern: "invalid value for",
		msg: UserMessage{
			Message: "Configuration is invalid",
			Action:  "Check the listed settings and restart",
			Code:    "CFG002",
		},
	},
	{
		pattern: "data url",
		msg: UserMessage{
			Message: "The image could not be read",
			Action:  "Choose a PNG or JPEG file",
			Code:    "MSG004",
		},
	},
	{
		pattern: "cannot be hidden",
		msg: UserMessage{
			Message: "This column cannot be hidden",
			Action:  "Hide a different column",
			Code:    "TBL003",
		},
	},
	{
		pattern: "bad request:",
		msg: UserMessage{
			Message: "The request could not be read",
			Action:  "Refresh the page and try again",
			Code:    "REQ001",
		},
	},
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
	{
		pattern: "dashboard is locked",
		msg: UserMessage{
			Message: "The dashboard is locked",
			Action:  "Unlock it with the dashboard password",
			Code:    "GATE001",
		},
	},
}

// defaultMessage is the fallback (ERR000). The technical error is in the logs.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or check the server logs",
	Code:    "ERR000",
}

// MapError converts an error into a user-facing message. A nil error maps to
// the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	for _, m := range errorMatches {
		if m.match(err) {
			return m.msg
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

// FormatUserError renders err as "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err maps to a specific code rather than ERR000.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string { return e.User.Message }

func (e *UserError) Unwrap() error { return e.Technical }

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
