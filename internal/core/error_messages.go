// # Error Codes Reference
//
// This file defines user-friendly error messages with codes for support reference.
// When users encounter errors, they can quote the error code to support staff
// for faster diagnosis.
//
// Error codes are grouped by category:
//
// # Storage Errors (DB001-DB099)
//
// Errors from the template and audit stores:
//
//	DB001 - Duplicate key: A record with this ID already exists
//	        Patterns: "duplicate key"
//	DB002 - Unique constraint: This value must be unique but already exists
//	        Patterns: "unique constraint", "violates unique"
//	DB004 - Connection refused: Unable to connect to storage
//	        Patterns: "connection refused"
//	DB005 - Connection reset: Storage connection was interrupted
//	        Patterns: "connection reset"
//	DB006 - Timeout: Operation timed out
//	        Patterns: "timeout"
//
// # Validation Errors (VAL001-VAL099)
//
//	VAL001 - Invalid date: Invalid date format detected
//	         Patterns: "invalid date"
//	VAL002 - Invalid number: Invalid number format detected
//	         Patterns: "invalid number"
//	VAL003 - Required field: Required field is empty
//	         Patterns: "required field", "this field is required"
//	VAL004 - Missing column: Required column is not mapped
//	         Patterns: "required columns not mapped"
//	VAL005 - Invalid mapping: A column is mapped twice or does not exist
//	         Patterns: "invalid mapping"
//	VAL006 - Invalid request: A request field is missing or malformed
//	         Patterns: "invalid input", "bad request"
//
// # File Errors (FILE001-FILE099)
//
//	FILE001 - File too large: File exceeds maximum size limit (10MB)
//	          Patterns: "file too large"
//	FILE002 - Invalid CSV: File is not a valid CSV
//	          Patterns: "invalid csv"
//	FILE003 - Encoding error: File contains invalid characters
//	          Patterns: "encoding error"
//	FILE004 - No file: No file was selected
//	          Patterns: "no file provided"
//	FILE005 - Empty file: The uploaded file is empty
//	          Patterns: "empty file"
//	FILE006 - Unsupported type: Only CSV and XLSX files can be imported
//	          Patterns: "unsupported file type"
//	FILE007 - Invalid spreadsheet: The workbook could not be read
//	          Patterns: "invalid xlsx"
//
// # Import Errors (IMP001-IMP099)
//
// Errors related to the import flow and session management:
//
//	IMP001 - Import blocked: Validation errors or unmapped required columns remain
//	         Patterns: "import blocked"
//	IMP002 - Invalid step: The session is not in a state that allows this action
//	         Patterns: "invalid session transition"
//	IMP003 - System busy: Too many imports in progress
//	         Patterns: "too many imports"
//	IMP004 - Session expired: Import session not found
//	         Patterns: "session not found"
//	IMP005 - Import cancelled: Import was cancelled by user
//	         Patterns: "import cancelled"
//	IMP006 - Request cancelled: Request was cancelled
//	         Patterns: "context canceled"
//	IMP007 - Request timeout: Request timed out
//	         Patterns: "context deadline exceeded"
//
// # Table and Template Errors (TBL001-TBL099)
//
//	TBL001 - Table not found: The specified table does not exist
//	         Patterns: "table not found"
//	TBL002 - Unknown table: Table is not configured
//	         Patterns: "unknown table"
//	TBL003 - Template not found: The mapping template does not exist
//	         Patterns: "template not found"
//	TBL004 - Template exists: A template with this name already exists
//	         Patterns: "template already exists"
//
// # Rate Limiting (RATE001-RATE099)
//
//	RATE001 - Rate limited: Too many requests
//	          Patterns: "rate limit"
//
// # Default Error (ERR000)
//
// Fallback when no specific pattern matches:
//
//	ERR000 - Unknown error: An unexpected error occurred
//
// # Pattern Matching
//
// Error patterns are matched case-insensitively using strings.Contains.
// The first matching pattern wins, so more specific patterns should be
// defined before general ones. Multiple patterns can map to the same code
// (e.g., DB002 matches both "unique constraint" and "violates unique").

package core

import (
	"fmt"
	"strings"
)

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// errorPattern defines a pattern to match and its corresponding user message.
type errorPattern struct {
	pattern string
	msg     UserMessage
}

// errorPatterns maps technical error patterns (case-insensitive) to user messages.
// Patterns are matched using strings.Contains, so partial matches work.
// The first matching pattern wins, so order matters:
//   - More specific patterns should come before general ones
//   - Multiple patterns can map to the same error code
//
// To add a new error pattern:
//  1. Choose the appropriate category and code range
//  2. Add the pattern in the correct position (specific before general)
//  3. Update the package documentation at the top of this file
var errorPatterns = []errorPattern{
	// =========================================================================
	// Storage Errors (DB001-DB006)
	// These errors come from the template and audit stores.
	// =========================================================================
	{
		pattern: "duplicate key",
		msg: UserMessage{
			Message: "A record with this ID already exists",
			Action:  "Use a different name or ID",
			Code:    "DB001",
		},
	},
	{
		pattern: "unique constraint",
		msg: UserMessage{
			Message: "This value must be unique but already exists",
			Action:  "Choose a different name",
			Code:    "DB002",
		},
	},
	{
		pattern: "violates unique",
		msg: UserMessage{
			Message: "A duplicate value was found",
			Action:  "Choose a different name",
			Code:    "DB002",
		},
	},
	{
		pattern: "connection refused",
		msg: UserMessage{
			Message: "Unable to connect to storage",
			Action:  "Please try again in a few moments",
			Code:    "DB004",
		},
	},
	{
		pattern: "connection reset",
		msg: UserMessage{
			Message: "Storage connection was interrupted",
			Action:  "Please try again",
			Code:    "DB005",
		},
	},

	// =========================================================================
	// Import Errors (IMP001-IMP007)
	// These errors occur while moving a session through the import flow.
	// =========================================================================
	{
		pattern: "import blocked",
		msg: UserMessage{
			Message: "The import cannot start yet",
			Action:  "Fix all validation errors and map every required column",
			Code:    "IMP001",
		},
	},
	{
		pattern: "invalid session transition",
		msg: UserMessage{
			Message: "This step is not available right now",
			Action:  "Reload the session and follow the import steps in order",
			Code:    "IMP002",
		},
	},
	{
		pattern: "too many imports",
		msg: UserMessage{
			Message: "System is busy processing other imports",
			Action:  "Please wait a moment and try again",
			Code:    "IMP003",
		},
	},
	{
		pattern: "session not found",
		msg: UserMessage{
			Message: "Import session not found",
			Action:  "The session may have expired. Please upload the file again",
			Code:    "IMP004",
		},
	},
	{
		pattern: "import cancelled",
		msg: UserMessage{
			Message: "Import was cancelled",
			Action:  "Start a new import when ready",
			Code:    "IMP005",
		},
	},
	{
		pattern: "context canceled",
		msg: UserMessage{
			Message: "Request was cancelled",
			Action:  "Please try again",
			Code:    "IMP006",
		},
	},
	{
		pattern: "context deadline exceeded",
		msg: UserMessage{
			Message: "Request timed out",
			Action:  "Try a smaller file or check your connection",
			Code:    "IMP007",
		},
	},
	{
		pattern: "timeout",
		msg: UserMessage{
			Message: "Operation timed out",
			Action:  "Try a smaller file or try again later",
			Code:    "DB006",
		},
	},

	// =========================================================================
	// Validation Errors (VAL001-VAL005)
	// These errors occur when data doesn't match expected formats.
	// =========================================================================
	{
		pattern: "invalid date",
		msg: UserMessage{
			Message: "Invalid date format detected",
			Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
			Code:    "VAL001",
		},
	},
	{
		pattern: "invalid number",
		msg: UserMessage{
			Message: "Invalid number format detected",
			Action:  "Remove currency symbols and use standard decimal format",
			Code:    "VAL002",
		},
	},
	{
		pattern: "required field",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "this field is required",
		msg: UserMessage{
			Message: "Required field is empty",
			Action:  "Ensure all required columns have values",
			Code:    "VAL003",
		},
	},
	{
		pattern: "required columns not mapped",
		msg: UserMessage{
			Message: "Required column is not mapped",
			Action:  "Map every required column or give it a default value",
			Code:    "VAL004",
		},
	},
	{
		pattern: "invalid mapping",
		msg: UserMessage{
			Message: "Column mapping is invalid",
			Action:  "Map each table column from at most one file column",
			Code:    "VAL005",
		},
	},
	{
		pattern: "invalid input",
		msg: UserMessage{
			Message: "Some of the submitted values are invalid",
			Action:  "Check the request and try again",
			Code:    "VAL006",
		},
	},
	{
		pattern: "bad request",
		msg: UserMessage{
			Message: "Some of the submitted values are invalid",
			Action:  "Check the request and try again",
			Code:    "VAL006",
		},
	},

	// =========================================================================
	// File Errors (FILE001-FILE007)
	// These errors occur when reading uploaded files.
	// =========================================================================
	{
		pattern: "file too large",
		msg: UserMessage{
			Message: "File exceeds maximum size limit (10MB)",
			Action:  "Split the file into smaller chunks",
			Code:    "FILE001",
		},
	},
	{
		pattern: "invalid csv",
		msg: UserMessage{
			Message: "File is not a valid CSV",
			Action:  "Ensure file is comma-separated with consistent columns",
			Code:    "FILE002",
		},
	},
	{
		pattern: "encoding error",
		msg: UserMessage{
			Message: "File contains invalid characters",
			Action:  "Save file as UTF-8 encoding",
			Code:    "FILE003",
		},
	},
	{
		pattern: "no file provided",
		msg: UserMessage{
			Message: "No file was selected",
			Action:  "Please select a CSV or XLSX file to upload",
			Code:    "FILE004",
		},
	},
	{
		pattern: "empty file",
		msg: UserMessage{
			Message: "The uploaded file is empty",
			Action:  "Please upload a file with a header row and data rows",
			Code:    "FILE005",
		},
	},
	{
		pattern: "unsupported file type",
		msg: UserMessage{
			Message: "Only CSV and XLSX files can be imported",
			Action:  "Save the file as .csv or .xlsx and try again",
			Code:    "FILE006",
		},
	},
	{
		pattern: "invalid xlsx",
		msg: UserMessage{
			Message: "The workbook could not be read",
			Action:  "Open the file in a spreadsheet program and save it again as .xlsx",
			Code:    "FILE007",
		},
	},

	// =========================================================================
	// Table and Template Errors (TBL001-TBL004)
	// These errors occur when looking up tables and templates.
	// =========================================================================
	{
		pattern: "table not found",
		msg: UserMessage{
			Message: "Table not found",
			Action:  "Verify the table name is correct",
			Code:    "TBL001",
		},
	},
	{
		pattern: "unknown table",
		msg: UserMessage{
			Message: "Unknown table",
			Action:  "This table is not configured",
			Code:    "TBL002",
		},
	},
	{
		pattern: "template not found",
		msg: UserMessage{
			Message: "Mapping template not found",
			Action:  "Refresh the template list and try again",
			Code:    "TBL003",
		},
	},
	{
		pattern: "template already exists",
		msg: UserMessage{
			Message: "A template with this name already exists",
			Action:  "Choose a different template name",
			Code:    "TBL004",
		},
	},

	// =========================================================================
	// Rate Limiting (RATE001)
	// These errors occur when request limits are exceeded.
	// =========================================================================
	{
		pattern: "rate limit",
		msg: UserMessage{
			Message: "Too many requests",
			Action:  "Please wait a moment before trying again",
			Code:    "RATE001",
		},
	},
}

// defaultMessage is returned when no pattern matches (ERR000).
// This is the fallback for unexpected errors. Support staff should check
// application logs for the original technical error when users report ERR000.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message.
// It searches through known error patterns (case-insensitive) and returns
// the first match. If no pattern matches, a generic fallback message with
// code ERR000 is returned.
//
// Example:
//
//	err := errors.New("duplicate key violation")
//	msg := MapError(err)
//	// msg.Code == "DB001"
//	// msg.Message == "A record with this ID already exists"
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
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
//
// Example output: "A record with this ID already exists (Code: DB001). Use a different name or ID"
//
// This is the primary function for displaying errors to end users.
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing checks if an error matches a known pattern and should be shown to users.
// Returns true if the error matches a specific pattern (not the generic ERR000 fallback).
// Use this to decide whether to show the raw error or the mapped user message.
//
// Example:
//
//	if IsUserFacing(err) {
//	    showToUser(FormatUserError(err))
//	} else {
//	    log.Error(err) // Log technical error
//	    showToUser("An error occurred. Please try again.")
//	}
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	msg := MapError(err)
	return msg.Code != defaultMessage.Code
}

// WrapWithUserMessage wraps a technical error with a user-friendly message.
// The original error is preserved for logging while providing a clean message for users.
type UserError struct {
	Technical error       // Original technical error for logging
	User      UserMessage // User-friendly message for display
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError creates a UserError by mapping a technical error to a user-friendly message.
// The returned UserError preserves the original technical error for logging via Unwrap(),
// while providing a clean user message via Error().
//
// Returns nil if err is nil.
//
// Example:
//
//	ue := NewUserError(dbErr)
//	log.Error(ue.Technical)          // Log original error
//	fmt.Println(ue.Error())           // Show "A record with this ID already exists"
//	fmt.Println(ue.User.Code)         // Show "DB001"
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{
		Technical: err,
		User:      MapError(err),
	}
}
