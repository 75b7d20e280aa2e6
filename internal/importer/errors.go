package importer

// errors.go defines the typed failure outcomes of the pipeline and maps them
// to user-friendly messages with stable codes for support reference.
//
// Error codes are grouped by category:
//
//	VAL001 - Missing columns: the sku or quantity column was not found
//	VAL002 - Empty file: the uploaded file has no rows
//	VAL003 - No valid rows: every data row was blank or invalid
//	VAL004 - Missing customer: no customer was selected for the upload
//	FILE001 - File too large or unreadable
//	ORD001 - Nothing to order: no reconciled row is includable
//	ORD002 - Order creation failed at the external service
//	RATE001 - Too many concurrent uploads
//	ERR000 - Fallback for unrecognized errors

import (
	"errors"
	"fmt"
	"strings"
)

// Validation failures reported to the operator. These are user-caused:
// no retry, no partial state.
var (
	ErrEmptyFile       = errors.New("empty file")
	ErrNoValidRows     = errors.New("no valid rows in file")
	ErrMissingCustomer = errors.New("customer name and id are required")
	ErrNothingToOrder  = errors.New("no rows are eligible to order")
)

// MissingColumnsError is returned when the sku or quantity column cannot
// be located in the header row.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ExternalServiceError wraps a failure of the order-creation service.
// It aborts the whole confirm; the operator's row snapshot stays intact
// so the confirm can be retried without re-uploading.
type ExternalServiceError struct {
	Op  string // operation that failed, e.g. "order create"
	Err error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

// UserMessage provides user-friendly error information with actionable guidance.
type UserMessage struct {
	Message string // What happened (user-friendly)
	Action  string // What to do about it
	Code    string // Error code for support reference
}

// MapError translates a pipeline error into a UserMessage. Typed errors are
// matched first; string patterns cover errors arriving from lower layers.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	var missingCols *MissingColumnsError
	if errors.As(err, &missingCols) {
		return UserMessage{
			Message: fmt.Sprintf("The file is missing required columns: %s.", strings.Join(missingCols.Missing, ", ")),
			Action:  "Add a SKU column and a Quantity (or Qty) column to the header row.",
			Code:    "VAL001",
		}
	}

	var external *ExternalServiceError
	if errors.As(err, &external) {
		return UserMessage{
			Message: "The order could not be created.",
			Action:  "Your reviewed rows are unchanged. Try confirming again in a moment.",
			Code:    "ORD002",
		}
	}

	switch {
	case errors.Is(err, ErrEmptyFile):
		return UserMessage{
			Message: "The uploaded file is empty.",
			Action:  "Upload a file with a header row and at least one data row.",
			Code:    "VAL002",
		}
	case errors.Is(err, ErrNoValidRows):
		return UserMessage{
			Message: "No valid rows were found in the file.",
			Action:  "Every row needs a SKU and a positive quantity.",
			Code:    "VAL003",
		}
	case errors.Is(err, ErrMissingCustomer):
		return UserMessage{
			Message: "No customer was selected.",
			Action:  "Pick a customer before uploading the order sheet.",
			Code:    "VAL004",
		}
	case errors.Is(err, ErrNothingToOrder):
		return UserMessage{
			Message: "None of the reviewed rows can be ordered.",
			Action:  "At least one row must have stock and a matching catalog entry.",
			Code:    "ORD001",
		}
	case errors.Is(err, ErrTooManyUploads):
		return UserMessage{
			Message: "Too many uploads are being processed right now.",
			Action:  "Please wait a moment and try again.",
			Code:    "RATE001",
		}
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "request body too large"),
		strings.Contains(lower, "file too large"):
		return UserMessage{
			Message: "The uploaded file is too large.",
			Action:  "Split the order sheet into smaller files.",
			Code:    "FILE001",
		}
	case strings.Contains(lower, "invalid csv"),
		strings.Contains(lower, "unsupported file format"):
		return UserMessage{
			Message: "The file could not be read as a spreadsheet or CSV.",
			Action:  "Export the sheet as .csv or .xlsx and upload again.",
			Code:    "FILE002",
		}
	case strings.Contains(lower, "context canceled"),
		strings.Contains(lower, "context deadline exceeded"):
		return UserMessage{
			Message: "The request was interrupted.",
			Action:  "Please try again.",
			Code:    "UPL001",
		}
	}

	return UserMessage{
		Message: "An unexpected error occurred.",
		Action:  "Please try again or contact support with the error code.",
		Code:    "ERR000",
	}
}
