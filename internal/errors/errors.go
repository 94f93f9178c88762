package errors

import "fmt"

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// AppError carries a stable code alongside the human readable messages.
// Two AppErrors match under errors.Is when their codes are equal, so the
// package-level sentinels below can be compared against wrapped instances.
type AppError struct {
	Code        string
	Message     string
	UserMessage string
	Severity    Severity
	Retryable   bool
	cause       error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok || e == nil || t == nil {
		return false
	}

	return e.Code == t.Code
}

// Ledger outcomes. Business failures are Low severity and surfaced to the
// caller; faults are High and end up in Sentry.
var (
	ErrValidation = &AppError{
		Code:        "E100",
		Message:     "validation failed",
		UserMessage: "Invalid input",
		Severity:    SeverityLow,
	}
	ErrPhoneTaken = &AppError{
		Code:        "E101",
		Message:     "phone already registered",
		UserMessage: "This phone number is already registered",
		Severity:    SeverityLow,
	}
	ErrInvalidCredentials = &AppError{
		Code:        "E110",
		Message:     "invalid credentials",
		UserMessage: "Wrong phone number or PIN",
		Severity:    SeverityLow,
	}
	ErrInvalidAmount = &AppError{
		Code:        "E120",
		Message:     "invalid amount",
		UserMessage: "Amount must be a positive number",
		Severity:    SeverityLow,
	}
	ErrSelfTransfer = &AppError{
		Code:        "E121",
		Message:     "self transfer",
		UserMessage: "You cannot send money to yourself",
		Severity:    SeverityLow,
	}
	ErrReceiverNotFound = &AppError{
		Code:        "E122",
		Message:     "receiver not found",
		UserMessage: "Receiver not found",
		Severity:    SeverityLow,
	}
	ErrInsufficientFunds = &AppError{
		Code:        "E123",
		Message:     "insufficient funds",
		UserMessage: "Insufficient funds",
		Severity:    SeverityLow,
	}
	ErrAccountNotFound = &AppError{
		Code:        "E130",
		Message:     "account not found",
		UserMessage: "Account not found",
		Severity:    SeverityLow,
	}
	ErrStorageFault = &AppError{
		Code:        "E200",
		Message:     "storage fault",
		UserMessage: "Temporary problem, please try again later",
		Severity:    SeverityCritical,
	}
	ErrNotificationFault = &AppError{
		Code:        "E300",
		Message:     "notification fault",
		UserMessage: "Notification service is unavailable",
		Severity:    SeverityMedium,
		Retryable:   true,
	}
	ErrInternal = &AppError{
		Code:        "E900",
		Message:     "internal error",
		UserMessage: defaultUserMessage,
		Severity:    SeverityCritical,
	}
)

// Wrap returns a copy of kind with a cause attached. A nil cause keeps the
// kind's message as is.
func Wrap(kind *AppError, cause error) *AppError {
	e := *kind
	e.cause = cause
	return &e
}

// Wrapf is Wrap with a formatted detail appended to the message.
func Wrapf(kind *AppError, format string, args ...any) *AppError {
	e := *kind
	e.Message = kind.Message + ": " + fmt.Sprintf(format, args...)
	return &e
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:        ErrValidation.Code,
		Message:     msg,
		UserMessage: fmt.Sprintf("Invalid input. %s", msg),
		Severity:    SeverityLow,
	}
}

func NewStorageError(cause error) *AppError {
	return Wrap(ErrStorageFault, cause)
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	e := Wrap(ErrNotificationFault, cause)
	e.Message = fmt.Sprintf("external API error: %s", apiName)
	return e
}

func NewStateError(msg string) *AppError {
	return &AppError{
		Code:        "E400",
		Message:     msg,
		UserMessage: "Operation is not available right now",
		Severity:    SeverityMedium,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:        "E500",
		Message:     fmt.Sprintf("rate limit exceeded: retry after %d seconds", retryAfter),
		UserMessage: fmt.Sprintf("Too many requests. Try again in %d seconds", retryAfter),
		Severity:    SeverityLow,
	}
}

// UserMessage returns the text safe to show to an end user.
func UserMessage(err error) string {
	var appErr *AppError
	if As(err, &appErr) && appErr.UserMessage != "" {
		return appErr.UserMessage
	}

	return defaultUserMessage
}

const defaultUserMessage = "Something went wrong. Please try again later"
