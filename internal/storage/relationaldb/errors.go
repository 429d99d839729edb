package relationaldb

import (
	"errors"
	"fmt"
	"strings"
)

// Error variables for the different categories of storage errors.
var (
	// Configuration errors
	ErrMissingDatabase       = errors.New("database name is required")
	ErrMissingHost           = errors.New("database host is required")
	ErrMissingUsername       = errors.New("database username is required")
	ErrInvalidPort           = errors.New("invalid database port")
	ErrInvalidDriver         = errors.New("invalid database driver")
	ErrInvalidMaxOpenConns   = errors.New("max open connections must be >= 0")
	ErrInvalidMaxIdleConns   = errors.New("max idle connections must be >= 0")
	ErrMaxIdleExceedsMaxOpen = errors.New("max idle connections cannot exceed max open connections")
	ErrInvalidTimeout        = errors.New("timeout must be positive")
	ErrInvalidMaxRetries     = errors.New("max retries must be >= 0")
	ErrInvalidRetryDelay     = errors.New("retry delay must be >= 0")

	// Connection errors
	ErrDatabaseClosed    = errors.New("database connection is closed")
	ErrConnectionFailed  = errors.New("failed to connect to database")
	ErrConnectionTimeout = errors.New("database connection timeout")

	// Transaction errors
	ErrTransactionClosed = errors.New("transaction is closed")
	ErrDeadlock          = errors.New("database deadlock detected")
	ErrLockTimeout       = errors.New("database lock timeout")

	// Data errors
	ErrUserNotFound     = errors.New("user not found")
	ErrBalanceNotFound  = errors.New("balance row not found")
	ErrBoomNotFound     = errors.New("boom not found")
	ErrHoldingNotFound  = errors.New("holding not found")
	ErrGiftNotFound     = errors.New("gift not found")
	ErrPaymentNotFound  = errors.New("payment transaction not found")
	ErrTreasuryNotFound = errors.New("treasury row not found")
	ErrSettingNotFound  = errors.New("platform setting not found")
	ErrDuplicateEntry   = errors.New("duplicate entry")

	// Constraint errors
	ErrConstraintViolation = errors.New("database constraint violation")
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrCheckViolation      = errors.New("check constraint violation")

	// Schema errors
	ErrSchemaVersion = errors.New("unsupported database schema version")
)

// ErrorType represents different categories of database errors
type ErrorType int

const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeConfiguration
	ErrorTypeConnection
	ErrorTypeTransaction
	ErrorTypeData
	ErrorTypeConstraint
	ErrorTypeQuery
	ErrorTypeSchema
)

// DatabaseError provides detailed information about database errors
type DatabaseError struct {
	Type      ErrorType `json:"type"`
	Operation string    `json:"operation"`
	Message   string    `json:"message"`
	Cause     error     `json:"cause,omitempty"`
	Code      string    `json:"code,omitempty"`
	Retryable bool      `json:"retryable"`
}

// Error implements the error interface
func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Operation, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Operation, e.Message)
}

// Unwrap returns the underlying cause error
func (e *DatabaseError) Unwrap() error {
	return e.Cause
}

// WithCode sets the error code
func (e *DatabaseError) WithCode(code string) *DatabaseError {
	e.Code = code
	return e
}

// IsRetryable returns whether the error is retryable
func (e *DatabaseError) IsRetryable() bool {
	return e.Retryable
}

// NewDatabaseError creates a new DatabaseError
func NewDatabaseError(errorType ErrorType, operation, message string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   message,
		Cause:     cause,
		Retryable: isRetryableError(errorType, cause),
	}
}

// NewConfigurationError creates a configuration error
func NewConfigurationError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConfiguration, operation, message, cause)
}

// NewConnectionError creates a connection error
func NewConnectionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConnection, operation, message, cause)
}

// NewTransactionError creates a transaction error
func NewTransactionError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeTransaction, operation, message, cause)
}

// NewDataError creates a data error
func NewDataError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeData, operation, message, cause)
}

// NewConstraintError creates a constraint error
func NewConstraintError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeConstraint, operation, message, cause)
}

// NewQueryError creates a query error
func NewQueryError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeQuery, operation, message, cause)
}

// NewSchemaError creates a schema error
func NewSchemaError(operation, message string, cause error) *DatabaseError {
	return NewDatabaseError(ErrorTypeSchema, operation, message, cause)
}

// NewContentionError creates a retryable transaction error for deadlocks
// and lock timeouts. The pipeline runner retries these whole.
func NewContentionError(operation string, cause error) *DatabaseError {
	return &DatabaseError{
		Type:      ErrorTypeTransaction,
		Operation: operation,
		Message:   "transaction contended",
		Cause:     cause,
		Code:      "TRANSIENT_CONTENDED",
		Retryable: true,
	}
}

// isRetryableError determines if an error is retryable based on its type and cause
func isRetryableError(errorType ErrorType, cause error) bool {
	switch errorType {
	case ErrorTypeConnection:
		return true
	case ErrorTypeTransaction:
		if cause != nil {
			errStr := strings.ToLower(cause.Error())
			if strings.Contains(errStr, "deadlock") || strings.Contains(errStr, "timeout") ||
				strings.Contains(errStr, "locked") || strings.Contains(errStr, "busy") {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// IsConstraintError checks if an error is a constraint error
func IsConstraintError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Type == ErrorTypeConstraint
}

// IsDataError checks if an error is a data error
func IsDataError(err error) bool {
	var dbErr *DatabaseError
	return errors.As(err, &dbErr) && dbErr.Type == ErrorTypeData
}

// IsNotFound checks if an error is one of the row-not-found sentinels
func IsNotFound(err error) bool {
	for _, sentinel := range []error{
		ErrUserNotFound, ErrBalanceNotFound, ErrBoomNotFound, ErrHoldingNotFound,
		ErrGiftNotFound, ErrPaymentNotFound, ErrTreasuryNotFound, ErrSettingNotFound,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		return dbErr.Retryable
	}
	if errors.Is(err, ErrDeadlock) || errors.Is(err, ErrLockTimeout) {
		return true
	}
	if err != nil {
		errStr := strings.ToLower(err.Error())
		retryablePatterns := []string{
			"connection refused",
			"connection reset",
			"database is locked",
			"database table is locked",
			"deadlock detected",
			"could not serialize access",
			"busy",
		}
		for _, pattern := range retryablePatterns {
			if strings.Contains(errStr, pattern) {
				return true
			}
		}
	}
	return false
}

// WrapError wraps an existing error with database error context
func WrapError(err error, operation string) error {
	if err == nil {
		return nil
	}

	var dbErr *DatabaseError
	if errors.As(err, &dbErr) {
		newErr := *dbErr
		newErr.Operation = operation
		return &newErr
	}

	errStr := strings.ToLower(err.Error())
	var errorType ErrorType
	var retryable bool

	switch {
	case strings.Contains(errStr, "connection") || strings.Contains(errStr, "connect"):
		errorType = ErrorTypeConnection
		retryable = true
	case strings.Contains(errStr, "deadlock") || strings.Contains(errStr, "locked") || strings.Contains(errStr, "busy"):
		errorType = ErrorTypeTransaction
		retryable = true
	case strings.Contains(errStr, "constraint") || strings.Contains(errStr, "duplicate") || strings.Contains(errStr, "unique"):
		errorType = ErrorTypeConstraint
	case strings.Contains(errStr, "not found") || strings.Contains(errStr, "no rows"):
		errorType = ErrorTypeData
	default:
		errorType = ErrorTypeUnknown
	}

	return &DatabaseError{
		Type:      errorType,
		Operation: operation,
		Message:   err.Error(),
		Cause:     err,
		Retryable: retryable,
	}
}
