package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound                 = errors.New("entity not found")
	ErrUserNotFound             = errors.New("user account not found")
	ErrUnknownPlan              = errors.New("unknown plan")
	ErrUnauthorized             = errors.New("caller does not own this transaction")
	ErrTransactionNotSuccessful = errors.New("transaction is not successful")
	ErrInvalidArgument          = errors.New("invalid argument")
	ErrInvalidExecContext       = errors.New("invalid sql execution context")
	ErrOperationFailed          = errors.New("database operation failed")
	ErrReadDatabaseRow          = errors.New("failed to read database row")
)
