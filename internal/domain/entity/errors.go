package entity

import "github.com/pkg/errors"

// Wallet boundary errors
var (
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrUserRejected        = errors.New("account request rejected by user")
	ErrRequestFailed       = errors.New("wallet request failed")
)

// Contract boundary errors
var (
	ErrNotFound          = errors.New("listing not found")
	ErrTransactionFailed = errors.New("transaction failed")
)

// Session errors
var (
	ErrNoSession    = errors.New("no connected account")
	ErrInvalidInput = errors.New("invalid input")
)
