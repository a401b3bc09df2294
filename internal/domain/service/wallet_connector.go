package service

import (
	"context"

	"energy-trading-dashboard/internal/domain/entity"
)

// WalletConnector defines how a session obtains an account from the wallet provider
type WalletConnector interface {
	// Connect requests account access. It fails with entity.ErrProviderUnavailable,
	// entity.ErrUserRejected or entity.ErrRequestFailed and is never retried.
	Connect(ctx context.Context) (WalletSession, error)
}

// WalletSession is the result of a successful connect: the selected account and
// the signing capability bound to it
type WalletSession interface {
	// Account returns the connected account
	Account() entity.Account

	// Gateway returns a contract gateway that signs with the session's account
	Gateway() ContractGateway

	// Close releases the provider connection
	Close()
}
