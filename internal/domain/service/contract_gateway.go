package service

import (
	"context"

	"energy-trading-dashboard/internal/domain/entity"
)

// ListEnergyRequest carries a listing-creation transaction in human-readable decimals
type ListEnergyRequest struct {
	Amount     string
	Price      string
	EnergyType string

	// OnSubmitted is called with the transaction hash once the transaction has been
	// accepted by the provider and confirmation waiting starts
	OnSubmitted func(txHash string)
}

// BuyEnergyRequest carries a purchase transaction. Payment is attached as value.
type BuyEnergyRequest struct {
	ListingID uint64
	Amount    string
	Payment   string

	OnSubmitted func(txHash string)
}

// ContractGateway wraps read/write access to the marketplace contract
type ContractGateway interface {
	// ListingCount returns the number of listings recorded on-chain
	ListingCount(ctx context.Context) (uint64, error)

	// GetListing reads one listing, failing with entity.ErrNotFound when id is out of range
	GetListing(ctx context.Context, id uint64) (*entity.Listing, error)

	// ListEnergy submits a listing and blocks until it is mined
	ListEnergy(ctx context.Context, req ListEnergyRequest) (*entity.TransactionReceipt, error)

	// BuyEnergy submits a purchase and blocks until it is mined
	BuyEnergy(ctx context.Context, req BuyEnergyRequest) (*entity.TransactionReceipt, error)

	// GetBalance returns the native currency balance of an account
	GetBalance(ctx context.Context, account entity.Account) (*entity.WalletBalance, error)

	// TradeHistory returns marketplace events where the account is seller or buyer
	TradeHistory(ctx context.Context, account entity.Account) ([]*entity.TradeEvent, error)
}
