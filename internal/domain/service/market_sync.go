package service

import (
	"context"

	"energy-trading-dashboard/internal/domain/entity"
)

// SyncState is the lifecycle of one listing-affecting action
type SyncState string

const (
	SyncStateIdle       SyncState = "idle"
	SyncStateSubmitting SyncState = "submitting"
	SyncStateConfirming SyncState = "confirming"
	SyncStateSynced     SyncState = "synced"
	SyncStateFailed     SyncState = "failed"
)

// ListEnergyInput is the list-energy form as entered by the user
type ListEnergyInput struct {
	Amount     string `validate:"required,numeric"`
	Price      string `validate:"required,numeric"`
	EnergyType string `validate:"required,max=32"`
}

// BuyEnergyInput is one listing row's buy form
type BuyEnergyInput struct {
	ListingID uint64
	Amount    string `validate:"required,numeric"`
}

// ActionRecord is an action submitted during the current session
type ActionRecord struct {
	Kind      string    `json:"kind"`
	ListingID uint64    `json:"listing_id"`
	Amount    string    `json:"amount"`
	Payment   string    `json:"payment,omitempty"`
	TxHash    string    `json:"tx_hash,omitempty"`
	State     SyncState `json:"state"`
	Error     string    `json:"error,omitempty"`
}

// SessionSnapshot is a read-only copy of the session state for rendering
type SessionSnapshot struct {
	ID          string                  `json:"id"`
	Account     entity.Account          `json:"account"`
	DisplayName string                  `json:"display_name"`
	Balance     *entity.WalletBalance   `json:"balance,omitempty"`
	Listings    []*entity.Listing       `json:"listings"`
	Telemetry   []entity.TelemetryPoint `json:"telemetry"`
	State       SyncState               `json:"state"`
	Actions     []ActionRecord          `json:"actions"`
	BuyInputs   map[uint64]string       `json:"buy_inputs"`
}

// MarketSync keeps the local listing collection consistent with the contract
type MarketSync interface {
	// OnAccountChanged installs a new wallet session and performs a full refresh
	OnAccountChanged(ctx context.Context, session WalletSession) error

	// Refresh re-reads every listing and the balance
	Refresh(ctx context.Context) error

	// ListEnergy creates a listing and appends it locally once confirmed
	ListEnergy(ctx context.Context, input ListEnergyInput) (*entity.Listing, error)

	// BuyEnergy purchases from a listing and updates that listing in place
	BuyEnergy(ctx context.Context, input BuyEnergyInput) (*entity.Listing, error)

	// SetBuyInput keeps the amount typed into a listing row's buy form
	SetBuyInput(listingID uint64, amount string)

	// History returns the account's marketplace events
	History(ctx context.Context) ([]*entity.TradeEvent, error)

	// Snapshot returns the current session state, ok is false when nobody is connected
	Snapshot() (SessionSnapshot, bool)

	// Logout clears the session
	Logout()
}
