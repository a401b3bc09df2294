package entity

import (
	"time"
)

// ReceiptStatus mirrors the execution status of a mined transaction
type ReceiptStatus string

const (
	ReceiptStatusSuccess ReceiptStatus = "success"
	ReceiptStatusFailed  ReceiptStatus = "failed"
)

// TransactionReceipt is the confirmation of a mined marketplace transaction
type TransactionReceipt struct {
	TxHash      string        `json:"tx_hash"`
	BlockNumber uint64        `json:"block_number"`
	GasUsed     uint64        `json:"gas_used"`
	Status      ReceiptStatus `json:"status"`
}

// TradeEventKind distinguishes the marketplace contract events
type TradeEventKind string

const (
	TradeEventListed TradeEventKind = "EnergyListed"
	TradeEventSold   TradeEventKind = "EnergySold"
)

// TradeEvent is a decoded EnergyListed or EnergySold contract event.
// Price is only set for listings; Counterparty is the seller for listings and the buyer for sales.
type TradeEvent struct {
	Kind         TradeEventKind `json:"kind"`
	ListingID    uint64         `json:"listing_id"`
	Counterparty Account        `json:"counterparty"`
	Amount       string         `json:"amount"`
	Price        string         `json:"price,omitempty"`
	TxHash       string         `json:"tx_hash"`
	BlockNumber  uint64         `json:"block_number"`
	ObservedAt   time.Time      `json:"observed_at"`
}
