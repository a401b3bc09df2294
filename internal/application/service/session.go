package service

import (
	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
)

// maxActions bounds the recent action list kept per session
const maxActions = 50

// Session is the state owned by one connected account. Fields are guarded by
// MarketSyncService.mu.
type Session struct {
	id        string
	wallet    service.WalletSession
	listings  []*entity.Listing
	balance   *entity.WalletBalance
	telemetry []entity.TelemetryPoint
	state     service.SyncState
	actions   []service.ActionRecord
	buyInputs map[uint64]string
}

func newSession(id string, wallet service.WalletSession, telemetry []entity.TelemetryPoint) *Session {
	return &Session{
		id:        id,
		wallet:    wallet,
		telemetry: telemetry,
		state:     service.SyncStateIdle,
		buyInputs: make(map[uint64]string),
	}
}

func (s *Session) account() entity.Account {
	return s.wallet.Account()
}

func (s *Session) gateway() service.ContractGateway {
	return s.wallet.Gateway()
}

// findListing returns the index of the listing with the given id, or -1
func (s *Session) findListing(id uint64) int {
	for i, l := range s.listings {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// startAction records a new action and returns its index
func (s *Session) startAction(record service.ActionRecord) int {
	s.actions = append(s.actions, record)
	if len(s.actions) > maxActions {
		s.actions = s.actions[len(s.actions)-maxActions:]
	}
	s.state = record.State
	return len(s.actions) - 1
}

func (s *Session) snapshot() service.SessionSnapshot {
	snap := service.SessionSnapshot{
		ID:          s.id,
		Account:     s.account(),
		DisplayName: s.account().ShortName(),
		Listings:    entity.CloneListings(s.listings),
		Telemetry:   append([]entity.TelemetryPoint(nil), s.telemetry...),
		State:       s.state,
		Actions:     append([]service.ActionRecord(nil), s.actions...),
		BuyInputs:   make(map[uint64]string, len(s.buyInputs)),
	}
	if s.balance != nil {
		b := *s.balance
		snap.Balance = &b
	}
	for id, amount := range s.buyInputs {
		snap.BuyInputs[id] = amount
	}
	return snap
}
