package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/logger"
	"energy-trading-dashboard/pkg/units"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	actionListEnergy = "list_energy"
	actionBuyEnergy  = "buy_energy"
)

// MarketSyncService keeps the session's listing collection in step with the
// marketplace contract. Mutating calls run one at a time.
type MarketSyncService struct {
	// actionMu serializes mutating calls, mu guards session state
	actionMu sync.Mutex
	mu       sync.RWMutex
	session  *Session

	telemetry service.TelemetryFeed
	publisher service.TradeEventPublisher
	validate  *validator.Validate
	logger    *logger.Logger
	now       func() time.Time
}

var _ service.MarketSync = (*MarketSyncService)(nil)

// NewMarketSyncService creates a new market sync service
func NewMarketSyncService(
	telemetry service.TelemetryFeed,
	publisher service.TradeEventPublisher,
	logger *logger.Logger,
) *MarketSyncService {
	return &MarketSyncService{
		telemetry: telemetry,
		publisher: publisher,
		validate:  validator.New(),
		logger:    logger.WithComponent("market-sync"),
		now:       time.Now,
	}
}

// OnAccountChanged installs the wallet session and performs a full refresh.
// If the refresh fails the previous listing collection is carried over.
func (s *MarketSyncService) OnAccountChanged(ctx context.Context, wallet service.WalletSession) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	sess := newSession(uuid.NewString(), wallet, s.telemetry.Generate())

	s.mu.Lock()
	prev := s.session
	if prev != nil {
		sess.listings = prev.listings
	}
	s.session = sess
	s.mu.Unlock()

	if prev != nil && prev.wallet != wallet {
		prev.wallet.Close()
	}

	s.logger.Info("Account changed",
		zap.String("account", wallet.Account().String()),
		zap.String("session_id", sess.id))

	return s.refresh(ctx, sess)
}

// Refresh re-reads every listing and the balance
func (s *MarketSyncService) Refresh(ctx context.Context) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	sess, err := s.current()
	if err != nil {
		return err
	}
	return s.refresh(ctx, sess)
}

// refresh fetches listingCount, every listing and the balance. Any failed read
// aborts the refresh and leaves listings and balance as they were.
func (s *MarketSyncService) refresh(ctx context.Context, sess *Session) error {
	s.setState(sess, service.SyncStateConfirming)

	gateway := sess.gateway()
	count, err := gateway.ListingCount(ctx)
	if err != nil {
		return s.fail(sess, -1, "failed to read listing count", err)
	}

	listings := make([]*entity.Listing, 0, count)
	for id := uint64(0); id < count; id++ {
		listing, err := gateway.GetListing(ctx, id)
		if err != nil {
			return s.fail(sess, -1, fmt.Sprintf("failed to read listing %d", id), err)
		}
		listings = append(listings, listing)
	}

	balance, err := gateway.GetBalance(ctx, sess.account())
	if err != nil {
		return s.fail(sess, -1, "failed to read balance", err)
	}

	s.mu.Lock()
	sess.listings = listings
	sess.balance = balance
	sess.state = service.SyncStateSynced
	s.mu.Unlock()

	s.logger.Info("Listings refreshed",
		zap.String("session_id", sess.id),
		zap.Uint64("count", count))
	return nil
}

// ListEnergy submits a new listing. Once confirmed it re-reads the listing at
// listingCount-1 and appends it without a full refetch. Cancelling ctx does not
// abort the confirmation wait.
func (s *MarketSyncService) ListEnergy(ctx context.Context, input service.ListEnergyInput) (*entity.Listing, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	// a submitted transaction is followed to confirmation even if the caller goes away
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	idx := sess.startAction(service.ActionRecord{
		Kind:   actionListEnergy,
		Amount: input.Amount,
		State:  service.SyncStateSubmitting,
	})
	s.mu.Unlock()

	gateway := sess.gateway()
	receipt, err := gateway.ListEnergy(ctx, service.ListEnergyRequest{
		Amount:      input.Amount,
		Price:       input.Price,
		EnergyType:  input.EnergyType,
		OnSubmitted: s.onSubmitted(sess, idx),
	})
	if err != nil {
		return nil, s.fail(sess, idx, "failed to list energy", err)
	}

	count, err := gateway.ListingCount(ctx)
	if err != nil {
		return nil, s.fail(sess, idx, "failed to read listing count", err)
	}
	if count == 0 {
		return nil, s.fail(sess, idx, "listing missing after confirmation", entity.ErrNotFound)
	}

	listing, err := gateway.GetListing(ctx, count-1)
	if err != nil {
		return nil, s.fail(sess, idx, fmt.Sprintf("failed to read listing %d", count-1), err)
	}

	s.mu.Lock()
	if i := sess.findListing(listing.ID); i >= 0 {
		sess.listings[i] = listing
	} else {
		sess.listings = append(sess.listings, listing)
	}
	sess.actions[idx].ListingID = listing.ID
	sess.actions[idx].State = service.SyncStateSynced
	sess.state = service.SyncStateSynced
	s.mu.Unlock()

	s.logger.Info("Energy listed",
		zap.Uint64("listing_id", listing.ID),
		zap.String("amount", listing.Amount),
		zap.String("price", listing.Price),
		zap.String("tx_hash", receipt.TxHash))

	s.refreshBalance(ctx, sess)
	s.publish(ctx, &entity.TradeEvent{
		Kind:         entity.TradeEventListed,
		ListingID:    listing.ID,
		Counterparty: sess.account(),
		Amount:       listing.Amount,
		Price:        listing.Price,
		TxHash:       receipt.TxHash,
		BlockNumber:  receipt.BlockNumber,
		ObservedAt:   s.now(),
	})

	return listing.Clone(), nil
}

// BuyEnergy buys from a listing, attaching amount × price as payment. On success
// only that listing's amount and active flag are replaced.
func (s *MarketSyncService) BuyEnergy(ctx context.Context, input service.BuyEnergyInput) (*entity.Listing, error) {
	if err := s.validate.Struct(input); err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	sess.buyInputs[input.ListingID] = input.Amount
	i := sess.findListing(input.ListingID)
	var price string
	if i >= 0 {
		price = sess.listings[i].Price
	}
	s.mu.Unlock()

	if i < 0 {
		return nil, fmt.Errorf("%w: listing %d is not loaded", entity.ErrNotFound, input.ListingID)
	}

	payment, err := units.Mul(input.Amount, price)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entity.ErrInvalidInput, err)
	}

	s.mu.Lock()
	idx := sess.startAction(service.ActionRecord{
		Kind:      actionBuyEnergy,
		ListingID: input.ListingID,
		Amount:    input.Amount,
		Payment:   units.Format(payment),
		State:     service.SyncStateSubmitting,
	})
	s.mu.Unlock()

	gateway := sess.gateway()
	receipt, err := gateway.BuyEnergy(ctx, service.BuyEnergyRequest{
		ListingID:   input.ListingID,
		Amount:      input.Amount,
		Payment:     units.Format(payment),
		OnSubmitted: s.onSubmitted(sess, idx),
	})
	if err != nil {
		return nil, s.fail(sess, idx, "failed to buy energy", err)
	}

	fresh, err := gateway.GetListing(ctx, input.ListingID)
	if err != nil {
		return nil, s.fail(sess, idx, fmt.Sprintf("failed to read listing %d", input.ListingID), err)
	}

	s.mu.Lock()
	var updated *entity.Listing
	if i := sess.findListing(input.ListingID); i >= 0 {
		sess.listings[i].Amount = fresh.Amount
		sess.listings[i].IsActive = fresh.IsActive
		updated = sess.listings[i].Clone()
	}
	delete(sess.buyInputs, input.ListingID)
	sess.actions[idx].State = service.SyncStateSynced
	sess.state = service.SyncStateSynced
	s.mu.Unlock()

	if updated == nil {
		updated = fresh
	}

	s.logger.Info("Energy bought",
		zap.Uint64("listing_id", input.ListingID),
		zap.String("amount", input.Amount),
		zap.String("payment", units.Format(payment)),
		zap.String("tx_hash", receipt.TxHash))

	s.refreshBalance(ctx, sess)
	s.publish(ctx, &entity.TradeEvent{
		Kind:         entity.TradeEventSold,
		ListingID:    input.ListingID,
		Counterparty: sess.account(),
		Amount:       input.Amount,
		TxHash:       receipt.TxHash,
		BlockNumber:  receipt.BlockNumber,
		ObservedAt:   s.now(),
	})

	return updated, nil
}

// SetBuyInput keeps the amount typed into a listing row's buy form
func (s *MarketSyncService) SetBuyInput(listingID uint64, amount string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.session.buyInputs[listingID] = amount
	}
}

// History returns the connected account's marketplace events
func (s *MarketSyncService) History(ctx context.Context) ([]*entity.TradeEvent, error) {
	sess, err := s.current()
	if err != nil {
		return nil, err
	}

	events, err := sess.gateway().TradeHistory(ctx, sess.account())
	if err != nil {
		s.logger.Error("Failed to load trade history", zap.Error(err))
		return nil, fmt.Errorf("failed to load trade history: %w", err)
	}
	return events, nil
}

// Snapshot returns a copy of the session state
func (s *MarketSyncService) Snapshot() (service.SessionSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return service.SessionSnapshot{}, false
	}
	return s.session.snapshot(), true
}

// Logout drops the session and closes its provider connection. It waits for an
// action in flight to be confirmed first.
func (s *MarketSyncService) Logout() {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.mu.Unlock()

	if sess == nil {
		return
	}
	sess.wallet.Close()
	s.logger.Info("Logged out", zap.String("session_id", sess.id))
}

func (s *MarketSyncService) current() (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.session == nil {
		return nil, entity.ErrNoSession
	}
	return s.session, nil
}

func (s *MarketSyncService) setState(sess *Session, state service.SyncState) {
	s.mu.Lock()
	sess.state = state
	s.mu.Unlock()
}

func (s *MarketSyncService) onSubmitted(sess *Session, idx int) func(string) {
	return func(txHash string) {
		s.mu.Lock()
		sess.actions[idx].TxHash = txHash
		sess.actions[idx].State = service.SyncStateConfirming
		sess.state = service.SyncStateConfirming
		s.mu.Unlock()

		s.logger.Debug("Transaction submitted, waiting for confirmation", zap.String("tx_hash", txHash))
	}
}

// fail marks the session and the action at idx (if any) as failed. Listings and
// balance are left as they were.
func (s *MarketSyncService) fail(sess *Session, idx int, msg string, err error) error {
	s.mu.Lock()
	sess.state = service.SyncStateFailed
	if idx >= 0 {
		sess.actions[idx].State = service.SyncStateFailed
		sess.actions[idx].Error = err.Error()
	}
	s.mu.Unlock()

	s.logger.WithFields(map[string]interface{}{
		"session_id": sess.id,
		"account":    sess.account().String(),
	}).Error(msg, zap.Error(err))
	return fmt.Errorf("%s: %w", msg, err)
}

// refreshBalance reloads the balance after an action; failures only log
func (s *MarketSyncService) refreshBalance(ctx context.Context, sess *Session) {
	balance, err := sess.gateway().GetBalance(ctx, sess.account())
	if err != nil {
		s.logger.Warn("Failed to refresh balance", zap.Error(err))
		return
	}

	s.mu.Lock()
	sess.balance = balance
	s.mu.Unlock()
}

// publish announces a confirmed action; failures only log
func (s *MarketSyncService) publish(ctx context.Context, event *entity.TradeEvent) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish trade event",
			zap.String("kind", string(event.Kind)),
			zap.String("tx_hash", event.TxHash),
			zap.Error(err))
	}
}
