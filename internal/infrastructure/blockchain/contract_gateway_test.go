package blockchain

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContractAddress = "0xf202ad99339cacffB7bdE517392f1B8214c37e6B"

var otherSeller = common.HexToAddress("0x00000000000000000000000000000000000000a1")

func newTestKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func newTestGateway(t *testing.T, backend *fakeMarketplace, key *ecdsa.PrivateKey) *ContractGateway {
	t.Helper()

	var (
		account common.Address
		signer  bind.SignerFn
	)
	if key != nil {
		opts, err := bind.NewKeyedTransactorWithChainID(key, backend.chainID)
		require.NoError(t, err)
		account, signer = opts.From, opts.Signer
	}

	gateway, err := NewContractGateway(backend, config.ContractConfig{
		Address:             testContractAddress,
		ReceiptPollInterval: 5 * time.Millisecond,
	}, account, signer, logger.NewNop())
	require.NoError(t, err)
	return gateway
}

func TestNewContractGateway_InvalidAddress(t *testing.T) {
	_, err := NewContractGateway(newFakeMarketplace(), config.ContractConfig{Address: "not-an-address"},
		common.Address{}, nil, logger.NewNop())
	require.Error(t, err)
}

func TestContractGateway_ReadListings(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "5", "0.2", "solar", true)
	backend.addListing(otherSeller, "0", "0.35", "wind", false)
	gateway := newTestGateway(t, backend, nil)
	ctx := context.Background()

	count, err := gateway.ListingCount(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count)

	listing, err := gateway.GetListing(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, &entity.Listing{
		ID:         0,
		Seller:     entity.Account(otherSeller.Hex()),
		Amount:     "5",
		Price:      "0.2",
		EnergyType: "solar",
		IsActive:   true,
	}, listing)

	listing, err = gateway.GetListing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "0", listing.Amount)
	assert.Equal(t, "0.35", listing.Price)
	assert.False(t, listing.IsActive)
}

func TestContractGateway_GetListing_NotFound(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "5", "0.2", "solar", true)
	gateway := newTestGateway(t, backend, nil)

	_, err := gateway.GetListing(context.Background(), 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrNotFound))
}

func TestContractGateway_ReadFailure(t *testing.T) {
	backend := newFakeMarketplace()
	backend.callErr = errors.New("connection reset by peer")
	gateway := newTestGateway(t, backend, nil)

	_, err := gateway.ListingCount(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrRequestFailed))

	_, err = gateway.GetListing(context.Background(), 0)
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrRequestFailed))
	assert.False(t, errors.Is(err, entity.ErrNotFound))
}

func TestContractGateway_ListEnergy(t *testing.T) {
	backend := newFakeMarketplace()
	key := newTestKey(t)
	gateway := newTestGateway(t, backend, key)

	var submitted string
	receipt, err := gateway.ListEnergy(context.Background(), service.ListEnergyRequest{
		Amount:      "5",
		Price:       "0.2",
		EnergyType:  "solar",
		OnSubmitted: func(hash string) { submitted = hash },
	})
	require.NoError(t, err)

	assert.Equal(t, entity.ReceiptStatusSuccess, receipt.Status)
	assert.Equal(t, submitted, receipt.TxHash)
	require.Len(t, backend.listings, 1)
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), backend.listings[0].seller)
	assert.Equal(t, mustUnits("5"), backend.listings[0].amount)
	assert.Equal(t, mustUnits("0.2"), backend.listings[0].price)
	assert.Equal(t, "solar", backend.listings[0].energyType)

	listing, err := gateway.GetListing(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "5", listing.Amount)
	assert.Equal(t, "0.2", listing.Price)
	assert.True(t, listing.IsActive)
}

func TestContractGateway_ListEnergy_InvalidInput(t *testing.T) {
	backend := newFakeMarketplace()
	gateway := newTestGateway(t, backend, newTestKey(t))

	_, err := gateway.ListEnergy(context.Background(), service.ListEnergyRequest{Amount: "five", Price: "0.2", EnergyType: "solar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidInput))
	assert.Empty(t, backend.sent)
}

func TestContractGateway_BuyEnergy(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "5", "0.2", "solar", true)
	key := newTestKey(t)
	buyer := crypto.PubkeyToAddress(key.PublicKey)
	backend.setBalance(buyer, "10")
	gateway := newTestGateway(t, backend, key)

	receipt, err := gateway.BuyEnergy(context.Background(), service.BuyEnergyRequest{
		ListingID: 0,
		Amount:    "2",
		Payment:   "0.4",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusSuccess, receipt.Status)

	tx := backend.lastSent()
	require.NotNil(t, tx)
	assert.Equal(t, mustUnits("0.4"), tx.Value())
	assert.Equal(t, mustUnits("3"), backend.listings[0].amount)
	assert.True(t, backend.listings[0].active)

	balance, err := gateway.GetBalance(context.Background(), entity.Account(buyer.Hex()))
	require.NoError(t, err)
	assert.Equal(t, "9.6", balance.Amount)
}

func TestContractGateway_BuyEnergy_ExhaustsListing(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "2", "0.5", "hydro", true)
	gateway := newTestGateway(t, backend, newTestKey(t))

	_, err := gateway.BuyEnergy(context.Background(), service.BuyEnergyRequest{ListingID: 0, Amount: "2", Payment: "1"})
	require.NoError(t, err)

	listing, err := gateway.GetListing(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "0", listing.Amount)
	assert.False(t, listing.IsActive)
}

func TestContractGateway_BuyEnergy_Reverted(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "5", "0.2", "solar", true)
	gateway := newTestGateway(t, backend, newTestKey(t))

	receipt, err := gateway.BuyEnergy(context.Background(), service.BuyEnergyRequest{ListingID: 0, Amount: "2", Payment: "0.1"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTransactionFailed))
	require.NotNil(t, receipt)
	assert.Equal(t, entity.ReceiptStatusFailed, receipt.Status)
	assert.Equal(t, mustUnits("5"), backend.listings[0].amount)
}

func TestContractGateway_SubmissionFailure(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "5", "0.2", "solar", true)
	backend.sendErr = errors.New("insufficient funds for gas * price + value")
	gateway := newTestGateway(t, backend, newTestKey(t))

	submitted := false
	_, err := gateway.BuyEnergy(context.Background(), service.BuyEnergyRequest{
		ListingID:   0,
		Amount:      "1",
		Payment:     "0.2",
		OnSubmitted: func(string) { submitted = true },
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTransactionFailed))
	assert.False(t, submitted)
}

func TestContractGateway_ReadOnlyCannotTransact(t *testing.T) {
	gateway := newTestGateway(t, newFakeMarketplace(), nil)

	_, err := gateway.ListEnergy(context.Background(), service.ListEnergyRequest{Amount: "1", Price: "1", EnergyType: "solar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTransactionFailed))
}

func TestContractGateway_ConfirmationEndsWithContext(t *testing.T) {
	backend := newFakeMarketplace()
	backend.holdReceipts = true
	gateway := newTestGateway(t, backend, newTestKey(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := gateway.ListEnergy(ctx, service.ListEnergyRequest{Amount: "1", Price: "0.1", EnergyType: "solar"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrTransactionFailed))
	assert.Equal(t, context.DeadlineExceeded, ctx.Err())
}

func TestContractGateway_ConfirmationPollsAtConfiguredInterval(t *testing.T) {
	backend := newFakeMarketplace()
	backend.pendingPolls = 3
	gateway := newTestGateway(t, backend, newTestKey(t))

	start := time.Now()
	receipt, err := gateway.ListEnergy(context.Background(), service.ListEnergyRequest{Amount: "1", Price: "0.1", EnergyType: "solar"})
	require.NoError(t, err)
	assert.Equal(t, entity.ReceiptStatusSuccess, receipt.Status)
	assert.Equal(t, 4, backend.receiptPolls)
	// three 5ms ticks, well below a one second poll
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestContractGateway_GetBalance(t *testing.T) {
	backend := newFakeMarketplace()
	account := common.HexToAddress("0x00000000000000000000000000000000000000b2")
	backend.setBalance(account, "1.5")
	gateway := newTestGateway(t, backend, nil)

	balance, err := gateway.GetBalance(context.Background(), entity.Account(account.Hex()))
	require.NoError(t, err)
	assert.Equal(t, "1.5", balance.Amount)
	assert.Equal(t, entity.Account(account.Hex()), balance.Account)

	_, err = gateway.GetBalance(context.Background(), entity.Account("bogus"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, entity.ErrInvalidInput))
}

func TestContractGateway_TradeHistory(t *testing.T) {
	backend := newFakeMarketplace()
	backend.addListing(otherSeller, "4", "0.3", "wind", true)

	sellerKey := newTestKey(t)
	buyerKey := newTestKey(t)
	seller := newTestGateway(t, backend, sellerKey)
	buyer := newTestGateway(t, backend, buyerKey)
	ctx := context.Background()

	_, err := seller.ListEnergy(ctx, service.ListEnergyRequest{Amount: "5", Price: "0.2", EnergyType: "solar"})
	require.NoError(t, err)
	_, err = buyer.BuyEnergy(ctx, service.BuyEnergyRequest{ListingID: 1, Amount: "2", Payment: "0.4"})
	require.NoError(t, err)

	sellerAccount := entity.Account(crypto.PubkeyToAddress(sellerKey.PublicKey).Hex())
	buyerAccount := entity.Account(crypto.PubkeyToAddress(buyerKey.PublicKey).Hex())

	events, err := seller.TradeHistory(ctx, sellerAccount)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, entity.TradeEventListed, events[0].Kind)
	assert.Equal(t, uint64(1), events[0].ListingID)
	assert.Equal(t, "5", events[0].Amount)
	assert.Equal(t, "0.2", events[0].Price)
	assert.Equal(t, entity.TradeEventSold, events[1].Kind)
	assert.Equal(t, buyerAccount, events[1].Counterparty)
	assert.Equal(t, "2", events[1].Amount)

	events, err = buyer.TradeHistory(ctx, buyerAccount)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, entity.TradeEventSold, events[0].Kind)
}
