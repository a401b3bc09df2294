package blockchain

import (
	"context"
	"math/big"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"
	"energy-trading-dashboard/pkg/units"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const defaultReceiptPollInterval = time.Second

// ContractGateway implements service.ContractGateway on top of go-ethereum bindings
type ContractGateway struct {
	backend      Backend
	contract     *bind.BoundContract
	address      common.Address
	account      common.Address
	signer       bind.SignerFn
	startBlock   uint64
	pollInterval time.Duration
	logger       *logger.Logger
}

var _ service.ContractGateway = (*ContractGateway)(nil)

// NewContractGateway binds the marketplace contract at cfg.Address. A nil signer
// yields a read-only gateway whose write operations fail.
func NewContractGateway(
	backend Backend,
	cfg config.ContractConfig,
	account common.Address,
	signer bind.SignerFn,
	logger *logger.Logger,
) (*ContractGateway, error) {
	if !common.IsHexAddress(cfg.Address) {
		return nil, errors.Errorf("invalid contract address %q", cfg.Address)
	}
	address := common.HexToAddress(cfg.Address)

	pollInterval := cfg.ReceiptPollInterval
	if pollInterval <= 0 {
		pollInterval = defaultReceiptPollInterval
	}

	return &ContractGateway{
		backend:      backend,
		contract:     bind.NewBoundContract(address, MarketplaceABI, backend, backend, backend),
		address:      address,
		account:      account,
		signer:       signer,
		startBlock:   cfg.StartBlock,
		pollInterval: pollInterval,
		logger:       logger.WithComponent("contract-gateway").WithAccount(account.Hex()),
	}, nil
}

// ListingCount returns the number of listings recorded on-chain
func (g *ContractGateway) ListingCount(ctx context.Context) (uint64, error) {
	var out []interface{}
	if err := g.contract.Call(g.callOpts(ctx), &out, methodListingCount); err != nil {
		return 0, errors.Wrapf(entity.ErrRequestFailed, "listingCount: %v", err)
	}
	if len(out) != 1 {
		return 0, errors.Wrapf(entity.ErrRequestFailed, "listingCount: unexpected %d outputs", len(out))
	}

	count := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	if !count.IsUint64() {
		return 0, errors.Wrapf(entity.ErrRequestFailed, "listingCount: %s overflows uint64", count)
	}
	return count.Uint64(), nil
}

// GetListing reads one listing. Out-of-range ids fail with entity.ErrNotFound.
func (g *ContractGateway) GetListing(ctx context.Context, id uint64) (*entity.Listing, error) {
	var out []interface{}
	err := g.contract.Call(g.callOpts(ctx), &out, methodGetListing, new(big.Int).SetUint64(id))
	if err != nil {
		if g.outOfRange(ctx, id) {
			return nil, errors.Wrapf(entity.ErrNotFound, "listing %d", id)
		}
		return nil, errors.Wrapf(entity.ErrRequestFailed, "getListing(%d): %v", id, err)
	}
	if len(out) != 5 {
		return nil, errors.Wrapf(entity.ErrRequestFailed, "getListing(%d): unexpected %d outputs", id, len(out))
	}

	seller := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	if seller == (common.Address{}) && g.outOfRange(ctx, id) {
		return nil, errors.Wrapf(entity.ErrNotFound, "listing %d", id)
	}

	amount := *abi.ConvertType(out[1], new(*big.Int)).(**big.Int)
	price := *abi.ConvertType(out[2], new(*big.Int)).(**big.Int)
	energyType := *abi.ConvertType(out[3], new(string)).(*string)
	active := *abi.ConvertType(out[4], new(bool)).(*bool)

	return &entity.Listing{
		ID:         id,
		Seller:     entity.Account(seller.Hex()),
		Amount:     units.Format(amount),
		Price:      units.Format(price),
		EnergyType: energyType,
		IsActive:   active,
	}, nil
}

// outOfRange reports whether id is at or beyond the current listing count
func (g *ContractGateway) outOfRange(ctx context.Context, id uint64) bool {
	count, err := g.ListingCount(ctx)
	return err == nil && id >= count
}

// ListEnergy submits listEnergy(amount, price, energyType) and waits for it to be mined
func (g *ContractGateway) ListEnergy(ctx context.Context, req service.ListEnergyRequest) (*entity.TransactionReceipt, error) {
	amount, err := units.Parse(req.Amount)
	if err != nil {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "amount: %v", err)
	}
	price, err := units.Parse(req.Price)
	if err != nil {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "price: %v", err)
	}

	g.logger.Info("Submitting listEnergy",
		zap.String("amount", req.Amount),
		zap.String("price", req.Price),
		zap.String("energy_type", req.EnergyType))

	return g.transact(ctx, nil, req.OnSubmitted, methodListEnergy, amount, price, req.EnergyType)
}

// BuyEnergy submits buyEnergy(listingId, amount) carrying the payment as value
func (g *ContractGateway) BuyEnergy(ctx context.Context, req service.BuyEnergyRequest) (*entity.TransactionReceipt, error) {
	amount, err := units.Parse(req.Amount)
	if err != nil {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "amount: %v", err)
	}
	payment, err := units.Parse(req.Payment)
	if err != nil {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "payment: %v", err)
	}

	g.logger.Info("Submitting buyEnergy",
		zap.Uint64("listing_id", req.ListingID),
		zap.String("amount", req.Amount),
		zap.String("payment", req.Payment))

	return g.transact(ctx, payment, req.OnSubmitted, methodBuyEnergy, new(big.Int).SetUint64(req.ListingID), amount)
}

// transact signs and sends a contract call, then blocks until its receipt is available
func (g *ContractGateway) transact(
	ctx context.Context,
	value *big.Int,
	onSubmitted func(string),
	method string,
	params ...interface{},
) (*entity.TransactionReceipt, error) {
	if g.signer == nil {
		return nil, errors.Wrapf(entity.ErrTransactionFailed, "%s: gateway has no signer", method)
	}

	opts := &bind.TransactOpts{
		From:    g.account,
		Signer:  g.signer,
		Value:   value,
		Context: ctx,
	}

	tx, err := g.contract.Transact(opts, method, params...)
	if err != nil {
		g.logger.Error("Failed to submit transaction", zap.String("method", method), zap.Error(err))
		return nil, errors.Wrapf(entity.ErrTransactionFailed, "%s: %v", method, err)
	}

	txHash := tx.Hash().Hex()
	g.logger.Info("Transaction submitted, awaiting confirmation",
		zap.String("method", method),
		zap.String("tx_hash", txHash))
	if onSubmitted != nil {
		onSubmitted(txHash)
	}

	receipt, err := g.waitMined(ctx, tx.Hash())
	if err != nil {
		return nil, errors.Wrapf(entity.ErrTransactionFailed, "%s %s: %v", method, txHash, err)
	}

	result := &entity.TransactionReceipt{
		TxHash:      txHash,
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Status:      entity.ReceiptStatusSuccess,
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		result.Status = entity.ReceiptStatusFailed
		g.logger.Warn("Transaction reverted", zap.String("method", method), zap.String("tx_hash", txHash))
		return result, errors.Wrapf(entity.ErrTransactionFailed, "%s %s reverted", method, txHash)
	}

	g.logger.Info("Transaction confirmed",
		zap.String("method", method),
		zap.String("tx_hash", txHash),
		zap.Uint64("block_number", result.BlockNumber))
	return result, nil
}

// waitMined polls for the receipt every pollInterval until it exists or ctx ends
func (g *ContractGateway) waitMined(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := g.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			g.logger.Debug("Receipt lookup failed", zap.String("tx_hash", hash.Hex()), zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// GetBalance returns the native currency balance of an account
func (g *ContractGateway) GetBalance(ctx context.Context, account entity.Account) (*entity.WalletBalance, error) {
	if !common.IsHexAddress(account.String()) {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "invalid account %q", account)
	}

	balance, err := g.backend.BalanceAt(ctx, common.HexToAddress(account.String()), nil)
	if err != nil {
		return nil, errors.Wrapf(entity.ErrRequestFailed, "balance of %s: %v", account, err)
	}

	return &entity.WalletBalance{
		Account: account,
		Amount:  units.Format(balance),
		AsOf:    time.Now().UTC(),
	}, nil
}

// TradeHistory returns EnergyListed events the account emitted as seller, and EnergySold
// events where it bought or where one of its listings was bought from
func (g *ContractGateway) TradeHistory(ctx context.Context, account entity.Account) ([]*entity.TradeEvent, error) {
	if !common.IsHexAddress(account.String()) {
		return nil, errors.Wrapf(entity.ErrInvalidInput, "invalid account %q", account)
	}
	who := common.HexToAddress(account.String())

	listedID := MarketplaceABI.Events[eventEnergyListed].ID
	soldID := MarketplaceABI.Events[eventEnergySold].ID

	logs, err := g.backend.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(g.startBlock),
		Addresses: []common.Address{g.address},
		Topics:    [][]common.Hash{{listedID, soldID}},
	})
	if err != nil {
		return nil, errors.Wrapf(entity.ErrRequestFailed, "filter marketplace logs: %v", err)
	}

	ownListings := make(map[uint64]bool)
	var events []*entity.TradeEvent
	for _, log := range logs {
		if len(log.Topics) == 0 || log.Removed {
			continue
		}

		switch log.Topics[0] {
		case listedID:
			var ev energyListedEvent
			if err := g.contract.UnpackLog(&ev, eventEnergyListed, log); err != nil {
				g.logger.Warn("Failed to decode EnergyListed", zap.String("tx_hash", log.TxHash.Hex()), zap.Error(err))
				continue
			}
			if ev.Seller != who {
				continue
			}
			ownListings[ev.ListingId.Uint64()] = true
			events = append(events, &entity.TradeEvent{
				Kind:         entity.TradeEventListed,
				ListingID:    ev.ListingId.Uint64(),
				Counterparty: entity.Account(ev.Seller.Hex()),
				Amount:       units.Format(ev.Amount),
				Price:        units.Format(ev.Price),
				TxHash:       log.TxHash.Hex(),
				BlockNumber:  log.BlockNumber,
			})

		case soldID:
			var ev energySoldEvent
			if err := g.contract.UnpackLog(&ev, eventEnergySold, log); err != nil {
				g.logger.Warn("Failed to decode EnergySold", zap.String("tx_hash", log.TxHash.Hex()), zap.Error(err))
				continue
			}
			if ev.Buyer != who && !ownListings[ev.ListingId.Uint64()] {
				continue
			}
			events = append(events, &entity.TradeEvent{
				Kind:         entity.TradeEventSold,
				ListingID:    ev.ListingId.Uint64(),
				Counterparty: entity.Account(ev.Buyer.Hex()),
				Amount:       units.Format(ev.Amount),
				TxHash:       log.TxHash.Hex(),
				BlockNumber:  log.BlockNumber,
			})
		}
	}

	return events, nil
}

func (g *ContractGateway) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx, From: g.account}
}
