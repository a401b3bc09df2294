package blockchain

import (
	"context"
	"math/big"
	"sync"

	"energy-trading-dashboard/pkg/units"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

var errExecutionReverted = errors.New("execution reverted")

type fakeListing struct {
	seller     common.Address
	amount     *big.Int
	price      *big.Int
	energyType string
	active     bool
}

// fakeMarketplace is an in-memory contract backend executing the marketplace ABI
type fakeMarketplace struct {
	mu sync.Mutex

	chainID  *big.Int
	block    uint64
	listings []*fakeListing
	balances map[common.Address]*big.Int
	nonces   map[common.Address]uint64
	receipts map[common.Hash]*types.Receipt
	sent     []*types.Transaction
	logs     []types.Log

	callErr      error
	sendErr      error
	holdReceipts bool
	// pendingPolls receipt lookups report NotFound before a mined receipt is returned
	pendingPolls int
	receiptPolls int
}

func newFakeMarketplace() *fakeMarketplace {
	return &fakeMarketplace{
		chainID:  big.NewInt(1337),
		block:    1,
		balances: make(map[common.Address]*big.Int),
		nonces:   make(map[common.Address]uint64),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeMarketplace) addListing(seller common.Address, amount, price string, energyType string, active bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listings = append(f.listings, &fakeListing{
		seller:     seller,
		amount:     mustUnits(amount),
		price:      mustUnits(price),
		energyType: energyType,
		active:     active,
	})
}

func (f *fakeMarketplace) setBalance(account common.Address, amount string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.balances[account] = mustUnits(amount)
}

func (f *fakeMarketplace) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeMarketplace) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x60, 0x80}, nil
}

func (f *fakeMarketplace) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.callErr != nil {
		return nil, f.callErr
	}

	method, err := MarketplaceABI.MethodById(call.Data[:4])
	if err != nil {
		return nil, err
	}
	args, err := method.Inputs.Unpack(call.Data[4:])
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case methodListingCount:
		return method.Outputs.Pack(big.NewInt(int64(len(f.listings))))
	case methodGetListing:
		id := args[0].(*big.Int)
		if !id.IsUint64() || id.Uint64() >= uint64(len(f.listings)) {
			return nil, errExecutionReverted
		}
		l := f.listings[id.Uint64()]
		return method.Outputs.Pack(l.seller, l.amount, l.price, l.energyType, l.active)
	}
	return nil, errors.Errorf("unexpected call %s", method.Name)
}

func (f *fakeMarketplace) PendingCallContract(ctx context.Context, call ethereum.CallMsg) ([]byte, error) {
	return f.CallContract(ctx, call, nil)
}

func (f *fakeMarketplace) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Header{Number: new(big.Int).SetUint64(f.block), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeMarketplace) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.block, nil
}

func (f *fakeMarketplace) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeMarketplace) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1), nil
}

func (f *fakeMarketplace) EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error) {
	return 200_000, nil
}

func (f *fakeMarketplace) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *fakeMarketplace) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.sendErr != nil {
		return f.sendErr
	}

	sender, err := types.Sender(types.LatestSignerForChainID(f.chainID), tx)
	if err != nil {
		return err
	}
	f.nonces[sender]++
	f.sent = append(f.sent, tx)

	status := types.ReceiptStatusSuccessful
	if err := f.execute(sender, tx); err != nil {
		status = types.ReceiptStatusFailed
	}

	receipt := &types.Receipt{
		Status:      status,
		TxHash:      tx.Hash(),
		BlockNumber: new(big.Int).SetUint64(f.block),
		GasUsed:     50_000,
	}
	f.block++
	if !f.holdReceipts {
		f.receipts[tx.Hash()] = receipt
	}
	return nil
}

// execute applies a marketplace transaction, returning an error for a revert
func (f *fakeMarketplace) execute(sender common.Address, tx *types.Transaction) error {
	method, err := MarketplaceABI.MethodById(tx.Data()[:4])
	if err != nil {
		return err
	}
	args, err := method.Inputs.Unpack(tx.Data()[4:])
	if err != nil {
		return err
	}

	switch method.Name {
	case methodListEnergy:
		id := big.NewInt(int64(len(f.listings)))
		l := &fakeListing{
			seller:     sender,
			amount:     args[0].(*big.Int),
			price:      args[1].(*big.Int),
			energyType: args[2].(string),
			active:     true,
		}
		f.listings = append(f.listings, l)
		return f.emit(eventEnergyListed, id, tx.Hash(), sender, l.amount, l.price)

	case methodBuyEnergy:
		id := args[0].(*big.Int)
		amount := args[1].(*big.Int)
		if id.Uint64() >= uint64(len(f.listings)) {
			return errExecutionReverted
		}
		l := f.listings[id.Uint64()]
		if !l.active || amount.Cmp(l.amount) > 0 {
			return errExecutionReverted
		}
		cost := new(big.Int).Mul(amount, l.price)
		cost.Quo(cost, mustUnits("1"))
		if tx.Value().Cmp(cost) != 0 {
			return errExecutionReverted
		}

		l.amount = new(big.Int).Sub(l.amount, amount)
		if l.amount.Sign() == 0 {
			l.active = false
		}
		f.balances[sender] = new(big.Int).Sub(f.balanceOf(sender), cost)
		f.balances[l.seller] = new(big.Int).Add(f.balanceOf(l.seller), cost)
		return f.emit(eventEnergySold, id, tx.Hash(), sender, amount)
	}
	return errors.Errorf("unexpected transaction %s", method.Name)
}

func (f *fakeMarketplace) emit(name string, id *big.Int, txHash common.Hash, args ...interface{}) error {
	event := MarketplaceABI.Events[name]
	data, err := event.Inputs.NonIndexed().Pack(args...)
	if err != nil {
		return err
	}
	f.logs = append(f.logs, types.Log{
		Topics:      []common.Hash{event.ID, common.BigToHash(id)},
		Data:        data,
		BlockNumber: f.block,
		TxHash:      txHash,
	})
	return nil
}

func (f *fakeMarketplace) balanceOf(account common.Address) *big.Int {
	if b, ok := f.balances[account]; ok {
		return b
	}
	return new(big.Int)
}

func (f *fakeMarketplace) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.receiptPolls++
	if r, ok := f.receipts[txHash]; ok {
		if f.pendingPolls > 0 {
			f.pendingPolls--
			return nil, ethereum.NotFound
		}
		return r, nil
	}
	return nil, ethereum.NotFound
}

func (f *fakeMarketplace) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return new(big.Int).Set(f.balanceOf(account)), nil
}

func (f *fakeMarketplace) ChainID(ctx context.Context) (*big.Int, error) {
	return f.chainID, nil
}

func (f *fakeMarketplace) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Log, len(f.logs))
	copy(out, f.logs)
	return out, nil
}

func (f *fakeMarketplace) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("subscriptions not supported")
}

func (f *fakeMarketplace) lastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func mustUnits(value string) *big.Int {
	return units.MustParse(value)
}
