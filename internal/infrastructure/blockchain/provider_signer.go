package blockchain

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

// rpcCaller is the part of *rpc.Client the provider signer uses
type rpcCaller interface {
	CallContext(ctx context.Context, result interface{}, method string, args ...interface{}) error
}

// signTransactionArgs is the eth_signTransaction request object
type signTransactionArgs struct {
	From                 common.Address  `json:"from"`
	To                   *common.Address `json:"to,omitempty"`
	Gas                  hexutil.Uint64  `json:"gas"`
	GasPrice             *hexutil.Big    `json:"gasPrice,omitempty"`
	MaxFeePerGas         *hexutil.Big    `json:"maxFeePerGas,omitempty"`
	MaxPriorityFeePerGas *hexutil.Big    `json:"maxPriorityFeePerGas,omitempty"`
	Value                *hexutil.Big    `json:"value"`
	Nonce                hexutil.Uint64  `json:"nonce"`
	Data                 hexutil.Bytes   `json:"data"`
	ChainID              *hexutil.Big    `json:"chainId,omitempty"`
}

// signTransactionResult is the eth_signTransaction response
type signTransactionResult struct {
	Raw hexutil.Bytes `json:"raw"`
}

// NewProviderSigner delegates transaction signing to the wallet provider through
// eth_signTransaction, so the key never leaves the provider
func NewProviderSigner(client rpcCaller, chainID *big.Int, timeout time.Duration) bind.SignerFn {
	return func(from common.Address, tx *types.Transaction) (*types.Transaction, error) {
		args := signTransactionArgs{
			From:    from,
			To:      tx.To(),
			Gas:     hexutil.Uint64(tx.Gas()),
			Value:   (*hexutil.Big)(tx.Value()),
			Nonce:   hexutil.Uint64(tx.Nonce()),
			Data:    tx.Data(),
			ChainID: (*hexutil.Big)(chainID),
		}
		if tx.Type() == types.DynamicFeeTxType {
			args.MaxFeePerGas = (*hexutil.Big)(tx.GasFeeCap())
			args.MaxPriorityFeePerGas = (*hexutil.Big)(tx.GasTipCap())
		} else {
			args.GasPrice = (*hexutil.Big)(tx.GasPrice())
		}

		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		var res signTransactionResult
		if err := client.CallContext(ctx, &res, "eth_signTransaction", args); err != nil {
			return nil, classifyProviderError("eth_signTransaction", err)
		}

		signed := new(types.Transaction)
		if err := signed.UnmarshalBinary(res.Raw); err != nil {
			return nil, errors.Wrap(err, "decode signed transaction")
		}

		sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
		if err != nil {
			return nil, errors.Wrap(err, "recover signed transaction sender")
		}
		if sender != from {
			return nil, errors.Errorf("provider signed with %s, expected %s", sender.Hex(), from.Hex())
		}
		return signed, nil
	}
}
