package blockchain

import (
	"context"
	"crypto/ecdsa"
	"net"
	"strings"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/config"
	"energy-trading-dashboard/internal/infrastructure/logger"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// EIP-1193 and JSON-RPC error codes the connector distinguishes
const (
	codeUserRejected   = 4001
	codeUnauthorized   = 4100
	codeMethodNotFound = -32601
)

// WalletConnector requests an account from the JSON-RPC wallet provider
type WalletConnector struct {
	walletCfg   config.WalletConfig
	contractCfg config.ContractConfig
	logger      *logger.Logger
}

var _ service.WalletConnector = (*WalletConnector)(nil)

// NewWalletConnector creates a new wallet connector
func NewWalletConnector(cfg *config.Config, logger *logger.Logger) *WalletConnector {
	return &WalletConnector{
		walletCfg:   cfg.Wallet,
		contractCfg: cfg.Contract,
		logger:      logger.WithComponent("wallet-connector"),
	}
}

// WalletSession is a connected account with its signer and contract gateway
type WalletSession struct {
	account entity.Account
	gateway *ContractGateway
	client  *rpc.Client
}

var _ service.WalletSession = (*WalletSession)(nil)

// Account returns the connected account
func (s *WalletSession) Account() entity.Account {
	return s.account
}

// Gateway returns the contract gateway bound to the account's signer
func (s *WalletSession) Gateway() service.ContractGateway {
	return s.gateway
}

// Close releases the provider connection
func (s *WalletSession) Close() {
	if s.client != nil {
		s.client.Close()
	}
}

// Connect requests account access. Without a provider URL it fails with
// entity.ErrProviderUnavailable before any network call.
func (c *WalletConnector) Connect(ctx context.Context) (service.WalletSession, error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}

	reqCtx := ctx
	if c.walletCfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, c.walletCfg.RequestTimeout)
		defer cancel()
	}

	var (
		account common.Address
		signer  bind.SignerFn
	)

	ethClient := ethclient.NewClient(client)

	if c.walletCfg.PrivateKey != "" {
		key, err := parsePrivateKey(c.walletCfg.PrivateKey)
		if err != nil {
			client.Close()
			return nil, errors.Wrapf(entity.ErrRequestFailed, "wallet private key: %v", err)
		}
		chainID, err := ethClient.ChainID(reqCtx)
		if err != nil {
			client.Close()
			return nil, classifyProviderError("eth_chainId", err)
		}
		opts, err := bind.NewKeyedTransactorWithChainID(key, chainID)
		if err != nil {
			client.Close()
			return nil, errors.Wrapf(entity.ErrRequestFailed, "keyed transactor: %v", err)
		}
		account, signer = opts.From, opts.Signer
	} else {
		account, err = c.requestAccount(reqCtx, client)
		if err != nil {
			client.Close()
			return nil, err
		}
		chainID, err := ethClient.ChainID(reqCtx)
		if err != nil {
			client.Close()
			return nil, classifyProviderError("eth_chainId", err)
		}
		signer = NewProviderSigner(client, chainID, c.walletCfg.RequestTimeout)
	}

	gateway, err := NewContractGateway(ethClient, c.contractCfg, account, signer, c.logger)
	if err != nil {
		client.Close()
		return nil, errors.Wrap(entity.ErrRequestFailed, err.Error())
	}

	c.logger.Info("Wallet connected", zap.String("account", account.Hex()))

	return &WalletSession{
		account: entity.Account(account.Hex()),
		gateway: gateway,
		client:  client,
	}, nil
}

// ReadOnlyGateway returns a gateway without signing capability for one-shot reads
func (c *WalletConnector) ReadOnlyGateway(ctx context.Context) (*ContractGateway, func(), error) {
	client, err := c.dial(ctx)
	if err != nil {
		return nil, nil, err
	}

	gateway, err := NewContractGateway(ethclient.NewClient(client), c.contractCfg, common.Address{}, nil, c.logger)
	if err != nil {
		client.Close()
		return nil, nil, errors.Wrap(entity.ErrRequestFailed, err.Error())
	}
	return gateway, client.Close, nil
}

// dial opens the provider connection
func (c *WalletConnector) dial(ctx context.Context) (*rpc.Client, error) {
	url := strings.TrimSpace(c.walletCfg.ProviderURL)
	if url == "" {
		c.logger.Warn("No wallet provider configured")
		return nil, errors.Wrap(entity.ErrProviderUnavailable, "no provider url configured")
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		c.logger.Error("Failed to reach wallet provider", zap.String("url", url), zap.Error(err))
		return nil, errors.Wrapf(entity.ErrProviderUnavailable, "dial %s: %v", url, err)
	}
	return client, nil
}

// requestAccount asks the provider for permission and returns the first account.
// Providers without eth_requestAccounts fall back to eth_accounts.
func (c *WalletConnector) requestAccount(ctx context.Context, client *rpc.Client) (common.Address, error) {
	var accounts []common.Address

	err := client.CallContext(ctx, &accounts, "eth_requestAccounts")
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) && rpcErr.ErrorCode() == codeMethodNotFound {
		c.logger.Debug("eth_requestAccounts unsupported, using eth_accounts")
		err = client.CallContext(ctx, &accounts, "eth_accounts")
	}
	if err != nil {
		c.logger.Error("Account request failed", zap.Error(err))
		return common.Address{}, classifyProviderError("eth_requestAccounts", err)
	}

	if len(accounts) == 0 {
		return common.Address{}, errors.Wrap(entity.ErrUserRejected, "provider returned no accounts")
	}
	return accounts[0], nil
}

// classifyProviderError maps a provider failure onto the wallet error taxonomy
func classifyProviderError(method string, err error) error {
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		switch rpcErr.ErrorCode() {
		case codeUserRejected, codeUnauthorized:
			return errors.Wrapf(entity.ErrUserRejected, "%s: %v", method, err)
		}
		return errors.Wrapf(entity.ErrRequestFailed, "%s: %v", method, err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return errors.Wrapf(entity.ErrProviderUnavailable, "%s: %v", method, err)
	}
	return errors.Wrapf(entity.ErrRequestFailed, "%s: %v", method, err)
}

func parsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(hexKey), "0x"))
}
