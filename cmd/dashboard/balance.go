package main

import (
	"fmt"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/infrastructure/blockchain"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
)

var balanceCmd = &cobra.Command{
	Use:   "balance <account>",
	Short: "Print the native currency balance of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runBalance,
}

func init() {
	rootCmd.AddCommand(balanceCmd)
}

func runBalance(cmd *cobra.Command, args []string) error {
	if !common.IsHexAddress(args[0]) {
		return fmt.Errorf("invalid account %q", args[0])
	}
	account := entity.Account(common.HexToAddress(args[0]).Hex())

	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx := cmd.Context()
	gateway, closeFn, err := blockchain.NewWalletConnector(cfg, log).ReadOnlyGateway(ctx)
	if err != nil {
		return fmt.Errorf("connecting to provider: %w", err)
	}
	defer closeFn()

	balance, err := gateway.GetBalance(ctx, account)
	if err != nil {
		return fmt.Errorf("reading balance: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s ETH\n", balance.Account, balance.Amount)
	return nil
}
