package main

import (
	"fmt"

	"energy-trading-dashboard/internal/infrastructure/blockchain"

	"github.com/spf13/cobra"
)

var listingsActiveOnly bool

var listingsCmd = &cobra.Command{
	Use:   "listings",
	Short: "Print the marketplace listings",
	Long:  `Reads every listing from the marketplace contract without connecting a wallet.`,
	RunE:  runListings,
}

func init() {
	listingsCmd.Flags().BoolVar(&listingsActiveOnly, "active", false, "only show active listings")
	rootCmd.AddCommand(listingsCmd)
}

func runListings(cmd *cobra.Command, args []string) error {
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

	count, err := gateway.ListingCount(ctx)
	if err != nil {
		return fmt.Errorf("reading listing count: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "----------------------------------------------------------------")
	fmt.Fprintf(out, "%-5s  %-14s  %12s  %10s  %-8s  %s\n", "ID", "Seller", "Amount", "Price", "Type", "Status")
	fmt.Fprintln(out, "----------------------------------------------------------------")

	shown := 0
	for id := uint64(0); id < count; id++ {
		l, err := gateway.GetListing(ctx, id)
		if err != nil {
			return fmt.Errorf("reading listing %d: %w", id, err)
		}
		if listingsActiveOnly && !l.IsActive {
			continue
		}
		status := "active"
		if !l.IsActive {
			status = "sold out"
		}
		fmt.Fprintf(out, "%-5d  %-14s  %12s  %10s  %-8s  %s\n",
			l.ID, l.Seller.ShortName(), l.Amount, l.Price, l.EnergyType, status)
		shown++
	}

	fmt.Fprintln(out, "----------------------------------------------------------------")
	fmt.Fprintf(out, "%d of %d listings\n", shown, count)
	return nil
}
