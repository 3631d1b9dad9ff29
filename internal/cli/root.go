package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/spf13/cobra"
)

// Ledger is the credit ledger the operator commands act on
type Ledger interface {
	GetProfile(ctx context.Context, userID, email string) (*domain.Profile, error)
	Recharge(ctx context.Context, userID string, tier domain.Tier) (*domain.Profile, error)
	Refund(ctx context.Context, jobID string, amount int, reason string) (int, error)
	ExpireBalances(ctx context.Context) (int64, error)
}

// App is what the commands run against
type App struct {
	Ledger  Ledger
	Catalog *domain.Catalog
}

// WireFunc builds the App from a config path. The caller owns releasing what it opens.
type WireFunc func(configPath string) (*App, error)

// NewRootCmd builds the credits-admin command tree
func NewRootCmd(wire WireFunc, defaultConfigPath string) *cobra.Command {
	var (
		configPath string
		app        *App
	)

	rootCmd := &cobra.Command{
		Use:           "credits-admin",
		Short:         "Operate the generation credit ledger",
		Long:          "credits-admin inspects balances, applies recharges and refunds, and runs the expiry sweep against the ledger database.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" {
				return nil
			}
			var err error
			app, err = wire(configPath)
			if err != nil {
				return err
			}
			return nil
		},
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath, "Path to configuration file")

	current := func() *App { return app }

	rootCmd.AddCommand(
		newBalanceCmd(current),
		newRechargeCmd(current),
		newRefundCmd(current),
		newExpireCmd(current),
		newTiersCmd(current),
	)

	return rootCmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
