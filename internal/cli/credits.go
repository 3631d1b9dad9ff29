package cli

import (
	"fmt"
	"time"

	"github.com/cuongbtq/genesis-be/internal/domain"
	"github.com/spf13/cobra"
)

func formatExpiry(expiresAt *time.Time) string {
	if expiresAt == nil {
		return "never"
	}
	return expiresAt.UTC().Format(time.RFC3339)
}

func newBalanceCmd(app func() *App) *cobra.Command {
	var (
		userID  string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Show a user's credit balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			profile, err := app().Ledger.GetProfile(cmd.Context(), userID, "")
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), profile)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user: %s\ncredits: %d\nexpires: %s\n",
				profile.UserID, profile.Credits, formatExpiry(profile.CreditsExpiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")
	_ = cmd.MarkFlagRequired("user")

	return cmd
}

func newRechargeCmd(app func() *App) *cobra.Command {
	var userID, tierKey string

	cmd := &cobra.Command{
		Use:   "recharge",
		Short: "Add a tier's credits to a user's balance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tier, err := app().Catalog.Lookup(tierKey)
			if err != nil {
				return fmt.Errorf("%w: %q", err, tierKey)
			}

			profile, err := app().Ledger.Recharge(cmd.Context(), userID, tier)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "added %d credits (%s) to %s\ncredits: %d\nexpires: %s\n",
				tier.Credits, tier.Key, profile.UserID, profile.Credits, formatExpiry(profile.CreditsExpiresAt))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "User id")
	cmd.Flags().StringVar(&tierKey, "tier", "", "Tier key")
	_ = cmd.MarkFlagRequired("user")
	_ = cmd.MarkFlagRequired("tier")

	return cmd
}

func newRefundCmd(app func() *App) *cobra.Command {
	var (
		jobID  string
		amount int
		reason string
	)

	cmd := &cobra.Command{
		Use:   "refund",
		Short: "Credit a job's owner outside the pipeline",
		RunE: func(cmd *cobra.Command, _ []string) error {
			credits, err := app().Ledger.Refund(cmd.Context(), jobID, amount, reason)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "refunded %d credits for job %s\ncredits: %d\n", amount, jobID, credits)
			return nil
		},
	}
	cmd.Flags().StringVar(&jobID, "job", "", "Job id")
	cmd.Flags().IntVar(&amount, "amount", 0, "Credits to refund")
	cmd.Flags().StringVar(&reason, "reason", domain.ReasonManualRefund, "Audit reason")
	_ = cmd.MarkFlagRequired("job")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newExpireCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "expire",
		Short: "Zero every balance whose expiry has passed",
		RunE: func(cmd *cobra.Command, _ []string) error {
			expired, err := app().Ledger.ExpireBalances(cmd.Context())
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "expired balances: %d\n", expired)
			return nil
		},
	}
}

func newTiersCmd(app func() *App) *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "tiers",
		Short: "List recharge tiers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tiers := app().Catalog.List()
			if jsonOut {
				return writeJSON(cmd.OutOrStdout(), tiers)
			}

			for _, tier := range tiers {
				validity := "none"
				if tier.Validity > 0 {
					validity = tier.Validity.String()
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d credits\t$%d.%02d\tvalidity %s\n",
					tier.Key, tier.Name, tier.Credits, tier.PriceCents/100, tier.PriceCents%100, validity)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print as JSON")

	return cmd
}
