package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mapyard/marker-ingest/internal/model"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts in the local store",
}

var (
	accountID        string
	accountName      string
	accountMax       int
	accountGeocoding bool
)

// account ensure creates or updates an account row. Against the default
// SQLite store this is how a fresh database gets its first account; against
// Postgres it is an operator override.
var accountEnsureCmd = &cobra.Command{
	Use:   "ensure",
	Short: "Create or update an account and its plan limits",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("account"); err != nil {
			return err
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		acct := &model.Account{
			ID:               accountID,
			Name:             accountName,
			MaxMarkersPerMap: accountMax,
			GeocodingAllowed: accountGeocoding,
		}
		if err := st.EnsureAccount(ctx, acct); err != nil {
			return eris.Wrap(err, "account ensure")
		}

		zap.L().Info("account ensured",
			zap.String("account_id", acct.ID),
			zap.Int("max_markers_per_map", acct.MaxMarkersPerMap),
			zap.Bool("geocoding_allowed", acct.GeocodingAllowed),
		)
		return nil
	},
}

func init() {
	accountEnsureCmd.Flags().StringVar(&accountID, "id", "", "account ID (required)")
	accountEnsureCmd.Flags().StringVar(&accountName, "name", "", "display name")
	accountEnsureCmd.Flags().IntVar(&accountMax, "max-markers", 100, "per-map marker ceiling")
	accountEnsureCmd.Flags().BoolVar(&accountGeocoding, "allow-geocoding", false, "permit geocoding for rows without coordinates")
	_ = accountEnsureCmd.MarkFlagRequired("id")

	accountCmd.AddCommand(accountEnsureCmd)
	rootCmd.AddCommand(accountCmd)
}
