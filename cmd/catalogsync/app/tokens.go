package app

import (
	"fmt"

	"github.com/erp/catalogsync/internal/infrastructure/persistence"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newTokensCmd manages the invocation token table of the database backend.
func newTokensCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Manage claimed invocation tokens",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete lapsed invocation token claims",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			d, err := newDeps(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = d.Close() }()

			db, err := d.database()
			if err != nil {
				return err
			}
			removed, err := persistence.NewGormInvocationTokenStore(db.DB).Purge(ctx)
			if err != nil {
				return fmt.Errorf("failed to purge tokens: %w", err)
			}
			d.logger.Info("Purged lapsed invocation tokens", zap.Int64("removed", removed))
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "removed=%d\n", removed)
			return err
		},
	})
	return cmd
}
