package app

import (
	"github.com/erp/catalogsync/internal/application/catalogsync"
	"github.com/spf13/cobra"
)

func newPushCmd(opts *globalOptions) *cobra.Command {
	var (
		payload payloadOptions
		format  string
	)
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send a feed straight to the destination without staging",
		Long: `Send every item of a feed straight to the destination in one pass. Nothing
is staged, so unchanged items are sent again. Settings are read from .env
and the environment like every other command.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			body, err := payload.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			p, err := catalogsync.ParsePayload(body)
			if err != nil {
				return err
			}
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

			task, err := d.task(ctx, catalogsync.TaskPush)
			if err != nil {
				return err
			}
			result, runErr := task.Run(ctx, catalogsync.RunRequest{Payload: p})
			if result != nil {
				if err := printResult(cmd, result, format); err != nil {
					return err
				}
			}
			return runErr
		},
	}
	payload.register(cmd)
	cmd.Flags().StringVarP(&format, "output", "o", "text", "Output format (text, json)")
	return cmd
}
