package main

import (
	"fmt"

	"github.com/reddyt/reddyt-admin/logging"
	"github.com/spf13/cobra"
)

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var down bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			db, err := ctx.openDatabase(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			migrator, err := ctx.migrator(db, logging.Component(logger, "migrate"))
			if err != nil {
				return err
			}

			var names []string
			if down {
				names, err = migrator.Down(cmd.Context())
			} else {
				names, err = migrator.Up(cmd.Context())
			}
			if err != nil {
				return err
			}

			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no migrations to run")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "Roll back the last migration group")
	return cmd
}
