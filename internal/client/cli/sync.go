package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mpavlenko/docketsync/internal/client/storage"
)

func (a *App) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Pull remote changes and push local ones",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.orch.Sync(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "sync complete")
			return nil
		},
	}
}

func (a *App) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session and pending-change summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			username, err := a.db.Meta().Get(ctx, storage.MetaUsername)
			if err != nil {
				username = "(not logged in)"
			}

			createdCases, err := a.db.Cases().PendingCreated(ctx)
			if err != nil {
				return err
			}
			updatedCases, err := a.db.Cases().PendingUpdated(ctx)
			if err != nil {
				return err
			}
			deletedCases, err := a.db.Cases().PendingDeletedIDs(ctx)
			if err != nil {
				return err
			}
			createdDates, err := a.db.Dates().PendingCreated(ctx)
			if err != nil {
				return err
			}
			updatedDates, err := a.db.Dates().PendingUpdated(ctx)
			if err != nil {
				return err
			}
			deletedDates, err := a.db.Dates().PendingDeletedIDs(ctx)
			if err != nil {
				return err
			}
			cursor, err := a.db.Meta().GetInt64(ctx, storage.MetaLastPulledAt)
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "user:           %s\n", username)
			fmt.Fprintf(a.out, "state:          %s\n", a.orch.State())
			fmt.Fprintf(a.out, "last pulled at: %d\n", cursor)
			fmt.Fprintf(a.out, "pending cases:  %d created, %d updated, %d deleted\n",
				len(createdCases), len(updatedCases), len(deletedCases))
			fmt.Fprintf(a.out, "pending dates:  %d created, %d updated, %d deleted\n",
				len(createdDates), len(updatedDates), len(deletedDates))
			return nil
		},
	}
}

func (a *App) pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check server connectivity",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.api.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(a.out, "server is reachable")
			return nil
		},
	}
}
