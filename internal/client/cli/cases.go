package cli

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	clientmodels "github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/models"
)

func (a *App) caseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "case",
		Short: "Manage court cases",
	}
	cmd.AddCommand(a.caseAddCmd(), a.caseListCmd(), a.caseRmCmd())
	return cmd
}

func (a *App) caseAddCmd() *cobra.Command {
	var plaintiff, defendant, title, details string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			now := models.NowMillis()
			c := &clientmodels.Case{
				ID:          uuid.NewString(),
				Plaintiff:   plaintiff,
				Defendant:   defendant,
				Title:       title,
				Details:     details,
				CreatedAtMs: now,
				UpdatedAtMs: now,
			}
			if err := a.db.Cases().Insert(cmd.Context(), c); err != nil {
				return err
			}
			fmt.Fprintln(a.out, c.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&plaintiff, "plaintiff", "", "plaintiff name")
	cmd.Flags().StringVar(&defendant, "defendant", "", "defendant name")
	cmd.Flags().StringVar(&title, "title", "", "case title")
	cmd.Flags().StringVar(&details, "details", "", "free-form details")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func (a *App) caseListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cases",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.db.Cases().ListActive(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range list {
				marker := ""
				if c.SyncStatus != clientmodels.StatusSynced {
					marker = " *"
				}
				fmt.Fprintf(a.out, "%s  %s (%s v. %s)%s\n", c.ID, c.Title, c.Plaintiff, c.Defendant, marker)
			}
			return nil
		},
	}
}

func (a *App) caseRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a case and all of its dates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.DeleteCaseCascade(cmd.Context(), args[0], models.NowMillis())
		},
	}
}
