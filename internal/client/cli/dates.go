package cli

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	clientmodels "github.com/mpavlenko/docketsync/internal/client/models"
	"github.com/mpavlenko/docketsync/internal/models"
)

func (a *App) dateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "date",
		Short: "Manage hearings and deadlines",
	}
	cmd.AddCommand(a.dateAddCmd(), a.dateListCmd(), a.dateRmCmd(), a.datePhotoCmd())
	return cmd
}

func (a *App) dateAddCmd() *cobra.Command {
	var caseID, date, notes, photo string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a date to a case",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if _, err := time.Parse("2006-01-02", date); err != nil {
				return fmt.Errorf("date must be YYYY-MM-DD, got %q", date)
			}
			if _, err := a.db.Cases().Get(ctx, caseID); err != nil {
				return fmt.Errorf("case %s: %w", caseID, err)
			}

			now := models.NowMillis()
			d := &clientmodels.CaseDate{
				ID:          uuid.NewString(),
				CaseID:      caseID,
				Date:        date,
				Notes:       notes,
				PhotoPath:   photo,
				CreatedAtMs: now,
				UpdatedAtMs: now,
			}
			if err := a.db.Dates().Insert(ctx, d); err != nil {
				return err
			}
			fmt.Fprintln(a.out, d.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "case id")
	cmd.Flags().StringVar(&date, "date", "", "calendar date, YYYY-MM-DD")
	cmd.Flags().StringVar(&notes, "notes", "", "notes")
	cmd.Flags().StringVar(&photo, "photo", "", "path to a local photo attachment")
	_ = cmd.MarkFlagRequired("case")
	_ = cmd.MarkFlagRequired("date")
	return cmd
}

func (a *App) dateListCmd() *cobra.Command {
	var caseID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a case's dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := a.db.Dates().ListByCase(cmd.Context(), caseID)
			if err != nil {
				return err
			}
			for _, d := range list {
				photo := ""
				if d.PhotoPath != "" {
					photo = "  [photo]"
				}
				fmt.Fprintf(a.out, "%s  %s  %s%s\n", d.ID, d.Date, d.Notes, photo)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&caseID, "case", "", "case id")
	_ = cmd.MarkFlagRequired("case")
	return cmd
}

func (a *App) dateRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.Dates().Delete(cmd.Context(), args[0], models.NowMillis())
		},
	}
}

func (a *App) datePhotoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "photo <id> <path>",
		Short: "Attach a local photo to a date (never synced)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.db.Dates().SetPhotoPath(cmd.Context(), args[0], args[1])
		},
	}
}
