package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/lacs-cc/auth-gateway/internal/config"
	"github.com/lacs-cc/auth-gateway/internal/database"
	"github.com/lacs-cc/auth-gateway/internal/invites"
)

// NewInvitesCmd creates the invites command group.
func NewInvitesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "invites",
		Short: "Inspect invite codes",
	}

	cmd.AddCommand(newInvitesListCmd())
	cmd.AddCommand(newInvitesCheckCmd())

	return cmd
}

func newInvitesListCmd() *cobra.Command {
	var createdBy string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invite codes allocated by a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if createdBy == "" {
				return fmt.Errorf("--created-by is required")
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			repo := database.NewInviteCodeRepository(db)
			codes, err := repo.ListByCreator(context.Background(), createdBy)
			if err != nil {
				return fmt.Errorf("failed to list invite codes: %w", err)
			}

			if len(codes) == 0 {
				fmt.Printf("No invite codes allocated by %s\n", createdBy)
				return nil
			}

			fmt.Printf("Invite codes allocated by %s:\n", createdBy)
			for _, ic := range codes {
				status := "unused"
				if ic.IsUsed {
					status = "used"
					if ic.UsedByEmail != nil {
						status = fmt.Sprintf("used by %s", *ic.UsedByEmail)
					}
					if ic.UsedAt != nil {
						status += " at " + ic.UsedAt.Format(time.RFC3339)
					}
				}
				fmt.Printf("  %s  created %s  %s\n", ic.Code, ic.CreatedAt.Format(time.RFC3339), status)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&createdBy, "created-by", "", "Email of the allocating user")

	return cmd
}

func newInvitesCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <code>",
		Short: "Check whether an invite code is redeemable",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := invites.Normalize(args[0])
			if !invites.IsValidFormat(code) {
				fmt.Printf("%s: invalid format (expected 6 letters or digits)\n", args[0])
				return nil
			}

			db, err := openDatabase()
			if err != nil {
				return err
			}
			defer closeDatabase(db)

			repo := database.NewInviteCodeRepository(db)
			ic, err := repo.GetByCode(context.Background(), code)
			if errors.Is(err, database.ErrCodeNotFound) {
				fmt.Printf("%s: not found\n", code)
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to look up invite code: %w", err)
			}

			if ic.IsUsed {
				usedBy := "unknown"
				if ic.UsedByEmail != nil {
					usedBy = *ic.UsedByEmail
				}
				fmt.Printf("%s: already used by %s\n", code, usedBy)
				return nil
			}

			fmt.Printf("%s: redeemable (created %s)\n", code, ic.CreatedAt.Format(time.RFC3339))
			return nil
		},
	}

	return cmd
}

func openDatabase() (*database.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func closeDatabase(db *database.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
	}
}
