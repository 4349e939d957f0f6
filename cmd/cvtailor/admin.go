package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"cv-tailor/internal/accounts"
	"cv-tailor/internal/credits"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/storage/db"
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Manage account credits",
}

var creditsAddCmd = &cobra.Command{
	Use:   "add <email-or-id> <amount>",
	Short: "Add (or with a negative amount, remove) credits for an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount, err := strconv.Atoi(args[1])
		if err != nil || amount == 0 {
			return fmt.Errorf("amount must be a non-zero integer")
		}
		note, _ := cmd.Flags().GetString("note")
		return withServices(cmd.Context(), func(svc *accounts.Service, ledger *credits.Service) error {
			if !viper.GetBool("yes") {
				confirm := promptui.Prompt{
					Label:     fmt.Sprintf("Adjust %s by %+d credits", args[0], amount),
					IsConfirm: true,
				}
				if _, err := confirm.Run(); err != nil {
					return errors.New("aborted")
				}
			}
			entry, err := ledger.AdjustByEmailOrID(cmd.Context(), args[0], amount, note)
			if err != nil {
				return err
			}
			cmd.Printf("%s balance for %s is now %d\n", color.GreenString("✓"), entry.AccountID, entry.BalanceAfter)
			return nil
		})
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage accounts",
}

var accountRegisterCmd = &cobra.Command{
	Use:   "register <email>",
	Short: "Register a password account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		pwPrompt := promptui.Prompt{
			Label: "Password",
			Mask:  '*',
			Validate: func(s string) error {
				if len(s) < accounts.MinPasswordLength {
					return fmt.Errorf("at least %d characters", accounts.MinPasswordLength)
				}
				return nil
			},
		}
		password, err := pwPrompt.Run()
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(svc *accounts.Service, _ *credits.Service) error {
			account, err := svc.Register(cmd.Context(), args[0], password, name)
			if err != nil {
				return err
			}
			cmd.Printf("%s registered %s (%s) with %d credits\n", color.GreenString("✓"), account.Email, account.ID, account.CreditBalance)
			return nil
		})
	},
}

func init() {
	creditsAddCmd.Flags().String("note", "cli", "ledger reference for the adjustment")
	creditsCmd.AddCommand(creditsAddCmd)
	accountRegisterCmd.Flags().String("name", "", "display name")
	accountCmd.AddCommand(accountRegisterCmd)
	rootCmd.AddCommand(creditsCmd, accountCmd)
}

// withServices opens the service database and builds the account and credit
// services on top of it.
func withServices(ctx context.Context, fn func(*accounts.Service, *credits.Service) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := loadConfig()
	sqlDB, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	ledger := credits.NewPostgresService(credits.NewPGStore(sqlDB))
	svc := accounts.NewService(&accounts.PGRepo{DB: sqlDB}, ledger, cfg.SignupCredits, cfg.BcryptCost)
	ledger.Resolver = svc
	return fn(svc, ledger)
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, errors.New("DATABASE_URL (or --database-url) is required")
	}
	return db.Connect(ctx, cfg.DatabaseURL, db.OptionsFromEnv(db.Defaults(db.ProfileMigrate)))
}
