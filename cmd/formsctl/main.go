package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/localnerve/formsdb/data"
	"github.com/localnerve/formsdb/internal/config"
	"github.com/localnerve/formsdb/internal/database"
	"github.com/localnerve/formsdb/internal/logging"
	"github.com/localnerve/formsdb/internal/services"
	"github.com/localnerve/formsdb/internal/types"
)

var rootCmd = &cobra.Command{
	Use:           "formsctl",
	Short:         "Administer a formsdb database",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withDB(func(db *gorm.DB) error {
			if err := database.AutoMigrate(db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		})
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert the default roles and permissions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		seed, err := services.ParseAccessSeed(data.AccessSeed)
		if err != nil {
			return err
		}
		return withDB(func(db *gorm.DB) error {
			if err := services.SeedAccessControl(cmd.Context(), db, seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d roles\n", len(seed.Roles))
			return nil
		})
	},
}

var grantRoleCmd = &cobra.Command{
	Use:   "grant-role <user-id> <role-slug>",
	Short: "Assign a role to a user, creating the user if needed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *gorm.DB) error {
			access := services.NewAccessService(db, nil, services.LogRevalidator{})
			user, err := access.AssignRole(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s now has role %s\n", user.ID, args[1])
			return nil
		})
	},
}

var checkFieldsCmd = &cobra.Command{
	Use:   "check-fields <form-id>...",
	Short: "Check stored field definitions for broken options or dependency cycles",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withDB(func(db *gorm.DB) error {
			fields := services.NewFieldService(db, services.LogRevalidator{})
			failed := 0
			for _, formID := range args {
				err := fields.CheckForm(cmd.Context(), formID)
				var cfgErr *types.ConfigurationError
				switch {
				case err == nil:
					fmt.Fprintf(cmd.OutOrStdout(), "%s: ok\n", formID)
				case errors.As(err, &cfgErr):
					failed++
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s [%s]\n", formID, cfgErr.Reason, strings.Join(cfgErr.FieldIDs, ", "))
				default:
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d forms have invalid fields", failed, len(args))
			}
			return nil
		})
	},
}

func withDB(fn func(db *gorm.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg)
	if err != nil {
		return err
	}
	defer database.Close(db)
	return fn(db)
}

func main() {
	rootCmd.AddCommand(migrateCmd, seedCmd, grantRoleCmd, checkFieldsCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
