package cli

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revo-market/contracts/internal/config"
	"github.com/revo-market/contracts/internal/state"
)

var resetCycle int

func ResetDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reset-db",
		Short: "Drops and recreates every farm bot table. All cycle history and fee parameters are lost.",
		Args:  cobra.ExactArgs(0),
		RunE:  resetDB,
	}
	cmd.Flags().IntVar(&resetCycle, "cycle", -1, "only set the cycle counter to this value and keep all tables")
	return cmd
}

func resetDB(cmd *cobra.Command, args []string) error {
	if !config.DatabaseEnabled() {
		return errors.New("DB_HOST is not set; nothing to reset")
	}
	ctx := cmd.Context()
	dbCfg := config.Database()

	log.Info().
		Str("host", dbCfg.Host).
		Int("port", dbCfg.Port).
		Str("user", dbCfg.User).
		Str("dbname", dbCfg.DBName).
		Msg("Connecting to database")

	store, err := state.NewPostgresStore(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database connection: %w", err)
	}
	defer store.Close()

	if cmd.Flags().Changed("cycle") {
		return store.ResetCycleNumber(ctx, resetCycle)
	}

	if err := store.ResetSchema(ctx); err != nil {
		return err
	}
	log.Info().Msg("Database reset complete!")
	return nil
}
