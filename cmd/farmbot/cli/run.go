package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/revo-market/contracts/internal/config"
	"github.com/revo-market/contracts/internal/deployment"
	"github.com/revo-market/contracts/internal/metrics"
	"github.com/revo-market/contracts/internal/state"
	"github.com/revo-market/contracts/internal/web"
)

func RunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Deploys the simulated farm and runs the compounder bot, reward emitter and API until interrupted",
		Args:  cobra.ExactArgs(0),
		RunE:  run,
	}
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("mode", config.Mode).Msg("Farm bot starting...")

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	d, err := deployment.Deploy(ctx, deployment.Options{Store: store, Metrics: m, FeeMode: config.FeeMode})
	if err != nil {
		return fmt.Errorf("deployment failed: %w", err)
	}

	bot, err := d.NewBot(deployment.BotOptions{
		SlippagePercent: config.CompoundSlippagePercent,
		DeadlineWindow:  config.CompoundDeadlineWindow,
		MaxRetries:      uint(config.CompoundMaxRetries),
	})
	if err != nil {
		return fmt.Errorf("failed to create compounder bot: %w", err)
	}
	emitter, err := deployment.NewRewardEmitter(d, config.RewardEmissionAmount)
	if err != nil {
		return err
	}

	webServer := web.NewWebServer(web.Config{
		Port:    config.WebPort,
		Vault:   d.Vault,
		Store:   store,
		Metrics: m,
	})
	go func() {
		log.Info().Str("port", config.WebPort).Str("url", "http://localhost:"+config.WebPort).Msg("Starting farm bot API")
		if err := webServer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("Web server failed")
		}
	}()

	go emitter.Run(ctx, config.RewardEmissionInterval)

	// blocks until a signal cancels ctx
	bot.RunLoop(ctx, config.CompoundInterval)
	log.Info().Msg("Farm bot stopped")
	return nil
}

// openStore connects to Postgres when configured and falls back to memory otherwise.
func openStore(ctx context.Context) (state.Store, error) {
	if !config.DatabaseEnabled() {
		log.Warn().Msg("DB_HOST not set, cycle history is kept in memory only")
		return state.NewMemoryStore(), nil
	}
	store, err := state.NewPostgresStore(ctx, config.Database())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := store.EnsureSchema(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to ensure database schema: %w", err)
	}
	return store, nil
}
