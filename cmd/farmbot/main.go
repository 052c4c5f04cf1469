package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/revo-market/contracts/cmd/farmbot/cli"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}
}

// main is the entry point for the farm bot.
func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
