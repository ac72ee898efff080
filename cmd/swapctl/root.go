package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/defistate/swapintent-go/cmd/swapctl/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

const defaultEnvFile = ".env"

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	expert     bool
}

// load reads the env file and the config file and builds the root logger.
func (o *rootOptions) load() (*config.Config, *slog.Logger, error) {
	if err := godotenv.Load(o.envFile); err != nil {
		// A missing default .env is fine; an explicitly named one is not.
		if !(errors.Is(err, fs.ErrNotExist) && o.envFile == defaultEnvFile) {
			return nil, nil, fmt.Errorf("failed to load env file %s: %w", o.envFile, err)
		}
	}
	logger, err := newLogger(o.logLevel)
	if err != nil {
		return nil, nil, err
	}
	logger.Debug("Loading configuration", "path", o.configPath)
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "swapctl",
		Short: "Quote and execute Uniswap V2 style swaps from the command line",
		Long: `swapctl resolves the best route for a swap intent across the configured
router versions, manages the ERC-20 approval and executes the swap.

An intent is either a short phrase or a swap query:
  swapctl quote 1.5 MATIC to USDC
  swapctl quote MATIC to 100 USDC
  swapctl swap 'inputCurrency=ETH&outputCurrency=0x2791Bca1f2de4661ED88A30C99A7a9449Aa84174&exactAmount=1'

The signing key is read from ` + privateKeyEnv + `, optionally from an env file.`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "config.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&opts.envFile, "env-file", defaultEnvFile, "Path to an env file with secrets")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "Log level: debug, info, warn or error")

	root.AddCommand(
		newQuoteCmd(opts),
		newApproveCmd(opts),
		newSwapCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}
