package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bilancio/internal/cli"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

var (
	app      *cli.App
	location *time.Location
	format   string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:           "bilancioctl",
	Short:         "Query ledgers, trial balances and budgets",
	Long:          `bilancioctl reads the record store configured by the environment (and .env) and prints derived reports.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if format != formatJSON && format != formatTable {
			return fmt.Errorf("unknown format %q: use %s or %s", format, formatJSON, formatTable)
		}
		cli.LoadEnvFile()
		logger := cli.SetupLogger(logLevel, log.FormatText)
		cfg, err := cli.LoadAndValidateConfig()
		if err != nil {
			return err
		}
		if location, err = cfg.Location(); err != nil {
			return err
		}
		app, err = cli.NewApp(cmd.Context(), cfg, logger)
		return err
	},
}

func init() {
	cobra.OnFinalize(closeApp)
	rootCmd.PersistentFlags().StringVarP(&format, "format", "o", formatTable, "Output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
}

// closeApp releases the backend after every command, including failed ones.
func closeApp() {
	if app == nil {
		return
	}
	if err := app.Close(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: closing backend:", err)
	}
	app = nil
}

// epochFlag parses a --from/--to style flag value.
func epochFlag(cmd *cobra.Command, name string, endOfDay bool) (core.Epoch, error) {
	v, _ := cmd.Flags().GetString(name)
	e, err := core.ParseEpoch(v, location, endOfDay)
	if err != nil {
		return 0, fmt.Errorf("--%s: %w", name, err)
	}
	return e, nil
}
