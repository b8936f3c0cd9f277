// Package cmd provides the CLI commands for import-cost.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"import-cost/adapters/tariffile"
	"import-cost/adapters/tariffredis"
	"import-cost/core/tariff"
	"import-cost/internal/config"
	"import-cost/internal/logging"
)

// Version is the tool version, set at build time
var Version = "0.1.0"

var (
	cfgFile string
	verbose bool
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "import-cost",
	Short: "Estimate the landed cost of an imported vehicle",
	Long: `import-cost turns a vehicle's EUR price and technical data into an
itemized breakdown of customs duty, fees and expenses in local currency.

Examples:
  import-cost estimate --price 20000 --rate 95 --cc 2000 --hp 150 --reg-year 2021 --reg-month 3
  import-cost estimate --electric --kw 150 --price 40000 --format json
  import-cost tariff apply tariff.yaml fees.csv --write`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	defer logging.Sync()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.import-cost/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(versionCmd)
}

func initConfig() {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	config.Set(cfg)

	// Initialize logging
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := logging.Initialize(cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logging: %v\n", err)
	}
}

// versionCmd prints version information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "import-cost version %s\n", Version)
	},
}

// tariffProvider picks where the tariff comes from: an explicit file wins,
// then Redis when configured, then the configured file path.
func tariffProvider(ctx context.Context, path, format string) (tariff.Provider, func(), error) {
	cfg := config.Get()
	noop := func() {}

	if path == "" && cfg.Redis.Enabled() {
		p, err := redisProvider(ctx)
		if err != nil {
			return nil, noop, err
		}
		return p, func() { _ = p.Close() }, nil
	}

	if path == "" {
		path = cfg.Tariff.Path
	}
	if format == "" {
		format = cfg.Tariff.Format
	}
	f, err := tariffile.ParseFormat(format)
	if err != nil {
		return nil, noop, err
	}
	return tariffile.NewProvider(path, f), noop, nil
}

func redisProvider(ctx context.Context) (*tariffredis.Provider, error) {
	r := config.Get().Redis
	return tariffredis.New(ctx, tariffredis.Config{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Key:      r.Key,
		Channel:  r.Channel,
	}, logging.Named("tariffredis"))
}

// loadTariff loads a snapshot and applies the installation's rule overrides
func loadTariff(ctx context.Context, p tariff.Provider) (*tariff.Configuration, error) {
	cfg, err := p.Load(ctx)
	if err != nil {
		return nil, err
	}
	cfg.Rules = config.Get().Engine.Apply(cfg.Rules)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logging.Debug("tariff loaded",
		zap.String("provider", p.Name()),
		zap.String("version", cfg.Version),
	)
	return cfg, nil
}
