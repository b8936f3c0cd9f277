// Package cmd - tariff maintenance commands
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"import-cost/adapters/tariffile"
	"import-cost/core/tariff"
	"import-cost/internal/logging"
)

var tariffCmd = &cobra.Command{
	Use:   "tariff",
	Short: "Tariff configuration maintenance",
	Long: `Validate, convert, patch and distribute tariff configuration files.

Files may be JSON, YAML or HCL. HCL files are read-only; write changes to a
JSON or YAML file with --out.`,
}

var tariffValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Validate a tariff file",
	Args:  cobra.ExactArgs(1),
	RunE:  runTariffValidate,
}

var tariffTemplateCmd = &cobra.Command{
	Use:   "template <file>",
	Short: "Export fee tables as a patch template",
	Long: `Write every fee row as age_bucket,table_name,power_metric,from,to,price.
The output can be edited and fed back with "tariff apply".`,
	Args: cobra.ExactArgs(1),
	RunE: runTariffTemplate,
}

var tariffApplyCmd = &cobra.Command{
	Use:   "apply <file> <template>",
	Short: "Apply a fee patch template",
	Long: `Apply a fee patch template to a tariff file.

Each line updates or adds one fee row. Malformed lines are reported and
skipped; the rest of the batch is still applied. Without --write only the
statistics are printed.`,
	Args: cobra.ExactArgs(2),
	RunE: runTariffApply,
}

var tariffConvertCmd = &cobra.Command{
	Use:   "convert <file> <out>",
	Short: "Convert a tariff file to JSON or YAML",
	Args:  cobra.ExactArgs(2),
	RunE:  runTariffConvert,
}

var tariffPublishCmd = &cobra.Command{
	Use:   "publish <file>",
	Short: "Publish a tariff file to Redis",
	Args:  cobra.ExactArgs(1),
	RunE:  runTariffPublish,
}

var tariffWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow tariff versions published to Redis",
	Args:  cobra.NoArgs,
	RunE:  runTariffWatch,
}

var (
	tariffTemplateOut string
	tariffApplyWrite  bool
	tariffApplyOut    string
)

func init() {
	rootCmd.AddCommand(tariffCmd)
	tariffCmd.AddCommand(tariffValidateCmd)
	tariffCmd.AddCommand(tariffTemplateCmd)
	tariffCmd.AddCommand(tariffApplyCmd)
	tariffCmd.AddCommand(tariffConvertCmd)
	tariffCmd.AddCommand(tariffPublishCmd)
	tariffCmd.AddCommand(tariffWatchCmd)

	tariffTemplateCmd.Flags().StringVarP(&tariffTemplateOut, "out", "o", "", "write the template to a file instead of stdout")
	tariffApplyCmd.Flags().BoolVar(&tariffApplyWrite, "write", false, "save the patched tariff")
	tariffApplyCmd.Flags().StringVarP(&tariffApplyOut, "out", "o", "", "save to this file instead of the input (required for HCL input)")
}

func runTariffValidate(cmd *cobra.Command, args []string) error {
	cfg, err := tariffile.Load(args[0])
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "✓ %s is valid\n", args[0])
	fmt.Fprintf(w, "  version:      %s\n", cfg.Version)
	fmt.Fprintf(w, "  fingerprint:  %s\n", cfg.Fingerprint())
	fmt.Fprintf(w, "  duty ranges:  %d\n", len(cfg.DutyRanges))
	fmt.Fprintf(w, "  fee tables:   %d default, %d under_3, %d age_3_5, %d electric\n",
		len(cfg.FeeTables), len(cfg.FeeTablesUnder3), len(cfg.FeeTables3to5), len(cfg.FeeTablesElectric))
	return nil
}

func runTariffTemplate(cmd *cobra.Command, args []string) error {
	cfg, err := tariffile.Load(args[0])
	if err != nil {
		return err
	}
	content := tariff.BuildTemplate(cfg)
	if tariffTemplateOut == "" {
		_, err := fmt.Fprint(cmd.OutOrStdout(), content)
		return err
	}
	return os.WriteFile(tariffTemplateOut, []byte(content), 0644)
}

func runTariffApply(cmd *cobra.Command, args []string) error {
	path, templatePath := args[0], args[1]

	cfg, err := tariffile.Load(path)
	if err != nil {
		return err
	}
	content, err := os.ReadFile(templatePath)
	if err != nil {
		return fmt.Errorf("failed to read template: %w", err)
	}

	store, err := tariff.NewStore(cfg, logging.Named("tariff"))
	if err != nil {
		return err
	}
	stats, applyErr := store.ApplyTemplate(string(content), time.Now())

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "updated %d, added %d, skipped %d, errored %d\n",
		stats.Updated, stats.Added, stats.Skipped, stats.Errored)
	for _, f := range stats.Failures {
		fmt.Fprintf(w, "  line %v: %s\n", f.Context["line"], f.Message)
	}
	if applyErr != nil {
		return fmt.Errorf("patched tariff rejected: %w", applyErr)
	}
	fmt.Fprintf(w, "version %s\n", stats.Version)

	if !tariffApplyWrite || !stats.Changed() {
		return nil
	}
	out := tariffApplyOut
	if out == "" {
		out = path
	}
	if err := tariffile.Save(out, store.Current()); err != nil {
		return err
	}
	fmt.Fprintf(w, "saved %s\n", out)
	return nil
}

func runTariffConvert(cmd *cobra.Command, args []string) error {
	cfg, err := tariffile.Load(args[0])
	if err != nil {
		return err
	}
	if err := tariffile.Save(args[1], cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (version %s)\n", args[1], cfg.Version)
	return nil
}

func runTariffPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg, err := tariffile.Load(args[0])
	if err != nil {
		return err
	}

	p, err := redisProvider(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	if err := p.Publish(ctx, cfg); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "published version %s to %s\n", cfg.Version, p.Name())
	return nil
}

func runTariffWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := redisProvider(ctx)
	if err != nil {
		return err
	}
	defer p.Close()

	store, err := tariff.LoadStore(ctx, p, logging.Named("tariff"))
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "watching %s, current version %s\n", p.Name(), store.Version())
	store.OnReplace(func(cfg *tariff.Configuration) {
		fmt.Fprintf(w, "now at version %s\n", cfg.Version)
		logging.Info("tariff replaced", zap.String("version", cfg.Version))
	})
	return p.Watch(ctx, store)
}
