package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"authormigrate/internal/config"
)

// flagValues receives the command-line flags. They are layered over the
// defaults or the --config file once the command runs.
var flagValues = config.Default()

var rootCmd = &cobra.Command{
	Use:   "authormigrate [options] <author_map>",
	Short: "Remap post authors to local accounts after a content migration",
	Long: `authormigrate reads a user export (the JSON written by "wp user list --format=json")
from a file or URL, matches every exported user to a local account by login and then
by email, and rewrites the author of every content record accordingly. Records whose
author has no match can be handed to a default author.`,
	Args: func(cmd *cobra.Command, args []string) error {
		// The author map is not needed to revert or apply a log, and may come from --config.
		if flagValues.Revert != "" || flagValues.Apply != "" || flagValues.ConfigFile != "" {
			return cobra.RangeArgs(0, 1)(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runMigrate,
}

// Execute runs the root command and reports a failure as "Error: <message>"
// with exit status 1.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err.Error())
		stop()
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.Flags()
	flags.StringVar(&flagValues.DefaultAuthor, "default-author", flagValues.DefaultAuthor, "Default author for unmatched records (ID, login or email)")
	flags.BoolVar(&flagValues.SetDefault, "set-default", flagValues.SetDefault, "Hand records of unmatched authors to the default author")
	flags.StringVar(&flagValues.PostType, "post-type", flagValues.PostType, "Comma-separated content types to process, or \"any\"")
	flags.StringVar(&flagValues.ConfigFile, "config", "", "YAML config file")
	flags.StringVar(&flagValues.Driver, "driver", flagValues.Driver, "Store driver (postgres, pgx, sqlite3, mongo)")
	flags.StringVar(&flagValues.DSN, "dsn", "", "Data source name of the destination store")
	flags.StringVar(&flagValues.TablePrefix, "table-prefix", flagValues.TablePrefix, "Table prefix of the destination schema")
	flags.BoolVar(&flagValues.DryRun, "dry-run", false, "Report what would change without writing")
	flags.IntVar(&flagValues.Workers, "workers", flagValues.Workers, "Number of concurrent update workers")
	flags.Float64Var(&flagValues.Rate, "rate", 0, "Maximum updates per second (0 for unlimited)")
	flags.DurationVar(&flagValues.Timeout, "timeout", flagValues.Timeout, "Timeout for fetching a remote author map")
	flags.StringVar(&flagValues.LogFile, "log", "", "Write the per-record entry log to this file")
	flags.Var((*logFormatFlag)(&flagValues.LogFormat), "log-format", "Entry log format (json, csv)")
	flags.StringVar(&flagValues.MetricsFile, "metrics-file", "", "Write prometheus metrics to this textfile")
	flags.StringVarP(&flagValues.Revert, "revert", "r", "", "Restore the old authors recorded in an entry log")
	flags.StringVar(&flagValues.Apply, "apply", "", "Write the new authors recorded in an entry log")
	flags.BoolVarP(&flagValues.Verbose, "verbose", "v", false, "Verbose mode")
	flags.BoolVar(&flagValues.Debug, "debug", false, "Debug mode")
	flags.BoolVarP(&flagValues.Quiet, "quiet", "q", false, "Quiet mode")

	rootCmd.MarkFlagsMutuallyExclusive("verbose", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("debug", "quiet")
	rootCmd.MarkFlagsMutuallyExclusive("revert", "apply")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd, args)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	return executeMigration(cmd.Context(), cfg, cmd.OutOrStdout())
}

// resolveConfig starts from the defaults or the --config file and applies
// every flag the operator set explicitly.
func resolveConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.Default()
	if flagValues.ConfigFile != "" {
		fileCfg, err := config.ReadLocalConfig(flagValues.ConfigFile)
		if err != nil {
			return nil, err
		}
		cfg = fileCfg
	}

	for name, apply := range flagSetters {
		if cmd.Flags().Changed(name) {
			apply(cfg, flagValues)
		}
	}

	if len(args) > 0 {
		cfg.AuthorMap = args[0]
	}

	return cfg, nil
}

var flagSetters = map[string]func(dst, src *config.Config){
	"default-author": func(dst, src *config.Config) { dst.DefaultAuthor = src.DefaultAuthor },
	"set-default":    func(dst, src *config.Config) { dst.SetDefault = src.SetDefault },
	"post-type":      func(dst, src *config.Config) { dst.PostType = src.PostType },
	"driver":         func(dst, src *config.Config) { dst.Driver = src.Driver },
	"dsn":            func(dst, src *config.Config) { dst.DSN = src.DSN },
	"table-prefix":   func(dst, src *config.Config) { dst.TablePrefix = src.TablePrefix },
	"dry-run":        func(dst, src *config.Config) { dst.DryRun = src.DryRun },
	"workers":        func(dst, src *config.Config) { dst.Workers = src.Workers },
	"rate":           func(dst, src *config.Config) { dst.Rate = src.Rate },
	"timeout":        func(dst, src *config.Config) { dst.Timeout = src.Timeout },
	"log":            func(dst, src *config.Config) { dst.LogFile = src.LogFile },
	"log-format":     func(dst, src *config.Config) { dst.LogFormat = src.LogFormat },
	"metrics-file":   func(dst, src *config.Config) { dst.MetricsFile = src.MetricsFile },
	"revert":         func(dst, src *config.Config) { dst.Revert = src.Revert },
	"apply":          func(dst, src *config.Config) { dst.Apply = src.Apply },
	"verbose":        func(dst, src *config.Config) { dst.Verbose = src.Verbose },
	"debug":          func(dst, src *config.Config) { dst.Debug = src.Debug },
	"quiet":          func(dst, src *config.Config) { dst.Quiet = src.Quiet },
}

type logFormatFlag config.LogFormat

func (f *logFormatFlag) String() string {
	return string(*f)
}

func (f *logFormatFlag) Set(v string) error {
	switch v {
	case "json", "csv":
		*f = logFormatFlag(v)
		return nil
	default:
		return fmt.Errorf("must be 'json' or 'csv'")
	}
}

func (f *logFormatFlag) Type() string {
	return "string"
}
