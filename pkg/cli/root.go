package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"log-manager/internal/app"
	"log-manager/internal/config"
	"log-manager/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// appFactory builds the wired application for commands that talk to AWS.
type appFactory func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error)

func defaultAppFactory(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error) {
	return app.New(ctx, app.Deps{Cfg: cfg, Logger: logger})
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]interface{}{
				"error": err.Error(),
			}
			var compileErr *domain.CompileError
			if errors.As(err, &compileErr) {
				errObj["code"] = compileErr.Code
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	envFile  string
	logLevel string
	output   string
	newApp   appFactory
}

func newRootCmd() *cobra.Command {
	return newRootCmdWith(defaultAppFactory)
}

func newRootCmdWith(newApp appFactory) *cobra.Command {
	opts := &rootOptions{newApp: newApp}

	rootCmd := &cobra.Command{
		Use:           "log-manager",
		Short:         "Query and partition manager for archived logs",
		Long:          "Serves the log query API and keeps the archive's Athena partitions registered.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return validateOutputFormat(opts.output)
		},
	}

	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Environment file loaded before reading configuration")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Override LOG_LEVEL (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", "table", "Output format (table, json)")

	rootCmd.AddCommand(newServeCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newCompileCmd(opts))
	rootCmd.AddCommand(newQueryCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// load reads the env file and the environment into a Config and builds the
// JSON logger on the command's stderr. validate runs Config.Validate, which
// commands that never touch the archive skip.
func (o *rootOptions) load(cmd *cobra.Command, validate bool) (*config.Config, *slog.Logger, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, fmt.Errorf("load %s: %w", o.envFile, err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return nil, nil, fmt.Errorf("config: %w", err)
		}
	}

	logger := slog.New(slog.NewJSONHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	for _, w := range cfg.Warnings {
		logger.Warn(w)
	}
	return cfg, logger, nil
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
