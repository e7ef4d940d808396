package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"log-manager/internal/domain"
	"log-manager/internal/service/query"
)

func newQueryCmd(opts *rootOptions) *cobra.Command {
	var (
		flags   filterFlags
		wait    bool
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Submit a filter query to Athena",
		Long: `Compile a filter file and start it on Athena. The execution is printed as
JSON. With --wait the command polls until the execution finishes and exits
non-zero unless it succeeded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			req, err := flags.request(cmd.InOrStdin())
			if err != nil {
				return err
			}
			cfg, logger, err := opts.load(cmd, false)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()
			if timeout > 0 {
				var cancelTimeout context.CancelFunc
				ctx, cancelTimeout = context.WithTimeout(ctx, timeout)
				defer cancelTimeout()
			}

			a, err := opts.newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			resp, err := a.Queries.Submit(ctx, req)
			if err != nil {
				return err
			}

			exec := resp.Execution
			if wait && exec.ID != "" && !exec.State.IsTerminal() {
				exec, err = a.Queries.Wait(ctx, exec.ID)
				if err != nil {
					return fmt.Errorf("wait for %s: %w", resp.Execution.ID, err)
				}
			}

			if err := printJSON(cmd.OutOrStdout(), query.SubmitResponse{Execution: exec, SQL: resp.SQL}); err != nil {
				return err
			}

			switch {
			case exec.ID == "":
				return fmt.Errorf("query rejected: %s", exec.FailureReason)
			case wait && exec.State != domain.ExecutionSucceeded:
				return fmt.Errorf("query %s finished %s", exec.ID, exec.State)
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the execution to finish")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Give up waiting after this long (0 waits forever)")
	return cmd
}
