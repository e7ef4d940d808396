package cli

import (
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"log-manager/internal/domain"
	"log-manager/internal/partition"
)

// scanSummary is what scan prints.
type scanSummary struct {
	Prefix     string                  `json:"prefix"`
	Listed     int                     `json:"listed"`
	Partitions int                     `json:"partitions"`
	Submitted  int                     `json:"submitted"`
	Records    int64                   `json:"records"`
	Failures   []string                `json:"failures,omitempty"`
	Failed     []domain.QueryExecution `json:"failed_registrations,omitempty"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		hourly bool
		at     string
		prefix string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run one partition scan pass now",
		Long: `List archive objects and register the partitions they live in. By default
the UTC day containing --at (or now) is scanned; --hourly scans only its hour
and --prefix scans an arbitrary listing prefix for backfills. The command waits
for the registration statements and exits non-zero if anything failed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			when := time.Now().UTC()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at %q: want RFC3339", at)
				}
				when = t
			}

			cfg, logger, err := opts.load(cmd, true)
			if err != nil {
				return err
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
			defer cancel()

			a, err := opts.newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if a.Scanner == nil {
				return errors.New("scan requires S3_BUCKET")
			}

			var res *partition.PassResult
			switch {
			case prefix != "":
				res, err = a.Scanner.RunPass(ctx, prefix)
			case hourly:
				res, err = a.Scanner.RunHourlyPass(ctx, when)
			default:
				res, err = a.Scanner.RunDailyPass(ctx, when)
			}
			if err != nil {
				return err
			}

			failed, err := a.WaitForSubmissions(ctx, res.Submissions())
			if err != nil {
				return err
			}

			summary := summarize(res, failed)
			if getOutputFormat(cmd) == "json" {
				if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			} else {
				printScanTable(cmd, summary)
			}

			if len(summary.Failures) > 0 || len(failed) > 0 {
				return fmt.Errorf("scan of %s had %d object failures and %d failed registrations",
					summary.Prefix, len(summary.Failures), len(failed))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&hourly, "hourly", false, "Scan only the hour containing --at")
	cmd.Flags().StringVar(&at, "at", "", "Time to scan around (RFC3339, default now)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Scan every object under this listing prefix")
	cmd.MarkFlagsMutuallyExclusive("hourly", "prefix")
	cmd.MarkFlagsMutuallyExclusive("at", "prefix")
	return cmd
}

func summarize(res *partition.PassResult, failed []domain.QueryExecution) scanSummary {
	s := scanSummary{
		Prefix:     res.Prefix,
		Listed:     res.Listed,
		Partitions: res.Partitions,
		Submitted:  len(res.Submissions()),
		Failed:     failed,
	}
	for _, o := range res.Objects {
		s.Records += o.Records
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, f.Error())
	}
	return s
}

func printScanTable(cmd *cobra.Command, s scanSummary) {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "prefix:      %s\n", s.Prefix)
	_, _ = fmt.Fprintf(out, "listed:      %d\n", s.Listed)
	_, _ = fmt.Fprintf(out, "records:     %d\n", s.Records)
	_, _ = fmt.Fprintf(out, "partitions:  %d\n", s.Partitions)
	_, _ = fmt.Fprintf(out, "submitted:   %d\n", s.Submitted)
	for _, f := range s.Failures {
		_, _ = fmt.Fprintf(out, "failed:      %s\n", f)
	}
	for _, e := range s.Failed {
		_, _ = fmt.Fprintf(out, "rejected:    %s %s: %s\n", e.ID, e.State, e.FailureReason)
	}
}
