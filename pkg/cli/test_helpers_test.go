package cli

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"log-manager/internal/app"
	"log-manager/internal/config"
	"log-manager/internal/domain"
	"log-manager/internal/testutil"
)

// setTestEnv pins the configuration the commands read so the host
// environment cannot leak in.
func setTestEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ENV", "development")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("S3_BUCKET", "archive")
	t.Setenv("ARCHIVE_PREFIX", "processed-logs")
	t.Setenv("GLUE_DATABASE", "log_manager_data")
	t.Setenv("DEFAULT_TABLE", "processed_logs")
	t.Setenv("PARTITION_TABLE", "processed_logs")
	t.Setenv("DEFAULT_TIMEZONE", "UTC")
	t.Setenv("QUERY_POLL_INTERVAL", "5ms")
	t.Setenv("SCAN_ENABLED", "false")
}

// fakeApp builds the real app around an in-memory engine and store.
func fakeApp(eng domain.QueryEngine, store domain.ObjectStore) appFactory {
	return func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, error) {
		return app.New(ctx, app.Deps{Cfg: cfg, Logger: logger, Engine: eng, Store: store})
	}
}

// runCLI executes the root command with args and returns what it wrote to
// stdout.
func runCLI(t *testing.T, newApp appFactory, args ...string) (string, error) {
	t.Helper()
	if newApp == nil {
		newApp = fakeApp(testutil.NewFakeQueryEngine(), testutil.NewMemObjectStore())
	}
	cmd := newRootCmdWith(newApp)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}
