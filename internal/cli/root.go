// Package cli implements the bytehot-diag commands.
package cli

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rydnr/bytehot-observe/internal/config"
	"github.com/rydnr/bytehot-observe/internal/logging"
)

// Version is set at build time.
var Version = "dev"

// app is the state shared by every subcommand once flags are parsed.
type app struct {
	configPath string
	eventsPath string
	redisAddr  string
	logLevel   string
	now        string

	cfg    *config.Config
	logger *zap.Logger
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "bytehot-diag",
		Short: "Replay ByteHot event logs into bug reports, tests and flows",
		Long: `bytehot-diag reads the events a ByteHot agent recorded, either from a
JSON-lines file or from a Redis sorted set, and turns them into the
diagnostics the agent produces at runtime: bug reports with causal analysis,
reproduction tests, detected flows and documentation links.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&a.configPath, "config", "c", "", "Configuration file (.yaml, .yml or .toml)")
	flags.StringVarP(&a.eventsPath, "events", "e", "", "JSON-lines event log to replay")
	flags.StringVar(&a.redisAddr, "redis", "", "Redis address to read events from (overrides redis.addr)")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level (overrides log.level)")
	flags.StringVar(&a.now, "now", "", "RFC 3339 instant treated as the failure time (default: newest event)")

	root.AddCommand(
		newReportCommand(a),
		newTestGenCommand(a),
		newFlowCommand(a),
		newDocsCommand(a),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context) error {
	return NewRootCommand().ExecuteContext(ctx)
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.redisAddr != "" {
		cfg.Redis.Addr = a.redisAddr
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logger
	return nil
}

// fixedNow parses --now, reporting false when unset.
func (a *app) fixedNow() (time.Time, bool, error) {
	if a.now == "" {
		return time.Time{}, false, nil
	}
	t, err := time.Parse(time.RFC3339Nano, a.now)
	if err != nil {
		return time.Time{}, false, errors.Wrap(err, "parse --now")
	}
	return t, true, nil
}
