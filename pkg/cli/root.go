package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Promptonauts/releasepipe/pkg/config"
	"github.com/Promptonauts/releasepipe/pkg/descriptor"
	"github.com/Promptonauts/releasepipe/pkg/logging"
	"github.com/Promptonauts/releasepipe/pkg/models"
	"github.com/Promptonauts/releasepipe/pkg/observability"
	"github.com/Promptonauts/releasepipe/pkg/store"
)

// builtinName labels the compiled-in descriptor in logs and output.
const builtinName = "built-in"

type app struct {
	cfg     config.Config
	logger  *slog.Logger
	metrics *observability.Registry
	out     io.Writer
	errOut  io.Writer
}

// NewRootCommand assembles the releasepipe command tree. Output goes to out,
// logs to errOut.
func NewRootCommand(out, errOut io.Writer) *cobra.Command {
	a := &app{out: out, errOut: errOut, metrics: observability.NewRegistry()}
	var dbPath, logLevel, logFormat string

	root := &cobra.Command{
		Use:           "releasepipe",
		Short:         "Validate, export and dry-run semantic-release pipeline descriptors",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if cmd.Flags().Changed("db") {
				cfg.DBPath = dbPath
			}
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = logLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = logFormat
			}
			logger, err := logging.New(a.errOut, cfg.LogLevel, cfg.LogFormat)
			if err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = logger
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(errOut)
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (env RELEASEPIPE_DB_PATH)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: text or json")

	root.AddCommand(
		newValidateCommand(a),
		newExportCommand(a),
		newPlanCommand(a),
		newRegisterCommand(a),
		newHistoryCommand(a),
		newPluginsCommand(a),
		newServeCommand(a),
	)
	return root
}

// loadDescriptor reads the descriptor named by the optional path argument,
// falling back to the built-in one.
func (a *app) loadDescriptor(args []string) (models.Descriptor, string, error) {
	a.metrics.Counter(observability.MetricValidations).Inc()
	if len(args) == 0 || args[0] == "" {
		d := descriptor.Default()
		if err := descriptor.Validate(&d); err != nil {
			a.metrics.Counter(observability.MetricValidationFailures).Inc()
			return models.Descriptor{}, "", err
		}
		return d, builtinName, nil
	}
	d, err := descriptor.LoadFile(args[0])
	if err != nil {
		a.metrics.Counter(observability.MetricValidationFailures).Inc()
		return models.Descriptor{}, "", err
	}
	return d, args[0], nil
}

func (a *app) openStore() (*store.SQLiteStore, error) {
	st, err := store.NewSQLiteStore(a.cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return st, nil
}
