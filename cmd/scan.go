package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/bugscan/api/schemas"
	"github.com/xkilldash9x/bugscan/internal/analysis/core"
	"github.com/xkilldash9x/bugscan/internal/analysis/detectors"
	"github.com/xkilldash9x/bugscan/internal/config"
	"github.com/xkilldash9x/bugscan/internal/engine"
	"github.com/xkilldash9x/bugscan/internal/findings"
	"github.com/xkilldash9x/bugscan/internal/observability"
	"github.com/xkilldash9x/bugscan/internal/reporting"
	"github.com/xkilldash9x/bugscan/internal/results"
	"github.com/xkilldash9x/bugscan/internal/treefile"
)

// ErrScanFailed is returned when a scan completed but recorded errors.
var ErrScanFailed = errors.New("scan recorded errors")

// newScanCmd creates and configures the `scan` command.
func newScanCmd() *cobra.Command {
	scanCmd := &cobra.Command{
		Use:   "scan [files...]",
		Short: "Analyzes every method of the given tree documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger().Named("scan")

			cfg := configFromContext(ctx)
			if err := applyScanFlagOverrides(cmd, cfg); err != nil {
				return err
			}

			doc, err := treefile.LoadFiles(args...)
			if err != nil {
				return fmt.Errorf("failed to load tree documents: %w", err)
			}
			logger.Debug("Loaded tree documents",
				zap.Strings("files", args),
				zap.Int("types", len(doc.Types)),
				zap.Int("methods", doc.Methods()),
			)

			report, err := runScan(ctx, cfg, doc, cmd.OutOrStdout(), cmd.ErrOrStderr(), logger)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					logger.Warn("Scan aborted")
				}
				return err
			}
			if report.Summary.Failed() {
				return fmt.Errorf("%w: %d", ErrScanFailed, report.Summary.Errors)
			}
			return nil
		},
	}

	scanCmd.Flags().StringP("format", "f", "", "Report format: 'text', 'json' or 'sarif'. (Overrides config/env)")
	scanCmd.Flags().StringP("output", "o", "", "Report file path. Defaults to stdout. (Overrides config/env)")
	scanCmd.Flags().Bool("stream", false, "Write findings as JSON lines while the scan runs. (Overrides config/env)")
	scanCmd.Flags().IntP("workers", "j", 0, "Number of methods analyzed concurrently. (Overrides config/env)")
	scanCmd.Flags().Int("min-rank", 0, "Drop findings ranked below this value. (Overrides config/env)")
	scanCmd.Flags().StringSlice("disable-rule", nil, "Rule IDs to skip. May be repeated.")
	scanCmd.Flags().Bool("no-assertions", false, "Ignore assert_warning and assert_no_warning in tree documents.")

	return scanCmd
}

// applyScanFlagOverrides copies explicitly set flags onto the configuration
// and validates the result.
func applyScanFlagOverrides(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		format, _ := flags.GetString("format")
		cfg.SetOutputFormat(format)
	}
	if flags.Changed("output") {
		outputPath, _ := flags.GetString("output")
		cfg.SetOutputPath(outputPath)
	}
	if flags.Changed("stream") {
		stream, _ := flags.GetBool("stream")
		cfg.SetOutputStream(stream)
	}
	if flags.Changed("workers") {
		workers, _ := flags.GetInt("workers")
		cfg.SetEngineWorkerConcurrency(workers)
	}
	if flags.Changed("min-rank") {
		minRank, _ := flags.GetInt("min-rank")
		cfg.SetAnalysisMinRank(minRank)
	}
	if flags.Changed("disable-rule") {
		rules, _ := flags.GetStringSlice("disable-rule")
		cfg.AnalysisCfg.DisabledRules = append(cfg.AnalysisCfg.DisabledRules, rules...)
	}
	if flags.Changed("no-assertions") {
		off, _ := flags.GetBool("no-assertions")
		cfg.AnalysisCfg.CheckAssertions = !off
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flag value: %w", err)
	}
	return nil
}

// findingStream feeds emitted findings to a Processor writing JSON lines.
type findingStream struct {
	ch   chan schemas.Finding
	proc *findings.Processor
	sink core.FindingSink
}

func startStream(ctx context.Context, engineCfg config.EngineConfig, out io.Writer, logger *zap.Logger) *findingStream {
	ch := make(chan schemas.Finding, engineCfg.FindingsBatchSize)
	proc := findings.NewProcessor(ch, findings.NewJSONLinesWriter(out), logger, engineCfg)
	proc.Start(ctx)
	return &findingStream{ch: ch, proc: proc, sink: findings.NewChannelSink(ctx, ch)}
}

// close must only be called once no more findings are emitted.
func (s *findingStream) close() error {
	close(s.ch)
	s.proc.Stop()
	return s.proc.Err()
}

// runScan analyzes every method in doc and writes the report. In stream mode
// findings go to out as they are produced and the errors and summary go to
// errOut instead.
func runScan(ctx context.Context, cfg config.Interface, doc *treefile.Document, out, errOut io.Writer, logger *zap.Logger) (*results.Report, error) {
	runID := uuid.New()
	logger = logger.With(zap.String("run_id", runID.String()))

	metrics, err := observability.NewMetrics(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics: %w", err)
	}

	collector := findings.NewCollector()
	var sink core.FindingSink = collector
	var stream *findingStream
	if cfg.Output().Stream {
		stream = startStream(ctx, cfg.Engine(), out, logger)
		sink = findings.Tee(collector, stream.sink)
	}

	registry := detectors.DefaultRegistry()
	opts := []engine.Option{
		engine.WithLogger(logger),
		engine.WithMetrics(metrics),
		engine.WithConcurrency(cfg.Engine().WorkerConcurrency),
		engine.WithAnalysisConfig(cfg.Analysis()),
	}
	if cfg.Analysis().CheckAssertions {
		opts = append(opts, engine.WithExpectations(doc))
	}
	eng := engine.New(registry, sink, collector, opts...)

	runErr := eng.Run(ctx, doc.Types)
	if stream != nil {
		if err := stream.close(); err != nil && runErr == nil {
			runErr = fmt.Errorf("failed to stream findings: %w", err)
		}
	}
	if runErr != nil {
		return nil, runErr
	}

	found, errs := collector.Findings(), collector.Errors()
	summary := results.Summarize(runID, found, errs)
	logger.Info("Scan complete",
		zap.Int("findings", summary.Findings),
		zap.Int("errors", summary.Errors),
		zap.Int("highest_rank", summary.HighestRank),
	)

	report := results.NewReport(summary, found, errs)
	if stream != nil {
		return report, results.NewReport(summary, nil, errs).WriteText(errOut)
	}
	return report, writeReport(report, cfg.Output(), out, logger, registry.Kinds())
}

// writeReport renders report in the configured format to the configured
// destination.
func writeReport(report *results.Report, outCfg config.OutputConfig, stdout io.Writer, logger *zap.Logger, kinds []schemas.FindingKind) error {
	reporter, err := reporting.New(outCfg.Format, outCfg.Path, stdout, logger, reporting.Options{
		ToolVersion: Version,
		Kinds:       kinds,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize reporter: %w", err)
	}
	if err := reporter.Write(report); err != nil {
		_ = reporter.Close()
		return fmt.Errorf("failed to write report: %w", err)
	}
	if err := reporter.Close(); err != nil {
		return fmt.Errorf("failed to close report: %w", err)
	}
	if outCfg.Path != "" {
		logger.Info("Report written", zap.String("path", outCfg.Path), zap.String("format", outCfg.Format))
	}
	return nil
}
