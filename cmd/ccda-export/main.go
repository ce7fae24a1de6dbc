package main

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ehr/ccda-export/internal/batch"
	"github.com/ehr/ccda-export/internal/config"
)

const version = "1.2.0"

func main() {
	rootCmd := &cobra.Command{
		Use:           "ccda-export",
		Short:         "Export clinical facts from C-CDA documents to CSV tables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every matching document in the source directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			// Flags override environment configuration.
			if cmd.Flags().Changed("source") {
				cfg.SourceDir, _ = cmd.Flags().GetString("source")
			}
			if cmd.Flags().Changed("target") {
				cfg.TargetDir, _ = cmd.Flags().GetString("target")
			}
			if cmd.Flags().Changed("error-dir") {
				cfg.ErrorDir, _ = cmd.Flags().GetString("error-dir")
			}
			if cmd.Flags().Changed("pattern") {
				cfg.FilePattern, _ = cmd.Flags().GetString("pattern")
			}
			if cmd.Flags().Changed("append") {
				cfg.Append, _ = cmd.Flags().GetBool("append")
			}

			if err := cfg.Validate(); err != nil {
				return err
			}
			return runBatch(cfg)
		},
	}

	cmd.Flags().String("source", "", "Directory holding pending input documents")
	cmd.Flags().String("target", "", "Directory for output tables and processed documents")
	cmd.Flags().String("error-dir", "", "Directory for documents that fail to load")
	cmd.Flags().String("pattern", "", "Input file glob (default ccd*.xml, case-insensitive)")
	cmd.Flags().Bool("append", false, "Extend existing tables, resuming identifier sequences")

	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("ccda-export", version)
		},
	}
}

func runBatch(cfg *config.Config) error {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
		With().
		Timestamp().
		Str("run_id", uuid.New().String()).
		Logger()

	runner := batch.NewRunner(batch.Options{
		SourceDir: cfg.SourceDir,
		TargetDir: cfg.TargetDir,
		ErrorDir:  cfg.ErrorDir,
		Pattern:   cfg.FilePattern,
		Append:    cfg.Append,
	}, logger)

	result, err := runner.Run()
	if err != nil {
		logger.Error().Err(err).Msg("run aborted")
		return err
	}

	logger.Info().
		Int("total", result.Total).
		Int("succeeded", result.Succeeded).
		Int("failed", result.Failed).
		Float64("elapsed_seconds", result.Elapsed.Seconds()).
		Msg("run complete")

	// Per-file failures are recorded in the report table and warn here, but
	// a completed run still exits zero.
	if result.Failed > 0 {
		logger.Warn().Int("failed", result.Failed).Msg("some documents were moved to the error directory")
	}
	return nil
}
