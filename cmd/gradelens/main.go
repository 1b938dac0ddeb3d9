package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/prabalshrestha/grade-lens/internal/config"
	"github.com/prabalshrestha/grade-lens/internal/extract"
	"github.com/prabalshrestha/grade-lens/internal/grading"
	"github.com/prabalshrestha/grade-lens/internal/handler"
	"github.com/prabalshrestha/grade-lens/internal/llm"
	"github.com/prabalshrestha/grade-lens/internal/output"
	"github.com/prabalshrestha/grade-lens/internal/pipeline"
	"github.com/prabalshrestha/grade-lens/internal/repository"
	"github.com/prabalshrestha/grade-lens/internal/router"
	"github.com/prabalshrestha/grade-lens/internal/submission"
	"github.com/prabalshrestha/grade-lens/pkg/sandbox"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.AppEnv == "development" {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	root := &cobra.Command{
		Use:           "gradelens",
		Short:         "Automated assignment grading pipeline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(gradeCmd(cfg, logger), listCmd(cfg, logger), serveCmd(cfg, logger))

	if err := root.Execute(); err != nil {
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func gradeCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	var mode string

	cmd := &cobra.Command{
		Use:   "grade <assignment-id>",
		Short: "Grade every submission for an assignment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCfg := cfg
			runCfg.GradingMode = mode

			runner, err := buildRunner(runCfg, logger)
			if err != nil {
				return err
			}

			result, err := runner.Run(cmd.Context(), args[0], mode)
			if err != nil {
				return err
			}

			flagged := 0
			for _, g := range result.Grades {
				if g.RequiresHumanReview {
					flagged++
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Graded %d submission(s), %d flagged for review.\n", len(result.Grades), flagged)
			fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", result.Artifacts.Dir)

			return nil
		},
	}
	cmd.Flags().StringVar(&mode, "grading-mode", cfg.GradingMode, "rubric disclosure mode (basic, standard, full)")

	return cmd
}

func listCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List assignments with a configuration on disk",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			runner, err := buildRunner(cfg, logger)
			if err != nil {
				return err
			}

			ids, err := runner.ListAssignments()
			if err != nil {
				return err
			}

			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No assignments found.")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}

			return nil
		},
	}
}

func serveCmd(cfg config.Config, logger zerolog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the grading API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			runner, err := buildRunner(cfg, logger)
			if err != nil {
				return err
			}

			app := fiber.New(fiber.Config{
				AppName:      cfg.AppName,
				ServerHeader: cfg.AppName,
			})

			router.Register(app, cfg, router.Dependencies{
				GradingHandler: handler.NewGradingHandler(runner, cfg.GradingMode, logger),
			})

			go func() {
				if err := app.Listen(cfg.HTTPAddress()); err != nil {
					logger.Fatal().Err(err).Msg("failed to start server")
				}
			}()

			waitForShutdown(app, logger)

			return nil
		},
	}
}

// buildRunner wires every pipeline stage from configuration.
func buildRunner(cfg config.Config, logger zerolog.Logger) (*pipeline.BatchRunner, error) {
	client, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		APIKey:    cfg.OpenAIAPIKey,
		Model:     cfg.OpenAIModel,
		MaxTokens: cfg.OpenAIMaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	var runner sandbox.Runner
	if cfg.EnableCodeTests {
		dockerRunner, err := sandbox.NewDockerRunner(sandbox.Config{
			Host:          cfg.DockerHost,
			Timeout:       cfg.ExecutionTimeout,
			MemoryLimitMB: int64(cfg.SandboxMemoryMB),
			CPUShares:     int64(cfg.SandboxCPUShares),
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("sandbox setup: %w", err)
		}
		runner = dockerRunner
	}

	var store *repository.ResultStore
	if cfg.DatabasePath != "" {
		store, err = repository.OpenResultStore(cfg.DatabasePath, logger)
		if err != nil {
			return nil, err
		}
	}

	mode := grading.ParseMode(cfg.GradingMode, logger)

	resolver := submission.NewResolver(logger)
	grouper := submission.NewGrouper(resolver, logger)
	text := extract.NewTextExtractor(nil, logger)
	extractor := extract.NewContentExtractor(text, nil, client, cfg.EnableImages, logger)
	code := extract.NewCodeExtractor(logger)
	aligner := extract.NewAligner(client, logger)
	engine := grading.NewEngine(client, mode, cfg.OpenAIModel, logger)
	synthesizer := grading.NewSynthesizer(client, logger)
	orch := pipeline.NewOrchestrator(grouper, extractor, code, aligner, engine, synthesizer, runner, logger)

	writer := output.NewWriter(cfg.OutputDir, logger)

	return pipeline.NewBatchRunner(orch, writer, store, cfg.AssignmentsDir, cfg.SubmissionsDir, logger), nil
}

func waitForShutdown(app *fiber.App, logger zerolog.Logger) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}
