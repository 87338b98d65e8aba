package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/tact-lang/llm-fuzz/pkg/compiler"
	"github.com/tact-lang/llm-fuzz/pkg/fuzzer"
	"github.com/tact-lang/llm-fuzz/pkg/logging"
	"github.com/tact-lang/llm-fuzz/pkg/persistence"
	"github.com/tact-lang/llm-fuzz/pkg/report"
	"github.com/tact-lang/llm-fuzz/pkg/service"
)

// defaultVectorStoreID backs the documentation search tool with the
// official Tact docs corpus.
const defaultVectorStoreID = "vs_67e0f7d512908191a41628a474ab1f22"

func newRunCmd() *cobra.Command {
	cfg := viper.New()

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the fuzzing worker pool until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFuzzer(cmd.Context(), cfg)
		},
	}

	flags := cmd.Flags()
	flags.String("api-url", "", "Base URL for the OpenAI-compatible API (empty uses the public endpoint)")
	flags.String("model", "o3-mini", "Model driving the sessions")
	flags.String("reasoning", "medium", "Reasoning effort (low, medium, high)")
	flags.Int("workers", 20, "Number of concurrently running sessions")
	flags.String("compiler", "tact", "Compiler binary invoked on snippets")
	flags.String("work-dir", "tmp", "Directory for snippet working copies and captured compiler output")
	flags.String("snippets-dir", "snippets", "Directory for snippets that compiled successfully")
	flags.String("known-issues", "found_issues.md", "Prior findings document embedded into every session prompt")
	flags.String("report-store", "reported_issues.md", "Append-only store for confirmed issue reports")
	flags.String("sessions-dir", "sessions", "Directory for per-session YAML records (empty disables)")
	flags.String("manifest", "run_manifest.toml", "Run manifest location (empty disables)")
	flags.String("vector-store", defaultVectorStoreID, "Vector store ID backing the documentation search tool")
	flags.String("config", "", "Config file (defaults to llm-fuzz.yaml in the working directory)")

	cfg.SetEnvPrefix("LLM_FUZZ")
	cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	cfg.AutomaticEnv()
	_ = cfg.BindPFlags(flags)

	return cmd
}

func runFuzzer(ctx context.Context, cfg *viper.Viper) error {
	if err := readConfigFile(cfg); err != nil {
		return err
	}

	color := term.IsTerminal(int(os.Stderr.Fd()))
	log := logging.New(os.Stderr, slog.LevelInfo, color)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	known, err := report.KnownIssues(cfg.GetString("known-issues"))
	if err != nil {
		return err
	}

	gateway, err := compiler.NewGateway(
		cfg.GetString("compiler"),
		cfg.GetString("work-dir"),
		cfg.GetString("snippets-dir"),
	)
	if err != nil {
		return err
	}

	sink := report.NewSink(cfg.GetString("report-store"))

	var options []option.RequestOption
	if url := cfg.GetString("api-url"); url != "" {
		options = append(options, option.WithBaseURL(url))
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		options = append(options, option.WithAPIKey(key))
	}
	api := openai.NewClient(options...)
	svc := service.NewClient(api, cfg.GetString("model"), cfg.GetString("reasoning"), cfg.GetString("vector-store"))

	if path := cfg.GetString("manifest"); path != "" {
		manifest := report.Manifest{
			StartedAt:       time.Now().UTC(),
			Model:           cfg.GetString("model"),
			ReasoningEffort: cfg.GetString("reasoning"),
			Workers:         cfg.GetInt("workers"),
			Compiler:        cfg.GetString("compiler"),
		}
		if err := report.WriteManifest(path, manifest); err != nil {
			return err
		}
	}

	sessionsDir := cfg.GetString("sessions-dir")
	spawn := func(ctx context.Context, id int) error {
		session := fuzzer.NewSession(id, svc, gateway, sink, log)
		runErr := session.Run(ctx, known)
		if sessionsDir != "" {
			if err := persistence.SaveRecord(sessionsDir, persistence.NewRecordFromSummary(session.Summary())); err != nil {
				log.Error("could not save session record", slog.Int("agent", id), slog.Any("error", err))
			}
		}
		return runErr
	}

	log.Info("fuzzing started",
		slog.String("model", cfg.GetString("model")),
		slog.Int("workers", cfg.GetInt("workers")),
		slog.String("compiler", cfg.GetString("compiler")))

	pool := fuzzer.NewPool(cfg.GetInt("workers"), spawn, log)
	pool.Run(ctx)

	log.Warn("shutting down; in-flight sessions are left to finish on their own")
	return nil
}

func readConfigFile(cfg *viper.Viper) error {
	if path := cfg.GetString("config"); path != "" {
		cfg.SetConfigFile(path)
		return cfg.ReadInConfig()
	}

	cfg.SetConfigName("llm-fuzz")
	cfg.SetConfigType("yaml")
	cfg.AddConfigPath(".")
	if err := cfg.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return err
		}
	}
	return nil
}
