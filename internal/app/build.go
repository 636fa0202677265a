package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/config"
	"github.com/jobtrail/jobtrail/internal/conversation"
	"github.com/jobtrail/jobtrail/internal/httpapi"
	"github.com/jobtrail/jobtrail/internal/observability"
	"github.com/jobtrail/jobtrail/internal/runner"
	"github.com/jobtrail/jobtrail/internal/store"
	"github.com/jobtrail/jobtrail/internal/tools"
	"github.com/jobtrail/jobtrail/internal/voice"
)

// BuildResult is the assembled service plus the handles main needs.
type BuildResult struct {
	Config   config.Config
	API      *httpapi.Server
	Sessions *conversation.Manager
	Metrics  *observability.Metrics

	// Cleanup releases external resources on shutdown.
	Cleanup func() error
}

// Build wires every component from configuration, bottom up: store, tools,
// agent, runner, speech providers, conversation core, HTTP surface.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*BuildResult, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	st, err := store.NewStore(ctx, cfg.DatabaseURL, cfg.DedupWindow, cfg.SearchLimit)
	if err != nil {
		return nil, fmt.Errorf("store init failed: %w", err)
	}

	registry := tools.NewRegistry()
	tools.NewJobTools(st, logger, metrics).RegisterAll(registry)
	base := agent.JobTracker(registry)

	run, err := runner.New(runner.Config{
		Mode:    cfg.RunnerMode,
		HTTPURL: cfg.RunnerHTTPURL,
		Tools:   registry,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("runner init failed: %w", err)
	}

	providers, err := voice.NewProviders(voice.ProviderConfig{
		Provider:   cfg.SpeechProvider,
		STTHTTPURL: cfg.STTHTTPURL,
		TTSHTTPURL: cfg.TTSHTTPURL,
	})
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("speech provider init failed: %w", err)
	}

	pipeline := voice.NewPipeline(providers, voice.PipelineConfig{
		SampleRate:         cfg.SampleRate,
		DefaultLanguage:    cfg.DefaultLanguage,
		SupportedLanguages: cfg.SupportedLanguages,
		VoiceByLanguage:    cfg.VoiceByLanguage,
	}, logger, metrics)

	sessions := conversation.NewManager(base.Name, logger, metrics)
	workflow := conversation.NewWorkflow(run, base, logger, metrics)
	controller := conversation.NewController(workflow, pipeline, sessions, logger, metrics)

	api := httpapi.New(cfg, sessions, controller, logger, metrics)

	return &BuildResult{
		Config:   cfg,
		API:      api,
		Sessions: sessions,
		Metrics:  metrics,
		Cleanup:  st.Close,
	}, nil
}
