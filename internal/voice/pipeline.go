package voice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jobtrail/jobtrail/internal/lang"
	"github.com/jobtrail/jobtrail/internal/observability"
)

// Respond turns a transcript into the reply text that should be spoken.
// It is where the conversational turn actually runs; the pipeline only
// brackets it with recognition and synthesis.
type Respond func(ctx context.Context, transcript string) (string, error)

// PipelineConfig carries the speech settings a pipeline needs.
type PipelineConfig struct {
	SampleRate         int
	DefaultLanguage    string
	SupportedLanguages []string
	VoiceByLanguage    map[string]string
}

// Pipeline runs one voice turn: transcribe the committed buffer, detect
// the language, produce a reply, and synthesize it sentence by sentence.
type Pipeline struct {
	providers Providers
	cfg       PipelineConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
}

func NewPipeline(providers Providers, cfg PipelineConfig, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Pipeline{
		providers: providers,
		cfg:       cfg,
		logger:    logger.With("component", "voice"),
		metrics:   metrics,
	}
}

// Run processes one committed utterance. Silence is not an error: the turn
// is skipped and respond is never called. Synthesized audio is delivered in
// sentence-sized chunks through onAudio.
func (p *Pipeline) Run(ctx context.Context, samples []float32, respond Respond, onAudio func([]float32) error) error {
	start := time.Now()

	transcript, err := p.providers.STT.Transcribe(ctx, samples, p.cfg.SampleRate)
	if errors.Is(err, ErrNoSpeech) {
		p.logger.Debug("no speech in committed buffer", "samples", len(samples))
		return nil
	}
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	language := lang.Detect(transcript, p.cfg.SupportedLanguages, p.cfg.DefaultLanguage)
	p.logger.Info("utterance transcribed",
		"chars", len(transcript),
		"language", language,
		"duration_ms", len(samples)*1000/max(p.cfg.SampleRate, 1))

	reply, err := respond(ctx, transcript)
	if err != nil {
		return fmt.Errorf("respond: %w", err)
	}

	opts := SynthesisOptions{
		Language:   language,
		Voice:      p.cfg.VoiceByLanguage[language],
		SampleRate: p.cfg.SampleRate,
	}
	for _, sentence := range SplitSentences(reply) {
		chunk, err := p.providers.TTS.Synthesize(ctx, sentence, opts)
		if err != nil {
			return fmt.Errorf("synthesize: %w", err)
		}
		if len(chunk) == 0 {
			continue
		}
		if err := onAudio(chunk); err != nil {
			return err
		}
	}

	if p.metrics != nil {
		p.metrics.ObservePipelineLatency(time.Since(start))
	}
	return nil
}
