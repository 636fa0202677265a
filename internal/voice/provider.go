package voice

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoSpeech is returned by transcribers when the audio contains nothing
// usable. Callers treat it as "skip the turn", not as a failure.
var ErrNoSpeech = errors.New("no speech detected")

// Transcriber converts one committed utterance of mono float32 PCM into
// text. Implementations are batch: they see the whole buffer at once.
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (string, error)
}

// SynthesisOptions selects how a reply fragment should sound.
type SynthesisOptions struct {
	Language   string
	Voice      string
	SampleRate int
}

// Synthesizer renders text into mono float32 PCM at the requested rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts SynthesisOptions) ([]float32, error)
}

// Providers bundles the two speech directions a pipeline needs.
type Providers struct {
	STT Transcriber
	TTS Synthesizer
}

// ProviderConfig controls speech provider construction.
type ProviderConfig struct {
	Provider   string
	STTHTTPURL string
	TTSHTTPURL string
}

// NewProviders builds the speech pair for the configured provider. "auto"
// uses HTTP endpoints when both are configured and otherwise the mock
// pair, which keeps the websocket surface exercisable offline.
func NewProviders(cfg ProviderConfig) (Providers, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "auto"
	}

	sttURL := strings.TrimSpace(cfg.STTHTTPURL)
	ttsURL := strings.TrimSpace(cfg.TTSHTTPURL)

	switch provider {
	case "auto":
		if sttURL != "" && ttsURL != "" {
			return Providers{STT: NewHTTPTranscriber(sttURL), TTS: NewHTTPSynthesizer(ttsURL)}, nil
		}
		return Providers{STT: NewMockTranscriber(""), TTS: NewMockSynthesizer()}, nil
	case "http":
		if sttURL == "" || ttsURL == "" {
			return Providers{}, errors.New("http speech provider requires both STT and TTS urls")
		}
		return Providers{STT: NewHTTPTranscriber(sttURL), TTS: NewHTTPSynthesizer(ttsURL)}, nil
	case "mock":
		return Providers{STT: NewMockTranscriber(""), TTS: NewMockSynthesizer()}, nil
	default:
		return Providers{}, fmt.Errorf("unsupported speech provider %q", cfg.Provider)
	}
}
