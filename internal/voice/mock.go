package voice

import (
	"context"
	"math"
	"strings"
	"sync"
)

// MockTranscriber returns a fixed transcript for any non-silent buffer.
// Silent or empty input maps to ErrNoSpeech, which mirrors how a real
// recognizer behaves on dead air.
type MockTranscriber struct {
	Transcript string
}

func NewMockTranscriber(transcript string) *MockTranscriber {
	if strings.TrimSpace(transcript) == "" {
		transcript = "show my pipeline summary"
	}
	return &MockTranscriber{Transcript: transcript}
}

func (t *MockTranscriber) Transcribe(_ context.Context, samples []float32, _ int) (string, error) {
	if len(samples) == 0 {
		return "", ErrNoSpeech
	}
	var peak float64
	for _, s := range samples {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak < 1e-4 {
		return "", ErrNoSpeech
	}
	return t.Transcript, nil
}

// MockSynthesizer renders a quiet sine tone whose duration tracks the text
// length, so downstream framing and duration math stay testable.
type MockSynthesizer struct {
	mu    sync.Mutex
	calls []string
}

func NewMockSynthesizer() *MockSynthesizer { return &MockSynthesizer{} }

// Calls reports every text fragment synthesized so far.
func (s *MockSynthesizer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *MockSynthesizer) Synthesize(_ context.Context, text string, opts SynthesisOptions) ([]float32, error) {
	s.mu.Lock()
	s.calls = append(s.calls, text)
	s.mu.Unlock()

	rate := opts.SampleRate
	if rate <= 0 {
		rate = 16000
	}

	// 50ms of audio per rune, capped at 3s per fragment.
	n := len([]rune(text)) * rate / 20
	if limit := rate * 3; n > limit {
		n = limit
	}
	if n == 0 {
		return nil, nil
	}

	out := make([]float32, n)
	step := 2 * math.Pi * 440 / float64(rate)
	for i := range out {
		out[i] = float32(0.1 * math.Sin(step*float64(i)))
	}
	return out, nil
}
