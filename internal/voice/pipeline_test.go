package voice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobtrail/jobtrail/internal/audio"
)

func tone(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = 0.25
	}
	return out
}

func testPipelineConfig() PipelineConfig {
	return PipelineConfig{
		SampleRate:         16000,
		DefaultLanguage:    "en",
		SupportedLanguages: []string{"en", "es", "fr", "de"},
		VoiceByLanguage:    map[string]string{"en": "alloy", "es": "nova"},
	}
}

func TestSplitSentences(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"Hello there. How are you?", []string{"Hello there.", "How are you?"}},
		{"One!\nTwo", []string{"One!", "Two"}},
		{"You applied 3.5 weeks ago. Nice.", []string{"You applied 3.5 weeks ago.", "Nice."}},
		{"   ", nil},
		{"no punctuation at all", []string{"no punctuation at all"}},
	}
	for _, tc := range cases {
		got := SplitSentences(tc.in)
		if len(got) != len(tc.want) {
			t.Fatalf("SplitSentences(%q) = %q, want %q", tc.in, got, tc.want)
		}
		for i := range got {
			if got[i] != tc.want[i] {
				t.Fatalf("SplitSentences(%q)[%d] = %q, want %q", tc.in, i, got[i], tc.want[i])
			}
		}
	}
}

func TestPipelineRunsWholeTurn(t *testing.T) {
	tts := NewMockSynthesizer()
	p := NewPipeline(Providers{STT: NewMockTranscriber("what's my pipeline summary"), TTS: tts},
		testPipelineConfig(), nil, nil)

	var (
		transcript string
		chunks     int
	)
	err := p.Run(context.Background(), tone(16000),
		func(_ context.Context, text string) (string, error) {
			transcript = text
			return "You have two applications. One is active.", nil
		},
		func(chunk []float32) error {
			if len(chunk) == 0 {
				t.Fatal("empty audio chunk delivered")
			}
			chunks++
			return nil
		})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if transcript != "what's my pipeline summary" {
		t.Fatalf("transcript = %q", transcript)
	}
	if chunks != 2 {
		t.Fatalf("audio chunks = %d, want one per sentence (2)", chunks)
	}
	if calls := tts.Calls(); len(calls) != 2 || calls[0] != "You have two applications." {
		t.Fatalf("synthesized fragments = %q", calls)
	}
}

func TestPipelineSkipsSilence(t *testing.T) {
	p := NewPipeline(Providers{STT: NewMockTranscriber(""), TTS: NewMockSynthesizer()},
		testPipelineConfig(), nil, nil)

	err := p.Run(context.Background(), make([]float32, 8000),
		func(context.Context, string) (string, error) {
			t.Fatal("respond must not run for silence")
			return "", nil
		},
		func([]float32) error {
			t.Fatal("no audio expected for silence")
			return nil
		})
	if err != nil {
		t.Fatalf("silent buffer should be a no-op, got %v", err)
	}
}

func TestPipelinePropagatesRespondError(t *testing.T) {
	p := NewPipeline(Providers{STT: NewMockTranscriber("hello"), TTS: NewMockSynthesizer()},
		testPipelineConfig(), nil, nil)

	wantErr := errors.New("engine down")
	err := p.Run(context.Background(), tone(100),
		func(context.Context, string) (string, error) { return "", wantErr },
		func([]float32) error { return nil })
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapped %v", err, wantErr)
	}
}

func TestPipelinePicksSpanishVoice(t *testing.T) {
	tts := &optionRecorder{}
	p := NewPipeline(Providers{STT: NewMockTranscriber("hola, necesito una actualización para mi aplicación"), TTS: tts},
		testPipelineConfig(), nil, nil)

	err := p.Run(context.Background(), tone(100),
		func(context.Context, string) (string, error) { return "Claro.", nil },
		func([]float32) error { return nil })
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if tts.last.Language != "es" || tts.last.Voice != "nova" {
		t.Fatalf("synthesis options = %+v, want es/nova", tts.last)
	}
}

type optionRecorder struct {
	last SynthesisOptions
}

func (r *optionRecorder) Synthesize(_ context.Context, _ string, opts SynthesisOptions) ([]float32, error) {
	r.last = opts
	return []float32{0.1}, nil
}

func TestHTTPTranscriberPostsWAV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if ct := req.Header.Get("Content-Type"); ct != "audio/wav" {
			t.Errorf("content type = %q", ct)
		}
		body := make([]byte, 4)
		if _, err := req.Body.Read(body); err != nil {
			t.Errorf("read body: %v", err)
		}
		if string(body) != "RIFF" {
			t.Errorf("body does not start with RIFF header: %q", body)
		}
		fmt.Fprint(w, `{"text":"  add Globex SRE  "}`)
	}))
	defer srv.Close()

	text, err := NewHTTPTranscriber(srv.URL).Transcribe(context.Background(), tone(1600), 16000)
	if err != nil {
		t.Fatalf("transcribe: %v", err)
	}
	if text != "add Globex SRE" {
		t.Fatalf("text = %q", text)
	}
}

func TestHTTPTranscriberEmptyTextIsNoSpeech(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"text":""}`)
	}))
	defer srv.Close()

	_, err := NewHTTPTranscriber(srv.URL).Transcribe(context.Background(), tone(100), 16000)
	if !errors.Is(err, ErrNoSpeech) {
		t.Fatalf("err = %v, want ErrNoSpeech", err)
	}
}

func TestHTTPSynthesizerDecodesAudio(t *testing.T) {
	want := []float32{0, 0.5, -0.5}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["voice"] != "alloy" {
			t.Errorf("voice = %v", body["voice"])
		}
		json.NewEncoder(w).Encode(map[string]string{"audio": audio.EncodeBase64PCM16(want)})
	}))
	defer srv.Close()

	got, err := NewHTTPSynthesizer(srv.URL).Synthesize(context.Background(), "hi",
		SynthesisOptions{Language: "en", Voice: "alloy", SampleRate: 16000})
	if err != nil {
		t.Fatalf("synthesize: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("samples = %d, want %d", len(got), len(want))
	}
	for i := range got {
		if diff := got[i] - want[i]; diff > 1e-3 || diff < -1e-3 {
			t.Fatalf("sample %d = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestNewProvidersModes(t *testing.T) {
	if _, err := NewProviders(ProviderConfig{Provider: "http"}); err == nil {
		t.Fatal("http provider without urls should fail")
	}
	if _, err := NewProviders(ProviderConfig{Provider: "hologram"}); err == nil {
		t.Fatal("unknown provider should fail")
	}

	p, err := NewProviders(ProviderConfig{Provider: "auto"})
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if _, ok := p.STT.(*MockTranscriber); !ok {
		t.Fatalf("auto without urls STT = %T, want mock", p.STT)
	}

	p, err = NewProviders(ProviderConfig{Provider: "auto", STTHTTPURL: "http://stt", TTSHTTPURL: "http://tts"})
	if err != nil {
		t.Fatalf("auto with urls: %v", err)
	}
	if _, ok := p.STT.(*HTTPTranscriber); !ok {
		t.Fatalf("auto with urls STT = %T, want http", p.STT)
	}
	if !strings.HasPrefix(p.STT.(*HTTPTranscriber).url, "http://stt") {
		t.Fatalf("stt url not wired")
	}
}
