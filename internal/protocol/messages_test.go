package protocol

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseClientMessageHistoryUpdate(t *testing.T) {
	raw := []byte(`{"type":"history.update","inputs":[{"role":"user","content":"Add Google Software Engineer"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	update, ok := msg.(HistoryUpdate)
	if !ok {
		t.Fatalf("message type = %T, want HistoryUpdate", msg)
	}
	if len(update.Inputs) != 1 || update.Inputs[0].Content != "Add Google Software Engineer" {
		t.Fatalf("unexpected inputs: %+v", update.Inputs)
	}
}

func TestParseClientMessageAudioAppend(t *testing.T) {
	raw := []byte(`{"type":"input_audio_buffer.append","delta":"AQID"}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}
	if _, ok := msg.(AudioAppend); !ok {
		t.Fatalf("message type = %T, want AudioAppend", msg)
	}
}

func TestParseClientMessageRejectsEmptyAudioDelta(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"input_audio_buffer.append","delta":""}`))
	if err == nil {
		t.Fatalf("expected validation error for empty delta")
	}
}

func TestParseClientMessageRejectsUnknownType(t *testing.T) {
	_, err := ParseClientMessage([]byte(`{"type":"wat"}`))
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("error = %v, want ErrUnsupportedType", err)
	}
}

func TestClassifierSyncRules(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		sync bool
	}{
		{"empty inputs", `{"type":"history.update","inputs":[]}`, true},
		{"missing inputs", `{"type":"history.update"}`, true},
		{"trailing assistant", `{"type":"history.update","inputs":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`, true},
		{"trailing tool", `{"type":"history.update","inputs":[{"role":"tool","content":"{}"}]}`, true},
		{"trailing user", `{"type":"history.update","inputs":[{"role":"user","content":"hi"}]}`, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			msg, err := ParseClientMessage([]byte(tc.raw))
			if err != nil {
				t.Fatalf("ParseClientMessage() error = %v", err)
			}
			update := msg.(HistoryUpdate)
			if IsSync(update) != tc.sync {
				t.Fatalf("IsSync() = %v, want %v", IsSync(update), tc.sync)
			}
			if IsNewText(update) == tc.sync {
				t.Fatalf("IsNewText() = %v, want %v", IsNewText(update), !tc.sync)
			}
		})
	}
}

func TestSplitInputsYieldsTrailingUserText(t *testing.T) {
	raw := []byte(`{"type":"history.update","inputs":[{"role":"user","content":"first"},{"role":"assistant","content":"reply"},{"role":"user","content":"second"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	history, text, err := SplitInputs(msg.(HistoryUpdate))
	if err != nil {
		t.Fatalf("SplitInputs() error = %v", err)
	}
	if text != "second" {
		t.Fatalf("text = %q, want %q", text, "second")
	}
	if len(history) != 2 || history[0].Content != "first" || history[1].Content != "reply" {
		t.Fatalf("unexpected preceding history: %+v", history)
	}
}

func TestSplitInputsRejectsMissingContentField(t *testing.T) {
	raw := []byte(`{"type":"history.update","inputs":[{"role":"user"}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	_, _, err = SplitInputs(msg.(HistoryUpdate))
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("error = %v, want ErrMalformedInput", err)
	}
}

func TestSplitInputsAcceptsEmptyContentString(t *testing.T) {
	raw := []byte(`{"type":"history.update","inputs":[{"role":"user","content":""}]}`)
	msg, err := ParseClientMessage(raw)
	if err != nil {
		t.Fatalf("ParseClientMessage() error = %v", err)
	}

	_, text, err := SplitInputs(msg.(HistoryUpdate))
	if err != nil {
		t.Fatalf("SplitInputs() error = %v, empty string content is still content", err)
	}
	if text != "" {
		t.Fatalf("text = %q, want empty", text)
	}
}

func TestAudioDeltaCarriesPlaceholderCorrelationFields(t *testing.T) {
	frame := AudioDelta{Type: TypeAudioDelta, Delta: "AQID"}
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, key := range []string{"output_index", "content_index", "item_id", "response_id", "event_id"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("frame missing correlation field %q: %s", key, data)
		}
	}
}

func BenchmarkParseClientMessageHistoryUpdate(b *testing.B) {
	raw := []byte(`{"type":"history.update","inputs":[{"role":"user","content":"Show me my pipeline status"}]}`)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg, err := ParseClientMessage(raw)
		if err != nil {
			b.Fatalf("ParseClientMessage() error = %v", err)
		}
		if _, ok := msg.(HistoryUpdate); !ok {
			b.Fatalf("message type = %T, want HistoryUpdate", msg)
		}
	}
}
