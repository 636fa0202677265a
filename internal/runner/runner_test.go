package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/store"
	"github.com/jobtrail/jobtrail/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	reg := tools.NewRegistry()
	tools.NewJobTools(store.NewInMemoryStore(0, 0), nil, nil).RegisterAll(reg)
	return reg
}

func collect(t *testing.T, r Runner, history []protocol.Item) ([]Event, Result) {
	t.Helper()
	var events []Event
	res, err := r.Run(context.Background(), agent.JobTracker(nil), history, func(ev Event) error {
		events = append(events, ev)
		return nil
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	return events, res
}

func TestLocalRunnerAddApplication(t *testing.T) {
	r := NewLocalRunner(newTestRegistry(t))
	history := []protocol.Item{protocol.UserMessage("I applied to Acme as a backend engineer")}

	events, res := collect(t, r, history)

	var call, output *protocol.Item
	for i := range events {
		if events[i].Kind != KindItem {
			continue
		}
		switch events[i].Item.Type {
		case protocol.ItemTypeFunctionCall:
			call = &events[i].Item
		case protocol.ItemTypeFunctionOutput:
			output = &events[i].Item
		}
	}
	if call == nil || output == nil {
		t.Fatalf("expected a tool call and its output, got %+v", events)
	}
	if call.Name != "add_job_application" {
		t.Fatalf("tool = %q, want add_job_application", call.Name)
	}
	if output.CallID != call.CallID {
		t.Fatalf("output call_id %q does not match call %q", output.CallID, call.CallID)
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		t.Fatalf("arguments: %v", err)
	}
	if args["company"] != "Acme" {
		t.Fatalf("company = %v, want Acme", args["company"])
	}

	final := res.FinalHistory[len(res.FinalHistory)-1]
	if final.Role != protocol.RoleAssistant || final.Content == "" {
		t.Fatalf("expected trailing assistant message, got %+v", final)
	}
}

func TestLocalRunnerStatusUpdate(t *testing.T) {
	reg := newTestRegistry(t)
	reg.Execute(context.Background(), "add_job_application",
		json.RawMessage(`{"company":"Globex","role_title":"SRE"}`))

	r := NewLocalRunner(reg)
	events, _ := collect(t, r, []protocol.Item{
		protocol.UserMessage("Please update the status to offer for Globex"),
	})

	for _, ev := range events {
		if ev.Kind == KindItem && ev.Item.Type == protocol.ItemTypeFunctionOutput {
			if !strings.Contains(ev.Item.Output, `"success":true`) {
				t.Fatalf("status update failed: %s", ev.Item.Output)
			}
			return
		}
	}
	t.Fatal("no tool output emitted")
}

func TestLocalRunnerFallbackHint(t *testing.T) {
	r := NewLocalRunner(newTestRegistry(t))
	events, res := collect(t, r, []protocol.Item{protocol.UserMessage("what is the weather")})

	for _, ev := range events {
		if ev.Kind == KindItem {
			t.Fatalf("unexpected tool activity for small talk: %+v", ev.Item)
		}
	}
	final := res.FinalHistory[len(res.FinalHistory)-1]
	if !strings.Contains(final.Content, "job applications") {
		t.Fatalf("expected usage hint, got %q", final.Content)
	}
}

func TestMockRunnerStreamsReply(t *testing.T) {
	r := NewMockRunner()
	events, res := collect(t, r, []protocol.Item{protocol.UserMessage("hello")})

	var assembled strings.Builder
	for _, ev := range events {
		if ev.Kind != KindTextDelta {
			t.Fatalf("unexpected event kind %q", ev.Kind)
		}
		assembled.WriteString(ev.Delta)
	}
	if strings.TrimSpace(assembled.String()) != r.Reply {
		t.Fatalf("assembled %q, want %q", assembled.String(), r.Reply)
	}
	if len(res.FinalHistory) != 2 {
		t.Fatalf("final history len = %d, want 2", len(res.FinalHistory))
	}
}

func TestHTTPRunnerStreamAndToolRound(t *testing.T) {
	reg := newTestRegistry(t)

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		var body engineRequest
		if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")

		if calls == 1 {
			if len(body.Tools) == 0 {
				t.Error("expected tool definitions in first round")
			}
			fmt.Fprintln(w, `{"type":"response.output_item","item":{"id":"fc-1","type":"function_call","name":"add_job_application","arguments":"{\"company\":\"Initech\",\"role_title\":\"Analyst\"}","call_id":"call-1"}}`)
			return
		}

		// Second round carries the locally executed tool output back.
		found := false
		for _, it := range body.Inputs {
			if it.Type == protocol.ItemTypeFunctionOutput && it.CallID == "call-1" {
				found = true
			}
		}
		if !found {
			t.Error("second round is missing the tool output")
		}
		fmt.Fprintln(w, `{"type":"response.text.delta","delta":"Saved "}`)
		fmt.Fprintln(w, `{"type":"response.text.delta","delta":"it."}`)
		fmt.Fprintln(w, `{"type":"response.output_item","item":{"id":"m-1","type":"message","role":"assistant","content":"Saved it."}}`)
		fmt.Fprintln(w, `{"type":"response.done","agent_name":"Job Application Tracker"}`)
	}))
	defer srv.Close()

	r := NewHTTPRunner(srv.URL, reg)
	events, res := collect(t, r, []protocol.Item{protocol.UserMessage("I applied to Initech as an Analyst")})

	if calls != 2 {
		t.Fatalf("engine calls = %d, want 2", calls)
	}

	var deltas strings.Builder
	sawOutput := false
	for _, ev := range events {
		switch ev.Kind {
		case KindTextDelta:
			deltas.WriteString(ev.Delta)
		case KindItem:
			if ev.Item.Type == protocol.ItemTypeFunctionOutput {
				sawOutput = true
			}
		}
	}
	if deltas.String() != "Saved it." {
		t.Fatalf("deltas = %q, want %q", deltas.String(), "Saved it.")
	}
	if !sawOutput {
		t.Fatal("tool output was not surfaced as an event")
	}
	if res.FinalAgent != "Job Application Tracker" {
		t.Fatalf("final agent = %q", res.FinalAgent)
	}
	last := res.FinalHistory[len(res.FinalHistory)-1]
	if last.Content != "Saved it." {
		t.Fatalf("final item = %+v", last)
	}
}

func TestHTTPRunnerDoesNotReplayAnsweredCalls(t *testing.T) {
	reg := tools.NewRegistry()
	executions := 0
	reg.MustRegister(tools.Definition{Name: "ping", Description: "ping"},
		func(context.Context, json.RawMessage) (string, error) {
			executions++
			return `{"success":true,"message":"pong"}`, nil
		})

	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/x-ndjson")
		if calls == 1 {
			fmt.Fprintln(w, `{"type":"response.output_item","item":{"id":"fc-1","type":"function_call","name":"ping","arguments":"{}","call_id":"call-1"}}`)
			return
		}
		// The follow-up round streams no new tool items, so the earlier
		// call must already count as settled by its output in the inputs.
		fmt.Fprintln(w, `{"type":"response.output_item","item":{"id":"m-1","type":"message","role":"assistant","content":"pong received"}}`)
		fmt.Fprintln(w, `{"type":"response.done"}`)
	}))
	defer srv.Close()

	r := NewHTTPRunner(srv.URL, reg)
	_, res := collect(t, r, []protocol.Item{protocol.UserMessage("ping please")})

	if calls != 2 {
		t.Fatalf("engine calls = %d, want 2", calls)
	}
	if executions != 1 {
		t.Fatalf("tool executions = %d, want 1", executions)
	}
	outputs := 0
	for _, it := range res.FinalHistory {
		if it.Type == protocol.ItemTypeFunctionOutput {
			outputs++
		}
	}
	if outputs != 1 {
		t.Fatalf("function outputs in final history = %d, want 1", outputs)
	}
}

func TestHTTPRunnerHandoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintln(w, `data: {"type":"agent.handoff","agent_name":"Scheduler"}`)
		fmt.Fprintln(w, `data: {"type":"response.output_item","item":{"type":"message","role":"assistant","content":"Handing you over."}}`)
		fmt.Fprintln(w, `data: [DONE]`)
	}))
	defer srv.Close()

	r := NewHTTPRunner(srv.URL, nil)
	events, res := collect(t, r, []protocol.Item{protocol.UserMessage("book a call")})

	sawHandoff := false
	for _, ev := range events {
		if ev.Kind == KindHandoff && ev.AgentName == "Scheduler" {
			sawHandoff = true
		}
	}
	if !sawHandoff {
		t.Fatal("handoff event not delivered")
	}
	if res.FinalAgent != "Scheduler" {
		t.Fatalf("final agent = %q, want Scheduler", res.FinalAgent)
	}
}

func TestNewRunnerModes(t *testing.T) {
	if _, err := New(Config{Mode: "http"}); err == nil {
		t.Fatal("http mode without url should fail")
	}
	if _, err := New(Config{Mode: "banana"}); err == nil {
		t.Fatal("unknown mode should fail")
	}

	r, err := New(Config{Mode: "auto"})
	if err != nil {
		t.Fatalf("auto: %v", err)
	}
	if _, ok := r.(*LocalRunner); !ok {
		t.Fatalf("auto without url = %T, want *LocalRunner", r)
	}

	r, err = New(Config{Mode: "auto", HTTPURL: "http://localhost:9"})
	if err != nil {
		t.Fatalf("auto with url: %v", err)
	}
	if _, ok := r.(*HTTPRunner); !ok {
		t.Fatalf("auto with url = %T, want *HTTPRunner", r)
	}
}
