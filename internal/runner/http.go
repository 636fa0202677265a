package runner

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/tools"
)

// maxToolRounds bounds how many request/execute cycles a single turn may
// take when the engine keeps asking for tools.
const maxToolRounds = 8

// HTTPRunner drives turns against a streaming agent engine over HTTP.
// Tool calls surfaced by the engine are executed locally through the
// registry and fed back in a follow-up round.
type HTTPRunner struct {
	url    string
	tools  *tools.Registry
	client *http.Client
}

func NewHTTPRunner(url string, reg *tools.Registry) *HTTPRunner {
	return &HTTPRunner{
		url:   strings.TrimSpace(url),
		tools: reg,
		client: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type engineRequest struct {
	Agent  engineAgent        `json:"agent"`
	Tools  []tools.Definition `json:"tools,omitempty"`
	Inputs []protocol.Item    `json:"inputs"`
}

type engineAgent struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Model        string `json:"model,omitempty"`
}

// engineEvent is one NDJSON/SSE line from the engine. Exactly one of the
// payload fields is meaningful per Type.
type engineEvent struct {
	Type      string          `json:"type"`
	Delta     string          `json:"delta,omitempty"`
	Item      *protocol.Item  `json:"item,omitempty"`
	AgentName string          `json:"agent_name,omitempty"`
	Inputs    []protocol.Item `json:"inputs,omitempty"`
}

func (r *HTTPRunner) Run(ctx context.Context, ag agent.Agent, history []protocol.Item, onEvent EventHandler) (Result, error) {
	current := ag
	inputs := append([]protocol.Item(nil), history...)

	for round := 0; round < maxToolRounds; round++ {
		outcome, err := r.runRound(ctx, current, inputs, onEvent)
		if err != nil {
			return Result{}, err
		}

		inputs = outcome.inputs
		if outcome.agentName != "" {
			current.Name = outcome.agentName
		}

		if len(outcome.pendingCalls) == 0 {
			return Result{FinalHistory: inputs, FinalAgent: current.Name}, nil
		}
		if r.tools == nil {
			return Result{}, fmt.Errorf("engine requested tool %q but no registry is wired", outcome.pendingCalls[0].Name)
		}

		for _, call := range outcome.pendingCalls {
			output := r.tools.Execute(ctx, call.Name, json.RawMessage(call.Arguments))
			result := protocol.Item{
				ID:     uuid.NewString(),
				Type:   protocol.ItemTypeFunctionOutput,
				CallID: call.CallID,
				Output: output,
			}
			inputs = append(inputs, result)
			if err := onEvent(Event{Kind: KindItem, Item: result}); err != nil {
				return Result{}, err
			}
		}
	}

	return Result{}, fmt.Errorf("turn exceeded %d tool rounds", maxToolRounds)
}

type roundOutcome struct {
	inputs       []protocol.Item
	pendingCalls []protocol.Item
	agentName    string
}

func (r *HTTPRunner) runRound(ctx context.Context, ag agent.Agent, inputs []protocol.Item, onEvent EventHandler) (roundOutcome, error) {
	req := engineRequest{
		Agent: engineAgent{
			Name:         ag.Name,
			Instructions: ag.Instructions,
			Model:        ag.Model,
		},
		Inputs: inputs,
	}
	if r.tools != nil {
		req.Tools = r.tools.Definitions()
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return roundOutcome{}, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return roundOutcome{}, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/x-ndjson, text/event-stream")

	res, err := r.client.Do(httpReq)
	if err != nil {
		return roundOutcome{}, fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return roundOutcome{}, fmt.Errorf("engine http status %d: %s", res.StatusCode, string(body))
	}

	return r.consumeStream(res.Body, inputs, onEvent)
}

func (r *HTTPRunner) consumeStream(body io.Reader, inputs []protocol.Item, onEvent EventHandler) (roundOutcome, error) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	outcome := roundOutcome{inputs: inputs}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			line = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		}
		if line == "[DONE]" {
			break
		}

		var ev engineEvent
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return roundOutcome{}, fmt.Errorf("decode stream line: %w", err)
		}

		switch ev.Type {
		case "response.text.delta":
			if ev.Delta == "" {
				continue
			}
			if err := onEvent(Event{Kind: KindTextDelta, Delta: ev.Delta}); err != nil {
				return roundOutcome{}, err
			}
		case "response.output_item":
			if ev.Item == nil {
				continue
			}
			item := *ev.Item
			outcome.inputs = append(outcome.inputs, item)
			if err := onEvent(Event{Kind: KindItem, Item: item}); err != nil {
				return roundOutcome{}, err
			}
		case "agent.handoff":
			outcome.agentName = ev.AgentName
			if err := onEvent(Event{Kind: KindHandoff, AgentName: ev.AgentName}); err != nil {
				return roundOutcome{}, err
			}
		case "response.done":
			if len(ev.Inputs) > 0 {
				outcome.inputs = ev.Inputs
			}
			if ev.AgentName != "" {
				outcome.agentName = ev.AgentName
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return roundOutcome{}, fmt.Errorf("stream read: %w", err)
	}

	// A call answered in any round, including outputs we appended locally
	// before this request, is settled. Only calls with no output anywhere
	// in the transcript still need execution.
	answered := make(map[string]bool)
	for _, item := range outcome.inputs {
		if item.Type == protocol.ItemTypeFunctionOutput {
			answered[item.CallID] = true
		}
	}
	for _, item := range outcome.inputs {
		if item.Type == protocol.ItemTypeFunctionCall && !answered[item.CallID] {
			outcome.pendingCalls = append(outcome.pendingCalls, item)
		}
	}
	return outcome, nil
}
