package runner

import (
	"context"
	"strings"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/protocol"
)

// MockRunner streams a canned reply. Useful for demos and wiring checks
// when neither an engine nor a populated store is available.
type MockRunner struct {
	Reply string
}

func NewMockRunner() *MockRunner {
	return &MockRunner{
		Reply: "Hi! I'm your job application tracker. Tell me about an application and I'll keep it on file.",
	}
}

func (r *MockRunner) Run(ctx context.Context, ag agent.Agent, history []protocol.Item, onEvent EventHandler) (Result, error) {
	for _, word := range strings.Fields(r.Reply) {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		if err := onEvent(Event{Kind: KindTextDelta, Delta: word + " "}); err != nil {
			return Result{}, err
		}
	}

	final := append(append([]protocol.Item(nil), history...), protocol.AssistantMessage(r.Reply))
	return Result{FinalHistory: final, FinalAgent: ag.Name}, nil
}
