package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/tools"
)

// EventKind discriminates streamed runner events.
type EventKind string

const (
	// KindTextDelta carries one incremental fragment of assistant text.
	KindTextDelta EventKind = "text_delta"
	// KindItem carries a newly completed structured item: a tool call,
	// a tool result, or a whole message.
	KindItem EventKind = "item"
	// KindHandoff reports that a different agent is now authoritative.
	KindHandoff EventKind = "handoff"
)

// Event is one element of a turn's event stream. Exactly the fields for
// its kind are populated; consumers switch on Kind exhaustively.
type Event struct {
	Kind      EventKind
	Delta     string
	Item      protocol.Item
	AgentName string
}

// Result is the authoritative end-of-turn state. FinalHistory replaces any
// locally accumulated preview, even when empty; the runner owns item
// identities and ordering.
type Result struct {
	FinalHistory []protocol.Item
	FinalAgent   string
}

// EventHandler receives streamed events in order. Returning an error
// aborts the turn.
type EventHandler func(Event) error

// Runner executes one conversational turn: given the active agent and the
// full transcript (ending in the new user item), it streams events and
// returns the final state. Implementations must deliver events in order
// and must not call the handler after Run returns.
type Runner interface {
	Run(ctx context.Context, ag agent.Agent, history []protocol.Item, onEvent EventHandler) (Result, error)
}

// Config controls runner construction.
type Config struct {
	Mode    string
	HTTPURL string
	Tools   *tools.Registry
}

// New builds a runner for the configured mode. "auto" prefers the HTTP
// engine when a URL is configured and otherwise falls back to the local
// intent-heuristic runner so the service works end to end without one.
func New(cfg Config) (Runner, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPRunner(cfg.HTTPURL, cfg.Tools), nil
		}
		return NewLocalRunner(cfg.Tools), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("runner HTTP url is required for http mode")
		}
		return NewHTTPRunner(cfg.HTTPURL, cfg.Tools), nil
	case "local":
		return NewLocalRunner(cfg.Tools), nil
	case "mock":
		return NewMockRunner(), nil
	default:
		return nil, fmt.Errorf("unsupported runner mode %q", cfg.Mode)
	}
}
