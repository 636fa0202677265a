package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/observability"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/runner"
)

// EmitFunc delivers one outbound frame. It blocks until the frame is
// queued or the connection is gone, in which case it returns an error
// that aborts the turn.
type EmitFunc func(frame any) error

// Workflow drives one conversational turn: it owns the session mutations
// and frame emissions that a runner's event stream implies.
type Workflow struct {
	runner  runner.Runner
	base    agent.Agent
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewWorkflow(r runner.Runner, base agent.Agent, logger *slog.Logger, metrics *observability.Metrics) *Workflow {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Workflow{
		runner:  r,
		base:    base,
		logger:  logger.With("component", "workflow"),
		metrics: metrics,
	}
}

// Run executes one turn for userText and returns the finalized assistant
// reply. The user item is appended and acknowledged before the runner is
// invoked, so the client sees its input echoed immediately. At stream end
// the runner's final transcript and agent replace local state wholesale;
// everything appended mid-turn is only a lower-latency preview.
func (w *Workflow) Run(ctx context.Context, sess *Session, userText string, emit EmitFunc) (string, error) {
	sess.partial = ""

	sess.History = append(sess.History, protocol.UserMessage(userText))
	if err := emit(historyFrame(protocol.ReasonUserInput, sess.History, sess.AgentName)); err != nil {
		return "", err
	}

	active := w.base
	if sess.AgentName != "" {
		active.Name = sess.AgentName
	}

	res, err := w.runner.Run(ctx, active, sess.History, func(ev runner.Event) error {
		switch ev.Kind {
		case runner.KindItem:
			sess.History = append(sess.History, ev.Item)
			return emit(historyFrame(protocol.ReasonInputItem, sess.History, sess.AgentName))
		case runner.KindTextDelta:
			sess.partial += ev.Delta
			return emit(previewFrame(sess.History, sess.partial, sess.AgentName))
		case runner.KindHandoff:
			sess.AgentName = ev.AgentName
			return nil
		default:
			return fmt.Errorf("unhandled runner event kind %q", ev.Kind)
		}
	})
	if err != nil {
		sess.partial = ""
		if w.metrics != nil {
			w.metrics.Turns.WithLabelValues("error").Inc()
		}
		return "", fmt.Errorf("run turn: %w", err)
	}

	reply := strings.TrimSpace(sess.partial)
	sess.partial = ""
	sess.History = res.FinalHistory
	if res.FinalAgent != "" {
		sess.AgentName = res.FinalAgent
	}
	if reply == "" {
		reply = lastAssistantText(sess.History)
	}

	if err := emit(historyFrame(protocol.ReasonDone, sess.History, sess.AgentName)); err != nil {
		return "", err
	}
	if w.metrics != nil {
		w.metrics.Turns.WithLabelValues("ok").Inc()
	}
	w.logger.Info("turn completed",
		"session_id", sess.ID,
		"history_items", len(sess.History),
		"agent", sess.AgentName)
	return reply, nil
}

func lastAssistantText(history []protocol.Item) string {
	for i := len(history) - 1; i >= 0; i-- {
		it := history[i]
		if it.Type == protocol.ItemTypeMessage && it.Role == protocol.RoleAssistant {
			return it.Content
		}
	}
	return ""
}
