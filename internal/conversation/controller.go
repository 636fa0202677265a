package conversation

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jobtrail/jobtrail/internal/audio"
	"github.com/jobtrail/jobtrail/internal/observability"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/voice"
)

// Controller dispatches one connection's inbound frames. Failures are
// contained per frame: a failed turn is logged and the session stays
// usable; only transport-level errors end the loop.
type Controller struct {
	workflow *Workflow
	pipeline *voice.Pipeline
	manager  *Manager
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewController(workflow *Workflow, pipeline *voice.Pipeline, manager *Manager, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Controller{
		workflow: workflow,
		pipeline: pipeline,
		manager:  manager,
		logger:   logger.With("component", "controller"),
		metrics:  metrics,
	}
}

// RunConnection is the Active-state self-loop for one connection: receive,
// classify, dispatch, emit, repeat. It returns when inbound closes (clean
// disconnect) or ctx is canceled, never because a turn failed.
func (c *Controller) RunConnection(ctx context.Context, sess *Session, inbound <-chan any, outbound chan<- any) error {
	emit := func(frame any) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case outbound <- frame:
			return nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			c.dispatch(ctx, sess, msg, emit)
		}
	}
}

func (c *Controller) dispatch(ctx context.Context, sess *Session, msg any, emit EmitFunc) {
	switch m := msg.(type) {
	case protocol.HistoryUpdate:
		if protocol.IsSync(m) {
			c.handleSync(sess, m, emit)
			return
		}
		c.handleNewText(ctx, sess, m, emit)
	case protocol.AudioAppend:
		if err := sess.Audio.Append(m.Delta); err != nil {
			c.logger.Warn("audio append rejected", "session_id", sess.ID, "error", err)
			if c.metrics != nil {
				c.metrics.DecodeErrors.WithLabelValues("audio_append").Inc()
			}
		}
	case protocol.AudioCommit:
		c.handleCommit(ctx, sess, emit)
	default:
		c.logger.Warn("dropping unsupported inbound message", "session_id", sess.ID)
	}
}

// handleSync replaces the transcript with the client's copy. It mutates no
// turn state and answers with a single acknowledging frame.
func (c *Controller) handleSync(sess *Session, m protocol.HistoryUpdate, emit EmitFunc) {
	sess.History = append([]protocol.Item(nil), m.Inputs...)
	if m.ResetAgent {
		sess.AgentName = c.manager.DefaultAgent()
	}

	c.logger.Info("history synced",
		"session_id", sess.ID,
		"items", len(sess.History),
		"reset_agent", m.ResetAgent)
	if err := emit(syncFrame(sess.History, sess.AgentName)); err != nil {
		c.logger.Warn("sync ack not delivered", "session_id", sess.ID, "error", err)
	}
}

func (c *Controller) handleNewText(ctx context.Context, sess *Session, m protocol.HistoryUpdate, emit EmitFunc) {
	preceding, userText, err := protocol.SplitInputs(m)
	if err != nil {
		c.logger.Warn("rejecting malformed history update", "session_id", sess.ID, "error", err)
		if c.metrics != nil {
			c.metrics.DecodeErrors.WithLabelValues("history_update").Inc()
		}
		return
	}

	sess.History = append([]protocol.Item(nil), preceding...)
	if _, err := c.workflow.Run(ctx, sess, userText, emit); err != nil {
		c.logger.Error("text turn failed", "session_id", sess.ID, "error", err)
	}
}

// handleCommit flushes the audio buffer through the speech pipeline with
// the turn driver as its text hook. The buffer is already cleared by
// Commit, so a failed utterance never leaks into the next one. For a
// non-empty commit exactly one audio.done goes out, failure or not.
func (c *Controller) handleCommit(ctx context.Context, sess *Session, emit EmitFunc) {
	samples, err := sess.Audio.Commit()
	if errors.Is(err, audio.ErrEmptyBuffer) {
		return
	}
	if err != nil {
		c.logger.Error("audio commit failed", "session_id", sess.ID, "error", err)
		return
	}

	runErr := c.pipeline.Run(ctx, samples,
		func(ctx context.Context, transcript string) (string, error) {
			return c.workflow.Run(ctx, sess, transcript, emit)
		},
		func(chunk []float32) error {
			return emit(audioDeltaFrame(chunk))
		})

	if runErr != nil {
		c.logger.Error("voice turn failed", "session_id", sess.ID, "error", runErr)
	}
	if err := emit(audioDoneFrame()); err != nil {
		c.logger.Warn("audio.done not delivered", "session_id", sess.ID, "error", err)
	}
}
