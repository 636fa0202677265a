package conversation

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/jobtrail/jobtrail/internal/audio"
	"github.com/jobtrail/jobtrail/internal/protocol"
)

// Session is the per-connection conversation state. It is owned by exactly
// one connection goroutine; inbound frames for one session are never
// processed concurrently, so none of its fields are locked.
//
// History holds only finalized items. In-flight assistant text lives in
// partial until the turn completes, then the runner's final transcript
// replaces History wholesale.
type Session struct {
	ID          string
	ConnectedAt time.Time

	History   []protocol.Item
	AgentName string
	Audio     *audio.Accumulator

	partial string
}

// NewSession creates the state for a freshly accepted connection. The audio
// buffer is always initialized so append before any commit cannot observe a
// missing buffer.
func NewSession(agentName string, logger *slog.Logger) *Session {
	return &Session{
		ID:          uuid.NewString(),
		ConnectedAt: time.Now().UTC(),
		AgentName:   agentName,
		Audio:       audio.NewAccumulator(logger),
	}
}
