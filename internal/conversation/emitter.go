package conversation

import (
	"github.com/jobtrail/jobtrail/internal/audio"
	"github.com/jobtrail/jobtrail/internal/protocol"
)

// Frame builders. Each produces exactly one wire frame from a session
// snapshot and never mutates it; history slices are copied so a frame
// queued for writing stays stable while the turn keeps appending.

func historyFrame(reason protocol.Reason, history []protocol.Item, agentName string) protocol.HistoryUpdated {
	return protocol.HistoryUpdated{
		Type:      protocol.TypeHistoryUpdated,
		Reason:    reason,
		Inputs:    append([]protocol.Item(nil), history...),
		AgentName: agentName,
	}
}

// syncFrame acknowledges a client-driven history replacement.
func syncFrame(history []protocol.Item, agentName string) protocol.HistoryUpdated {
	f := historyFrame(protocol.ReasonHistoryUpdate, history, agentName)
	f.Sync = true
	return f
}

// previewFrame carries history plus a synthetic trailing assistant item
// holding the partial text accumulated so far. The synthetic item is never
// written into session history; finalization replaces it with the runner's
// authoritative transcript.
func previewFrame(history []protocol.Item, partial, agentName string) protocol.HistoryUpdated {
	inputs := make([]protocol.Item, 0, len(history)+1)
	inputs = append(inputs, history...)
	inputs = append(inputs, protocol.AssistantMessage(partial))
	return protocol.HistoryUpdated{
		Type:      protocol.TypeHistoryUpdated,
		Reason:    protocol.ReasonTextDelta,
		Inputs:    inputs,
		AgentName: agentName,
	}
}

// audioDeltaFrame wraps one chunk of synthesized speech. The correlation
// fields are fixed placeholders kept for wire compatibility.
func audioDeltaFrame(samples []float32) protocol.AudioDelta {
	return protocol.AudioDelta{
		Type:  protocol.TypeAudioDelta,
		Delta: audio.EncodeBase64PCM16(samples),
	}
}

func audioDoneFrame() protocol.AudioDone {
	return protocol.AudioDone{Type: protocol.TypeAudioDone}
}
