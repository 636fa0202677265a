package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType identifies websocket payload variants.
type MessageType string

const (
	// Inbound.
	TypeHistoryUpdate MessageType = "history.update"
	TypeAudioAppend   MessageType = "input_audio_buffer.append"
	TypeAudioCommit   MessageType = "input_audio_buffer.commit"

	// Outbound.
	TypeHistoryUpdated MessageType = "history.updated"
	TypeAudioDelta     MessageType = "response.audio.delta"
	TypeAudioDone      MessageType = "audio.done"
)

// Reason tags a history.updated frame with why it was emitted, so clients
// can reconcile state from any single frame without incremental diffs.
type Reason string

const (
	ReasonUserInput     Reason = "user.input"
	ReasonInputItem     Reason = "response.input_item"
	ReasonTextDelta     Reason = "response.text.delta"
	ReasonDone          Reason = "response.done"
	ReasonHistoryUpdate Reason = "history.update"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

const (
	ItemTypeMessage        = "message"
	ItemTypeFunctionCall   = "function_call"
	ItemTypeFunctionOutput = "function_call_output"
)

var (
	ErrUnsupportedType = errors.New("unsupported message type")
	ErrMalformedInput  = errors.New("malformed history input")
)

// Item is one conversation history entry. The same shape travels both
// directions: messages carry Role and Content, tool calls carry Name,
// Arguments and CallID, tool outputs carry CallID and Output. ID is an
// opaque identity used for deduplication on resend.
type Item struct {
	ID        string `json:"id,omitempty"`
	Type      string `json:"type,omitempty"`
	Role      string `json:"role,omitempty"`
	Content   string `json:"content,omitempty"`
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
	CallID    string `json:"call_id,omitempty"`
	Output    string `json:"output,omitempty"`

	hasContent bool
}

func (it *Item) UnmarshalJSON(data []byte) error {
	type alias Item
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*it = Item(a)

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	_, it.hasContent = probe["content"]
	return nil
}

// HasContent reports whether the decoded JSON carried a content field at
// all, distinguishing a missing field from an empty string. Items built
// locally report false; only parsed items are meaningful here.
func (it Item) HasContent() bool { return it.hasContent }

// UserMessage builds a plain user message item.
func UserMessage(content string) Item {
	return Item{Type: ItemTypeMessage, Role: RoleUser, Content: content, hasContent: true}
}

// AssistantMessage builds a plain assistant message item.
func AssistantMessage(content string) Item {
	return Item{Type: ItemTypeMessage, Role: RoleAssistant, Content: content, hasContent: true}
}

type Envelope struct {
	Type MessageType `json:"type"`
}

// HistoryUpdate replaces or extends the conversation transcript. Whether it
// is a sync or a new user turn is decided by the classifier below.
type HistoryUpdate struct {
	Type       MessageType `json:"type"`
	Inputs     []Item      `json:"inputs"`
	ResetAgent bool        `json:"reset_agent,omitempty"`
}

// AudioAppend carries one base64 PCM16 chunk for the session audio buffer.
type AudioAppend struct {
	Type  MessageType `json:"type"`
	Delta string      `json:"delta"`
}

// AudioCommit flushes the accumulated audio buffer through the speech pipeline.
type AudioCommit struct {
	Type MessageType `json:"type"`
}

// ParseClientMessage decodes one inbound frame into its typed variant.
func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeHistoryUpdate:
		var msg HistoryUpdate
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	case TypeAudioAppend:
		var msg AudioAppend
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		if msg.Delta == "" {
			return nil, errors.New("invalid input_audio_buffer.append: empty delta")
		}
		return msg, nil
	case TypeAudioCommit:
		var msg AudioCommit
		if err := json.Unmarshal(raw, &msg); err != nil {
			return nil, err
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

// IsSync reports whether a history.update is a pure transcript sync:
// inputs are empty or the trailing item is not a user turn.
func IsSync(m HistoryUpdate) bool {
	return len(m.Inputs) == 0 || m.Inputs[len(m.Inputs)-1].Role != RoleUser
}

// IsNewText reports whether a history.update carries a fresh user turn.
func IsNewText(m HistoryUpdate) bool {
	return len(m.Inputs) > 0 && m.Inputs[len(m.Inputs)-1].Role == RoleUser
}

// SplitInputs separates a new-text update into the preceding history and the
// trailing user text. A trailing user item with no content field at all is
// malformed and rejected rather than coerced to an empty turn.
func SplitInputs(m HistoryUpdate) ([]Item, string, error) {
	if !IsNewText(m) {
		return nil, "", fmt.Errorf("%w: no trailing user item", ErrMalformedInput)
	}
	last := m.Inputs[len(m.Inputs)-1]
	if !last.HasContent() {
		return nil, "", fmt.Errorf("%w: trailing user item has no content field", ErrMalformedInput)
	}
	return m.Inputs[:len(m.Inputs)-1], last.Content, nil
}

// HistoryUpdated is the full-state outbound frame.
type HistoryUpdated struct {
	Type      MessageType `json:"type"`
	Reason    Reason      `json:"reason,omitempty"`
	Inputs    []Item      `json:"inputs"`
	AgentName string      `json:"agent_name"`
	Sync      bool        `json:"sync,omitempty"`
}

// AudioDelta carries one base64 PCM16 chunk of synthesized speech. The
// correlation fields mirror an external streaming-audio protocol and are
// fixed placeholders; clients must not rely on them being populated.
type AudioDelta struct {
	Type         MessageType `json:"type"`
	Delta        string      `json:"delta"`
	OutputIndex  int         `json:"output_index"`
	ContentIndex int         `json:"content_index"`
	ItemID       string      `json:"item_id"`
	ResponseID   string      `json:"response_id"`
	EventID      string      `json:"event_id"`
}

// AudioDone terminates one synthesized audio stream.
type AudioDone struct {
	Type MessageType `json:"type"`
}

// MessageTypeOf extracts the wire type from any protocol value, inbound or
// outbound, for metrics labeling.
func MessageTypeOf(v any) (MessageType, bool) {
	switch m := v.(type) {
	case HistoryUpdate:
		return m.Type, true
	case AudioAppend:
		return m.Type, true
	case AudioCommit:
		return m.Type, true
	case HistoryUpdated:
		return m.Type, true
	case AudioDelta:
		return m.Type, true
	case AudioDone:
		return m.Type, true
	default:
		return "", false
	}
}
