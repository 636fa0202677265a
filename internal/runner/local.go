package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/jobtrail/jobtrail/internal/agent"
	"github.com/jobtrail/jobtrail/internal/protocol"
	"github.com/jobtrail/jobtrail/internal/tools"
)

// LocalRunner answers turns without an external engine. It maps the latest
// user utterance onto one of the registered tools with keyword heuristics,
// executes it, and speaks the tool's message field back. Utterances that
// match no tool get a short usage hint.
type LocalRunner struct {
	tools *tools.Registry
}

func NewLocalRunner(reg *tools.Registry) *LocalRunner {
	return &LocalRunner{tools: reg}
}

var (
	statusPattern   = regexp.MustCompile(`(?i)\bstatus\s+(?:to\s+)?([a-z_]+)\s+for\s+(.+)$`)
	notePattern     = regexp.MustCompile(`(?i)\bnote\s+(?:to|for)\s+(.+?)\s*:\s*(.+)$`)
	followupPattern = regexp.MustCompile(`(?i)\bfollow[- ]?up\s+(?:with|for|on)\s+(.+)$`)
	addPattern      = regexp.MustCompile(`(?i)\b(?:applied|apply|add(?:ed)?)\b.*?\b(?:to|at|for)\s+(.+?)\s+(?:as|for)\s+(?:an?\s+)?(.+)$`)
)

func (r *LocalRunner) Run(ctx context.Context, ag agent.Agent, history []protocol.Item, onEvent EventHandler) (Result, error) {
	utterance := lastUserText(history)
	final := append([]protocol.Item(nil), history...)

	name, args := r.pickTool(utterance)
	reply := "I can track job applications. Try \"I applied to Acme as a backend engineer\", ask for your pipeline summary, or update a status."

	if name != "" {
		if r.tools == nil {
			return Result{}, fmt.Errorf("tool %q selected but no registry is wired", name)
		}

		payload, err := json.Marshal(args)
		if err != nil {
			return Result{}, fmt.Errorf("marshal tool arguments: %w", err)
		}

		call := protocol.Item{
			ID:        uuid.NewString(),
			Type:      protocol.ItemTypeFunctionCall,
			Name:      name,
			Arguments: string(payload),
			CallID:    uuid.NewString(),
		}
		final = append(final, call)
		if err := onEvent(Event{Kind: KindItem, Item: call}); err != nil {
			return Result{}, err
		}

		output := r.tools.Execute(ctx, name, payload)
		result := protocol.Item{
			ID:     uuid.NewString(),
			Type:   protocol.ItemTypeFunctionOutput,
			CallID: call.CallID,
			Output: output,
		}
		final = append(final, result)
		if err := onEvent(Event{Kind: KindItem, Item: result}); err != nil {
			return Result{}, err
		}

		reply = spokenReply(output)
	}

	for _, word := range strings.Fields(reply) {
		if err := onEvent(Event{Kind: KindTextDelta, Delta: word + " "}); err != nil {
			return Result{}, err
		}
	}

	final = append(final, protocol.AssistantMessage(reply))
	return Result{FinalHistory: final, FinalAgent: ag.Name}, nil
}

func (r *LocalRunner) pickTool(utterance string) (string, map[string]any) {
	lower := strings.ToLower(utterance)

	switch {
	case strings.Contains(lower, "summary") || strings.Contains(lower, "pipeline"):
		return "get_pipeline_summary", map[string]any{}
	case strings.Contains(lower, "all my applications") || strings.Contains(lower, "show my applications") || strings.Contains(lower, "list my applications"):
		return "get_all_applications", map[string]any{}
	}

	if m := statusPattern.FindStringSubmatch(utterance); m != nil {
		return "update_application_status", map[string]any{
			"application_ref": strings.TrimSpace(strings.TrimSuffix(m[2], ".")),
			"status_stage":    strings.ToLower(strings.TrimSpace(m[1])),
		}
	}
	if m := notePattern.FindStringSubmatch(utterance); m != nil {
		return "add_application_note", map[string]any{
			"application_ref": strings.TrimSpace(m[1]),
			"note":            strings.TrimSpace(m[2]),
		}
	}
	if m := followupPattern.FindStringSubmatch(utterance); m != nil {
		return "schedule_followup", map[string]any{
			"application_ref": strings.TrimSpace(strings.TrimSuffix(m[1], ".")),
			"note":            "Follow up on application",
			"due_at":          "tomorrow",
		}
	}
	if m := addPattern.FindStringSubmatch(utterance); m != nil {
		return "add_job_application", map[string]any{
			"company":    strings.TrimSpace(m[1]),
			"role_title": strings.TrimSpace(strings.TrimSuffix(m[2], ".")),
		}
	}

	if strings.Contains(lower, "search") || strings.Contains(lower, "find") {
		return "search_applications", map[string]any{"query": utterance}
	}
	return "", nil
}

// spokenReply prefers the tool's human-readable message and falls back to
// a generic confirmation so the voice path never reads raw JSON aloud.
func spokenReply(output string) string {
	var parsed struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		return "Done."
	}
	if !parsed.Success {
		if parsed.Error != "" {
			return "Sorry, that did not work: " + parsed.Error
		}
		return "Sorry, that did not work."
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	return "Done."
}

func lastUserText(history []protocol.Item) string {
	for i := len(history) - 1; i >= 0; i-- {
		it := history[i]
		if it.Type == protocol.ItemTypeMessage && it.Role == protocol.RoleUser {
			return it.Content
		}
	}
	return ""
}
