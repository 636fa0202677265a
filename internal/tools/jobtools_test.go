package tools

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jobtrail/jobtrail/internal/store"
)

func newTestRegistry(t *testing.T) (*Registry, *store.InMemoryStore) {
	t.Helper()
	st := store.NewInMemoryStore(0, 0)
	reg := NewRegistry()
	NewJobTools(st, nil, nil).RegisterAll(reg)
	return reg, st
}

func execute(t *testing.T, reg *Registry, tool, args string) map[string]any {
	t.Helper()
	result := reg.Execute(context.Background(), tool, json.RawMessage(args))
	var decoded map[string]any
	if err := json.Unmarshal([]byte(result), &decoded); err != nil {
		t.Fatalf("tool %s returned invalid JSON %q: %v", tool, result, err)
	}
	return decoded
}

func TestAddThenUpdateStatus(t *testing.T) {
	reg, _ := newTestRegistry(t)

	added := execute(t, reg, "add_job_application", `{"company":"Google","role_title":"Software Engineer","location":"Mountain View"}`)
	if added["success"] != true {
		t.Fatalf("add failed: %v", added)
	}
	if added["application_id"] == "" {
		t.Fatalf("missing application_id: %v", added)
	}

	updated := execute(t, reg, "update_application_status", `{"application_ref":"google","status_stage":"applied"}`)
	if updated["success"] != true {
		t.Fatalf("update failed: %v", updated)
	}

	searched := execute(t, reg, "search_applications", `{"status_stage":"applied"}`)
	if searched["count"] != float64(1) {
		t.Fatalf("search count = %v, want 1", searched["count"])
	}
}

func TestAddDeduplicates(t *testing.T) {
	reg, _ := newTestRegistry(t)

	first := execute(t, reg, "add_job_application", `{"company":"Stripe","role_title":"Backend Engineer"}`)
	second := execute(t, reg, "add_job_application", `{"company":"stripe","role_title":"Backend Engineer"}`)
	if second["updated"] != true {
		t.Fatalf("expected dedup update: %v", second)
	}
	if first["application_id"] != second["application_id"] {
		t.Fatalf("dedup should reuse id: %v vs %v", first["application_id"], second["application_id"])
	}
}

func TestToolErrorsAreStructuredResults(t *testing.T) {
	reg, _ := newTestRegistry(t)

	missing := execute(t, reg, "update_application_status", `{"application_ref":"nonexistent","status_stage":"applied"}`)
	if missing["success"] != false {
		t.Fatalf("expected success=false: %v", missing)
	}
	if missing["error"] == "" {
		t.Fatalf("expected error message: %v", missing)
	}

	invalid := execute(t, reg, "add_job_application", `{"company":""}`)
	if invalid["success"] != false {
		t.Fatalf("expected success=false for missing fields: %v", invalid)
	}

	unknown := execute(t, reg, "no_such_tool", `{}`)
	if unknown["success"] != false {
		t.Fatalf("expected success=false for unknown tool: %v", unknown)
	}
}

func TestNoteAndFollowupByReference(t *testing.T) {
	reg, _ := newTestRegistry(t)

	execute(t, reg, "add_job_application", `{"company":"Netflix","role_title":"Platform Engineer"}`)

	note := execute(t, reg, "add_application_note", `{"application_ref":"netflix","note":"Had a great conversation with the hiring manager"}`)
	if note["success"] != true || note["note_id"] == "" {
		t.Fatalf("add note failed: %v", note)
	}

	followup := execute(t, reg, "schedule_followup", `{"application_ref":"netflix","due_at":"2026-09-04T09:00:00Z","channel":"email"}`)
	if followup["success"] != true || followup["followup_id"] == "" {
		t.Fatalf("schedule followup failed: %v", followup)
	}
}

func TestPipelineSummaryTool(t *testing.T) {
	reg, _ := newTestRegistry(t)

	execute(t, reg, "add_job_application", `{"company":"A","role_title":"r1","status_stage":"applied"}`)
	execute(t, reg, "add_job_application", `{"company":"B","role_title":"r2","status_stage":"offer"}`)

	result := execute(t, reg, "get_pipeline_summary", `{}`)
	if result["success"] != true {
		t.Fatalf("summary failed: %v", result)
	}
	summary, ok := result["summary"].(map[string]any)
	if !ok {
		t.Fatalf("missing summary object: %v", result)
	}
	if summary["total"] != float64(2) {
		t.Fatalf("total = %v, want 2", summary["total"])
	}
	if summary["offers"] != float64(1) {
		t.Fatalf("offers = %v, want 1", summary["offers"])
	}
}

func TestGetAllGroupsByStatus(t *testing.T) {
	reg, _ := newTestRegistry(t)

	execute(t, reg, "add_job_application", `{"company":"A","role_title":"r1","status_stage":"draft"}`)
	execute(t, reg, "add_job_application", `{"company":"B","role_title":"r2","status_stage":"draft"}`)

	result := execute(t, reg, "get_all_applications", `{}`)
	if result["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", result["count"])
	}
	groups, ok := result["status_groups"].(map[string]any)
	if !ok {
		t.Fatalf("missing status_groups: %v", result)
	}
	if _, ok := groups["draft"]; !ok {
		t.Fatalf("missing draft group: %v", groups)
	}
}

func TestRegistryRejectsDuplicateRegistration(t *testing.T) {
	reg := NewRegistry()
	def := Definition{Name: "x"}
	noop := func(context.Context, json.RawMessage) (string, error) { return "{}", nil }
	if err := reg.Register(def, noop); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := reg.Register(def, noop); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
