package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jobtrail/jobtrail/internal/observability"
	"github.com/jobtrail/jobtrail/internal/store"
)

// JobTools binds the job-application tool set to a store.
type JobTools struct {
	store   store.Store
	logger  *slog.Logger
	metrics *observability.Metrics
}

func NewJobTools(st store.Store, logger *slog.Logger, metrics *observability.Metrics) *JobTools {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &JobTools{store: st, logger: logger.With("component", "tools"), metrics: metrics}
}

// RegisterAll wires the seven job-tracking tools into a registry.
func (jt *JobTools) RegisterAll(r *Registry) {
	r.MustRegister(Definition{
		Name:        "add_job_application",
		Description: "Add a new job application, or update a matching one created within the last 14 days.",
	}, jt.wrap("add_job_application", jt.addApplication))
	r.MustRegister(Definition{
		Name:        "update_application_status",
		Description: "Update the pipeline status of an application referenced by company name or role title.",
	}, jt.wrap("update_application_status", jt.updateStatus))
	r.MustRegister(Definition{
		Name:        "add_application_note",
		Description: "Attach a note to an application referenced by company name or role title.",
	}, jt.wrap("add_application_note", jt.addNote))
	r.MustRegister(Definition{
		Name:        "schedule_followup",
		Description: "Schedule a follow-up reminder for an application referenced by company name or role title.",
	}, jt.wrap("schedule_followup", jt.scheduleFollowup))
	r.MustRegister(Definition{
		Name:        "search_applications",
		Description: "Search applications by status, company, or time range.",
	}, jt.wrap("search_applications", jt.search))
	r.MustRegister(Definition{
		Name:        "get_all_applications",
		Description: "List every application in the pipeline, grouped by status.",
	}, jt.wrap("get_all_applications", jt.getAll))
	r.MustRegister(Definition{
		Name:        "get_pipeline_summary",
		Description: "Summarize the pipeline: totals, per-stage counts, success rate.",
	}, jt.wrap("get_pipeline_summary", jt.summary))
}

// wrap converts internal errors to {"success":false} results, logs them,
// and counts invocations. Tool failures never propagate to the turn.
func (jt *JobTools) wrap(name string, fn func(ctx context.Context, args json.RawMessage) (string, error)) ExecutorFunc {
	return func(ctx context.Context, args json.RawMessage) (string, error) {
		result, err := fn(ctx, args)
		outcome := "ok"
		if err != nil {
			outcome = "error"
			jt.logger.Warn("tool call failed", "tool", name, "error", err)
			result = Failure(err)
		}
		if jt.metrics != nil {
			jt.metrics.ToolCalls.WithLabelValues(name, outcome).Inc()
		}
		return result, nil
	}
}

func success(fields map[string]any) string {
	out := map[string]any{"success": true}
	for k, v := range fields {
		out[k] = v
	}
	data, _ := json.Marshal(out)
	return string(data)
}

type addApplicationArgs struct {
	Company        string   `json:"company"`
	RoleTitle      string   `json:"role_title"`
	Location       string   `json:"location"`
	Source         string   `json:"source"`
	JobPostURL     string   `json:"job_post_url"`
	StatusStage    string   `json:"status_stage"`
	SalaryMin      *float64 `json:"salary_min"`
	SalaryMax      *float64 `json:"salary_max"`
	Currency       string   `json:"currency"`
	RemoteOK       *bool    `json:"remote_ok"`
	SkillsRequired []string `json:"skills_required"`
	JobPostedDate  string   `json:"job_posted_date"`
	DueAt          string   `json:"due_at"`
	Channel        string   `json:"channel"`
	Note           string   `json:"note"`
}

func (jt *JobTools) addApplication(ctx context.Context, raw json.RawMessage) (string, error) {
	var args addApplicationArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if strings.TrimSpace(args.Company) == "" || strings.TrimSpace(args.RoleTitle) == "" {
		return "", fmt.Errorf("company and role_title are required")
	}

	res, err := jt.store.CreateWithDedup(ctx, "", store.Application{
		Company:        args.Company,
		RoleTitle:      args.RoleTitle,
		Location:       args.Location,
		Source:         args.Source,
		JobPostURL:     args.JobPostURL,
		StatusStage:    args.StatusStage,
		SalaryMin:      args.SalaryMin,
		SalaryMax:      args.SalaryMax,
		Currency:       args.Currency,
		RemoteOK:       args.RemoteOK,
		SkillsRequired: args.SkillsRequired,
		JobPostedDate:  args.JobPostedDate,
	})
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(args.Note) != "" {
		if _, err := jt.store.AddNote(ctx, "", res.ApplicationID, args.Note); err != nil {
			jt.logger.Warn("initial note failed", "application_id", res.ApplicationID, "error", err)
		}
	}
	if args.DueAt != "" && args.Channel != "" {
		_, err := jt.store.ScheduleFollowup(ctx, "", store.Followup{
			ApplicationID: res.ApplicationID,
			DueAt:         store.ParseDueAt(args.DueAt, time.Now().UTC()),
			Channel:       args.Channel,
		})
		if err != nil {
			jt.logger.Warn("initial followup failed", "application_id", res.ApplicationID, "error", err)
		}
	}

	return success(map[string]any{
		"message":        res.Message,
		"application_id": res.ApplicationID,
		"updated":        res.Updated,
	}), nil
}

type referenceArgs struct {
	ApplicationRef string `json:"application_ref"`
	StatusStage    string `json:"status_stage"`
	Note           string `json:"note"`
	DueAt          string `json:"due_at"`
	Channel        string `json:"channel"`
}

func (jt *JobTools) resolveRef(ctx context.Context, ref string) (*store.Application, error) {
	if strings.TrimSpace(ref) == "" {
		return nil, fmt.Errorf("application_ref is required")
	}
	app, err := jt.store.FindByReference(ctx, "", ref)
	if err != nil {
		return nil, fmt.Errorf("no application found for %q", ref)
	}
	return app, nil
}

func (jt *JobTools) updateStatus(ctx context.Context, raw json.RawMessage) (string, error) {
	var args referenceArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	app, err := jt.resolveRef(ctx, args.ApplicationRef)
	if err != nil {
		return "", err
	}
	if err := jt.store.UpdateStatus(ctx, "", app.ID, args.StatusStage); err != nil {
		return "", fmt.Errorf("update status: %w", err)
	}
	return success(map[string]any{
		"message":        fmt.Sprintf("Status updated to %s for %s %s", args.StatusStage, app.Company, app.RoleTitle),
		"application_id": app.ID,
	}), nil
}

func (jt *JobTools) addNote(ctx context.Context, raw json.RawMessage) (string, error) {
	var args referenceArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	app, err := jt.resolveRef(ctx, args.ApplicationRef)
	if err != nil {
		return "", err
	}
	noteID, err := jt.store.AddNote(ctx, "", app.ID, args.Note)
	if err != nil {
		return "", fmt.Errorf("add note: %w", err)
	}
	return success(map[string]any{
		"message":        fmt.Sprintf("Note added for %s %s", app.Company, app.RoleTitle),
		"application_id": app.ID,
		"note_id":        noteID,
	}), nil
}

func (jt *JobTools) scheduleFollowup(ctx context.Context, raw json.RawMessage) (string, error) {
	var args referenceArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	app, err := jt.resolveRef(ctx, args.ApplicationRef)
	if err != nil {
		return "", err
	}
	followupID, err := jt.store.ScheduleFollowup(ctx, "", store.Followup{
		ApplicationID: app.ID,
		DueAt:         store.ParseDueAt(args.DueAt, time.Now().UTC()),
		Channel:       args.Channel,
		Note:          args.Note,
	})
	if err != nil {
		return "", fmt.Errorf("schedule followup: %w", err)
	}
	return success(map[string]any{
		"message":        fmt.Sprintf("Follow-up scheduled for %s on %s", app.Company, args.DueAt),
		"application_id": app.ID,
		"followup_id":    followupID,
	}), nil
}

type searchArgs struct {
	Query       string `json:"query"`
	StatusStage string `json:"status_stage"`
	Company     string `json:"company"`
	TimeRange   string `json:"time_range"`
}

func (jt *JobTools) search(ctx context.Context, raw json.RawMessage) (string, error) {
	var args searchArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}

	apps, err := jt.store.Search(ctx, "", store.SearchCriteria{
		StatusStage: args.StatusStage,
		Company:     args.Company,
		TimeRange:   args.TimeRange,
	})
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return success(map[string]any{
			"message":      "No applications found matching your criteria.",
			"applications": []store.Application{},
			"count":        0,
		}), nil
	}

	statusCounts := map[string]int{}
	companies := make([]string, 0, 3)
	seen := map[string]bool{}
	for _, app := range apps {
		statusCounts[app.StatusStage]++
		if !seen[app.Company] && len(companies) < 3 {
			seen[app.Company] = true
			companies = append(companies, app.Company)
		}
	}

	parts := make([]string, 0, len(statusCounts))
	for status, count := range statusCounts {
		parts = append(parts, fmt.Sprintf("%d %s", count, status))
	}
	summary := fmt.Sprintf("Found %d applications: %s", len(apps), strings.Join(parts, ", "))
	if len(companies) > 0 {
		summary += fmt.Sprintf(" at companies including %s", strings.Join(companies, ", "))
	}

	return success(map[string]any{
		"message":          summary,
		"applications":     apps,
		"count":            len(apps),
		"status_breakdown": statusCounts,
	}), nil
}

func (jt *JobTools) getAll(ctx context.Context, _ json.RawMessage) (string, error) {
	apps, err := jt.store.Search(ctx, "", store.SearchCriteria{})
	if err != nil {
		return "", err
	}
	if len(apps) == 0 {
		return success(map[string]any{
			"message":      "You don't have any job applications in your pipeline yet.",
			"applications": []store.Application{},
			"count":        0,
		}), nil
	}

	groups := map[string][]store.Application{}
	for _, app := range apps {
		groups[app.StatusStage] = append(groups[app.StatusStage], app)
	}
	parts := make([]string, 0, len(groups))
	for status, group := range groups {
		parts = append(parts, fmt.Sprintf("%d %s", len(group), status))
	}
	summary := fmt.Sprintf("You have %d total applications: %s", len(apps), strings.Join(parts, ", "))

	// Search returns newest first, so the leading entries are the recent ones.
	recent := make([]string, 0, 3)
	for i := 0; i < len(apps) && i < 3; i++ {
		recent = append(recent, apps[i].Company)
	}
	if len(recent) > 0 {
		summary += fmt.Sprintf(". Your most recent applications are at %s", strings.Join(recent, ", "))
	}

	return success(map[string]any{
		"message":       summary,
		"applications":  apps,
		"count":         len(apps),
		"status_groups": groups,
	}), nil
}

func (jt *JobTools) summary(ctx context.Context, _ json.RawMessage) (string, error) {
	sum, err := jt.store.Summary(ctx, "")
	if err != nil {
		return "", err
	}
	return success(map[string]any{"summary": sum}), nil
}
