package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Pipeline stages an application moves through.
const (
	StageDraft      = "draft"
	StageApplied    = "applied"
	StageHRScreen   = "hr_screen"
	StageTechScreen = "tech_screen"
	StageOnsite     = "onsite"
	StageOffer      = "offer"
	StageRejected   = "rejected"
	StageWithdrawn  = "withdrawn"
)

// ActiveStages are the stages counted as "in flight" in the pipeline summary.
var ActiveStages = []string{StageApplied, StageHRScreen, StageTechScreen, StageOnsite}

var ErrNotFound = errors.New("record not found")

// DefaultUserID scopes records when the caller supplies no identity.
// There is no authentication layer; every mutation is attributed to a
// single implicit caller.
const DefaultUserID = "default"

// Application is one tracked job application.
type Application struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	Company        string    `json:"company"`
	RoleTitle      string    `json:"role_title"`
	CompanyNorm    string    `json:"company_norm"`
	RoleTitleNorm  string    `json:"role_title_norm"`
	Location       string    `json:"location,omitempty"`
	Source         string    `json:"source,omitempty"`
	JobPostURL     string    `json:"job_post_url,omitempty"`
	StatusStage    string    `json:"status_stage"`
	SalaryMin      *float64  `json:"salary_min,omitempty"`
	SalaryMax      *float64  `json:"salary_max,omitempty"`
	Currency       string    `json:"currency,omitempty"`
	RemoteOK       *bool     `json:"remote_ok,omitempty"`
	SkillsRequired []string  `json:"skills_required,omitempty"`
	JobPostedDate  string    `json:"job_posted_date,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Note is free-form text attached to an application.
type Note struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	UserID        string    `json:"user_id"`
	Content       string    `json:"content"`
	CreatedAt     time.Time `json:"created_at"`
}

// Followup is a scheduled reminder for an application.
type Followup struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	UserID        string    `json:"user_id"`
	DueAt         time.Time `json:"due_at"`
	Channel       string    `json:"channel"`
	Status        string    `json:"status"`
	Note          string    `json:"note,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// CreateResult reports whether a create collapsed into an update of a
// recent matching record.
type CreateResult struct {
	ApplicationID string `json:"application_id"`
	Message       string `json:"message"`
	Updated       bool   `json:"updated"`
}

// SearchCriteria filters Search. Zero values mean "no filter".
type SearchCriteria struct {
	StatusStage string
	Company     string
	TimeRange   string
}

// Summary aggregates the pipeline for voice answers.
type Summary struct {
	Total              int            `json:"total"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
	ActiveApplications int            `json:"active_applications"`
	SuccessRate        float64        `json:"success_rate"`
	Offers             int            `json:"offers"`
}

// Store persists job-application entities. It is the system of record;
// conversation transcripts are never stored here.
type Store interface {
	CreateWithDedup(ctx context.Context, userID string, app Application) (CreateResult, error)
	UpdateStatus(ctx context.Context, userID, applicationID, stage string) error
	FindByReference(ctx context.Context, userID, ref string) (*Application, error)
	AddNote(ctx context.Context, userID, applicationID, content string) (string, error)
	ListNotes(ctx context.Context, userID, applicationID string) ([]Note, error)
	ScheduleFollowup(ctx context.Context, userID string, f Followup) (string, error)
	DueFollowups(ctx context.Context, userID string) ([]Followup, error)
	Search(ctx context.Context, userID string, criteria SearchCriteria) ([]Application, error)
	Summary(ctx context.Context, userID string) (Summary, error)
	Close() error
}

// Normalize lowercases and trims an identity field for dedup matching.
func Normalize(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func userOrDefault(userID string) string {
	if strings.TrimSpace(userID) == "" {
		return DefaultUserID
	}
	return userID
}

// ParseDueAt accepts an RFC3339 timestamp, or falls back to coarse
// relative phrases ("tomorrow", "next friday"). Anything unparseable
// lands a week out rather than failing the tool call.
func ParseDueAt(v string, now time.Time) time.Time {
	if t, err := time.Parse(time.RFC3339, strings.TrimSpace(v)); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(v)); err == nil {
		return t
	}
	lower := strings.ToLower(v)
	switch {
	case strings.Contains(lower, "tomorrow"):
		return now.AddDate(0, 0, 1)
	default:
		return now.AddDate(0, 0, 7)
	}
}
