package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists job-application entities in PostgreSQL.
type PostgresStore struct {
	pool        *pgxpool.Pool
	dedupWindow time.Duration
	searchLimit int
}

func NewPostgresStore(ctx context.Context, databaseURL string, dedupWindow time.Duration, searchLimit int) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	if dedupWindow <= 0 {
		dedupWindow = 14 * 24 * time.Hour
	}
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &PostgresStore{pool: pool, dedupWindow: dedupWindow, searchLimit: searchLimit}, nil
}

func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS applications (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			company TEXT NOT NULL,
			role_title TEXT NOT NULL,
			company_norm TEXT NOT NULL,
			role_title_norm TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			source TEXT NOT NULL DEFAULT '',
			job_post_url TEXT NOT NULL DEFAULT '',
			status_stage TEXT NOT NULL DEFAULT 'draft',
			salary_min DOUBLE PRECISION,
			salary_max DOUBLE PRECISION,
			currency TEXT NOT NULL DEFAULT 'USD',
			remote_ok BOOLEAN,
			skills_required TEXT[] NOT NULL DEFAULT '{}',
			job_posted_date TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS notes (
			id TEXT PRIMARY KEY,
			application_id TEXT NOT NULL REFERENCES applications(id),
			user_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE TABLE IF NOT EXISTS followups (
			id TEXT PRIMARY KEY,
			application_id TEXT NOT NULL REFERENCES applications(id),
			user_id TEXT NOT NULL,
			due_at TIMESTAMPTZ NOT NULL,
			channel TEXT NOT NULL DEFAULT 'email',
			status TEXT NOT NULL DEFAULT 'pending',
			note TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_applications_dedup ON applications (user_id, company_norm, role_title_norm, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_applications_stage ON applications (user_id, status_stage, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_notes_app ON notes (user_id, application_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_followups_due ON followups (user_id, status, due_at);`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

const applicationColumns = `id, user_id, company, role_title, company_norm, role_title_norm,
	location, source, job_post_url, status_stage, salary_min, salary_max, currency,
	remote_ok, skills_required, job_posted_date, created_at, updated_at`

func scanApplication(row pgx.Row) (Application, error) {
	var a Application
	err := row.Scan(&a.ID, &a.UserID, &a.Company, &a.RoleTitle, &a.CompanyNorm, &a.RoleTitleNorm,
		&a.Location, &a.Source, &a.JobPostURL, &a.StatusStage, &a.SalaryMin, &a.SalaryMax,
		&a.Currency, &a.RemoteOK, &a.SkillsRequired, &a.JobPostedDate, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func (s *PostgresStore) CreateWithDedup(ctx context.Context, userID string, app Application) (CreateResult, error) {
	userID = userOrDefault(userID)
	app.CompanyNorm = Normalize(app.Company)
	app.RoleTitleNorm = Normalize(app.RoleTitle)
	now := time.Now().UTC()

	// A matching record created inside the rolling window turns this
	// create into an update. Substring-free exact match on normalized
	// fields; a known precision/recall tradeoff, not a bug.
	threshold := now.Add(-s.dedupWindow)
	row := s.pool.QueryRow(ctx,
		`SELECT id FROM applications
		 WHERE user_id=$1 AND company_norm=$2 AND role_title_norm=$3 AND created_at >= $4
		 ORDER BY created_at DESC LIMIT 1`,
		userID, app.CompanyNorm, app.RoleTitleNorm, threshold)

	var existingID string
	err := row.Scan(&existingID)
	switch {
	case err == nil:
		if err := s.updateApplication(ctx, userID, existingID, app, now); err != nil {
			return CreateResult{}, err
		}
		return CreateResult{
			ApplicationID: existingID,
			Message:       fmt.Sprintf("Updated existing %s position at %s", app.RoleTitleNorm, app.CompanyNorm),
			Updated:       true,
		}, nil
	case errors.Is(err, pgx.ErrNoRows):
		// Fresh record.
	default:
		return CreateResult{}, fmt.Errorf("dedup lookup: %w", err)
	}

	id := uuid.NewString()
	stage := app.StatusStage
	if stage == "" {
		stage = StageDraft
	}
	currency := app.Currency
	if currency == "" {
		currency = "USD"
	}
	skills := app.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO applications (id, user_id, company, role_title, company_norm, role_title_norm,
			location, source, job_post_url, status_stage, salary_min, salary_max, currency,
			remote_ok, skills_required, job_posted_date, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$17)`,
		id, userID, app.Company, app.RoleTitle, app.CompanyNorm, app.RoleTitleNorm,
		app.Location, app.Source, app.JobPostURL, stage, app.SalaryMin, app.SalaryMax,
		currency, app.RemoteOK, skills, app.JobPostedDate, now)
	if err != nil {
		return CreateResult{}, fmt.Errorf("insert application: %w", err)
	}

	return CreateResult{
		ApplicationID: id,
		Message:       fmt.Sprintf("Added %s position at %s", app.RoleTitleNorm, app.CompanyNorm),
		Updated:       false,
	}, nil
}

func (s *PostgresStore) updateApplication(ctx context.Context, userID, id string, app Application, now time.Time) error {
	skills := app.SkillsRequired
	if skills == nil {
		skills = []string{}
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET company=$3, role_title=$4, company_norm=$5, role_title_norm=$6,
			location=$7, source=$8, job_post_url=$9,
			status_stage=COALESCE(NULLIF($10,''), status_stage),
			salary_min=COALESCE($11, salary_min), salary_max=COALESCE($12, salary_max),
			currency=COALESCE(NULLIF($13,''), currency), remote_ok=COALESCE($14, remote_ok),
			skills_required=$15, job_posted_date=COALESCE(NULLIF($16,''), job_posted_date),
			updated_at=$17
		 WHERE id=$1 AND user_id=$2`,
		id, userID, app.Company, app.RoleTitle, Normalize(app.Company), Normalize(app.RoleTitle),
		app.Location, app.Source, app.JobPostURL, app.StatusStage, app.SalaryMin, app.SalaryMax,
		app.Currency, app.RemoteOK, skills, app.JobPostedDate, now)
	if err != nil {
		return fmt.Errorf("update application: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, userID, applicationID, stage string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE applications SET status_stage=$3, updated_at=now() WHERE id=$1 AND user_id=$2`,
		applicationID, userOrDefault(userID), stage)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) FindByReference(ctx context.Context, userID, ref string) (*Application, error) {
	userID = userOrDefault(userID)
	pattern := "%" + ref + "%"

	// Company name takes precedence over role title; newest match wins.
	for _, column := range []string{"company", "role_title"} {
		row := s.pool.QueryRow(ctx,
			`SELECT `+applicationColumns+` FROM applications
			 WHERE user_id=$1 AND `+column+` ILIKE $2
			 ORDER BY created_at DESC LIMIT 1`,
			userID, pattern)
		app, err := scanApplication(row)
		if err == nil {
			return &app, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("find by reference: %w", err)
		}
	}
	return nil, ErrNotFound
}

func (s *PostgresStore) AddNote(ctx context.Context, userID, applicationID, content string) (string, error) {
	id := uuid.NewString()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO notes (id, application_id, user_id, content, created_at) VALUES ($1,$2,$3,$4,now())`,
		id, applicationID, userOrDefault(userID), content)
	if err != nil {
		return "", fmt.Errorf("insert note: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) ListNotes(ctx context.Context, userID, applicationID string) ([]Note, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, application_id, user_id, content, created_at FROM notes
		 WHERE user_id=$1 AND application_id=$2 ORDER BY created_at DESC`,
		userOrDefault(userID), applicationID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var notes []Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.ApplicationID, &n.UserID, &n.Content, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, n)
	}
	return notes, rows.Err()
}

func (s *PostgresStore) ScheduleFollowup(ctx context.Context, userID string, f Followup) (string, error) {
	id := uuid.NewString()
	channel := f.Channel
	if channel == "" {
		channel = "email"
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO followups (id, application_id, user_id, due_at, channel, status, note, created_at, updated_at)
		 VALUES ($1,$2,$3,$4,$5,'pending',$6,now(),now())`,
		id, f.ApplicationID, userOrDefault(userID), f.DueAt.UTC(), channel, f.Note)
	if err != nil {
		return "", fmt.Errorf("insert followup: %w", err)
	}
	return id, nil
}

func (s *PostgresStore) DueFollowups(ctx context.Context, userID string) ([]Followup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, application_id, user_id, due_at, channel, status, note, created_at, updated_at
		 FROM followups WHERE user_id=$1 AND status='pending' AND due_at <= now()
		 ORDER BY due_at ASC`,
		userOrDefault(userID))
	if err != nil {
		return nil, fmt.Errorf("query due followups: %w", err)
	}
	defer rows.Close()

	var out []Followup
	for rows.Next() {
		var f Followup
		if err := rows.Scan(&f.ID, &f.ApplicationID, &f.UserID, &f.DueAt, &f.Channel, &f.Status, &f.Note, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan followup: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Search(ctx context.Context, userID string, criteria SearchCriteria) ([]Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE user_id=$1`
	args := []any{userOrDefault(userID)}

	if criteria.StatusStage != "" {
		args = append(args, criteria.StatusStage)
		query += fmt.Sprintf(" AND status_stage=$%d", len(args))
	}
	if criteria.Company != "" {
		args = append(args, criteria.Company)
		query += fmt.Sprintf(" AND company=$%d", len(args))
	}
	if criteria.TimeRange != "" {
		start, end := ResolveTimeRange(criteria.TimeRange, time.Now().UTC())
		args = append(args, start)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
		args = append(args, end)
		query += fmt.Sprintf(" AND created_at < $%d", len(args))
	}
	args = append(args, s.searchLimit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		app, err := scanApplication(rows)
		if err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, app)
	}
	return apps, rows.Err()
}

func (s *PostgresStore) Summary(ctx context.Context, userID string) (Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status_stage, COUNT(*) FROM applications WHERE user_id=$1 GROUP BY status_stage`,
		userOrDefault(userID))
	if err != nil {
		return Summary{}, fmt.Errorf("summary query: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	total := 0
	for rows.Next() {
		var stage string
		var n int
		if err := rows.Scan(&stage, &n); err != nil {
			return Summary{}, fmt.Errorf("scan summary row: %w", err)
		}
		counts[stage] = n
		total += n
	}
	if err := rows.Err(); err != nil {
		return Summary{}, err
	}
	return buildSummary(counts, total), nil
}

func buildSummary(counts map[string]int, total int) Summary {
	active := 0
	for _, stage := range ActiveStages {
		active += counts[stage]
	}
	offers := counts[StageOffer]
	rate := 0.0
	if total > 0 {
		rate = math.Round(float64(offers)/float64(total)*1000) / 10
	}
	return Summary{
		Total:              total,
		StatusBreakdown:    counts,
		ActiveApplications: active,
		SuccessRate:        rate,
		Offers:             offers,
	}
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}
