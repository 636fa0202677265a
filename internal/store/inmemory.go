package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemoryStore is an in-process store for local/dev use and tests.
// Semantics mirror PostgresStore exactly.
type InMemoryStore struct {
	mu          sync.RWMutex
	apps        map[string]*Application
	notes       map[string][]Note
	followups   []Followup
	dedupWindow time.Duration
	searchLimit int
	now         func() time.Time
}

func NewInMemoryStore(dedupWindow time.Duration, searchLimit int) *InMemoryStore {
	if dedupWindow <= 0 {
		dedupWindow = 14 * 24 * time.Hour
	}
	if searchLimit <= 0 {
		searchLimit = 50
	}
	return &InMemoryStore{
		apps:        make(map[string]*Application),
		notes:       make(map[string][]Note),
		dedupWindow: dedupWindow,
		searchLimit: searchLimit,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the time source, for dedup-window tests.
func (s *InMemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *InMemoryStore) CreateWithDedup(_ context.Context, userID string, app Application) (CreateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID = userOrDefault(userID)
	app.CompanyNorm = Normalize(app.Company)
	app.RoleTitleNorm = Normalize(app.RoleTitle)
	now := s.now()
	threshold := now.Add(-s.dedupWindow)

	var match *Application
	for _, existing := range s.apps {
		if existing.UserID != userID ||
			existing.CompanyNorm != app.CompanyNorm ||
			existing.RoleTitleNorm != app.RoleTitleNorm ||
			existing.CreatedAt.Before(threshold) {
			continue
		}
		if match == nil || existing.CreatedAt.After(match.CreatedAt) {
			match = existing
		}
	}

	if match != nil {
		mergeApplication(match, app, now)
		return CreateResult{
			ApplicationID: match.ID,
			Message:       fmt.Sprintf("Updated existing %s position at %s", app.RoleTitleNorm, app.CompanyNorm),
			Updated:       true,
		}, nil
	}

	app.ID = uuid.NewString()
	app.UserID = userID
	if app.StatusStage == "" {
		app.StatusStage = StageDraft
	}
	if app.Currency == "" {
		app.Currency = "USD"
	}
	if app.SkillsRequired == nil {
		app.SkillsRequired = []string{}
	}
	app.CreatedAt = now
	app.UpdatedAt = now
	stored := app
	s.apps[stored.ID] = &stored

	return CreateResult{
		ApplicationID: stored.ID,
		Message:       fmt.Sprintf("Added %s position at %s", app.RoleTitleNorm, app.CompanyNorm),
		Updated:       false,
	}, nil
}

func mergeApplication(dst *Application, src Application, now time.Time) {
	dst.Company = src.Company
	dst.RoleTitle = src.RoleTitle
	dst.CompanyNorm = Normalize(src.Company)
	dst.RoleTitleNorm = Normalize(src.RoleTitle)
	dst.Location = src.Location
	dst.Source = src.Source
	dst.JobPostURL = src.JobPostURL
	if src.StatusStage != "" {
		dst.StatusStage = src.StatusStage
	}
	if src.SalaryMin != nil {
		dst.SalaryMin = src.SalaryMin
	}
	if src.SalaryMax != nil {
		dst.SalaryMax = src.SalaryMax
	}
	if src.Currency != "" {
		dst.Currency = src.Currency
	}
	if src.RemoteOK != nil {
		dst.RemoteOK = src.RemoteOK
	}
	if src.SkillsRequired != nil {
		dst.SkillsRequired = src.SkillsRequired
	}
	if src.JobPostedDate != "" {
		dst.JobPostedDate = src.JobPostedDate
	}
	dst.UpdatedAt = now
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, userID, applicationID, stage string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.apps[applicationID]
	if !ok || app.UserID != userOrDefault(userID) {
		return ErrNotFound
	}
	app.StatusStage = stage
	app.UpdatedAt = s.now()
	return nil
}

func (s *InMemoryStore) FindByReference(_ context.Context, userID, ref string) (*Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = userOrDefault(userID)
	needle := strings.ToLower(ref)

	find := func(field func(*Application) string) *Application {
		var best *Application
		for _, app := range s.apps {
			if app.UserID != userID || !strings.Contains(strings.ToLower(field(app)), needle) {
				continue
			}
			if best == nil || app.CreatedAt.After(best.CreatedAt) {
				best = app
			}
		}
		return best
	}

	if app := find(func(a *Application) string { return a.Company }); app != nil {
		out := *app
		return &out, nil
	}
	if app := find(func(a *Application) string { return a.RoleTitle }); app != nil {
		out := *app
		return &out, nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) AddNote(_ context.Context, userID, applicationID, content string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[applicationID]; !ok {
		return "", ErrNotFound
	}
	n := Note{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		UserID:        userOrDefault(userID),
		Content:       content,
		CreatedAt:     s.now(),
	}
	s.notes[applicationID] = append(s.notes[applicationID], n)
	return n.ID, nil
}

func (s *InMemoryStore) ListNotes(_ context.Context, userID, applicationID string) ([]Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = userOrDefault(userID)
	var out []Note
	for _, n := range s.notes[applicationID] {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ScheduleFollowup(_ context.Context, userID string, f Followup) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.apps[f.ApplicationID]; !ok {
		return "", ErrNotFound
	}
	f.ID = uuid.NewString()
	f.UserID = userOrDefault(userID)
	if f.Channel == "" {
		f.Channel = "email"
	}
	f.Status = "pending"
	now := s.now()
	f.CreatedAt = now
	f.UpdatedAt = now
	s.followups = append(s.followups, f)
	return f.ID, nil
}

func (s *InMemoryStore) DueFollowups(_ context.Context, userID string) ([]Followup, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = userOrDefault(userID)
	now := s.now()
	var out []Followup
	for _, f := range s.followups {
		if f.UserID == userID && f.Status == "pending" && !f.DueAt.After(now) {
			out = append(out, f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DueAt.Before(out[j].DueAt) })
	return out, nil
}

func (s *InMemoryStore) Search(_ context.Context, userID string, criteria SearchCriteria) ([]Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = userOrDefault(userID)
	var start, end time.Time
	if criteria.TimeRange != "" {
		start, end = ResolveTimeRange(criteria.TimeRange, s.now())
	}

	var out []Application
	for _, app := range s.apps {
		if app.UserID != userID {
			continue
		}
		if criteria.StatusStage != "" && app.StatusStage != criteria.StatusStage {
			continue
		}
		if criteria.Company != "" && app.Company != criteria.Company {
			continue
		}
		if criteria.TimeRange != "" && (app.CreatedAt.Before(start) || !app.CreatedAt.Before(end)) {
			continue
		}
		out = append(out, *app)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > s.searchLimit {
		out = out[:s.searchLimit]
	}
	return out, nil
}

func (s *InMemoryStore) Summary(_ context.Context, userID string) (Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID = userOrDefault(userID)
	counts := map[string]int{}
	total := 0
	for _, app := range s.apps {
		if app.UserID != userID {
			continue
		}
		counts[app.StatusStage]++
		total++
	}
	return buildSummary(counts, total), nil
}

func (s *InMemoryStore) Close() error { return nil }
