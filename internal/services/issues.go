package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"civicpulse/internal/metrics"
	"civicpulse/internal/models"
	"civicpulse/internal/store"
	"civicpulse/internal/utils"
)

const (
	defaultPageSize = 9
	maxPageSize     = 100
)

// IssueDraft is a citizen's report before it is stored.
type IssueDraft struct {
	Title         string
	Description   string
	Category      string
	Location      string
	Image         string
	Priority      string
	ReporterEmail string
}

// IssueUpdate changes fields and optionally moves the issue to Status.
// Message and Actor describe the timeline entry written for a status change.
type IssueUpdate struct {
	Title       *string
	Description *string
	Category    *string
	Location    *string
	Image       *string
	Priority    *string

	Status  *models.IssueStatus
	Message string
	Actor   string
}

// UpdateResult mirrors the matched/modified counts clients expect.
type UpdateResult struct {
	Matched  bool
	Modified bool
	Issue    *models.Issue
}

// IssuePage is one page of an issue listing.
type IssuePage struct {
	Issues      []models.Issue
	TotalCount  int64
	TotalPages  int
	CurrentPage int
}

type IssueService struct {
	issues store.IssueStore
	titles TitlePolicy
	log    logrus.FieldLogger
	now    func() time.Time
}

func NewIssueService(issues store.IssueStore, titles TitlePolicy, log logrus.FieldLogger) *IssueService {
	if titles == nil {
		titles = ExactTitle
	}
	return &IssueService{
		issues: issues,
		titles: titles,
		log:    log.WithField("component", "issues"),
		now:    time.Now,
	}
}

func validPriority(p string) bool {
	return p == models.PriorityNormal || p == models.PriorityHigh
}

// Report stores a new issue. A title whose key already exists yields
// ErrAlreadyExists and writes nothing.
func (s *IssueService) Report(ctx context.Context, draft IssueDraft) (*models.Issue, error) {
	title := utils.PlainText(draft.Title)
	if title == "" {
		return nil, validation("title is required")
	}
	priority := strings.TrimSpace(draft.Priority)
	if priority == "" {
		priority = models.PriorityNormal
	}
	if !validPriority(priority) {
		return nil, validation("unknown priority %q", priority)
	}

	// 去重键取自原始标题，清洗只作用于展示用的标题
	key := s.titles.Key(draft.Title)
	if _, err := s.issues.FindIssueByTitleKey(ctx, key); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("check duplicate title: %w", err)
	}

	issue := &models.Issue{
		Title:           title,
		TitleKey:        key,
		Description:     draft.Description,
		DescriptionHTML: utils.RenderMarkdown(draft.Description),
		Category:        strings.TrimSpace(draft.Category),
		Location:        strings.TrimSpace(draft.Location),
		Image:           strings.TrimSpace(draft.Image),
		ReporterEmail:   strings.TrimSpace(draft.ReporterEmail),
		Status:          models.StatusReported,
		Priority:        priority,
	}
	if err := s.issues.CreateIssue(ctx, issue); err != nil {
		// 预检查与插入之间被并发请求抢先
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrAlreadyExists
		}
		return nil, fmt.Errorf("create issue: %w", err)
	}
	s.log.WithFields(logrus.Fields{"issue_id": issue.ID, "reporter": issue.ReporterEmail}).Info("issue reported")
	return issue, nil
}

func (s *IssueService) Get(ctx context.Context, id uint) (*models.Issue, error) {
	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, notFound(err, "issue", id)
	}
	return issue, nil
}

// List returns one page of issues. Page and limit are clamped to sane values.
func (s *IssueService) List(ctx context.Context, q store.IssueQuery) (*IssuePage, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	switch q.Sort {
	case store.SortRecent, store.SortUpvotes, store.SortBoosted:
	case "":
		q.Sort = store.SortRecent
	default:
		return nil, validation("unknown sort %q", q.Sort)
	}

	issues, total, err := s.issues.ListIssues(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return &IssuePage{
		Issues:      issues,
		TotalCount:  total,
		TotalPages:  store.TotalPages(total, q.Limit),
		CurrentPage: q.Page,
	}, nil
}

func (s *IssueService) ListByReporter(ctx context.Context, email string) ([]models.Issue, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, validation("email is required")
	}
	issues, err := s.issues.ListIssuesByReporter(ctx, email)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

func (s *IssueService) Categories(ctx context.Context) ([]string, error) {
	categories, err := s.issues.Categories(ctx)
	if err != nil {
		return nil, err
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Update edits an issue and, when upd.Status differs from the current status,
// performs the lifecycle transition together with its timeline entry.
func (s *IssueService) Update(ctx context.Context, id uint, upd IssueUpdate) (*UpdateResult, error) {
	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, notFound(err, "issue", id)
	}
	fields, err := s.fields(issue, upd)
	if err != nil {
		return nil, err
	}

	if upd.Status == nil || *upd.Status == issue.Status {
		if fields.Empty() {
			return &UpdateResult{Matched: true, Issue: issue}, nil
		}
		ok, err := s.issues.UpdateIssue(ctx, id, fields)
		if err != nil {
			return nil, s.writeErr(err)
		}
		if !ok {
			return nil, s.lostGuard(ctx, id)
		}
		return s.result(ctx, id)
	}

	next := *upd.Status
	if !next.Valid() {
		return nil, validation("unknown status %q", next)
	}
	if !issue.Status.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, issue.Status, next)
	}
	actor := strings.TrimSpace(upd.Actor)
	if actor == "" {
		return nil, validation("a status change needs an actor")
	}
	message := strings.TrimSpace(upd.Message)
	if message == "" {
		message = fmt.Sprintf("Status changed to %s", next)
	}

	entry := models.TimelineEntry{
		Status:    string(next),
		Message:   message,
		Timestamp: s.now().UTC(),
		UpdatedBy: actor,
	}
	ok, err := s.issues.TransitionIssue(ctx, id, issue.Status, next, fields, entry)
	if err != nil {
		return nil, s.writeErr(err)
	}
	if !ok {
		return nil, s.lostGuard(ctx, id)
	}
	metrics.RecordTransition(string(next))
	s.log.WithFields(logrus.Fields{
		"issue_id": id,
		"from":     issue.Status,
		"to":       next,
		"actor":    actor,
	}).Info("issue status changed")
	return s.result(ctx, id)
}

// fields validates upd against the current issue and builds the column update.
func (s *IssueService) fields(issue *models.Issue, upd IssueUpdate) (store.IssueFields, error) {
	var f store.IssueFields
	if upd.Title != nil {
		title := utils.PlainText(*upd.Title)
		if title == "" {
			return f, validation("title cannot be empty")
		}
		key := s.titles.Key(*upd.Title)
		if title != issue.Title || key != issue.TitleKey {
			f.Title = &title
			f.TitleKey = &key
		}
	}
	if upd.Description != nil {
		html := utils.RenderMarkdown(*upd.Description)
		f.Description = upd.Description
		f.DescriptionHTML = &html
	}
	if upd.Priority != nil {
		p := strings.TrimSpace(*upd.Priority)
		if !validPriority(p) {
			return f, validation("unknown priority %q", p)
		}
		if issue.Boosted && p != models.PriorityHigh {
			return f, validation("a boosted issue keeps %s priority", models.PriorityHigh)
		}
		f.Priority = &p
	}
	f.Category = upd.Category
	f.Location = upd.Location
	f.Image = upd.Image
	return f, nil
}

// lostGuard explains a conditional write that matched no row: the issue is
// gone, or it was boosted or moved on since it was read.
func (s *IssueService) lostGuard(ctx context.Context, id uint) error {
	if _, err := s.issues.GetIssue(ctx, id); err != nil {
		return notFound(err, "issue", id)
	}
	return fmt.Errorf("%w: issue %d changed concurrently", ErrConflict, id)
}

func (s *IssueService) writeErr(err error) error {
	if errors.Is(err, store.ErrDuplicate) {
		return fmt.Errorf("%w: another issue already has this title", ErrConflict)
	}
	return fmt.Errorf("update issue: %w", err)
}

func (s *IssueService) result(ctx context.Context, id uint) (*UpdateResult, error) {
	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return nil, notFound(err, "issue", id)
	}
	return &UpdateResult{Matched: true, Modified: true, Issue: issue}, nil
}

func (s *IssueService) Delete(ctx context.Context, id uint) error {
	ok, err := s.issues.DeleteIssue(ctx, id)
	if err != nil {
		return fmt.Errorf("delete issue: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w: issue %d", ErrNotFound, id)
	}
	s.log.WithField("issue_id", id).Info("issue deleted")
	return nil
}
