package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"

	"civicpulse/internal/models"
)

// MemoryStore implements Store in process. Each method holds the lock for
// its whole read-check-write, which gives it the same atomicity as the
// conditional statements of PostgresStore.
type MemoryStore struct {
	mu       sync.RWMutex
	issues   map[uint]*models.Issue
	payments []*models.PaymentRecord
	users    map[uint]*models.User
	nextID   uint
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues: make(map[uint]*models.Issue),
		users:  make(map[uint]*models.User),
		now:    time.Now,
	}
}

func (s *MemoryStore) Ping(ctx context.Context) error { return ctx.Err() }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) id() uint {
	s.nextID++
	return s.nextID
}

func copyIssue(i *models.Issue) models.Issue {
	c := *i
	c.UpvotedBy = append(pq.StringArray{}, i.UpvotedBy...)
	c.Timeline = append(datatypes.JSONSlice[models.TimelineEntry]{}, i.Timeline...)
	return c
}

func (s *MemoryStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.issues {
		if existing.TitleKey == issue.TitleKey {
			return ErrDuplicate
		}
	}
	now := s.now()
	issue.ID = s.id()
	issue.CreatedAt = now
	issue.UpdatedAt = now
	if issue.UpvotedBy == nil {
		issue.UpvotedBy = pq.StringArray{}
	}
	if issue.Timeline == nil {
		issue.Timeline = datatypes.JSONSlice[models.TimelineEntry]{}
	}
	stored := copyIssue(issue)
	s.issues[issue.ID] = &stored
	return nil
}

func (s *MemoryStore) GetIssue(ctx context.Context, id uint) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, ErrNotFound
	}
	c := copyIssue(issue)
	return &c, nil
}

func (s *MemoryStore) FindIssueByTitleKey(ctx context.Context, key string) (*models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, issue := range s.issues {
		if issue.TitleKey == key {
			c := copyIssue(issue)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func (s *MemoryStore) ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, int64, error) {
	s.mu.RLock()
	matched := make([]models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if q.Search != "" && !containsFold(issue.Title, q.Search) &&
			!containsFold(issue.Category, q.Search) && !containsFold(issue.Location, q.Search) {
			continue
		}
		if q.Category != "" && issue.Category != q.Category {
			continue
		}
		if q.Status != "" && string(issue.Status) != q.Status {
			continue
		}
		if q.Priority != "" && issue.Priority != q.Priority {
			continue
		}
		if q.BoostedOnly && !issue.Boosted {
			continue
		}
		matched = append(matched, copyIssue(issue))
	}
	s.mu.RUnlock()

	recent := func(a, b models.Issue) bool {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.ID > b.ID
		}
		return a.CreatedAt.After(b.CreatedAt)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		switch q.Sort {
		case SortUpvotes:
			if a.Upvotes != b.Upvotes {
				return a.Upvotes > b.Upvotes
			}
		case SortBoosted:
			if a.Boosted != b.Boosted {
				return a.Boosted
			}
		}
		return recent(a, b)
	})

	total := int64(len(matched))
	if q.Limit > 0 {
		start := q.Offset()
		if start > len(matched) {
			start = len(matched)
		}
		end := start + q.Limit
		if end > len(matched) {
			end = len(matched)
		}
		matched = matched[start:end]
	}
	return matched, total, nil
}

func (s *MemoryStore) ListIssuesByReporter(ctx context.Context, email string) ([]models.Issue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var issues []models.Issue
	for _, issue := range s.issues {
		if issue.ReporterEmail == email {
			issues = append(issues, copyIssue(issue))
		}
	}
	sort.Slice(issues, func(i, j int) bool { return issues[i].ID > issues[j].ID })
	return issues, nil
}

func (s *MemoryStore) Categories(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]bool)
	var categories []string
	for _, issue := range s.issues {
		if issue.Category != "" && !seen[issue.Category] {
			seen[issue.Category] = true
			categories = append(categories, issue.Category)
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// applyFields must be called with the write lock held.
func (s *MemoryStore) applyFields(issue *models.Issue, f IssueFields) error {
	if f.TitleKey != nil {
		for id, other := range s.issues {
			if id != issue.ID && other.TitleKey == *f.TitleKey {
				return ErrDuplicate
			}
		}
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&issue.Title, f.Title)
	set(&issue.TitleKey, f.TitleKey)
	set(&issue.Description, f.Description)
	set(&issue.DescriptionHTML, f.DescriptionHTML)
	set(&issue.Category, f.Category)
	set(&issue.Location, f.Location)
	set(&issue.Image, f.Image)
	set(&issue.Priority, f.Priority)
	return nil
}

func (s *MemoryStore) UpdateIssue(ctx context.Context, id uint, fields IssueFields) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok || (issue.Boosted && fields.demotes()) {
		return false, nil
	}
	if err := s.applyFields(issue, fields); err != nil {
		return false, err
	}
	issue.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) TransitionIssue(ctx context.Context, id uint, from, to models.IssueStatus, fields IssueFields, entry models.TimelineEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok || issue.Status != from || (issue.Boosted && fields.demotes()) {
		return false, nil
	}
	if err := s.applyFields(issue, fields); err != nil {
		return false, err
	}
	issue.Status = to
	issue.Timeline = append(issue.Timeline, entry)
	issue.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) AddUpvote(ctx context.Context, id uint, voter string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok || issue.HasVoter(voter) {
		return false, nil
	}
	issue.Upvotes++
	issue.UpvotedBy = append(issue.UpvotedBy, voter)
	issue.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) BoostIssue(ctx context.Context, id uint, paidBy string, entry models.TimelineEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.issues[id]
	if !ok {
		return false, nil
	}
	issue.Priority = models.PriorityHigh
	issue.Boosted = true
	issue.BoostPaidBy = paidBy
	issue.Timeline = append(issue.Timeline, entry)
	issue.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) DeleteIssue(ctx context.Context, id uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.issues[id]; !ok {
		return false, nil
	}
	delete(s.issues, id)
	return true, nil
}

func (s *MemoryStore) InsertPayment(ctx context.Context, rec *models.PaymentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.payments {
		if existing.ExternalTransactionID == rec.ExternalTransactionID {
			return ErrDuplicate
		}
	}
	rec.ID = s.id()
	rec.CreatedAt = s.now()
	stored := *rec
	s.payments = append(s.payments, &stored)
	return nil
}

func (s *MemoryStore) FindPaymentByTransaction(ctx context.Context, txID string) (*models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.payments {
		if rec.ExternalTransactionID == txID {
			c := *rec
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListPayments(ctx context.Context, payerEmail string) ([]models.PaymentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []models.PaymentRecord
	for i := len(s.payments) - 1; i >= 0; i-- {
		rec := s.payments[i]
		if payerEmail == "" || rec.PayerEmail == payerEmail {
			records = append(records, *rec)
		}
	}
	return records, nil
}

func (s *MemoryStore) findUserByEmail(email string) *models.User {
	for _, u := range s.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

func (s *MemoryStore) UpsertUser(ctx context.Context, user *models.User, now time.Time) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing := s.findUserByEmail(user.Email); existing != nil {
		existing.LoggedInAt = &now
		c := *existing
		return &c, nil
	}
	stored := *user
	stored.ID = s.id()
	stored.LoggedInAt = &now
	stored.CreatedAt = now
	stored.UpdatedAt = now
	s.users[stored.ID] = &stored
	c := stored
	return &c, nil
}

func (s *MemoryStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if u := s.findUserByEmail(email); u != nil {
		c := *u
		return &c, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) ListUsers(ctx context.Context) ([]models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		users = append(users, *u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID > users[j].ID })
	return users, nil
}

func (s *MemoryStore) SetBlocked(ctx context.Context, email string, blocked bool, blockedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := s.findUserByEmail(email)
	if u == nil {
		return false, nil
	}
	u.IsBlocked = blocked
	u.BlockedBy = blockedBy
	u.UpdatedAt = s.now()
	return true, nil
}

func (s *MemoryStore) ElevatePremium(ctx context.Context, id uint, subscribedBy string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	u.IsPremium = true
	u.SubscribedBy = subscribedBy
	u.UpdatedAt = s.now()
	return true, nil
}
