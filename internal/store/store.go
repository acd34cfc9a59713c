// Package store holds the persistence contracts for issues, the payment
// ledger and user roles, with a Postgres implementation and an in-memory one.
//
// Every method that protects an invariant (upvote membership, ledger
// uniqueness, status transitions) is a single conditional write. Callers must
// never emulate one with a read followed by a separate write.
package store

import (
	"context"
	"errors"
	"time"

	"civicpulse/internal/models"
)

var (
	ErrNotFound  = errors.New("store: record not found")
	ErrDuplicate = errors.New("store: duplicate key")
)

// Issue list sort orders.
const (
	SortRecent  = "recent"
	SortUpvotes = "upvotes"
	SortBoosted = "boosted"
)

// IssueQuery filters and paginates issue listings. Page is 1-based.
type IssueQuery struct {
	Search      string
	Category    string
	Status      string
	Priority    string
	BoostedOnly bool
	Sort        string
	Page        int
	Limit       int
}

// Offset returns the number of rows skipped for the requested page.
func (q IssueQuery) Offset() int {
	if q.Page < 1 {
		return 0
	}
	return (q.Page - 1) * q.Limit
}

// IssueFields is a partial update; nil fields are left untouched.
type IssueFields struct {
	Title           *string
	TitleKey        *string
	Description     *string
	DescriptionHTML *string
	Category        *string
	Location        *string
	Image           *string
	Priority        *string
}

// Empty reports whether the update sets nothing.
func (f IssueFields) Empty() bool {
	return f.Title == nil && f.TitleKey == nil && f.Description == nil && f.DescriptionHTML == nil &&
		f.Category == nil && f.Location == nil && f.Image == nil && f.Priority == nil
}

// demotes reports whether the update sets a priority other than High, which
// a boosted issue must never take.
func (f IssueFields) demotes() bool {
	return f.Priority != nil && *f.Priority != models.PriorityHigh
}

func (f IssueFields) columns() map[string]interface{} {
	cols := map[string]interface{}{}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("title", f.Title)
	set("title_key", f.TitleKey)
	set("description", f.Description)
	set("description_html", f.DescriptionHTML)
	set("category", f.Category)
	set("location", f.Location)
	set("image", f.Image)
	set("priority", f.Priority)
	return cols
}

type IssueStore interface {
	// CreateIssue inserts a new issue. ErrDuplicate when the title key is taken.
	CreateIssue(ctx context.Context, issue *models.Issue) error
	GetIssue(ctx context.Context, id uint) (*models.Issue, error)
	FindIssueByTitleKey(ctx context.Context, key string) (*models.Issue, error)
	ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, int64, error)
	ListIssuesByReporter(ctx context.Context, email string) ([]models.Issue, error)
	Categories(ctx context.Context) ([]string, error)
	// UpdateIssue applies a field update without touching status or timeline.
	// An update lowering the priority only matches a non-boosted issue, so it
	// reports false when the issue is missing or boosted.
	UpdateIssue(ctx context.Context, id uint, fields IssueFields) (bool, error)
	// TransitionIssue moves the issue from `from` to `to`, applies fields and
	// appends entry in one write. It reports false when the issue is missing,
	// its status is no longer `from`, or fields lower the priority of a boosted
	// issue.
	TransitionIssue(ctx context.Context, id uint, from, to models.IssueStatus, fields IssueFields, entry models.TimelineEntry) (bool, error)
	// AddUpvote increments upvotes and appends voter in one write, guarded by
	// "voter not yet in upvoted_by". It reports whether a row was changed.
	AddUpvote(ctx context.Context, id uint, voter string) (bool, error)
	// BoostIssue sets priority High, boosted and boostPaidBy and appends entry
	// in one write. It reports false when the issue does not exist.
	BoostIssue(ctx context.Context, id uint, paidBy string, entry models.TimelineEntry) (bool, error)
	DeleteIssue(ctx context.Context, id uint) (bool, error)
}

// PaymentLedger is append-only: records are never updated or deleted.
type PaymentLedger interface {
	// InsertPayment returns ErrDuplicate when the external transaction id is
	// already recorded.
	InsertPayment(ctx context.Context, rec *models.PaymentRecord) error
	FindPaymentByTransaction(ctx context.Context, txID string) (*models.PaymentRecord, error)
	// ListPayments returns the ledger newest first, restricted to one payer
	// when payerEmail is not empty.
	ListPayments(ctx context.Context, payerEmail string) ([]models.PaymentRecord, error)
}

type UserStore interface {
	// UpsertUser inserts user, or only touches logged_in_at when the email
	// already exists. The stored row is returned.
	UpsertUser(ctx context.Context, user *models.User, now time.Time) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SetBlocked(ctx context.Context, email string, blocked bool, blockedBy string) (bool, error)
	// ElevatePremium reports false when the user does not exist.
	ElevatePremium(ctx context.Context, id uint, subscribedBy string) (bool, error)
}

// Store is the storage handle passed to services. It is created explicitly
// and released with Close.
type Store interface {
	IssueStore
	PaymentLedger
	UserStore
	Ping(ctx context.Context) error
	Close() error
}
