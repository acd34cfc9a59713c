package store

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"civicpulse/internal/db"
	"civicpulse/internal/models"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	log, _ := test.NewNullLogger()
	cfg := db.Config(log)
	cfg.SkipDefaultTransaction = true
	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), cfg)
	require.NoError(t, err)
	return NewPostgresStore(conn), mock
}

func TestPostgresAddUpvoteIsOneConditionalUpdate(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE "issues" SET .*"upvoted_by"=array_append\(upvoted_by, .*"upvotes"=upvotes \+ .* WHERE id = .* AND NOT \(.*::text = ANY\(upvoted_by\)\)`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "issues" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.AddUpvote(context.Background(), 1, "a@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AddUpvote(context.Background(), 1, "a@example.com")
	require.NoError(t, err)
	assert.False(t, ok, "a voter already in the set changes no row")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresInsertPayment(t *testing.T) {
	s, mock := newMockStore(t)
	rec := &models.PaymentRecord{
		ExternalTransactionID: "pi_1",
		Subject:               models.Subject{Kind: models.SubjectIssue, ID: 3},
		PayerEmail:            "payer@example.com",
		PaymentType:           models.PaymentBoost,
		Amount:                10000,
	}

	mock.ExpectQuery(`INSERT INTO "payment_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	require.NoError(t, s.InsertPayment(context.Background(), rec))
	assert.Equal(t, uint(7), rec.ID)

	mock.ExpectQuery(`INSERT INTO "payment_records"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})
	dup := *rec
	dup.ID = 0
	assert.ErrorIs(t, s.InsertPayment(context.Background(), &dup), ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresFindPaymentByTransaction(t *testing.T) {
	s, mock := newMockStore(t)
	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT \* FROM "payment_records" WHERE external_transaction_id = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "external_transaction_id", "subject_kind", "subject_id", "payer_email", "payment_type", "amount", "created_at"}).
			AddRow(7, "pi_1", "issue", 3, "payer@example.com", "boost", 10000, created))
	rec, err := s.FindPaymentByTransaction(context.Background(), "pi_1")
	require.NoError(t, err)
	assert.Equal(t, uint(7), rec.ID)
	assert.Equal(t, models.Subject{Kind: models.SubjectIssue, ID: 3}, rec.Subject)
	assert.Equal(t, int64(10000), rec.Amount)

	mock.ExpectQuery(`SELECT \* FROM "payment_records"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.FindPaymentByTransaction(context.Background(), "pi_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresBoostIssue(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.TimelineEntry{Status: models.TimelineBoosted, Message: "Issue boosted by payer@example.com"}

	mock.ExpectExec(`UPDATE "issues" SET .*"boosted"=.*"timeline"=COALESCE\(timeline, '\[\]'::jsonb\) \|\| .*::jsonb.* WHERE id = `).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err := s.BoostIssue(context.Background(), 3, "payer@example.com", entry)
	require.NoError(t, err)
	assert.True(t, ok)

	mock.ExpectExec(`UPDATE "issues" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = s.BoostIssue(context.Background(), 404, "payer@example.com", entry)
	require.NoError(t, err)
	assert.False(t, ok, "a missing issue is reported, not an error")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTransitionIssueGuardsStatus(t *testing.T) {
	s, mock := newMockStore(t)
	entry := models.TimelineEntry{Status: string(models.StatusInReview), UpdatedBy: "staff@example.com"}

	mock.ExpectExec(`UPDATE "issues" SET .*"status"=.*"timeline"=COALESCE.* WHERE id = .* AND status = `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := s.TransitionIssue(context.Background(), 3, models.StatusReported, models.StatusInReview, IssueFields{}, entry)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUpdateIssueDuplicateTitle(t *testing.T) {
	s, mock := newMockStore(t)
	title := "Pothole"

	mock.ExpectExec(`UPDATE "issues" SET .*"title_key"=`).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	_, err := s.UpdateIssue(context.Background(), 3, IssueFields{Title: &title, TitleKey: &title})
	assert.ErrorIs(t, err, ErrDuplicate)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetIssueDecodesColumns(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "issues" WHERE "issues"."id" = `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "status", "priority", "boosted", "upvotes", "upvoted_by", "timeline"}).
			AddRow(3, "Pothole", "in_review", "High", true, 2, "{a@example.com,b@example.com}",
				`[{"status":"boosted","message":"Issue boosted by a@example.com","timestamp":"2024-05-01T12:00:00Z","updatedBy":"a@example.com"}]`))

	issue, err := s.GetIssue(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInReview, issue.Status)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, []string(issue.UpvotedBy))
	assert.Equal(t, issue.Upvotes, len(issue.UpvotedBy))
	require.Len(t, issue.Timeline, 1)
	assert.Equal(t, models.TimelineBoosted, issue.Timeline[0].Status)

	mock.ExpectQuery(`SELECT \* FROM "issues"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.GetIssue(context.Background(), 404)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresListIssues(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "issues" WHERE category = `).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(`SELECT \* FROM "issues" WHERE category = .* ORDER BY upvotes DESC LIMIT .* OFFSET `).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(1, "A").AddRow(2, "B"))

	issues, total, err := s.ListIssues(context.Background(), IssueQuery{Category: "Roads", Sort: SortUpvotes, Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(12), total)
	assert.Len(t, issues, 2)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresDemotionSkipsBoostedIssues(t *testing.T) {
	s, mock := newMockStore(t)
	normal := models.PriorityNormal
	entry := models.TimelineEntry{Status: string(models.StatusInReview), UpdatedBy: "staff@example.com"}

	mock.ExpectExec(`UPDATE "issues" SET .*"priority"=.* WHERE id = .* AND boosted = `).
		WithArgs(models.PriorityNormal, sqlmock.AnyArg(), 3, false).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err := s.UpdateIssue(context.Background(), 3, IssueFields{Priority: &normal})
	require.NoError(t, err)
	assert.False(t, ok, "a boosted issue keeps its High priority")

	mock.ExpectExec(`UPDATE "issues" SET .*"priority"=.* WHERE \(id = .* AND status = .*\) AND boosted = `).
		WillReturnResult(sqlmock.NewResult(0, 0))
	ok, err = s.TransitionIssue(context.Background(), 3, models.StatusReported, models.StatusInReview, IssueFields{Priority: &normal}, entry)
	require.NoError(t, err)
	assert.False(t, ok)

	high := models.PriorityHigh
	mock.ExpectExec(`UPDATE "issues" SET .*"priority"=.* WHERE id = `).
		WithArgs(models.PriorityHigh, sqlmock.AnyArg(), 3).
		WillReturnResult(sqlmock.NewResult(0, 1))
	ok, err = s.UpdateIssue(context.Background(), 3, IssueFields{Priority: &high})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresSearchMatchesLiterally(t *testing.T) {
	s, mock := newMockStore(t)
	pattern := `%50\% off\_sale%`

	mock.ExpectQuery(`SELECT count\(\*\) FROM "issues" WHERE title ILIKE `).
		WithArgs(pattern, pattern, pattern).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT \* FROM "issues" WHERE title ILIKE `).
		WithArgs(pattern, pattern, pattern).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	issues, total, err := s.ListIssues(context.Background(), IssueQuery{Search: "50% off_sale"})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, issues)

	assert.Equal(t, `a\\b`, escapeLike(`a\b`))
	assert.NoError(t, mock.ExpectationsWereMet())
}
