package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"civicpulse/internal/db"
	"civicpulse/internal/models"
)

const uniqueViolation = "23505"

// PostgresStore implements Store on top of gorm.
type PostgresStore struct {
	db *gorm.DB
}

func NewPostgresStore(conn *gorm.DB) *PostgresStore {
	return &PostgresStore{db: conn}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return db.Close(s.db)
}

func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// appendEntry builds the jsonb concatenation used to push one timeline entry.
func appendEntry(entry models.TimelineEntry) (clause.Expr, error) {
	b, err := json.Marshal([]models.TimelineEntry{entry})
	if err != nil {
		return clause.Expr{}, fmt.Errorf("encode timeline entry: %w", err)
	}
	return gorm.Expr("COALESCE(timeline, '[]'::jsonb) || ?::jsonb", string(b)), nil
}

func (s *PostgresStore) CreateIssue(ctx context.Context, issue *models.Issue) error {
	if issue.UpvotedBy == nil {
		issue.UpvotedBy = pq.StringArray{}
	}
	if issue.Timeline == nil {
		issue.Timeline = datatypes.JSONSlice[models.TimelineEntry]{}
	}
	if err := s.db.WithContext(ctx).Create(issue).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) GetIssue(ctx context.Context, id uint) (*models.Issue, error) {
	var issue models.Issue
	if err := s.db.WithContext(ctx).First(&issue, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &issue, nil
}

func (s *PostgresStore) FindIssueByTitleKey(ctx context.Context, key string) (*models.Issue, error) {
	var issue models.Issue
	if err := s.db.WithContext(ctx).Where("title_key = ?", key).First(&issue).Error; err != nil {
		return nil, notFound(err)
	}
	return &issue, nil
}

func (s *PostgresStore) ListIssues(ctx context.Context, q IssueQuery) ([]models.Issue, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.Issue{})

	if q.Search != "" {
		like := "%" + escapeLike(q.Search) + "%"
		query = query.Where("title ILIKE ? OR category ILIKE ? OR location ILIKE ?", like, like, like)
	}
	if q.Category != "" {
		query = query.Where("category = ?", q.Category)
	}
	if q.Status != "" {
		query = query.Where("status = ?", q.Status)
	}
	if q.Priority != "" {
		query = query.Where("priority = ?", q.Priority)
	}
	if q.BoostedOnly {
		query = query.Where("boosted = ?", true)
	}
	base := query.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = base
	switch q.Sort {
	case SortUpvotes:
		query = query.Order("upvotes DESC")
	case SortBoosted:
		query = query.Order("boosted DESC").Order("created_at DESC")
	default:
		query = query.Order("created_at DESC")
	}
	if q.Limit > 0 {
		query = query.Offset(q.Offset()).Limit(q.Limit)
	}

	var issues []models.Issue
	if err := query.Find(&issues).Error; err != nil {
		return nil, 0, err
	}
	return issues, total, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// escapeLike 让搜索词按字面匹配，与内存实现一致
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (s *PostgresStore) ListIssuesByReporter(ctx context.Context, email string) ([]models.Issue, error) {
	var issues []models.Issue
	err := s.db.WithContext(ctx).Where("reporter_email = ?", email).Order("created_at DESC").Find(&issues).Error
	return issues, err
}

func (s *PostgresStore) Categories(ctx context.Context) ([]string, error) {
	var categories []string
	err := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("category <> ''").
		Distinct().
		Order("category").
		Pluck("category", &categories).Error
	return categories, err
}

func (s *PostgresStore) UpdateIssue(ctx context.Context, id uint, fields IssueFields) (bool, error) {
	cols := fields.columns()
	if len(cols) == 0 {
		_, err := s.GetIssue(ctx, id)
		return err == nil, ignoreNotFound(err)
	}
	query := s.db.WithContext(ctx).Model(&models.Issue{}).Where("id = ?", id)
	if fields.demotes() {
		query = query.Where("boosted = ?", false)
	}
	res := query.Updates(cols)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, ErrDuplicate
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PostgresStore) TransitionIssue(ctx context.Context, id uint, from, to models.IssueStatus, fields IssueFields, entry models.TimelineEntry) (bool, error) {
	push, err := appendEntry(entry)
	if err != nil {
		return false, err
	}
	cols := fields.columns()
	cols["status"] = string(to)
	cols["timeline"] = push

	query := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ? AND status = ?", id, string(from))
	if fields.demotes() {
		// 与 BoostIssue 并发时由条件保证加急问题保持 High
		query = query.Where("boosted = ?", false)
	}
	res := query.Updates(cols)
	if res.Error != nil {
		if isDuplicate(res.Error) {
			return false, ErrDuplicate
		}
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PostgresStore) AddUpvote(ctx context.Context, id uint, voter string) (bool, error) {
	// 条件与更新必须在同一条语句里，否则并发的首次点赞会重复计数
	res := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ? AND NOT (?::text = ANY(upvoted_by))", id, voter).
		Updates(map[string]interface{}{
			"upvotes":    gorm.Expr("upvotes + ?", 1),
			"upvoted_by": gorm.Expr("array_append(upvoted_by, ?::text)", voter),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PostgresStore) BoostIssue(ctx context.Context, id uint, paidBy string, entry models.TimelineEntry) (bool, error) {
	push, err := appendEntry(entry)
	if err != nil {
		return false, err
	}
	res := s.db.WithContext(ctx).Model(&models.Issue{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"priority":      models.PriorityHigh,
			"boosted":       true,
			"boost_paid_by": paidBy,
			"timeline":      push,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PostgresStore) DeleteIssue(ctx context.Context, id uint) (bool, error) {
	res := s.db.WithContext(ctx).Delete(&models.Issue{}, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (s *PostgresStore) InsertPayment(ctx context.Context, rec *models.PaymentRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *PostgresStore) FindPaymentByTransaction(ctx context.Context, txID string) (*models.PaymentRecord, error) {
	var rec models.PaymentRecord
	if err := s.db.WithContext(ctx).Where("external_transaction_id = ?", txID).First(&rec).Error; err != nil {
		return nil, notFound(err)
	}
	return &rec, nil
}

func (s *PostgresStore) ListPayments(ctx context.Context, payerEmail string) ([]models.PaymentRecord, error) {
	query := s.db.WithContext(ctx).Order("created_at DESC")
	if payerEmail != "" {
		query = query.Where("payer_email = ?", payerEmail)
	}
	var records []models.PaymentRecord
	err := query.Find(&records).Error
	return records, err
}

func (s *PostgresStore) UpsertUser(ctx context.Context, user *models.User, now time.Time) (*models.User, error) {
	user.LoggedInAt = &now
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.Assignments(map[string]interface{}{"logged_in_at": now}),
	}).Create(user).Error
	if err != nil {
		return nil, err
	}
	return s.GetUserByEmail(ctx, user.Email)
}

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error
	return users, err
}

func (s *PostgresStore) SetBlocked(ctx context.Context, email string, blocked bool, blockedBy string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("email = ?", email).
		Updates(map[string]interface{}{
			"is_blocked": blocked,
			"blocked_by": blockedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (s *PostgresStore) ElevatePremium(ctx context.Context, id uint, subscribedBy string) (bool, error) {
	res := s.db.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_premium":    true,
			"subscribed_by": subscribedBy,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func ignoreNotFound(err error) error {
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return err
}

// TotalPages returns how many pages of size limit are needed for total rows.
func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(limit)))
}
