package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"civicpulse/internal/metrics"
	"civicpulse/internal/store"
)

// UpvoteService records at most one upvote per voter per issue.
type UpvoteService struct {
	issues store.IssueStore
	log    logrus.FieldLogger
}

func NewUpvoteService(issues store.IssueStore, log logrus.FieldLogger) *UpvoteService {
	return &UpvoteService{issues: issues, log: log.WithField("component", "upvotes")}
}

// Upvote reports whether this call counted the vote. A repeat vote is not an
// error.
func (s *UpvoteService) Upvote(ctx context.Context, id uint, voter string) (bool, error) {
	voter = strings.TrimSpace(voter)
	if voter == "" {
		return false, validation("voter email is required")
	}

	issue, err := s.issues.GetIssue(ctx, id)
	if err != nil {
		return false, notFound(err, "issue", id)
	}
	if issue.HasVoter(voter) {
		metrics.RecordUpvote(false)
		return false, nil
	}

	// 检查只是快速路径，真正的去重在 AddUpvote 的条件更新里
	applied, err := s.issues.AddUpvote(ctx, id, voter)
	if err != nil {
		return false, fmt.Errorf("add upvote: %w", err)
	}
	if !applied {
		if _, err := s.issues.GetIssue(ctx, id); err != nil {
			return false, notFound(err, "issue", id)
		}
	}
	metrics.RecordUpvote(applied)
	s.log.WithFields(logrus.Fields{"issue_id": id, "voter": voter, "applied": applied}).Debug("upvote")
	return applied, nil
}
