package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/models"
	"civicpulse/internal/processor"
	"civicpulse/internal/store"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// fakeProcessor serves sessions from a map and records checkout requests.
type fakeProcessor struct {
	mu        sync.Mutex
	sessions  map[string]*processor.Session
	retrieved int
	created   []processor.CheckoutParams
	err       error
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{sessions: make(map[string]*processor.Session)}
}

func (f *fakeProcessor) add(s *processor.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[s.ID] = s
}

func (f *fakeProcessor) CreateCheckoutSession(ctx context.Context, params processor.CheckoutParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.created = append(f.created, params)
	return "https://checkout.example/c/pay/cs_test", nil
}

func (f *fakeProcessor) RetrieveSession(ctx context.Context, id string) (*processor.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved++
	if f.err != nil {
		return nil, f.err
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, processor.ErrSessionNotFound
	}
	c := *s
	return &c, nil
}

func newLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

func seedIssue(t *testing.T, s store.IssueStore, title string) *models.Issue {
	t.Helper()
	issue := &models.Issue{
		Title:    title,
		TitleKey: title,
		Status:   models.StatusReported,
		Priority: models.PriorityNormal,
	}
	require.NoError(t, s.CreateIssue(context.Background(), issue))
	return issue
}

func seedUser(t *testing.T, s store.UserStore, email string) *models.User {
	t.Helper()
	u, err := s.UpsertUser(context.Background(), &models.User{Email: email, Role: models.RoleCitizen}, fixedNow)
	require.NoError(t, err)
	return u
}

var errBoom = errors.New("boom")
