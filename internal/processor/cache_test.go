package processor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/utils"
)

type countingProcessor struct {
	sessions map[string]Session
	calls    int
}

func (p *countingProcessor) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error) {
	return "https://checkout.example/c/pay/cs_test", nil
}

func (p *countingProcessor) RetrieveSession(ctx context.Context, id string) (*Session, error) {
	p.calls++
	s, ok := p.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func TestCachingProcessorKeepsOnlyCompletedSessions(t *testing.T) {
	next := &countingProcessor{sessions: map[string]Session{
		"cs_paid": {ID: "cs_paid", Status: StatusComplete, TransactionID: "pi_1"},
		"cs_open": {ID: "cs_open", Status: "open"},
	}}
	cache, err := utils.NewCache[Session](16, time.Minute)
	require.NoError(t, err)
	p := NewCachingProcessor(next, cache)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		s, err := p.RetrieveSession(ctx, "cs_paid")
		require.NoError(t, err)
		assert.Equal(t, "pi_1", s.TransactionID)
	}
	assert.Equal(t, 1, next.calls)

	for i := 0; i < 2; i++ {
		s, err := p.RetrieveSession(ctx, "cs_open")
		require.NoError(t, err)
		assert.False(t, s.Completed())
	}
	assert.Equal(t, 3, next.calls, "open sessions are always fetched")

	_, err = p.RetrieveSession(ctx, "cs_missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 1, cache.Len())
}

func TestCachingProcessorDelegatesCheckout(t *testing.T) {
	cache, err := utils.NewCache[Session](1, time.Minute)
	require.NoError(t, err)
	p := NewCachingProcessor(&countingProcessor{}, cache)

	url, err := p.CreateCheckoutSession(context.Background(), CheckoutParams{})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.example/c/pay/cs_test", url)
}
