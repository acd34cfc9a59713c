package services

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse/internal/models"
	"civicpulse/internal/processor"
	"civicpulse/internal/store"
)

var testCheckout = CheckoutConfig{
	ClientDomain:   "https://app.example/",
	Currency:       "usd",
	BoostPrice:     10000,
	SubscribePrice: 100000,
}

func newCheckout(t *testing.T) (*CheckoutService, *store.MemoryStore, *fakeProcessor) {
	t.Helper()
	log, _ := newLogger()
	mem := store.NewMemoryStore()
	proc := newFakeProcessor()
	return NewCheckoutService(proc, mem, testCheckout, log), mem, proc
}

func TestCreateBoostSession(t *testing.T) {
	s, mem, proc := newCheckout(t)
	issue := seedIssue(t, mem, "Broken bench")

	url, err := s.CreateSession(context.Background(), CheckoutRequest{
		SubjectID: issue.ID,
		Email:     "payer@example.com",
		Image:     "https://img.example/bench.jpg",
		Location:  "Central Park",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	require.Len(t, proc.created, 1)
	p := proc.created[0]
	assert.Equal(t, "Broken bench", p.LineItem.Name)
	assert.Equal(t, int64(10000), p.LineItem.UnitAmount)
	assert.Equal(t, "usd", p.LineItem.Currency)
	assert.Equal(t, []string{"https://img.example/bench.jpg"}, p.LineItem.Images)
	assert.Equal(t, "payer@example.com", p.CustomerEmail)
	assert.Equal(t, "https://app.example/payment/success?session_id={CHECKOUT_SESSION_ID}", p.SuccessURL)
	assert.Equal(t, "https://app.example/issues/"+strconv.FormatUint(uint64(issue.ID), 10), p.CancelURL)
	assert.Equal(t, string(models.SubjectIssue), p.Metadata[processor.MetaSubjectKind])
	assert.Equal(t, strconv.FormatUint(uint64(issue.ID), 10), p.Metadata[processor.MetaSubjectID])
	assert.Equal(t, string(models.PaymentBoost), p.Metadata[processor.MetaPaymentType])
	assert.Equal(t, "Central Park", p.Metadata["location"])

	// the metadata written here must decode back to the same target
	decoded := decodeTarget(p.Metadata)
	ptype, subject, err := decoded.ptype, decoded.subject, decoded.err
	require.NoError(t, err)
	assert.Equal(t, models.PaymentBoost, ptype)
	assert.Equal(t, models.Subject{Kind: models.SubjectIssue, ID: issue.ID}, subject)
}

func TestCreateSubscribeSession(t *testing.T) {
	s, mem, proc := newCheckout(t)
	user := seedUser(t, mem, "citizen@example.com")

	_, err := s.CreateSession(context.Background(), CheckoutRequest{
		Type:      models.PaymentSubscribe,
		SubjectID: user.ID,
		Email:     "citizen@example.com",
	})
	require.NoError(t, err)

	require.Len(t, proc.created, 1)
	p := proc.created[0]
	assert.Equal(t, "Premium subscription", p.LineItem.Name)
	assert.Equal(t, int64(100000), p.LineItem.UnitAmount)
	assert.Equal(t, "https://app.example/dashboard/profile", p.CancelURL)
	assert.Equal(t, string(models.SubjectUser), p.Metadata[processor.MetaSubjectKind])
	assert.Equal(t, models.RoleCitizen, p.Metadata["role"])
}

func TestCreateSessionErrors(t *testing.T) {
	ctx := context.Background()
	s, mem, proc := newCheckout(t)
	user := seedUser(t, mem, "citizen@example.com")
	seedUser(t, mem, "other@example.com")

	_, err := s.CreateSession(ctx, CheckoutRequest{Type: "donation", SubjectID: 1})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.CreateSession(ctx, CheckoutRequest{})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.CreateSession(ctx, CheckoutRequest{SubjectID: 404})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.CreateSession(ctx, CheckoutRequest{Type: models.PaymentSubscribe, SubjectID: user.ID})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = s.CreateSession(ctx, CheckoutRequest{Type: models.PaymentSubscribe, SubjectID: user.ID, Email: "other@example.com"})
	assert.ErrorIs(t, err, ErrValidation)

	issue := seedIssue(t, mem, "Noise complaint")
	proc.err = errBoom
	_, err = s.CreateSession(ctx, CheckoutRequest{SubjectID: issue.ID})
	assert.ErrorIs(t, err, ErrExternalService)

	assert.Empty(t, proc.created)
}
