package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"civicpulse/internal/models"
	"civicpulse/internal/processor"
	"civicpulse/internal/store"
)

// CheckoutConfig holds the prices and redirect domain used for new sessions.
type CheckoutConfig struct {
	ClientDomain   string
	Currency       string
	BoostPrice     int64
	SubscribePrice int64
}

// CheckoutRequest is what the client sends to start a payment. Name,
// Description and Image only decorate the processor's line item.
type CheckoutRequest struct {
	Type        models.PaymentType
	SubjectID   uint
	Email       string
	Name        string
	Description string
	Image       string
	Location    string
}

type CheckoutService struct {
	processor processor.Processor
	issues    store.IssueStore
	users     store.UserStore
	cfg       CheckoutConfig
	log       logrus.FieldLogger
}

func NewCheckoutService(p processor.Processor, s store.Store, cfg CheckoutConfig, log logrus.FieldLogger) *CheckoutService {
	cfg.ClientDomain = strings.TrimRight(cfg.ClientDomain, "/")
	if cfg.Currency == "" {
		cfg.Currency = "usd"
	}
	return &CheckoutService{
		processor: p,
		issues:    s,
		users:     s,
		cfg:       cfg,
		log:       log.WithField("component", "checkout"),
	}
}

// CreateSession opens a hosted checkout and returns its URL. The subject must
// exist now; whether it still exists at confirmation is not guaranteed.
func (s *CheckoutService) CreateSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Type == "" {
		req.Type = models.PaymentBoost
	}
	kind, ok := req.Type.SubjectKind()
	if !ok {
		return "", validation("unknown payment type %q", req.Type)
	}
	if req.SubjectID == 0 {
		return "", validation("subjectId is required")
	}

	params := processor.CheckoutParams{
		CustomerEmail: strings.TrimSpace(req.Email),
		SuccessURL:    s.cfg.ClientDomain + "/payment/success?session_id={CHECKOUT_SESSION_ID}",
		Metadata: map[string]string{
			processor.MetaSubjectKind: string(kind),
			processor.MetaSubjectID:   strconv.FormatUint(uint64(req.SubjectID), 10),
			processor.MetaPaymentType: string(req.Type),
		},
		LineItem: processor.LineItem{
			Name:        req.Name,
			Description: req.Description,
			Currency:    s.cfg.Currency,
		},
	}
	if req.Image != "" {
		params.LineItem.Images = []string{req.Image}
	}

	switch kind {
	case models.SubjectIssue:
		issue, err := s.issues.GetIssue(ctx, req.SubjectID)
		if err != nil {
			return "", notFound(err, "issue", req.SubjectID)
		}
		if params.LineItem.Name == "" {
			params.LineItem.Name = issue.Title
		}
		if req.Location != "" {
			params.Metadata["location"] = req.Location
		}
		params.LineItem.UnitAmount = s.cfg.BoostPrice
		params.CancelURL = fmt.Sprintf("%s/issues/%d", s.cfg.ClientDomain, req.SubjectID)
	case models.SubjectUser:
		if params.CustomerEmail == "" {
			return "", validation("email is required for a subscription")
		}
		user, err := s.users.GetUserByEmail(ctx, params.CustomerEmail)
		if err != nil {
			return "", notFound(err, "user", params.CustomerEmail)
		}
		if user.ID != req.SubjectID {
			return "", validation("subscription must be paid by the subscribing user")
		}
		if params.LineItem.Name == "" {
			params.LineItem.Name = "Premium subscription"
		}
		params.Metadata["role"] = user.Role
		params.LineItem.UnitAmount = s.cfg.SubscribePrice
		params.CancelURL = s.cfg.ClientDomain + "/dashboard/profile"
	}

	url, err := s.processor.CreateCheckoutSession(ctx, params)
	if err != nil {
		return "", fmt.Errorf("%w: create checkout session: %v", ErrExternalService, err)
	}
	s.log.WithFields(logrus.Fields{
		"payment_type": req.Type,
		"subject_id":   req.SubjectID,
		"email":        params.CustomerEmail,
	}).Info("checkout session created")
	return url, nil
}
