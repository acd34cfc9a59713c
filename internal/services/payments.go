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
	"civicpulse/internal/processor"
	"civicpulse/internal/store"
	"civicpulse/internal/utils"
)

// ConfirmResult is the outcome of a confirmation. Record is nil while the
// session is unpaid. Applied is true only for the call that wrote the ledger
// entry and attempted the side effect.
type ConfirmResult struct {
	Record  *models.PaymentRecord
	Applied bool
}

// Coordinator reconciles checkout sessions with the payment ledger and applies
// the paid-for side effect once per transaction.
type Coordinator struct {
	processor processor.Processor
	ledger    store.PaymentLedger
	issues    store.IssueStore
	users     store.UserStore
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewCoordinator(p processor.Processor, s store.Store, log logrus.FieldLogger) *Coordinator {
	return &Coordinator{
		processor: p,
		ledger:    s,
		issues:    s,
		users:     s,
		log:       log.WithField("component", "payments"),
		now:       time.Now,
	}
}

// Confirm verifies sessionRef with the processor and records the payment.
// It is safe to call any number of times for the same session.
func (c *Coordinator) Confirm(ctx context.Context, sessionRef string) (*ConfirmResult, error) {
	sessionRef = strings.TrimSpace(sessionRef)
	if sessionRef == "" {
		metrics.RecordConfirmation(metrics.OutcomeInvalid)
		return nil, fmt.Errorf("%w: empty session reference", ErrInvalidSession)
	}

	sess, err := c.processor.RetrieveSession(ctx, sessionRef)
	if err != nil {
		if errors.Is(err, processor.ErrSessionNotFound) {
			metrics.RecordConfirmation(metrics.OutcomeInvalid)
			return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
		}
		metrics.RecordConfirmation(metrics.OutcomeError)
		return nil, fmt.Errorf("%w: retrieve session: %v", ErrExternalService, err)
	}

	if !sess.Completed() {
		metrics.RecordConfirmation(metrics.OutcomePending)
		return &ConfirmResult{}, nil
	}

	rec, err := c.newRecord(sess)
	if err != nil {
		metrics.RecordConfirmation(metrics.OutcomeInvalid)
		return nil, err
	}

	// Fast path for retries. The unique index below is what actually
	// serialises concurrent confirmations.
	existing, err := c.ledger.FindPaymentByTransaction(ctx, rec.ExternalTransactionID)
	switch {
	case err == nil:
		metrics.RecordConfirmation(metrics.OutcomeDuplicate)
		return &ConfirmResult{Record: existing}, nil
	case !errors.Is(err, store.ErrNotFound):
		metrics.RecordConfirmation(metrics.OutcomeError)
		return nil, fmt.Errorf("look up ledger: %w", err)
	}

	if err := c.ledger.InsertPayment(ctx, rec); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			metrics.RecordConfirmation(metrics.OutcomeError)
			return nil, fmt.Errorf("record payment: %w", err)
		}
		existing, err := c.ledger.FindPaymentByTransaction(ctx, rec.ExternalTransactionID)
		if err != nil {
			metrics.RecordConfirmation(metrics.OutcomeError)
			return nil, fmt.Errorf("re-read ledger after duplicate insert: %w", err)
		}
		metrics.RecordConfirmation(metrics.OutcomeRace)
		return &ConfirmResult{Record: existing}, nil
	}

	// The ledger row is committed; a client disconnect must not skip the benefit.
	c.apply(context.WithoutCancel(ctx), rec)
	metrics.RecordConfirmation(metrics.OutcomeApplied)
	return &ConfirmResult{Record: rec, Applied: true}, nil
}

// newRecord builds the ledger row for a completed session. Only a missing
// payment intent is fatal: the charge has no key to be recorded under. Metadata
// that does not decode still produces a row, with a zero Subject.ID, so the
// payment is kept and the gap is reported by apply.
func (c *Coordinator) newRecord(sess *processor.Session) (*models.PaymentRecord, error) {
	if sess.TransactionID == "" {
		return nil, fmt.Errorf("%w: completed session %s has no payment intent", ErrInvalidSession, sess.ID)
	}
	t := decodeTarget(sess.Metadata)
	if t.err != nil {
		c.log.WithFields(logrus.Fields{
			"session_id":     sess.ID,
			"transaction_id": sess.TransactionID,
			"subject_ref":    t.ref,
		}).WithError(t.err).Debug("paid session carries undecodable metadata")
	}
	return &models.PaymentRecord{
		ExternalTransactionID: sess.TransactionID,
		SessionID:             sess.ID,
		Subject:               t.subject,
		SubjectRef:            t.ref,
		PayerEmail:            sess.CustomerEmail,
		PaymentType:           t.ptype,
		Amount:                sess.AmountTotal,
	}, nil
}

type target struct {
	ptype   models.PaymentType
	subject models.Subject
	ref     string
	err     error
}

// decodeTarget reads the payment type and subject from session metadata.
// Sessions created before subjectKind/subjectId existed carry "id" and an
// optional "type", where a missing type means boost. Whatever cannot be
// decoded is left zero and described by err.
func decodeTarget(meta map[string]string) target {
	var t target
	raw := meta[processor.MetaPaymentType]
	if raw == "" {
		raw = meta[processor.MetaLegacyType]
	}
	t.ptype = models.PaymentType(raw)
	if t.ptype == "" {
		t.ptype = models.PaymentBoost
	}
	t.ref = meta[processor.MetaSubjectID]
	if t.ref == "" {
		t.ref = meta[processor.MetaLegacyID]
	}

	kind, ok := t.ptype.SubjectKind()
	if !ok {
		t.err = fmt.Errorf("unknown payment type %q", raw)
		return t
	}
	t.subject.Kind = kind
	if k := meta[processor.MetaSubjectKind]; k != "" && models.SubjectKind(k) != kind {
		t.err = fmt.Errorf("payment type %s cannot credit a %s", t.ptype, k)
		return t
	}
	id, ok := utils.ParseID(t.ref)
	if !ok {
		t.err = fmt.Errorf("malformed subject id %q", t.ref)
		return t
	}
	t.subject.ID = id
	return t
}

// apply performs the side effect for a freshly recorded payment. Failures are
// logged as reconciliation gaps; the ledger entry is never rolled back.
func (c *Coordinator) apply(ctx context.Context, rec *models.PaymentRecord) {
	var (
		applied bool
		err     error
	)
	switch {
	case rec.Subject.ID == 0:
		err = fmt.Errorf("subject reference %q could not be decoded", rec.SubjectRef)
	case rec.Subject.Kind == models.SubjectIssue:
		applied, err = c.issues.BoostIssue(ctx, rec.Subject.ID, rec.PayerEmail, models.TimelineEntry{
			Status:    models.TimelineBoosted,
			Message:   fmt.Sprintf("Issue boosted by %s", rec.PayerEmail),
			Timestamp: c.now().UTC(),
			UpdatedBy: rec.PayerEmail,
		})
	case rec.Subject.Kind == models.SubjectUser:
		applied, err = c.users.ElevatePremium(ctx, rec.Subject.ID, rec.PayerEmail)
	default:
		err = fmt.Errorf("unknown subject kind %q", rec.Subject.Kind)
	}

	fields := logrus.Fields{
		"transaction_id": rec.ExternalTransactionID,
		"payment_type":   rec.PaymentType,
		"subject_kind":   rec.Subject.Kind,
		"subject_id":     rec.Subject.ID,
		"subject_ref":    rec.SubjectRef,
		"payer":          rec.PayerEmail,
	}
	if err == nil && applied {
		c.log.WithFields(fields).Info("payment applied")
		return
	}

	entry := c.log.WithFields(fields)
	if err != nil {
		entry = entry.WithError(err)
	} else {
		entry = entry.WithField("reason", "subject not found")
	}
	entry.Warn("reconciliation gap: payment recorded but side effect not applied")
	metrics.RecordReconciliationGap(string(rec.PaymentType))
}

// History lists recorded payments newest first, for one payer when email is
// set and for the whole ledger otherwise.
func (c *Coordinator) History(ctx context.Context, email string) ([]models.PaymentRecord, error) {
	records, err := c.ledger.ListPayments(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	if records == nil {
		records = []models.PaymentRecord{}
	}
	return records, nil
}
