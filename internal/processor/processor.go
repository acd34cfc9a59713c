// Package processor talks to the external payment processor: it creates
// hosted checkout sessions and reads their state back for confirmation.
package processor

import (
	"context"
	"errors"
)

var (
	// ErrSessionNotFound means the processor does not know the session
	// reference, or the reference is malformed.
	ErrSessionNotFound = errors.New("processor: session not found")
	// ErrUnavailable wraps transport and server-side processor failures.
	ErrUnavailable = errors.New("processor: unavailable")
)

// StatusComplete is the session status once the customer has paid.
const StatusComplete = "complete"

// Session metadata keys written at checkout and read back at confirmation.
const (
	MetaSubjectKind = "subjectKind"
	MetaSubjectID   = "subjectId"
	MetaPaymentType = "paymentType"
	// Keys written by earlier checkout versions.
	MetaLegacyID   = "id"
	MetaLegacyType = "type"
)

// Session is the processor's view of one checkout.
type Session struct {
	ID            string
	Status        string
	TransactionID string // payment intent id, unique per charge
	CustomerEmail string
	AmountTotal   int64
	Metadata      map[string]string
}

func (s *Session) Completed() bool {
	return s.Status == StatusComplete
}

// LineItem is the single product sold by a checkout session.
type LineItem struct {
	Name        string
	Description string
	Images      []string
	UnitAmount  int64 // minor units
	Currency    string
}

type CheckoutParams struct {
	LineItem      LineItem
	Metadata      map[string]string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// Processor is the payment processor capability the services depend on.
type Processor interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (string, error)
	RetrieveSession(ctx context.Context, id string) (*Session, error)
}
