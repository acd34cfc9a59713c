package models

import (
	"time"
)

type PaymentType string

const (
	PaymentBoost     PaymentType = "boost"
	PaymentSubscribe PaymentType = "subscribe"
)

type SubjectKind string

const (
	SubjectIssue SubjectKind = "issue"
	SubjectUser  SubjectKind = "user"
)

// Subject is the entity a payment's side effect applies to. It is a weak
// reference: the target may have been deleted, or never existed.
type Subject struct {
	Kind SubjectKind `gorm:"column:subject_kind;size:10;not null" json:"kind"`
	ID   uint        `gorm:"column:subject_id;not null;index" json:"id"`
}

// SubjectKind returns the kind of entity a payment type credits.
func (t PaymentType) SubjectKind() (SubjectKind, bool) {
	switch t {
	case PaymentBoost:
		return SubjectIssue, true
	case PaymentSubscribe:
		return SubjectUser, true
	}
	return "", false
}

// PaymentRecord is an immutable ledger row. At most one exists per
// ExternalTransactionID.
type PaymentRecord struct {
	ID                    uint        `gorm:"primaryKey" json:"id"`
	ExternalTransactionID string      `gorm:"uniqueIndex;size:255;not null" json:"transactionId"`
	SessionID             string      `gorm:"size:255;index" json:"sessionId"`
	Subject               Subject     `gorm:"embedded" json:"subject"`
	SubjectRef            string      `gorm:"size:500" json:"subjectRef,omitempty"` // 会话元数据里的原始 id，无法解析时 Subject.ID 为 0
	PayerEmail            string      `gorm:"index;not null" json:"paidBy"`
	PaymentType           PaymentType `gorm:"size:20;not null" json:"paymentType"`
	Amount                int64       `gorm:"not null" json:"amount"` // 最小货币单位（分）
	CreatedAt             time.Time   `json:"createdAt"`
}
