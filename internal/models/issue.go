package models

import (
	"time"

	"github.com/lib/pq"
	"gorm.io/datatypes"
)

type IssueStatus string

const (
	StatusReported IssueStatus = "reported"
	StatusInReview IssueStatus = "in_review"
	StatusResolved IssueStatus = "resolved"
	StatusRejected IssueStatus = "rejected"
)

// TimelineBoosted marks a boost entry in the timeline. It is not an IssueStatus.
const TimelineBoosted = "boosted"

const (
	PriorityNormal = "Normal"
	PriorityHigh   = "High"
)

// Valid reports whether s is one of the known lifecycle states.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusReported, StatusInReview, StatusResolved, StatusRejected:
		return true
	}
	return false
}

// Terminal states accept no further status changes.
func (s IssueStatus) Terminal() bool {
	return s == StatusResolved || s == StatusRejected
}

// CanTransition reports whether moving from s to next is a legal lifecycle step.
func (s IssueStatus) CanTransition(next IssueStatus) bool {
	switch s {
	case StatusReported:
		return next == StatusInReview
	case StatusInReview:
		return next == StatusResolved || next == StatusRejected
	}
	return false
}

type TimelineEntry struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	UpdatedBy string    `json:"updatedBy"`
}

type Issue struct {
	ID              uint                               `gorm:"primaryKey" json:"id"`
	Title           string                             `gorm:"not null" json:"title"`
	TitleKey        string                             `gorm:"uniqueIndex;not null" json:"-"` // 由标题策略生成的去重键
	Description     string                             `gorm:"type:text" json:"description"`
	DescriptionHTML string                             `gorm:"type:text" json:"descriptionHtml"`
	Category        string                             `gorm:"size:50;index" json:"category"`
	Location        string                             `json:"location"`
	Image           string                             `json:"image"`
	ReporterEmail   string                             `gorm:"index" json:"userEmail"`
	Status          IssueStatus                        `gorm:"size:20;not null;index" json:"status"`
	Priority        string                             `gorm:"size:20;not null" json:"priority"`
	Boosted         bool                               `gorm:"not null;index" json:"boosted"`
	BoostPaidBy     string                             `json:"boostPaidBy"`
	Upvotes         int                                `gorm:"not null" json:"upvotes"`
	UpvotedBy       pq.StringArray                     `gorm:"type:text[];not null" json:"upvotedBy"`
	Timeline        datatypes.JSONSlice[TimelineEntry] `gorm:"not null" json:"timeline"`
	CreatedAt       time.Time                          `json:"createdAt"`
	UpdatedAt       time.Time                          `json:"updatedAt"`
}

// HasVoter reports whether voter already upvoted the issue.
func (i *Issue) HasVoter(voter string) bool {
	for _, v := range i.UpvotedBy {
		if v == voter {
			return true
		}
	}
	return false
}
