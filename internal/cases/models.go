package cases

import (
	"fmt"
	"time"

	"chainscreen/internal/canonical"
	"chainscreen/pkg/domain"
)

// Status is a case's position in the review lifecycle.
type Status string

const (
	StatusNew           Status = "new"
	StatusUnderReview   Status = "under_review"
	StatusEnhancedDD    Status = "enhanced_dd"
	StatusFalsePositive Status = "false_positive"
	StatusConfirmed     Status = "confirmed"
	StatusReported      Status = "reported"
	StatusClosed        Status = "closed"
)

// ParseStatus maps a wire status onto the closed set.
func ParseStatus(s string) (Status, bool) {
	switch Status(s) {
	case StatusNew, StatusUnderReview, StatusEnhancedDD, StatusFalsePositive,
		StatusConfirmed, StatusReported, StatusClosed:
		return Status(s), true
	}
	return "", false
}

// transitions is the only legal movement through the lifecycle. Anything not
// listed is rejected.
var transitions = map[Status][]Status{
	StatusNew:           {StatusUnderReview},
	StatusUnderReview:   {StatusEnhancedDD, StatusFalsePositive, StatusConfirmed},
	StatusEnhancedDD:    {StatusFalsePositive, StatusConfirmed},
	StatusConfirmed:     {StatusReported},
	StatusReported:      {StatusClosed},
	StatusFalsePositive: {StatusClosed},
	StatusClosed:        {},
}

// CanTransition reports whether from → to is a legal move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IllegalTransitionError rejects a transition and leaves the case unchanged.
type IllegalTransitionError struct {
	CaseID domain.CaseID
	From   Status
	To     Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("case %s: illegal transition %s -> %s", e.CaseID, e.From, e.To)
}

// Priority orders review queues. Derived from the triggering risk score.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// PriorityForRisk maps a risk score to a review priority.
func PriorityForRisk(score int) Priority {
	switch {
	case score >= 95:
		return PriorityCritical
	case score >= 80:
		return PriorityHigh
	case score >= 50:
		return PriorityMedium
	default:
		return PriorityLow
	}
}

// slaWindows is how long each priority has until first-response breach.
// Breaches are observed and reported, never auto-escalated.
var slaWindows = map[Priority]time.Duration{
	PriorityCritical: 4 * time.Hour,
	PriorityHigh:     24 * time.Hour,
	PriorityMedium:   3 * 24 * time.Hour,
	PriorityLow:      7 * 24 * time.Hour,
}

// SLAWindow returns the first-response window for a priority.
func SLAWindow(priority Priority) time.Duration {
	return slaWindows[priority]
}

// Case is one compliance review of a screened address.
type Case struct {
	ID          domain.CaseID
	Address     canonical.Address
	EntityUID   string
	EntityName  string
	Program     string
	Status      Status
	Priority    Priority
	RiskScore   int
	OpenedAt    time.Time
	SLADeadline time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// Open reports whether the case is still being worked.
func (c *Case) Open() bool { return c.ClosedAt == nil }

// ActionEntry is one audit line in a case's ordered actions_taken history.
type ActionEntry struct {
	Seq        int64
	CaseID     domain.CaseID
	Actor      string
	FromStatus Status
	ToStatus   Status
	Note       string
	OccurredAt time.Time
}

// Note is free-form analyst commentary attached to a case.
type Note struct {
	Seq       int64
	CaseID    domain.CaseID
	Author    string
	Body      string
	CreatedAt time.Time
}
