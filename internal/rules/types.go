package rules

import "time"

// JoinRequest is the read-only view of a pending group join request,
// built by merging the request stub with an optionally-fetched full
// profile. AccountAgeDays is nil when the join date is unknowable.
type JoinRequest struct {
	UserID            string
	DisplayName       string
	RequestMessage    string
	Bio               string
	StatusDescription string
	Tags              []string
	AgeVerified       bool
	AccountAgeDays    *int
}

// RuleConfig holds the per-group automod criteria. Missing fields fail
// open: an empty keyword list matches nothing, a zero minimum restricts
// nothing. Treated as an immutable snapshot for one evaluation pass.
type RuleConfig struct {
	RequireKeywords   []string `json:"requireKeywords"`
	ExcludeKeywords   []string `json:"excludeKeywords"`
	AgeVerifiedOnly   bool     `json:"ageVerifiedOnly"`
	MinTrustRank      int      `json:"minTrustRank"`
	MinAccountAgeDays int      `json:"minAccountAgeDays"`
}

// Action is the verdict of one rule evaluation.
type Action string

const (
	ActionAccept   Action = "accept"
	ActionReject   Action = "reject"
	ActionNoAction Action = "no_action"
)

// RuleDecision is the outcome of evaluating one join request.
type RuleDecision struct {
	Action         Action
	Reason         string
	MatchedKeyword string
}

// AuditRecord captures one applied decision for the audit trail, along
// with the applicant's own request message for later review.
type AuditRecord struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"groupId"`
	UserID    string    `json:"userId"`
	Username  string    `json:"username"`
	Message   string    `json:"message,omitempty"`
	Action    Action    `json:"action"`
	Reason    string    `json:"reason"`
	DecidedAt time.Time `json:"decidedAt"`
}
