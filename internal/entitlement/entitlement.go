// Package entitlement decides what a user's subscription tier allows.
// Decisions are pure functions of tier, configured limits, and current
// usage; persistence and enforcement live with the callers.
package entitlement

import (
	"github.com/jonathan/applyflow/internal/config"
	"github.com/jonathan/applyflow/internal/db"
)

// Unlimited is the limit value meaning no cap.
const Unlimited = -1

// Decision is the result of an entitlement check. Denials carry a machine
// readable reason so the API layer can map them to status codes.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Denial reasons
const (
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonTierRequired   = "tier_required"
	ReasonUnknownKind    = "unknown_kind"
)

var allowed = Decision{Allowed: true}

// Evaluator answers entitlement questions from configured tier limits.
type Evaluator struct {
	limits *config.EntitlementsConfig
}

// NewEvaluator creates an evaluator over the given limits
func NewEvaluator(limits *config.EntitlementsConfig) *Evaluator {
	return &Evaluator{limits: limits}
}

// ResumeLimit returns the configured resume generation limit for a tier.
// Unknown tiers get the free limit.
func (e *Evaluator) ResumeLimit(tier string) int {
	if tier == db.TierPro {
		return e.limits.ProResumeLimit
	}
	return e.limits.FreeResumeLimit
}

// premiumKinds are artifact kinds reserved for the pro tier. They are gated
// but uncounted; only resume generation consumes quota.
var premiumKinds = map[string]bool{
	db.ArtifactKindDeepDive:      true,
	db.ArtifactKindFollowup:      true,
	db.ArtifactKindInterviewPrep: true,
}

// IsPremiumKind reports whether an artifact kind requires the pro tier
func IsPremiumKind(kind string) bool {
	return premiumKinds[kind]
}

// CountsTowardQuota reports whether generating an artifact kind consumes
// the resume quota
func CountsTowardQuota(kind string) bool {
	return kind == db.ArtifactKindResume
}

// KnownKind reports whether a kind is one the generator can produce
func KnownKind(kind string) bool {
	switch kind {
	case db.ArtifactKindResume, db.ArtifactKindCoverLetter, db.ArtifactKindImprovement,
		db.ArtifactKindDeepDive, db.ArtifactKindFollowup, db.ArtifactKindInterviewPrep:
		return true
	}
	return false
}

// CanGenerate evaluates whether a user may generate an artifact of the given
// kind with their current usage. This is an advisory check: for counted
// kinds the persist path re-checks the counter transactionally, so a pass
// here can still lose the race.
func (e *Evaluator) CanGenerate(tier, kind string, resumesUsed int) Decision {
	if !KnownKind(kind) {
		return Decision{Allowed: false, Reason: ReasonUnknownKind}
	}

	if IsPremiumKind(kind) && tier != db.TierPro {
		return Decision{Allowed: false, Reason: ReasonTierRequired}
	}

	if CountsTowardQuota(kind) {
		limit := e.ResumeLimit(tier)
		if limit != Unlimited && resumesUsed >= limit {
			return Decision{Allowed: false, Reason: ReasonQuotaExhausted}
		}
	}

	return allowed
}

// Usage summarizes a user's quota position for the API
type Usage struct {
	Tier        string `json:"tier"`
	ResumesUsed int    `json:"resumes_used"`
	ResumeLimit int    `json:"resume_limit"` // -1 means unlimited
	Remaining   int    `json:"remaining"`    // -1 means unlimited
}

// UsageFor builds a usage summary from a tier and counter
func (e *Evaluator) UsageFor(tier string, counter *db.UsageCounter) Usage {
	limit := e.ResumeLimit(tier)
	used := 0
	if counter != nil {
		used = counter.ResumesUsed
	}

	remaining := Unlimited
	if limit != Unlimited {
		remaining = limit - used
		if remaining < 0 {
			remaining = 0
		}
	}

	return Usage{
		Tier:        tier,
		ResumesUsed: used,
		ResumeLimit: limit,
		Remaining:   remaining,
	}
}
