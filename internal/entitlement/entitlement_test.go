package entitlement

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/applyflow/internal/config"
	"github.com/jonathan/applyflow/internal/db"
)

func testEvaluator() *Evaluator {
	return NewEvaluator(&config.EntitlementsConfig{
		FreeResumeLimit: 3,
		ProResumeLimit:  Unlimited,
	})
}

func TestCanGenerate_ResumeQuota(t *testing.T) {
	e := testEvaluator()

	tests := []struct {
		name       string
		tier       string
		used       int
		allowed    bool
		wantReason string
	}{
		{"free under limit", db.TierFree, 0, true, ""},
		{"free at last slot", db.TierFree, 2, true, ""},
		{"free at limit", db.TierFree, 3, false, ReasonQuotaExhausted},
		{"free over limit", db.TierFree, 10, false, ReasonQuotaExhausted},
		{"pro unlimited", db.TierPro, 1000, true, ""},
		{"unknown tier gets free limit", "trial", 3, false, ReasonQuotaExhausted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := e.CanGenerate(tt.tier, db.ArtifactKindResume, tt.used)
			assert.Equal(t, tt.allowed, d.Allowed)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}

func TestCanGenerate_PremiumKinds(t *testing.T) {
	e := testEvaluator()

	for _, kind := range []string{db.ArtifactKindDeepDive, db.ArtifactKindFollowup, db.ArtifactKindInterviewPrep} {
		t.Run(kind, func(t *testing.T) {
			denied := e.CanGenerate(db.TierFree, kind, 0)
			assert.False(t, denied.Allowed)
			assert.Equal(t, ReasonTierRequired, denied.Reason)

			// Premium kinds never consume the resume quota
			granted := e.CanGenerate(db.TierPro, kind, 1000)
			assert.True(t, granted.Allowed)
		})
	}
}

func TestCanGenerate_CoverLetterUncounted(t *testing.T) {
	e := testEvaluator()

	// Cover letters are free-tier accessible and uncounted even at the
	// resume limit
	d := e.CanGenerate(db.TierFree, db.ArtifactKindCoverLetter, 3)
	assert.True(t, d.Allowed)
}

func TestCanGenerate_UnknownKind(t *testing.T) {
	e := testEvaluator()

	d := e.CanGenerate(db.TierPro, "haiku", 0)
	assert.False(t, d.Allowed)
	assert.Equal(t, ReasonUnknownKind, d.Reason)
}

func TestCountsTowardQuota(t *testing.T) {
	assert.True(t, CountsTowardQuota(db.ArtifactKindResume))
	assert.False(t, CountsTowardQuota(db.ArtifactKindCoverLetter))
	assert.False(t, CountsTowardQuota(db.ArtifactKindDeepDive))
}

func TestUsageFor(t *testing.T) {
	e := testEvaluator()

	t.Run("free with usage", func(t *testing.T) {
		u := e.UsageFor(db.TierFree, &db.UsageCounter{ResumesUsed: 2})
		assert.Equal(t, 2, u.ResumesUsed)
		assert.Equal(t, 3, u.ResumeLimit)
		assert.Equal(t, 1, u.Remaining)
	})

	t.Run("nil counter", func(t *testing.T) {
		u := e.UsageFor(db.TierFree, nil)
		assert.Equal(t, 0, u.ResumesUsed)
		assert.Equal(t, 3, u.Remaining)
	})

	t.Run("over limit clamps remaining", func(t *testing.T) {
		u := e.UsageFor(db.TierFree, &db.UsageCounter{ResumesUsed: 7})
		assert.Equal(t, 0, u.Remaining)
	})

	t.Run("pro unlimited", func(t *testing.T) {
		u := e.UsageFor(db.TierPro, &db.UsageCounter{ResumesUsed: 50})
		assert.Equal(t, Unlimited, u.ResumeLimit)
		assert.Equal(t, Unlimited, u.Remaining)
	})
}
