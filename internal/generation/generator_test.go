package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/llm"
)

// stubLLM records the last prompt and returns a canned response
type stubLLM struct {
	lastPrompt string
	lastTier   llm.ModelTier
	response   string
	err        error
}

func (s *stubLLM) GenerateContent(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	s.lastPrompt = prompt
	s.lastTier = tier
	return s.response, s.err
}

func (s *stubLLM) GenerateJSON(_ context.Context, prompt string, tier llm.ModelTier) (string, error) {
	return s.GenerateContent(context.Background(), prompt, tier)
}

func (s *stubLLM) GetModel(tier llm.ModelTier) string { return "model-" + string(tier) }
func (s *stubLLM) Close() error                       { return nil }

func testRequest(kind string) *Request {
	company := "Acme"
	title := "Senior Go Engineer"
	desc := "Build distributed systems."
	notes := "Referred by Dana."
	return &Request{
		Kind: kind,
		Posting: &db.JobPosting{
			Company:     &company,
			RoleTitle:   &title,
			Description: &desc,
			Requirements: db.StructuredList{
				Items: []string{"5+ years Go", "PostgreSQL"},
			},
		},
		Application: &db.Application{Status: "applied", Notes: &notes},
		TemplateID:  "modern",
	}
}

func TestLLMGenerator_Generate(t *testing.T) {
	stub := &stubLLM{response: "  A tailored resume.  "}
	g := NewLLMGenerator(stub)

	result, err := g.Generate(context.Background(), testRequest(db.ArtifactKindResume))
	require.NoError(t, err)

	assert.Equal(t, "A tailored resume.", result.Content, "content is trimmed")
	assert.Equal(t, "model-"+string(llm.TierStandard), result.Model)

	// Posting fields are interpolated into the rendered prompt
	assert.Contains(t, stub.lastPrompt, "Acme")
	assert.Contains(t, stub.lastPrompt, "Senior Go Engineer")
	assert.Contains(t, stub.lastPrompt, "- 5+ years Go")
	assert.Contains(t, stub.lastPrompt, "Referred by Dana.")
	assert.Contains(t, stub.lastPrompt, "modern")
	assert.NotContains(t, stub.lastPrompt, "{{.", "no unrendered placeholders")
}

func TestLLMGenerator_TierByKind(t *testing.T) {
	tests := []struct {
		kind string
		tier llm.ModelTier
	}{
		{db.ArtifactKindResume, llm.TierStandard},
		{db.ArtifactKindCoverLetter, llm.TierStandard},
		{db.ArtifactKindDeepDive, llm.TierAdvanced},
		{db.ArtifactKindInterviewPrep, llm.TierAdvanced},
		{db.ArtifactKindFollowup, llm.TierLite},
		{db.ArtifactKindImprovement, llm.TierLite},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			stub := &stubLLM{response: "content"}
			g := NewLLMGenerator(stub)

			_, err := g.Generate(context.Background(), testRequest(tt.kind))
			require.NoError(t, err)
			assert.Equal(t, tt.tier, stub.lastTier)
		})
	}
}

func TestLLMGenerator_Errors(t *testing.T) {
	t.Run("upstream error", func(t *testing.T) {
		g := NewLLMGenerator(&stubLLM{err: errors.New("rate limited")})
		_, err := g.Generate(context.Background(), testRequest(db.ArtifactKindResume))
		assert.Error(t, err)
	})

	t.Run("empty content", func(t *testing.T) {
		g := NewLLMGenerator(&stubLLM{response: "   "})
		_, err := g.Generate(context.Background(), testRequest(db.ArtifactKindResume))
		assert.Error(t, err)
	})

	t.Run("unknown kind has no prompt", func(t *testing.T) {
		g := NewLLMGenerator(&stubLLM{response: "content"})
		_, err := g.Generate(context.Background(), testRequest("haiku"))
		assert.Error(t, err)
	})
}

func TestPromptData_MissingOptionalFields(t *testing.T) {
	req := &Request{
		Kind:    db.ArtifactKindResume,
		Posting: &db.JobPosting{Requirements: db.StructuredList{Raw: "Go experience required"}},
	}

	data := promptData(req)
	assert.Equal(t, "", data["Company"])
	assert.Equal(t, "", data["Notes"])
	assert.Equal(t, "Go experience required", data["Requirements"], "raw text survives when items are absent")
}
