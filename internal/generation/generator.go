// Package generation produces application artifacts (resumes, cover letters,
// research briefs) through an LLM, gated by entitlements and quota.
package generation

import (
	"context"
	"fmt"
	"strings"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/llm"
	"github.com/jonathan/applyflow/internal/prompts"
)

const promptFile = "generation.json"

// Request carries everything a generator needs for one artifact
type Request struct {
	Kind        string
	Posting     *db.JobPosting
	Application *db.Application
	TemplateID  string
}

// Result is the generator's output
type Result struct {
	Content string
	Model   string
}

// Generator produces artifact content. Implementations must respect ctx
// cancellation; the orchestrator bounds every call with a timeout.
type Generator interface {
	Generate(ctx context.Context, req *Request) (*Result, error)
}

// tierForKind maps artifact kinds to model tiers: research-heavy kinds get
// the advanced model, short-form kinds the lite one.
func tierForKind(kind string) llm.ModelTier {
	switch kind {
	case db.ArtifactKindDeepDive, db.ArtifactKindInterviewPrep:
		return llm.TierAdvanced
	case db.ArtifactKindFollowup, db.ArtifactKindImprovement:
		return llm.TierLite
	default:
		return llm.TierStandard
	}
}

// LLMGenerator generates artifact content with a Gemini-backed client
type LLMGenerator struct {
	client llm.Client
}

// NewLLMGenerator creates a generator over an LLM client
func NewLLMGenerator(client llm.Client) *LLMGenerator {
	return &LLMGenerator{client: client}
}

// Generate renders the kind's prompt template and calls the model
func (g *LLMGenerator) Generate(ctx context.Context, req *Request) (*Result, error) {
	template, err := prompts.Get(promptFile, req.Kind)
	if err != nil {
		return nil, fmt.Errorf("no prompt for kind %q: %w", req.Kind, err)
	}

	prompt := prompts.Format(template, promptData(req))
	tier := tierForKind(req.Kind)

	content, err := g.client.GenerateContent(ctx, prompt, tier)
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, fmt.Errorf("model returned empty content")
	}

	return &Result{Content: content, Model: g.client.GetModel(tier)}, nil
}

// promptData flattens the posting and application into template values.
// Missing optional fields become empty strings, which the templates tolerate.
func promptData(req *Request) map[string]string {
	data := map[string]string{
		"Company":      deref(req.Posting.Company),
		"Title":        deref(req.Posting.RoleTitle),
		"Location":     deref(req.Posting.Location),
		"Description":  deref(req.Posting.Description),
		"Requirements": formatList(req.Posting.Requirements),
		"TemplateID":   req.TemplateID,
	}
	if req.Application != nil {
		data["Status"] = req.Application.Status
		data["Notes"] = deref(req.Application.Notes)
	} else {
		data["Status"] = ""
		data["Notes"] = ""
	}
	return data
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatList(list db.StructuredList) string {
	if len(list.Items) > 0 {
		var sb strings.Builder
		for _, item := range list.Items {
			sb.WriteString("- " + item + "\n")
		}
		return sb.String()
	}
	return list.Raw
}
