package ingestion

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jonathan/applyflow/internal/db"
	"github.com/jonathan/applyflow/internal/llm"
	"github.com/jonathan/applyflow/internal/schemas"
)

// ExtractionError wraps any failure to produce validated structured fields.
// Callers record it on the posting instead of propagating it.
type ExtractionError struct {
	Message string
	Cause   error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction failed: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}

// flexList accepts either a JSON array of strings or a single free-text
// string. Posting platforms disagree on how much structure they expose.
type flexList struct {
	Items []string
	Raw   string
}

func (f *flexList) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		f.Items = items
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err == nil {
		f.Raw = raw
		return nil
	}
	return fmt.Errorf("expected array or string, got: %s", data)
}

// extractedDocument mirrors the JSON the extraction model returns
type extractedDocument struct {
	Company      string   `json:"company"`
	Title        string   `json:"title"`
	Location     string   `json:"location"`
	RemotePolicy string   `json:"remote_policy"`
	Salary       string   `json:"salary"`
	Description  string   `json:"description"`
	Requirements flexList `json:"requirements"`
	Benefits     flexList `json:"benefits"`
}

// ExtractedFields is the validated structured output of extraction
type ExtractedFields struct {
	Company      string
	Title        string
	Location     string
	RemotePolicy string
	Salary       string
	Description  string
	Requirements db.StructuredList
	Benefits     db.StructuredList
}

// Extractor produces structured posting fields from page text
type Extractor interface {
	Extract(ctx context.Context, text, platform string) (*ExtractedFields, error)
}

// LLMExtractor extracts structured fields with a Gemini-backed client.
// Output is schema-validated before it is trusted.
type LLMExtractor struct {
	client llm.Client
}

// NewLLMExtractor creates an extractor over an LLM client
func NewLLMExtractor(client llm.Client) *LLMExtractor {
	return &LLMExtractor{client: client}
}

// Extract asks the model for structured fields and validates the result
func (e *LLMExtractor) Extract(ctx context.Context, text, platform string) (*ExtractedFields, error) {
	if text == "" {
		return nil, &ExtractionError{Message: "no text to extract from"}
	}

	prompt := llm.BuildExtractionPrompt(llm.JobPostingSchema(), text)

	jsonResp, err := e.client.GenerateJSON(ctx, prompt, llm.TierLite)
	if err != nil {
		return nil, &ExtractionError{Message: "model call failed", Cause: err}
	}
	jsonResp = llm.CleanJSONBlock(jsonResp)

	if err := schemas.ValidateExtraction(jsonResp); err != nil {
		return nil, &ExtractionError{Message: "model output failed schema validation", Cause: err}
	}

	var doc extractedDocument
	if err := json.Unmarshal([]byte(jsonResp), &doc); err != nil {
		return nil, &ExtractionError{Message: "model output is not valid JSON", Cause: err}
	}

	fields := &ExtractedFields{
		Company:      doc.Company,
		Title:        doc.Title,
		Location:     doc.Location,
		RemotePolicy: doc.RemotePolicy,
		Salary:       doc.Salary,
		Description:  doc.Description,
		Requirements: db.StructuredList{Items: doc.Requirements.Items, Raw: doc.Requirements.Raw, Source: platform},
		Benefits:     db.StructuredList{Items: doc.Benefits.Items, Raw: doc.Benefits.Raw, Source: platform},
	}
	if fields.Description == "" {
		return nil, &ExtractionError{Message: "model returned no description"}
	}

	return fields, nil
}
