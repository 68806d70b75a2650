// Package llm - extractor.go provides generic LLM-based structured extraction.
package llm

import (
	"fmt"
	"strings"
)

// ExtractionSchema defines the structure for LLM-based content extraction.
type ExtractionSchema struct {
	Name        string        // Schema name (e.g., "JobPosting")
	Description string        // System prompt preamble describing the extraction task
	Fields      []SchemaField // Expected output fields
}

// SchemaField defines a single field in the extraction output.
type SchemaField struct {
	Name        string // JSON field name
	Type        string // Type hint: "string", "[]string", "map[string]string"
	Description string // Description for the LLM
	Required    bool   // Whether this field is required
}

// BuildExtractionPrompt constructs the LLM prompt from schema and input text.
func BuildExtractionPrompt(schema ExtractionSchema, inputText string) string {
	var sb strings.Builder

	sb.WriteString(schema.Description)
	sb.WriteString("\n\n")

	sb.WriteString("Return ONLY valid JSON matching this exact structure:\n{\n")
	for i, field := range schema.Fields {
		typeHint := field.Type
		if typeHint == "" {
			typeHint = "string"
		}
		requiredHint := ""
		if field.Required {
			requiredHint = " (required)"
		}
		sb.WriteString(fmt.Sprintf("  \"%s\": %s%s", field.Name, typeHint, requiredHint))
		if field.Description != "" {
			sb.WriteString(fmt.Sprintf(" // %s", field.Description))
		}
		if i < len(schema.Fields)-1 {
			sb.WriteString(",")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("}\n\n")

	sb.WriteString("IMPORTANT:\n")
	sb.WriteString("- Extract information directly from the text, do not invent or summarize.\n")
	sb.WriteString("- Return ONLY the JSON object, no markdown, no explanation, no code blocks.\n\n")

	sb.WriteString("Input text:\n\"\"\"\n")
	sb.WriteString(inputText)
	sb.WriteString("\n\"\"\"\n")

	return sb.String()
}

// JobPostingSchema returns the extraction schema for job posting pages.
// Extracts company, role, location, compensation, and structured requirement lists.
func JobPostingSchema() ExtractionSchema {
	return ExtractionSchema{
		Name: "JobPosting",
		Description: `You are an expert job posting parser. COPY TEXT VERBATIM - do not paraphrase, summarize, or reword.
Your task is to extract and categorize information from a raw job posting.
IMPORTANT: Preserve the exact wording from the original text.
EXCLUDE: Application form fields, EEO statements, legal disclaimers, cookie notices.`,
		Fields: []SchemaField{
			{
				Name:        "company",
				Type:        "\"string\"",
				Description: "Company name",
				Required:    true,
			},
			{
				Name:        "title",
				Type:        "\"string\"",
				Description: "Role title exactly as posted",
				Required:    true,
			},
			{
				Name:        "location",
				Type:        "\"string\"",
				Description: "Job location (city, state, country)",
				Required:    false,
			},
			{
				Name:        "remote_policy",
				Type:        "\"string\"",
				Description: "One of: remote, hybrid, onsite - or empty if not stated",
				Required:    false,
			},
			{
				Name:        "salary",
				Type:        "\"string\"",
				Description: "Salary or salary range verbatim, empty if not stated",
				Required:    false,
			},
			{
				Name:        "description",
				Type:        "\"string\"",
				Description: "Role summary and team context verbatim",
				Required:    true,
			},
			{
				Name:        "requirements",
				Type:        "[\"string\"]",
				Description: "Technical requirements, qualifications, skills - copy each verbatim",
				Required:    true,
			},
			{
				Name:        "benefits",
				Type:        "[\"string\"]",
				Description: "Benefits and perks - copy each verbatim",
				Required:    false,
			},
		},
	}
}
