package db

import (
	"testing"
)

// =============================================================================
// JobPosting Method Tests
// =============================================================================

func TestJobPosting_Usable(t *testing.T) {
	tests := []struct {
		name     string
		status   string
		expected bool
	}{
		{"pending", PostingStatusPending, false},
		{"scraped", PostingStatusScraped, true},
		{"extraction failed keeps raw text", PostingStatusExtractionFailed, true},
		{"failed", PostingStatusFailed, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &JobPosting{Status: tt.status}
			if result := p.Usable(); result != tt.expected {
				t.Errorf("Usable() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestJobPosting_IsScraped(t *testing.T) {
	p := &JobPosting{Status: PostingStatusScraped}
	if !p.IsScraped() {
		t.Error("IsScraped() = false for scraped posting")
	}
	p.Status = PostingStatusExtractionFailed
	if p.IsScraped() {
		t.Error("IsScraped() = true for extraction_failed posting")
	}
}

func TestStructuredList_IsEmpty(t *testing.T) {
	tests := []struct {
		name     string
		list     StructuredList
		expected bool
	}{
		{"zero value", StructuredList{}, true},
		{"items only", StructuredList{Items: []string{"Go"}}, false},
		{"raw only", StructuredList{Raw: "5+ years experience"}, false},
		{"both", StructuredList{Items: []string{"Go"}, Raw: "5+ years"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if result := tt.list.IsEmpty(); result != tt.expected {
				t.Errorf("IsEmpty() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestHashPostingContent(t *testing.T) {
	h1 := HashPostingContent("Senior Software Engineer at Acme")
	h2 := HashPostingContent("Senior Software Engineer at Acme")
	h3 := HashPostingContent("Staff Software Engineer at Acme")

	if h1 != h2 {
		t.Error("same content should produce same hash")
	}
	if h1 == h3 {
		t.Error("different content should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64", len(h1))
	}
}
