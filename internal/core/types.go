package core

import (
	"strings"
	"time"
)

// Category selects the rate-limit bucket and persona messages for an endpoint.
type Category string

const (
	CategoryReview       Category = "review"
	CategoryConsultation Category = "consultation"
)

// Default review settings mirror the web client's defaults.
const (
	DefaultReviewLevel = 3
	MinReviewLevel     = 1
	MaxReviewLevel     = 5

	MaxCodeLength    = 50000
	MaxMessageLength = 2000
)

// ReviewRequest is the body of POST /api/generate-review.
type ReviewRequest struct {
	Code        string   `json:"code"`
	FileName    string   `json:"fileName"`
	Language    string   `json:"language"`
	ReviewLevel *int     `json:"reviewLevel,omitempty"`
	FocusAreas  []string `json:"focusAreas,omitempty"`
}

// Level returns the requested review level, defaulting when absent.
func (r ReviewRequest) Level() int {
	if r.ReviewLevel == nil {
		return DefaultReviewLevel
	}
	return *r.ReviewLevel
}

// ChatMessage is one prior turn supplied by the client.
type ChatMessage struct {
	Sender  string `json:"sender"`
	Message string `json:"message"`
}

// ConsultationRequest is the body of POST /api/consultation.
// The client owns the conversation; history is resent on every call.
type ConsultationRequest struct {
	Message        string        `json:"message"`
	MessageHistory []ChatMessage `json:"messageHistory,omitempty"`
}

// FollowUpRequest asks a question about a previous review.
type FollowUpRequest struct {
	Code     string `json:"code"`
	Review   string `json:"review"`
	Question string `json:"question"`
}

// ComparisonRequest asks for a before/after review of two code versions.
type ComparisonRequest struct {
	OriginalCode string `json:"originalCode"`
	ImprovedCode string `json:"improvedCode"`
	FileName     string `json:"fileName"`
	Language     string `json:"language"`
}

// PersonaSuffix is the sentence ending every persona response is expected to use.
const PersonaSuffix = "っピ"

// HasPersona reports whether text carries the persona sentence ending.
func HasPersona(text string) bool {
	return strings.Contains(text, PersonaSuffix)
}

// TimestampLayout matches the ISO-8601 form clients already parse
// (millisecond precision, UTC "Z").
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
