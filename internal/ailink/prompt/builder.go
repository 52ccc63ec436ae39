package prompt

import (
	"fmt"
	"strings"

	"github.com/tacopii/tacopii/internal/core"
)

// Slugs of the built-in prompts.
const (
	SlugReview       = "review"
	SlugConsultation = "consultation"
	SlugFollowUp     = "follow-up"
	SlugComparison   = "comparison"
)

// Builder renders prompts from a registry.
type Builder struct {
	registry Registry
}

// NewBuilder returns a builder backed by reg.
func NewBuilder(reg Registry) *Builder {
	return &Builder{registry: reg}
}

// Build renders the prompt for slug with data. Every required variable of
// the prompt must be present in data.
func (b *Builder) Build(slug string, data map[string]any) (string, error) {
	if b == nil || b.registry == nil {
		return "", fmt.Errorf("prompt builder not configured")
	}
	p, err := b.registry.Get(slug)
	if err != nil {
		return "", err
	}
	if p.tmpl == nil {
		return "", fmt.Errorf("prompt %q has no compiled template", slug)
	}

	vars := make(map[string]any, len(data))
	for k, v := range data {
		vars[k] = v
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if v, ok := vars[name]; !ok || v == nil {
			return "", fmt.Errorf("prompt %q: missing required variable %q", slug, name)
		}
	}
	for _, name := range p.Config.Input.OptionalVariables {
		if _, ok := vars[name]; !ok {
			vars[name] = nil
		}
	}

	var out strings.Builder
	if err := p.tmpl.Execute(&out, vars); err != nil {
		return "", fmt.Errorf("render prompt %q: %w", slug, err)
	}
	return out.String(), nil
}

// Review renders the code review prompt.
func (b *Builder) Review(req core.ReviewRequest) (string, error) {
	cfg, err := b.config(SlugReview)
	if err != nil {
		return "", err
	}
	level := req.Level()
	return b.Build(SlugReview, map[string]any{
		"code":             req.Code,
		"fileName":         req.FileName,
		"language":         req.Language,
		"reviewLevel":      level,
		"levelDescription": cfg.LevelDescription(level),
		"focusAreas":       cfg.FocusDescriptions(req.FocusAreas),
	})
}

// Consultation renders the consolation prompt.
func (b *Builder) Consultation(req core.ConsultationRequest) (string, error) {
	return b.Build(SlugConsultation, map[string]any{
		"message": req.Message,
		"history": req.MessageHistory,
	})
}

// FollowUp renders the follow-up question prompt.
func (b *Builder) FollowUp(req core.FollowUpRequest) (string, error) {
	return b.Build(SlugFollowUp, map[string]any{
		"code":     req.Code,
		"review":   req.Review,
		"question": req.Question,
	})
}

// Comparison renders the before/after comparison prompt.
func (b *Builder) Comparison(req core.ComparisonRequest) (string, error) {
	return b.Build(SlugComparison, map[string]any{
		"originalCode": req.OriginalCode,
		"improvedCode": req.ImprovedCode,
		"fileName":     req.FileName,
		"language":     req.Language,
	})
}

func (b *Builder) config(slug string) (Config, error) {
	if b == nil || b.registry == nil {
		return Config{}, fmt.Errorf("prompt builder not configured")
	}
	p, err := b.registry.Get(slug)
	if err != nil {
		return Config{}, err
	}
	return p.Config, nil
}
