package prompt

import (
	"sort"
	"text/template"
)

// Config describes a prompt definition loaded from YAML frontmatter.
type Config struct {
	Slug        string    `yaml:"slug" json:"slug"`
	Name        string    `yaml:"name,omitempty" json:"name,omitempty"`
	Description string    `yaml:"description,omitempty" json:"description,omitempty"`
	Version     string    `yaml:"version,omitempty" json:"version,omitempty"`
	Input       InputSpec `yaml:"input,omitempty" json:"input,omitempty"`

	// Template is the text/template body. When empty, the markdown body
	// after the frontmatter is used.
	Template string `yaml:"template,omitempty" json:"template,omitempty"`

	// Review lookup tables.
	DefaultLevel int               `yaml:"default_level,omitempty" json:"default_level,omitempty"`
	Levels       map[int]string    `yaml:"levels,omitempty" json:"levels,omitempty"`
	FocusAreas   map[string]string `yaml:"focus_areas,omitempty" json:"focus_areas,omitempty"`
	GeneralFocus string            `yaml:"general_focus,omitempty" json:"general_focus,omitempty"`
}

// InputSpec defines prompt input requirements.
type InputSpec struct {
	RequiredVariables []string `yaml:"required_variables,omitempty" json:"required_variables,omitempty"`
	OptionalVariables []string `yaml:"optional_variables,omitempty" json:"optional_variables,omitempty"`
}

// Prompt wraps a validated prompt configuration with its source.
type Prompt struct {
	Config Config
	Source string

	tmpl *template.Template
}

// LevelDescription returns the description for a review level, falling back
// to the default level for anything unknown.
func (c Config) LevelDescription(level int) string {
	if desc, ok := c.Levels[level]; ok {
		return desc
	}
	return c.Levels[c.DefaultLevel]
}

// FocusDescriptions maps focus tags to descriptions. Unknown tags are kept
// verbatim and an empty list yields the general line.
func (c Config) FocusDescriptions(tags []string) []string {
	if len(tags) == 0 {
		if c.GeneralFocus == "" {
			return nil
		}
		return []string{c.GeneralFocus}
	}
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if desc, ok := c.FocusAreas[tag]; ok {
			out = append(out, desc)
			continue
		}
		out = append(out, tag)
	}
	return out
}

// FocusTags lists the known focus tags in sorted order.
func (c Config) FocusTags() []string {
	tags := make([]string, 0, len(c.FocusAreas))
	for tag := range c.FocusAreas {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
