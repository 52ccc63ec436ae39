package prompt

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.Len(t, prompts, 4)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	for _, slug := range []string{SlugReview, SlugConsultation, SlugFollowUp, SlugComparison} {
		prompt, err := reg.Get(slug)
		require.NoError(t, err, slug)
		require.NotEmpty(t, prompt.Config.Template)
	}
}

func TestLoadKeepsHorizontalRuleInBody(t *testing.T) {
	prompt, err := Load("inline", []byte("---\nslug: x\n---\nabove\n---\nbelow {{.v}}\n"))
	require.NoError(t, err)
	require.Equal(t, "above\n---\nbelow {{.v}}", prompt.Config.Template)
}

func TestLoadRejectsInvalidPrompts(t *testing.T) {
	_, err := Load("empty", []byte("  "))
	require.Error(t, err)

	_, err = Load("noslug", []byte("---\nname: x\n---\nbody"))
	require.ErrorContains(t, err, "slug")

	_, err = Load("notemplate", []byte("---\nslug: x\n---\n"))
	require.ErrorContains(t, err, "missing template")

	_, err = Load("badtemplate", []byte("---\nslug: x\n---\n{{.broken"))
	require.ErrorContains(t, err, "compile")

	_, err = Load("baddefault", []byte("---\nslug: x\ndefault_level: 9\nlevels:\n  1: one\n---\nbody"))
	require.ErrorContains(t, err, "default_level")
}

func TestLoadRegistryOverridesFromDir(t *testing.T) {
	dir := t.TempDir()
	override := "---\nslug: follow-up\ninput:\n  required_variables: [question]\n---\nQ: {{.question}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "follow-up.md"), []byte(override), 0o600))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg.List(), 4)

	out, err := NewBuilder(reg).Build(SlugFollowUp, map[string]any{"question": "why?"})
	require.NoError(t, err)
	require.Equal(t, "Q: why?", out)
}

func TestLoadRegistryMissingDir(t *testing.T) {
	_, err := LoadRegistry(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
}

func TestRegistryRejectsDuplicates(t *testing.T) {
	a, err := Load("a", []byte("---\nslug: dup\n---\na"))
	require.NoError(t, err)
	b, err := Load("b", []byte("---\nslug: dup\n---\nb"))
	require.NoError(t, err)

	_, err = NewRegistry([]*Prompt{a, b})
	require.ErrorContains(t, err, "duplicate")
}
