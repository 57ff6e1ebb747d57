package service_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"destiny-server/internal/models"
	"destiny-server/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var testBirth = models.BirthData{
	Name:       "Ada",
	BirthDate:  "1990-04-12",
	BirthTime:  "06:30",
	BirthPlace: "Lisbon",
	Gender:     "female",
}

func TestPromptBuilder_Build(t *testing.T) {
	b, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	system, user, err := b.Build("", testBirth, json.RawMessage(`{ "sun": "Aries",  "moon": "Leo" }`))
	require.NoError(t, err)

	assert.Contains(t, system, "Write in English")
	assert.Contains(t, user, "Name: Ada")
	assert.Contains(t, user, "Time of birth: 06:30")
	assert.Contains(t, user, "Gender: female")
	assert.Contains(t, user, `{"sun":"Aries","moon":"Leo"}`)
}

func TestPromptBuilder_UnknownTimeAndNoChart(t *testing.T) {
	b, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	birth := testBirth
	birth.BirthTime = ""
	birth.Gender = ""
	_, user, err := b.Build("en", birth, nil)
	require.NoError(t, err)

	assert.Contains(t, user, "Time of birth: unknown")
	assert.NotContains(t, user, "Gender:")
	assert.NotContains(t, user, "Natal chart")
}

func TestPromptBuilder_Russian(t *testing.T) {
	b, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	system, user, err := b.Build("ru", testBirth, nil)
	require.NoError(t, err)
	assert.Contains(t, system, "русский")
	assert.Contains(t, user, "Имя: Ada")
}

func TestPromptBuilder_UnknownLanguage(t *testing.T) {
	b, err := service.NewPromptBuilder("en", "", zap.NewNop())
	require.NoError(t, err)

	_, _, err = b.Build("xx", testBirth, nil)
	assert.ErrorIs(t, err, service.ErrPromptNotFound)

	_, err = service.NewPromptBuilder("xx", "", zap.NewNop())
	assert.ErrorIs(t, err, service.ErrPromptNotFound)
}

func TestPromptBuilder_DirectoryOverride(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.system.tmpl"), []byte("Custom system in {{.LanguageName}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en.user.tmpl"), []byte("Reading for {{.Birth.Name}}"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.system.tmpl"), []byte("System auf Deutsch"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "de.user.tmpl"), []byte("Für {{.Birth.Name}}"), 0o644))

	b, err := service.NewPromptBuilder("en", dir, zap.NewNop())
	require.NoError(t, err)

	system, user, err := b.Build("en", testBirth, nil)
	require.NoError(t, err)
	assert.Equal(t, "Custom system in English", system)
	assert.Equal(t, "Reading for Ada", user)

	_, user, err = b.Build("de", testBirth, nil)
	require.NoError(t, err)
	assert.Equal(t, "Für Ada", user)
}
