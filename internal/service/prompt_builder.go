package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"text/template"

	"destiny-server/internal/models"

	"go.uber.org/zap"
)

//go:embed prompts/*.tmpl
var embeddedPrompts embed.FS

// ErrPromptNotFound - для языка нет шаблонов.
var ErrPromptNotFound = errors.New("prompt templates not found for language")

var languageNames = map[string]string{
	"en": "English",
	"ru": "русский",
}

type promptSet struct {
	system *template.Template
	user   *template.Template
}

type promptData struct {
	LanguageName string
	Birth        models.BirthData
	Chart        string
}

// PromptBuilder рендерит системный и пользовательский промты отчета.
// Шаблоны хранятся по языкам: встроенные плюс переопределения из каталога.
type PromptBuilder struct {
	mu          sync.RWMutex
	sets        map[string]promptSet
	defaultLang string
	logger      *zap.Logger
}

// NewPromptBuilder загружает встроенные шаблоны и, если dir не пуст, шаблоны из dir поверх них.
func NewPromptBuilder(defaultLang, dir string, logger *zap.Logger) (*PromptBuilder, error) {
	b := &PromptBuilder{
		sets:        make(map[string]promptSet),
		defaultLang: defaultLang,
		logger:      logger.Named("PromptBuilder"),
	}
	if err := b.load(embeddedPrompts, "prompts"); err != nil {
		return nil, fmt.Errorf("failed to load embedded prompts: %w", err)
	}
	if dir != "" {
		if err := b.load(os.DirFS(dir), "."); err != nil {
			return nil, fmt.Errorf("failed to load prompts from %s: %w", dir, err)
		}
	}
	if _, ok := b.sets[defaultLang]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrPromptNotFound, defaultLang)
	}
	b.logger.Info("Prompt templates loaded", zap.Int("languages", len(b.sets)), zap.String("default_language", defaultLang))
	return b, nil
}

// load читает файлы вида <lang>.system.tmpl и <lang>.user.tmpl.
func (b *PromptBuilder) load(fsys fs.FS, root string) error {
	matches, err := fs.Glob(fsys, filepath.ToSlash(filepath.Join(root, "*.system.tmpl")))
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	for _, systemPath := range matches {
		lang := strings.TrimSuffix(filepath.Base(systemPath), ".system.tmpl")
		userPath := strings.TrimSuffix(systemPath, ".system.tmpl") + ".user.tmpl"

		system, err := template.ParseFS(fsys, systemPath)
		if err != nil {
			return fmt.Errorf("parse %s: %w", systemPath, err)
		}
		user, err := template.ParseFS(fsys, userPath)
		if err != nil {
			return fmt.Errorf("parse %s: %w", userPath, err)
		}
		b.sets[lang] = promptSet{system: system, user: user}
	}
	return nil
}

// Build возвращает системный и пользовательский промты для lang (пусто - язык по умолчанию).
func (b *PromptBuilder) Build(lang string, birth models.BirthData, chart json.RawMessage) (string, string, error) {
	if lang == "" {
		lang = b.defaultLang
	}
	b.mu.RLock()
	set, ok := b.sets[lang]
	b.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrPromptNotFound, lang)
	}

	data := promptData{
		LanguageName: languageNames[lang],
		Birth:        birth,
		Chart:        compactChart(chart),
	}
	if data.LanguageName == "" {
		data.LanguageName = lang
	}

	var system, user bytes.Buffer
	if err := set.system.Execute(&system, data); err != nil {
		return "", "", fmt.Errorf("render system prompt: %w", err)
	}
	if err := set.user.Execute(&user, data); err != nil {
		return "", "", fmt.Errorf("render user prompt: %w", err)
	}
	return strings.TrimSpace(system.String()), strings.TrimSpace(user.String()), nil
}

func compactChart(chart json.RawMessage) string {
	if len(chart) == 0 || string(chart) == "null" {
		return ""
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, chart); err != nil {
		return string(chart)
	}
	return buf.String()
}
