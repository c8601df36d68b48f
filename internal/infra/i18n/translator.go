package i18n

import (
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed locales
var LocalesFS embed.FS

// Supported receipt languages. Anything else falls back to English.
const (
	LangArabic  = "ar"
	LangEnglish = "en"
)

// Normalize maps an arbitrary client-supplied language tag to a supported one.
func Normalize(lang string) string {
	if lang == LangArabic {
		return LangArabic
	}
	return LangEnglish
}

type Translator struct {
	translations map[string]string
}

// NewTranslator loads locales/<langCode>.yaml from the given FS.
func NewTranslator(fsys fs.FS, langCode string) (*Translator, error) {
	filePath := filepath.Join("locales", fmt.Sprintf("%s.yaml", langCode))

	data, err := fs.ReadFile(fsys, filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read translation file %s: %w", filePath, err)
	}

	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, fmt.Errorf("failed to parse translation file: %w", err)
	}

	return &Translator{translations: translations}, nil
}

// T returns the translated string for key, formatting args if present.
// Unknown keys come back verbatim so a missing entry is visible, not fatal.
func (t *Translator) T(key string, args ...interface{}) string {
	format, ok := t.translations[key]
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(format, args...)
	}
	return format
}
