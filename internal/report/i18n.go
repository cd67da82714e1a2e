package report

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"strings"
)

// Language is a supported localization code, matching a file under
// locales/.
type Language string

const (
	LangEnglish Language = "en"
	LangGerman  Language = "de"
)

// ErrUnsupportedLanguage is returned when an unknown language code is
// requested.
var ErrUnsupportedLanguage = errors.New("report: unsupported language")

//go:embed locales/*.json
var localeFS embed.FS

// locales holds every embedded table, keyed by the file's base name.
var locales = loadLocales()

func loadLocales() map[Language]map[string]string {
	entries, err := localeFS.ReadDir("locales")
	if err != nil {
		panic(fmt.Sprintf("report: locale dir: %v", err))
	}
	tables := make(map[Language]map[string]string, len(entries))
	for _, e := range entries {
		lang := Language(strings.TrimSuffix(e.Name(), ".json"))
		data, err := localeFS.ReadFile(path.Join("locales", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("report: load locale %s: %v", lang, err))
		}
		var parsed map[string]string
		if err := json.Unmarshal(data, &parsed); err != nil {
			panic(fmt.Sprintf("report: parse locale %s: %v", lang, err))
		}
		tables[lang] = parsed
	}
	if _, ok := tables[LangEnglish]; !ok {
		panic("report: english locale missing")
	}
	return tables
}

// langAliases maps accepted flag spellings to their locale.
var langAliases = map[string]Language{
	"en": LangEnglish, "en-us": LangEnglish, "en-gb": LangEnglish, "english": LangEnglish,
	"de": LangGerman, "de-de": LangGerman, "de-at": LangGerman, "de-ch": LangGerman,
	"german": LangGerman, "deutsch": LangGerman,
}

// ParseLanguage resolves a flag value to a supported Language. Unknown
// codes fall back to English alongside the error.
func ParseLanguage(lang string) (Language, error) {
	key := strings.ToLower(strings.TrimSpace(lang))
	if key == "" {
		return LangEnglish, nil
	}
	if l, ok := langAliases[key]; ok {
		return l, nil
	}
	return LangEnglish, fmt.Errorf("%w: %s", ErrUnsupportedLanguage, lang)
}

// Translator resolves localized strings for one language, falling back
// to English and finally to the key itself.
type Translator struct {
	lang Language
	data map[string]string
}

func NewTranslator(lang Language) Translator {
	data, ok := locales[lang]
	if !ok {
		lang = LangEnglish
		data = locales[LangEnglish]
	}
	return Translator{lang: lang, data: data}
}

func (t Translator) Lang() Language {
	return t.lang
}

func (t Translator) T(key string) string {
	if val, ok := t.data[key]; ok {
		return val
	}
	if t.lang != LangEnglish {
		if val, ok := locales[LangEnglish][key]; ok {
			return val
		}
	}
	return key
}

// Format localizes the key and applies it as a Sprintf pattern.
func (t Translator) Format(key string, args ...interface{}) string {
	return fmt.Sprintf(t.T(key), args...)
}
