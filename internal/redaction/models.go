package redaction

import (
	"slices"
	"strings"
)

// EntityType classifies a detected span. Values follow the analyzer's names.
type EntityType string

const (
	EntityEmail      EntityType = "EMAIL_ADDRESS"
	EntityPhone      EntityType = "PHONE_NUMBER"
	EntityPerson     EntityType = "PERSON"
	EntityLocation   EntityType = "LOCATION"
	EntityFiscalCode EntityType = "IT_FISCAL_CODE"
)

// ItalianOnly reports whether the entity is only meaningful for Italian text.
func (t EntityType) ItalianOnly() bool {
	return strings.HasPrefix(string(t), "IT_")
}

// Mask is the placeholder written in place of a span of this type.
func (t EntityType) Mask() string {
	switch t {
	case EntityEmail:
		return "[REDACTED_EMAIL]"
	case EntityPhone:
		return "[REDACTED_PHONE]"
	case EntityPerson:
		return "[REDACTED_NAME]"
	case EntityLocation:
		return "[REDACTED_LOCATION]"
	case EntityFiscalCode:
		return "[REDACTED_CODICE_FISCALE]"
	default:
		return "[REDACTED]"
	}
}

// DefaultEntities is the set a detector is asked for when the caller does not narrow it.
var DefaultEntities = []EntityType{EntityEmail, EntityPhone, EntityPerson, EntityLocation, EntityFiscalCode}

// EntitiesFor drops language-specific entities that do not apply to lang.
func EntitiesFor(lang Language, entities []EntityType) []EntityType {
	out := make([]EntityType, 0, len(entities))
	for _, e := range entities {
		if e.ItalianOnly() && lang != LanguageItalian {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Span is a detected sensitive region of a string. Start and End are byte
// offsets, End exclusive.
type Span struct {
	Start      int        `json:"start"`
	End        int        `json:"end"`
	EntityType EntityType `json:"entity_type"`
	Confidence float64    `json:"confidence"`
}

// Language is a detection language tag.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageItalian Language = "it"

	DefaultLanguage = LanguageEnglish
)

// SupportedLanguages lists the tags detectors are configured for.
func SupportedLanguages() []Language {
	return []Language{LanguageEnglish, LanguageItalian}
}

// ParseLanguage normalizes tag and rejects anything unsupported. An empty
// tag means DefaultLanguage.
func ParseLanguage(tag string) (Language, error) {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" {
		return DefaultLanguage, nil
	}
	lang := Language(tag)
	if !slices.Contains(SupportedLanguages(), lang) {
		return "", &UnsupportedLanguageError{Language: tag}
	}
	return lang, nil
}

// Result summarizes what a redaction pass found.
type Result struct {
	PIIDetected bool     `json:"pii_detected"`
	Types       []string `json:"pii_types"`
	Count       int      `json:"pii_count"`
	// Applied is false when the policy skipped redaction entirely.
	Applied bool `json:"redaction_applied"`
}

func (r *Result) merge(other Result) {
	r.Count += other.Count
	r.PIIDetected = r.PIIDetected || other.PIIDetected
	for _, t := range other.Types {
		if !slices.Contains(r.Types, t) {
			r.Types = append(r.Types, t)
		}
	}
	slices.Sort(r.Types)
}
