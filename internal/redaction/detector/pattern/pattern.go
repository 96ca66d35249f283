// Package pattern is a regular-expression DetectionPort for English and
// Italian text. It needs no external service and is the default detector.
package pattern

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"gatekeeper/internal/redaction"
)

// DetectionRule matches one entity type. Group selects the submatch that is
// the sensitive part; 0 is the whole match.
type DetectionRule struct {
	Name       string
	Entity     redaction.EntityType
	Pattern    *regexp.Regexp
	Group      int
	Confidence float64
	// Languages restricts the rule; empty means every language.
	Languages []redaction.Language
}

func (r DetectionRule) appliesTo(lang redaction.Language) bool {
	if r.Entity.ItalianOnly() && lang != redaction.LanguageItalian {
		return false
	}
	return len(r.Languages) == 0 || slices.Contains(r.Languages, lang)
}

var knownCities = []string{
	"London", "Manchester", "New York", "San Francisco", "Chicago", "Boston", "Seattle", "Paris", "Berlin", "Madrid",
	"Rome", "Milan", "Naples", "Turin", "Florence", "Venice",
	"Roma", "Milano", "Napoli", "Torino", "Firenze", "Venezia", "Bologna", "Genova", "Palermo", "Bari",
}

const namePattern = `(\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)?)`

// DefaultRules covers email, phone, codice fiscale, cue-word names and known cities.
func DefaultRules() []DetectionRule {
	en := []redaction.Language{redaction.LanguageEnglish}
	it := []redaction.Language{redaction.LanguageItalian}

	return []DetectionRule{
		{
			Name:       "email",
			Entity:     redaction.EntityEmail,
			Pattern:    regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`),
			Confidence: 1.0,
		},
		{
			Name:       "phone_international",
			Entity:     redaction.EntityPhone,
			Pattern:    regexp.MustCompile(`\+\d{1,3}(?:[\s.\-]?\d{2,4}){2,5}\b`),
			Confidence: 0.75,
		},
		{
			Name:       "phone_us",
			Entity:     redaction.EntityPhone,
			Pattern:    regexp.MustCompile(`(?:\(\d{3}\)\s?|\b\d{3}[\s.\-])\d{3}[\s.\-]\d{4}\b`),
			Confidence: 0.75,
		},
		{
			Name:       "phone_it",
			Entity:     redaction.EntityPhone,
			Pattern:    regexp.MustCompile(`\b(?:3\d{2}[\s.\-]?\d{3}[\s.\-]?\d{3,4}|0\d{1,3}[\s.\-]?\d{5,8})\b`),
			Confidence: 0.7,
			Languages:  it,
		},
		{
			Name:       "codice_fiscale",
			Entity:     redaction.EntityFiscalCode,
			Pattern:    regexp.MustCompile(`\b[A-Z]{6}\d{2}[A-EHLMPR-T]\d{2}[A-Z]\d{3}[A-Z]\b`),
			Confidence: 0.95,
		},
		{
			Name:       "person_en",
			Entity:     redaction.EntityPerson,
			Pattern:    regexp.MustCompile(`\b(?:Mr\.?|Mrs\.?|Ms\.?|Dr\.?|Contact|[Nn]ame is|I am|I'm)\s+` + namePattern),
			Group:      1,
			Confidence: 0.85,
			Languages:  en,
		},
		{
			Name:       "person_it",
			Entity:     redaction.EntityPerson,
			Pattern:    regexp.MustCompile(`(?:\bSig\.(?:ra)?|\bSignor(?:a)?|\bDott\.(?:ssa)?|\b[Mm]i chiamo|\bContattare|\b[Ss]ono)\s+` + namePattern),
			Group:      1,
			Confidence: 0.85,
			Languages:  it,
		},
		{
			Name:       "location",
			Entity:     redaction.EntityLocation,
			Pattern:    regexp.MustCompile(`\b(?:` + alternation(knownCities) + `)\b`),
			Confidence: 0.6,
		},
	}
}

func alternation(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return strings.Join(quoted, "|")
}

type Detector struct {
	rules []DetectionRule
}

// New builds a detector from rules, or DefaultRules when none are given.
func New(rules ...DetectionRule) *Detector {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Detector{rules: rules}
}

func (d *Detector) Name() string {
	return "pattern"
}

// Detect returns every rule match for lang. Overlaps are left to the caller.
func (d *Detector) Detect(ctx context.Context, text string, lang redaction.Language) ([]redaction.Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var spans []redaction.Span
	for _, rule := range d.rules {
		if !rule.appliesTo(lang) {
			continue
		}
		for _, m := range rule.Pattern.FindAllStringSubmatchIndex(text, -1) {
			start, end := m[2*rule.Group], m[2*rule.Group+1]
			if start < 0 {
				continue
			}
			spans = append(spans, redaction.Span{
				Start:      start,
				End:        end,
				EntityType: rule.Entity,
				Confidence: rule.Confidence,
			})
		}
	}
	return spans, nil
}
