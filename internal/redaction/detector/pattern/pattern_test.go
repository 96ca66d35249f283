package pattern

import (
	"context"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/redaction"
)

func found(t *testing.T, text string, lang redaction.Language) map[redaction.EntityType][]string {
	t.Helper()
	spans, err := New().Detect(context.Background(), text, lang)
	require.NoError(t, err)
	out := make(map[redaction.EntityType][]string)
	for _, s := range spans {
		// several rules may report the same region
		if v := text[s.Start:s.End]; !slices.Contains(out[s.EntityType], v) {
			out[s.EntityType] = append(out[s.EntityType], v)
		}
	}
	return out
}

func TestDetectEnglish(t *testing.T) {
	got := found(t, "Contact John at john@example.com or 555-123-4567", redaction.LanguageEnglish)

	assert.Equal(t, []string{"john@example.com"}, got[redaction.EntityEmail])
	assert.Equal(t, []string{"555-123-4567"}, got[redaction.EntityPhone])
	assert.Equal(t, []string{"John"}, got[redaction.EntityPerson])
}

func TestDetectTitledNamesAndCities(t *testing.T) {
	got := found(t, "Dr. Jane Smith moved from London to Boston. Call +44 20 7946 0958.", redaction.LanguageEnglish)

	assert.Equal(t, []string{"Jane Smith"}, got[redaction.EntityPerson])
	assert.Equal(t, []string{"London", "Boston"}, got[redaction.EntityLocation])
	assert.Equal(t, []string{"+44 20 7946 0958"}, got[redaction.EntityPhone])
}

func TestDetectItalian(t *testing.T) {
	got := found(t, "Mi chiamo Mario Rossi, abito a Milano, cellulare 347 123 4567, CF RSSMRA85T10A562S", redaction.LanguageItalian)

	assert.Equal(t, []string{"Mario Rossi"}, got[redaction.EntityPerson])
	assert.Equal(t, []string{"Milano"}, got[redaction.EntityLocation])
	assert.Equal(t, []string{"347 123 4567"}, got[redaction.EntityPhone])
	assert.Equal(t, []string{"RSSMRA85T10A562S"}, got[redaction.EntityFiscalCode])
}

func TestItalianOnlyRulesSkipEnglish(t *testing.T) {
	got := found(t, "CF RSSMRA85T10A562S", redaction.LanguageEnglish)
	assert.Empty(t, got[redaction.EntityFiscalCode])
}

func TestMasksAreNotDetected(t *testing.T) {
	got := found(t, "Contact [REDACTED_NAME] at [REDACTED_EMAIL] or [REDACTED_PHONE]", redaction.LanguageEnglish)
	assert.Empty(t, got)
}

func TestDetectHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Detect(ctx, "john@example.com", redaction.LanguageEnglish)
	assert.ErrorIs(t, err, context.Canceled)
}
