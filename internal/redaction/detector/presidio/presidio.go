// Package presidio is a DetectionPort backed by a Presidio analyzer service.
package presidio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"gatekeeper/internal/redaction"
)

const maxErrorBody = 512

type analyzeRequest struct {
	Text           string   `json:"text"`
	Language       string   `json:"language"`
	Entities       []string `json:"entities,omitempty"`
	ScoreThreshold float64  `json:"score_threshold,omitempty"`
}

type analyzeResult struct {
	EntityType string  `json:"entity_type"`
	Start      int     `json:"start"`
	End        int     `json:"end"`
	Score      float64 `json:"score"`
}

type Detector struct {
	baseURL        string
	client         *http.Client
	entities       []redaction.EntityType
	scoreThreshold float64
}

type Option func(*Detector)

func WithHTTPClient(c *http.Client) Option {
	return func(d *Detector) {
		d.client = c
	}
}

func WithEntities(entities ...redaction.EntityType) Option {
	return func(d *Detector) {
		d.entities = entities
	}
}

func WithScoreThreshold(t float64) Option {
	return func(d *Detector) {
		d.scoreThreshold = t
	}
}

func New(baseURL string, opts ...Option) (*Detector, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("presidio analyzer url is required")
	}
	d := &Detector{
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: 10 * time.Second},
		entities: redaction.DefaultEntities,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

func (d *Detector) Name() string {
	return "presidio"
}

// Detect posts text to /analyze. Presidio reports offsets in code points;
// they are converted to byte offsets before returning.
func (d *Detector) Detect(ctx context.Context, text string, lang redaction.Language) ([]redaction.Span, error) {
	entities := redaction.EntitiesFor(lang, d.entities)
	names := make([]string, len(entities))
	for i, e := range entities {
		names[i] = string(e)
	}

	payload, err := json.Marshal(analyzeRequest{
		Text:           text,
		Language:       string(lang),
		Entities:       names,
		ScoreThreshold: d.scoreThreshold,
	})
	if err != nil {
		return nil, d.fail(fmt.Errorf("encode analyze request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+"/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, d.fail(fmt.Errorf("build analyze request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, d.fail(fmt.Errorf("call analyzer: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, d.fail(fmt.Errorf("analyzer returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var results []analyzeResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, d.fail(fmt.Errorf("decode analyze response: %w", err))
	}

	offsets := runeOffsets(text)
	spans := make([]redaction.Span, 0, len(results))
	for _, r := range results {
		if r.Start < 0 || r.End > len(offsets)-1 || r.Start >= r.End {
			continue
		}
		spans = append(spans, redaction.Span{
			Start:      offsets[r.Start],
			End:        offsets[r.End],
			EntityType: redaction.EntityType(r.EntityType),
			Confidence: r.Score,
		})
	}
	return spans, nil
}

func (d *Detector) fail(err error) error {
	return &redaction.DetectionCapabilityError{Detector: d.Name(), Err: err}
}

// runeOffsets maps code point index i to its byte offset; the final entry is len(text).
func runeOffsets(text string) []int {
	offsets := make([]int, 0, utf8.RuneCountInString(text)+1)
	for i := range text {
		offsets = append(offsets, i)
	}
	return append(offsets, len(text))
}
