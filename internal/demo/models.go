package demo

import (
	"strings"

	dErrors "gatekeeper/pkg/domain-errors"
)

const maxCustomTextLength = 10000

// SampleResponse imitates a model answer that leaks customer details.
type SampleResponse struct {
	Query      string  `json:"query"`
	Response   string  `json:"response"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
	Model      string  `json:"model"`
}

type CustomTextRequest struct {
	Text string `json:"text"`
}

func (r *CustomTextRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return dErrors.New(dErrors.CodeValidation, "text is required")
	}
	if len(r.Text) > maxCustomTextLength {
		return dErrors.New(dErrors.CodeValidation, "text exceeds 10000 bytes")
	}
	return nil
}

type CustomTextResponse struct {
	OriginalText string `json:"original_text"`
	Language     string `json:"language"`
}

type LanguageInfo struct {
	Code        string   `json:"code"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Entities    []string `json:"entities"`
}

type LanguagesResponse struct {
	SupportedLanguages []LanguageInfo `json:"supported_languages"`
}
