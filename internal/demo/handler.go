// Package demo serves sample responses containing PII so the governance
// pipeline can be exercised end to end. Every route here is mounted behind
// gatekeeper.Middleware; nothing in this package redacts anything itself.
package demo

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"gatekeeper/internal/redaction"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	request "gatekeeper/pkg/platform/middleware/request"
)

const (
	defaultConfidence = 0.95
	defaultModel      = "gpt-4"
)

type sample struct {
	query    string
	response string
}

var (
	englishSample = sample{
		query: "What are the customer's contact details?",
		response: "Based on our records, the customer John Smith can be contacted at " +
			"john.smith@example.com or by phone at +1 (555) 123-4567. " +
			"He lives at 123 Main Street, New York, NY 10001.",
	}
	italianSample = sample{
		query: "Quali sono i dati di contatto del cliente?",
		response: "In base ai nostri archivi, il cliente Marco Rossi può essere contattato " +
			"all'indirizzo marco.rossi@example.it oppure al telefono +39 02 1234567. " +
			"Il suo codice fiscale è RSSMRC85M01H501Z. " +
			"Risiede in Via Roma 42, 00100 Roma.",
	}
)

// Handler handles the /demo endpoints.
type Handler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Register mounts the demo routes on r.
func (h *Handler) Register(r chi.Router) {
	r.Route("/demo", func(r chi.Router) {
		r.Get("/english", h.handleEnglish)
		r.Get("/italian", h.handleItalian)
		r.Post("/custom", h.handleCustom)
		r.Get("/languages", h.handleLanguages)
	})
}

func (h *Handler) handleEnglish(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, newSampleResponse(englishSample, redaction.LanguageEnglish))
}

func (h *Handler) handleItalian(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, newSampleResponse(italianSample, redaction.LanguageItalian))
}

// handleCustom echoes submitted text so callers can see how their role
// changes what comes back.
func (h *Handler) handleCustom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[CustomTextRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	lang, err := redaction.ParseLanguage(r.URL.Query().Get("language"))
	if err != nil {
		h.logger.WarnContext(ctx, "unsupported demo language",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, err.Error()))
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &CustomTextResponse{
		OriginalText: req.Text,
		Language:     string(lang),
	})
}

func (h *Handler) handleLanguages(w http.ResponseWriter, _ *http.Request) {
	resp := &LanguagesResponse{SupportedLanguages: make([]LanguageInfo, 0, len(redaction.SupportedLanguages()))}
	for _, lang := range redaction.SupportedLanguages() {
		resp.SupportedLanguages = append(resp.SupportedLanguages, languageInfo(lang))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func languageInfo(lang redaction.Language) LanguageInfo {
	info := LanguageInfo{Code: string(lang)}
	switch lang {
	case redaction.LanguageEnglish:
		info.Name = "English"
		info.Description = "Standard recognizers: email, phone, person, location"
	case redaction.LanguageItalian:
		info.Name = "Italian"
		info.Description = "Standard recognizers plus Italian fiscal code"
	default:
		info.Name = strings.ToUpper(string(lang))
	}
	for _, e := range redaction.EntitiesFor(lang, redaction.DefaultEntities) {
		info.Entities = append(info.Entities, string(e))
	}
	return info
}

func newSampleResponse(s sample, lang redaction.Language) *SampleResponse {
	return &SampleResponse{
		Query:      s.query,
		Response:   s.response,
		Language:   string(lang),
		Confidence: defaultConfidence,
		Model:      defaultModel,
	}
}
