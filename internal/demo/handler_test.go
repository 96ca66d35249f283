package demo_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gatekeeper/internal/demo"
	"gatekeeper/pkg/testutil"
)

func newRouter() http.Handler {
	r := chi.NewRouter()
	demo.New(slog.New(slog.NewTextHandler(io.Discard, nil))).Register(r)
	return r
}

func serve(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	if body == "" {
		return testutil.DoRequest(newRouter(), httptest.NewRequest(method, target, nil))
	}
	return testutil.DoRequest(newRouter(), testutil.NewRequestWithBody(method, target, body))
}

func TestSampleEndpoints(t *testing.T) {
	tests := []struct {
		path     string
		language string
		contains string
	}{
		{path: "/demo/english", language: "en", contains: "john.smith@example.com"},
		{path: "/demo/italian", language: "it", contains: "RSSMRC85M01H501Z"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := serve(t, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body demo.SampleResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.language, body.Language)
			assert.Contains(t, body.Response, tt.contains)
			assert.Equal(t, 0.95, body.Confidence)
			assert.Equal(t, "gpt-4", body.Model)
			assert.NotEmpty(t, body.Query)
		})
	}
}

func TestCustom(t *testing.T) {
	t.Run("echoes text with default language", func(t *testing.T) {
		rec := serve(t, http.MethodPost, "/demo/custom", `{"text":"mail me at a@b.io"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"original_text":"mail me at a@b.io","language":"en"}`, rec.Body.String())
	})

	t.Run("accepts italian", func(t *testing.T) {
		rec := serve(t, http.MethodPost, "/demo/custom?language=IT", `{"text":"ciao"}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"original_text":"ciao","language":"it"}`, rec.Body.String())
	})

	t.Run("accepts a marshaled request", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/demo/custom", demo.CustomTextRequest{Text: "hello"})
		rec := testutil.DoRequest(newRouter(), req)
		require.Equal(t, http.StatusOK, rec.Code)
		resp := testutil.UnmarshalResponse[demo.CustomTextResponse](t, rec)
		assert.Equal(t, "hello", resp.OriginalText)
	})

	t.Run("rejects unsupported language", func(t *testing.T) {
		rec := serve(t, http.MethodPost, "/demo/custom?language=fr", `{"text":"bonjour"}`)
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("rejects empty text", func(t *testing.T) {
		rec := serve(t, http.MethodPost, "/demo/custom", `{"text":"  "}`)
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "validation_error")
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		rec := serve(t, http.MethodPost, "/demo/custom", `{"text":`)
		testutil.AssertStatusAndError(t, rec, http.StatusBadRequest, "bad_request")
	})
}

func TestLanguages(t *testing.T) {
	rec := serve(t, http.MethodGet, "/demo/languages", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var body demo.LanguagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.SupportedLanguages, 2)
	assert.Equal(t, "en", body.SupportedLanguages[0].Code)
	assert.NotContains(t, body.SupportedLanguages[0].Entities, "IT_FISCAL_CODE")
	assert.Equal(t, "it", body.SupportedLanguages[1].Code)
	assert.Contains(t, body.SupportedLanguages[1].Entities, "IT_FISCAL_CODE")
}
