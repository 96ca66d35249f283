package gatekeeper

import (
	"bytes"
	"context"
	"encoding/json"
	"mime"
	"net/http"
	"strconv"

	"gatekeeper/internal/identity"
	ratelimitmw "gatekeeper/internal/ratelimit/middleware"
	dErrors "gatekeeper/pkg/domain-errors"
	"gatekeeper/pkg/platform/httputil"
	"gatekeeper/pkg/platform/middleware/metadata"
	request "gatekeeper/pkg/platform/middleware/request"
)

// Middleware runs every request under next through the pipeline. The
// downstream response is buffered so it can be redacted before anything
// reaches the client. Only application/json bodies are inspected.
func Middleware(p *Pipeline) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			id, ok := identity.FromContext(ctx)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "identity required"))
				return
			}

			req := Request{
				Identity:    id,
				Method:      r.Method,
				Endpoint:    r.URL.Path,
				Language:    r.URL.Query().Get("language"),
				RequestSize: max(r.ContentLength, 0),
				RequestID:   request.GetRequestID(ctx),
				ClientIP:    metadata.GetClientIP(ctx),
				UserAgent:   metadata.GetUserAgent(ctx),
			}

			var captured *captureWriter
			out := p.Execute(ctx, req, func(ctx context.Context, _ Request) (Response, error) {
				captured = newCaptureWriter()
				next.ServeHTTP(captured, r.WithContext(ctx))
				return captured.response(), nil
			})

			if captured != nil && !out.Rejected() {
				copyHeaders(w.Header(), captured.header)
			}
			writeOutcome(w, out)
		})
	}
}

func writeOutcome(w http.ResponseWriter, out *Outcome) {
	ratelimitmw.AddRateLimitHeaders(w, out.RateLimit, out.Degraded)
	if out.Reason == ReasonRateLimited && out.RateLimit != nil {
		ratelimitmw.WriteRateLimitExceeded(w, out.RateLimit)
		return
	}
	if out.ContentType != "" {
		w.Header().Set("Content-Type", out.ContentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Payload)))
	w.WriteHeader(out.Status)
	_, _ = w.Write(out.Payload)
}

func copyHeaders(dst, src http.Header) {
	for k, vs := range src {
		switch http.CanonicalHeaderKey(k) {
		case "Content-Length", "Content-Type":
			continue
		}
		for _, v := range vs {
			dst.Add(k, v)
		}
	}
}

// captureWriter buffers a downstream response.
type captureWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newCaptureWriter() *captureWriter {
	return &captureWriter{header: make(http.Header)}
}

func (c *captureWriter) Header() http.Header {
	return c.header
}

func (c *captureWriter) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
}

func (c *captureWriter) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	return c.body.Write(b)
}

// response decodes JSON bodies for redaction and keeps everything else raw.
// A body that claims to be JSON but does not parse is passed through raw.
func (c *captureWriter) response() Response {
	resp := Response{
		Status:      c.status,
		ContentType: c.header.Get("Content-Type"),
	}
	if c.body.Len() == 0 {
		return resp
	}
	raw := c.body.Bytes()
	if !isJSON(resp.ContentType) {
		resp.Raw = raw
		return resp
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var body any
	if err := dec.Decode(&body); err != nil || dec.More() {
		resp.Raw = raw
		return resp
	}
	resp.Body = body
	resp.Encoded = raw
	return resp
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == contentTypeJSON
}
