package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gooseberrytechnovision/schooniverse-checkout/internal/logging"
	"github.com/google/uuid"
)

const (
	headerRequestID = "X-Request-Id"
	bodyLogLimit    = 8 << 10
	truncatedMark   = "...truncated..."
	redactedValue   = "***redacted***"
)

// Keys compared lower-case. Mobile numbers reach us on the checkout body.
var redactedKeys = map[string]struct{}{
	"password":        {},
	"authorization":   {},
	"token":           {},
	"secret":          {},
	"client_secret":   {},
	"access_token":    {},
	"api_key":         {},
	"customermobile":  {},
	"customer_mobile": {},
}

// Probes and scrapes are not worth a log line each.
var quietPaths = map[string]struct{}{
	"/healthz": {},
	"/metrics": {},
}

// cappedBuffer keeps at most bodyLogLimit bytes of what passes through it.
type cappedBuffer struct {
	bytes.Buffer
	overflow bool
}

func (b *cappedBuffer) keep(p []byte) {
	room := bodyLogLimit - b.Len()
	if room <= 0 {
		b.overflow = b.overflow || len(p) > 0
		return
	}
	if len(p) > room {
		p, b.overflow = p[:room], true
	}
	b.Write(p)
}

func (b *cappedBuffer) String() string {
	if b.overflow {
		return b.Buffer.String() + truncatedMark
	}
	return b.Buffer.String()
}

type teeWriter struct {
	gin.ResponseWriter
	copy *cappedBuffer
}

func (w *teeWriter) Write(p []byte) (int, error) {
	w.copy.keep(p)
	return w.ResponseWriter.Write(p)
}

func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, inner := range t {
			if _, secret := redactedKeys[strings.ToLower(k)]; secret {
				t[k] = redactedValue
			} else {
				t[k] = scrub(inner)
			}
		}
	case []any:
		for i := range t {
			t[i] = scrub(t[i])
		}
	}
	return v
}

// redact returns raw with secret fields masked. Non-JSON input comes back as is.
func redact(raw string) string {
	if strings.HasSuffix(raw, truncatedMark) {
		// Truncated JSON does not parse; log nothing rather than leak.
		return truncatedMark
	}
	var doc any
	if json.Unmarshal([]byte(raw), &doc) != nil {
		return raw
	}
	out, err := json.Marshal(scrub(doc))
	if err != nil {
		return raw
	}
	return string(out)
}

// captureRequest copies up to bodyLogLimit bytes of the request body and
// puts the full, unmodified body back for the handler.
func captureRequest(r *http.Request) string {
	if r.Body == nil || !isJSON(r.Header.Get("Content-Type")) {
		return ""
	}
	var head bytes.Buffer
	_, _ = io.CopyN(&head, r.Body, bodyLogLimit+1)
	seen := head.Bytes()

	if len(seen) <= bodyLogLimit {
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(seen))
		return string(seen)
	}
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(seen), r.Body), r.Body}
	return string(seen[:bodyLogLimit]) + truncatedMark
}

func isJSON(contentType string) bool {
	return strings.Contains(contentType, "application/json")
}

func requestID(c *gin.Context) string {
	id := c.GetHeader(headerRequestID)
	if id == "" {
		id = uuid.NewString()
		c.Request.Header.Set(headerRequestID, id)
	}
	c.Header(headerRequestID, id)
	return id
}

// Logging tags every request with a request id, stores a request-scoped
// logger on the gin context and writes one access line per request.
func Logging(base *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		log := base.With(
			slog.String("req_id", requestID(c)),
			slog.String("method", c.Request.Method),
			slog.String("route", c.FullPath()),
			slog.String("remote", c.ClientIP()),
		)
		logging.With(c, log)

		if _, quiet := quietPaths[c.Request.URL.Path]; quiet {
			c.Next()
			return
		}

		reqBody := captureRequest(c.Request)
		tee := &teeWriter{ResponseWriter: c.Writer, copy: &cappedBuffer{}}
		c.Writer = tee

		c.Next()

		status := c.Writer.Status()
		attrs := []slog.Attr{
			slog.Int("status", status),
			slog.Int64("dur_ms", time.Since(start).Milliseconds()),
			slog.Int("resp_bytes", c.Writer.Size()),
		}
		if reqBody != "" {
			attrs = append(attrs, slog.String("req_body", redact(reqBody)))
		}
		if isJSON(c.Writer.Header().Get("Content-Type")) && tee.copy.Len() > 0 {
			attrs = append(attrs, slog.String("resp_body", redact(tee.copy.String())))
		}
		for _, p := range c.Params {
			attrs = append(attrs, slog.String("param."+p.Key, p.Value))
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		level := slog.LevelInfo
		switch {
		case status >= http.StatusInternalServerError:
			level = slog.LevelError
		case status >= http.StatusBadRequest:
			level = slog.LevelWarn
		}
		log.LogAttrs(c.Request.Context(), level, "http_request", attrs...)
	}
}
