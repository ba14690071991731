package logger

import (
	"bytes"
	"io"
	log "log/slog"
	"net/http"
	"strings"
	"time"
)

const bodyLimit = 1000

// HTTPTransport 记录对外 HTTP 调用, 令牌类字段不落日志
type HTTPTransport struct {
	Transport http.RoundTripper
}

func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout:   timeout,
		Transport: &HTTPTransport{Transport: http.DefaultTransport},
	}
}

func (t *HTTPTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()

	next := t.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	resp, err := next.RoundTrip(req)
	elapsed := time.Since(start)

	fields := []any{
		log.String("method", req.Method),
		log.String("host", req.URL.Host),
		log.String("path", req.URL.Path),
		log.Duration("latency", elapsed),
	}

	if err != nil {
		log.ErrorContext(req.Context(), "HTTP_CALL_ERROR", append(fields, log.Any("err", err))...)
		return nil, err
	}
	fields = append(fields, log.Int("status", resp.StatusCode))

	if resp.StatusCode >= http.StatusBadRequest && resp.Body != nil {
		resBody, _ := io.ReadAll(resp.Body)
		resp.Body = io.NopCloser(bytes.NewBuffer(resBody))
		fields = append(fields, log.String("res_body", truncate(string(resBody))))
		log.WarnContext(req.Context(), "HTTP_CALL_FAILED", fields...)
		return resp, nil
	}

	if elapsed > 500*time.Millisecond {
		log.WarnContext(req.Context(), "HTTP_CALL_SLOW", fields...)
	} else {
		log.InfoContext(req.Context(), "HTTP_CALL", fields...)
	}
	return resp, nil
}

func truncate(s string) string {
	if strings.Contains(s, "token") {
		return "[PROTECTED]"
	}
	if len(s) > bodyLimit {
		return s[:bodyLimit] + "...[truncated]"
	}
	return s
}
