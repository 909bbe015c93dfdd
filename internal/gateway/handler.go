// Package gateway adapts inbound HTTP traffic onto the policy
// pipeline: it captures the request, runs the orchestrator, and writes
// the resulting response.
package gateway

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/vyrodovalexey/policygw/internal/apierror"
	"github.com/vyrodovalexey/policygw/internal/observability"
	"github.com/vyrodovalexey/policygw/internal/pipeline"
)

// Handler is the data-plane http.Handler.
type Handler struct {
	orchestrator *pipeline.Orchestrator
	logger       observability.Logger
	maxBodyBytes int64
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHandlerLogger sets the logger.
func WithHandlerLogger(logger observability.Logger) HandlerOption {
	return func(h *Handler) {
		h.logger = logger
	}
}

// WithMaxBodyBytes caps the buffered request body size. Zero means no
// cap.
func WithMaxBodyBytes(n int64) HandlerOption {
	return func(h *Handler) {
		h.maxBodyBytes = n
	}
}

// NewHandler creates a handler running requests through the given
// orchestrator.
func NewHandler(orchestrator *pipeline.Orchestrator, opts ...HandlerOption) *Handler {
	h := &Handler{
		orchestrator: orchestrator,
		logger:       observability.NopLogger(),
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, err := h.readBody(r)
	if err != nil {
		h.logger.Warn("failed to buffer request body",
			observability.String("path", r.URL.Path),
			observability.Error(err),
		)
		h.writeError(w, apierror.New(apierror.KindBadRequest, apierror.CodeBadRequest,
			"request body too large or unreadable"))
		return
	}

	req := &pipeline.Request{
		Method:   r.Method,
		Path:     r.URL.Path,
		ClientIP: clientIP(r),
		Headers:  r.Header,
		Query:    r.URL.Query(),
		Body:     body,
	}

	resp := h.orchestrator.Handle(r.Context(), req)

	for name, values := range resp.Headers {
		w.Header()[name] = values
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(resp.Body); err != nil {
		h.logger.Debug("failed to write response", observability.Error(err))
	}
}

// writeError emits the {code, message, status} error body for faults
// caught before the pipeline runs.
func (h *Handler) writeError(w http.ResponseWriter, aerr *apierror.Error) {
	body, err := json.Marshal(aerr.ResponseBody())
	if err != nil {
		body = []byte(`{"code":"GATEWAY_ERROR","message":"internal gateway error","status":500}`)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(aerr.Kind.HTTPStatus())
	if _, err := w.Write(body); err != nil {
		h.logger.Debug("failed to write error response", observability.Error(err))
	}
}

func (h *Handler) readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	reader := io.Reader(r.Body)
	if h.maxBodyBytes > 0 {
		reader = io.LimitReader(r.Body, h.maxBodyBytes+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if h.maxBodyBytes > 0 && int64(len(body)) > h.maxBodyBytes {
		return nil, errBodyTooLarge
	}
	return body, nil
}

var errBodyTooLarge = &tooLargeError{}

type tooLargeError struct{}

func (e *tooLargeError) Error() string { return "request body exceeds limit" }

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first := strings.TrimSpace(strings.Split(forwarded, ",")[0])
		if first != "" {
			return first
		}
	}
	if realIP := r.Header.Get("X-Real-Ip"); realIP != "" {
		return realIP
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
