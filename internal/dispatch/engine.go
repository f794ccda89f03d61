package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/relaymux/relaymux/backends"
	"github.com/relaymux/relaymux/internal/logging"
	"github.com/relaymux/relaymux/internal/metrics"
	"github.com/relaymux/relaymux/internal/state"
)

// Endpoint names the OpenAI-compatible surface a request came in on.
type Endpoint string

// Dispatchable endpoints.
const (
	EndpointChat       Endpoint = "chat"
	EndpointEmbeddings Endpoint = "embeddings"
)

// Embeddings always post to the standard path; only chat paths are
// configurable per backend.
const embeddingsPath = "/v1/embeddings"

// Headers copied from the caller onto the upstream request. Everything else
// (caller auth included) is stripped; the backend's own credential is added.
var forwardedHeaders = []string{"Content-Type", "Accept", "Accept-Encoding"}

// Engine forwards a request to candidate backends in priority order until one
// succeeds terminally, classifying each upstream outcome and recording
// cooldowns for rate-limited backends. Attempts within a request are strictly
// sequential; there is no fan-out and no inter-attempt backoff.
type Engine struct {
	states       *state.Manager
	defaultModel string
	client       *http.Client
	now          func() time.Time
}

// NewEngine creates a dispatch engine. No client timeout is imposed beyond
// the transport's defaults; callers needing bounded latency impose it
// externally (or via WithClient).
func NewEngine(states *state.Manager, defaultModel string) *Engine {
	return &Engine{
		states:       states,
		defaultModel: defaultModel,
		client:       &http.Client{},
		now:          time.Now,
	}
}

// WithClient replaces the upstream HTTP client.
func (e *Engine) WithClient(c *http.Client) *Engine {
	e.client = c
	return e
}

// WithClock replaces the time source, for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// upstreamReply is a fully buffered upstream response, kept around so an
// exhausted candidate loop can replay the last retryable reply to the caller.
type upstreamReply struct {
	status          int
	contentType     string
	contentEncoding string
	body            []byte
}

// Dispatch runs the failover loop over cands for the caller's request and
// writes the response. The request body is read once and re-sent per
// candidate with the model field overridden to the candidate's own model id.
func (e *Engine) Dispatch(w http.ResponseWriter, r *http.Request, cands []backends.Backend, ep Endpoint) {
	ctx := r.Context()
	log := logging.FromContext(ctx)

	if len(cands) == 0 {
		metrics.RequestsTotal.WithLabelValues(string(ep), "no_backends").Inc()
		writeError(w, http.StatusServiceUnavailable, "No backends configured", "server_error")
		return
	}
	metrics.CandidatesSelected.Observe(float64(len(cands)))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "reading request body: "+err.Error(), "invalid_request_error")
		return
	}
	fields := map[string]json.RawMessage{}
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "request body must be a JSON object", "invalid_request_error")
			return
		}
	}
	stream := false
	if ep == EndpointChat {
		if raw, ok := fields["stream"]; ok {
			_ = json.Unmarshal(raw, &stream)
		}
	}

	var last *upstreamReply
	for _, b := range cands {
		resp, err := e.forward(ctx, b, ep, fields, r.Header)
		if err != nil {
			// Transport failure: retryable, nothing to persist.
			log.Warn("upstream attempt failed",
				"provider", b.ProviderID, "model", b.Model, "error", err.Error())
			metrics.FailoverTotal.WithLabelValues(b.ProviderID, b.Model, "transport").Inc()
			continue
		}

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			if stream {
				metrics.RequestsTotal.WithLabelValues(string(ep), "success").Inc()
				log.Info("stream relay started", "provider", b.ProviderID, "model", b.Model)
				e.relay(w, resp, log)
				return
			}
			e.succeed(ctx, w, resp, b, ep, log)
			return

		case resp.StatusCode == http.StatusTooManyRequests:
			reply := drain(resp)
			last = &reply
			unblockAt, serr := e.states.MarkRateLimited(ctx, b.UsageKey(), b.Cooldown, e.now())
			if serr != nil {
				log.Error("persisting cooldown failed",
					"provider", b.ProviderID, "model", b.Model, "error", serr.Error())
			} else {
				log.Warn("backend rate limited, cooling down",
					"provider", b.ProviderID, "model", b.Model, "unblock_at", unblockAt)
			}
			metrics.CooldownsScheduled.WithLabelValues(b.ProviderID, b.Model).Inc()
			metrics.FailoverTotal.WithLabelValues(b.ProviderID, b.Model, "rate_limited").Inc()
			continue

		case resp.StatusCode >= 500 && resp.StatusCode < 600:
			reply := drain(resp)
			last = &reply
			log.Warn("upstream server error",
				"provider", b.ProviderID, "model", b.Model, "status", resp.StatusCode)
			metrics.FailoverTotal.WithLabelValues(b.ProviderID, b.Model, "server_error").Inc()
			continue

		default:
			// Client-shaped errors are not backend-specific: pass the
			// upstream's own status and body through and stop retrying.
			reply := drain(resp)
			log.Info("upstream terminal response",
				"provider", b.ProviderID, "model", b.Model, "status", reply.status)
			metrics.RequestsTotal.WithLabelValues(string(ep), "terminal").Inc()
			writeReply(w, reply)
			return
		}
	}

	metrics.RequestsTotal.WithLabelValues(string(ep), "exhausted").Inc()
	if last != nil {
		log.Warn("all candidates exhausted, replaying last retryable response", "status", last.status)
		writeReply(w, *last)
		return
	}
	log.Warn("all candidates exhausted with no upstream response")
	writeError(w, http.StatusServiceUnavailable, "Service unavailable", "server_error")
}

// forward sends one attempt to backend b and returns the raw response.
func (e *Engine) forward(ctx context.Context, b backends.Backend, ep Endpoint, fields map[string]json.RawMessage, hdr http.Header) (*http.Response, error) {
	payload := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		payload[k] = v
	}
	model, err := json.Marshal(b.Model)
	if err != nil {
		return nil, fmt.Errorf("encoding model id: %w", err)
	}
	payload["model"] = model
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding upstream payload: %w", err)
	}

	path := b.ChatPath
	if ep == EndpointEmbeddings {
		path = embeddingsPath
	}
	url := strings.TrimRight(b.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building upstream request: %w", err)
	}
	for _, name := range forwardedHeaders {
		if v := hdr.Get(name); v != "" {
			req.Header.Set(name, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+b.APIKey)
	}

	start := time.Now()
	resp, err := e.client.Do(req)
	metrics.UpstreamDuration.WithLabelValues(b.ProviderID, b.Model).Observe(time.Since(start).Seconds())
	return resp, err
}

// succeed buffers a non-streaming 2xx response, records token usage, rewrites
// the model alias, and writes the result to the caller.
func (e *Engine) succeed(ctx context.Context, w http.ResponseWriter, resp *http.Response, b backends.Backend, ep Endpoint, log *slog.Logger) {
	reply := drain(resp)

	// Usage accounting runs on the raw body, before the alias rewrite.
	var parsed struct {
		Usage struct {
			TotalTokens int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(reply.body, &parsed); err == nil && parsed.Usage.TotalTokens > 0 {
		if err := e.states.RecordUsage(ctx, b.UsageKey(), parsed.Usage.TotalTokens, b.MaxTokens, b.Cooldown, e.now()); err != nil {
			log.Error("recording backend usage failed",
				"provider", b.ProviderID, "model", b.Model, "error", err.Error())
		}
	}

	reply.body = RewriteModel(reply.body, e.defaultModel, ep == EndpointEmbeddings)
	metrics.RequestsTotal.WithLabelValues(string(ep), "success").Inc()
	log.Info("request completed",
		"provider", b.ProviderID, "model", b.Model,
		"status", reply.status, "tokens", parsed.Usage.TotalTokens)
	writeReply(w, reply)
}

// relay pipes a streaming upstream body to the caller verbatim, flushing as
// bytes arrive. It returns when the upstream stream ends or the client
// disconnects (which also cancels the upstream call via the request context).
func (e *Engine) relay(w http.ResponseWriter, resp *http.Response, log *slog.Logger) {
	defer resp.Body.Close()

	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		ct = "text/event-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(resp.StatusCode)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, 32*1024)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			if err != io.EOF {
				log.Warn("stream relay interrupted", "error", err.Error())
			}
			return
		}
	}
}

// drain buffers and closes an upstream response body.
func drain(resp *http.Response) upstreamReply {
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return upstreamReply{
		status:          resp.StatusCode,
		contentType:     resp.Header.Get("Content-Type"),
		contentEncoding: resp.Header.Get("Content-Encoding"),
		body:            data,
	}
}

// writeReply propagates an upstream status, content headers, and body.
func writeReply(w http.ResponseWriter, reply upstreamReply) {
	if reply.contentType != "" {
		w.Header().Set("Content-Type", reply.contentType)
	}
	if reply.contentEncoding != "" {
		w.Header().Set("Content-Encoding", reply.contentEncoding)
	}
	w.WriteHeader(reply.status)
	_, _ = w.Write(reply.body)
}

// writeError writes a gateway-originated OpenAI-style JSON error envelope.
func writeError(w http.ResponseWriter, status int, message, errType string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    errType,
		},
	})
}
