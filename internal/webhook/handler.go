package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/checkpointhq/checkpoint/internal/observability"
)

// maxBodyBytes bounds inbound payloads; provider events are small.
const maxBodyBytes = 1 << 20

// Handler is the HTTP endpoint for inbound payment-provider webhooks.
// Response codes are the provider's only feedback channel: 200 acknowledges
// (including unknown event types), 401 rejects authentication, 500 asks the
// provider to redeliver. No internal detail leaks in response bodies.
type Handler struct {
	provider  string
	verifier  *Verifier // nil when no shared secret is configured
	processor *Processor
	replay    *ReplayCache // optional
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

func WithReplayCache(c *ReplayCache) HandlerOption {
	return func(h *Handler) { h.replay = c }
}

func WithHandlerMetrics(m *observability.Metrics) HandlerOption {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler creates the webhook endpoint. Pass a nil verifier when the
// shared secret is not configured; the endpoint then fails closed with 500
// before looking at any payload.
func NewHandler(provider string, verifier *Verifier, processor *Processor, logger *slog.Logger, opts ...HandlerOption) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		provider:  provider,
		verifier:  verifier,
		processor: processor,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type receivedResponse struct {
	Received bool `json:"received"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// ServeHTTP implements the provider callback endpoint.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.metrics != nil {
		h.metrics.WebhooksReceived.Inc()
	}
	logger := observability.LoggerFromContext(r.Context())

	if h.verifier == nil {
		logger.Error("webhook secret not configured, rejecting delivery", "provider", h.provider)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "webhook processing unavailable"})
		return
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Error("failed to read webhook body", "error", err)
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to read request"})
		return
	}

	eventID := r.Header.Get(HeaderEventID)
	timestamp := r.Header.Get(HeaderTimestamp)
	signature := r.Header.Get(HeaderSignature)

	if err := h.verifier.Verify(eventID, timestamp, raw, signature); err != nil {
		logger.Warn("webhook signature verification failed",
			"provider", h.provider,
			"event_id", eventID,
			"error", err,
		)
		if h.metrics != nil {
			h.metrics.WebhooksRejected.Inc()
		}
		respondJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid signature"})
		return
	}

	// The body is authenticated; only now is it parsed as structured data.
	env, err := ParseEnvelope(raw)
	if err != nil {
		// An authenticated but malformed payload: redelivery would carry
		// the same bytes, so acknowledge after logging.
		logger.Error("malformed webhook payload from verified sender",
			"provider", h.provider,
			"event_id", eventID,
			"error", err,
		)
		respondJSON(w, http.StatusOK, receivedResponse{Received: true})
		return
	}

	if h.replay != nil && env.EventID != "" {
		seen, rerr := h.replay.MarkSeen(r.Context(), h.provider, env.EventID)
		if rerr != nil {
			logger.Warn("replay cache unavailable", "error", rerr)
		} else if seen {
			logger.Info("duplicate webhook delivery",
				"provider", h.provider,
				"event_id", env.EventID,
				"event_type", env.EventType,
			)
			if h.metrics != nil {
				h.metrics.WebhooksDuplicate.Inc()
			}
		}
	}

	if err := h.processor.Process(r.Context(), env, raw); err != nil {
		logger.Error("webhook processing failed",
			"provider", h.provider,
			"event_id", env.EventID,
			"event_type", env.EventType,
			"error", err,
		)
		// 500 lets the provider redeliver; the transition is idempotent.
		respondJSON(w, http.StatusInternalServerError, errorResponse{Error: "processing failed"})
		return
	}

	respondJSON(w, http.StatusOK, receivedResponse{Received: true})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
