package gateway

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/tracker"
)

// secretHeader carries the optional shared webhook secret.
const secretHeader = "X-Webhook-Secret"

// Completer finishes a closed session through the shared pipeline.
type Completer interface {
	Complete(ctx context.Context, cs tracker.ClosedSession) error
}

// voiceActivityPayload is the externally reported session.
type voiceActivityPayload struct {
	UserID          string  `json:"user_id"`
	ChannelID       string  `json:"channel_id"`
	ChannelName     string  `json:"channel_name,omitempty"`
	DurationMinutes float64 `json:"duration_minutes"`
}

// WebhookHandler ingests externally measured voice sessions. The reported
// duration is trusted; the start time is synthesized as now minus the
// duration, which shifts the worklog start by however long the reporter
// buffered the event.
type WebhookHandler struct {
	store     *store.Store
	completer Completer
	secret    string
	collector *metrics.Collector
	log       *slog.Logger
}

// NewWebhookHandler creates the voice-activity webhook handler.
func NewWebhookHandler(st *store.Store, completer Completer, secret string, collector *metrics.Collector) *WebhookHandler {
	return &WebhookHandler{
		store:     st,
		completer: completer,
		secret:    secret,
		collector: collector,
		log:       logging.WithComponent("webhook"),
	}
}

// ServeHTTP implements http.Handler for POST /webhook/voice-activity.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	code := h.handle(w, r)
	h.collector.ObserveWebhook(strconv.Itoa(code))
}

// handle processes the request and returns the status code it wrote.
func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) int {
	if r.Method != http.MethodPost {
		return writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}

	if h.secret != "" {
		got := r.Header.Get(secretHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			return writeError(w, http.StatusUnauthorized, "invalid webhook secret")
		}
	}

	var payload voiceActivityPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return writeError(w, http.StatusBadRequest, "invalid JSON payload")
	}
	if payload.UserID == "" || payload.ChannelID == "" {
		return writeError(w, http.StatusBadRequest, "user_id and channel_id are required")
	}
	if payload.DurationMinutes <= 0 {
		return writeError(w, http.StatusBadRequest, "duration_minutes must be positive")
	}

	task, ok := h.store.Snapshot().Task(payload.ChannelID)
	if !ok {
		return writeError(w, http.StatusNotFound,
			fmt.Sprintf("no task mapping for channel %s", payload.ChannelID))
	}

	now := time.Now()
	duration := time.Duration(payload.DurationMinutes * float64(time.Minute))
	cs := tracker.ClosedSession{
		Session: tracker.Session{
			UserID:      payload.UserID,
			DisplayName: payload.UserID,
			ChannelID:   payload.ChannelID,
			ChannelName: payload.ChannelName,
			Task:        task,
			StartedAt:   now.Add(-duration),
		},
		EndedAt: now,
	}

	h.log.Info("webhook session received",
		slog.String("user_id", payload.UserID),
		slog.String("channel_id", payload.ChannelID),
		slog.Float64("duration_minutes", payload.DurationMinutes))

	if err := h.completer.Complete(r.Context(), cs); err != nil {
		h.log.Error("webhook session failed downstream", slog.Any("error", err))
		return writeError(w, http.StatusBadGateway, "failed to record worklog")
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "success"})
	return http.StatusOK
}

// writeError writes the JSON error envelope and returns the code.
func writeError(w http.ResponseWriter, code int, msg string) int {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "error",
		"message": msg,
	})
	return code
}
