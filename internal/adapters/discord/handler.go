package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/comms"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/tracker"
)

// Completer finishes a closed session: threshold gate, submission chain
// and notification.
type Completer interface {
	Complete(ctx context.Context, cs tracker.ClosedSession) error
}

// ChannelResolver resolves a channel ID to its metadata.
type ChannelResolver interface {
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
}

// VoiceHandler consumes gateway events and drives the session registry:
// joins open sessions, leaves and switches close them through the
// pipeline, messages feed the command handler.
type VoiceHandler struct {
	gateway   *GatewayClient
	registry  *tracker.Registry
	completer Completer
	store     *store.Store
	notifier  comms.Notifier
	commands  *comms.CommandHandler
	channels  ChannelResolver
	collector *metrics.Collector
	log       *slog.Logger

	mu        sync.Mutex
	botUserID string
	nameCache map[string]string
}

// NewVoiceHandler wires the presence adapter.
func NewVoiceHandler(gateway *GatewayClient, registry *tracker.Registry, completer Completer, st *store.Store, notifier comms.Notifier, commands *comms.CommandHandler, channels ChannelResolver, collector *metrics.Collector) *VoiceHandler {
	return &VoiceHandler{
		gateway:   gateway,
		registry:  registry,
		completer: completer,
		store:     st,
		notifier:  notifier,
		commands:  commands,
		channels:  channels,
		collector: collector,
		log:       logging.WithComponent("discord.voice"),
		nameCache: make(map[string]string),
	}
}

// Run connects to the gateway and processes events until ctx is
// cancelled, reconnecting with backoff on connection loss.
func (h *VoiceHandler) Run(ctx context.Context) error {
	backoff := time.Second

	for {
		if err := h.runOnce(ctx); err != nil && ctx.Err() == nil {
			h.log.Warn("gateway connection lost, reconnecting",
				slog.Any("error", err), slog.Duration("backoff", backoff))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func (h *VoiceHandler) runOnce(ctx context.Context) error {
	if err := h.gateway.Connect(ctx); err != nil {
		return err
	}
	events, err := h.gateway.Listen(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-events:
			if !ok {
				return fmt.Errorf("event stream closed")
			}
			h.processEvent(ctx, event)
		}
	}
}

// processEvent dispatches one gateway event.
func (h *VoiceHandler) processEvent(ctx context.Context, event GatewayEvent) {
	if event.Op != OpcodeDispatch || event.T == nil {
		return
	}

	switch *event.T {
	case "READY":
		var ready Ready
		if err := decodeEvent(event.D, &ready); err != nil {
			h.log.Warn("failed to parse READY", slog.Any("error", err))
			return
		}
		h.mu.Lock()
		h.botUserID = ready.User.ID
		h.mu.Unlock()

	case "VOICE_STATE_UPDATE":
		var vs VoiceState
		if err := decodeEvent(event.D, &vs); err != nil {
			h.log.Warn("failed to parse voice state", slog.Any("error", err))
			return
		}
		h.HandleVoiceState(ctx, vs)

	case "MESSAGE_CREATE":
		var msg MessageCreate
		if err := decodeEvent(event.D, &msg); err != nil {
			h.log.Warn("failed to parse message", slog.Any("error", err))
			return
		}
		if msg.Author.Bot || h.isSelf(msg.Author.ID) {
			return
		}
		h.commands.HandleMessage(ctx, comms.Message{
			ChannelID:   msg.ChannelID,
			UserID:      msg.Author.ID,
			DisplayName: msg.Author.Username,
			Content:     msg.Content,
		})
	}
}

// HandleVoiceState applies one presence change to the registry. Voice
// state updates also fire on mute and deafen toggles; staying in the same
// channel is a no-op so those never split a session.
func (h *VoiceHandler) HandleVoiceState(ctx context.Context, vs VoiceState) {
	if vs.Member != nil && vs.Member.User.Bot {
		return
	}
	if h.isSelf(vs.UserID) {
		return
	}

	now := time.Now()

	if active, ok := h.registry.Active(vs.UserID); ok && active.ChannelID == vs.ChannelID {
		return
	}

	// Leave or switch: close first so a switch bills the old channel.
	if cs, ok := h.registry.Close(vs.UserID, now); ok {
		h.collector.ObserveSession(metrics.SessionClosed)
		h.log.Info("voice session closed",
			slog.String("user_id", cs.UserID),
			slog.String("channel_id", cs.ChannelID))
		go func() {
			if err := h.completer.Complete(ctx, cs); err != nil {
				h.log.Error("session completion failed",
					slog.String("user_id", cs.UserID), slog.Any("error", err))
			}
		}()
	}

	if vs.ChannelID == "" {
		return
	}

	task, ok := h.store.Snapshot().Task(vs.ChannelID)
	if !ok {
		h.log.Debug("join in unmapped channel ignored",
			slog.String("user_id", vs.UserID),
			slog.String("channel_id", vs.ChannelID))
		return
	}

	sess := tracker.Session{
		UserID:      vs.UserID,
		DisplayName: memberDisplayName(vs.Member, vs.UserID),
		ChannelID:   vs.ChannelID,
		ChannelName: h.channelName(ctx, vs.ChannelID),
		Task:        task,
		StartedAt:   now,
	}
	if !h.registry.Open(sess) {
		h.collector.ObserveSession(metrics.SessionRejected)
		return
	}
	h.collector.ObserveSession(metrics.SessionOpened)
	h.log.Info("voice session opened",
		slog.String("user_id", vs.UserID),
		slog.String("channel_id", vs.ChannelID),
		slog.String("issue", task.IssueKey))

	if err := h.notifier.Notify(ctx, vs.UserID, fmt.Sprintf(
		"Started tracking time in %s against %s.", sess.ChannelName, task.IssueKey)); err != nil {
		h.collector.ObserveNotifyFailure()
		h.log.Warn("start notification failed",
			slog.String("user_id", vs.UserID), slog.Any("error", err))
	}
}

func (h *VoiceHandler) isSelf(userID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.botUserID != "" && userID == h.botUserID
}

// channelName resolves and caches a channel's display name, falling back
// to the raw ID when the lookup fails.
func (h *VoiceHandler) channelName(ctx context.Context, channelID string) string {
	h.mu.Lock()
	if name, ok := h.nameCache[channelID]; ok {
		h.mu.Unlock()
		return name
	}
	h.mu.Unlock()

	channel, err := h.channels.GetChannel(ctx, channelID)
	if err != nil || channel.Name == "" {
		return channelID
	}

	h.mu.Lock()
	h.nameCache[channelID] = channel.Name
	h.mu.Unlock()
	return channel.Name
}

func memberDisplayName(member *Member, fallback string) string {
	if member == nil {
		return fallback
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User.Username != "" {
		return member.User.Username
	}
	return fallback
}

// decodeEvent re-marshals the untyped event payload into its typed form.
func decodeEvent(d interface{}, v interface{}) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
