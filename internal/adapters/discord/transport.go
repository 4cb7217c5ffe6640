package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// GatewayClient connects to the Discord Gateway and streams events.
type GatewayClient struct {
	botToken  string
	intents   int
	rest      *Client
	conn      *websocket.Conn
	sessionID string
	seq       *int
	hb        *heartbeat
	stopCh    chan struct{}
	mu        sync.Mutex
	log       *slog.Logger
}

// heartbeat is the per-connection heartbeat state. Each Connect gets a
// fresh one so reconnects never leave an old loop or ticker running.
type heartbeat struct {
	tick *time.Ticker
	stop chan struct{}
	done chan struct{}
}

// NewGatewayClient creates a gateway client with the given intents.
func NewGatewayClient(botToken string, intents int) *GatewayClient {
	return &GatewayClient{
		botToken: botToken,
		intents:  intents,
		rest:     NewClient(botToken),
		stopCh:   make(chan struct{}),
		log:      logging.WithComponent("discord.gateway"),
	}
}

// Connect establishes the WebSocket connection and completes the
// HELLO/IDENTIFY handshake.
func (g *GatewayClient) Connect(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Tear down the previous connection's heartbeat before handshaking a
	// new one, or every reconnect stacks another loop and ticker.
	g.stopHeartbeatLocked()
	if g.conn != nil {
		_ = g.conn.Close()
		g.conn = nil
	}

	gatewayURL, err := g.rest.GetGatewayURL(ctx)
	if err != nil {
		return fmt.Errorf("get gateway url: %w", err)
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, _, err := dialer.DialContext(ctx, gatewayURL+"?v=10&encoding=json", nil)
	if err != nil {
		return fmt.Errorf("dial gateway: %w", err)
	}

	g.conn = conn
	g.log.Info("connected to gateway")

	if err := g.handleHello(); err != nil {
		_ = g.conn.Close()
		g.conn = nil
		return fmt.Errorf("handle hello: %w", err)
	}

	return nil
}

// handleHello waits for the HELLO frame, sends IDENTIFY and starts the
// heartbeat loop.
func (g *GatewayClient) handleHello() error {
	deadline := time.Now().Add(10 * time.Second)
	_ = g.conn.SetReadDeadline(deadline)
	defer func() { _ = g.conn.SetReadDeadline(time.Time{}) }()

	var event GatewayEvent
	if err := g.conn.ReadJSON(&event); err != nil {
		return fmt.Errorf("read hello: %w", err)
	}
	if event.Op != OpcodeHello {
		return fmt.Errorf("expected hello opcode %d, got %d", OpcodeHello, event.Op)
	}

	var hello Hello
	data, _ := json.Marshal(event.D)
	if err := json.Unmarshal(data, &hello); err != nil {
		return fmt.Errorf("parse hello: %w", err)
	}

	identify := Identify{
		Op: OpcodeIdentify,
		D: IdentifyData{
			Token:   g.botToken,
			Intents: g.intents,
			Properties: map[string]string{
				"os":      "linux",
				"browser": "worklogd",
				"device":  "worklogd",
			},
		},
	}
	if err := g.conn.WriteJSON(identify); err != nil {
		return fmt.Errorf("send identify: %w", err)
	}

	g.log.Info("sent IDENTIFY", slog.Int("heartbeat_interval", hello.HeartbeatInterval))

	g.startHeartbeat(time.Duration(hello.HeartbeatInterval) * time.Millisecond)

	return nil
}

// startHeartbeat installs a fresh heartbeat for the current connection.
// Caller must hold g.mu.
func (g *GatewayClient) startHeartbeat(interval time.Duration) {
	hb := &heartbeat{
		tick: time.NewTicker(interval),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	g.hb = hb
	go g.heartbeatLoop(hb)
}

// stopHeartbeatLocked stops the current heartbeat, if any. Caller must
// hold g.mu. It does not wait for the loop to exit; the loop may be
// blocked acquiring g.mu.
func (g *GatewayClient) stopHeartbeatLocked() {
	if g.hb == nil {
		return
	}
	close(g.hb.stop)
	g.hb.tick.Stop()
	g.hb = nil
}

// heartbeatLoop sends periodic heartbeats carrying the last sequence,
// until its own connection is torn down or the client closes.
func (g *GatewayClient) heartbeatLoop(hb *heartbeat) {
	defer close(hb.done)
	defer hb.tick.Stop()

	for {
		select {
		case <-hb.stop:
			return
		case <-g.stopCh:
			return
		case <-hb.tick.C:
			g.mu.Lock()
			if g.conn == nil || g.hb != hb {
				g.mu.Unlock()
				return
			}
			_ = g.conn.WriteJSON(Heartbeat{Op: OpcodeHeartbeat, D: g.seq})
			g.mu.Unlock()
		}
	}
}

// Listen returns a channel of incoming events. The channel closes when
// the connection drops or ctx is cancelled; the caller owns reconnection.
func (g *GatewayClient) Listen(ctx context.Context) (<-chan GatewayEvent, error) {
	if g.conn == nil {
		return nil, fmt.Errorf("not connected")
	}

	out := make(chan GatewayEvent, 64)

	go func() {
		defer close(out)

		for {
			select {
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			default:
			}

			var event GatewayEvent
			if err := g.conn.ReadJSON(&event); err != nil {
				g.log.Warn("read event error", slog.Any("error", err))
				return
			}

			// Track sequence number for RESUME.
			if event.S != nil {
				g.mu.Lock()
				g.seq = event.S
				g.mu.Unlock()
			}

			// Track session ID on READY.
			if event.T != nil && *event.T == "READY" {
				var ready Ready
				data, _ := json.Marshal(event.D)
				if err := json.Unmarshal(data, &ready); err == nil {
					g.mu.Lock()
					g.sessionID = ready.SessionID
					g.mu.Unlock()
					g.log.Info("received READY", slog.String("session_id", ready.SessionID))
				}
			}

			select {
			case out <- event:
			case <-ctx.Done():
				return
			case <-g.stopCh:
				return
			}
		}
	}()

	return out, nil
}

// Resume attempts to resume the session after a reconnect.
func (g *GatewayClient) Resume(ctx context.Context) error {
	g.mu.Lock()
	if g.conn == nil || g.sessionID == "" || g.seq == nil {
		g.mu.Unlock()
		return fmt.Errorf("cannot resume: missing session")
	}

	resume := Resume{
		Op: OpcodeResume,
		D: ResumeData{
			Token:     g.botToken,
			SessionID: g.sessionID,
			Seq:       *g.seq,
		},
	}
	g.mu.Unlock()

	if err := g.conn.WriteJSON(resume); err != nil {
		return fmt.Errorf("send resume: %w", err)
	}

	g.log.Info("sent RESUME", slog.String("session_id", g.sessionID))
	return nil
}

// Close tears down the connection and stops the heartbeat. Safe to call
// more than once.
func (g *GatewayClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopHeartbeatLocked()
	select {
	case <-g.stopCh:
	default:
		close(g.stopCh)
	}
	if g.conn != nil {
		err := g.conn.Close()
		g.conn = nil
		return err
	}
	return nil
}
