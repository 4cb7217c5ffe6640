package discord

import (
	"context"
	"fmt"
	"sync"
)

// DMNotifier delivers notifications as direct messages. It implements
// comms.Notifier.
type DMNotifier struct {
	client *Client

	mu      sync.Mutex
	dmCache map[string]string // user ID → DM channel ID
}

// NewDMNotifier creates a DM-based notifier.
func NewDMNotifier(client *Client) *DMNotifier {
	return &DMNotifier{
		client:  client,
		dmCache: make(map[string]string),
	}
}

// Notify opens (or reuses) the user's DM channel and sends the text.
func (n *DMNotifier) Notify(ctx context.Context, userID, text string) error {
	channelID, err := n.dmChannel(ctx, userID)
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}

	if _, err := n.client.SendMessage(ctx, channelID, text); err != nil {
		// The cached channel may have gone stale; drop it so the next
		// attempt reopens the DM.
		n.mu.Lock()
		delete(n.dmCache, userID)
		n.mu.Unlock()
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

func (n *DMNotifier) dmChannel(ctx context.Context, userID string) (string, error) {
	n.mu.Lock()
	if id, ok := n.dmCache[userID]; ok {
		n.mu.Unlock()
		return id, nil
	}
	n.mu.Unlock()

	channel, err := n.client.CreateDM(ctx, userID)
	if err != nil {
		return "", err
	}

	n.mu.Lock()
	n.dmCache[userID] = channel.ID
	n.mu.Unlock()
	return channel.ID, nil
}
