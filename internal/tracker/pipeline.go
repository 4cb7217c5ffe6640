package tracker

import (
	"context"
	"fmt"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/comms"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/worklog"
)

// Submitter records one worklog and reports the tier that landed it.
type Submitter interface {
	Submit(ctx context.Context, req worklog.Request) (worklog.Receipt, error)
}

// Pipeline is the single close path shared by the presence adapter and
// the webhook: threshold gate, identity resolution, tiered submission,
// then one best-effort notification.
type Pipeline struct {
	resolver  *Resolver
	submitter Submitter
	notifier  comms.Notifier
	collector *metrics.Collector
}

// NewPipeline wires the close path.
func NewPipeline(resolver *Resolver, submitter Submitter, notifier comms.Notifier, collector *metrics.Collector) *Pipeline {
	return &Pipeline{
		resolver:  resolver,
		submitter: submitter,
		notifier:  notifier,
		collector: collector,
	}
}

// Complete processes one closed session. Sessions below the minimum
// duration are discarded with no external call at all. Otherwise exactly
// one submission chain runs and exactly one notification is attempted,
// success or failure.
func (p *Pipeline) Complete(ctx context.Context, cs ClosedSession) error {
	log := logging.WithComponent("pipeline").With(
		"user_id", cs.UserID,
		"channel_id", cs.ChannelID,
		"issue", cs.Task.IssueKey)

	duration := p.resolver.Duration(cs)
	if !p.resolver.Meets(duration) {
		p.collector.ObserveSession(metrics.SessionDiscarded)
		log.Debug("session below minimum duration, discarded",
			"duration", duration.String())
		return nil
	}

	identity := p.resolver.Identity(cs.UserID, cs.DisplayName)
	req := worklog.Request{
		IssueKey: cs.Task.IssueKey,
		Started:  cs.StartedAt,
		Duration: duration,
		Identity: identity,
		Comment:  sessionComment(cs),
	}

	receipt, err := p.submitter.Submit(ctx, req)
	if err != nil {
		p.notify(ctx, cs.UserID, fmt.Sprintf(
			"Could not record %s on %s. Please log it manually.",
			FormatDuration(duration), cs.Task.IssueKey))
		return fmt.Errorf("failed to record worklog for %s: %w", cs.Task.IssueKey, err)
	}

	log.Info("session recorded",
		"duration", duration.String(),
		"tier", receipt.Tier,
		"correlation_id", receipt.CorrelationID)
	p.notify(ctx, cs.UserID, successMessage(cs, duration, identity, receipt))
	return nil
}

// successMessage tells the user what was logged and, when attribution did
// not land on their own Jira account, why.
func successMessage(cs ClosedSession, duration time.Duration, identity worklog.Identity, receipt worklog.Receipt) string {
	switch {
	case !identity.Mapped():
		return fmt.Sprintf(
			"Logged %s to %s. No Jira account mapping was found for you, so the entry was recorded by the bot account with your name in the comment. Ask an admin to run map_user.",
			FormatDuration(duration), cs.Task.IssueKey)
	case receipt.Tier == worklog.TierServiceCredential:
		return fmt.Sprintf(
			"Logged %s to %s. Direct attribution to your Jira account failed, so the entry was recorded by the bot account with your name in the comment.",
			FormatDuration(duration), cs.Task.IssueKey)
	default:
		return fmt.Sprintf("Logged %s to %s.", FormatDuration(duration), cs.Task.IssueKey)
	}
}

// notify sends best-effort; failures are logged and counted only.
func (p *Pipeline) notify(ctx context.Context, userID, text string) {
	if err := p.notifier.Notify(ctx, userID, text); err != nil {
		p.collector.ObserveNotifyFailure()
		logging.WithComponent("pipeline").Warn("notification failed",
			"user_id", userID, "error", err)
	}
}

// sessionComment is the worklog comment for an automatic session close.
func sessionComment(cs ClosedSession) string {
	channel := cs.ChannelName
	if channel == "" {
		channel = cs.ChannelID
	}
	return fmt.Sprintf("Voice session in %s (%s to %s)",
		channel,
		cs.StartedAt.Format(time.RFC3339),
		cs.EndedAt.Format(time.RFC3339))
}
