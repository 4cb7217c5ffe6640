// Package worklog implements the tiered worklog submission chain. Author
// attribution degrades gracefully: native author parameter, then a raw
// endpoint post, then the service credential with the identity embedded
// in the comment.
package worklog

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
)

// Submission tiers as they appear in logs, metrics and receipts.
const (
	TierNativeAuthor      = "native_author"
	TierRawAuthor         = "raw_author"
	TierServiceCredential = "service_credential"
)

// Identity is the resolved worklog author.
type Identity struct {
	// AccountID is the Jira account; empty when the user has no mapping.
	AccountID   string
	DisplayName string
}

// Mapped reports whether the identity carries a Jira account.
func (i Identity) Mapped() bool { return i.AccountID != "" }

// Request describes one worklog to record.
type Request struct {
	IssueKey string
	Started  time.Time
	Duration time.Duration
	Identity Identity
	Comment  string
}

// Receipt reports which tier succeeded.
type Receipt struct {
	Tier          string
	CorrelationID string
}

// Client is the Jira surface the strategy needs. RawWorklogPost returns
// the raw HTTP status so the strategy can apply its own success check.
type Client interface {
	AddWorklogAs(ctx context.Context, issueKey string, started time.Time, duration time.Duration, accountID, comment string) error
	RawWorklogPost(ctx context.Context, issueKey string, started time.Time, duration time.Duration, accountID, comment string) (int, error)
	AddWorklog(ctx context.Context, issueKey string, started time.Time, duration time.Duration, comment string) error
}

// Strategy runs the tier chain. Each tier gets its own bounded timeout;
// a tier failure moves to the next tier immediately, never retries.
type Strategy struct {
	client      Client
	tierTimeout time.Duration
	collector   *metrics.Collector
}

// NewStrategy returns a strategy posting through the given client.
func NewStrategy(client Client, tierTimeout time.Duration, collector *metrics.Collector) *Strategy {
	return &Strategy{client: client, tierTimeout: tierTimeout, collector: collector}
}

// Submit records the worklog, returning a receipt for the tier that
// landed it. Unmapped identities go straight to the service-credential
// post with the display name embedded in the comment.
func (s *Strategy) Submit(ctx context.Context, req Request) (Receipt, error) {
	correlationID := uuid.NewString()
	log := logging.WithCorrelationID(correlationID).With(
		"issue", req.IssueKey,
		"duration", req.Duration.String())

	start := time.Now()
	defer func() {
		s.collector.ObserveSubmissionLatency(time.Since(start).Seconds())
	}()

	if !req.Identity.Mapped() {
		if err := s.submitAsService(ctx, req, attributionComment(req)); err != nil {
			log.Error("worklog post for unmapped user failed", "error", err)
			return Receipt{}, err
		}
		log.Info("worklog recorded for unmapped user", "tier", TierServiceCredential)
		return Receipt{Tier: TierServiceCredential, CorrelationID: correlationID}, nil
	}

	// Tier 1: author as a native body parameter.
	tctx, cancel := context.WithTimeout(ctx, s.tierTimeout)
	err := s.client.AddWorklogAs(tctx, req.IssueKey, req.Started, req.Duration, req.Identity.AccountID, req.Comment)
	cancel()
	if err == nil {
		s.collector.ObserveSubmission(TierNativeAuthor, "success")
		log.Info("worklog recorded", "tier", TierNativeAuthor)
		return Receipt{Tier: TierNativeAuthor, CorrelationID: correlationID}, nil
	}
	s.collector.ObserveSubmission(TierNativeAuthor, "failure")
	log.Warn("native author post failed, trying raw endpoint", "error", err)

	// Tier 2: raw endpoint post, success only on 201 Created.
	tctx, cancel = context.WithTimeout(ctx, s.tierTimeout)
	status, err := s.client.RawWorklogPost(tctx, req.IssueKey, req.Started, req.Duration, req.Identity.AccountID, req.Comment)
	cancel()
	if err == nil && status == 201 {
		s.collector.ObserveSubmission(TierRawAuthor, "success")
		log.Info("worklog recorded", "tier", TierRawAuthor)
		return Receipt{Tier: TierRawAuthor, CorrelationID: correlationID}, nil
	}
	s.collector.ObserveSubmission(TierRawAuthor, "failure")
	log.Warn("raw endpoint post failed, falling back to service credential",
		"status", status, "error", err)

	// Tier 3: service credential, intended author carried in the comment.
	if err := s.submitAsService(ctx, req, attributionComment(req)); err != nil {
		log.Error("all submission tiers failed", "error", err)
		return Receipt{}, fmt.Errorf("worklog submission exhausted all tiers: %w", err)
	}
	log.Info("worklog recorded", "tier", TierServiceCredential)
	return Receipt{Tier: TierServiceCredential, CorrelationID: correlationID}, nil
}

func (s *Strategy) submitAsService(ctx context.Context, req Request, comment string) error {
	tctx, cancel := context.WithTimeout(ctx, s.tierTimeout)
	defer cancel()

	if err := s.client.AddWorklog(tctx, req.IssueKey, req.Started, req.Duration, comment); err != nil {
		s.collector.ObserveSubmission(TierServiceCredential, "failure")
		return err
	}
	s.collector.ObserveSubmission(TierServiceCredential, "success")
	return nil
}

// attributionComment embeds the intended author in the comment for posts
// made under the service credential.
func attributionComment(req Request) string {
	who := req.Identity.DisplayName
	if who == "" {
		who = "unknown user"
	}
	if req.Comment == "" {
		return fmt.Sprintf("[on behalf of %s]", who)
	}
	return fmt.Sprintf("[on behalf of %s] %s", who, req.Comment)
}
