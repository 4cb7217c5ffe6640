package tracker

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/metrics"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/worklog"
)

type stubSubmitter struct {
	calls []worklog.Request
	tier  string
	err   error
}

func (s *stubSubmitter) Submit(ctx context.Context, req worklog.Request) (worklog.Receipt, error) {
	s.calls = append(s.calls, req)
	if s.err != nil {
		return worklog.Receipt{}, s.err
	}
	tier := s.tier
	if tier == "" {
		tier = worklog.TierNativeAuthor
	}
	return worklog.Receipt{Tier: tier, CorrelationID: "test"}, nil
}

type stubNotifier struct {
	messages []string
	err      error
}

func (n *stubNotifier) Notify(ctx context.Context, userID, text string) error {
	n.messages = append(n.messages, text)
	return n.err
}

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store, *stubSubmitter, *stubNotifier) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("store.Open() error = %v", err)
	}
	collector := metrics.NewCollector()
	sub := &stubSubmitter{}
	not := &stubNotifier{}
	p := NewPipeline(NewResolver(st, 6*time.Second, collector), sub, not, collector)
	return p, st, sub, not
}

func closedSession(start time.Time, d time.Duration) ClosedSession {
	return ClosedSession{
		Session: Session{
			UserID:      "u1",
			DisplayName: "Alice",
			ChannelID:   "c1",
			ChannelName: "dev-voice",
			Task:        store.TaskMapping{ChannelID: "c1", Project: "PROJ", IssueKey: "PROJ-42"},
			StartedAt:   start,
		},
		EndedAt: start.Add(d),
	}
}

func TestCompleteRecordsAndNotifiesOnce(t *testing.T) {
	p, st, sub, not := newTestPipeline(t)
	if err := st.SetAccount("u1", "acc-1"); err != nil {
		t.Fatalf("SetAccount() error = %v", err)
	}

	cs := closedSession(time.Now().Add(-65*time.Minute), 65*time.Minute)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(sub.calls) != 1 {
		t.Fatalf("submitter called %d times, want 1", len(sub.calls))
	}
	req := sub.calls[0]
	if req.IssueKey != "PROJ-42" {
		t.Errorf("Request.IssueKey = %s, want PROJ-42", req.IssueKey)
	}
	if req.Duration != 65*time.Minute {
		t.Errorf("Request.Duration = %v, want 65m", req.Duration)
	}
	if req.Identity.AccountID != "acc-1" {
		t.Errorf("Request.Identity.AccountID = %s, want acc-1", req.Identity.AccountID)
	}
	if !strings.Contains(req.Comment, "dev-voice") {
		t.Errorf("Request.Comment = %q, want channel name in it", req.Comment)
	}

	if len(not.messages) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(not.messages))
	}
	if !strings.Contains(not.messages[0], "1h 5m") || !strings.Contains(not.messages[0], "PROJ-42") {
		t.Errorf("notification = %q, want duration and issue key", not.messages[0])
	}
	if strings.Contains(not.messages[0], "bot account") {
		t.Errorf("notification = %q, direct attribution must not mention the bot account", not.messages[0])
	}
}

func TestCompleteBelowThresholdNoExternalCalls(t *testing.T) {
	p, _, sub, not := newTestPipeline(t)

	cs := closedSession(time.Now().Add(-5*time.Second), 5*time.Second)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(sub.calls) != 0 {
		t.Errorf("submitter called %d times below threshold, want 0", len(sub.calls))
	}
	if len(not.messages) != 0 {
		t.Errorf("notifier called %d times below threshold, want 0", len(not.messages))
	}
}

func TestCompleteClampedDurationDiscarded(t *testing.T) {
	p, _, sub, _ := newTestPipeline(t)

	// End before start clamps to zero, which is below any threshold.
	cs := closedSession(time.Now(), -time.Minute)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if len(sub.calls) != 0 {
		t.Errorf("submitter called for clamped session, want no call")
	}
}

func TestCompleteUnmappedUserStillSubmits(t *testing.T) {
	p, _, sub, not := newTestPipeline(t)

	cs := closedSession(time.Now().Add(-10*time.Minute), 10*time.Minute)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(sub.calls) != 1 {
		t.Fatalf("submitter called %d times, want 1", len(sub.calls))
	}
	if sub.calls[0].Identity.Mapped() {
		t.Error("identity reported mapped for user without account mapping")
	}
	if sub.calls[0].Identity.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want Alice", sub.calls[0].Identity.DisplayName)
	}
	if len(not.messages) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(not.messages))
	}
	// The user must learn their mapping is missing, not just that time
	// was logged.
	if !strings.Contains(not.messages[0], "No Jira account mapping") {
		t.Errorf("notification = %q, want mention of the missing mapping", not.messages[0])
	}
	if !strings.Contains(not.messages[0], "map_user") {
		t.Errorf("notification = %q, want a pointer to map_user", not.messages[0])
	}
}

func TestCompleteServiceTierFallbackNotification(t *testing.T) {
	p, st, sub, not := newTestPipeline(t)
	if err := st.SetAccount("u1", "acc-1"); err != nil {
		t.Fatalf("SetAccount() error = %v", err)
	}
	sub.tier = worklog.TierServiceCredential

	cs := closedSession(time.Now().Add(-10*time.Minute), 10*time.Minute)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}

	if len(not.messages) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(not.messages))
	}
	if !strings.Contains(not.messages[0], "bot account") {
		t.Errorf("notification = %q, want mention of the bot-account fallback", not.messages[0])
	}
	if strings.Contains(not.messages[0], "No Jira account mapping") {
		t.Errorf("notification = %q, mapped user must not get the missing-mapping text", not.messages[0])
	}
}

func TestCompleteSubmitFailureNotifiesAndErrors(t *testing.T) {
	p, _, sub, not := newTestPipeline(t)
	sub.err = errors.New("jira down")

	cs := closedSession(time.Now().Add(-10*time.Minute), 10*time.Minute)
	err := p.Complete(context.Background(), cs)
	if err == nil {
		t.Fatal("Complete() error = nil, want error on terminal submit failure")
	}

	if len(not.messages) != 1 {
		t.Fatalf("notifier called %d times, want 1", len(not.messages))
	}
	if !strings.Contains(not.messages[0], "Could not record") {
		t.Errorf("failure notification = %q", not.messages[0])
	}
}

func TestCompleteNotifyFailureDoesNotFailPipeline(t *testing.T) {
	p, _, _, not := newTestPipeline(t)
	not.err = errors.New("dm closed")

	cs := closedSession(time.Now().Add(-10*time.Minute), 10*time.Minute)
	if err := p.Complete(context.Background(), cs); err != nil {
		t.Errorf("Complete() error = %v, want nil when only the notification fails", err)
	}
}
