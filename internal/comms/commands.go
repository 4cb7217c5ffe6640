package comms

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/adapters/jira"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
	"github.com/dar-kow/discord-bot-jira-work-log/internal/worklog"
)

// Messenger sends a text reply into the channel a command came from.
type Messenger interface {
	SendText(ctx context.Context, channelID, text string) error
}

// JiraProbe is the Jira surface the admin commands need.
type JiraProbe interface {
	GetIssue(ctx context.Context, issueKey string) (*jira.Issue, error)
	Myself(ctx context.Context) (*jira.User, error)
	ListProjects(ctx context.Context) ([]jira.Project, error)
}

// Submitter records one worklog through the tier chain.
type Submitter interface {
	Submit(ctx context.Context, req worklog.Request) (worklog.Receipt, error)
}

// Message is one inbound chat message, platform-agnostic.
type Message struct {
	ChannelID   string
	UserID      string
	DisplayName string
	Content     string
}

// CommandHandler processes the bridge's text commands. Invalid input
// always produces a user-facing reply and never mutates state.
type CommandHandler struct {
	prefix     string
	adminUsers map[string]bool

	messenger Messenger
	store     *store.Store
	jira      JiraProbe
	submitter Submitter
}

// NewCommandHandler creates a command handler. An empty admin list means
// every user may run mutating commands.
func NewCommandHandler(prefix string, adminUsers []string, messenger Messenger, st *store.Store, probe JiraProbe, submitter Submitter) *CommandHandler {
	admins := make(map[string]bool, len(adminUsers))
	for _, id := range adminUsers {
		admins[id] = true
	}
	return &CommandHandler{
		prefix:     prefix,
		adminUsers: admins,
		messenger:  messenger,
		store:      st,
		jira:       probe,
		submitter:  submitter,
	}
}

// HandleMessage routes a message to its command handler. Messages without
// the command prefix are ignored.
func (c *CommandHandler) HandleMessage(ctx context.Context, msg Message) {
	if !strings.HasPrefix(msg.Content, c.prefix) {
		return
	}

	parts := strings.Fields(strings.TrimPrefix(msg.Content, c.prefix))
	if len(parts) == 0 {
		return
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	logging.WithComponent("commands").Debug("command received",
		"command", cmd, "user_id", msg.UserID)

	switch cmd {
	case "help":
		c.reply(ctx, msg.ChannelID, helpText(c.prefix))
	case "set_task":
		c.requireAdmin(ctx, msg, func() { c.handleSetTask(ctx, msg, args) })
	case "remove_task":
		c.requireAdmin(ctx, msg, func() { c.handleRemoveTask(ctx, msg, args) })
	case "show_tasks":
		c.handleShowTasks(ctx, msg)
	case "map_user":
		c.requireAdmin(ctx, msg, func() { c.handleMapUser(ctx, msg, args) })
	case "show_mappings":
		c.handleShowMappings(ctx, msg)
	case "reload_config":
		c.requireAdmin(ctx, msg, func() { c.handleReload(ctx, msg) })
	case "test_jira":
		c.handleTestJira(ctx, msg)
	case "add_worklog":
		c.handleAddWorklog(ctx, msg, args)
	}
}

// requireAdmin runs f only for admin users (or everyone when no admins
// are configured).
func (c *CommandHandler) requireAdmin(ctx context.Context, msg Message, f func()) {
	if len(c.adminUsers) > 0 && !c.adminUsers[msg.UserID] {
		c.reply(ctx, msg.ChannelID, "You are not allowed to run this command.")
		return
	}
	f()
}

func (c *CommandHandler) handleSetTask(ctx context.Context, msg Message, args []string) {
	if len(args) != 3 {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %sset_task <channel_id> <project> <issue>", c.prefix))
		return
	}
	channelID, project, issueKey := args[0], args[1], args[2]

	// Verify the issue exists before persisting anything.
	issue, err := c.jira.GetIssue(ctx, issueKey)
	if err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Issue %s not found in Jira: %v", issueKey, err))
		return
	}

	if err := c.store.SetTask(channelID, project, issueKey); err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Failed to save mapping: %v", err))
		return
	}
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("Channel %s now logs to %s (%s).",
		channelID, issueKey, issue.Fields.Summary))
}

func (c *CommandHandler) handleRemoveTask(ctx context.Context, msg Message, args []string) {
	if len(args) != 1 {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %sremove_task <channel_id>", c.prefix))
		return
	}
	removed, err := c.store.RemoveTask(args[0])
	if err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Failed to remove mapping: %v", err))
		return
	}
	if !removed {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Channel %s has no task mapping.", args[0]))
		return
	}
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("Mapping for channel %s removed.", args[0]))
}

func (c *CommandHandler) handleShowTasks(ctx context.Context, msg Message) {
	tasks := c.store.Snapshot().Tasks()
	if len(tasks) == 0 {
		c.reply(ctx, msg.ChannelID, "No channel mappings configured.")
		return
	}
	var b strings.Builder
	b.WriteString("Channel mappings:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "%s: %s / %s\n", t.ChannelID, t.Project, t.IssueKey)
	}
	c.reply(ctx, msg.ChannelID, b.String())
}

func (c *CommandHandler) handleMapUser(ctx context.Context, msg Message, args []string) {
	if len(args) != 2 {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %smap_user <user_id> <jira_account>", c.prefix))
		return
	}
	if err := c.store.SetAccount(args[0], args[1]); err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Failed to save mapping: %v", err))
		return
	}
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("User %s mapped to Jira account %s.", args[0], args[1]))
}

func (c *CommandHandler) handleShowMappings(ctx context.Context, msg Message) {
	accounts := c.store.Snapshot().Accounts()
	if len(accounts) == 0 {
		c.reply(ctx, msg.ChannelID, "No user mappings configured.")
		return
	}
	ids := make([]string, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	b.WriteString("User mappings:\n")
	for _, id := range ids {
		fmt.Fprintf(&b, "%s: %s\n", id, accounts[id])
	}
	c.reply(ctx, msg.ChannelID, b.String())
}

func (c *CommandHandler) handleReload(ctx context.Context, msg Message) {
	if err := c.store.Reload(); err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Reload failed: %v", err))
		return
	}
	snap := c.store.Snapshot()
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("Mappings reloaded: %d channels, %d users.",
		len(snap.Tasks()), len(snap.Accounts())))
}

func (c *CommandHandler) handleTestJira(ctx context.Context, msg Message) {
	user, err := c.jira.Myself(ctx)
	if err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Jira connection failed: %v", err))
		return
	}
	projects, err := c.jira.ListProjects(ctx)
	if err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Connected as %s, but listing projects failed: %v",
			user.DisplayName, err))
		return
	}
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("Connected to Jira as %s. %d projects visible.",
		user.DisplayName, len(projects)))
}

func (c *CommandHandler) handleAddWorklog(ctx context.Context, msg Message, args []string) {
	if len(args) < 2 {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Usage: %sadd_worklog <issue> <duration> [comment]", c.prefix))
		return
	}
	issueKey := args[0]
	duration, err := time.ParseDuration(args[1])
	if err != nil || duration <= 0 {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Invalid duration %q. Use formats like 45m or 1h30m.", args[1]))
		return
	}
	comment := strings.Join(args[2:], " ")
	if comment == "" {
		comment = "Manual worklog entry"
	}

	identity := worklog.Identity{DisplayName: msg.DisplayName}
	if accountID, ok := c.store.Snapshot().Account(msg.UserID); ok {
		identity.AccountID = accountID
	}

	_, err = c.submitter.Submit(ctx, worklog.Request{
		IssueKey: issueKey,
		Started:  time.Now().Add(-duration),
		Duration: duration,
		Identity: identity,
		Comment:  comment,
	})
	if err != nil {
		c.reply(ctx, msg.ChannelID, fmt.Sprintf("Failed to record worklog on %s: %v", issueKey, err))
		return
	}
	c.reply(ctx, msg.ChannelID, fmt.Sprintf("Logged %s to %s.", args[1], issueKey))
}

func (c *CommandHandler) reply(ctx context.Context, channelID, text string) {
	if err := c.messenger.SendText(ctx, channelID, text); err != nil {
		logging.WithComponent("commands").Warn("failed to send reply",
			"channel_id", channelID, "error", err)
	}
}

func helpText(prefix string) string {
	return fmt.Sprintf(`Available commands:
%[1]sset_task <channel_id> <project> <issue> - map a voice channel to a Jira issue
%[1]sremove_task <channel_id> - remove a channel mapping
%[1]sshow_tasks - list channel mappings
%[1]smap_user <user_id> <jira_account> - map a user to a Jira account
%[1]sshow_mappings - list user mappings
%[1]sreload_config - reload mappings from disk
%[1]stest_jira - check the Jira connection
%[1]sadd_worklog <issue> <duration> [comment] - record a manual worklog`, prefix)
}
