// Package tracker owns in-memory voice session state and the close
// pipeline that turns a finished session into a Jira worklog.
package tracker

import (
	"time"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/store"
)

// Session is an open voice session. It exists only in memory; a restart
// forgets all open sessions.
type Session struct {
	UserID      string
	DisplayName string
	ChannelID   string
	ChannelName string
	Task        store.TaskMapping
	StartedAt   time.Time
}

// ClosedSession is a session that has been removed from the registry
// together with its close time.
type ClosedSession struct {
	Session
	EndedAt time.Time
}
