package jira

// Platform types
const (
	PlatformCloud  = "cloud"
	PlatformServer = "server"
)

// jiraTimeFormat is the timestamp layout Jira expects for worklog starts.
const jiraTimeFormat = "2006-01-02T15:04:05.000-0700"

// Issue is the subset of issue fields the bridge reads.
type Issue struct {
	ID     string `json:"id"`
	Key    string `json:"key"`
	Fields Fields `json:"fields"`
}

// Fields holds issue fields.
type Fields struct {
	Summary string  `json:"summary"`
	Status  *Status `json:"status,omitempty"`
}

// Status is an issue workflow status.
type Status struct {
	Name string `json:"name"`
}

// User is a Jira user as returned by /myself.
type User struct {
	AccountID    string `json:"accountId,omitempty"` // Cloud
	Name         string `json:"name,omitempty"`      // Server
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress,omitempty"`
}

// Project is the subset of project fields the bridge reads.
type Project struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Worklog is the response to a worklog create.
type Worklog struct {
	ID               string `json:"id"`
	TimeSpentSeconds int    `json:"timeSpentSeconds"`
	Started          string `json:"started"`
}
