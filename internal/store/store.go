// Package store persists the channel→task and user→account mappings as
// on-disk JSON documents and serves them to readers as immutable,
// versioned snapshots.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// TaskMapping binds a voice channel to the Jira issue its time is logged
// against.
type TaskMapping struct {
	ChannelID string `json:"channel_id"`
	Project   string `json:"project"`
	IssueKey  string `json:"issue_key"`
}

// Snapshot is an immutable view of all mappings. Readers hold a snapshot
// for the duration of one operation; mutations and reloads never change a
// snapshot already handed out.
type Snapshot struct {
	// Version increases by one on every successful mutation or reload.
	Version uint64

	tasks    map[string]TaskMapping
	accounts map[string]string
}

// Task returns the task mapping for a channel, if any.
func (s *Snapshot) Task(channelID string) (TaskMapping, bool) {
	m, ok := s.tasks[channelID]
	return m, ok
}

// Account returns the Jira account ID mapped to a local user, if any.
func (s *Snapshot) Account(userID string) (string, bool) {
	a, ok := s.accounts[userID]
	return a, ok
}

// Tasks returns all task mappings sorted by channel ID.
func (s *Snapshot) Tasks() []TaskMapping {
	out := make([]TaskMapping, 0, len(s.tasks))
	for _, m := range s.tasks {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChannelID < out[j].ChannelID })
	return out
}

// Accounts returns a copy of the user→account map.
func (s *Snapshot) Accounts() map[string]string {
	out := make(map[string]string, len(s.accounts))
	for k, v := range s.accounts {
		out[k] = v
	}
	return out
}

// Store owns the two backing files and the current snapshot. All mutations
// go through the store; readers call Snapshot and never block writers.
type Store struct {
	tasksPath    string
	accountsPath string

	mu   sync.Mutex // serializes mutations and reloads
	snap atomic.Pointer[Snapshot]
}

// taskDoc is the wire form of tasks.json: channel_id → {project, issue}.
type taskDoc map[string]taskEntry

type taskEntry struct {
	Project string `json:"project"`
	Issue   string `json:"issue"`
}

// accountDoc is the wire form of users.json.
type accountDoc struct {
	UserMappings map[string]string `json:"user_mappings"`
}

// Open loads both documents and returns a ready store. Missing files are
// treated as empty documents so a fresh install starts clean.
func Open(tasksPath, accountsPath string) (*Store, error) {
	st := &Store{
		tasksPath:    tasksPath,
		accountsPath: accountsPath,
	}
	snap, err := st.loadSnapshot(1)
	if err != nil {
		return nil, err
	}
	st.snap.Store(snap)
	return st, nil
}

// Snapshot returns the current immutable view.
func (st *Store) Snapshot() *Snapshot {
	return st.snap.Load()
}

// Reload re-reads both documents from disk and swaps in a new snapshot.
// In-flight readers keep their old snapshot.
func (st *Store) Reload() error {
	st.mu.Lock()
	defer st.mu.Unlock()

	snap, err := st.loadSnapshot(st.snap.Load().Version + 1)
	if err != nil {
		return err
	}
	st.snap.Store(snap)
	logging.WithComponent("store").Info("mappings reloaded",
		"version", snap.Version,
		"tasks", len(snap.tasks),
		"accounts", len(snap.accounts))
	return nil
}

// SetTask creates or replaces the task mapping for a channel and persists it.
func (st *Store) SetTask(channelID, project, issueKey string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.snap.Load()
	tasks := copyTasks(cur.tasks)
	tasks[channelID] = TaskMapping{ChannelID: channelID, Project: project, IssueKey: issueKey}

	if err := st.writeTasks(tasks); err != nil {
		return err
	}
	st.swap(tasks, cur.accounts)
	return nil
}

// RemoveTask deletes the task mapping for a channel. It reports whether a
// mapping existed.
func (st *Store) RemoveTask(channelID string) (bool, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.snap.Load()
	if _, ok := cur.tasks[channelID]; !ok {
		return false, nil
	}
	tasks := copyTasks(cur.tasks)
	delete(tasks, channelID)

	if err := st.writeTasks(tasks); err != nil {
		return false, err
	}
	st.swap(tasks, cur.accounts)
	return true, nil
}

// SetAccount creates or replaces the Jira account mapping for a local user.
func (st *Store) SetAccount(userID, accountID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()

	cur := st.snap.Load()
	accounts := make(map[string]string, len(cur.accounts)+1)
	for k, v := range cur.accounts {
		accounts[k] = v
	}
	accounts[userID] = accountID

	if err := writeJSON(st.accountsPath, accountDoc{UserMappings: accounts}); err != nil {
		return fmt.Errorf("failed to write accounts: %w", err)
	}
	st.swap(cur.tasks, accounts)
	return nil
}

// swap publishes a new snapshot. Caller must hold st.mu.
func (st *Store) swap(tasks map[string]TaskMapping, accounts map[string]string) {
	st.snap.Store(&Snapshot{
		Version:  st.snap.Load().Version + 1,
		tasks:    tasks,
		accounts: accounts,
	})
}

func (st *Store) loadSnapshot(version uint64) (*Snapshot, error) {
	tasks, err := st.readTasks()
	if err != nil {
		return nil, err
	}
	accounts, err := st.readAccounts()
	if err != nil {
		return nil, err
	}
	return &Snapshot{Version: version, tasks: tasks, accounts: accounts}, nil
}

func (st *Store) readTasks() (map[string]TaskMapping, error) {
	var doc taskDoc
	if err := readJSON(st.tasksPath, &doc); err != nil {
		return nil, fmt.Errorf("failed to read tasks: %w", err)
	}
	tasks := make(map[string]TaskMapping, len(doc))
	for channelID, e := range doc {
		tasks[channelID] = TaskMapping{ChannelID: channelID, Project: e.Project, IssueKey: e.Issue}
	}
	return tasks, nil
}

func (st *Store) readAccounts() (map[string]string, error) {
	var doc accountDoc
	if err := readJSON(st.accountsPath, &doc); err != nil {
		return nil, fmt.Errorf("failed to read accounts: %w", err)
	}
	if doc.UserMappings == nil {
		doc.UserMappings = map[string]string{}
	}
	return doc.UserMappings, nil
}

func (st *Store) writeTasks(tasks map[string]TaskMapping) error {
	doc := make(taskDoc, len(tasks))
	for channelID, m := range tasks {
		doc[channelID] = taskEntry{Project: m.Project, Issue: m.IssueKey}
	}
	if err := writeJSON(st.tasksPath, doc); err != nil {
		return fmt.Errorf("failed to write tasks: %w", err)
	}
	return nil
}

func copyTasks(in map[string]TaskMapping) map[string]TaskMapping {
	out := make(map[string]TaskMapping, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

// readJSON decodes a JSON file into v. A missing file leaves v untouched.
func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// writeJSON writes v to path via a temp file and rename so readers and the
// file watcher never see a partial document.
func writeJSON(path string, v interface{}) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
