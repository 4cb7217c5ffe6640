package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	st, err := Open(filepath.Join(dir, "tasks.json"), filepath.Join(dir, "users.json"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	return st
}

func TestOpenMissingFiles(t *testing.T) {
	st := newTestStore(t)

	snap := st.Snapshot()
	if snap.Version != 1 {
		t.Errorf("Version = %d, want 1", snap.Version)
	}
	if got := len(snap.Tasks()); got != 0 {
		t.Errorf("Tasks() len = %d, want 0", got)
	}
	if _, ok := snap.Account("42"); ok {
		t.Error("Account() found a mapping in an empty store")
	}
}

func TestSetTaskAndLookup(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetTask("chan-1", "PROJ", "PROJ-123"); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}

	snap := st.Snapshot()
	m, ok := snap.Task("chan-1")
	if !ok {
		t.Fatal("Task() not found after SetTask")
	}
	if m.Project != "PROJ" || m.IssueKey != "PROJ-123" {
		t.Errorf("Task() = %+v, want PROJ/PROJ-123", m)
	}
	if _, ok := snap.Task("chan-2"); ok {
		t.Error("Task() found mapping for unmapped channel")
	}
}

func TestSnapshotImmutability(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetTask("chan-1", "PROJ", "PROJ-1"); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	before := st.Snapshot()

	if err := st.SetTask("chan-1", "PROJ", "PROJ-2"); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}

	m, _ := before.Task("chan-1")
	if m.IssueKey != "PROJ-1" {
		t.Errorf("old snapshot changed: IssueKey = %s, want PROJ-1", m.IssueKey)
	}
	m, _ = st.Snapshot().Task("chan-1")
	if m.IssueKey != "PROJ-2" {
		t.Errorf("new snapshot IssueKey = %s, want PROJ-2", m.IssueKey)
	}
	if st.Snapshot().Version <= before.Version {
		t.Errorf("version did not advance: %d -> %d", before.Version, st.Snapshot().Version)
	}
}

func TestRemoveTask(t *testing.T) {
	st := newTestStore(t)

	if removed, err := st.RemoveTask("chan-1"); err != nil || removed {
		t.Errorf("RemoveTask(absent) = (%v, %v), want (false, nil)", removed, err)
	}

	if err := st.SetTask("chan-1", "PROJ", "PROJ-1"); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	removed, err := st.RemoveTask("chan-1")
	if err != nil {
		t.Fatalf("RemoveTask() error = %v", err)
	}
	if !removed {
		t.Error("RemoveTask() = false, want true")
	}
	if _, ok := st.Snapshot().Task("chan-1"); ok {
		t.Error("Task() still present after RemoveTask")
	}
}

func TestSetAccount(t *testing.T) {
	st := newTestStore(t)

	if err := st.SetAccount("user-1", "acc-aaa"); err != nil {
		t.Fatalf("SetAccount() error = %v", err)
	}

	acc, ok := st.Snapshot().Account("user-1")
	if !ok || acc != "acc-aaa" {
		t.Errorf("Account() = (%q, %v), want (acc-aaa, true)", acc, ok)
	}
}

func TestPersistenceAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	usersPath := filepath.Join(dir, "users.json")

	st, err := Open(tasksPath, usersPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := st.SetTask("chan-1", "PROJ", "PROJ-9"); err != nil {
		t.Fatalf("SetTask() error = %v", err)
	}
	if err := st.SetAccount("user-1", "acc-bbb"); err != nil {
		t.Fatalf("SetAccount() error = %v", err)
	}

	st2, err := Open(tasksPath, usersPath)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	snap := st2.Snapshot()
	if m, ok := snap.Task("chan-1"); !ok || m.IssueKey != "PROJ-9" {
		t.Errorf("Task() after reopen = (%+v, %v)", m, ok)
	}
	if acc, ok := snap.Account("user-1"); !ok || acc != "acc-bbb" {
		t.Errorf("Account() after reopen = (%q, %v)", acc, ok)
	}
}

func TestReloadPicksUpExternalEdit(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	usersPath := filepath.Join(dir, "users.json")

	st, err := Open(tasksPath, usersPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	doc := map[string]map[string]string{
		"chan-7": {"project": "OPS", "issue": "OPS-77"},
	}
	data, _ := json.Marshal(doc)
	if err := os.WriteFile(tasksPath, data, 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if err := st.Reload(); err != nil {
		t.Fatalf("Reload() error = %v", err)
	}
	m, ok := st.Snapshot().Task("chan-7")
	if !ok || m.Project != "OPS" || m.IssueKey != "OPS-77" {
		t.Errorf("Task() after reload = (%+v, %v)", m, ok)
	}
}

func TestTasksSorted(t *testing.T) {
	st := newTestStore(t)
	for _, ch := range []string{"c", "a", "b"} {
		if err := st.SetTask(ch, "P", "P-1"); err != nil {
			t.Fatalf("SetTask(%s) error = %v", ch, err)
		}
	}
	tasks := st.Snapshot().Tasks()
	if len(tasks) != 3 {
		t.Fatalf("Tasks() len = %d, want 3", len(tasks))
	}
	for i, want := range []string{"a", "b", "c"} {
		if tasks[i].ChannelID != want {
			t.Errorf("Tasks()[%d].ChannelID = %s, want %s", i, tasks[i].ChannelID, want)
		}
	}
}

func TestCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	tasksPath := filepath.Join(dir, "tasks.json")
	if err := os.WriteFile(tasksPath, []byte("{not json"), 0644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	if _, err := Open(tasksPath, filepath.Join(dir, "users.json")); err == nil {
		t.Error("Open() with corrupt tasks.json: expected error, got nil")
	}
}
