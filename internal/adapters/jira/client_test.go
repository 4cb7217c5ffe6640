package jira

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestNewClient(t *testing.T) {
	client := NewClient("https://company.atlassian.net/", "user@example.com", "api-token", PlatformCloud)
	if client == nil {
		t.Fatal("NewClient returned nil")
	}
	if client.baseURL != "https://company.atlassian.net" {
		t.Errorf("client.baseURL = %s, want trailing slash trimmed", client.baseURL)
	}
}

func TestAPIPath(t *testing.T) {
	tests := []struct {
		platform string
		want     string
	}{
		{PlatformCloud, "/rest/api/3"},
		{PlatformServer, "/rest/api/2"},
	}

	for _, tt := range tests {
		t.Run(tt.platform, func(t *testing.T) {
			client := NewClient("https://jira.example.com", "user", "token", tt.platform)
			if got := client.apiPath(); got != tt.want {
				t.Errorf("apiPath() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestGetIssue(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/PROJ-42" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "" {
			t.Error("missing Authorization header")
		}

		issue := Issue{
			ID:     "10001",
			Key:    "PROJ-42",
			Fields: Fields{Summary: "Voice bridge rollout"},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(issue)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user@example.com", "api-token", PlatformCloud)

	issue, err := client.GetIssue(context.Background(), "PROJ-42")
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if issue.Key != "PROJ-42" {
		t.Errorf("issue.Key = %s, want PROJ-42", issue.Key)
	}
	if issue.Fields.Summary != "Voice bridge rollout" {
		t.Errorf("issue.Fields.Summary = %s", issue.Fields.Summary)
	}
}

func TestGetIssueNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"errorMessages":["Issue does not exist"]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformCloud)
	if _, err := client.GetIssue(context.Background(), "NOPE-1"); err == nil {
		t.Error("GetIssue() error = nil, want error for 404")
	}
}

func TestMyself(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/myself" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(User{AccountID: "acc-1", DisplayName: "Bot"})
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformCloud)
	user, err := client.Myself(context.Background())
	if err != nil {
		t.Fatalf("Myself failed: %v", err)
	}
	if user.AccountID != "acc-1" || user.DisplayName != "Bot" {
		t.Errorf("Myself() = %+v", user)
	}
}

func TestListProjects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/project" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode([]Project{
			{ID: "1", Key: "PROJ", Name: "Project"},
			{ID: "2", Key: "OPS", Name: "Operations"},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformCloud)
	projects, err := client.ListProjects(context.Background())
	if err != nil {
		t.Fatalf("ListProjects failed: %v", err)
	}
	if len(projects) != 2 || projects[0].Key != "PROJ" {
		t.Errorf("ListProjects() = %+v", projects)
	}
}

func TestAddWorklog(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/3/issue/PROJ-1/worklog" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", r.Method)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1000","timeSpentSeconds":3600}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformCloud)
	started := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	if err := client.AddWorklog(context.Background(), "PROJ-1", started, time.Hour, "session"); err != nil {
		t.Fatalf("AddWorklog failed: %v", err)
	}

	if got["timeSpentSeconds"].(float64) != 3600 {
		t.Errorf("timeSpentSeconds = %v, want 3600", got["timeSpentSeconds"])
	}
	if _, ok := got["author"]; ok {
		t.Error("author present in service-credential worklog")
	}
	// Cloud comments are ADF documents, not strings.
	if _, ok := got["comment"].(map[string]interface{}); !ok {
		t.Errorf("comment = %T, want ADF object on cloud", got["comment"])
	}
}

func TestAddWorklogAsCarriesAuthor(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1001"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformCloud)
	started := time.Now()
	if err := client.AddWorklogAs(context.Background(), "PROJ-1", started, 30*time.Minute, "acc-9", "session"); err != nil {
		t.Fatalf("AddWorklogAs failed: %v", err)
	}

	author, ok := got["author"].(map[string]interface{})
	if !ok {
		t.Fatalf("author = %T, want object", got["author"])
	}
	if author["accountId"] != "acc-9" {
		t.Errorf("author.accountId = %v, want acc-9", author["accountId"])
	}
}

func TestServerPlatformPlainComment(t *testing.T) {
	var got map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/api/2/issue/PROJ-1/worklog" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	client := NewClient(server.URL, "user", "token", PlatformServer)
	if err := client.AddWorklogAs(context.Background(), "PROJ-1", time.Now(), time.Hour, "jsmith", "session"); err != nil {
		t.Fatalf("AddWorklogAs failed: %v", err)
	}

	if got["comment"] != "session" {
		t.Errorf("comment = %v, want plain string on server", got["comment"])
	}
	author := got["author"].(map[string]interface{})
	if author["name"] != "jsmith" {
		t.Errorf("author.name = %v, want jsmith", author["name"])
	}
}

func TestRawWorklogPostReturnsStatus(t *testing.T) {
	tests := []struct {
		name   string
		status int
	}{
		{"created", http.StatusCreated},
		{"ok with error body", http.StatusOK},
		{"forbidden", http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				// The raw tier always talks to the v2 endpoint, even on Cloud.
				if r.URL.Path != "/rest/api/2/issue/PROJ-1/worklog" {
					t.Errorf("unexpected path: %s", r.URL.Path)
				}
				var body map[string]interface{}
				_ = json.NewDecoder(r.Body).Decode(&body)
				if _, ok := body["author"]; !ok {
					t.Error("author missing from raw worklog post")
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(server.URL, "user", "token", PlatformCloud)
			status, err := client.RawWorklogPost(context.Background(), "PROJ-1", time.Now(), time.Hour, "acc-9", "session")
			if err != nil {
				t.Fatalf("RawWorklogPost failed: %v", err)
			}
			if status != tt.status {
				t.Errorf("status = %d, want %d", status, tt.status)
			}
		})
	}
}
