// Package jira is a minimal Jira REST client covering the calls the
// bridge needs: worklog creation in three flavors, issue lookup and the
// connectivity probes behind the admin commands.
package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is a Jira API client.
type Client struct {
	baseURL    string
	username   string
	apiToken   string
	platform   string
	httpClient *http.Client
}

// NewClient creates a new Jira client.
func NewClient(baseURL, username, apiToken, platform string) *Client {
	baseURL = strings.TrimSuffix(baseURL, "/")

	return &Client{
		baseURL:  baseURL,
		username: username,
		apiToken: apiToken,
		platform: platform,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// apiPath returns the correct API path based on platform.
func (c *Client) apiPath() string {
	if c.platform == PlatformCloud {
		return "/rest/api/3"
	}
	return "/rest/api/2"
}

// doRequest performs an HTTP request to the Jira API.
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	url := c.baseURL + c.apiPath() + path
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(req, body != nil)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

// setHeaders applies Basic auth (email:api_token for Cloud, username:token
// for Server) and content negotiation headers.
func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	auth := base64.StdEncoding.EncodeToString([]byte(c.username + ":" + c.apiToken))
	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Accept", "application/json")
	if hasBody {
		req.Header.Set("Content-Type", "application/json")
	}
}

// GetIssue fetches an issue by key (e.g., "PROJ-42").
func (c *Client) GetIssue(ctx context.Context, issueKey string) (*Issue, error) {
	path := fmt.Sprintf("/issue/%s", issueKey)
	var issue Issue
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &issue); err != nil {
		return nil, err
	}
	return &issue, nil
}

// Myself returns the authenticated user, used as a connectivity probe.
func (c *Client) Myself(ctx context.Context) (*User, error) {
	var user User
	if err := c.doRequest(ctx, http.MethodGet, "/myself", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListProjects returns the projects visible to the credential.
func (c *Client) ListProjects(ctx context.Context) ([]Project, error) {
	var projects []Project
	if err := c.doRequest(ctx, http.MethodGet, "/project", nil, &projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// AddWorklog records a worklog under the service credential.
func (c *Client) AddWorklog(ctx context.Context, issueKey string, started time.Time, duration time.Duration, comment string) error {
	path := fmt.Sprintf("/issue/%s/worklog", issueKey)
	return c.doRequest(ctx, http.MethodPost, path, c.worklogBody(started, duration, comment, ""), nil)
}

// AddWorklogAs records a worklog with the author passed as a native body
// parameter. Jira deployments vary in whether they honor it; callers must
// treat any error as "try another way", not as fatal.
func (c *Client) AddWorklogAs(ctx context.Context, issueKey string, started time.Time, duration time.Duration, accountID, comment string) error {
	path := fmt.Sprintf("/issue/%s/worklog", issueKey)
	return c.doRequest(ctx, http.MethodPost, path, c.worklogBody(started, duration, comment, accountID), nil)
}

// RawWorklogPost posts a worklog with an author field straight to the v2
// endpoint and returns the raw HTTP status without interpreting it. The
// caller decides what counts as success.
func (c *Client) RawWorklogPost(ctx context.Context, issueKey string, started time.Time, duration time.Duration, accountID, comment string) (int, error) {
	body := map[string]interface{}{
		"timeSpentSeconds": int(duration.Seconds()),
		"started":          started.Format(jiraTimeFormat),
		"comment":          comment,
		"author":           c.authorRef(accountID),
	}
	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request body: %w", err)
	}

	url := fmt.Sprintf("%s/rest/api/2/issue/%s/worklog", c.baseURL, issueKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req, true)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// worklogBody builds the worklog create payload. accountID, when set, is
// attached as the author reference.
func (c *Client) worklogBody(started time.Time, duration time.Duration, comment, accountID string) map[string]interface{} {
	body := map[string]interface{}{
		"timeSpentSeconds": int(duration.Seconds()),
		"started":          started.Format(jiraTimeFormat),
	}
	if comment != "" {
		body["comment"] = c.commentBody(comment)
	}
	if accountID != "" {
		body["author"] = c.authorRef(accountID)
	}
	return body
}

// commentBody wraps a comment the way the platform expects it: ADF for
// Cloud, plain text for Server.
func (c *Client) commentBody(text string) interface{} {
	if c.platform != PlatformCloud {
		return text
	}
	return map[string]interface{}{
		"type":    "doc",
		"version": 1,
		"content": []map[string]interface{}{
			{
				"type": "paragraph",
				"content": []map[string]interface{}{
					{"type": "text", "text": text},
				},
			},
		},
	}
}

// authorRef identifies a user by accountId on Cloud and name on Server.
func (c *Client) authorRef(accountID string) map[string]string {
	if c.platform == PlatformCloud {
		return map[string]string{"accountId": accountID}
	}
	return map[string]string{"name": accountID}
}
