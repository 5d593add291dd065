package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const gitHubAPI = "https://api.github.com"

type GitHubService struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

type GitHubIssue struct {
	Number  int    `json:"number"`
	Title   string `json:"title"`
	HTMLURL string `json:"html_url"`
}

type gitHubIssueRequest struct {
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"labels,omitempty"`
}

type gitHubCommentRequest struct {
	Body string `json:"body"`
}

func NewGitHubService(token string) *GitHubService {
	return &GitHubService{
		token:      token,
		baseURL:    gitHubAPI,
		httpClient: &http.Client{},
	}
}

// WithBaseURL points the service at another API root, e.g. a test server
func (g *GitHubService) WithBaseURL(baseURL string) *GitHubService {
	g.baseURL = baseURL
	return g
}

func (g *GitHubService) do(ctx context.Context, method, path string, in, out any, want int) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != want {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: status %d, body: %s", method, path, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// FindOpenIssue returns the open issue labelled label whose title matches
// exactly, or nil when there is none
func (g *GitHubService) FindOpenIssue(ctx context.Context, owner, repo, label, title string) (*GitHubIssue, error) {
	query := url.Values{}
	query.Set("state", "open")
	query.Set("labels", label)
	query.Set("per_page", "100")

	var issues []GitHubIssue
	path := fmt.Sprintf("/repos/%s/%s/issues?%s", owner, repo, query.Encode())
	if err := g.do(ctx, http.MethodGet, path, nil, &issues, http.StatusOK); err != nil {
		return nil, fmt.Errorf("failed to list issues: %w", err)
	}

	for _, issue := range issues {
		if issue.Title == title {
			return &issue, nil
		}
	}
	return nil, nil
}

// CreateIssue opens a new issue
func (g *GitHubService) CreateIssue(ctx context.Context, owner, repo, title, body string, labels ...string) (*GitHubIssue, error) {
	var issue GitHubIssue
	path := fmt.Sprintf("/repos/%s/%s/issues", owner, repo)
	in := gitHubIssueRequest{Title: title, Body: body, Labels: labels}
	if err := g.do(ctx, http.MethodPost, path, in, &issue, http.StatusCreated); err != nil {
		return nil, fmt.Errorf("failed to create issue: %w", err)
	}
	return &issue, nil
}

// AddComment appends a comment to an existing issue
func (g *GitHubService) AddComment(ctx context.Context, owner, repo string, number int, body string) error {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, repo, number)
	if err := g.do(ctx, http.MethodPost, path, gitHubCommentRequest{Body: body}, nil, http.StatusCreated); err != nil {
		return fmt.Errorf("failed to comment on issue %d: %w", number, err)
	}
	return nil
}
