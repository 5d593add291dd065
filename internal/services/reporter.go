package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

const bugLabel = "bug"

// Reporter sends diagnostics about failures to an out-of-band channel.
// Reporting never fails the caller.
type Reporter interface {
	Report(ctx context.Context, title, description string)
}

// LogReporter writes reports to the context logger
type LogReporter struct{}

func (LogReporter) Report(ctx context.Context, title, description string) {
	zerolog.Ctx(ctx).Error().
		Str("title", title).
		Str("description", description).
		Msg("bug report")
}

// GitHubReporter files reports as GitHub issues. Repeats of an open issue
// with the same title become comments on it.
type GitHubReporter struct {
	github *GitHubService
	owner  string
	repo   string
	env    string
}

// NewGitHubReporter reports to repository "owner/name"
func NewGitHubReporter(github *GitHubService, repository, env string) (*GitHubReporter, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok || owner == "" || repo == "" {
		return nil, fmt.Errorf("invalid bug report repository %q, want owner/name", repository)
	}
	return &GitHubReporter{
		github: github,
		owner:  owner,
		repo:   repo,
		env:    env,
	}, nil
}

func (r *GitHubReporter) Report(ctx context.Context, title, description string) {
	logger := zerolog.Ctx(ctx).With().
		Str("repo", r.owner+"/"+r.repo).
		Str("title", title).
		Logger()

	body := fmt.Sprintf("%s\n\nEnvironment: %s", description, r.env)

	existing, err := r.github.FindOpenIssue(ctx, r.owner, r.repo, bugLabel, title)
	if err != nil {
		logger.Error().Err(err).Str("description", description).Msg("unable to search for existing bug report")
		return
	}

	if existing != nil {
		if err := r.github.AddComment(ctx, r.owner, r.repo, existing.Number, body); err != nil {
			logger.Error().Err(err).Str("description", description).Msg("unable to update bug report")
			return
		}
		logger.Info().Int("issue", existing.Number).Msg("updated bug report")
		return
	}

	issue, err := r.github.CreateIssue(ctx, r.owner, r.repo, title, body, bugLabel)
	if err != nil {
		logger.Error().Err(err).Str("description", description).Msg("unable to file bug report")
		return
	}
	logger.Info().Int("issue", issue.Number).Str("url", issue.HTMLURL).Msg("filed bug report")
}

// NewReporter returns a GitHubReporter when a token can be loaded from
// secretName, otherwise a LogReporter
func NewReporter(ctx context.Context, secrets *SecretsManagerService, config *Config, env string) Reporter {
	logger := zerolog.Ctx(ctx)

	if secrets == nil || config.GitHubSecretName == "" || config.BugReportRepo == "" {
		return LogReporter{}
	}

	token, err := secrets.GetGitHubPAT(ctx, config.GitHubSecretName)
	if err != nil {
		logger.Warn().Err(err).Msg("bug reports will be logged only")
		return LogReporter{}
	}

	reporter, err := NewGitHubReporter(NewGitHubService(token), config.BugReportRepo, env)
	if err != nil {
		logger.Warn().Err(err).Msg("bug reports will be logged only")
		return LogReporter{}
	}

	return reporter
}
