package jira

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

const ResolverName = "jira"

var issueKeyInText = regexp.MustCompile(`\b[A-Z][A-Z0-9]+-[0-9]+\b`)

var detailFields = []string{"summary", "status", "issuetype", "assignee", "labels", "created"}

type ResolverOptions struct {
	Adapter       Adapter
	BrowseBaseURL string
	ProjectKeys   []string
	PageSize      int
	Logger        *slog.Logger
}

// Resolver claims issue IDs shaped like Jira keys, optionally limited to a set of
// project keys, and enriches them through the search API.
type Resolver struct {
	adapter       Adapter
	browseBaseURL string
	projectKeys   map[string]struct{}
	pageSize      int
	logger        *slog.Logger
}

var _ resolver.IssueResolver = (*Resolver)(nil)

func NewResolver(options ResolverOptions) (*Resolver, error) {
	if options.Adapter == nil {
		return nil, errors.New("jira resolver requires an adapter")
	}

	pageSize := options.PageSize
	if pageSize <= 0 {
		pageSize = contracts.DefaultJiraSearchPage
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	var projectKeys map[string]struct{}
	if len(options.ProjectKeys) > 0 {
		projectKeys = make(map[string]struct{}, len(options.ProjectKeys))
		for _, key := range options.ProjectKeys {
			projectKeys[strings.ToUpper(strings.TrimSpace(key))] = struct{}{}
		}
	}

	return &Resolver{
		adapter:       options.Adapter,
		browseBaseURL: strings.TrimRight(strings.TrimSpace(options.BrowseBaseURL), "/"),
		projectKeys:   projectKeys,
		pageSize:      pageSize,
		logger:        logger,
	}, nil
}

func (r *Resolver) Name() string {
	return ResolverName
}

// Recognizes reports whether id is a Jira key this resolver is responsible for.
func (r *Resolver) Recognizes(id string) bool {
	if !contracts.JiraIssueKeyPattern.MatchString(id) {
		return false
	}
	if len(r.projectKeys) == 0 {
		return true
	}
	project := id[:strings.LastIndex(id, "-")]
	_, ok := r.projectKeys[project]
	return ok
}

// GetDetails looks up every recognized key in one paged search. Keys Jira does not
// know are omitted from the result; details follow the input order.
func (r *Resolver) GetDetails(ctx context.Context, issues []ci.Issue) ([]resolver.ExternalIssueDetails, error) {
	details := make([]resolver.ExternalIssueDetails, 0)

	keys := make([]string, 0, len(issues))
	seen := make(map[string]struct{}, len(issues))
	for _, issue := range issues {
		if !r.Recognizes(issue.ID) {
			continue
		}
		if _, ok := seen[issue.ID]; ok {
			continue
		}
		seen[issue.ID] = struct{}{}
		keys = append(keys, issue.ID)
	}
	if len(keys) == 0 {
		return details, nil
	}

	found, err := r.search(ctx, "key in ("+strings.Join(keys, ", ")+") ORDER BY key ASC")
	if err != nil {
		return nil, err
	}

	for _, key := range keys {
		issue, ok := found[key]
		if !ok {
			r.logger.Debug("jira issue not found", "key", key)
			continue
		}
		details = append(details, r.toDetails(issue))
	}
	return details, nil
}

// GetIssues extracts Jira keys mentioned in change comments. Keys repeat across
// changes but not within one change.
func (r *Resolver) GetIssues(_ context.Context, changes []ci.ChangeDetail) ([]ci.Issue, error) {
	issues := make([]ci.Issue, 0)
	for _, change := range changes {
		seen := make(map[string]struct{})
		for _, key := range issueKeyInText.FindAllString(change.Comment, -1) {
			if !r.Recognizes(key) {
				continue
			}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			issues = append(issues, ci.Issue{ID: key, URL: r.browseURL(key)})
		}
	}
	return issues, nil
}

func (r *Resolver) search(ctx context.Context, jql string) (map[string]Issue, error) {
	found := make(map[string]Issue)
	startAt := 0
	for {
		response, err := r.adapter.SearchIssues(ctx, SearchIssuesRequest{
			JQL:           jql,
			StartAt:       startAt,
			MaxResults:    r.pageSize,
			Fields:        detailFields,
			ValidateQuery: "warn",
		})
		if err != nil {
			return nil, err
		}
		for _, warning := range response.Warnings {
			r.logger.Debug("jira search warning", "warning", warning)
		}
		for _, issue := range response.Issues {
			found[issue.Key] = issue
		}

		startAt += len(response.Issues)
		if len(response.Issues) == 0 || startAt >= response.Total {
			return found, nil
		}
	}
}

func (r *Resolver) toDetails(issue Issue) resolver.ExternalIssueDetails {
	details := resolver.ExternalIssueDetails{
		Source:  ResolverName,
		ID:      issue.Key,
		Summary: issue.Fields.Summary,
		URL:     r.browseURL(issue.Key),
		Labels:  append([]string(nil), issue.Fields.Labels...),
		Created: issue.Fields.CreatedAt,
	}
	if issue.Fields.Status != nil {
		details.Status = issue.Fields.Status.Name
	}
	if issue.Fields.IssueType != nil {
		details.Type = issue.Fields.IssueType.Name
	}
	if issue.Fields.Assignee != nil {
		details.Assignee = issue.Fields.Assignee.DisplayName
	}
	return details
}

func (r *Resolver) browseURL(key string) string {
	if r.browseBaseURL == "" {
		return ""
	}
	return r.browseBaseURL + "/browse/" + key
}
