// Package github resolves issue references of one GitHub repository through the
// REST issues endpoint.
package github

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	githubclient "github.com/google/go-github/v66/github"
	"golang.org/x/oauth2"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	httpclient "github.com/pweiskircher/build-changes/internal/http"
	"github.com/pweiskircher/build-changes/internal/resolver"
)

const ResolverName = "github"

var (
	issueID        = regexp.MustCompile(`^(?:#|GH-|([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+)#)([0-9]+)$`)
	issueRefInText = regexp.MustCompile(`(?:^|[^A-Za-z0-9_&/#-])(?:#|GH-|([A-Za-z0-9_.-]+/[A-Za-z0-9_.-]+)#)([0-9]+)\b`)
)

type Options struct {
	Repository  string
	APIURL      string
	Token       string
	HTTPDoer    httpclient.Doer
	HTTPOptions httpclient.Options
	Logger      *slog.Logger
}

// Resolver claims "#N", "GH-N" and "owner/repo#N" references to its own
// repository. References to other repositories are not recognized.
type Resolver struct {
	owner    string
	repo     string
	client   *githubclient.Client
	redactor httpclient.Redactor
	logger   *slog.Logger
}

var _ resolver.IssueResolver = (*Resolver)(nil)

func NewResolver(options Options) (*Resolver, error) {
	repository := strings.TrimSpace(options.Repository)
	if !contracts.GitHubRepoPattern.MatchString(repository) {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid github options: repository must be owner/repo",
		}
	}
	owner, repo, _ := strings.Cut(repository, "/")

	apiURL := strings.TrimRight(strings.TrimSpace(options.APIURL), "/")
	if apiURL == "" {
		apiURL = contracts.DefaultGitHubAPIURL
	}
	baseURL, err := url.Parse(apiURL + "/")
	if err != nil || baseURL.Scheme == "" || baseURL.Host == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid github options: api URL must include scheme and host",
			Err:        err,
		}
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpOptions := options.HTTPOptions
	if httpOptions.Logger == nil {
		httpOptions.Logger = logger
	}

	var transport http.RoundTripper = doerTransport{doer: httpclient.NewClient(options.HTTPDoer, httpOptions)}
	token := strings.TrimSpace(options.Token)
	if token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   transport,
		}
	}
	client := githubclient.NewClient(&http.Client{Transport: transport})
	client.BaseURL = baseURL

	return &Resolver{
		owner:    owner,
		repo:     repo,
		client:   client,
		redactor: httpclient.NewRedactor(token),
		logger:   logger,
	}, nil
}

func (r *Resolver) Name() string {
	return ResolverName
}

// IssueNumber returns the issue number id refers to, or false when id is not a
// reference to this repository.
func (r *Resolver) IssueNumber(id string) (int, bool) {
	match := issueID.FindStringSubmatch(strings.TrimSpace(id))
	if match == nil {
		return 0, false
	}
	return r.number(match[1], match[2])
}

// GetDetails fetches each recognized issue once. Issues the repository does not
// have are skipped; details keep the input order and the input ID spelling.
func (r *Resolver) GetDetails(ctx context.Context, issues []ci.Issue) ([]resolver.ExternalIssueDetails, error) {
	details := make([]resolver.ExternalIssueDetails, 0)
	seen := make(map[int]struct{}, len(issues))
	for _, issue := range issues {
		number, ok := r.IssueNumber(issue.ID)
		if !ok {
			continue
		}
		if _, ok := seen[number]; ok {
			continue
		}
		seen[number] = struct{}{}

		fetched, found, err := r.fetchIssue(ctx, number)
		if err != nil {
			return nil, err
		}
		if !found {
			r.logger.Debug("github issue not found", "repository", r.owner+"/"+r.repo, "number", number)
			continue
		}
		details = append(details, toDetails(fetched, issue.ID))
	}
	return details, nil
}

// GetIssues extracts references to this repository from change comments as
// "#N". A number repeats across changes but not within one change.
func (r *Resolver) GetIssues(_ context.Context, changes []ci.ChangeDetail) ([]ci.Issue, error) {
	issues := make([]ci.Issue, 0)
	for _, change := range changes {
		seen := make(map[int]struct{})
		for _, match := range issueRefInText.FindAllStringSubmatch(change.Comment, -1) {
			number, ok := r.number(match[1], match[2])
			if !ok {
				continue
			}
			if _, ok := seen[number]; ok {
				continue
			}
			seen[number] = struct{}{}
			issues = append(issues, ci.Issue{ID: "#" + strconv.Itoa(number)})
		}
	}
	return issues, nil
}

func (r *Resolver) number(repository string, digits string) (int, bool) {
	if repository != "" && !strings.EqualFold(repository, r.owner+"/"+r.repo) {
		return 0, false
	}
	number, err := strconv.Atoi(digits)
	if err != nil || number <= 0 {
		return 0, false
	}
	return number, true
}

func (r *Resolver) fetchIssue(ctx context.Context, number int) (*githubclient.Issue, bool, error) {
	issue, resp, err := r.client.Issues.Get(ctx, r.owner, r.repo, number)
	if err == nil {
		return issue, true, nil
	}

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	if statusCode == http.StatusNotFound {
		return nil, false, nil
	}

	mapped := &Error{
		ReasonCode: contracts.ReasonCodeTransportError,
		StatusCode: statusCode,
		Err:        err,
		redactor:   r.redactor,
	}

	var rateErr *githubclient.RateLimitError
	var abuseErr *githubclient.AbuseRateLimitError
	var responseErr *githubclient.ErrorResponse
	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		mapped.Code = ErrorCodeRateLimited
		mapped.Message = "github rate limit exceeded while fetching issue " + strconv.Itoa(number)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		mapped.Code = ErrorCodeAuthFailed
		mapped.ReasonCode = contracts.ReasonCodeAuthFailed
		mapped.Message = "github authentication failed with status " + strconv.Itoa(statusCode)
	case errors.As(err, &responseErr):
		mapped.Code = ErrorCodeUnexpectedStatus
		mapped.Message = "github issue " + strconv.Itoa(number) + " request failed with status " + strconv.Itoa(statusCode)
	case statusCode >= 200 && statusCode < 300:
		mapped.Code = ErrorCodeResponseDecode
		mapped.Message = "failed to decode github issue " + strconv.Itoa(number)
	default:
		mapped.Code = ErrorCodeTransport
		mapped.Message = "failed to execute github request"
	}
	return nil, false, mapped
}

func toDetails(issue *githubclient.Issue, id string) resolver.ExternalIssueDetails {
	details := resolver.ExternalIssueDetails{
		Source:   ResolverName,
		ID:       id,
		Summary:  issue.GetTitle(),
		Status:   issue.GetState(),
		Type:     "issue",
		Assignee: issue.GetAssignee().GetLogin(),
		URL:      issue.GetHTMLURL(),
	}
	if issue.IsPullRequest() {
		details.Type = "pull_request"
	}
	if issue.CreatedAt != nil {
		details.Created = issue.CreatedAt.UTC().Format(time.RFC3339)
	}
	for _, label := range issue.Labels {
		if name := strings.TrimSpace(label.GetName()); name != "" {
			details.Labels = append(details.Labels, name)
		}
	}
	return details
}

// doerTransport routes the GitHub client through the shared timeout and
// request logging of httpclient.Client.
type doerTransport struct {
	doer httpclient.Doer
}

func (t doerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.doer.Do(req)
}
