// Package teamcity reads builds, changes and related issues from a TeamCity server
// through its REST API in JSON mode.
package teamcity

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pweiskircher/build-changes/internal/ci"
	"github.com/pweiskircher/build-changes/internal/contracts"
	httpclient "github.com/pweiskircher/build-changes/internal/http"
)

const maxResponseBodyBytes = 16 << 20

type Options struct {
	ServerURL   string
	Token       string
	BuildCount  int
	HTTPDoer    httpclient.Doer
	HTTPOptions httpclient.Options
	Logger      *slog.Logger
}

// Client talks to guestAuth when no token is configured, otherwise to the
// authenticated REST root with a bearer token.
type Client struct {
	restRoot   string
	authHeader string
	buildCount int
	client     *httpclient.Client
	redactor   httpclient.Redactor
	logger     *slog.Logger
}

var _ ci.Source = (*Client)(nil)

func NewClient(options Options) (*Client, error) {
	serverURL, err := normalizeServerURL(options.ServerURL)
	if err != nil {
		return nil, err
	}

	authHeader, redactor := httpclient.BearerAuth(options.Token)
	restRoot := serverURL + "/guestAuth/app/rest"
	if authHeader != "" {
		restRoot = serverURL + "/app/rest"
	}

	buildCount := options.BuildCount
	if buildCount <= 0 {
		buildCount = contracts.DefaultBuildListCount
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	httpOptions := options.HTTPOptions
	if httpOptions.Logger == nil {
		httpOptions.Logger = logger
	}

	return &Client{
		restRoot:   restRoot,
		authHeader: authHeader,
		buildCount: buildCount,
		client:     httpclient.NewClient(options.HTTPDoer, httpOptions),
		redactor:   redactor,
		logger:     logger,
	}, nil
}

func (c *Client) ListBuilds(ctx context.Context, buildTypeID string) ([]ci.Build, error) {
	return c.listBuilds(ctx, buildTypeID, false)
}

func (c *Client) RunningBuilds(ctx context.Context, buildTypeID string) ([]ci.Build, error) {
	return c.listBuilds(ctx, buildTypeID, true)
}

// LatestSuccessfulBuild picks the successful build with the highest identifier.
// It returns nil when the build type has no successful build.
func (c *Client) LatestSuccessfulBuild(ctx context.Context, buildTypeID string) (*ci.Build, error) {
	builds, err := c.ListBuilds(ctx, buildTypeID)
	if err != nil {
		return nil, err
	}
	return ci.LatestWithStatus(builds, ci.StatusSuccess), nil
}

// ChangeDetailsForBuild lists the build's changes and fetches each one in full,
// keeping the server's order.
func (c *Client) ChangeDetailsForBuild(ctx context.Context, build ci.Build) ([]ci.ChangeDetail, error) {
	id, err := requireValue("build id", build.ID)
	if err != nil {
		return nil, err
	}

	var list changeListResponse
	query := url.Values{"locator": []string{"build:(id:" + id + ")"}}
	if err := c.getJSON(ctx, "/changes", query, &list); err != nil {
		return nil, err
	}

	changes := make([]ci.ChangeDetail, 0, len(list.Change))
	for _, summary := range list.Change {
		var detail changeResponse
		if err := c.getJSON(ctx, "/changes/id:"+summary.ID.String(), nil, &detail); err != nil {
			return nil, err
		}
		changes = append(changes, detail.toChangeDetail())
	}
	return changes, nil
}

func (c *Client) IssuesForBuild(ctx context.Context, build ci.Build) ([]ci.Issue, error) {
	id, err := requireValue("build id", build.ID)
	if err != nil {
		return nil, err
	}

	var related relatedIssuesResponse
	if err := c.getJSON(ctx, "/builds/id:"+id+"/relatedIssues", nil, &related); err != nil {
		return nil, err
	}

	issues := make([]ci.Issue, 0, len(related.IssueUsage))
	for _, usage := range related.IssueUsage {
		issueID := strings.TrimSpace(usage.Issue.ID)
		if issueID == "" {
			continue
		}
		issues = append(issues, ci.Issue{ID: issueID, URL: strings.TrimSpace(usage.Issue.URL)})
	}
	distinct := ci.DistinctIssues(issues)
	if distinct == nil {
		return []ci.Issue{}, nil
	}
	return distinct, nil
}

// ResolveBuildTypeByProjectAndName matches project and build names case-insensitively.
// It returns nil when nothing matches.
func (c *Client) ResolveBuildTypeByProjectAndName(ctx context.Context, project string, name string) (*ci.BuildType, error) {
	projectName, err := requireValue("project name", project)
	if err != nil {
		return nil, err
	}
	buildName, err := requireValue("build name", name)
	if err != nil {
		return nil, err
	}

	var list buildTypeListResponse
	if err := c.getJSON(ctx, "/buildTypes", nil, &list); err != nil {
		return nil, err
	}

	for _, raw := range list.BuildType {
		buildType := raw.toBuildType()
		if strings.EqualFold(buildType.ProjectName, projectName) && strings.EqualFold(buildType.Name, buildName) {
			c.logger.Debug("resolved teamcity build type", "project", projectName, "name", buildName, "id", buildType.ID)
			return &buildType, nil
		}
	}
	return nil, nil
}

func (c *Client) listBuilds(ctx context.Context, buildTypeID string, running bool) ([]ci.Build, error) {
	id, err := requireValue("build type id", buildTypeID)
	if err != nil {
		return nil, err
	}

	locator := "buildType:(id:" + id + "),count:" + strconv.Itoa(c.buildCount)
	if running {
		locator += ",running:true"
	}

	var list buildListResponse
	if err := c.getJSON(ctx, "/builds", url.Values{"locator": []string{locator}}, &list); err != nil {
		return nil, err
	}

	builds := make([]ci.Build, 0, len(list.Build))
	for _, raw := range list.Build {
		builds = append(builds, raw.toBuild())
	}
	return builds, nil
}

func (c *Client) getJSON(ctx context.Context, resourcePath string, query url.Values, out any) error {
	endpoint := c.restRoot + resourcePath
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return &Error{
			Code:       ErrorCodeRequestBuild,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build teamcity request",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	req.Header.Set("Accept", "application/json")
	if c.authHeader != "" {
		req.Header.Set("Authorization", c.authHeader)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to execute teamcity request",
			Err:        err,
			redactor:   c.redactor,
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to read teamcity response body",
			Err:        err,
			redactor:   c.redactor,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return c.statusError(resourcePath, resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode teamcity response from " + resourcePath,
			Err:        err,
			redactor:   c.redactor,
		}
	}
	return nil
}

func (c *Client) statusError(resourcePath string, statusCode int, body []byte) error {
	detail := firstLine(body)
	if detail == "" {
		detail = strings.ToLower(http.StatusText(statusCode))
	}

	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &Error{
			Code:       ErrorCodeAuthFailed,
			ReasonCode: contracts.ReasonCodeAuthFailed,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("teamcity authentication failed with status %d: %s", statusCode, detail),
			redactor:   c.redactor,
		}
	case http.StatusNotFound:
		return &Error{
			Code:       ErrorCodeNotFound,
			ReasonCode: contracts.ReasonCodeNotFound,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("teamcity resource %s not found: %s", resourcePath, detail),
			redactor:   c.redactor,
		}
	default:
		return &Error{
			Code:       ErrorCodeUnexpectedStatus,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: statusCode,
			Message:    fmt.Sprintf("teamcity request %s failed with status %d: %s", resourcePath, statusCode, detail),
			redactor:   c.redactor,
		}
	}
}

func normalizeServerURL(serverURL string) (string, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid teamcity options: server URL must be set",
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid teamcity options: server URL must include scheme and host",
			Err:        err,
		}
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func requireValue(name string, value string) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid teamcity request: " + name + " must be set",
		}
	}
	return trimmed, nil
}

func firstLine(body []byte) string {
	text := strings.TrimSpace(string(body))
	if index := strings.IndexAny(text, "\r\n"); index >= 0 {
		text = text[:index]
	}
	return strings.TrimSpace(text)
}
