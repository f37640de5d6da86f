package jira

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"

	"github.com/pweiskircher/build-changes/internal/contracts"
	httpclient "github.com/pweiskircher/build-changes/internal/http"
)

func TestCloudAdapterImplementsAdapterInterface(t *testing.T) {
	t.Parallel()

	var _ Adapter = (*CloudAdapter)(nil)
}

func TestCloudAdapterSearchIssuesSendsSearchPayload(t *testing.T) {
	t.Parallel()

	var (
		method  string
		path    string
		header  string
		payload map[string]any
	)

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net/",
		Email:    "agent@example.com",
		APIToken: "token-123",
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			method = req.Method
			path = req.URL.Path
			header = req.Header.Get("Authorization")
			body, err := io.ReadAll(req.Body)
			if err != nil {
				return nil, err
			}
			if err := json.Unmarshal(body, &payload); err != nil {
				return nil, err
			}
			return responseWithStatus(http.StatusOK, `{
				"startAt": 0,
				"maxResults": 50,
				"total": 1,
				"warningMessages": ["The value 'PROJ-404' does not exist for the field 'key'."],
				"issues": [
					{
						"id": "101",
						"key": "PROJ-1",
						"fields": {
							"summary": " Fix login ",
							"labels": ["backend", " "],
							"status": {"id": "3", "name": "Done"},
							"issuetype": {"id": "1", "name": "Bug"},
							"assignee": {"accountId": "abc", "displayName": "Dana"},
							"created": "2024-05-01T10:00:00.000+0000"
						}
					}
				]
			}`), nil
		}),
	})

	result, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{
		JQL:           "key in (PROJ-1, PROJ-404)",
		StartAt:       0,
		MaxResults:    50,
		Fields:        []string{"summary", " ", "status"},
		ValidateQuery: "warn",
	})
	if err != nil {
		t.Fatalf("expected search success, got %v", err)
	}

	if method != http.MethodPost || path != "/rest/api/3/search" {
		t.Fatalf("unexpected request %s %s", method, path)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("agent@example.com:token-123"))
	if header != wantAuth {
		t.Fatalf("unexpected authorization header %q", header)
	}
	if payload["jql"] != "key in (PROJ-1, PROJ-404)" || payload["validateQuery"] != "warn" {
		t.Fatalf("unexpected payload: %#v", payload)
	}
	if payload["maxResults"] != float64(50) {
		t.Fatalf("expected maxResults in payload, got %#v", payload["maxResults"])
	}
	if !reflect.DeepEqual(payload["fields"], []any{"summary", "status"}) {
		t.Fatalf("expected blank fields to be dropped, got %#v", payload["fields"])
	}

	if result.Total != 1 || len(result.Issues) != 1 {
		t.Fatalf("unexpected search result: %#v", result)
	}
	issue := result.Issues[0]
	if issue.Key != "PROJ-1" || issue.Fields.Summary != "Fix login" {
		t.Fatalf("unexpected issue mapping: %#v", issue)
	}
	if issue.Fields.Status == nil || issue.Fields.Status.Name != "Done" {
		t.Fatalf("unexpected status mapping: %#v", issue.Fields.Status)
	}
	if issue.Fields.Assignee == nil || issue.Fields.Assignee.DisplayName != "Dana" {
		t.Fatalf("unexpected assignee mapping: %#v", issue.Fields.Assignee)
	}
	if !reflect.DeepEqual(issue.Fields.Labels, []string{"backend"}) {
		t.Fatalf("unexpected labels: %#v", issue.Fields.Labels)
	}
	if len(result.Warnings) != 1 {
		t.Fatalf("expected search warnings to be surfaced, got %#v", result.Warnings)
	}
}

func TestCloudAdapterSearchIssuesRejectsEmptyJQL(t *testing.T) {
	t.Parallel()

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: "token-123",
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			t.Fatalf("did not expect a request")
			return nil, nil
		}),
	})

	_, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "  "})
	if !IsErrorCode(err, ErrorCodeInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestCloudAdapterRedactsSecretsOnTransportAndAuthErrors(t *testing.T) {
	t.Parallel()

	const token = "super-secret-token"
	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: token,
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			return nil, errors.New("dial failed with token super-secret-token")
		}),
	})

	_, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "key in (PROJ-1)"})
	if err == nil {
		t.Fatalf("expected transport error")
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("transport error leaked secret: %q", err)
	}
	if !strings.Contains(err.Error(), httpclient.RedactedPlaceholder) {
		t.Fatalf("transport error should include redaction placeholder: %q", err)
	}

	authAdapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: token,
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			return responseWithStatus(http.StatusUnauthorized, `{"errorMessages":["invalid super-secret-token"]}`), nil
		}),
	})

	_, err = authAdapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "key in (PROJ-1)"})
	if err == nil {
		t.Fatalf("expected auth error")
	}

	var jiraErr *Error
	if !errors.As(err, &jiraErr) {
		t.Fatalf("expected typed jira error, got %T", err)
	}
	if jiraErr.Code != ErrorCodeAuthFailed || jiraErr.ReasonCode != contracts.ReasonCodeAuthFailed {
		t.Fatalf("unexpected auth error classification: %#v", jiraErr)
	}
	if strings.Contains(err.Error(), token) {
		t.Fatalf("auth error leaked secret: %q", err)
	}
}

func TestCloudAdapterStatusErrorsAreJSONMessageAware(t *testing.T) {
	t.Parallel()

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: "token-123",
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			return responseWithStatus(http.StatusBadRequest, `{"errorMessages":["bad jql"],"errors":{"jql":"unparseable"}}`), nil
		}),
	})

	_, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "key in ("})
	if !IsErrorCode(err, ErrorCodeQueryRejected) {
		t.Fatalf("expected rejected query error, got %v", err)
	}
	var jiraErr *Error
	if !errors.As(err, &jiraErr) || jiraErr.ReasonCode != contracts.ReasonCodeValidationFailed {
		t.Fatalf("expected validation reason code, got %#v", err)
	}
	if !reflect.DeepEqual(jiraErr.Details, []string{"bad jql", "jql: unparseable"}) {
		t.Fatalf("unexpected error details: %#v", jiraErr.Details)
	}
	if !strings.Contains(err.Error(), "(status 400): bad jql; jql: unparseable") {
		t.Fatalf("expected combined error detail, got %q", err)
	}
}

func TestCloudAdapterServerFailureWithoutBodyUsesStatusText(t *testing.T) {
	t.Parallel()

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: "token-123",
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			return responseWithStatus(http.StatusServiceUnavailable, ""), nil
		}),
	})

	_, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "key in (PROJ-1)"})
	if !IsErrorCode(err, ErrorCodeUnexpectedStatus) {
		t.Fatalf("expected unexpected status error, got %v", err)
	}
	if err.Error() != "jira issue search failed (status 503): service unavailable" {
		t.Fatalf("unexpected error text %q", err)
	}
}

func TestCloudAdapterDecodeFailureIsTyped(t *testing.T) {
	t.Parallel()

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{
		BaseURL:  "https://example.atlassian.net",
		Email:    "agent@example.com",
		APIToken: "token-123",
		HTTPDoer: doerFunc(func(req *http.Request) (*http.Response, error) {
			return responseWithStatus(http.StatusOK, `{"issues": [`), nil
		}),
	})

	_, err := adapter.SearchIssues(context.Background(), SearchIssuesRequest{JQL: "key in (PROJ-1)"})
	if !IsErrorCode(err, ErrorCodeResponseDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}
}

func TestNewCloudAdapterValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	_, err := NewCloudAdapter(CloudAdapterOptions{BaseURL: "https://example", APIToken: "token", Email: ""})
	if !IsErrorCode(err, ErrorCodeInvalidInput) {
		t.Fatalf("expected invalid input error for missing email, got %v", err)
	}

	_, err = NewCloudAdapter(CloudAdapterOptions{BaseURL: "https://example", APIToken: " ", Email: "user@example.com"})
	if !IsErrorCode(err, ErrorCodeInvalidInput) {
		t.Fatalf("expected invalid input error for missing token, got %v", err)
	}

	_, err = NewCloudAdapter(CloudAdapterOptions{BaseURL: "not-a-url", APIToken: "token", Email: "user@example.com"})
	if !IsErrorCode(err, ErrorCodeInvalidInput) {
		t.Fatalf("expected invalid input error for base URL, got %v", err)
	}

	adapter := mustNewCloudAdapter(t, CloudAdapterOptions{BaseURL: "https://example.atlassian.net/jira/?x=1", APIToken: "token", Email: "user@example.com"})
	if adapter.BaseURL() != "https://example.atlassian.net/jira" {
		t.Fatalf("unexpected normalized base URL %q", adapter.BaseURL())
	}
}

func mustNewCloudAdapter(t *testing.T, options CloudAdapterOptions) *CloudAdapter {
	t.Helper()

	adapter, err := NewCloudAdapter(options)
	if err != nil {
		t.Fatalf("failed to construct adapter: %v", err)
	}
	return adapter
}

type doerFunc func(req *http.Request) (*http.Response, error)

func (f doerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

func responseWithStatus(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}
