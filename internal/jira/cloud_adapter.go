package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/pweiskircher/build-changes/internal/contracts"
	httpclient "github.com/pweiskircher/build-changes/internal/http"
)

const maxResponseBodyBytes = 4 << 20

type CloudAdapterOptions struct {
	BaseURL     string
	Email       string
	APIToken    string
	HTTPDoer    httpclient.Doer
	HTTPOptions httpclient.Options
	Logger      *slog.Logger
}

type CloudAdapter struct {
	baseURL    string
	authHeader string
	client     *httpclient.Client
	redactor   httpclient.Redactor
}

func NewCloudAdapter(options CloudAdapterOptions) (*CloudAdapter, error) {
	baseURL, err := normalizeBaseURL(options.BaseURL)
	if err != nil {
		return nil, err
	}

	email := strings.TrimSpace(options.Email)
	if email == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: email must be set",
		}
	}

	token := strings.TrimSpace(options.APIToken)
	if token == "" {
		return nil, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: api token must be set",
		}
	}

	authSecret := email + ":" + token
	authHeader := "Basic " + base64.StdEncoding.EncodeToString([]byte(authSecret))

	httpOptions := options.HTTPOptions
	if httpOptions.Logger == nil {
		httpOptions.Logger = options.Logger
	}

	return &CloudAdapter{
		baseURL:    baseURL,
		authHeader: authHeader,
		client:     httpclient.NewClient(options.HTTPDoer, httpOptions),
		redactor:   httpclient.NewRedactor(token, authSecret, authHeader),
	}, nil
}

// BaseURL is the normalized site URL, used to build browse links.
func (a *CloudAdapter) BaseURL() string {
	if a == nil {
		return ""
	}
	return a.baseURL
}

func (a *CloudAdapter) SearchIssues(ctx context.Context, request SearchIssuesRequest) (SearchIssuesResponse, error) {
	if a == nil {
		return SearchIssuesResponse{}, &Error{Code: ErrorCodeInvalidInput, Message: "jira adapter is nil"}
	}
	if strings.TrimSpace(request.JQL) == "" {
		return SearchIssuesResponse{}, &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid search request: jql must be set",
		}
	}

	payload := searchIssuesAPIRequest{
		JQL:           request.JQL,
		StartAt:       max(request.StartAt, 0),
		MaxResults:    request.MaxResults,
		Fields:        normalizeStringSlice(request.Fields),
		ValidateQuery: strings.TrimSpace(request.ValidateQuery),
	}

	var response searchIssuesAPIResponse
	if err := a.postJSON(ctx, "/rest/api/3/search", payload, &response); err != nil {
		return SearchIssuesResponse{}, err
	}

	issues := make([]Issue, 0, len(response.Issues))
	for _, item := range response.Issues {
		issues = append(issues, mapAPIIssue(item))
	}

	return SearchIssuesResponse{
		StartAt:    response.StartAt,
		MaxResults: response.MaxResults,
		Total:      response.Total,
		Issues:     issues,
		Warnings:   normalizeStringSlice(response.WarningMessages),
	}, nil
}

func (a *CloudAdapter) postJSON(ctx context.Context, resourcePath string, payload any, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to encode jira search request",
			Err:        err,
			redactor:   a.redactor,
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+resourcePath, bytes.NewReader(encoded))
	if err != nil {
		return &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "failed to build jira search request",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", a.authHeader)

	resp, err := a.client.Do(req)
	if err != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			Message:    "failed to reach jira",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	defer resp.Body.Close()

	responseBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodyBytes))
	if readErr != nil {
		return &Error{
			Code:       ErrorCodeTransport,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to read jira search response",
			Err:        readErr,
			redactor:   a.redactor,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return a.statusError(resp.StatusCode, responseBody)
	}
	if len(responseBody) == 0 {
		return nil
	}

	if err := json.Unmarshal(responseBody, out); err != nil {
		return &Error{
			Code:       ErrorCodeResponseDecode,
			ReasonCode: contracts.ReasonCodeTransportError,
			StatusCode: resp.StatusCode,
			Message:    "failed to decode jira search response",
			Err:        err,
			redactor:   a.redactor,
		}
	}
	return nil
}

// statusError classifies a non-200 search response. Jira answers 400 when the
// JQL itself is refused, which is distinct from an outage.
func (a *CloudAdapter) statusError(statusCode int, body []byte) error {
	details := apiErrorMessages(body)
	if len(details) == 0 {
		details = []string{strings.ToLower(http.StatusText(statusCode))}
	}

	err := &Error{
		StatusCode: statusCode,
		Details:    details,
		redactor:   a.redactor,
	}
	switch statusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		err.Code = ErrorCodeAuthFailed
		err.ReasonCode = contracts.ReasonCodeAuthFailed
		err.Message = "jira rejected the credentials"
	case http.StatusBadRequest:
		err.Code = ErrorCodeQueryRejected
		err.ReasonCode = contracts.ReasonCodeValidationFailed
		err.Message = "jira rejected the issue search"
	default:
		err.Code = ErrorCodeUnexpectedStatus
		err.ReasonCode = contracts.ReasonCodeTransportError
		err.Message = "jira issue search failed"
	}
	return err
}

func normalizeBaseURL(baseURL string) (string, error) {
	trimmed := strings.TrimSpace(baseURL)
	if trimmed == "" {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: base URL must be set",
		}
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: base URL is malformed",
			Err:        err,
		}
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return "", &Error{
			Code:       ErrorCodeInvalidInput,
			ReasonCode: contracts.ReasonCodeValidationFailed,
			Message:    "invalid jira adapter options: base URL must include scheme and host",
		}
	}

	parsed.Path = strings.TrimRight(parsed.Path, "/")
	parsed.RawQuery = ""
	parsed.Fragment = ""
	return parsed.String(), nil
}

func normalizeStringSlice(values []string) []string {
	if values == nil {
		return nil
	}

	normalized := make([]string, 0, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		normalized = append(normalized, trimmed)
	}
	return normalized
}

func apiErrorMessages(body []byte) []string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return nil
	}

	var payload struct {
		ErrorMessages []string          `json:"errorMessages"`
		Errors        map[string]string `json:"errors"`
		Message       string            `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		if len(trimmed) > 200 {
			trimmed = trimmed[:200]
		}
		return []string{trimmed}
	}

	messages := normalizeStringSlice(payload.ErrorMessages)
	if message := strings.TrimSpace(payload.Message); message != "" {
		messages = append(messages, message)
	}

	keys := make([]string, 0, len(payload.Errors))
	for key := range payload.Errors {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if value := strings.TrimSpace(payload.Errors[key]); value != "" {
			messages = append(messages, fmt.Sprintf("%s: %s", key, value))
		}
	}
	return messages
}

type searchIssuesAPIRequest struct {
	JQL           string   `json:"jql"`
	StartAt       int      `json:"startAt"`
	MaxResults    int      `json:"maxResults,omitempty"`
	Fields        []string `json:"fields,omitempty"`
	ValidateQuery string   `json:"validateQuery,omitempty"`
}

type searchIssuesAPIResponse struct {
	StartAt         int                `json:"startAt"`
	MaxResults      int                `json:"maxResults"`
	Total           int                `json:"total"`
	Issues          []issueAPIResponse `json:"issues"`
	WarningMessages []string           `json:"warningMessages"`
}

type issueAPIResponse struct {
	ID     string             `json:"id"`
	Key    string             `json:"key"`
	Fields issueFieldsAPIData `json:"fields"`
}

type issueFieldsAPIData struct {
	Summary   string         `json:"summary"`
	Labels    []string       `json:"labels"`
	Assignee  *accountAPIRef `json:"assignee"`
	Status    *namedAPIRef   `json:"status"`
	IssueType *namedAPIRef   `json:"issuetype"`
	CreatedAt string         `json:"created"`
}

type accountAPIRef struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
	Email       string `json:"emailAddress"`
}

type namedAPIRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func mapAPIIssue(raw issueAPIResponse) Issue {
	return Issue{
		ID:  strings.TrimSpace(raw.ID),
		Key: strings.TrimSpace(raw.Key),
		Fields: IssueFields{
			Summary:   strings.TrimSpace(raw.Fields.Summary),
			Labels:    normalizeStringSlice(raw.Fields.Labels),
			Assignee:  mapAccountRef(raw.Fields.Assignee),
			Status:    mapNamedRef(raw.Fields.Status),
			IssueType: mapNamedRef(raw.Fields.IssueType),
			CreatedAt: strings.TrimSpace(raw.Fields.CreatedAt),
		},
	}
}

func mapAccountRef(raw *accountAPIRef) *AccountRef {
	if raw == nil {
		return nil
	}
	return &AccountRef{
		AccountID:   strings.TrimSpace(raw.AccountID),
		DisplayName: strings.TrimSpace(raw.DisplayName),
		Email:       strings.TrimSpace(raw.Email),
	}
}

func mapNamedRef(raw *namedAPIRef) *NamedRef {
	if raw == nil {
		return nil
	}
	return &NamedRef{ID: strings.TrimSpace(raw.ID), Name: strings.TrimSpace(raw.Name)}
}
